// Command swapctl drives crosspay instances from the shell. It submits
// and tracks swaps as a user wallet, moves XLP stake and liquidity, and
// publishes the bridge facts that admit an XLP on peer chains or carry an
// oracle verdict to them.
//
// Mutating commands sign their requests with SWAPCTL_PRIVATE_KEY (hex,
// 0x prefix optional). Reads need no key.
//
// Usage:
//
//	swapctl lock           --url http://localhost:8080 --request swap.json
//	swapctl cancel         --request swap.json
//	swapctl status         --id 0x...
//	swapctl dispute        --id 0x...
//	swapctl resolve        --request swap.json --verdict slashed
//	swapctl xlps           [--offset 0] [--limit 20]
//	swapctl balance        --xlp 0x... [--token 0x...]
//	swapctl deposit        --xlp 0x... --amount 500 [--token 0x...]
//	swapctl stake          --chain 2 --amount 100
//	swapctl unstake        --chain 2 --amount 50
//	swapctl withdraw-stake --chain 2
//	swapctl stake-info     --xlp 0x... --chain 2
//	swapctl register-xlp   --redis redis:6379 --l1 0x... --l2 0x... --chains 1,2
//	swapctl relay-verdict  --redis redis:6379 --src 2 --dst 1 --request swap.json --verdict slashed
package main

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"flag"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/redis/go-redis/v9"

	"github.com/xlplabs/crosspay/internal/bridge"
	"github.com/xlplabs/crosspay/internal/paymaster"
	"github.com/xlplabs/crosspay/internal/swap"
	"github.com/xlplabs/crosspay/internal/xlp"
)

const usage = `swapctl <command> [flags]

swap commands:
  lock            lock a swap request on the origin instance
  cancel          cancel a locked swap after its cancellation delay
  status          show a swap and its incoming record
  dispute         raise a dispute on a voucher-issued swap
  resolve         resolve a dispute with an oracle-signed verdict

xlp commands:
  xlps            list registered XLPs
  balance         show an XLP's internal balances
  deposit         credit an XLP's internal balance
  stake           add stake for a destination chain
  unstake         request stake withdrawal
  withdraw-stake  withdraw matured stake
  stake-info      show stake for an XLP and chain

bridge commands:
  register-xlp    publish XLP registration facts to a chain set
  relay-verdict   publish a dispute verdict fact to one chain

Run swapctl <command> -h for flags.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	ctx := context.Background()
	cmd, args := os.Args[1], os.Args[2:]

	var err error
	switch cmd {
	case "lock":
		err = cmdLock(ctx, args)
	case "cancel":
		err = cmdCancel(ctx, args)
	case "status":
		err = cmdStatus(ctx, args)
	case "dispute":
		err = cmdDispute(ctx, args)
	case "resolve":
		err = cmdResolve(ctx, args)
	case "xlps":
		err = cmdXlps(ctx, args)
	case "balance":
		err = cmdBalance(ctx, args)
	case "deposit":
		err = cmdDeposit(ctx, args)
	case "stake":
		err = cmdStake(ctx, args)
	case "unstake":
		err = cmdUnstake(ctx, args)
	case "withdraw-stake":
		err = cmdWithdrawStake(ctx, args)
	case "stake-info":
		err = cmdStakeInfo(ctx, args)
	case "register-xlp":
		err = cmdRegisterXlp(ctx, args)
	case "relay-verdict":
		err = cmdRelayVerdict(ctx, args)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		fatalf("swapctl %s: %v", cmd, err)
	}
}

// ── Swap commands ───────────────────────────────────────────────────────────

func cmdLock(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("lock", flag.ExitOnError)
	url := fs.String("url", "http://localhost:8080", "instance base URL")
	reqPath := fs.String("request", "", "swap request JSON file")
	_ = fs.Parse(args)

	req, err := readRequest(*reqPath)
	if err != nil {
		return err
	}
	c, err := signingClient(*url)
	if err != nil {
		return err
	}
	id, err := c.Lock(ctx, req)
	if err != nil {
		return err
	}
	fmt.Printf("locked:  %s\n", id.Hex())
	return nil
}

func cmdCancel(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("cancel", flag.ExitOnError)
	url := fs.String("url", "http://localhost:8080", "instance base URL")
	reqPath := fs.String("request", "", "swap request JSON file")
	_ = fs.Parse(args)

	req, err := readRequest(*reqPath)
	if err != nil {
		return err
	}
	c, err := signingClient(*url)
	if err != nil {
		return err
	}
	if err := c.Cancel(ctx, req); err != nil {
		return err
	}
	fmt.Printf("cancelled: %s\n", req.ID().Hex())
	return nil
}

func cmdStatus(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	url := fs.String("url", "http://localhost:8080", "instance base URL")
	idStr := fs.String("id", "", "swap id")
	_ = fs.Parse(args)

	if *idStr == "" {
		return fmt.Errorf("--id is required")
	}
	id := common.HexToHash(*idStr)
	c := xlp.NewClient(*url, nil)

	view, err := c.Swap(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("swap:      %s\n", view.ID.Hex())
	fmt.Printf("status:    %s\n", view.Status)
	fmt.Printf("locked:    %d\n", view.LockedAt)
	if view.VoucherIssuedAt > 0 {
		fmt.Printf("issued:    %d\n", view.VoucherIssuedAt)
		fmt.Printf("issuer:    %s\n", view.IssuerL1Xlp.Hex())
	}
	if view.DisputeRaisedAt > 0 {
		fmt.Printf("disputed:  %d\n", view.DisputeRaisedAt)
	}
	if inc, err := c.Incoming(ctx, id); err == nil {
		fmt.Printf("incoming:  %s (xlp %s, claimed %d)\n", inc.Status, inc.Xlp.Hex(), inc.ClaimedAt)
	} else {
		fmt.Printf("incoming:  none\n")
	}
	return nil
}

func cmdDispute(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("dispute", flag.ExitOnError)
	url := fs.String("url", "http://localhost:8080", "instance base URL")
	idStr := fs.String("id", "", "swap id")
	_ = fs.Parse(args)

	if *idStr == "" {
		return fmt.Errorf("--id is required")
	}
	c, err := signingClient(*url)
	if err != nil {
		return err
	}
	id := common.HexToHash(*idStr)
	if err := c.RaiseDispute(ctx, id); err != nil {
		return err
	}
	fmt.Printf("disputed: %s\n", id.Hex())
	return nil
}

// cmdResolve signs the verdict with SWAPCTL_PRIVATE_KEY, so it only
// succeeds when that key is the instance's dispute oracle.
func cmdResolve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	url := fs.String("url", "http://localhost:8080", "instance base URL")
	reqPath := fs.String("request", "", "swap request JSON file")
	verdictStr := fs.String("verdict", "", "slashed or successful")
	_ = fs.Parse(args)

	req, err := readRequest(*reqPath)
	if err != nil {
		return err
	}
	verdict, err := parseVerdict(*verdictStr)
	if err != nil {
		return err
	}
	key, err := signingKey()
	if err != nil {
		return err
	}
	proof, err := paymaster.SignVerdict(req.ID(), verdict, key)
	if err != nil {
		return err
	}
	status, err := xlp.NewClient(*url, key).ResolveDispute(ctx, req, proof)
	if err != nil {
		return err
	}
	fmt.Printf("resolved: %s\n", req.ID().Hex())
	fmt.Printf("verdict:  %s\n", verdict)
	fmt.Printf("status:   %s\n", status)
	return nil
}

// ── XLP commands ────────────────────────────────────────────────────────────

func cmdXlps(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("xlps", flag.ExitOnError)
	url := fs.String("url", "http://localhost:8080", "instance base URL")
	offset := fs.Int("offset", 0, "list offset")
	limit := fs.Int("limit", 20, "page size")
	_ = fs.Parse(args)

	list, total, err := xlp.NewClient(*url, nil).Xlps(ctx, *offset, *limit)
	if err != nil {
		return err
	}
	fmt.Printf("total:   %d\n", total)
	for i, x := range list {
		fmt.Printf("%d: %s l2=%s registered_at=%d\n", *offset+i, x.L1Address.Hex(), x.L2Address.Hex(), x.RegisteredAt)
	}
	return nil
}

func cmdBalance(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("balance", flag.ExitOnError)
	url := fs.String("url", "http://localhost:8080", "instance base URL")
	xlpStr := fs.String("xlp", "", "XLP address")
	tokenStr := fs.String("token", "", "token address, empty for native only")
	_ = fs.Parse(args)

	if *xlpStr == "" {
		return fmt.Errorf("--xlp is required")
	}
	native, tok, err := xlp.NewClient(*url, nil).Balance(ctx, common.HexToAddress(*xlpStr), common.HexToAddress(*tokenStr))
	if err != nil {
		return err
	}
	fmt.Printf("native:  %s\n", native)
	if *tokenStr != "" {
		fmt.Printf("token:   %s\n", tok)
	}
	return nil
}

func cmdDeposit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("deposit", flag.ExitOnError)
	url := fs.String("url", "http://localhost:8080", "instance base URL")
	xlpStr := fs.String("xlp", "", "XLP address to credit")
	tokenStr := fs.String("token", "", "token address, empty for native")
	amountStr := fs.String("amount", "", "amount to credit")
	_ = fs.Parse(args)

	if *xlpStr == "" {
		return fmt.Errorf("--xlp is required")
	}
	amount, err := parseAmount(*amountStr)
	if err != nil {
		return err
	}
	c, err := signingClient(*url)
	if err != nil {
		return err
	}
	asset := swap.Asset{Token: common.HexToAddress(*tokenStr), Amount: amount}
	if err := c.DepositToXlp(ctx, common.HexToAddress(*xlpStr), asset); err != nil {
		return err
	}
	leg := "native"
	if *tokenStr != "" {
		leg = asset.Token.Hex()
	}
	fmt.Printf("deposited: %s (%s) to %s\n", amount, leg, *xlpStr)
	return nil
}

func cmdStake(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("stake", flag.ExitOnError)
	url := fs.String("url", "http://localhost:8080", "instance base URL")
	chain := fs.Uint64("chain", 0, "destination chain id")
	amountStr := fs.String("amount", "", "stake amount")
	_ = fs.Parse(args)

	amount, err := parseAmount(*amountStr)
	if err != nil {
		return err
	}
	c, err := signingClient(*url)
	if err != nil {
		return err
	}
	if err := c.Stake(ctx, *chain, amount); err != nil {
		return err
	}
	fmt.Printf("staked:  %s on chain %d\n", amount, *chain)
	return nil
}

func cmdUnstake(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("unstake", flag.ExitOnError)
	url := fs.String("url", "http://localhost:8080", "instance base URL")
	chain := fs.Uint64("chain", 0, "destination chain id")
	amountStr := fs.String("amount", "", "amount to move out of active stake")
	_ = fs.Parse(args)

	amount, err := parseAmount(*amountStr)
	if err != nil {
		return err
	}
	c, err := signingClient(*url)
	if err != nil {
		return err
	}
	if err := c.Unstake(ctx, *chain, amount); err != nil {
		return err
	}
	fmt.Printf("pending: %s on chain %d\n", amount, *chain)
	return nil
}

func cmdWithdrawStake(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("withdraw-stake", flag.ExitOnError)
	url := fs.String("url", "http://localhost:8080", "instance base URL")
	chain := fs.Uint64("chain", 0, "destination chain id")
	_ = fs.Parse(args)

	c, err := signingClient(*url)
	if err != nil {
		return err
	}
	amount, err := c.WithdrawStake(ctx, *chain)
	if err != nil {
		return err
	}
	fmt.Printf("withdrawn: %s from chain %d\n", amount, *chain)
	return nil
}

func cmdStakeInfo(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("stake-info", flag.ExitOnError)
	url := fs.String("url", "http://localhost:8080", "instance base URL")
	xlpStr := fs.String("xlp", "", "XLP address")
	chain := fs.Uint64("chain", 0, "destination chain id")
	_ = fs.Parse(args)

	if *xlpStr == "" {
		return fmt.Errorf("--xlp is required")
	}
	info, err := xlp.NewClient(*url, nil).StakeInfo(ctx, common.HexToAddress(*xlpStr), *chain)
	if err != nil {
		return err
	}
	fmt.Printf("active:    %s\n", info.Active)
	fmt.Printf("pending:   %s\n", info.Pending)
	if info.UnstakeRequestedAt > 0 {
		fmt.Printf("requested: %d\n", info.UnstakeRequestedAt)
	}
	return nil
}

// ── Bridge commands ─────────────────────────────────────────────────────────

// cmdRegisterXlp publishes one registration fact per ordered chain pair,
// so every instance's relayer sees the XLP arrive from each of its peers.
func cmdRegisterXlp(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register-xlp", flag.ExitOnError)
	redisAddr := fs.String("redis", "redis:6379", "redis address the relayers read")
	redisPassword := fs.String("redis-password", "", "redis password")
	l1 := fs.String("l1", "", "XLP origin-side address")
	l2 := fs.String("l2", "", "XLP destination-side address")
	chains := fs.String("chains", "", "comma separated chain ids to admit the XLP on")
	_ = fs.Parse(args)

	if *l1 == "" {
		return fmt.Errorf("--l1 is required")
	}
	ids, err := parseChains(*chains)
	if err != nil {
		return err
	}
	rdb, err := redisConn(ctx, *redisAddr, *redisPassword)
	if err != nil {
		return err
	}
	conn := bridge.NewRedisConnector(rdb, nil)
	now := time.Now().Unix()
	for _, p := range orderedPairs(ids) {
		fact, err := bridge.NewXlpRegistrationFact(p[0], p[1], common.HexToAddress(*l1), common.HexToAddress(*l2), now)
		if err != nil {
			return err
		}
		if err := conn.Publish(ctx, fact); err != nil {
			return fmt.Errorf("publish %d -> %d: %w", p[0], p[1], err)
		}
		fmt.Printf("published: xlp registration %d -> %d\n", p[0], p[1])
	}
	return nil
}

func cmdRelayVerdict(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("relay-verdict", flag.ExitOnError)
	redisAddr := fs.String("redis", "redis:6379", "redis address the relayers read")
	redisPassword := fs.String("redis-password", "", "redis password")
	src := fs.Uint64("src", 0, "chain the verdict was decided on")
	dst := fs.Uint64("dst", 0, "chain that should apply it")
	reqPath := fs.String("request", "", "swap request JSON file")
	verdictStr := fs.String("verdict", "", "slashed or successful")
	_ = fs.Parse(args)

	if *src == 0 || *dst == 0 {
		return fmt.Errorf("--src and --dst are required")
	}
	req, err := readRequest(*reqPath)
	if err != nil {
		return err
	}
	verdict, err := parseVerdict(*verdictStr)
	if err != nil {
		return err
	}
	rdb, err := redisConn(ctx, *redisAddr, *redisPassword)
	if err != nil {
		return err
	}
	fact, err := bridge.NewDisputeOutcomeFact(*src, *dst, req, verdict, time.Now().Unix())
	if err != nil {
		return err
	}
	if err := bridge.NewRedisConnector(rdb, nil).Publish(ctx, fact); err != nil {
		return err
	}
	fmt.Printf("published: %s verdict for %s (%d -> %d)\n", verdict, req.ID().Hex(), *src, *dst)
	return nil
}

// ── Helpers ─────────────────────────────────────────────────────────────────

func signingKey() (*ecdsa.PrivateKey, error) {
	raw := strings.TrimPrefix(os.Getenv("SWAPCTL_PRIVATE_KEY"), "0x")
	if raw == "" {
		return nil, fmt.Errorf("SWAPCTL_PRIVATE_KEY is not set")
	}
	key, err := crypto.HexToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("SWAPCTL_PRIVATE_KEY: %w", err)
	}
	return key, nil
}

func signingClient(url string) (*xlp.Client, error) {
	key, err := signingKey()
	if err != nil {
		return nil, err
	}
	return xlp.NewClient(url, key), nil
}

// readRequest loads and structurally validates a swap request file.
func readRequest(path string) (swap.Request, error) {
	if path == "" {
		return swap.Request{}, fmt.Errorf("--request is required")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return swap.Request{}, err
	}
	var req swap.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return swap.Request{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := req.Validate(); err != nil {
		return swap.Request{}, fmt.Errorf("%s: %w", path, err)
	}
	return req, nil
}

func parseAmount(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("--amount is required")
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() <= 0 {
		return nil, fmt.Errorf("amount %q is not a positive integer", s)
	}
	return n, nil
}

func parseVerdict(s string) (paymaster.Verdict, error) {
	switch strings.ToLower(s) {
	case "slashed":
		return paymaster.VerdictSlashed, nil
	case "successful":
		return paymaster.VerdictSuccessful, nil
	default:
		return paymaster.VerdictNone, fmt.Errorf("verdict must be slashed or successful, got %q", s)
	}
}

// parseChains splits a comma separated chain id list. Zero and duplicate
// ids are rejected, and a useful set has at least two members.
func parseChains(list string) ([]uint64, error) {
	seen := make(map[uint64]bool)
	var ids []uint64
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("chain id %q: %w", part, err)
		}
		if id == 0 {
			return nil, fmt.Errorf("chain id 0 is reserved")
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate chain id %d", id)
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) < 2 {
		return nil, fmt.Errorf("need at least two chain ids, got %d", len(ids))
	}
	return ids, nil
}

// orderedPairs yields every (src, dst) pair of distinct ids in both
// directions.
func orderedPairs(ids []uint64) [][2]uint64 {
	var pairs [][2]uint64
	for _, src := range ids {
		for _, dst := range ids {
			if src != dst {
				pairs = append(pairs, [2]uint64{src, dst})
			}
		}
	}
	return pairs
}

func redisConn(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
