package xlp

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xlplabs/crosspay/internal/api"
	"github.com/xlplabs/crosspay/internal/auth"
	"github.com/xlplabs/crosspay/internal/paymaster"
	"github.com/xlplabs/crosspay/internal/stake"
	"github.com/xlplabs/crosspay/internal/swap"
	"github.com/xlplabs/crosspay/internal/voucher"
)

// Client is a wallet-signed REST client for one paymaster instance.
// Writes carry EIP-191 auth headers signed with the wallet key; reads go
// out bare.
type Client struct {
	baseURL string
	key     *ecdsa.PrivateKey
	http    *http.Client
}

func NewClient(baseURL string, key *ecdsa.PrivateKey) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path, action string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if action != "" {
		headers, err := auth.BuildHeaders(c.key, action, "", nil, 0)
		if err != nil {
			return nil, fmt.Errorf("sign request: %w", err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.http.Do(req)
}

// apiError folds the service's {"error": ...} body into the returned error.
func apiError(op string, resp *http.Response) error {
	var e struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&e)
	if e.Error != "" {
		return fmt.Errorf("crosspay %s: status %d: %s", op, resp.StatusCode, e.Error)
	}
	return fmt.Errorf("crosspay %s: status %d", op, resp.StatusCode)
}

// ── Swap lifecycle ──────────────────────────────────────────────────────────

func (c *Client) Lock(ctx context.Context, req swap.Request) (common.Hash, error) {
	resp, err := c.do(ctx, http.MethodPost, "/v1/swaps", api.ActionLock, req)
	if err != nil {
		return common.Hash{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return common.Hash{}, apiError("lock", resp)
	}
	var out struct {
		ID common.Hash `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return common.Hash{}, err
	}
	return out.ID, nil
}

func (c *Client) Cancel(ctx context.Context, req swap.Request) error {
	resp, err := c.do(ctx, http.MethodPost, "/v1/swaps/cancel", api.ActionCancel, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError("cancel", resp)
	}
	return nil
}

func (c *Client) IssueVouchers(ctx context.Context, subs []voucher.Submission) error {
	resp, err := c.do(ctx, http.MethodPost, "/v1/vouchers", api.ActionIssueVouchers, api.IssueRequest{Submissions: subs})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError("issue vouchers", resp)
	}
	return nil
}

func (c *Client) Withdraw(ctx context.Context, reqs []swap.Request) error {
	resp, err := c.do(ctx, http.MethodPost, "/v1/withdrawals", api.ActionWithdraw, api.WithdrawRequest{Requests: reqs})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError("withdraw", resp)
	}
	return nil
}

func (c *Client) Redeem(ctx context.Context, v *voucher.Voucher) error {
	resp, err := c.do(ctx, http.MethodPost, "/v1/redeem", api.ActionRedeem, v)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError("redeem", resp)
	}
	return nil
}

func (c *Client) RaiseDispute(ctx context.Context, id common.Hash) error {
	resp, err := c.do(ctx, http.MethodPost, "/v1/disputes", api.ActionDispute, api.DisputeRequest{ID: id})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError("dispute", resp)
	}
	return nil
}

// ResolveDispute submits the oracle proof and returns the final status.
func (c *Client) ResolveDispute(ctx context.Context, req swap.Request, proof []byte) (string, error) {
	resp, err := c.do(ctx, http.MethodPost, "/v1/disputes/resolve", api.ActionResolveDispute,
		api.ResolveRequest{Request: req, Proof: proof})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", apiError("resolve dispute", resp)
	}
	var out struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Status, nil
}

// ── Reads ───────────────────────────────────────────────────────────────────

// Swap fetches one swap record. A missing record returns (nil, nil).
func (c *Client) Swap(ctx context.Context, id common.Hash) (*api.SwapView, error) {
	resp, err := c.do(ctx, http.MethodGet, "/v1/swaps/"+id.Hex(), "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError("get swap", resp)
	}
	var v api.SwapView
	return &v, json.NewDecoder(resp.Body).Decode(&v)
}

// Incoming fetches one redemption record. A missing record returns (nil, nil).
func (c *Client) Incoming(ctx context.Context, id common.Hash) (*api.IncomingView, error) {
	resp, err := c.do(ctx, http.MethodGet, "/v1/incoming/"+id.Hex(), "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError("get incoming", resp)
	}
	var v api.IncomingView
	return &v, json.NewDecoder(resp.Body).Decode(&v)
}

func (c *Client) Xlps(ctx context.Context, offset, limit int) ([]paymaster.XlpInfo, int, error) {
	path := fmt.Sprintf("/v1/xlps?offset=%d&limit=%d", offset, limit)
	resp, err := c.do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, 0, apiError("list xlps", resp)
	}
	var out struct {
		Xlps  []paymaster.XlpInfo `json:"xlps"`
		Count int                 `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, 0, err
	}
	return out.Xlps, out.Count, nil
}

// Balance reads an XLP's internal balances. The token balance is only
// populated when token is non-zero.
func (c *Client) Balance(ctx context.Context, xlp, token common.Address) (native, tok *big.Int, err error) {
	path := "/v1/xlps/" + xlp.Hex() + "/balance"
	if token != (common.Address{}) {
		path += "?token=" + token.Hex()
	}
	resp, err := c.do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil, apiError("balance", resp)
	}
	var out struct {
		Native *big.Int `json:"native"`
		Token  *big.Int `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, nil, err
	}
	return out.Native, out.Token, nil
}

// ── XLP account ─────────────────────────────────────────────────────────────

func (c *Client) DepositToXlp(ctx context.Context, xlp common.Address, asset swap.Asset) error {
	resp, err := c.do(ctx, http.MethodPost, "/v1/xlps/deposit", api.ActionXlpDeposit,
		api.XlpDepositRequest{Xlp: xlp, Asset: asset})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError("xlp deposit", resp)
	}
	return nil
}

func (c *Client) Stake(ctx context.Context, chainID uint64, amount *big.Int) error {
	resp, err := c.do(ctx, http.MethodPost, "/v1/stake", api.ActionStake,
		api.StakeRequest{ChainID: chainID, Amount: amount})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError("stake", resp)
	}
	return nil
}

func (c *Client) Unstake(ctx context.Context, chainID uint64, amount *big.Int) error {
	resp, err := c.do(ctx, http.MethodPost, "/v1/stake/unstake", api.ActionUnstake,
		api.StakeRequest{ChainID: chainID, Amount: amount})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError("unstake", resp)
	}
	return nil
}

func (c *Client) WithdrawStake(ctx context.Context, chainID uint64) (*big.Int, error) {
	resp, err := c.do(ctx, http.MethodPost, "/v1/stake/withdraw", api.ActionWithdrawStake,
		api.StakeWithdrawRequest{ChainID: chainID})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apiError("withdraw stake", resp)
	}
	var out struct {
		Withdrawn *big.Int `json:"withdrawn"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.Withdrawn, nil
}

// StakeInfo reads the stake record for xlp on chainID. A missing record
// returns (nil, nil).
func (c *Client) StakeInfo(ctx context.Context, xlp common.Address, chainID uint64) (*stake.Info, error) {
	path := fmt.Sprintf("/v1/stake/%s?chain=%d", xlp.Hex(), chainID)
	resp, err := c.do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError("stake info", resp)
	}
	var out struct {
		Stake *stake.Info `json:"stake"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.Stake, nil
}
