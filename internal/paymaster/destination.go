package paymaster

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/xlplabs/crosspay/internal/swap"
	"github.com/xlplabs/crosspay/internal/voucher"
)

// RedeemVoucher executes the destination leg of a swap: the XLP's funds
// held by this paymaster pay the recipient the promised assets, and the
// XLP's native balance covers the gas-reimbursement ceiling. Each request
// id redeems at most once; replays fail with ErrAlreadyClaimed.
func (p *Paymaster) RedeemVoucher(v *voucher.Voucher) error {
	if v == nil {
		return fmt.Errorf("%w: nil voucher", swap.ErrVoucherMismatch)
	}
	if v.Dest.ChainID != p.params.ChainID {
		return fmt.Errorf("%w: voucher for chain %d", swap.ErrWrongChain, v.Dest.ChainID)
	}
	if v.Dest.Paymaster != p.params.Address {
		return fmt.Errorf("%w: voucher for paymaster %s", swap.ErrWrongChain, v.Dest.Paymaster.Hex())
	}
	now := p.clock.Now()
	if now >= v.ExpiresAt {
		return fmt.Errorf("%w: voucher expired at %d", swap.ErrVoucherExpired, v.ExpiresAt)
	}
	if v.Dest.ExpiresAt > 0 && now >= v.Dest.ExpiresAt {
		return fmt.Errorf("%w: destination terms expired at %d", swap.ErrVoucherExpired, v.Dest.ExpiresAt)
	}
	recovered, err := voucher.Verify(v, p.chainID, p.params.Address)
	if err != nil {
		return fmt.Errorf("%w: %v", swap.ErrUnauthorizedXlp, err)
	}
	if recovered != v.Xlp {
		return fmt.Errorf("%w: signature recovers to %s, voucher names %s",
			swap.ErrUnauthorizedXlp, recovered.Hex(), v.Xlp.Hex())
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	acct := p.xlps[v.Xlp]
	if acct == nil {
		return fmt.Errorf("%w: %s not registered", swap.ErrUnauthorizedXlp, v.Xlp.Hex())
	}
	if in := p.incoming[v.RequestID]; in != nil && in.Status != swap.IncomingNone {
		return fmt.Errorf("request %s: %w", v.RequestID, swap.ErrAlreadyClaimed)
	}

	// The XLP's internal balance must cover the delivery assets plus the
	// native gas ceiling before anything commits.
	needs := make(map[common.Address]*big.Int)
	for _, a := range v.Dest.Assets {
		if a.Amount == nil || a.Amount.Sign() <= 0 {
			return fmt.Errorf("%w: bad delivery amount", swap.ErrInsufficientAmount)
		}
		if n, ok := needs[a.Token]; ok {
			n.Add(n, a.Amount)
		} else {
			needs[a.Token] = new(big.Int).Set(a.Amount)
		}
	}
	if c := v.Dest.MaxUserOpCost; c != nil && c.Sign() > 0 {
		if n, ok := needs[common.Address{}]; ok {
			n.Add(n, c)
		} else {
			needs[common.Address{}] = new(big.Int).Set(c)
		}
	}
	for tok, need := range needs {
		bal := acct.balances[tok]
		if bal == nil || bal.Cmp(need) < 0 {
			return fmt.Errorf("%w: xlp %s funds short for token %s",
				swap.ErrTransferFailed, v.Xlp.Hex(), tok.Hex())
		}
	}

	p.incoming[v.RequestID] = &swap.Incoming{
		Status:    swap.IncomingClaimed,
		ClaimedAt: now,
		Xlp:       v.Xlp,
	}
	for tok, need := range needs {
		acct.balances[tok].Sub(acct.balances[tok], need)
	}
	// The gas ceiling stays in custody as the executor's reimbursement
	// pool; only the delivery assets leave to the recipient.
	if err := p.bank.TransferAssets(p.params.Address, v.Dest.Recipient, v.Dest.Assets); err != nil {
		for tok, need := range needs {
			acct.balances[tok].Add(acct.balances[tok], need)
		}
		delete(p.incoming, v.RequestID)
		return err
	}

	p.log.Info("voucher redeemed",
		zap.String("request_id", v.RequestID.Hex()),
		zap.String("xlp", v.Xlp.Hex()),
		zap.String("recipient", v.Dest.Recipient.Hex()))
	return nil
}
