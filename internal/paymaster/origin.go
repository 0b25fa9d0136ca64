package paymaster

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/xlplabs/crosspay/internal/swap"
	"github.com/xlplabs/crosspay/internal/voucher"
)

// LockUserDeposit escrows the origination assets for a new request and
// records it as NEW. The caller must be the request's sender. Returns the
// request id; identical content collides with ErrAlreadyExists.
func (p *Paymaster) LockUserDeposit(caller common.Address, req swap.Request) (common.Hash, error) {
	if err := req.Validate(); err != nil {
		return common.Hash{}, err
	}
	if req.Origination.ChainID != p.params.ChainID {
		return common.Hash{}, fmt.Errorf("%w: origination chain %d", swap.ErrWrongChain, req.Origination.ChainID)
	}
	if req.Origination.Paymaster != p.params.Address {
		return common.Hash{}, fmt.Errorf("%w: origination paymaster %s", swap.ErrWrongChain, req.Origination.Paymaster.Hex())
	}
	if caller != req.Origination.Sender {
		return common.Hash{}, fmt.Errorf("%w: only the sender may lock", swap.ErrUnauthorizedCaller)
	}

	id := req.ID()
	now := p.clock.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	if meta := p.swaps[id]; meta != nil && meta.Status != swap.StatusNone {
		return id, fmt.Errorf("request %s: %w", id, swap.ErrAlreadyExists)
	}
	p.swaps[id] = &swap.Metadata{Status: swap.StatusNew, LockedAt: now}
	if err := p.bank.TransferAssets(caller, p.params.Address, req.Origination.Assets); err != nil {
		delete(p.swaps, id)
		return id, err
	}

	p.log.Info("deposit locked",
		zap.String("request_id", id.Hex()),
		zap.String("sender", caller.Hex()),
		zap.Int("assets", len(req.Origination.Assets)))
	return id, nil
}

// IssueVouchers validates and commits a voucher batch. The batch is one
// atomic unit: every entry is validated first and any failure rejects the
// whole call with nothing committed. No funds move at issuance.
func (p *Paymaster) IssueVouchers(subs []voucher.Submission) error {
	if len(subs) == 0 {
		return nil
	}
	now := p.clock.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	type issuance struct {
		meta *swap.Metadata
		id   common.Hash
		l1   common.Address
		l2   common.Address
	}
	pending := make([]issuance, 0, len(subs))
	seen := make(map[common.Hash]struct{}, len(subs))

	for i, s := range subs {
		if err := s.Request.Validate(); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		id := s.Request.ID()
		if _, dup := seen[id]; dup {
			return fmt.Errorf("entry %d: request %s twice in batch: %w", i, id, swap.ErrAlreadyExists)
		}
		seen[id] = struct{}{}

		meta := p.swaps[id]
		if meta == nil || meta.Status == swap.StatusNone {
			return fmt.Errorf("entry %d: request %s: %w", i, id, swap.ErrUnknownRequest)
		}
		if meta.Status != swap.StatusNew {
			return fmt.Errorf("entry %d: request %s is %s: %w", i, id, meta.Status, swap.ErrInvalidStatus)
		}
		v := s.Voucher
		acct, err := p.validateVoucherLocked(s.Request, &v, id, now)
		if err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		pending = append(pending, issuance{meta: meta, id: id, l1: acct.l1, l2: acct.l2})
	}

	for _, iss := range pending {
		iss.meta.Status = swap.StatusVoucherIssued
		iss.meta.VoucherIssuedAt = now
		iss.meta.VoucherIssuerL1Xlp = iss.l1
		iss.meta.VoucherIssuerL2Xlp = iss.l2
		p.log.Info("voucher issued",
			zap.String("request_id", iss.id.Hex()),
			zap.String("xlp", iss.l1.Hex()))
	}
	return nil
}

// CancelVoucherRequest refunds a NEW request's exact principal to the
// sender once the cancellation delay has elapsed.
func (p *Paymaster) CancelVoucherRequest(caller common.Address, req swap.Request) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if caller != req.Origination.Sender {
		return fmt.Errorf("%w: only the sender may cancel", swap.ErrUnauthorizedCaller)
	}
	id := req.ID()
	now := p.clock.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	meta := p.swaps[id]
	if meta == nil || meta.Status == swap.StatusNone {
		return fmt.Errorf("request %s: %w", id, swap.ErrUnknownRequest)
	}
	if meta.Status != swap.StatusNew {
		return fmt.Errorf("request %s is %s: %w", id, meta.Status, swap.ErrInvalidStatus)
	}
	if now < meta.LockedAt+p.params.UserCancellationDelay {
		return fmt.Errorf("request %s cancellable at %d: %w",
			id, meta.LockedAt+p.params.UserCancellationDelay, swap.ErrDelayNotElapsed)
	}

	meta.Status = swap.StatusCancelled
	if err := p.bank.TransferAssets(p.params.Address, req.Origination.Sender, req.Origination.Assets); err != nil {
		meta.Status = swap.StatusNew
		return err
	}

	p.log.Info("request cancelled", zap.String("request_id", id.Hex()))
	return nil
}

// WithdrawFromUserDeposit settles issued vouchers: principal minus the
// elapsed-time fee goes to the issuing XLP, the fee is disposed per
// policy. The batch is one atomic unit. A request is withdrawable only
// after the unlock delay AND after the dispute window has strictly
// closed; a dispute raised at the window boundary beats withdrawal.
func (p *Paymaster) WithdrawFromUserDeposit(reqs []swap.Request) error {
	if len(reqs) == 0 {
		return nil
	}
	now := p.clock.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	type entry struct {
		req  swap.Request
		id   common.Hash
		meta *swap.Metadata
	}
	entries := make([]entry, 0, len(reqs))
	seen := make(map[common.Hash]struct{}, len(reqs))
	feeTotals := make(map[common.Address]*big.Int)

	for i, req := range reqs {
		if err := req.Validate(); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		id := req.ID()
		if _, dup := seen[id]; dup {
			return fmt.Errorf("entry %d: request %s twice in batch: %w", i, id, swap.ErrAlreadyExists)
		}
		seen[id] = struct{}{}

		meta := p.swaps[id]
		if meta == nil || meta.Status == swap.StatusNone {
			return fmt.Errorf("entry %d: request %s: %w", i, id, swap.ErrUnknownRequest)
		}
		if meta.Status != swap.StatusVoucherIssued {
			return fmt.Errorf("entry %d: request %s is %s: %w", i, id, meta.Status, swap.ErrInvalidStatus)
		}
		if now < meta.LockedAt+p.params.VoucherUnlockDelay {
			return fmt.Errorf("entry %d: unlock delay runs until %d: %w",
				i, meta.LockedAt+p.params.VoucherUnlockDelay, swap.ErrDelayNotElapsed)
		}
		if now <= meta.VoucherIssuedAt+p.params.DisputeWindow {
			return fmt.Errorf("entry %d: dispute window open until %d: %w",
				i, meta.VoucherIssuedAt+p.params.DisputeWindow, swap.ErrDelayNotElapsed)
		}
		if p.xlps[meta.VoucherIssuerL1Xlp] == nil {
			return fmt.Errorf("entry %d: issuer %s not registered", i, meta.VoucherIssuerL1Xlp.Hex())
		}
		elapsed := now - meta.LockedAt
		for _, a := range req.Origination.Assets {
			fee := req.Origination.Fee.FeeAmount(a.Amount, elapsed)
			if total, ok := feeTotals[a.Token]; ok {
				total.Add(total, fee)
			} else {
				feeTotals[a.Token] = fee
			}
		}
		entries = append(entries, entry{req: req, id: id, meta: meta})
	}

	// Custody must cover every fee disposal before anything commits, so
	// the commit loop below cannot fail partway.
	for tok, total := range feeTotals {
		if p.bank.BalanceOf(p.params.Address, tok).Cmp(total) < 0 {
			return fmt.Errorf("token %s custody short of fees: %w", tok.Hex(), swap.ErrTransferFailed)
		}
	}

	for _, e := range entries {
		if err := p.settleLocked(e.req, e.meta, now); err != nil {
			return err
		}
		p.log.Info("withdrawal settled",
			zap.String("request_id", e.id.Hex()),
			zap.String("xlp", e.meta.VoucherIssuerL1Xlp.Hex()))
	}
	return nil
}

// settleLocked marks one request SUCCESSFUL, crediting the issuer's
// internal balance with principal minus fee and disposing the fee.
// Caller holds p.mu and has verified status and timing.
func (p *Paymaster) settleLocked(req swap.Request, meta *swap.Metadata, now int64) error {
	issuer := p.xlps[meta.VoucherIssuerL1Xlp]
	if issuer == nil {
		return fmt.Errorf("issuer %s not registered: %w", meta.VoucherIssuerL1Xlp.Hex(), swap.ErrUnauthorizedXlp)
	}
	elapsed := now - meta.LockedAt
	meta.Status = swap.StatusSuccessful
	for _, a := range req.Origination.Assets {
		fee := req.Origination.Fee.FeeAmount(a.Amount, elapsed)
		share := new(big.Int).Sub(a.Amount, fee)
		p.creditXlpLocked(issuer, a.Token, share)
		if err := p.disposeFeeLocked(a.Token, fee); err != nil {
			return fmt.Errorf("dispose fee: %w", err)
		}
	}
	return nil
}

// RaiseDispute freezes an issued voucher pending resolution. Allowed
// while the dispute window is open; the boundary instant itself is still
// open, so a dispute beats a withdrawal racing it there.
func (p *Paymaster) RaiseDispute(id common.Hash) error {
	now := p.clock.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	meta := p.swaps[id]
	if meta == nil || meta.Status == swap.StatusNone {
		return fmt.Errorf("request %s: %w", id, swap.ErrUnknownRequest)
	}
	if meta.Status != swap.StatusVoucherIssued {
		return fmt.Errorf("request %s is %s: %w", id, meta.Status, swap.ErrInvalidStatus)
	}
	if now > meta.VoucherIssuedAt+p.params.DisputeWindow {
		return fmt.Errorf("request %s window closed at %d: %w",
			id, meta.VoucherIssuedAt+p.params.DisputeWindow, swap.ErrDisputeWindowClosed)
	}

	meta.Status = swap.StatusDisputed
	meta.DisputeRaisedAt = now
	p.log.Info("dispute raised", zap.String("request_id", id.Hex()))
	return nil
}

// ResolveDispute verifies an external proof and settles a DISPUTED
// request: SLASHED refunds the sender and slashes the issuer, SUCCESSFUL
// pays the issuer as a withdrawal would. Returns the final status.
func (p *Paymaster) ResolveDispute(ctx context.Context, req swap.Request, proof []byte) (swap.Status, error) {
	if err := req.Validate(); err != nil {
		return swap.StatusNone, err
	}
	id := req.ID()

	p.mu.RLock()
	meta := p.swaps[id]
	var status swap.Status
	if meta != nil {
		status = meta.Status
	}
	p.mu.RUnlock()

	if meta == nil || status == swap.StatusNone {
		return swap.StatusNone, fmt.Errorf("request %s: %w", id, swap.ErrUnknownRequest)
	}
	if status != swap.StatusDisputed {
		return status, fmt.Errorf("request %s is %s: %w", id, status, swap.ErrInvalidStatus)
	}

	// Verification may call out to an oracle; keep it outside the lock.
	// applyVerdict re-checks the status afterwards.
	verdict, err := p.verifier.Verify(ctx, id, proof)
	if err != nil {
		return status, fmt.Errorf("verify dispute proof: %w", err)
	}
	return p.applyVerdict(req, id, verdict, false)
}

// ApplyDisputeOutcome settles a dispute from a bridge-relayed verdict.
// Outcomes for already-settled requests are idempotent no-ops, so
// duplicate relay delivery is harmless.
func (p *Paymaster) ApplyDisputeOutcome(req swap.Request, verdict Verdict) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if verdict != VerdictSlashed && verdict != VerdictSuccessful {
		return fmt.Errorf("verdict %s settles nothing: %w", verdict, swap.ErrInvalidStatus)
	}
	_, err := p.applyVerdict(req, req.ID(), verdict, true)
	return err
}

func (p *Paymaster) applyVerdict(req swap.Request, id common.Hash, verdict Verdict, fromRelay bool) (swap.Status, error) {
	now := p.clock.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	meta := p.swaps[id]
	if meta == nil || meta.Status == swap.StatusNone {
		return swap.StatusNone, fmt.Errorf("request %s: %w", id, swap.ErrUnknownRequest)
	}
	if meta.Status != swap.StatusDisputed {
		if fromRelay && meta.Status.Terminal() {
			p.log.Debug("dispute outcome for settled request",
				zap.String("request_id", id.Hex()),
				zap.String("status", meta.Status.String()))
			return meta.Status, nil
		}
		return meta.Status, fmt.Errorf("request %s is %s: %w", id, meta.Status, swap.ErrInvalidStatus)
	}

	switch verdict {
	case VerdictSuccessful:
		if err := p.settleLocked(req, meta, now); err != nil {
			return meta.Status, err
		}
		p.log.Info("dispute resolved", zap.String("request_id", id.Hex()), zap.String("verdict", verdict.String()))
		return swap.StatusSuccessful, nil
	case VerdictSlashed:
		if err := p.slashSettleLocked(req, meta); err != nil {
			return meta.Status, err
		}
		p.log.Info("dispute resolved", zap.String("request_id", id.Hex()), zap.String("verdict", verdict.String()))
		return swap.StatusSlashed, nil
	default:
		return meta.Status, fmt.Errorf("verdict %s settles nothing: %w", verdict, swap.ErrInvalidStatus)
	}
}

// slashSettleLocked marks a request SLASHED: the sender gets the full
// principal back plus the unspent-voucher compensation from the issuer's
// internal balance, and the issuer loses the eligibility stake on the
// destination chain. Caller holds p.mu.
func (p *Paymaster) slashSettleLocked(req swap.Request, meta *swap.Metadata) error {
	sender := req.Origination.Sender
	issuerAddr := meta.VoucherIssuerL1Xlp

	meta.Status = swap.StatusSlashed
	if err := p.bank.TransferAssets(p.params.Address, sender, req.Origination.Assets); err != nil {
		meta.Status = swap.StatusDisputed
		return err
	}

	if issuer := p.xlps[issuerAddr]; issuer != nil {
		if bps := req.Origination.Fee.UnspentVoucherFeeBps; bps > 0 {
			for _, a := range req.Origination.Assets {
				comp := new(big.Int).Mul(a.Amount, big.NewInt(int64(bps)))
				comp.Div(comp, big.NewInt(swap.BpsDenominator))
				// Compensation is capped at what the issuer holds here.
				if bal := issuer.balances[a.Token]; bal == nil {
					comp.SetInt64(0)
				} else if bal.Cmp(comp) < 0 {
					comp.Set(bal)
				}
				if comp.Sign() > 0 && p.debitXlpLocked(issuer, a.Token, comp) == nil {
					if err := p.bank.Transfer(p.params.Address, sender, a.Token, comp); err != nil {
						p.creditXlpLocked(issuer, a.Token, comp)
					}
				}
			}
		}
	}

	slashAmt := p.stakes.SlashableStake(issuerAddr, req.Destination.ChainID)
	if min := p.stakes.MinStake(); min.Sign() > 0 && slashAmt.Cmp(min) > 0 {
		slashAmt = min
	}
	if slashAmt.Sign() > 0 {
		if err := p.stakes.Slash(p.params.Address, issuerAddr, req.Destination.ChainID, slashAmt); err != nil {
			p.log.Error("stake slash failed",
				zap.String("xlp", issuerAddr.Hex()),
				zap.Uint64("chain_id", req.Destination.ChainID),
				zap.Error(err))
		} else if err := p.disposeFeeLocked(common.Address{}, slashAmt); err != nil {
			p.log.Error("slashed stake disposal failed", zap.Error(err))
		}
	}
	return nil
}
