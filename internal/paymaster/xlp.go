package paymaster

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/xlplabs/crosspay/internal/stake"
	"github.com/xlplabs/crosspay/internal/swap"
)

// MaxXlpPageSize caps one page of the XLP listing.
const MaxXlpPageSize = 500

// XlpInfo is the public view of a registered liquidity provider.
type XlpInfo struct {
	L1Address    common.Address `json:"l1_address"`
	L2Address    common.Address `json:"l2_address"`
	RegisteredAt int64          `json:"registered_at"`
}

// ApplyXlpRegistration admits an XLP into the registry. Registration is
// set-union: the first sight of an L1 address appends it in registration
// order, a duplicate is a no-op, so replaying relay facts is harmless.
func (p *Paymaster) ApplyXlpRegistration(l1, l2 common.Address) error {
	if l1 == (common.Address{}) {
		return fmt.Errorf("%w: zero l1 address", swap.ErrUnauthorizedXlp)
	}
	now := p.clock.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	if existing := p.xlps[l1]; existing != nil {
		p.log.Debug("duplicate xlp registration", zap.String("l1", l1.Hex()))
		return nil
	}
	p.xlps[l1] = &xlpAccount{
		l1:           l1,
		l2:           l2,
		registeredAt: now,
		balances:     make(map[common.Address]*big.Int),
	}
	p.xlpOrder = append(p.xlpOrder, l1)
	p.log.Info("xlp registered", zap.String("l1", l1.Hex()), zap.String("l2", l2.Hex()))
	return nil
}

// RegisterXlpDirect admits an XLP without a bridge fact. Permitted only
// when the instance runs with the disabled connector; production
// deployments must register through the bridge.
func (p *Paymaster) RegisterXlpDirect(l1, l2 common.Address) error {
	if !p.params.AllowDirectXlpRegistration {
		return fmt.Errorf("%w: direct registration requires the disabled bridge connector", swap.ErrUnauthorizedCaller)
	}
	return p.ApplyXlpRegistration(l1, l2)
}

// DepositToXlp moves funds from an account into the paymaster's custody,
// credited to the XLP's internal balance on this chain. These funds back
// the XLP's redemptions here.
func (p *Paymaster) DepositToXlp(from, xlp common.Address, asset swap.Asset) error {
	if asset.Amount == nil || asset.Amount.Sign() <= 0 {
		return fmt.Errorf("%w: deposit must be positive", swap.ErrInsufficientAmount)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	acct := p.xlps[xlp]
	if acct == nil {
		return fmt.Errorf("%w: %s not registered", swap.ErrUnauthorizedXlp, xlp.Hex())
	}
	if err := p.bank.Transfer(from, p.params.Address, asset.Token, asset.Amount); err != nil {
		return err
	}
	p.creditXlpLocked(acct, asset.Token, asset.Amount)

	p.log.Info("xlp deposit",
		zap.String("xlp", xlp.Hex()),
		zap.String("token", asset.Token.Hex()),
		zap.String("amount", asset.Amount.String()))
	return nil
}

// NativeBalanceOf returns the XLP's internal native balance here.
func (p *Paymaster) NativeBalanceOf(xlp common.Address) *big.Int {
	return p.TokenBalanceOf(xlp, common.Address{})
}

// TokenBalanceOf returns the XLP's internal balance for one token.
// Unregistered XLPs report zero.
func (p *Paymaster) TokenBalanceOf(xlp, tok common.Address) *big.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if acct := p.xlps[xlp]; acct != nil {
		if bal := acct.balances[tok]; bal != nil {
			return new(big.Int).Set(bal)
		}
	}
	return new(big.Int)
}

// Xlps pages through the registry in registration order. The order is
// deterministic: governed by first registration, never reshuffled.
func (p *Paymaster) Xlps(offset, limit int) []XlpInfo {
	if limit <= 0 || limit > MaxXlpPageSize {
		limit = MaxXlpPageSize
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	if offset < 0 || offset >= len(p.xlpOrder) {
		return []XlpInfo{}
	}
	end := offset + limit
	if end > len(p.xlpOrder) {
		end = len(p.xlpOrder)
	}
	page := make([]XlpInfo, 0, end-offset)
	for _, l1 := range p.xlpOrder[offset:end] {
		acct := p.xlps[l1]
		page = append(page, XlpInfo{
			L1Address:    acct.l1,
			L2Address:    acct.l2,
			RegisteredAt: acct.registeredAt,
		})
	}
	return page
}

// XlpCount returns the number of registered XLPs.
func (p *Paymaster) XlpCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.xlpOrder)
}

// Stake escrows native collateral for (xlp, chainID): funds move into
// paymaster custody and the stake manager records them.
func (p *Paymaster) Stake(xlp common.Address, chainID uint64, amount *big.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.bank.Transfer(xlp, p.params.Address, common.Address{}, amount); err != nil {
		return err
	}
	if err := p.stakes.Stake(xlp, chainID, amount); err != nil {
		// Undo the escrow; the stake was never recorded.
		if uerr := p.bank.Transfer(p.params.Address, xlp, common.Address{}, amount); uerr != nil {
			return fmt.Errorf("%w (escrow return failed: %v)", err, uerr)
		}
		return err
	}
	p.log.Info("stake added",
		zap.String("xlp", xlp.Hex()),
		zap.Uint64("chain_id", chainID),
		zap.String("amount", amount.String()))
	return nil
}

// RequestUnstake starts the unstake delay for part of the active stake.
func (p *Paymaster) RequestUnstake(xlp common.Address, chainID uint64, amount *big.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stakes.RequestUnstake(xlp, chainID, amount)
}

// WithdrawUnstaked releases matured pending stake back to the XLP.
func (p *Paymaster) WithdrawUnstaked(xlp common.Address, chainID uint64) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out, err := p.stakes.WithdrawUnstaked(xlp, chainID)
	if err != nil {
		return nil, err
	}
	if err := p.bank.Transfer(p.params.Address, xlp, common.Address{}, out); err != nil {
		return nil, err
	}
	p.log.Info("stake withdrawn",
		zap.String("xlp", xlp.Hex()),
		zap.Uint64("chain_id", chainID),
		zap.String("amount", out.String()))
	return out, nil
}

// StakeInfo exposes the stake record for reads.
func (p *Paymaster) StakeInfo(xlp common.Address, chainID uint64) *stake.Info {
	return p.stakes.StakeInfo(xlp, chainID)
}
