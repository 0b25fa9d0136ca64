// Package stake implements per-XLP collateral accounting. An XLP stakes
// per destination chain; voucher issuance requires the stake on the
// request's destination chain to be at or above the configured minimum.
// Unstaking is two-phase with a delay so a misbehaving XLP cannot exit
// ahead of a dispute.
package stake

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xlplabs/crosspay/internal/clock"
	"github.com/xlplabs/crosspay/internal/swap"
)

// Params bound the staking rules for one chain instance.
type Params struct {
	MinStakePerChain *big.Int
	MaxChainsPerXlp  int
	UnstakeDelay     int64 // seconds between requestUnstake and withdrawUnstaked
}

type record struct {
	active             *big.Int
	pending            *big.Int
	unstakeRequestedAt int64
}

// Info is a read-only snapshot of one (xlp, chain) stake record.
type Info struct {
	Active             *big.Int `json:"active"`
	Pending            *big.Int `json:"pending"`
	UnstakeRequestedAt int64    `json:"unstake_requested_at,omitempty"`
}

// Manager tracks stake records. Slashing is restricted to the single
// authorized address fixed at construction (the engine).
type Manager struct {
	mu      sync.RWMutex
	params  Params
	clock   clock.Clock
	slasher common.Address
	stakes  map[common.Address]map[uint64]*record // xlp -> chainID -> record
}

func NewManager(params Params, clk clock.Clock, slasher common.Address) *Manager {
	return &Manager{
		params:  params,
		clock:   clk,
		slasher: slasher,
		stakes:  make(map[common.Address]map[uint64]*record),
	}
}

// Stake credits active stake for (xlp, chainID). A first stake on a new
// chain counts against MaxChainsPerXlp.
func (m *Manager) Stake(xlp common.Address, chainID uint64, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: stake amount must be positive", swap.ErrInsufficientAmount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	chains, ok := m.stakes[xlp]
	if !ok {
		chains = make(map[uint64]*record)
		m.stakes[xlp] = chains
	}
	rec, ok := chains[chainID]
	if !ok {
		if m.params.MaxChainsPerXlp > 0 && len(chains) >= m.params.MaxChainsPerXlp {
			return fmt.Errorf("%w: %d chains", swap.ErrTooManyChains, len(chains))
		}
		rec = &record{active: new(big.Int), pending: new(big.Int)}
		chains[chainID] = rec
	}
	rec.active.Add(rec.active, amount)
	return nil
}

// RequestUnstake moves amount from active to pending and starts the
// unstake delay. A repeated request adds to pending and restarts the
// delay for the whole pending balance.
func (m *Manager) RequestUnstake(xlp common.Address, chainID uint64, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: unstake amount must be positive", swap.ErrInsufficientAmount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.stakes[xlp][chainID]
	if rec == nil || rec.active.Cmp(amount) < 0 {
		return fmt.Errorf("%w: active stake below unstake amount", swap.ErrInsufficientStake)
	}
	rec.active.Sub(rec.active, amount)
	rec.pending.Add(rec.pending, amount)
	rec.unstakeRequestedAt = m.clock.Now()
	return nil
}

// WithdrawUnstaked releases the pending balance once the delay has
// elapsed, returning the released amount.
func (m *Manager) WithdrawUnstaked(xlp common.Address, chainID uint64) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.stakes[xlp][chainID]
	if rec == nil || rec.pending.Sign() == 0 {
		return nil, fmt.Errorf("%w: nothing pending", swap.ErrInsufficientAmount)
	}
	if m.clock.Now() < rec.unstakeRequestedAt+m.params.UnstakeDelay {
		return nil, fmt.Errorf("%w: unstake delay still running", swap.ErrDelayNotElapsed)
	}
	out := new(big.Int).Set(rec.pending)
	rec.pending.SetInt64(0)
	m.pruneLocked(xlp, chainID)
	return out, nil
}

// Slash destroys amount of the XLP's stake on chainID, draining active
// first and then pending. Only the authorized slasher may call it; the
// reduction is irrevocable.
func (m *Manager) Slash(caller, xlp common.Address, chainID uint64, amount *big.Int) error {
	if caller != m.slasher {
		return fmt.Errorf("%w: caller may not slash", swap.ErrUnauthorizedXlp)
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: slash amount must be positive", swap.ErrInsufficientAmount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.stakes[xlp][chainID]
	if rec == nil {
		return fmt.Errorf("%w: no stake on chain %d", swap.ErrInsufficientStake, chainID)
	}
	total := new(big.Int).Add(rec.active, rec.pending)
	if total.Cmp(amount) < 0 {
		return fmt.Errorf("%w: stake %s short of slash %s", swap.ErrInsufficientStake, total, amount)
	}
	remaining := new(big.Int).Set(amount)
	if rec.active.Cmp(remaining) >= 0 {
		rec.active.Sub(rec.active, remaining)
	} else {
		remaining.Sub(remaining, rec.active)
		rec.active.SetInt64(0)
		rec.pending.Sub(rec.pending, remaining)
	}
	m.pruneLocked(xlp, chainID)
	return nil
}

// ActiveStake returns a copy of the active stake for (xlp, chainID).
func (m *Manager) ActiveStake(xlp common.Address, chainID uint64) *big.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if rec := m.stakes[xlp][chainID]; rec != nil {
		return new(big.Int).Set(rec.active)
	}
	return new(big.Int)
}

// Eligible reports whether the XLP meets the minimum stake on chainID.
func (m *Manager) Eligible(xlp common.Address, chainID uint64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec := m.stakes[xlp][chainID]
	if rec == nil {
		return false
	}
	min := m.params.MinStakePerChain
	if min == nil || min.Sign() <= 0 {
		return rec.active.Sign() > 0
	}
	return rec.active.Cmp(min) >= 0
}

// StakeInfo returns a snapshot of one record, or nil if none exists.
func (m *Manager) StakeInfo(xlp common.Address, chainID uint64) *Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec := m.stakes[xlp][chainID]
	if rec == nil {
		return nil
	}
	return &Info{
		Active:             new(big.Int).Set(rec.active),
		Pending:            new(big.Int).Set(rec.pending),
		UnstakeRequestedAt: rec.unstakeRequestedAt,
	}
}

// MinStake returns the configured per-chain minimum.
func (m *Manager) MinStake() *big.Int {
	if m.params.MinStakePerChain == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(m.params.MinStakePerChain)
}

// SlashableStake returns active+pending for (xlp, chainID).
func (m *Manager) SlashableStake(xlp common.Address, chainID uint64) *big.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if rec := m.stakes[xlp][chainID]; rec != nil {
		return new(big.Int).Add(rec.active, rec.pending)
	}
	return new(big.Int)
}

// pruneLocked drops an emptied record so the chain slot frees up.
func (m *Manager) pruneLocked(xlp common.Address, chainID uint64) {
	rec := m.stakes[xlp][chainID]
	if rec != nil && rec.active.Sign() == 0 && rec.pending.Sign() == 0 {
		delete(m.stakes[xlp], chainID)
		if len(m.stakes[xlp]) == 0 {
			delete(m.stakes, xlp)
		}
	}
}
