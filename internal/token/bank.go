// Package token models per-chain asset custody: native and token balances
// per account. One Bank backs one chain instance; the paymaster engine
// moves user deposits and XLP funds through it.
package token

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xlplabs/crosspay/internal/swap"
)

// Bank is an in-memory asset ledger. The zero token address denotes the
// chain's native asset. All balance mutations are atomic per call.
type Bank struct {
	mu       sync.RWMutex
	balances map[common.Address]map[common.Address]*big.Int // account -> token -> amount
}

func NewBank() *Bank {
	return &Bank{balances: make(map[common.Address]map[common.Address]*big.Int)}
}

// Mint credits an account out of thin air. Non-positive amounts are
// ignored. Used for genesis funding and deposits entering the system.
func (b *Bank) Mint(account, token common.Address, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.creditLocked(account, token, amount)
}

// Burn destroys amount from an account's balance.
func (b *Bank) Burn(account, token common.Address, amount *big.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.debitLocked(account, token, amount)
}

// Transfer moves amount of token between accounts. Fails without side
// effects when the source balance is insufficient.
func (b *Bank) Transfer(from, to, token common.Address, amount *big.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.transferLocked(from, to, token, amount)
}

// TransferAssets moves each asset in order from one account to another.
// If a later leg fails, earlier legs are reversed, so the call is
// all-or-nothing.
func (b *Bank) TransferAssets(from, to common.Address, assets []swap.Asset) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, a := range assets {
		if err := b.transferLocked(from, to, a.Token, a.Amount); err != nil {
			for j := i - 1; j >= 0; j-- {
				if uerr := b.transferLocked(to, from, assets[j].Token, assets[j].Amount); uerr != nil {
					// Reversal of a just-applied leg cannot fail; guard anyway.
					return fmt.Errorf("asset %d: %w (unwind failed: %v)", i, err, uerr)
				}
			}
			return fmt.Errorf("asset %d: %w", i, err)
		}
	}
	return nil
}

// BalanceOf returns a copy of the account's balance for token.
func (b *Bank) BalanceOf(account, token common.Address) *big.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if bal, ok := b.balances[account][token]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

func (b *Bank) transferLocked(from, to, token common.Address, amount *big.Int) error {
	if err := b.debitLocked(from, token, amount); err != nil {
		return err
	}
	b.creditLocked(to, token, amount)
	return nil
}

func (b *Bank) creditLocked(account, token common.Address, amount *big.Int) {
	accts, ok := b.balances[account]
	if !ok {
		accts = make(map[common.Address]*big.Int)
		b.balances[account] = accts
	}
	if bal, ok := accts[token]; ok {
		bal.Add(bal, amount)
	} else {
		accts[token] = new(big.Int).Set(amount)
	}
}

func (b *Bank) debitLocked(account, token common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("%w: invalid amount", swap.ErrTransferFailed)
	}
	if amount.Sign() == 0 {
		return nil
	}
	bal, ok := b.balances[account][token]
	if !ok || bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: balance %s short of %s for token %s",
			swap.ErrTransferFailed, b.balanceString(account, token), amount, token.Hex())
	}
	bal.Sub(bal, amount)
	return nil
}

func (b *Bank) balanceString(account, token common.Address) string {
	if bal, ok := b.balances[account][token]; ok {
		return bal.String()
	}
	return "0"
}
