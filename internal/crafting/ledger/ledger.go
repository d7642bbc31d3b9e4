// Package ledger tracks the resources owned by a single actor.
package ledger

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/rsned/craftqueue/pkg/crafting"
)

var (
	// ErrInsufficientResource is returned when a debit would go negative.
	ErrInsufficientResource = errors.New("insufficient resource")
	// ErrOverflow is returned when a credit exceeds the representable range.
	// The balance is clamped to math.MaxInt64 when this is returned.
	ErrOverflow = errors.New("resource balance overflow")
	// ErrNegativeAmount is returned for credits or debits below zero.
	ErrNegativeAmount = errors.New("negative resource amount")
)

// Ledger maps resource kinds to owned quantities.
// A Ledger is owned by one actor and is not safe for concurrent use.
type Ledger struct {
	balances map[crafting.ResourceKind]int64
}

// New creates an empty Ledger.
func New() *Ledger {
	return &Ledger{balances: make(map[crafting.ResourceKind]int64)}
}

// Credit adds amount to kind.
func (l *Ledger) Credit(kind crafting.ResourceKind, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("credit %s: %w: %d", kind, ErrNegativeAmount, amount)
	}
	cur := l.balances[kind]
	if amount > math.MaxInt64-cur {
		l.balances[kind] = math.MaxInt64
		return fmt.Errorf("credit %d %s: %w", amount, kind, ErrOverflow)
	}
	l.balances[kind] = cur + amount
	return nil
}

// Debit subtracts amount from kind.
func (l *Ledger) Debit(kind crafting.ResourceKind, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("debit %s: %w: %d", kind, ErrNegativeAmount, amount)
	}
	cur := l.balances[kind]
	if cur < amount {
		return fmt.Errorf("debit %d %s (have %d): %w", amount, kind, cur, ErrInsufficientResource)
	}
	l.balances[kind] = cur - amount
	return nil
}

// DebitAll subtracts every amount or nothing at all.
// Repeated kinds are summed before checking.
func (l *Ledger) DebitAll(amounts []crafting.ResourceAmount) error {
	need := make(map[crafting.ResourceKind]int64, len(amounts))
	for _, a := range amounts {
		if a.Amount < 0 {
			return fmt.Errorf("debit %s: %w: %d", a.Kind, ErrNegativeAmount, a.Amount)
		}
		if a.Amount > math.MaxInt64-need[a.Kind] {
			return fmt.Errorf("debit %s: %w", a.Kind, ErrInsufficientResource)
		}
		need[a.Kind] += a.Amount
	}
	for kind, amount := range need {
		if have := l.balances[kind]; have < amount {
			return fmt.Errorf("debit %d %s (have %d): %w", amount, kind, have, ErrInsufficientResource)
		}
	}
	for kind, amount := range need {
		l.balances[kind] -= amount
	}
	return nil
}

// Balance returns the quantity held for kind; zero if never seen.
func (l *Ledger) Balance(kind crafting.ResourceKind) int64 {
	return l.balances[kind]
}

// Snapshot returns a copy of all balances.
func (l *Ledger) Snapshot() map[crafting.ResourceKind]int64 {
	out := make(map[crafting.ResourceKind]int64, len(l.balances))
	for k, v := range l.balances {
		out[k] = v
	}
	return out
}

// Amounts returns all balances sorted by kind.
func (l *Ledger) Amounts() []crafting.ResourceAmount {
	out := make([]crafting.ResourceAmount, 0, len(l.balances))
	for k, v := range l.balances {
		out = append(out, crafting.ResourceAmount{Kind: k, Amount: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}
