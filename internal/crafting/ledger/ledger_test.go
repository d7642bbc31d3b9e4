package ledger

import (
	"errors"
	"math"
	"testing"

	"github.com/rsned/craftqueue/pkg/crafting"
)

func TestCreditCreatesEntry(t *testing.T) {
	l := New()
	if got := l.Balance(crafting.CopperOre); got != 0 {
		t.Fatalf("expected 0 for unseen kind, got %d", got)
	}
	if err := l.Credit(crafting.CopperOre, 3); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := l.Credit(crafting.CopperOre, 2); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if got := l.Balance(crafting.CopperOre); got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}
}

func TestCreditOverflowClamps(t *testing.T) {
	l := New()
	if err := l.Credit(crafting.Coal, math.MaxInt64-1); err != nil {
		t.Fatalf("credit: %v", err)
	}
	err := l.Credit(crafting.Coal, 5)
	if !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
	if got := l.Balance(crafting.Coal); got != math.MaxInt64 {
		t.Fatalf("expected clamp to MaxInt64, got %d", got)
	}
}

func TestNegativeAmounts(t *testing.T) {
	l := New()
	if err := l.Credit(crafting.Stone, -1); !errors.Is(err, ErrNegativeAmount) {
		t.Fatalf("credit: expected ErrNegativeAmount, got %v", err)
	}
	if err := l.Debit(crafting.Stone, -1); !errors.Is(err, ErrNegativeAmount) {
		t.Fatalf("debit: expected ErrNegativeAmount, got %v", err)
	}
}

func TestDebit(t *testing.T) {
	l := New()
	_ = l.Credit(crafting.IronOre, 4)

	if err := l.Debit(crafting.IronOre, 5); !errors.Is(err, ErrInsufficientResource) {
		t.Fatalf("expected ErrInsufficientResource, got %v", err)
	}
	if got := l.Balance(crafting.IronOre); got != 4 {
		t.Fatalf("failed debit changed balance: %d", got)
	}
	if err := l.Debit(crafting.IronOre, 4); err != nil {
		t.Fatalf("debit: %v", err)
	}
	if got := l.Balance(crafting.IronOre); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestDebitAllIsAtomic(t *testing.T) {
	l := New()
	_ = l.Credit(crafting.CopperOre, 2)
	_ = l.Credit(crafting.Coal, 1)

	err := l.DebitAll([]crafting.ResourceAmount{
		{Kind: crafting.CopperOre, Amount: 1},
		{Kind: crafting.Coal, Amount: 2},
	})
	if !errors.Is(err, ErrInsufficientResource) {
		t.Fatalf("expected ErrInsufficientResource, got %v", err)
	}
	if l.Balance(crafting.CopperOre) != 2 || l.Balance(crafting.Coal) != 1 {
		t.Fatalf("partial debit applied: %v", l.Snapshot())
	}

	// Repeated kinds are summed.
	err = l.DebitAll([]crafting.ResourceAmount{
		{Kind: crafting.CopperOre, Amount: 1},
		{Kind: crafting.CopperOre, Amount: 2},
	})
	if !errors.Is(err, ErrInsufficientResource) {
		t.Fatalf("expected summed kinds to be insufficient, got %v", err)
	}

	if err := l.DebitAll([]crafting.ResourceAmount{
		{Kind: crafting.CopperOre, Amount: 2},
		{Kind: crafting.Coal, Amount: 1},
	}); err != nil {
		t.Fatalf("debit all: %v", err)
	}
	if l.Balance(crafting.CopperOre) != 0 || l.Balance(crafting.Coal) != 0 {
		t.Fatalf("unexpected balances: %v", l.Snapshot())
	}
}

func TestAmountsSorted(t *testing.T) {
	l := New()
	_ = l.Credit(crafting.Stone, 1)
	_ = l.Credit(crafting.Coal, 2)
	_ = l.Credit(crafting.IronOre, 3)

	got := l.Amounts()
	if len(got) != 3 {
		t.Fatalf("expected 3 amounts, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].Kind > got[i].Kind {
			t.Fatalf("amounts not sorted: %v", got)
		}
	}
}
