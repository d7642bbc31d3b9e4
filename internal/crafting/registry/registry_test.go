package registry

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rsned/craftqueue/pkg/crafting"
)

func copperOre() crafting.RecipeDefinition {
	return crafting.RecipeDefinition{
		Name:     "mine_copper",
		Outputs:  []crafting.ResourceAmount{{Kind: crafting.CopperOre, Amount: 1}},
		Duration: 20833 * time.Millisecond,
	}
}

func TestRegisterAndLookup(t *testing.T) {
	r := New()
	h, err := r.Register(copperOre())
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if h == 0 {
		t.Fatalf("expected non-zero handle")
	}

	def, err := r.Lookup(h)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if def.Name != "mine_copper" || def.Duration != 20833*time.Millisecond {
		t.Fatalf("unexpected definition: %+v", def)
	}

	byName, _, err := r.LookupByName("mine_copper")
	if err != nil || byName != h {
		t.Fatalf("lookup by name: handle %d err %v", byName, err)
	}
}

func TestHandlesAreFresh(t *testing.T) {
	r := New()
	a, _ := r.Register(copperOre())
	b := copperOre()
	b.Name = "mine_copper_fast"
	h2, err := r.Register(b)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if a == h2 {
		t.Fatalf("expected distinct handles, got %d twice", a)
	}
}

func TestRegisterRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		def  crafting.RecipeDefinition
	}{
		{"empty name", crafting.RecipeDefinition{}},
		{"negative duration", crafting.RecipeDefinition{Name: "x", Duration: -time.Second}},
		{"negative input", crafting.RecipeDefinition{
			Name:   "x",
			Inputs: []crafting.ResourceAmount{{Kind: crafting.Coal, Amount: -1}},
		}},
		{"negative output", crafting.RecipeDefinition{
			Name:    "x",
			Outputs: []crafting.ResourceAmount{{Kind: crafting.Coal, Amount: -1}},
		}},
		{"unknown kind", crafting.RecipeDefinition{
			Name:    "x",
			Outputs: []crafting.ResourceAmount{{Kind: "Gold", Amount: 1}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New()
			if _, err := r.Register(tt.def); !errors.Is(err, ErrRegistration) {
				t.Fatalf("expected ErrRegistration, got %v", err)
			}
			if r.Len() != 0 {
				t.Fatalf("registry accepted malformed definition")
			}
		})
	}
}

func TestRegisterRejectsDuplicateName(t *testing.T) {
	r := New()
	if _, err := r.Register(copperOre()); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := r.Register(copperOre()); !errors.Is(err, ErrRegistration) {
		t.Fatalf("expected ErrRegistration, got %v", err)
	}
}

func TestLookupUnknown(t *testing.T) {
	r := New()
	if _, err := r.Lookup(42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoredDefinitionIsImmutable(t *testing.T) {
	r := New()
	def := copperOre()
	h, _ := r.Register(def)

	def.Outputs[0].Amount = 99
	got, _ := r.Lookup(h)
	if got.Outputs[0].Amount != 1 {
		t.Fatalf("caller mutation leaked into registry")
	}

	got.Outputs[0].Amount = 77
	again, _ := r.Lookup(h)
	if again.Outputs[0].Amount != 1 {
		t.Fatalf("lookup result mutation leaked into registry")
	}
}

func TestReplaceAndRemove(t *testing.T) {
	r := New()
	h, _ := r.Register(copperOre())

	next := copperOre()
	next.Name = "mine_copper_v2"
	next.Duration = time.Second
	if err := r.Replace(h, next); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, _ := r.Lookup(h)
	if got.Duration != time.Second {
		t.Fatalf("expected replaced duration, got %s", got.Duration)
	}
	if _, _, err := r.LookupByName("mine_copper"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("old name still resolves: %v", err)
	}

	bad := next
	bad.Duration = -1
	if err := r.Replace(h, bad); !errors.Is(err, ErrRegistration) {
		t.Fatalf("expected ErrRegistration, got %v", err)
	}

	if err := r.Remove(h); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := r.Lookup(h); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after remove, got %v", err)
	}
	if err := r.Replace(h, next); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound replacing removed handle, got %v", err)
	}
}

func TestSearch(t *testing.T) {
	r := New()
	_, _ = r.Register(copperOre())
	smelt := crafting.RecipeDefinition{Name: "smelt_copper", Duration: 3 * time.Second}
	_, _ = r.Register(smelt)

	hits := r.Search("COPPER", 0)
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits := r.Search("smelt", 0); len(hits) != 1 || hits[0].DurationMs != 3000 {
		t.Fatalf("unexpected hits: %+v", hits)
	}
	if hits := r.Search("copper", 1); len(hits) != 1 {
		t.Fatalf("limit not applied: %+v", hits)
	}
}

func TestConcurrentReaders(t *testing.T) {
	r := New()
	h, _ := r.Register(copperOre())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if _, err := r.Lookup(h); err != nil {
					t.Errorf("lookup: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()
}
