package indicator

import (
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"
)

func setupRegistry(t *testing.T, closes []float64) *Registry {
	t.Helper()
	r := NewRegistry(zerolog.New(nil))
	r.SetBars(barsFromCloses(closes))
	return r
}

func TestRegistryAdd(t *testing.T) {
	r := setupRegistry(t, []float64{1, 2, 3, 4, 5})

	def, err := r.Add("my ma", "MA(CLOSE,3)", "#ff0000", 2)
	if err != nil {
		t.Fatalf("expected add to succeed, got %v", err)
	}
	if def.ID == "" {
		t.Error("expected generated id")
	}
	if def.Name != "my ma" || def.Formula != "MA(CLOSE,3)" {
		t.Errorf("unexpected definition: %+v", def)
	}

	defs := r.List()
	if len(defs) != 1 || defs[0].ID != def.ID {
		t.Errorf("expected one definition, got %+v", defs)
	}
}

func TestRegistryAddInvalidFormulaLeavesStateUnchanged(t *testing.T) {
	r := setupRegistry(t, []float64{1, 2, 3})

	_, err := r.Add("bad", "XCLOSE", "", 1)
	if err == nil {
		t.Fatal("expected add to fail")
	}

	var ferr *FormulaError
	if !errors.As(err, &ferr) {
		t.Fatalf("expected *FormulaError, got %T", err)
	}
	if ferr.Kind != ErrUnknownField {
		t.Errorf("expected %s, got %s", ErrUnknownField, ferr.Kind)
	}

	if len(r.List()) != 0 {
		t.Error("expected registry to be unchanged after failed add")
	}
}

func TestRegistryInsertionOrder(t *testing.T) {
	r := setupRegistry(t, []float64{1, 2, 3, 4, 5})

	first, _ := r.Add("a", "CLOSE", "", 1)
	second, _ := r.Add("b", "OPEN", "", 1)
	third, _ := r.Add("c", "HIGH", "", 1)

	defs := r.List()
	if len(defs) != 3 {
		t.Fatalf("expected 3 definitions, got %d", len(defs))
	}
	if defs[0].ID != first.ID || defs[1].ID != second.ID || defs[2].ID != third.ID {
		t.Error("expected definitions in insertion order")
	}

	// Removing the middle one preserves the order of the rest.
	if err := r.Remove(second.ID); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	defs = r.List()
	if len(defs) != 2 || defs[0].ID != first.ID || defs[1].ID != third.ID {
		t.Error("expected remaining definitions in insertion order")
	}
}

func TestRegistryUpdate(t *testing.T) {
	r := setupRegistry(t, []float64{1, 2, 3, 4, 5})
	def, _ := r.Add("ma", "MA(CLOSE,3)", "#ff0000", 1)

	t.Run("id is invariant", func(t *testing.T) {
		updated, err := r.Update(def.ID, "ma5", "MA(CLOSE,5)", "#00ff00", 2)
		if err != nil {
			t.Fatalf("update failed: %v", err)
		}
		if updated.ID != def.ID {
			t.Error("expected id to be unchanged")
		}
		if updated.Formula != "MA(CLOSE,5)" || updated.Name != "ma5" {
			t.Errorf("unexpected definition after update: %+v", updated)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := r.Update("missing", "x", "CLOSE", "", 1)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("invalid formula leaves definition unchanged", func(t *testing.T) {
		_, err := r.Update(def.ID, "bad", "FOO(CLOSE,2)", "", 1)
		if err == nil {
			t.Fatal("expected update to fail")
		}
		current, _ := r.Get(def.ID)
		if current.Formula != "MA(CLOSE,5)" {
			t.Errorf("expected formula unchanged, got %s", current.Formula)
		}
	})
}

func TestRegistryUpdateIdempotent(t *testing.T) {
	r := setupRegistry(t, []float64{1, 2, 3, 4, 5, 6, 7, 8})
	def, _ := r.Add("ma", "MA(CLOSE,3)", "#ff0000", 1)

	before, err := r.Series(def.ID)
	if err != nil {
		t.Fatalf("series failed: %v", err)
	}

	if _, err := r.Update(def.ID, "ma", "MA(CLOSE,3)", "#ff0000", 1); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	after, err := r.Series(def.ID)
	if err != nil {
		t.Fatalf("series failed: %v", err)
	}

	if len(before) != len(after) {
		t.Fatalf("series length changed: %d vs %d", len(before), len(after))
	}
	for i := range before {
		if math.IsNaN(before[i]) != math.IsNaN(after[i]) {
			t.Fatalf("series NaN pattern changed at index %d", i)
		}
		if !math.IsNaN(before[i]) && before[i] != after[i] {
			t.Errorf("series value changed at index %d: %f vs %f", i, before[i], after[i])
		}
	}
}

func TestRegistryRemove(t *testing.T) {
	r := setupRegistry(t, []float64{1, 2, 3})
	def, _ := r.Add("x", "CLOSE", "", 1)

	if err := r.Remove(def.ID); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if err := r.Remove(def.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second remove, got %v", err)
	}
	if _, err := r.Get(def.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after remove, got %v", err)
	}
}

func TestRegistrySeriesRecomputedOnBarChange(t *testing.T) {
	r := setupRegistry(t, []float64{1, 2, 3})
	def, _ := r.Add("close", "CLOSE", "", 1)

	series, _ := r.Series(def.ID)
	if len(series) != 3 || series[2] != 3 {
		t.Fatalf("unexpected initial series: %v", series)
	}

	r.SetBars(barsFromCloses([]float64{10, 20}))

	series, _ = r.Series(def.ID)
	if len(series) != 2 || series[1] != 20 {
		t.Errorf("expected series recomputed for new bars, got %v", series)
	}
}

func TestRegistrySeriesRecomputedOnFormulaChange(t *testing.T) {
	r := setupRegistry(t, []float64{1, 2, 3, 4})
	def, _ := r.Add("x", "CLOSE", "", 1)

	series, _ := r.Series(def.ID)
	if series[3] != 4 {
		t.Fatalf("unexpected initial series: %v", series)
	}

	if _, err := r.Update(def.ID, "x", "CLOSE * 2", "", 1); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	series, _ = r.Series(def.ID)
	if series[3] != 8 {
		t.Errorf("expected updated formula to apply, got %v", series)
	}
}

func TestRegistryShrunkHistoryDegradesToAllNull(t *testing.T) {
	// A saved indicator whose window no longer fits the bar sequence
	// produces an all-null series and an insufficient-history
	// diagnostic, never an error.
	r := setupRegistry(t, make([]float64, 30))
	def, _ := r.Add("ma", "MA(CLOSE,20)", "", 1)

	r.SetBars(barsFromCloses([]float64{1, 2, 3, 4, 5}))

	series, err := r.Series(def.ID)
	if err != nil {
		t.Fatalf("series failed: %v", err)
	}
	if len(series) != 5 {
		t.Fatalf("expected 5 values, got %d", len(series))
	}
	for i, v := range series {
		if !math.IsNaN(v) {
			t.Errorf("expected NaN at index %d, got %f", i, v)
		}
	}

	analysis, diagnostic, err := r.Analysis(def.ID)
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
	if analysis != nil {
		t.Error("expected no analysis")
	}
	if diagnostic == nil || diagnostic.Reason != ReasonInsufficientHistory {
		t.Fatalf("expected insufficient history diagnostic, got %+v", diagnostic)
	}
	if diagnostic.Required != 20 || diagnostic.Available != 5 {
		t.Errorf("expected required=20 available=5, got %d/%d", diagnostic.Required, diagnostic.Available)
	}
}

func TestRegistrySeed(t *testing.T) {
	r := NewRegistry(zerolog.New(nil))
	r.Seed([]Definition{
		{ID: "id-1", Name: "a", Formula: "CLOSE", Color: "#fff", LineWidth: 1},
		{ID: "id-2", Name: "bad", Formula: "XCLOSE", Color: "", LineWidth: 1},
		{ID: "id-3", Name: "c", Formula: "MA(CLOSE,5)", Color: "", LineWidth: 2},
	})

	defs := r.List()
	if len(defs) != 2 {
		t.Fatalf("expected invalid persisted formula to be skipped, got %d definitions", len(defs))
	}
	if defs[0].ID != "id-1" || defs[1].ID != "id-3" {
		t.Errorf("expected seeded order preserved, got %+v", defs)
	}
}
