package indicator

import (
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrNotFound is returned for operations on an indicator id that is
// not in the registry.
var ErrNotFound = errors.New("indicator not found")

// Definition is a user-defined indicator: a formula plus chart style.
type Definition struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Formula   string `json:"formula"`
	Color     string `json:"color"`
	LineWidth int    `json:"line_width"`
}

// entry pairs a definition with its compiled expression and lazily
// computed results.
type entry struct {
	def  Definition
	expr Expr

	// Cached results, valid only when fresh is true. Series and
	// analysis are recomputed together so a reader never observes a
	// partially stale pair.
	fresh      bool
	series     Series
	analysis   *Analysis
	diagnostic *Diagnostic
}

// Registry owns the named indicator definitions and their computed
// results over the current bar sequence. It is not safe for concurrent
// use; the engine actor serializes access.
type Registry struct {
	logger zerolog.Logger
	bars   []Bar
	order  []*entry
	byID   map[string]*entry
}

// NewRegistry creates an empty registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		logger: logger.With().Str("component", "indicator_registry").Logger(),
		byID:   make(map[string]*entry),
	}
}

// SetBars replaces the bar sequence and invalidates every cached
// series. Results are recomputed lazily on the next read.
func (r *Registry) SetBars(bars []Bar) {
	r.bars = bars
	for _, e := range r.order {
		e.fresh = false
	}
	r.logger.Debug().Int("bars", len(bars)).Msg("Bar sequence replaced")
}

// Bars returns the current bar sequence.
func (r *Registry) Bars() []Bar {
	return r.bars
}

// Add compiles the formula and, if valid, stores a new definition with
// a generated id. On a compile error the registry is left unmodified.
func (r *Registry) Add(name, formula, color string, lineWidth int) (Definition, error) {
	expr, ferr := Compile(formula)
	if ferr != nil {
		return Definition{}, ferr
	}

	def := Definition{
		ID:        uuid.NewString(),
		Name:      name,
		Formula:   formula,
		Color:     color,
		LineWidth: lineWidth,
	}
	e := &entry{def: def, expr: expr}
	r.order = append(r.order, e)
	r.byID[def.ID] = e

	r.warnIfShortHistory(e)
	r.logger.Info().
		Str("id", def.ID).
		Str("name", name).
		Str("formula", formula).
		Msg("Indicator added")
	return def, nil
}

// Update replaces the definition with the given id in place. The id is
// invariant. On a compile error or unknown id the registry is left
// unmodified.
func (r *Registry) Update(id, name, formula, color string, lineWidth int) (Definition, error) {
	e, ok := r.byID[id]
	if !ok {
		return Definition{}, ErrNotFound
	}

	expr, ferr := Compile(formula)
	if ferr != nil {
		return Definition{}, ferr
	}

	e.def.Name = name
	e.def.Formula = formula
	e.def.Color = color
	e.def.LineWidth = lineWidth
	e.expr = expr
	e.fresh = false

	r.warnIfShortHistory(e)
	r.logger.Info().
		Str("id", id).
		Str("formula", formula).
		Msg("Indicator updated")
	return e.def, nil
}

// Remove deletes the definition with the given id.
func (r *Registry) Remove(id string) error {
	if _, ok := r.byID[id]; !ok {
		return ErrNotFound
	}
	delete(r.byID, id)
	for i, e := range r.order {
		if e.def.ID == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.logger.Info().Str("id", id).Msg("Indicator removed")
	return nil
}

// List returns the definitions in insertion order.
func (r *Registry) List() []Definition {
	defs := make([]Definition, len(r.order))
	for i, e := range r.order {
		defs[i] = e.def
	}
	return defs
}

// Get returns the definition with the given id.
func (r *Registry) Get(id string) (Definition, error) {
	e, ok := r.byID[id]
	if !ok {
		return Definition{}, ErrNotFound
	}
	return e.def, nil
}

// Series returns the computed series for the given id, recomputing it
// if the definition or bar sequence changed since the last read.
func (r *Registry) Series(id string) (Series, error) {
	e, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	r.refresh(e)
	return e.series, nil
}

// Analysis returns the classifier output for the given id. Exactly one
// of the analysis and the diagnostic is non-nil.
func (r *Registry) Analysis(id string) (*Analysis, *Diagnostic, error) {
	e, ok := r.byID[id]
	if !ok {
		return nil, nil, ErrNotFound
	}
	r.refresh(e)
	return e.analysis, e.diagnostic, nil
}

// Seed loads previously persisted definitions, preserving their ids
// and order. Definitions whose formula no longer compiles are skipped
// with a warning rather than aborting startup.
func (r *Registry) Seed(defs []Definition) {
	for _, def := range defs {
		expr, ferr := Compile(def.Formula)
		if ferr != nil {
			r.logger.Warn().
				Str("id", def.ID).
				Str("formula", def.Formula).
				Str("kind", string(ferr.Kind)).
				Msg("Skipping persisted indicator with invalid formula")
			continue
		}
		e := &entry{def: def, expr: expr}
		r.order = append(r.order, e)
		r.byID[def.ID] = e
	}
	r.logger.Info().Int("count", len(r.order)).Msg("Registry seeded from store")
}

// refresh recomputes the series and analysis together when stale, so
// the cached pair is always consistent.
func (r *Registry) refresh(e *entry) {
	if e.fresh {
		return
	}

	// A declared window longer than the history can only produce an
	// all-null series; skip the evaluation pass in that case.
	if required := e.expr.Lookback(); required > len(r.bars) {
		e.series = make(Series, len(r.bars))
		for i := range e.series {
			e.series[i] = nan
		}
		e.analysis = nil
		e.diagnostic = &Diagnostic{
			Reason:    ReasonInsufficientHistory,
			Required:  required,
			Available: len(r.bars),
		}
		e.fresh = true
		return
	}

	e.series = ComputeSeries(e.expr, r.bars)
	e.analysis, e.diagnostic = Analyze(e.expr, e.series)
	e.fresh = true
}

func (r *Registry) warnIfShortHistory(e *entry) {
	if required := e.expr.Lookback(); required > len(r.bars) {
		r.logger.Warn().
			Str("id", e.def.ID).
			Int("required", required).
			Int("available", len(r.bars)).
			Msg("Formula lookback exceeds available history")
	}
}
