package seo

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/carsearch/internal/store"
	"github.com/JakeFAU/carsearch/internal/telemetry"
)

// TransitionTopic is the publisher topic for IndexTransition events.
const TransitionTopic = "index-transitions"

const lockStripes = 64

// maxLastKnown caps the in-process fallback cache. Paths are bounded by the
// allowlist in practice, but crawlers can mint arbitrary facet keys.
const maxLastKnown = 10000

// Thresholds configure the hysteresis band. IndexOff must be below IndexOn.
type Thresholds struct {
	IndexOn       int
	IndexOff      int
	MinIndexCount int
}

// Validate checks the band is well formed.
func (t Thresholds) Validate() error {
	if t.IndexOff >= t.IndexOn {
		return fmt.Errorf("index_off_threshold (%d) must be below index_on_threshold (%d)", t.IndexOff, t.IndexOn)
	}
	if t.MinIndexCount < 1 {
		return fmt.Errorf("min_index_count must be >= 1")
	}
	return nil
}

// IndexTransition is published whenever a key's decision flips.
type IndexTransition struct {
	ID    string         `json:"id,omitempty"`
	Key   string         `json:"key"`
	From  store.Decision `json:"from"`
	To    store.Decision `json:"to"`
	Count int            `json:"count"`
	At    time.Time      `json:"at"`
}

// Attributes exposes the key and target decision for subscription filters.
func (t IndexTransition) Attributes() map[string]string {
	return map[string]string{"key": t.Key, "to": string(t.To)}
}

// OrderingKey keeps transitions of one path in order.
func (t IndexTransition) OrderingKey() string { return t.Key }

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// IDGenerator mints event ids.
type IDGenerator interface {
	NewID() (string, error)
}

// Next is the pure hysteresis step. The opposite streak resets whenever a
// count lands on one side of the band; a count inside the band resets both.
func Next(prev store.HysteresisState, count int, th Thresholds) store.HysteresisState {
	next := prev
	if next.Decision == "" {
		next.Decision = store.DecisionNoindex
	}
	switch {
	case count >= th.IndexOn:
		next.ConsecutiveAboveOn++
		next.ConsecutiveBelowOff = 0
	case count <= th.IndexOff:
		next.ConsecutiveBelowOff++
		next.ConsecutiveAboveOn = 0
	default:
		next.ConsecutiveAboveOn = 0
		next.ConsecutiveBelowOff = 0
	}
	switch {
	case next.Decision == store.DecisionNoindex && next.ConsecutiveAboveOn >= th.MinIndexCount:
		next.Decision = store.DecisionIndex
	case next.Decision == store.DecisionIndex && next.ConsecutiveBelowOff >= th.MinIndexCount:
		next.Decision = store.DecisionNoindex
	}
	return next
}

// Hysteresis persists per-path streaks and decides indexability. Updates to
// the same key are serialized; different keys proceed in parallel.
type Hysteresis struct {
	store     store.StateStore
	th        Thresholds
	clock     Clock
	logger    *zap.Logger
	publisher store.Publisher
	ids       IDGenerator

	locks [lockStripes]sync.Mutex

	lkgMu    sync.RWMutex
	lkg      map[string]store.HysteresisState
	lkgLimit int
}

// NewHysteresis builds a controller. publisher and ids may be nil.
func NewHysteresis(
	st store.StateStore,
	th Thresholds,
	clock Clock,
	publisher store.Publisher,
	ids IDGenerator,
	logger *zap.Logger,
) *Hysteresis {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hysteresis{
		store:     st,
		th:        th,
		clock:     clock,
		logger:    logger,
		publisher: publisher,
		ids:       ids,
		lkg:       make(map[string]store.HysteresisState),
		lkgLimit:  maxLastKnown,
	}
}

// Decide records one observation of count for key and returns the
// resulting decision. A key seen for the first time starts at noindex.
// When the store cannot be read the last decision seen by this process is
// returned unchanged, or noindex if there is none.
func (h *Hysteresis) Decide(ctx context.Context, key string, count int) store.Decision {
	mu := &h.locks[stripe(key)]
	mu.Lock()
	defer mu.Unlock()

	prev, err := h.store.GetState(ctx, key)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		prev = store.HysteresisState{Decision: store.DecisionNoindex}
	default:
		if known, ok := h.lastKnown(key); ok {
			telemetry.ObserveFallback("state", "last_known_good")
			h.logger.Warn("state read failed; using last known decision",
				zap.String("key", key), zap.String("decision", string(known.Decision)), zap.Error(err))
			return known.Decision
		}
		telemetry.ObserveFallback("state", "fail_closed")
		h.logger.Error("state read failed; failing closed", zap.String("key", key), zap.Error(err))
		return store.DecisionNoindex
	}

	next := Next(prev, count, h.th)
	next.LastEvaluatedAt = h.clock.Now()
	if err := h.store.SetState(ctx, key, next); err != nil {
		h.logger.Warn("state write failed", zap.String("key", key), zap.Error(err))
	}
	h.remember(key, next)

	if prev.Decision != next.Decision {
		h.transition(ctx, IndexTransition{
			Key:   key,
			From:  prev.Decision,
			To:    next.Decision,
			Count: count,
			At:    next.LastEvaluatedAt,
		})
	}
	return next.Decision
}

// Preview returns the decision Decide would return for count without
// writing state or publishing a transition.
func (h *Hysteresis) Preview(ctx context.Context, key string, count int) store.Decision {
	prev, err := h.store.GetState(ctx, key)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		prev = store.HysteresisState{Decision: store.DecisionNoindex}
	default:
		if known, ok := h.lastKnown(key); ok {
			return known.Decision
		}
		return store.DecisionNoindex
	}
	return Next(prev, count, h.th).Decision
}

// PreviewDecider adapts Preview to the Decider interface so an Evaluator can
// answer without side effects.
type PreviewDecider struct {
	H *Hysteresis
}

// Decide implements Decider.
func (p PreviewDecider) Decide(ctx context.Context, key string, count int) store.Decision {
	return p.H.Preview(ctx, key, count)
}

func (h *Hysteresis) transition(ctx context.Context, evt IndexTransition) {
	telemetry.ObserveIndexTransition(string(evt.To))
	h.logger.Info("index decision changed",
		zap.String("key", evt.Key),
		zap.String("from", string(evt.From)),
		zap.String("to", string(evt.To)),
		zap.Int("count", evt.Count))
	if h.publisher == nil {
		return
	}
	if h.ids != nil {
		if id, err := h.ids.NewID(); err == nil {
			evt.ID = id
		}
	}
	if _, err := h.publisher.Publish(ctx, TransitionTopic, evt); err != nil {
		h.logger.Warn("publish index transition failed", zap.String("key", evt.Key), zap.Error(err))
	}
}

func (h *Hysteresis) lastKnown(key string) (store.HysteresisState, bool) {
	h.lkgMu.RLock()
	defer h.lkgMu.RUnlock()
	st, ok := h.lkg[key]
	return st, ok
}

// remember stores st as the fallback for key. A new key arriving at the cap
// evicts an arbitrary entry; an evicted key falls back to noindex.
func (h *Hysteresis) remember(key string, st store.HysteresisState) {
	h.lkgMu.Lock()
	defer h.lkgMu.Unlock()
	if _, ok := h.lkg[key]; !ok && len(h.lkg) >= h.lkgLimit {
		for victim := range h.lkg {
			delete(h.lkg, victim)
			break
		}
	}
	h.lkg[key] = st
}

func stripe(key string) uint32 {
	hash := fnv.New32a()
	_, _ = hash.Write([]byte(key))
	return hash.Sum32() % lockStripes
}
