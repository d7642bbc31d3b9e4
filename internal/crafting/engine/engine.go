// Package engine owns every actor's craft queue and ledger and advances them each tick.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rsned/craftqueue/internal/crafting/db"
	"github.com/rsned/craftqueue/internal/crafting/eventlog"
	"github.com/rsned/craftqueue/internal/crafting/ledger"
	"github.com/rsned/craftqueue/internal/crafting/queue"
	"github.com/rsned/craftqueue/internal/crafting/registry"
	"github.com/rsned/craftqueue/pkg/crafting"
)

var (
	// ErrUnknownActor is returned for actor IDs that were never added.
	ErrUnknownActor = errors.New("unknown actor")
	// ErrActorExists is returned when adding an actor twice.
	ErrActorExists = errors.New("actor already exists")
	// ErrNoHistory is returned by CraftHistory when no event store is configured.
	ErrNoHistory = errors.New("no event store configured")
)

// actor is the state one actor owns exclusively.
type actor struct {
	mu     sync.Mutex
	queue  *queue.Queue
	ledger *ledger.Ledger
}

// Options configure an Engine.
type Options struct {
	Policy   queue.InputPolicy
	Interval time.Duration
	Store    *db.RecipeStore
	Events   *db.EventStore
	Sink     eventlog.Sink
	Logger   *slog.Logger
	Now      func() time.Time
}

// Engine advances craft queues for many actors against one recipe registry.
type Engine struct {
	recipes  *registry.Registry
	store    *db.RecipeStore
	events   *db.EventStore
	advancer *queue.Advancer
	policy   queue.InputPolicy
	interval time.Duration
	sink     eventlog.Sink
	logger   *slog.Logger
	now      func() time.Time
	runID    string

	mu       sync.Mutex
	actors   map[string]*actor
	nextTask uint64
}

// New creates an Engine over the given registry.
func New(recipes *registry.Registry, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		recipes:  recipes,
		store:    opts.Store,
		events:   opts.Events,
		advancer: queue.NewAdvancer(opts.Policy, opts.Logger),
		policy:   opts.Policy,
		interval: opts.Interval,
		sink:     opts.Sink,
		logger:   opts.Logger,
		now:      opts.Now,
		runID:    uuid.NewString(),
		actors:   make(map[string]*actor),
	}
}

// RunID identifies this engine instance in emitted events.
func (e *Engine) RunID() string {
	return e.runID
}

// Registry returns the recipe registry.
func (e *Engine) Registry() *registry.Registry {
	return e.recipes
}

// AddActor creates an actor with an empty queue and ledger.
func (e *Engine) AddActor(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", ErrUnknownActor)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.actors[id]; ok {
		return fmt.Errorf("%w: %s", ErrActorExists, id)
	}
	e.actors[id] = &actor{queue: queue.New(), ledger: ledger.New()}
	return nil
}

// Actors returns all actor IDs in sorted order.
func (e *Engine) Actors() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := make([]string, 0, len(e.actors))
	for id := range e.actors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (e *Engine) actor(id string) (*actor, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.actors[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownActor, id)
	}
	return a, nil
}

// Credit adds resources to an actor's ledger outside of crafting.
func (e *Engine) Credit(actorID string, kind crafting.ResourceKind, amount int64) error {
	if !kind.IsValid() {
		return fmt.Errorf("unknown resource kind %q", kind)
	}
	a, err := e.actor(actorID)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ledger.Credit(kind, amount)
}

// Enqueue appends a task for the named recipe to an actor's queue.
func (e *Engine) Enqueue(actorID, recipeName string) (uint64, error) {
	h, _, err := e.recipes.LookupByName(recipeName)
	if err != nil {
		return 0, err
	}
	return e.EnqueueHandle(actorID, h)
}

// EnqueueHandle appends a task for recipe h to an actor's queue.
func (e *Engine) EnqueueHandle(actorID string, h crafting.RecipeHandle) (uint64, error) {
	if _, err := e.recipes.Lookup(h); err != nil {
		return 0, err
	}
	a, err := e.actor(actorID)
	if err != nil {
		return 0, err
	}

	e.mu.Lock()
	e.nextTask++
	id := e.nextTask
	e.mu.Unlock()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.queue.Push(crafting.CraftTask{ID: id, Recipe: h})
	return id, nil
}

// AdvanceAll advances every actor's queue by budget, in actor ID order.
// A failure in one actor never stops the others.
func (e *Engine) AdvanceAll(ctx context.Context, tick uint64, budget time.Duration) {
	for _, id := range e.Actors() {
		if ctx.Err() != nil {
			return
		}
		if _, err := e.AdvanceActor(ctx, id, tick, budget); err != nil {
			e.logger.Error("advancing actor", "actor", id, "tick", tick, "error", err)
		}
	}
}

// AdvanceActor advances one actor's queue by budget and publishes the resulting events.
func (e *Engine) AdvanceActor(ctx context.Context, actorID string, tick uint64, budget time.Duration) (queue.Result, error) {
	a, err := e.actor(actorID)
	if err != nil {
		return queue.Result{}, err
	}

	res, err := e.advanceLocked(a, budget)
	if err != nil {
		return res, err
	}

	at := e.now()
	for _, o := range res.Outcomes {
		ev := e.eventFor(actorID, tick, at, o)
		if e.sink == nil {
			continue
		}
		if err := e.sink.Publish(ctx, ev); err != nil {
			e.logger.Warn("publishing craft event", "actor", actorID, "task_id", ev.TaskID, "error", err)
		}
	}
	return res, nil
}

func (e *Engine) advanceLocked(a *actor, budget time.Duration) (res queue.Result, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("advance panicked: %v", r)
		}
	}()
	return e.advancer.Advance(a.queue, a.ledger, e.recipes, budget), nil
}

func (e *Engine) eventFor(actorID string, tick uint64, at time.Time, o queue.Outcome) crafting.CompletionEvent {
	ev := crafting.CompletionEvent{
		RunID:      e.runID,
		ActorID:    actorID,
		TaskID:     o.Task.ID,
		Recipe:     o.Task.Recipe,
		RecipeName: o.Recipe.Name,
		Kind:       o.Kind,
		Tick:       tick,
		At:         at,
	}
	if o.Err != nil {
		ev.Reason = o.Err.Error()
	}
	switch o.Kind {
	case crafting.EventCompleted:
		ev.Outputs = o.Recipe.Outputs
		if e.policy == queue.InputsConsume {
			ev.Inputs = o.Recipe.Inputs
		}
	case crafting.EventBlocked:
		ev.Inputs = o.Recipe.Inputs
	}
	return ev
}
