package queue

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rsned/craftqueue/internal/crafting/ledger"
	"github.com/rsned/craftqueue/pkg/crafting"
)

// RecipeSource resolves recipe handles. *registry.Registry satisfies it.
type RecipeSource interface {
	Lookup(h crafting.RecipeHandle) (crafting.RecipeDefinition, error)
}

// Ledger is the resource store credited on completion.
// *ledger.Ledger satisfies it.
type Ledger interface {
	Credit(kind crafting.ResourceKind, amount int64) error
	DebitAll(amounts []crafting.ResourceAmount) error
}

// InputPolicy controls whether recipe inputs are deducted on completion.
type InputPolicy int

const (
	// InputsConsume debits a recipe's inputs when it completes. A task whose
	// inputs are not available stays at the head, blocked, until they are.
	InputsConsume InputPolicy = iota
	// InputsIgnore credits outputs without touching inputs.
	InputsIgnore
)

// String returns the config name of the policy.
func (p InputPolicy) String() string {
	switch p {
	case InputsConsume:
		return "consume"
	case InputsIgnore:
		return "ignore"
	default:
		return fmt.Sprintf("InputPolicy(%d)", int(p))
	}
}

// ParseInputPolicy converts a config name into an InputPolicy.
func ParseInputPolicy(s string) (InputPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "consume":
		return InputsConsume, nil
	case "ignore":
		return InputsIgnore, nil
	default:
		return 0, fmt.Errorf("unknown input policy %q", s)
	}
}

// Outcome records one task leaving the head of the queue, or getting blocked there.
type Outcome struct {
	Task   crafting.CraftTask
	Recipe crafting.RecipeDefinition
	Kind   crafting.EventKind
	Err    error
}

// Result summarizes one call to Advance.
type Result struct {
	Outcomes   []Outcome
	BudgetLeft time.Duration
	Blocked    bool
}

// Completed returns the number of tasks that finished.
func (r Result) Completed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Kind == crafting.EventCompleted {
			n++
		}
	}
	return n
}

// Advancer drains work budgets across craft queues.
type Advancer struct {
	policy InputPolicy
	logger *slog.Logger
}

// NewAdvancer creates an Advancer.
func NewAdvancer(policy InputPolicy, logger *slog.Logger) *Advancer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Advancer{policy: policy, logger: logger}
}

// Advance runs the default Advancer: inputs consumed, default logger.
func Advance(q *Queue, l Ledger, recipes RecipeSource, budget time.Duration) Result {
	return NewAdvancer(InputsConsume, nil).Advance(q, l, recipes, budget)
}

// Advance spends up to budget of craft time on q, head first.
//
// A task that finishes with budget left over hands the remainder to the next
// task in the same call. Tasks whose recipe no longer resolves are dropped
// without consuming budget. The loop ends when the budget is spent, the
// queue is empty, or the head task is blocked on inputs.
func (a *Advancer) Advance(q *Queue, l Ledger, recipes RecipeSource, budget time.Duration) Result {
	var res Result
	if budget < 0 {
		budget = 0
	}

	// Every iteration either pops the head or exits.
	guard := len(q.tasks) + 1

	for budget > 0 && len(q.tasks) > 0 {
		if guard == 0 {
			a.logger.Error("advance loop exceeded queue length", "queue_len", len(q.tasks))
			break
		}
		guard--

		task := &q.tasks[0]

		def, err := recipes.Lookup(task.Recipe)
		if err != nil {
			task.State = crafting.TaskDropped
			a.logger.Warn("dropping task with dangling recipe",
				"task_id", task.ID, "recipe", task.Recipe, "error", err)
			res.Outcomes = append(res.Outcomes, Outcome{Task: *task, Kind: crafting.EventDropped, Err: err})
			q.popHead()
			continue
		}

		remaining := def.Duration - task.TimeSpent
		if remaining < 0 {
			// The recipe was replaced with a shorter duration.
			remaining = 0
		}
		spend := min(budget, remaining)
		task.TimeSpent += spend
		budget -= spend

		if task.TimeSpent < def.Duration {
			task.State = crafting.TaskInProgress
			break
		}

		if a.policy == InputsConsume {
			if err := l.DebitAll(def.Inputs); err != nil {
				res.Blocked = true
				if task.State != crafting.TaskBlocked {
					task.State = crafting.TaskBlocked
					a.logger.Info("task blocked on inputs",
						"task_id", task.ID, "recipe", def.Name, "error", err)
					res.Outcomes = append(res.Outcomes, Outcome{Task: *task, Recipe: def, Kind: crafting.EventBlocked, Err: err})
				}
				break
			}
		}

		for _, out := range def.Outputs {
			if err := l.Credit(out.Kind, out.Amount); err != nil {
				if errors.Is(err, ledger.ErrOverflow) {
					a.logger.Warn("ledger credit clamped", "task_id", task.ID, "kind", out.Kind, "error", err)
					continue
				}
				a.logger.Error("ledger credit failed", "task_id", task.ID, "kind", out.Kind, "error", err)
			}
		}

		task.State = crafting.TaskCompleted
		a.logger.Debug("task completed", "task_id", task.ID, "recipe", def.Name)
		res.Outcomes = append(res.Outcomes, Outcome{Task: *task, Recipe: def, Kind: crafting.EventCompleted})
		q.popHead()
	}

	res.BudgetLeft = budget
	return res
}
