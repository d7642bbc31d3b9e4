// Package queue holds an actor's craft queue and the algorithm that drains
// a tick's work budget across it.
package queue

import (
	"github.com/rsned/craftqueue/pkg/crafting"
)

// Queue is an ordered FIFO of craft tasks owned by one actor.
// Only the head task receives progress. A Queue is not safe for concurrent use.
type Queue struct {
	tasks []crafting.CraftTask
}

// New creates an empty Queue.
func New() *Queue {
	return &Queue{}
}

// Push appends a task at the tail. Negative progress is reset to zero.
func (q *Queue) Push(t crafting.CraftTask) {
	if t.TimeSpent < 0 {
		t.TimeSpent = 0
	}
	if t.State == "" {
		t.State = crafting.TaskPending
	}
	q.tasks = append(q.tasks, t)
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int {
	return len(q.tasks)
}

// Head returns a copy of the head task.
func (q *Queue) Head() (crafting.CraftTask, bool) {
	if len(q.tasks) == 0 {
		return crafting.CraftTask{}, false
	}
	return q.tasks[0], true
}

// Tasks returns a copy of the queued tasks in order.
func (q *Queue) Tasks() []crafting.CraftTask {
	return append([]crafting.CraftTask(nil), q.tasks...)
}

func (q *Queue) popHead() {
	q.tasks[0] = crafting.CraftTask{}
	q.tasks = q.tasks[1:]
	if len(q.tasks) == 0 {
		q.tasks = nil
	}
}
