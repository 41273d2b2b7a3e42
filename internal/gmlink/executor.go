package gmlink

import (
	"context"
	"log/slog"
	"sync"

	"github.com/udisondev/grimoire/internal/game/skill"
)

// Executor applies delegated commands with full privileges.
// Commands for one target are serialized, so the duplicate-kind check and
// conditional charge updates hold across every peer sharing the executor.
//
// It also satisfies skill.PermissionDelegate, so a process that holds the
// privileges itself can delegate in-process without a websocket hop.
type Executor struct {
	repo  skill.ActorRepository
	locks sync.Map // targetID -> *sync.Mutex
}

var _ skill.PermissionDelegate = (*Executor)(nil)

// NewExecutor creates an Executor over repo.
func NewExecutor(repo skill.ActorRepository) *Executor {
	return &Executor{repo: repo}
}

// Apply runs cmd and reports the result as an Ack. Never fails.
func (e *Executor) Apply(ctx context.Context, cmd skill.Command) skill.Ack {
	unlock := e.lock(cmd.TargetActorID)
	err := skill.ExecuteCommand(ctx, e.repo, cmd)
	unlock()

	if err != nil {
		slog.Warn("delegated command rejected",
			"commandID", cmd.ID,
			"operation", cmd.Operation,
			"target", cmd.TargetActorID,
			"error", err)
		return skill.AckFor(cmd, err)
	}

	slog.Debug("delegated command applied",
		"commandID", cmd.ID,
		"operation", cmd.Operation,
		"target", cmd.TargetActorID)
	return skill.AckFor(cmd, nil)
}

// Execute implements skill.PermissionDelegate.
func (e *Executor) Execute(ctx context.Context, cmd skill.Command) (skill.Ack, error) {
	return e.Apply(ctx, cmd), nil
}

func (e *Executor) lock(targetID string) func() {
	v, _ := e.locks.LoadOrStore(targetID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
