package gmlink

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/udisondev/grimoire/internal/game/skill"
	"github.com/udisondev/grimoire/internal/model"
	"github.com/udisondev/grimoire/internal/testutil"
)

// gatedRepo holds the first two Actor reads until both have arrived, so two
// managers observe the same target state before either mutates it.
type gatedRepo struct {
	*testutil.MockRepository
	gate  sync.WaitGroup
	calls atomic.Int32
}

func newGatedRepo(repo *testutil.MockRepository) *gatedRepo {
	g := &gatedRepo{MockRepository: repo}
	g.gate.Add(2)
	return g
}

func (g *gatedRepo) Actor(ctx context.Context, id string) (*model.Actor, error) {
	if g.calls.Add(1) <= 2 {
		g.gate.Done()
		g.gate.Wait()
	}
	return g.MockRepository.Actor(ctx, id)
}

// twoManagers returns two effect managers that read through one gate and
// delegate to one shared executor.
func twoManagers(repo *testutil.MockRepository) (*skill.EffectManager, *skill.EffectManager) {
	executor := NewExecutor(repo)
	reads := newGatedRepo(repo)
	return skill.NewEffectManager(reads, executor, nil), skill.NewEffectManager(reads, executor, nil)
}

func TestExecutor_SerializesApplyAcrossManagers(t *testing.T) {
	repo := testutil.NewMockRepository(testutil.NewActor("victim", 0, []string{"dm"}, nil))
	m1, m2 := twoManagers(repo)
	stranger := model.Caller{UserID: "alice"}

	errs := make([]error, 2)
	var g errgroup.Group
	for i, m := range []*skill.EffectManager{m1, m2} {
		g.Go(func() error {
			_, errs[i] = m.Apply(context.Background(), stranger, "victim",
				model.ActiveEffect{Kind: "bouclier", OriginCasterID: "c", Charges: model.IntPtr(2)})
			return nil
		})
	}
	require.NoError(t, g.Wait())

	effects := repo.Get("victim").Effects
	assert.Len(t, effects, 1, "one effect per kind on a target")

	var failed []error
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}
	require.Len(t, failed, 1)
	assert.ErrorIs(t, failed[0], skill.ErrDuplicateEffect)
}

func TestExecutor_ConcurrentConsumeLosesNoCharge(t *testing.T) {
	target := testutil.NewActor("victim", 0, []string{"dm"}, nil)
	target.Effects = []model.ActiveEffect{{
		ID:             "e1",
		Kind:           "bouclier",
		OriginCasterID: "c",
		TargetID:       "victim",
		Charges:        model.IntPtr(2),
	}}
	repo := testutil.NewMockRepository(target)
	m1, m2 := twoManagers(repo)
	stranger := model.Caller{UserID: "alice"}

	states := make([]skill.State, 2)
	var g errgroup.Group
	for i, m := range []*skill.EffectManager{m1, m2} {
		g.Go(func() error {
			var err error
			states[i], _, err = m.Consume(context.Background(), stranger, "victim", "c", "bouclier")
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Empty(t, repo.Get("victim").Effects, "two charges spent by two consumers")
	assert.ElementsMatch(t, []skill.State{skill.StateActive, skill.StateRemoved}, states)
}

func TestExecutor_AckCarriesCode(t *testing.T) {
	repo := testutil.NewMockRepository(testutil.NewActor("t", 0, nil, nil))
	executor := NewExecutor(repo)

	ack := executor.Apply(context.Background(), createCmd("t", "ward"))
	require.True(t, ack.Success, ack.Error)

	ack = executor.Apply(context.Background(), createCmd("t", "ward"))
	assert.False(t, ack.Success)
	assert.Equal(t, skill.CodeDuplicateEffect, ack.Code)
	assert.ErrorIs(t, ack.Cause(), skill.ErrDuplicateEffect)
}
