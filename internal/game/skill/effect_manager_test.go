package skill_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/grimoire/internal/game/skill"
	"github.com/udisondev/grimoire/internal/model"
	"github.com/udisondev/grimoire/internal/testutil"
)

var (
	owner    = model.Caller{UserID: "alice"}
	stranger = model.Caller{UserID: "bob"}
	gm       = model.Caller{UserID: "gm", GM: true}
)

func shield(charges int) model.ActiveEffect {
	eff := model.ActiveEffect{
		Kind:           "bouclier",
		Name:           "Bouclier",
		OriginCasterID: "caster",
		BonusFlags:     model.BonusFlags{"physique": 1},
		VisualHandle:   "bouclier-caster",
	}
	if charges > 0 {
		eff.Charges = model.IntPtr(charges)
	}
	return eff
}

type cleanupRecorder struct {
	mu    sync.Mutex
	calls []skill.EffectSnapshot
	err   error
}

func (r *cleanupRecorder) fn(_ context.Context, s skill.EffectSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
	return r.err
}

func (r *cleanupRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func setupManager(t *testing.T, actors ...*model.Actor) (*skill.EffectManager, *testutil.MockRepository, *testutil.MockDelegate, *cleanupRecorder) {
	t.Helper()
	repo := testutil.NewMockRepository(actors...)
	delegate := &testutil.MockDelegate{Repo: repo}
	rec := &cleanupRecorder{}
	return skill.NewEffectManager(repo, delegate, rec.fn), repo, delegate, rec
}

func TestEffectManager_ConsumeUntilRemoved(t *testing.T) {
	ctx := context.Background()
	target := testutil.NewActor("t1", 0, []string{"alice"}, nil)
	m, repo, delegate, rec := setupManager(t, target)

	applied, err := m.Apply(ctx, owner, "t1", shield(3))
	require.NoError(t, err)
	assert.NotEmpty(t, applied.ID)
	assert.Equal(t, "t1", applied.TargetID)

	state, err := m.State(ctx, "t1", "caster", "bouclier")
	require.NoError(t, err)
	assert.Equal(t, skill.StateActive, state)

	for _, want := range []int{2, 1} {
		state, remaining, err := m.Consume(ctx, owner, "t1", "caster", "bouclier")
		require.NoError(t, err)
		assert.Equal(t, skill.StateActive, state)
		assert.Equal(t, want, remaining)

		eff, ok := repo.Get("t1").FindEffect("caster", "bouclier")
		require.True(t, ok)
		assert.Equal(t, want, *eff.Charges)
	}

	state, remaining, err := m.Consume(ctx, owner, "t1", "caster", "bouclier")
	require.NoError(t, err)
	assert.Equal(t, skill.StateRemoved, state)
	assert.Zero(t, remaining)

	assert.Empty(t, repo.Get("t1").Effects)
	require.Equal(t, 1, rec.count(), "cleanup must run exactly once")
	assert.Equal(t, applied.ID, rec.calls[0].ID)
	assert.Equal(t, "bouclier-caster", rec.calls[0].VisualHandle)
	assert.Zero(t, delegate.Calls(), "owned target is mutated directly")

	state, err = m.State(ctx, "t1", "caster", "bouclier")
	require.NoError(t, err)
	assert.Equal(t, skill.StateAbsent, state)

	_, _, err = m.Consume(ctx, owner, "t1", "caster", "bouclier")
	assert.ErrorIs(t, err, skill.ErrEffectNotFound)
	assert.Equal(t, 1, rec.count())
}

func TestEffectManager_ConsumeWithoutCharges(t *testing.T) {
	ctx := context.Background()
	m, repo, _, rec := setupManager(t, testutil.NewActor("t1", 0, []string{"alice"}, nil))

	_, err := m.Apply(ctx, owner, "t1", shield(0))
	require.NoError(t, err)
	before := repo.Mutations()

	state, remaining, err := m.Consume(ctx, owner, "t1", "caster", "bouclier")
	require.NoError(t, err)
	assert.Equal(t, skill.StateActive, state)
	assert.Zero(t, remaining)
	assert.Equal(t, before, repo.Mutations())
	assert.Zero(t, rec.count())
}

func TestEffectManager_ApplyValidation(t *testing.T) {
	ctx := context.Background()
	m, repo, _, _ := setupManager(t, testutil.NewActor("t1", 0, []string{"alice"}, nil))

	tests := []struct {
		name   string
		effect model.ActiveEffect
	}{
		{"empty kind", model.ActiveEffect{OriginCasterID: "caster"}},
		{"zero charges", model.ActiveEffect{Kind: "k", Charges: model.IntPtr(0)}},
		{"negative charges", model.ActiveEffect{Kind: "k", Charges: model.IntPtr(-2)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Apply(ctx, owner, "t1", tt.effect)
			assert.ErrorIs(t, err, skill.ErrInvalidEffect)
		})
	}
	assert.Zero(t, repo.Mutations())
}

func TestEffectManager_DuplicateKind(t *testing.T) {
	ctx := context.Background()
	m, repo, _, _ := setupManager(t, testutil.NewActor("t1", 0, []string{"alice"}, nil))

	_, err := m.Apply(ctx, owner, "t1", shield(3))
	require.NoError(t, err)

	other := shield(3)
	other.OriginCasterID = "someone-else"
	_, err = m.Apply(ctx, owner, "t1", other)
	assert.ErrorIs(t, err, skill.ErrDuplicateEffect)
	assert.Len(t, repo.Get("t1").Effects, 1)
}

func TestEffectManager_Delegation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		caller      model.Caller
		unavailable bool
		deny        bool
		nilDelegate bool
		wantErr     error
		wantCalls   int
	}{
		{name: "owner mutates directly", caller: owner, wantCalls: 0},
		{name: "gm mutates directly", caller: gm, wantCalls: 0},
		{name: "stranger delegates", caller: stranger, wantCalls: 1},
		{name: "executor unreachable", caller: stranger, unavailable: true, wantErr: skill.ErrDelegationUnavailable, wantCalls: 1},
		{name: "executor refuses", caller: stranger, deny: true, wantErr: skill.ErrPermissionDenied, wantCalls: 1},
		{name: "no executor", caller: stranger, nilDelegate: true, wantErr: skill.ErrDelegationUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := testutil.NewMockRepository(testutil.NewActor("t1", 0, []string{"alice"}, nil))
			delegate := &testutil.MockDelegate{
				Repo:        repo,
				Unavailable: map[string]bool{"t1": tt.unavailable},
				Deny:        map[string]bool{"t1": tt.deny},
			}
			var m *skill.EffectManager
			if tt.nilDelegate {
				m = skill.NewEffectManager(repo, nil, nil)
			} else {
				m = skill.NewEffectManager(repo, delegate, nil)
			}

			_, err := m.Apply(ctx, tt.caller, "t1", shield(2))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, repo.Get("t1").Effects)
			} else {
				require.NoError(t, err)
				assert.Len(t, repo.Get("t1").Effects, 1)
			}
			assert.Equal(t, tt.wantCalls, delegate.Calls())
			for _, cmd := range delegate.Commands {
				assert.NotEmpty(t, cmd.ID)
				assert.Equal(t, skill.OpCreateEffect, cmd.Operation)
			}
		})
	}
}

func TestEffectManager_ApplyBatch_PartialFailure(t *testing.T) {
	ctx := context.Background()
	m, repo, delegate, _ := setupManager(t,
		testutil.NewActor("a", 0, []string{"carol"}, nil),
		testutil.NewActor("b", 0, []string{"carol"}, nil),
		testutil.NewActor("c", 0, []string{"carol"}, nil),
	)
	delegate.Unavailable = map[string]bool{"b": true}

	batch := m.ApplyBatch(ctx, stranger, []string{"a", "b", "c"}, shield(3))

	require.Len(t, batch.Results, 3)
	assert.Len(t, batch.Succeeded(), 2)
	failed := batch.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "b", failed[0].TargetID)
	assert.ErrorIs(t, failed[0].Err, skill.ErrDelegationUnavailable)

	assert.Len(t, repo.Get("a").Effects, 1)
	assert.Empty(t, repo.Get("b").Effects)
	assert.Len(t, repo.Get("c").Effects, 1)
	assert.NotEqual(t, batch.Results[0].Effect.ID, batch.Results[2].Effect.ID)
	assert.Equal(t, "bouclier-caster-a", batch.Results[0].Effect.VisualHandle)
}

func TestEffectManager_CleanupFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	m, repo, _, rec := setupManager(t, testutil.NewActor("t1", 0, []string{"alice"}, nil))
	rec.err = errors.New("visual already gone")

	_, err := m.Apply(ctx, owner, "t1", shield(3))
	require.NoError(t, err)

	require.NoError(t, m.End(ctx, owner, "t1", "caster", "bouclier"))
	assert.Empty(t, repo.Get("t1").Effects)
	assert.Equal(t, 1, rec.count())
}

func TestEffectManager_AnimationCleanup(t *testing.T) {
	ctx := context.Background()
	repo := testutil.NewMockRepository(testutil.NewActor("t1", 0, []string{"alice"}, nil))
	player := &testutil.MockAnimationPlayer{}
	m := skill.NewEffectManager(repo, nil, skill.AnimationCleanup(player))

	_, err := m.Apply(ctx, owner, "t1", shield(1))
	require.NoError(t, err)

	state, _, err := m.Consume(ctx, owner, "t1", "caster", "bouclier")
	require.NoError(t, err)
	assert.Equal(t, skill.StateRemoved, state)
	assert.Equal(t, []string{"bouclier-caster"}, player.Stopped)
}

func TestEffectManager_UpdateBonus(t *testing.T) {
	ctx := context.Background()
	m, repo, _, _ := setupManager(t, testutil.NewActor("t1", 0, []string{"alice"}, nil))

	_, err := m.Apply(ctx, owner, "t1", shield(3))
	require.NoError(t, err)

	require.NoError(t, m.UpdateBonus(ctx, owner, "t1", "caster", "bouclier", model.BonusFlags{"agilite": 2}))

	eff, ok := repo.Get("t1").FindEffect("caster", "bouclier")
	require.True(t, ok)
	assert.Equal(t, model.BonusFlags{"agilite": 2}, eff.BonusFlags)
	assert.Equal(t, 3, *eff.Charges)

	err = m.UpdateBonus(ctx, owner, "t1", "nobody", "bouclier", nil)
	assert.ErrorIs(t, err, skill.ErrEffectNotFound)
}

func TestEffectManager_ConcurrentConsume(t *testing.T) {
	ctx := context.Background()
	m, repo, _, rec := setupManager(t, testutil.NewActor("t1", 0, []string{"alice"}, nil))

	const charges = 8
	_, err := m.Apply(ctx, owner, "t1", shield(charges))
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		removed int
	)
	for range charges {
		wg.Add(1)
		go func() {
			defer wg.Done()
			state, _, err := m.Consume(ctx, owner, "t1", "caster", "bouclier")
			if err != nil {
				return
			}
			if state == skill.StateRemoved {
				mu.Lock()
				removed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, rec.count())
	assert.Empty(t, repo.Get("t1").Effects)
}
