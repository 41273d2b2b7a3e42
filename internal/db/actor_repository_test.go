package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/grimoire/internal/game/skill"
	"github.com/udisondev/grimoire/internal/model"
	"github.com/udisondev/grimoire/internal/testutil"
)

func setupRepo(t *testing.T) *ActorRepository {
	t.Helper()
	repo := NewActorRepository(testutil.SetupTestDB(t))

	require.NoError(t, repo.SaveActor(context.Background(), &model.Actor{
		ID:              "c",
		Name:            "Caster",
		Owners:          []string{"alice", "gm"},
		Characteristics: map[string]int{"esprit": 4, "agilite": 3},
		Mana:            10,
	}))
	return repo
}

func TestActorRepository_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)

	a, err := repo.Actor(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, "Caster", a.Name)
	assert.Equal(t, []string{"alice", "gm"}, a.Owners)
	assert.Equal(t, map[string]int{"esprit": 4, "agilite": 3}, a.Characteristics)
	assert.Equal(t, 10, a.Mana)
	assert.Empty(t, a.Effects)

	a.Characteristics = map[string]int{"esprit": 5}
	a.Owners = []string{"bob"}
	require.NoError(t, repo.SaveActor(ctx, a))

	reloaded, err := repo.Actor(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, reloaded.Owners)
	assert.Equal(t, map[string]int{"esprit": 5}, reloaded.Characteristics)

	_, err = repo.Actor(ctx, "missing")
	assert.ErrorIs(t, err, skill.ErrActorNotFound)
	_, err = repo.ListEffects(ctx, "missing")
	assert.ErrorIs(t, err, skill.ErrActorNotFound)
}

func TestActorRepository_EffectCRUD(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)

	created, err := repo.CreateEffect(ctx, "c", model.ActiveEffect{
		ID:             "e1",
		Kind:           "bouclier",
		Name:           "Bouclier",
		OriginCasterID: "c",
		Charges:        model.IntPtr(3),
		Stance:         model.StanceFocus,
		BonusFlags:     model.BonusFlags{"physique": 1},
		VisualHandle:   "bouclier-c",
	})
	require.NoError(t, err)
	assert.Equal(t, "c", created.TargetID)

	_, err = repo.CreateEffect(ctx, "c", model.ActiveEffect{ID: "e2", Kind: "marque"})
	require.NoError(t, err)

	effects, err := repo.ListEffects(ctx, "c")
	require.NoError(t, err)
	require.Len(t, effects, 2)
	assert.Equal(t, "e1", effects[0].ID, "creation order")
	assert.Equal(t, 3, *effects[0].Charges)
	assert.Equal(t, model.StanceFocus, effects[0].Stance)
	assert.Equal(t, model.BonusFlags{"physique": 1}, effects[0].BonusFlags)
	assert.Nil(t, effects[1].Charges)
	assert.Nil(t, effects[1].BonusFlags)

	require.NoError(t, repo.UpdateEffect(ctx, "c", "e1", model.EffectPatch{Charges: model.IntPtr(1)}))
	a, err := repo.Actor(ctx, "c")
	require.NoError(t, err)
	eff, ok := a.FindEffect("c", "bouclier")
	require.True(t, ok)
	assert.Equal(t, 1, *eff.Charges)
	assert.Equal(t, model.BonusFlags{"physique": 1}, eff.BonusFlags, "nil patch fields are untouched")
	assert.Equal(t, model.StanceFocus, a.CurrentStance())

	require.NoError(t, repo.UpdateEffect(ctx, "c", "e1", model.EffectPatch{BonusFlags: model.BonusFlags{"agilite": 2}}))
	a, err = repo.Actor(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 2, a.SumBonusFor("agilite"))
	assert.Zero(t, a.SumBonusFor("physique"))

	require.NoError(t, repo.DeleteEffect(ctx, "c", "e1"))
	assert.ErrorIs(t, repo.DeleteEffect(ctx, "c", "e1"), skill.ErrEffectNotFound)
	assert.ErrorIs(t, repo.UpdateEffect(ctx, "c", "e1", model.EffectPatch{Stacks: model.IntPtr(1)}), skill.ErrEffectNotFound)

	_, err = repo.CreateEffect(ctx, "missing", model.ActiveEffect{ID: "e3", Kind: "k"})
	assert.ErrorIs(t, err, skill.ErrActorNotFound)
}

func TestActorRepository_RejectsSecondEffectOfKind(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)

	_, err := repo.CreateEffect(ctx, "c", model.ActiveEffect{ID: "e1", Kind: "bouclier", OriginCasterID: "c"})
	require.NoError(t, err)

	_, err = repo.CreateEffect(ctx, "c", model.ActiveEffect{ID: "e2", Kind: "bouclier", OriginCasterID: "x"})
	assert.ErrorIs(t, err, skill.ErrDuplicateEffect)

	effects, err := repo.ListEffects(ctx, "c")
	require.NoError(t, err)
	assert.Len(t, effects, 1)
}

func TestActorRepository_ManaLedger(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)

	require.NoError(t, repo.Spend(ctx, "c", 4))
	err := repo.Spend(ctx, "c", 7)
	assert.ErrorIs(t, err, skill.ErrNotEnoughMana)
	require.NoError(t, repo.CreditBank(ctx, "c", 2))

	a, err := repo.Actor(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 6, a.Mana)
	assert.Equal(t, 2, a.BankedMana)

	assert.ErrorIs(t, repo.Spend(ctx, "missing", 1), skill.ErrActorNotFound)
	assert.ErrorIs(t, repo.CreditBank(ctx, "missing", 1), skill.ErrActorNotFound)
}

func TestActorRepository_EffectLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)
	manager := skill.NewEffectManager(repo, nil, nil)
	owner := model.Caller{UserID: "alice"}

	_, err := manager.Apply(ctx, owner, "c", model.ActiveEffect{
		Kind:           "bouclier",
		OriginCasterID: "c",
		Charges:        model.IntPtr(2),
	})
	require.NoError(t, err)

	state, remaining, err := manager.Consume(ctx, owner, "c", "c", "bouclier")
	require.NoError(t, err)
	assert.Equal(t, skill.StateActive, state)
	assert.Equal(t, 1, remaining)

	state, _, err = manager.Consume(ctx, owner, "c", "c", "bouclier")
	require.NoError(t, err)
	assert.Equal(t, skill.StateRemoved, state)

	effects, err := repo.ListEffects(ctx, "c")
	require.NoError(t, err)
	assert.Empty(t, effects)
}
