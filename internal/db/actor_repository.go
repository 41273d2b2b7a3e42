package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/grimoire/internal/game/skill"
	"github.com/udisondev/grimoire/internal/model"
)

// ActorRepository хранит актёров, их характеристики и эффекты в PostgreSQL.
// Реализует skill.ActorRepository и skill.ManaLedger.
type ActorRepository struct {
	db *pgxpool.Pool
}

// NewActorRepository создаёт новый ActorRepository.
func NewActorRepository(db *pgxpool.Pool) *ActorRepository {
	return &ActorRepository{db: db}
}

var (
	_ skill.ActorRepository = (*ActorRepository)(nil)
	_ skill.ManaLedger      = (*ActorRepository)(nil)
)

const effectColumns = `effect_id, kind, name, icon, description, origin_caster_id,
	charges, stacks, stance, bonus_flags, visual_handle`

// Actor загружает актёра со всеми эффектами (в порядке создания).
func (r *ActorRepository) Actor(ctx context.Context, id string) (*model.Actor, error) {
	a := &model.Actor{ID: id}
	err := r.db.QueryRow(ctx,
		`SELECT name, mana, banked_mana FROM actors WHERE actor_id = $1`, id,
	).Scan(&a.Name, &a.Mana, &a.BankedMana)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", skill.ErrActorNotFound, id)
		}
		return nil, fmt.Errorf("querying actor %s: %w", id, err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT user_id FROM actor_owners WHERE actor_id = $1 ORDER BY user_id`, id)
	if err != nil {
		return nil, fmt.Errorf("querying owners of %s: %w", id, err)
	}
	a.Owners, err = pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scanning owners of %s: %w", id, err)
	}

	rows, err = r.db.Query(ctx,
		`SELECT name, base FROM actor_characteristics WHERE actor_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("querying characteristics of %s: %w", id, err)
	}
	defer rows.Close()

	a.Characteristics = make(map[string]int)
	for rows.Next() {
		var (
			name string
			base int
		)
		if err := rows.Scan(&name, &base); err != nil {
			return nil, fmt.Errorf("scanning characteristic of %s: %w", id, err)
		}
		a.Characteristics[name] = base
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating characteristics of %s: %w", id, err)
	}

	a.Effects, err = r.listEffects(ctx, id)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListEffects возвращает эффекты актёра в порядке создания.
func (r *ActorRepository) ListEffects(ctx context.Context, actorID string) ([]model.ActiveEffect, error) {
	var exists bool
	if err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM actors WHERE actor_id = $1)`, actorID,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("checking actor %s: %w", actorID, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", skill.ErrActorNotFound, actorID)
	}
	return r.listEffects(ctx, actorID)
}

func (r *ActorRepository) listEffects(ctx context.Context, actorID string) ([]model.ActiveEffect, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+effectColumns+` FROM effects WHERE actor_id = $1 ORDER BY seq`, actorID)
	if err != nil {
		return nil, fmt.Errorf("querying effects of %s: %w", actorID, err)
	}
	defer rows.Close()

	var effects []model.ActiveEffect
	for rows.Next() {
		e := model.ActiveEffect{TargetID: actorID}
		var stance string
		if err := rows.Scan(
			&e.ID, &e.Kind, &e.Name, &e.Icon, &e.Description, &e.OriginCasterID,
			&e.Charges, &e.Stacks, &stance, &e.BonusFlags, &e.VisualHandle,
		); err != nil {
			return nil, fmt.Errorf("scanning effect of %s: %w", actorID, err)
		}
		if e.Stance, err = model.ParseStance(stance); err != nil {
			return nil, fmt.Errorf("effect %s: %w", e.ID, err)
		}
		if len(e.BonusFlags) == 0 {
			e.BonusFlags = nil
		}
		effects = append(effects, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating effects of %s: %w", actorID, err)
	}
	return effects, nil
}

// CreateEffect вставляет эффект. ID должен быть уже назначен.
func (r *ActorRepository) CreateEffect(ctx context.Context, actorID string, effect model.ActiveEffect) (model.ActiveEffect, error) {
	if effect.ID == "" {
		return model.ActiveEffect{}, fmt.Errorf("%w: effect without id", skill.ErrInvalidEffect)
	}
	flags := effect.BonusFlags
	if flags == nil {
		flags = model.BonusFlags{}
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO effects (`+effectColumns+`, actor_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		effect.ID, effect.Kind, effect.Name, effect.Icon, effect.Description, effect.OriginCasterID,
		effect.Charges, effect.Stacks, effect.Stance.String(), flags, effect.VisualHandle,
		actorID,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return model.ActiveEffect{}, fmt.Errorf("%w: %s", skill.ErrActorNotFound, actorID)
		}
		if isDuplicateKind(err) {
			return model.ActiveEffect{}, fmt.Errorf("%w: %s on %s", skill.ErrDuplicateEffect, effect.Kind, actorID)
		}
		return model.ActiveEffect{}, fmt.Errorf("inserting effect %s on %s: %w", effect.ID, actorID, err)
	}

	out := effect.Clone()
	out.TargetID = actorID
	return out, nil
}

// UpdateEffect применяет частичное обновление. Nil-поля patch не меняются.
func (r *ActorRepository) UpdateEffect(ctx context.Context, actorID, effectID string, patch model.EffectPatch) error {
	var flags any
	if patch.BonusFlags != nil {
		flags = patch.BonusFlags
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE effects
		 SET charges = COALESCE($3, charges),
		     stacks = COALESCE($4, stacks),
		     bonus_flags = COALESCE($5, bonus_flags)
		 WHERE actor_id = $1 AND effect_id = $2`,
		actorID, effectID, patch.Charges, patch.Stacks, flags,
	)
	if err != nil {
		return fmt.Errorf("updating effect %s on %s: %w", effectID, actorID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s on %s", skill.ErrEffectNotFound, effectID, actorID)
	}
	return nil
}

// DeleteEffect удаляет эффект.
func (r *ActorRepository) DeleteEffect(ctx context.Context, actorID, effectID string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM effects WHERE actor_id = $1 AND effect_id = $2`, actorID, effectID)
	if err != nil {
		return fmt.Errorf("deleting effect %s on %s: %w", effectID, actorID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s on %s", skill.ErrEffectNotFound, effectID, actorID)
	}
	return nil
}

// Spend атомарно списывает ману. Баланс не может уйти в минус.
func (r *ActorRepository) Spend(ctx context.Context, actorID string, amount int) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE actors SET mana = mana - $2 WHERE actor_id = $1 AND mana >= $2`,
		actorID, amount)
	if err != nil {
		return fmt.Errorf("spending mana of %s: %w", actorID, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var mana int
	err = r.db.QueryRow(ctx, `SELECT mana FROM actors WHERE actor_id = $1`, actorID).Scan(&mana)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", skill.ErrActorNotFound, actorID)
	}
	if err != nil {
		return fmt.Errorf("querying mana of %s: %w", actorID, err)
	}
	return fmt.Errorf("%w: need %d, have %d", skill.ErrNotEnoughMana, amount, mana)
}

// CreditBank зачисляет сэкономленную ману в резерв брони.
func (r *ActorRepository) CreditBank(ctx context.Context, actorID string, amount int) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE actors SET banked_mana = banked_mana + $2 WHERE actor_id = $1`, actorID, amount)
	if err != nil {
		return fmt.Errorf("crediting bank of %s: %w", actorID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", skill.ErrActorNotFound, actorID)
	}
	return nil
}

// SaveActor создаёт или полностью перезаписывает актёра (без эффектов) в одной транзакции.
func (r *ActorRepository) SaveActor(ctx context.Context, a *model.Actor) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO actors (actor_id, name, mana, banked_mana)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (actor_id) DO UPDATE
			 SET name = EXCLUDED.name, mana = EXCLUDED.mana, banked_mana = EXCLUDED.banked_mana`,
			a.ID, a.Name, a.Mana, a.BankedMana,
		); err != nil {
			return fmt.Errorf("upserting actor %s: %w", a.ID, err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM actor_owners WHERE actor_id = $1`, a.ID); err != nil {
			return fmt.Errorf("clearing owners of %s: %w", a.ID, err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM actor_characteristics WHERE actor_id = $1`, a.ID); err != nil {
			return fmt.Errorf("clearing characteristics of %s: %w", a.ID, err)
		}

		batch := &pgx.Batch{}
		for _, owner := range a.Owners {
			batch.Queue(`INSERT INTO actor_owners (actor_id, user_id) VALUES ($1, $2)`, a.ID, owner)
		}
		for name, base := range a.Characteristics {
			batch.Queue(`INSERT INTO actor_characteristics (actor_id, name, base) VALUES ($1, $2, $3)`,
				a.ID, name, base)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("inserting sheet of %s: %w", a.ID, err)
		}
		return nil
	})
}
