// Package sqlite provides a SQLite-backed actor store for single-process tables.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pressly/goose/v3"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/udisondev/grimoire/internal/db/sqlite/migrations"
	"github.com/udisondev/grimoire/internal/game/skill"
	"github.com/udisondev/grimoire/internal/model"
)

// Store persists actors and effects in SQLite.
// Implements skill.ActorRepository and skill.ManaLedger.
type Store struct {
	sqlDB *sql.DB
}

var (
	_ skill.ActorRepository = (*Store)(nil)
	_ skill.ManaLedger      = (*Store)(nil)
)

// Open opens a SQLite store and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := migrate(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return &Store{sqlDB: sqlDB}, nil
}

func migrate(ctx context.Context, sqlDB *sql.DB) error {
	provider, err := goose.NewProvider(goose.DialectSQLite3, sqlDB, migrations.FS)
	if err != nil {
		return fmt.Errorf("creating migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

const effectColumns = `effect_id, kind, name, icon, description, origin_caster_id,
	charges, stacks, stance, bonus_flags, visual_handle`

// Actor loads an actor with its effects in creation order.
func (s *Store) Actor(ctx context.Context, id string) (*model.Actor, error) {
	a := &model.Actor{ID: id}
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT name, mana, banked_mana FROM actors WHERE actor_id = ?`, id,
	).Scan(&a.Name, &a.Mana, &a.BankedMana)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", skill.ErrActorNotFound, id)
		}
		return nil, fmt.Errorf("query actor %s: %w", id, err)
	}

	if a.Owners, err = s.owners(ctx, id); err != nil {
		return nil, err
	}
	if a.Characteristics, err = s.characteristics(ctx, id); err != nil {
		return nil, err
	}
	if a.Effects, err = s.listEffects(ctx, id); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Store) owners(ctx context.Context, id string) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT user_id FROM actor_owners WHERE actor_id = ? ORDER BY user_id`, id)
	if err != nil {
		return nil, fmt.Errorf("query owners of %s: %w", id, err)
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, fmt.Errorf("scan owner of %s: %w", id, err)
		}
		owners = append(owners, owner)
	}
	return owners, rows.Err()
}

func (s *Store) characteristics(ctx context.Context, id string) (map[string]int, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT name, base FROM actor_characteristics WHERE actor_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("query characteristics of %s: %w", id, err)
	}
	defer rows.Close()

	chars := make(map[string]int)
	for rows.Next() {
		var (
			name string
			base int
		)
		if err := rows.Scan(&name, &base); err != nil {
			return nil, fmt.Errorf("scan characteristic of %s: %w", id, err)
		}
		chars[name] = base
	}
	return chars, rows.Err()
}

// ListEffects returns the actor's effects in creation order.
func (s *Store) ListEffects(ctx context.Context, actorID string) ([]model.ActiveEffect, error) {
	var exists bool
	if err := s.sqlDB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM actors WHERE actor_id = ?)`, actorID,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check actor %s: %w", actorID, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", skill.ErrActorNotFound, actorID)
	}
	return s.listEffects(ctx, actorID)
}

func (s *Store) listEffects(ctx context.Context, actorID string) ([]model.ActiveEffect, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+effectColumns+` FROM effects WHERE actor_id = ? ORDER BY seq`, actorID)
	if err != nil {
		return nil, fmt.Errorf("query effects of %s: %w", actorID, err)
	}
	defer rows.Close()

	var effects []model.ActiveEffect
	for rows.Next() {
		var (
			e       = model.ActiveEffect{TargetID: actorID}
			charges sql.NullInt64
			stance  string
			flags   string
		)
		if err := rows.Scan(
			&e.ID, &e.Kind, &e.Name, &e.Icon, &e.Description, &e.OriginCasterID,
			&charges, &e.Stacks, &stance, &flags, &e.VisualHandle,
		); err != nil {
			return nil, fmt.Errorf("scan effect of %s: %w", actorID, err)
		}
		if charges.Valid {
			e.Charges = model.IntPtr(int(charges.Int64))
		}
		if e.Stance, err = model.ParseStance(stance); err != nil {
			return nil, fmt.Errorf("effect %s: %w", e.ID, err)
		}
		if e.BonusFlags, err = decodeFlags(flags); err != nil {
			return nil, fmt.Errorf("effect %s: %w", e.ID, err)
		}
		effects = append(effects, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate effects of %s: %w", actorID, err)
	}
	return effects, nil
}

// CreateEffect inserts an effect. The ID must already be assigned.
func (s *Store) CreateEffect(ctx context.Context, actorID string, effect model.ActiveEffect) (model.ActiveEffect, error) {
	if effect.ID == "" {
		return model.ActiveEffect{}, fmt.Errorf("%w: effect without id", skill.ErrInvalidEffect)
	}
	flags, err := encodeFlags(effect.BonusFlags)
	if err != nil {
		return model.ActiveEffect{}, err
	}

	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO effects (`+effectColumns+`, actor_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		effect.ID, effect.Kind, effect.Name, effect.Icon, effect.Description, effect.OriginCasterID,
		nullableInt(effect.Charges), effect.Stacks, effect.Stance.String(), flags, effect.VisualHandle,
		actorID,
	)
	if err != nil {
		if isConstraint(err, sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY) {
			return model.ActiveEffect{}, fmt.Errorf("%w: %s", skill.ErrActorNotFound, actorID)
		}
		if isConstraint(err, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE) && strings.Contains(err.Error(), "effects.kind") {
			return model.ActiveEffect{}, fmt.Errorf("%w: %s on %s", skill.ErrDuplicateEffect, effect.Kind, actorID)
		}
		return model.ActiveEffect{}, fmt.Errorf("insert effect %s on %s: %w", effect.ID, actorID, err)
	}

	out := effect.Clone()
	out.TargetID = actorID
	return out, nil
}

// UpdateEffect applies a partial update. Nil patch fields are left unchanged.
func (s *Store) UpdateEffect(ctx context.Context, actorID, effectID string, patch model.EffectPatch) error {
	var flags any
	if patch.BonusFlags != nil {
		encoded, err := encodeFlags(patch.BonusFlags)
		if err != nil {
			return err
		}
		flags = encoded
	}

	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE effects
		 SET charges = COALESCE(?, charges),
		     stacks = COALESCE(?, stacks),
		     bonus_flags = COALESCE(?, bonus_flags)
		 WHERE actor_id = ? AND effect_id = ?`,
		nullableInt(patch.Charges), nullableInt(patch.Stacks), flags, actorID, effectID,
	)
	if err != nil {
		return fmt.Errorf("update effect %s on %s: %w", effectID, actorID, err)
	}
	return expectOne(res, fmt.Errorf("%w: %s on %s", skill.ErrEffectNotFound, effectID, actorID))
}

// DeleteEffect removes an effect.
func (s *Store) DeleteEffect(ctx context.Context, actorID, effectID string) error {
	res, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM effects WHERE actor_id = ? AND effect_id = ?`, actorID, effectID)
	if err != nil {
		return fmt.Errorf("delete effect %s on %s: %w", effectID, actorID, err)
	}
	return expectOne(res, fmt.Errorf("%w: %s on %s", skill.ErrEffectNotFound, effectID, actorID))
}

// Spend debits mana. The balance never goes negative.
func (s *Store) Spend(ctx context.Context, actorID string, amount int) error {
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE actors SET mana = mana - ? WHERE actor_id = ? AND mana >= ?`,
		amount, actorID, amount)
	if err != nil {
		return fmt.Errorf("spend mana of %s: %w", actorID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		return nil
	}

	var mana int
	err = s.sqlDB.QueryRowContext(ctx, `SELECT mana FROM actors WHERE actor_id = ?`, actorID).Scan(&mana)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", skill.ErrActorNotFound, actorID)
	}
	if err != nil {
		return fmt.Errorf("query mana of %s: %w", actorID, err)
	}
	return fmt.Errorf("%w: need %d, have %d", skill.ErrNotEnoughMana, amount, mana)
}

// CreditBank adds saved mana to the armor bank.
func (s *Store) CreditBank(ctx context.Context, actorID string, amount int) error {
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE actors SET banked_mana = banked_mana + ? WHERE actor_id = ?`, amount, actorID)
	if err != nil {
		return fmt.Errorf("credit bank of %s: %w", actorID, err)
	}
	return expectOne(res, fmt.Errorf("%w: %s", skill.ErrActorNotFound, actorID))
}

// SaveActor creates or fully overwrites an actor sheet (effects untouched).
func (s *Store) SaveActor(ctx context.Context, a *model.Actor) (err error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO actors (actor_id, name, mana, banked_mana) VALUES (?, ?, ?, ?)
		 ON CONFLICT (actor_id) DO UPDATE
		 SET name = excluded.name, mana = excluded.mana, banked_mana = excluded.banked_mana`,
		a.ID, a.Name, a.Mana, a.BankedMana,
	); err != nil {
		return fmt.Errorf("upsert actor %s: %w", a.ID, err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM actor_owners WHERE actor_id = ?`, a.ID); err != nil {
		return fmt.Errorf("clear owners of %s: %w", a.ID, err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM actor_characteristics WHERE actor_id = ?`, a.ID); err != nil {
		return fmt.Errorf("clear characteristics of %s: %w", a.ID, err)
	}
	for _, owner := range a.Owners {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO actor_owners (actor_id, user_id) VALUES (?, ?)`, a.ID, owner); err != nil {
			return fmt.Errorf("insert owner of %s: %w", a.ID, err)
		}
	}
	for name, base := range a.Characteristics {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO actor_characteristics (actor_id, name, base) VALUES (?, ?, ?)`,
			a.ID, name, base); err != nil {
			return fmt.Errorf("insert characteristic of %s: %w", a.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit actor %s: %w", a.ID, err)
	}
	return nil
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func encodeFlags(flags model.BonusFlags) (string, error) {
	if flags == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(flags)
	if err != nil {
		return "", fmt.Errorf("encode bonus flags: %w", err)
	}
	return string(raw), nil
}

func decodeFlags(raw string) (model.BonusFlags, error) {
	var flags model.BonusFlags
	if err := json.Unmarshal([]byte(raw), &flags); err != nil {
		return nil, fmt.Errorf("decode bonus flags: %w", err)
	}
	if len(flags) == 0 {
		return nil, nil
	}
	return flags, nil
}

func expectOne(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func isConstraint(err error, code int) bool {
	var sqliteErr *msqlite.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code() == code
}
