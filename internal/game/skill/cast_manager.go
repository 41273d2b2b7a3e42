package skill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/udisondev/grimoire/internal/data"
	"github.com/udisondev/grimoire/internal/game/combat"
	"github.com/udisondev/grimoire/internal/game/cost"
	"github.com/udisondev/grimoire/internal/game/stat"
	"github.com/udisondev/grimoire/internal/model"
	"github.com/udisondev/grimoire/internal/random"
	"github.com/udisondev/grimoire/internal/world"
)

const tracerName = "github.com/udisondev/grimoire/internal/game/skill"

// CastDeps wires CastManager to its collaborators.
// Repo, Ledger, Picker and Scenes are required. Spells, Seeds and Tracer
// default to the spell catalog, crypto seeds and the global otel tracer.
// A nil Confirmer accepts every preview; nil Animations or Presenter are skipped.
type CastDeps struct {
	Repo       ActorRepository
	Ledger     ManaLedger
	Effects    *EffectManager
	Picker     TargetPicker
	Confirmer  Confirmer
	Scenes     SceneProvider
	Animations AnimationPlayer
	Presenter  ResultPresenter

	Spells func(id string) (*data.SpellTemplate, error)
	Seeds  func() (int64, error)
	Tracer trace.Tracer
}

// CastManager runs the spell cast pipeline.
//
// Every input stage (spell lookup, characteristic, cost, target pick,
// target resolution, confirmation, defender pools) completes before the
// first mutation. An error or cancellation before Spend leaves no trace.
type CastManager struct {
	deps CastDeps
}

// NewCastManager creates a CastManager.
func NewCastManager(deps CastDeps) (*CastManager, error) {
	switch {
	case deps.Repo == nil:
		return nil, errors.New("cast manager: actor repository is required")
	case deps.Ledger == nil:
		return nil, errors.New("cast manager: mana ledger is required")
	case deps.Picker == nil:
		return nil, errors.New("cast manager: target picker is required")
	case deps.Scenes == nil:
		return nil, errors.New("cast manager: scene provider is required")
	}

	if deps.Spells == nil {
		deps.Spells = data.GetSpell
	}
	if deps.Seeds == nil {
		deps.Seeds = random.NewSeed
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer(tracerName)
	}
	if deps.Effects == nil {
		deps.Effects = NewEffectManager(deps.Repo, nil, AnimationCleanup(deps.Animations))
	}
	return &CastManager{deps: deps}, nil
}

// Effects returns the EffectManager used for persistent effects.
func (cm *CastManager) Effects() *EffectManager {
	return cm.deps.Effects
}

// CastRequest identifies who casts what.
type CastRequest struct {
	Caller        model.Caller
	CasterID      string
	CasterTokenID string
	SpellID       string
}

// CastPreview is shown to the user before anything is spent.
type CastPreview struct {
	SpellID        string
	SpellName      string
	CasterID       string
	Stance         model.Stance
	Characteristic model.Characteristic
	Cost           cost.Result
	Targets        []string // target token names, scene order
}

// TargetReport is the per-target part of a CastReport.
type TargetReport struct {
	TargetID string
	TokenID  string
	Name     string
	Outcome  *combat.Outcome
	Effect   *model.ActiveEffect
	Err      error
}

// CastReport is everything the presentation layer needs about one cast.
type CastReport struct {
	SpellID        string
	SpellName      string
	CasterID       string
	Stance         model.Stance
	Characteristic model.Characteristic
	Cost           cost.Result
	Banked         int
	Point          *model.Point
	Targets        []TargetReport
}

type castTarget struct {
	token  model.Token
	actor  *model.Actor
	bundle combat.RollBundle
	seed   int64
}

// Cast runs the full pipeline for req.
func (cm *CastManager) Cast(ctx context.Context, req CastRequest) (*CastReport, error) {
	ctx, span := cm.deps.Tracer.Start(ctx, "skill.Cast", trace.WithAttributes(
		attribute.String("spell.id", req.SpellID),
		attribute.String("caster.id", req.CasterID),
	))
	defer span.End()

	report, err := cm.cast(ctx, req)
	if err != nil {
		if errors.Is(err, ErrCancelled) {
			span.SetAttributes(attribute.Bool("cast.cancelled", true))
		} else {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, err
	}

	span.SetAttributes(
		attribute.String("cast.stance", report.Stance.String()),
		attribute.Int("cast.cost", report.Cost.Cost),
		attribute.Int("cast.targets", len(report.Targets)),
	)
	return report, nil
}

func (cm *CastManager) cast(ctx context.Context, req CastRequest) (*CastReport, error) {
	spell, err := cm.deps.Spells(req.SpellID)
	if err != nil {
		return nil, err
	}

	caster, err := cm.deps.Repo.Actor(ctx, req.CasterID)
	if err != nil {
		return nil, fmt.Errorf("loading caster %s: %w", req.CasterID, err)
	}

	char, err := stat.Resolve(caster, spell.Characteristic)
	if err != nil {
		return nil, err
	}

	stance := caster.CurrentStance()
	price := cost.Compute(spell.CostPolicy, spell.BaseCost, stance)
	if caster.Mana < price.Cost {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrNotEnoughMana, price.Cost, caster.Mana)
	}

	report := &CastReport{
		SpellID:        spell.ID,
		SpellName:      spell.Name,
		CasterID:       caster.ID,
		Stance:         stance,
		Characteristic: char,
		Cost:           price,
	}

	tokens, err := cm.selectTargets(ctx, req, spell, report)
	if err != nil {
		return nil, err
	}

	targets, err := cm.prepareTargets(ctx, req, spell, char, tokens)
	if err != nil {
		return nil, err
	}

	ok, err := cm.confirm(ctx, cm.preview(report, targets))
	if err != nil {
		return nil, fmt.Errorf("confirming cast: %w", err)
	}
	if !ok {
		return nil, ErrCancelled
	}

	// Mutations start here.
	if err := cm.deps.Ledger.Spend(ctx, caster.ID, price.Cost); err != nil {
		return nil, fmt.Errorf("spending mana: %w", err)
	}
	if price.Saved > 0 && caster.SumBonusFor(model.FlagManaArmor) > 0 {
		if err := cm.deps.Ledger.CreditBank(ctx, caster.ID, price.Saved); err != nil {
			slog.Warn("mana armor credit failed",
				"caster", caster.ID,
				"amount", price.Saved,
				"error", err)
		} else {
			report.Banked = price.Saved
		}
	}

	report.Targets = make([]TargetReport, len(targets))
	for i, t := range targets {
		report.Targets[i] = TargetReport{
			TargetID: t.actor.ID,
			TokenID:  t.token.ID,
			Name:     t.token.Name,
		}
		if !spell.Rolls() {
			continue
		}
		outcome := combat.Resolve(t.bundle, stance, t.seed)
		report.Targets[i].Outcome = &outcome
	}

	if spell.Effect != nil {
		cm.applyEffect(ctx, req, spell, report)
	}

	cm.playAnimations(spell, report)

	summary := FormatSummary(report)
	if cm.deps.Presenter != nil {
		if err := cm.deps.Presenter.PostResult(ctx, caster.ID, report, summary); err != nil {
			slog.Warn("posting cast result failed",
				"spell", spell.ID,
				"caster", caster.ID,
				"error", err)
		}
	}

	slog.Info("spell cast",
		"spell", spell.ID,
		"caster", caster.ID,
		"stance", stance,
		"cost", price.Cost,
		"banked", report.Banked,
		"targets", len(report.Targets))

	return report, nil
}

// selectTargets asks for a point (unless self-targeted) and resolves tokens.
func (cm *CastManager) selectTargets(ctx context.Context, req CastRequest, spell *data.SpellTemplate, report *CastReport) ([]model.Token, error) {
	scene, err := cm.deps.Scenes.Scene(ctx)
	if spell.Target == data.TargetSelf {
		// The scene only supplies the caster token's display name here.
		if err != nil {
			slog.Debug("self cast without scene", "caster", req.CasterID, "error", err)
		}
		for _, t := range scene.Tokens {
			if t.ID == req.CasterTokenID {
				return []model.Token{t}, nil
			}
		}
		return []model.Token{{ID: req.CasterTokenID, ActorID: req.CasterID}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading scene: %w", err)
	}

	style := "single"
	if spell.Target == data.TargetArea {
		style = fmt.Sprintf("radius:%d", spell.RadiusCells)
	}
	point, err := cm.deps.Picker.PickPoint(ctx, spell.RangeCells, style)
	if err != nil {
		return nil, fmt.Errorf("picking target: %w", err)
	}
	if point == nil {
		return nil, ErrCancelled
	}
	report.Point = point

	locator := world.NewLocator(scene, req.Caller, req.CasterTokenID)
	switch spell.Target {
	case data.TargetArea:
		tokens := locator.FindInRadius(*point, spell.RadiusCells)
		if len(tokens) == 0 {
			return nil, fmt.Errorf("%w: nothing within %d cells", ErrNoTarget, spell.RadiusCells)
		}
		return tokens, nil
	default:
		token, ok := locator.FindAtPoint(*point)
		if !ok {
			return nil, fmt.Errorf("%w at (%.0f, %.0f)", ErrNoTarget, point.X, point.Y)
		}
		return []model.Token{token}, nil
	}
}

// confirm asks the Confirmer; without one every preview is accepted.
func (cm *CastManager) confirm(ctx context.Context, preview CastPreview) (bool, error) {
	if cm.deps.Confirmer == nil {
		return true, nil
	}
	return cm.deps.Confirmer.Confirm(ctx, preview)
}

// prepareTargets loads every target actor, builds its roll bundle and draws its seed.
// Any configuration error here aborts the cast before mana is spent.
func (cm *CastManager) prepareTargets(ctx context.Context, req CastRequest, spell *data.SpellTemplate, char model.Characteristic, tokens []model.Token) ([]castTarget, error) {
	targets := make([]castTarget, 0, len(tokens))
	for _, tok := range tokens {
		actorID := tok.ActorID
		if actorID == "" {
			actorID = req.CasterID
		}
		actor, err := cm.deps.Repo.Actor(ctx, actorID)
		if err != nil {
			return nil, fmt.Errorf("loading target %s: %w", actorID, err)
		}

		spec := combat.BundleSpec{
			AttackDice:                 char.Final,
			AttackBonus:                spell.AttackBonus,
			DamageFormula:              spell.Damage,
			DamageBonus:                spell.DamageBonus,
			ForcesPartialDamageOnDodge: spell.ForcesPartialDamageOnDodge,
		}
		if spell.Resistance != nil {
			spec.Resistance, err = combat.ResistanceFromActor(actor, spell.Resistance.Characteristic, spell.Resistance.Mode)
			if err != nil {
				return nil, err
			}
		}
		bundle, err := combat.BuildRollBundle(spec)
		if err != nil {
			return nil, err
		}

		seed, err := cm.deps.Seeds()
		if err != nil {
			return nil, fmt.Errorf("seeding roll: %w", err)
		}

		targets = append(targets, castTarget{token: tok, actor: actor, bundle: bundle, seed: seed})
	}
	return targets, nil
}

func (cm *CastManager) preview(report *CastReport, targets []castTarget) CastPreview {
	names := make([]string, len(targets))
	for i, t := range targets {
		names[i] = t.token.Name
		if names[i] == "" {
			names[i] = t.actor.Name
		}
	}
	return CastPreview{
		SpellID:        report.SpellID,
		SpellName:      report.SpellName,
		CasterID:       report.CasterID,
		Stance:         report.Stance,
		Characteristic: report.Characteristic,
		Cost:           report.Cost,
		Targets:        names,
	}
}

func (cm *CastManager) applyEffect(ctx context.Context, req CastRequest, spell *data.SpellTemplate, report *CastReport) {
	ids := make([]string, len(report.Targets))
	for i, t := range report.Targets {
		ids[i] = t.TargetID
	}

	batch := cm.deps.Effects.ApplyBatch(ctx, req.Caller, ids, spell.Effect.Instantiate(req.CasterID))
	for i, res := range batch.Results {
		if res.Err != nil {
			report.Targets[i].Err = res.Err
			continue
		}
		eff := res.Effect
		report.Targets[i].Effect = &eff
	}
}

func (cm *CastManager) playAnimations(spell *data.SpellTemplate, report *CastReport) {
	if cm.deps.Animations == nil {
		return
	}
	for _, t := range report.Targets {
		if spell.Animation != "" {
			cm.deps.Animations.Play(spell.ID+"-"+t.TokenID, AnimationSpec{
				Asset:   spell.Animation,
				TokenID: t.TokenID,
			})
		}
		if t.Effect != nil && t.Effect.VisualHandle != "" && spell.Effect.Animation != "" {
			cm.deps.Animations.Play(t.Effect.VisualHandle, AnimationSpec{
				Asset:   spell.Effect.Animation,
				TokenID: t.TokenID,
				Persist: true,
			})
		}
	}
}

// ConsumeCharge spends one charge of the effect casterID placed on targetID.
func (cm *CastManager) ConsumeCharge(ctx context.Context, caller model.Caller, casterID, targetID, kind string) (State, int, error) {
	return cm.deps.Effects.Consume(ctx, caller, targetID, casterID, kind)
}

// EndEffect removes the effect casterID placed on targetID.
func (cm *CastManager) EndEffect(ctx context.Context, caller model.Caller, casterID, targetID, kind string) error {
	return cm.deps.Effects.End(ctx, caller, targetID, casterID, kind)
}

// FormatSummary renders a plain-text chat line for report.
func FormatSummary(report *CastReport) string {
	if report == nil {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s %d (cost %d", report.SpellName, report.Characteristic.Name, report.Characteristic.Final, report.Cost.Cost)
	if report.Cost.Saved > 0 {
		fmt.Fprintf(&b, ", saved %d", report.Cost.Saved)
	}
	if report.Banked > 0 {
		fmt.Fprintf(&b, ", banked %d", report.Banked)
	}
	b.WriteString(")")
	if report.Stance != model.StanceNone {
		fmt.Fprintf(&b, " [%s]", report.Stance)
	}

	for _, t := range report.Targets {
		fmt.Fprintf(&b, "\n- %s:", t.Name)
		if o := t.Outcome; o != nil {
			fmt.Fprintf(&b, " attack %d", o.AttackTotal)
			if o.ResistanceTotal != nil {
				fmt.Fprintf(&b, " vs %d", *o.ResistanceTotal)
			}
			if o.HasDamage {
				fmt.Fprintf(&b, ", damage %d", o.AppliedDamage)
				if o.DamageMaximized {
					b.WriteString(" (max)")
				}
				if o.Mitigation != combat.MitigationNone {
					fmt.Fprintf(&b, " (%s)", o.Mitigation)
				}
			}
		}
		switch {
		case t.Err != nil:
			fmt.Fprintf(&b, " effect failed: %v", t.Err)
		case t.Effect != nil:
			fmt.Fprintf(&b, " %s", t.Effect.Name)
			if t.Effect.HasCharges() {
				fmt.Fprintf(&b, " (%d)", *t.Effect.Charges)
			}
		}
	}
	return b.String()
}
