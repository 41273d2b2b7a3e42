package data

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/udisondev/grimoire/internal/game/combat"
	"github.com/udisondev/grimoire/internal/game/cost"
	"github.com/udisondev/grimoire/internal/model"
)

// ErrUnknownSpell is returned by GetSpell for IDs missing from the catalog.
var ErrUnknownSpell = errors.New("unknown spell")

//go:embed spells.yaml
var spellsYAML []byte

// SpellTable — global registry of spell templates by ID.
// Populated by LoadSpells() at startup.
var SpellTable map[string]*SpellTemplate

type spellFile struct {
	Spells []spellDef `yaml:"spells"`
}

type spellDef struct {
	ID             string `yaml:"id"`
	Name           string `yaml:"name"`
	Characteristic string `yaml:"characteristic"`
	Cost           struct {
		Policy string `yaml:"policy"`
		Base   int    `yaml:"base"`
	} `yaml:"cost"`
	Target      string `yaml:"target"`
	Range       int    `yaml:"range"`
	Radius      int    `yaml:"radius"`
	AttackBonus int    `yaml:"attack_bonus"`
	Damage      struct {
		Formula string `yaml:"formula"`
		Bonus   int    `yaml:"bonus"`
	} `yaml:"damage"`
	Resistance *struct {
		Characteristic string `yaml:"characteristic"`
		Mode           string `yaml:"mode"`
	} `yaml:"resistance"`
	ForcesPartialDamageOnDodge bool       `yaml:"forces_partial_damage_on_dodge"`
	Effect                     *effectDef `yaml:"effect"`
	Animation                  string     `yaml:"animation"`
}

type effectDef struct {
	Kind         string         `yaml:"kind"`
	Name         string         `yaml:"name"`
	Icon         string         `yaml:"icon"`
	Description  string         `yaml:"description"`
	Charges      int            `yaml:"charges"`
	Stance       string         `yaml:"stance"`
	BonusFlags   map[string]any `yaml:"bonus_flags"`
	VisualHandle string         `yaml:"visual_handle"`
	Animation    string         `yaml:"animation"`
}

// GetSpell returns the template for id.
func GetSpell(id string) (*SpellTemplate, error) {
	if s, ok := SpellTable[id]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSpell, id)
}

// SpellIDs returns all loaded spell IDs in sorted order.
func SpellIDs() []string {
	ids := make([]string, 0, len(SpellTable))
	for id := range SpellTable {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LoadSpells builds SpellTable from the embedded catalog.
// Called at server start.
func LoadSpells() error {
	table, err := ParseSpells(spellsYAML)
	if err != nil {
		return fmt.Errorf("loading embedded spells: %w", err)
	}
	SpellTable = table
	slog.Info("loaded spells", "count", len(SpellTable))
	return nil
}

// ParseSpells parses and validates a YAML spell catalog.
func ParseSpells(raw []byte) (map[string]*SpellTemplate, error) {
	var file spellFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parsing spell catalog: %w", err)
	}

	table := make(map[string]*SpellTemplate, len(file.Spells))
	for i := range file.Spells {
		tmpl, err := buildSpellTemplate(&file.Spells[i])
		if err != nil {
			return nil, fmt.Errorf("spell %q: %w", file.Spells[i].ID, err)
		}
		if _, dup := table[tmpl.ID]; dup {
			return nil, fmt.Errorf("duplicate spell id %q", tmpl.ID)
		}
		table[tmpl.ID] = tmpl
	}
	return table, nil
}

func buildSpellTemplate(def *spellDef) (*SpellTemplate, error) {
	if def.ID == "" {
		return nil, errors.New("missing id")
	}
	if def.Characteristic == "" {
		return nil, errors.New("missing characteristic")
	}

	policy, err := cost.ParsePolicy(def.Cost.Policy)
	if err != nil {
		return nil, err
	}
	if def.Cost.Base < 0 {
		return nil, fmt.Errorf("negative base cost %d", def.Cost.Base)
	}

	target, err := ParseTargetMode(def.Target)
	if err != nil {
		return nil, err
	}
	if target == TargetArea && def.Radius <= 0 {
		return nil, fmt.Errorf("area spell needs a positive radius, got %d", def.Radius)
	}

	if _, err := combat.ParseFormula(def.Damage.Formula); err != nil {
		return nil, err
	}

	tmpl := &SpellTemplate{
		ID:                         def.ID,
		Name:                       def.Name,
		Characteristic:             def.Characteristic,
		CostPolicy:                 policy,
		BaseCost:                   def.Cost.Base,
		Target:                     target,
		RangeCells:                 def.Range,
		RadiusCells:                def.Radius,
		AttackBonus:                def.AttackBonus,
		Damage:                     def.Damage.Formula,
		DamageBonus:                def.Damage.Bonus,
		ForcesPartialDamageOnDodge: def.ForcesPartialDamageOnDodge,
		Animation:                  def.Animation,
	}

	if def.Resistance != nil {
		mode, err := combat.ParseResistanceMode(def.Resistance.Mode)
		if err != nil {
			return nil, err
		}
		if def.Resistance.Characteristic == "" {
			return nil, errors.New("resistance without characteristic")
		}
		tmpl.Resistance = &ResistanceTemplate{Characteristic: def.Resistance.Characteristic, Mode: mode}
	}

	if def.Effect != nil {
		eff, err := buildEffectTemplate(def.Effect)
		if err != nil {
			return nil, fmt.Errorf("effect: %w", err)
		}
		tmpl.Effect = eff
	}

	return tmpl, nil
}

func buildEffectTemplate(def *effectDef) (*EffectTemplate, error) {
	if def.Kind == "" {
		return nil, errors.New("missing kind")
	}
	if def.Charges < 0 {
		return nil, fmt.Errorf("negative charges %d", def.Charges)
	}
	stance, err := model.ParseStance(def.Stance)
	if err != nil {
		return nil, err
	}

	return &EffectTemplate{
		Kind:         def.Kind,
		Name:         def.Name,
		Icon:         def.Icon,
		Description:  def.Description,
		Charges:      def.Charges,
		Stance:       stance,
		BonusFlags:   model.DecodeBonusFlags(def.BonusFlags),
		VisualHandle: def.VisualHandle,
		Animation:    def.Animation,
	}, nil
}
