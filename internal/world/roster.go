package world

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Iron-Ham/gladoid/internal/errors"
)

// Weapon is an armory entry.
type Weapon struct {
	Name   string `yaml:"name"`
	Damage int    `yaml:"damage"`
}

// FighterSpec describes a fighter to spawn.
type FighterSpec struct {
	Name   string `yaml:"name"`
	HP     int    `yaml:"hp"`
	Speed  int    `yaml:"speed"`
	Weapon string `yaml:"weapon"`
}

// Roster is the cast of a world: the armory and the fighters, spawned in
// order with ids starting at 1.
type Roster struct {
	Armory   []Weapon      `yaml:"armory"`
	Fighters []FighterSpec `yaml:"fighters"`
}

// Defaults for fields a roster file leaves out.
const (
	DefaultHP     = 10
	DefaultSpeed  = 50
	DefaultWeapon = "Kılıç"
	DefaultDamage = 3
)

// DefaultRoster returns the built-in duel: Sergen against Quanntum.
func DefaultRoster() Roster {
	return Roster{
		Armory: []Weapon{{Name: DefaultWeapon, Damage: DefaultDamage}},
		Fighters: []FighterSpec{
			{Name: "Sergen", HP: DefaultHP, Speed: DefaultSpeed, Weapon: DefaultWeapon},
			{Name: "Quanntum", HP: DefaultHP, Speed: DefaultSpeed, Weapon: DefaultWeapon},
		},
	}
}

// LoadRoster reads a YAML roster file.
func LoadRoster(path string) (Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Roster{}, fmt.Errorf("read roster: %w", err)
	}
	return ParseRoster(data)
}

// ParseRoster decodes a YAML roster, fills defaults and validates it.
// Unknown keys are rejected.
func ParseRoster(data []byte) (Roster, error) {
	var r Roster
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&r); err != nil && err != io.EOF {
		return Roster{}, apperrors.NewValidationError("malformed roster").WithCause(err)
	}

	r.applyDefaults()
	if err := r.Validate(); err != nil {
		return Roster{}, err
	}
	return r, nil
}

func (r *Roster) applyDefaults() {
	if len(r.Armory) == 0 {
		r.Armory = []Weapon{{Name: DefaultWeapon, Damage: DefaultDamage}}
	}
	for i := range r.Fighters {
		f := &r.Fighters[i]
		if f.HP == 0 {
			f.HP = DefaultHP
		}
		if f.Speed == 0 {
			f.Speed = DefaultSpeed
		}
		if f.Weapon == "" {
			f.Weapon = r.Armory[0].Name
		}
	}
}

// Validate checks that the roster can start a game.
func (r Roster) Validate() error {
	if len(r.Fighters) < 2 {
		return apperrors.NewValidationError("at least two fighters are required").
			WithField("fighters").WithValue(len(r.Fighters))
	}

	weapons := make(map[string]bool, len(r.Armory))
	for i, w := range r.Armory {
		field := fmt.Sprintf("armory[%d]", i)
		if w.Name == "" {
			return apperrors.NewValidationError("weapon name is required").WithField(field)
		}
		if w.Damage < 0 {
			return apperrors.NewValidationError("damage must be non-negative").
				WithField(field).WithValue(w.Damage)
		}
		weapons[w.Name] = true
	}

	names := make(map[string]bool, len(r.Fighters))
	for i, f := range r.Fighters {
		field := fmt.Sprintf("fighters[%d]", i)
		switch {
		case f.Name == "":
			return apperrors.NewValidationError("fighter name is required").WithField(field)
		case names[f.Name]:
			return apperrors.NewValidationError("duplicate fighter name").WithField(field).WithValue(f.Name)
		case f.HP <= 0:
			return apperrors.NewValidationError("hp must be positive").WithField(field).WithValue(f.HP)
		case f.Speed <= 0:
			return apperrors.NewValidationError("speed must be positive").WithField(field).WithValue(f.Speed)
		case !weapons[f.Weapon]:
			return apperrors.NewValidationError("weapon is not in the armory").WithField(field).WithValue(f.Weapon)
		}
		names[f.Name] = true
	}
	return nil
}

func (r Roster) weapon(name string) Weapon {
	for _, w := range r.Armory {
		if w.Name == name {
			return w
		}
	}
	return r.Armory[0]
}
