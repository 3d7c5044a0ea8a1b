package osmgraph

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownMode is returned by ParseMode for unsupported transport modes.
var ErrUnknownMode = errors.New("unknown transport mode")

// Mode is a transport mode.
type Mode string

// Supported transport modes.
const (
	ModeCycle Mode = "cycle"
	ModeCar   Mode = "car"
	ModeTrain Mode = "train"
	ModeFoot  Mode = "foot"
	ModeHorse Mode = "horse"
)

// Modes lists every supported mode.
var Modes = []Mode{ModeCycle, ModeCar, ModeTrain, ModeFoot, ModeHorse}

// ParseMode parses a mode name, case-insensitively.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Modes {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// RespectsOneway reports whether one-way tags restrict this mode.
func (m Mode) RespectsOneway() bool {
	return m != ModeFoot
}

// Profile is how one mode treats one category. Weight is a preference
// multiplier: edge cost is distance divided by weight.
type Profile struct {
	Accessible bool
	Weight     float64
}

// Usable reports whether edges of this profile may be inserted.
func (p Profile) Usable() bool {
	return p.Accessible && p.Weight > 0
}

type modeProfiles map[Mode]Profile

var profiles = map[Category]modeProfiles{
	CategoryMotorway: {
		ModeCar: {true, 10},
	},
	CategoryPrimary: {
		ModeCar:   {true, 2},
		ModeCycle: {true, 0.3},
		ModeFoot:  {true, 1},
		ModeHorse: {false, 0.1},
	},
	CategorySecondary: {
		ModeCar:   {true, 1.5},
		ModeCycle: {true, 1},
		ModeFoot:  {true, 1},
		ModeHorse: {false, 0.2},
	},
	CategoryUnclassified: {
		ModeCar:   {true, 1},
		ModeCycle: {true, 1},
		ModeFoot:  {true, 1},
		ModeHorse: {true, 1},
	},
	CategoryService: {
		ModeCar:   {true, 1},
		ModeCycle: {true, 1},
		ModeFoot:  {true, 1},
		ModeHorse: {true, 1},
	},
	CategoryCycleway: {
		ModeCycle: {true, 3},
		ModeFoot:  {true, 0.2},
		ModeHorse: {true, 1},
	},
	CategoryFootway: {
		ModeCycle: {false, 0.2},
		ModeFoot:  {true, 1},
	},
	CategoryRail: {
		ModeTrain: {true, 1},
	},
	CategorySubway: {
		ModeTrain: {true, 1},
	},
	CategoryRiver: {},
}

// ProfileFor returns how mode treats category. Unknown categories are inaccessible.
func ProfileFor(c Category, m Mode) Profile {
	return profiles[c][m]
}

// MaxWeight returns the largest usable weight for the mode, or 0 if the mode
// can use nothing.
func MaxWeight(m Mode) float64 {
	var best float64
	for _, byMode := range profiles {
		if p := byMode[m]; p.Usable() && p.Weight > best {
			best = p.Weight
		}
	}
	return best
}
