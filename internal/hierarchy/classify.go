package hierarchy

import (
	"strings"
)

// ============================================================
// Project classification
// ============================================================

type Classification int

const (
	ClassColony Classification = iota
	ClassTower
	ClassCommercial
)

var classNames = map[Classification]string{
	ClassColony:     "colony",
	ClassTower:      "tower",
	ClassCommercial: "commercial",
}

func (c Classification) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return "colony"
}

func (c Classification) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Classification) UnmarshalText(b []byte) error {
	*c = Classify(string(b))
	return nil
}

// Classify resolves the project's free-text type once at load time.
func Classify(typeText string) Classification {
	t := strings.ToLower(typeText)
	switch {
	case containsAny(t, "apartment", "flat", "tower"):
		return ClassTower
	case strings.Contains(t, "commercial"):
		return ClassCommercial
	default:
		return ClassColony
	}
}

// ============================================================
// Unit kinds
// ============================================================

type Kind int

const (
	KindBungalow Kind = iota
	KindTower
	KindTwinVilla
	KindPlot
	KindCommercial
)

var kindNames = map[Kind]string{
	KindBungalow:   "bungalow",
	KindTower:      "tower",
	KindTwinVilla:  "twin_villa",
	KindPlot:       "plot",
	KindCommercial: "commercial",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "bungalow"
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	for kind, name := range kindNames {
		if name == string(b) {
			*k = kind
			return nil
		}
	}
	*k = KindBungalow
	return nil
}

// ClassifyUnit turns a unit's type tag into a Kind. Plot and twin tags win
// over the project class so mixed colonies keep their land parcels.
func ClassifyUnit(unitType string, project Classification) Kind {
	t := strings.ToLower(unitType)
	switch {
	case containsAny(t, "plot", "land"):
		return KindPlot
	case strings.Contains(t, "twin"):
		return KindTwinVilla
	case containsAny(t, "shop", "office", "showroom", "commercial", "retail"):
		return KindCommercial
	}

	switch project {
	case ClassTower:
		return KindTower
	case ClassCommercial:
		return KindCommercial
	}
	return KindBungalow
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
