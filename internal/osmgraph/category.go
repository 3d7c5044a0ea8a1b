package osmgraph

import "github.com/paulmach/osm"

// Category is a canonical way classification. Raw highway/railway values
// that are not in the equivalence table are their own category.
type Category string

// Canonical categories that carry routing profiles.
const (
	CategoryMotorway     Category = "motorway"
	CategoryPrimary      Category = "primary"
	CategorySecondary    Category = "secondary"
	CategoryUnclassified Category = "unclassified"
	CategoryService      Category = "service"
	CategoryCycleway     Category = "cycleway"
	CategoryFootway      Category = "footway"
	CategoryRail         Category = "rail"
	CategorySubway       Category = "subway"
	CategoryRiver        Category = "river"
)

// equivalence collapses tag variants onto canonical categories. No value on
// the right-hand side may appear as a key, which keeps Canonicalize
// idempotent.
var equivalence = map[string]Category{
	"motorway_link":  CategoryMotorway,
	"trunk":          CategoryPrimary,
	"trunk_link":     CategoryPrimary,
	"primary_link":   CategoryPrimary,
	"secondary_link": CategorySecondary,
	"tertiary":       CategorySecondary,
	"tertiary_link":  CategorySecondary,
	"residential":    CategoryUnclassified,
	"minor":          CategoryUnclassified,
	"living_street":  CategoryUnclassified,
	"road":           CategoryUnclassified,
	"driveway":       CategoryService,
	"bridleway":      CategoryCycleway,
	"track":          CategoryCycleway,
	"pedestrian":     CategoryFootway,
	"steps":          CategoryFootway,
	"arcade":         CategoryFootway,
	"path":           CategoryFootway,
	"canal":          CategoryRiver,
	"riverbank":      CategoryRiver,
	"lake":           CategoryRiver,
	"light_rail":     CategoryRail,
}

// Canonicalize maps a raw tag value through the equivalence table.
func Canonicalize(raw string) Category {
	if c, ok := equivalence[raw]; ok {
		return c
	}
	return Category(raw)
}

// Classify returns the canonical category of a way from its highway tag,
// falling back to railway. The empty category means the way is neither.
func Classify(tags osm.Tags) Category {
	if v := tags.Find("highway"); v != "" {
		return Canonicalize(v)
	}
	if v := tags.Find("railway"); v != "" {
		return Canonicalize(v)
	}
	return ""
}

// IsOneway reports whether a way is tagged one-way in its drawing direction.
func IsOneway(tags osm.Tags) bool {
	switch tags.Find("oneway") {
	case "yes", "true", "1":
		return true
	default:
		return false
	}
}
