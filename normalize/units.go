package normalize

import (
	"math"
	"strings"

	"github.com/simdoc/simdoc/sim"
)

// Canonical unit table. Each entry maps a canonical symbol to its SI
// base and conversion factor; aliases below fold the spellings the
// source tables actually use onto these symbols.
var unitTable = map[string]sim.UnitDef{
	"deg":  {Symbol: "deg", BaseSI: "rad", Factor: math.Pi / 180, Description: "degrees of arc"},
	"rad":  {Symbol: "rad", BaseSI: "rad", Factor: 1},
	"ft":   {Symbol: "ft", BaseSI: "m", Factor: 0.3048, Description: "feet"},
	"m":    {Symbol: "m", BaseSI: "m", Factor: 1},
	"kts":  {Symbol: "kts", BaseSI: "m/s", Factor: 0.514444, Description: "knots"},
	"m/s":  {Symbol: "m/s", BaseSI: "m/s", Factor: 1},
	"ft/s": {Symbol: "ft/s", BaseSI: "m/s", Factor: 0.3048, Description: "feet per second"},
}

var unitAliases = map[string]string{
	"degree":          "deg",
	"degrees":         "deg",
	"°":               "deg",
	"radian":          "rad",
	"radians":         "rad",
	"feet":            "ft",
	"foot":            "ft",
	"meter":           "m",
	"meters":          "m",
	"metre":           "m",
	"metres":          "m",
	"kt":              "kts",
	"knot":            "kts",
	"knots":           "kts",
	"mps":             "m/s",
	"meters/second":   "m/s",
	"fps":             "ft/s",
	"feet/second":     "ft/s",
	"feet per second": "ft/s",
}

// NormalizeUnit folds a raw units cell to its canonical definition.
// Unknown units return ok == false; the caller keeps the raw text so
// the validator can flag it rather than lose it.
func NormalizeUnit(raw string) (sim.UnitDef, bool) {
	key := strings.ToLower(FoldText(raw))
	key = strings.Trim(key, ".")
	if key == "" {
		return sim.UnitDef{}, false
	}
	if canon, ok := unitAliases[key]; ok {
		key = canon
	}
	def, ok := unitTable[key]
	return def, ok
}

// KnownUnit reports whether a symbol is in the canonical table.
func KnownUnit(symbol string) bool {
	_, ok := unitTable[symbol]
	return ok
}
