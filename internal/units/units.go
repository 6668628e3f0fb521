// Package units normalizes units of measure found in BOQ lines and catalog
// records and converts quantities between units of the same family.
package units

import (
	"regexp"
	"strings"
)

// Group is the physical quantity family a unit belongs to.
type Group string

const (
	GroupArea   Group = "area"
	GroupVolume Group = "volume"
	GroupLength Group = "length"
	GroupWeight Group = "weight"
	GroupCount  Group = "count"
	GroupTime   Group = "time"
	GroupLump   Group = "lump"
)

type canonical struct {
	group Group
	// factor converts one of this unit into the group's base unit
	// (m2, m3, m, kg, nr, hr, sum).
	factor float64
}

var canonicalUnits = map[string]canonical{
	"m2":  {GroupArea, 1},
	"cm2": {GroupArea, 0.0001},
	"mm2": {GroupArea, 0.000001},
	"km2": {GroupArea, 1_000_000},
	"ha":  {GroupArea, 10_000},
	"ft2": {GroupArea, 0.09290304},
	"yd2": {GroupArea, 0.83612736},
	"in2": {GroupArea, 0.00064516},

	"m3":  {GroupVolume, 1},
	"cm3": {GroupVolume, 0.000001},
	"l":   {GroupVolume, 0.001},
	"ft3": {GroupVolume, 0.028316846592},
	"yd3": {GroupVolume, 0.764554857984},

	"m":  {GroupLength, 1},
	"mm": {GroupLength, 0.001},
	"cm": {GroupLength, 0.01},
	"km": {GroupLength, 1000},
	"ft": {GroupLength, 0.3048},
	"in": {GroupLength, 0.0254},
	"yd": {GroupLength, 0.9144},

	"kg": {GroupWeight, 1},
	"g":  {GroupWeight, 0.001},
	"t":  {GroupWeight, 1000},
	"lb": {GroupWeight, 0.45359237},

	"nr":   {GroupCount, 1},
	"pair": {GroupCount, 2},
	"doz":  {GroupCount, 12},

	"hr":   {GroupTime, 1},
	"day":  {GroupTime, 8},
	"week": {GroupTime, 40},

	"sum": {GroupLump, 1},
}

var synonyms = map[string]string{
	// area
	"sqm": "m2", "sq.m": "m2", "sq m": "m2", "sq. m": "m2", "m²": "m2", "m^2": "m2",
	"square meter": "m2", "square meters": "m2", "square metre": "m2", "square metres": "m2",
	"sqft": "ft2", "sq.ft": "ft2", "sq ft": "ft2", "sq. ft": "ft2", "sf": "ft2", "ft²": "ft2",
	"square foot": "ft2", "square feet": "ft2",
	"sqyd": "yd2", "sq yd": "yd2", "sq.yd": "yd2", "square yard": "yd2", "square yards": "yd2",
	"cm²": "cm2", "mm²": "mm2", "hectare": "ha", "hectares": "ha", "sq in": "in2", "sqin": "in2",

	// volume
	"cum": "m3", "cu.m": "m3", "cu m": "m3", "m³": "m3", "m^3": "m3",
	"cubic meter": "m3", "cubic meters": "m3", "cubic metre": "m3", "cubic metres": "m3",
	"cft": "ft3", "cu.ft": "ft3", "cu ft": "ft3", "ft³": "ft3", "cubic foot": "ft3", "cubic feet": "ft3",
	"cy": "yd3", "cu yd": "yd3", "cu.yd": "yd3", "cubic yard": "yd3", "cubic yards": "yd3",
	"ltr": "l", "litre": "l", "litres": "l", "liter": "l", "liters": "l", "lit": "l",

	// length
	"lm": "m", "rm": "m", "lin.m": "m", "lin m": "m", "rmt": "m", "mtr": "m", "mtrs": "m",
	"meter": "m", "meters": "m", "metre": "m", "metres": "m", "linear meter": "m", "linear metre": "m",
	"millimeter": "mm", "millimetre": "mm", "centimeter": "cm", "centimetre": "cm",
	"kilometer": "km", "kilometre": "km",
	"lf": "ft", "rft": "ft", "feet": "ft", "foot": "ft", "lin ft": "ft", "linear foot": "ft", "linear feet": "ft",
	"inch": "in", "inches": "in", "yard": "yd", "yards": "yd",

	// weight
	"kgs": "kg", "kilogram": "kg", "kilograms": "kg",
	"ton": "t", "tons": "t", "tonne": "t", "tonnes": "t", "mt": "t",
	"gram": "g", "grams": "g", "lbs": "lb", "pound": "lb", "pounds": "lb",

	// count
	"no": "nr", "no.": "nr", "nos": "nr", "nos.": "nr", "number": "nr", "numbers": "nr",
	"ea": "nr", "each": "nr", "pc": "nr", "pcs": "nr", "piece": "nr", "pieces": "nr",
	"unit": "nr", "units": "nr", "item": "nr", "items": "nr", "set": "nr", "sets": "nr",
	"pr": "pair", "pairs": "pair", "dozen": "doz",

	// time
	"h": "hr", "hrs": "hr", "hour": "hr", "hours": "hr",
	"days": "day", "wk": "week", "weeks": "week",

	// lump sum
	"ls": "sum", "l.s": "sum", "l.s.": "sum", "lump sum": "sum", "lumpsum": "sum", "item sum": "sum",
}

var spaceRe = regexp.MustCompile(`\s+`)

func clean(unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	return spaceRe.ReplaceAllString(u, " ")
}

// Normalize maps a unit to its canonical token. Unknown units come back
// trimmed and lower-cased but otherwise unchanged.
func Normalize(unit string) string {
	u := clean(unit)
	if u == "" {
		return ""
	}
	if _, ok := canonicalUnits[u]; ok {
		return u
	}
	if c, ok := synonyms[u]; ok {
		return c
	}
	// "m2." / "nos." style trailing dots
	if t := strings.TrimRight(u, "."); t != u {
		return Normalize(t)
	}
	return u
}

// Known reports whether unit maps to a canonical unit.
func Known(unit string) bool {
	_, ok := canonicalUnits[Normalize(unit)]
	return ok
}

// GroupOf returns the family of unit, or "" when unknown.
func GroupOf(unit string) Group {
	return canonicalUnits[Normalize(unit)].group
}

// Equal reports whether a and b normalize to the same token. Unknown
// units are equal only when their cleaned text is identical.
func Equal(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	return na != "" && na == nb
}

// Compatible reports whether both units belong to the same family.
func Compatible(a, b string) bool {
	if Equal(a, b) {
		return true
	}
	ga, gb := GroupOf(a), GroupOf(b)
	return ga != "" && ga == gb
}

// ConversionFactor returns the multiplier converting a quantity in unit a
// into unit b.
func ConversionFactor(a, b string) (float64, bool) {
	if Equal(a, b) {
		return 1, true
	}
	ca, okA := canonicalUnits[Normalize(a)]
	cb, okB := canonicalUnits[Normalize(b)]
	if !okA || !okB || ca.group != cb.group || cb.factor == 0 {
		return 0, false
	}
	return ca.factor / cb.factor, true
}

// Convert converts quantity from unit a into unit b.
func Convert(quantity float64, a, b string) (float64, bool) {
	f, ok := ConversionFactor(a, b)
	if !ok {
		return 0, false
	}
	return quantity * f, true
}
