package constants

import (
	"strings"
)

type WorkType string

const (
	Demolition    WorkType = "Demolition"
	Earthworks    WorkType = "Earthworks"
	Concrete      WorkType = "Concrete"
	Reinforcement WorkType = "Reinforcement"
	Formwork      WorkType = "Formwork"
	Masonry       WorkType = "Masonry"
	Structural    WorkType = "StructuralSteel"
	Carpentry     WorkType = "Carpentry"
	Roofing       WorkType = "Roofing"
	Waterproofing WorkType = "Waterproofing"
	Finishes      WorkType = "Finishes"
	Painting      WorkType = "Painting"
	Plumbing      WorkType = "Plumbing"
	Drainage      WorkType = "Drainage"
	Electrical    WorkType = "Electrical"
	Mechanical    WorkType = "Mechanical"
	Paving        WorkType = "Paving"
	OtherWorkType WorkType = "Other"
)

// workTypeKeywords is the fixed domain taxonomy. Keywords are lowercase single
// tokens in their stemmed-friendly base form.
var workTypeKeywords = map[WorkType][]string{
	Demolition:    {"demolish", "demolition", "remove", "removal", "breaking", "strip", "dismantle"},
	Earthworks:    {"excavation", "excavate", "trench", "backfill", "fill", "compaction", "soil", "earth", "cart", "disposal", "levelling", "grading"},
	Concrete:      {"concrete", "blinding", "slab", "footing", "column", "beam", "screed", "precast", "grout"},
	Reinforcement: {"reinforcement", "rebar", "mesh", "bar", "bars", "brc", "stirrup"},
	Formwork:      {"formwork", "shuttering", "falsework", "mould"},
	Masonry:       {"brick", "brickwork", "block", "blockwork", "masonry", "stone", "mortar"},
	Structural:    {"steel", "steelwork", "truss", "purlin", "bolt", "weld", "galvanized"},
	Carpentry:     {"timber", "door", "frame", "joinery", "plywood", "skirting", "cabinet"},
	Roofing:       {"roof", "roofing", "sheeting", "gutter", "ridge", "fascia", "tile"},
	Waterproofing: {"waterproofing", "membrane", "bitumen", "dpc", "damp", "sealant"},
	Finishes:      {"plaster", "render", "tiling", "tiles", "ceiling", "flooring", "cladding", "skim"},
	Painting:      {"paint", "painting", "primer", "emulsion", "varnish", "coat", "coats"},
	Plumbing:      {"pipe", "pipework", "valve", "tap", "basin", "wc", "sanitary", "water", "ppr", "upvc"},
	Drainage:      {"drain", "drainage", "manhole", "culvert", "sewer", "gully", "channel"},
	Electrical:    {"cable", "conduit", "socket", "switch", "lighting", "luminaire", "wiring", "earthing", "breaker"},
	Mechanical:    {"duct", "ductwork", "hvac", "chiller", "pump", "fan", "insulation"},
	Paving:        {"asphalt", "paving", "kerb", "curb", "interlock", "subbase", "wearing", "tack"},
}

var allWorkTypes = []WorkType{
	Demolition, Earthworks, Concrete, Reinforcement, Formwork, Masonry, Structural,
	Carpentry, Roofing, Waterproofing, Finishes, Painting, Plumbing, Drainage,
	Electrical, Mechanical, Paving,
}

// Materials recognized by the construction feature extractor.
var Materials = []string{
	"concrete", "steel", "timber", "brick", "block", "stone", "glass", "aluminium",
	"aluminum", "pvc", "upvc", "hdpe", "ppr", "copper", "asphalt", "bitumen", "gypsum",
	"ceramic", "porcelain", "granite", "marble", "sand", "gravel", "aggregate", "cement",
}

var keywordIndex = func() map[string]WorkType {
	idx := make(map[string]WorkType)
	for _, wt := range allWorkTypes {
		for _, kw := range workTypeKeywords[wt] {
			if _, exists := idx[kw]; !exists {
				idx[kw] = wt
			}
		}
	}
	return idx
}()

// WorkTypes returns the taxonomy in priority order.
func WorkTypes() []WorkType {
	out := make([]WorkType, len(allWorkTypes))
	copy(out, allWorkTypes)
	return out
}

// KeywordsFor returns the taxonomy keywords of a work type.
func KeywordsFor(wt WorkType) []string {
	return workTypeKeywords[wt]
}

// LookupKeyword returns the work type a single token belongs to.
func LookupKeyword(token string) (WorkType, bool) {
	wt, ok := keywordIndex[strings.ToLower(strings.TrimSpace(token))]
	return wt, ok
}

// CanonicalizeWorkType maps a free-form label ("Earth works", "RC works") to a
// work type.
func CanonicalizeWorkType(input string) (WorkType, bool) {
	if input == "" {
		return OtherWorkType, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	// synonyms map
	synonyms := map[string]WorkType{
		"earth works":      Earthworks,
		"earthwork":        Earthworks,
		"site works":       Earthworks,
		"rc works":         Concrete,
		"concrete works":   Concrete,
		"in-situ concrete": Concrete,
		"steel fixing":     Reinforcement,
		"block work":       Masonry,
		"brick work":       Masonry,
		"metalwork":        Structural,
		"joinery":          Carpentry,
		"decoration":       Painting,
		"mep":              Mechanical,
		"external works":   Paving,
		"roads":            Paving,
	}

	if wt, ok := synonyms[normalized]; ok {
		return wt, true
	}

	// check if it matches any work type string
	for _, wt := range allWorkTypes {
		if normalized == strings.ToLower(string(wt)) {
			return wt, true
		}
	}

	// fall back to the first keyword hit
	for _, tok := range strings.Fields(normalized) {
		if wt, ok := keywordIndex[tok]; ok {
			return wt, true
		}
	}

	return OtherWorkType, false
}
