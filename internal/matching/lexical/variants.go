package lexical

import "strings"

// Common BOQ shorthand.
var abbreviations = map[string]string{
	"exc":    "excavation",
	"excav":  "excavation",
	"conc":   "concrete",
	"rcc":    "reinforced cement concrete",
	"rc":     "reinforced concrete",
	"pcc":    "plain cement concrete",
	"reinf":  "reinforcement",
	"thk":    "thick",
	"dia":    "diameter",
	"ht":     "height",
	"wd":     "width",
	"lg":     "long",
	"approx": "approximately",
	"incl":   "including",
	"excl":   "excluding",
	"ext":    "external",
	"int":    "internal",
	"fdn":    "foundation",
	"fdns":   "foundations",
	"blk":    "block",
	"bwk":    "brickwork",
	"plstr":  "plaster",
	"galv":   "galvanized",
	"gi":     "galvanized iron",
	"ms":     "mild steel",
	"dpc":    "damp proof course",
	"dpm":    "damp proof membrane",
	"ffl":    "finished floor level",
	"ngl":    "natural ground level",
	"avg":    "average",
	"supp":   "supply",
	"inst":   "installation",
	"fix":    "fixing",
}

// Regional and trade synonyms mapped to the catalog's vocabulary.
var industryTerms = map[string]string{
	"shuttering": "formwork",
	"rebar":      "reinforcement",
	"rebars":     "reinforcement",
	"blockwork":  "block masonry",
	"brickwork":  "brick masonry",
	"earthwork":  "excavation",
	"earthworks": "excavation",
	"digging":    "excavation",
	"dig":        "excavation",
	"hardcore":   "fill",
	"blinding":   "lean concrete",
	"screeding":  "screed",
	"rendering":  "plaster",
	"render":     "plaster",
	"emulsion":   "paint",
	"kerb":       "curb",
	"kerbs":      "curb",
	"tarmac":     "asphalt",
	"ducting":    "ductwork",
	"cabling":    "cable",
	"carting":    "cart",
	"mesh":       "reinforcement mesh",
	"bricks":     "brick",
	"blocks":     "block",
}

func replaceTokens(tokens []string, table map[string]string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if r, ok := table[t]; ok {
			out = append(out, strings.Fields(r)...)
			continue
		}
		out = append(out, t)
	}
	return out
}

// textVariants holds the token lists compared pairwise between a query and
// a catalog item.
type textVariants struct {
	raw      []string
	expanded []string
	industry []string
	stemmed  []string
}

func buildVariants(text string, st *Stemmer) textVariants {
	raw := Tokens(text)
	expanded := replaceTokens(raw, abbreviations)
	industry := replaceTokens(expanded, industryTerms)
	return textVariants{
		raw:      raw,
		expanded: expanded,
		industry: industry,
		stemmed:  st.stemTokens(industry),
	}
}

func (v textVariants) all() [][]string {
	return [][]string{v.raw, v.expanded, v.industry, v.stemmed}
}

// Variants returns the distinct normalized phrasings used for comparison.
func Variants(text string) []string {
	v := buildVariants(text, nil)
	seen := make(map[string]struct{}, 4)
	var out []string
	for _, toks := range v.all() {
		s := strings.Join(toks, " ")
		if _, ok := seen[s]; ok || s == "" {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
