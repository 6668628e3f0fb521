package lexical

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/joseph-ayodele/boq-matcher/constants"
	"github.com/joseph-ayodele/boq-matcher/internal/entity"
	"github.com/joseph-ayodele/boq-matcher/internal/units"
)

// Score weights. The base similarity contributes up to 60, the bonuses are
// added on top and the total is clamped to 100.
const (
	baseWeight        = 0.6
	exactUnitBonus    = 25.0
	compatibleBonus   = 20.0
	maxCategoryBonus  = 20.0
	maxKeywordBonus   = 20.0
	keywordCap        = 3
	featureWeight     = 0.3
	exactCodeFloor    = 95.0
	categoryThreshold = 50.0
	MaxScore          = 100.0
)

// Breakdown keys.
const (
	PartBase     = "base"
	PartUnit     = "unit"
	PartCategory = "category"
	PartKeyword  = "keyword"
	PartFeatures = "features"
	PartCode     = "code"
	PartTotal    = "total"
)

// Query is a prepared description; build it once and score it against many
// items.
type Query struct {
	Description    string
	Unit           string
	ContextHeaders []string

	variants  textVariants
	rawSet    map[string]struct{}
	keywords  map[string]struct{}
	features  Features
	headerWTs map[constants.WorkType]struct{}
}

// NewQuery prepares a description. The unit is taken from unit when set,
// otherwise extracted from the description text.
func NewQuery(description, unit string, contextHeaders []string) Query {
	return newQuery(description, unit, contextHeaders, nil)
}

func newQuery(description, unit string, contextHeaders []string, st *Stemmer) Query {
	v := buildVariants(description, st)
	q := Query{
		Description:    description,
		Unit:           units.Resolve(unit, description),
		ContextHeaders: contextHeaders,
		variants:       v,
		rawSet:         tokenSet(v.raw),
		keywords:       domainKeywords(v.industry),
		features:       extractFeatures(strings.ToLower(description), v),
		headerWTs:      make(map[constants.WorkType]struct{}),
	}
	for _, h := range contextHeaders {
		if wt, ok := constants.CanonicalizeWorkType(h); ok {
			q.headerWTs[wt] = struct{}{}
		}
	}
	return q
}

// Item is a catalog item prepared for lexical comparison.
type Item struct {
	entity.CatalogItem

	variants textVariants
	code     string
	keywords map[string]struct{}
	features Features
	workType constants.WorkType
}

// PrepareItem precomputes the comparison forms of a catalog item.
func PrepareItem(c entity.CatalogItem) Item {
	return prepareItem(c, nil)
}

func prepareItem(c entity.CatalogItem, st *Stemmer) Item {
	v := buildVariants(c.Description, st)
	kwTokens := append([]string{}, v.industry...)
	for _, k := range c.Keywords {
		kwTokens = append(kwTokens, replaceTokens(Tokens(k), industryTerms)...)
	}
	wt, _ := constants.CanonicalizeWorkType(c.Category)
	return Item{
		CatalogItem: c,
		variants:    v,
		code:        NormalizeText(c.Code),
		keywords:    domainKeywords(kwTokens),
		features:    extractFeatures(strings.ToLower(c.Description), v),
		workType:    wt,
	}
}

// Scored is one item's score with its explainability breakdown.
type Scored struct {
	Item      entity.CatalogItem
	Score     float64
	Breakdown map[string]float64
}

// Confidence maps the score onto [0,1].
func (s Scored) Confidence() float64 {
	return s.Score / MaxScore
}

// Score rates one prepared item against a query.
func Score(q Query, it Item) Scored {
	bd := make(map[string]float64, 7)

	var base float64
	qv, iv := q.variants.all(), it.variants.all()
	for i := range qv {
		base = max(base, TokenSetRatio(qv[i], iv[i]))
	}
	bd[PartBase] = base * baseWeight

	bd[PartUnit] = unitBonus(q.Unit, it.Unit)
	bd[PartCategory] = categoryBonus(q, it)
	bd[PartKeyword] = keywordBonus(q.keywords, it.keywords)
	bd[PartFeatures] = featureScore(q.features, it.features) * featureWeight

	total := bd[PartBase] + bd[PartUnit] + bd[PartCategory] + bd[PartKeyword] + bd[PartFeatures]
	if it.code != "" && codeMatches(q, it.code) {
		bd[PartCode] = exactCodeFloor
		total = max(total, exactCodeFloor)
	}
	total = math.Min(math.Max(total, 0), MaxScore)
	bd[PartTotal] = total

	return Scored{Item: it.CatalogItem, Score: total, Breakdown: bd}
}

// codeMatches reports whether the query names the item's code. A bare number
// is only accepted as the whole description since quantities and sizes share
// its form.
func codeMatches(q Query, code string) bool {
	if NormalizeText(q.Description) == code {
		return true
	}
	if strings.Contains(code, " ") || strings.IndexFunc(code, unicode.IsLetter) < 0 {
		return false
	}
	_, ok := q.rawSet[code]
	return ok
}

func unitBonus(queryUnit, itemUnit string) float64 {
	if queryUnit == "" || itemUnit == "" {
		return 0
	}
	if units.Equal(queryUnit, itemUnit) {
		return exactUnitBonus
	}
	if units.Compatible(queryUnit, itemUnit) {
		return compatibleBonus
	}
	return 0
}

// categoryBonus scales the best fuzzy overlap between any context header and
// the item's category or subcategory. A header naming the same work type as
// the item's category earns the full bonus.
func categoryBonus(q Query, it Item) float64 {
	if len(q.ContextHeaders) == 0 || (it.Category == "" && it.Subcategory == "") {
		return 0
	}
	if it.workType != "" && it.workType != constants.OtherWorkType {
		if _, ok := q.headerWTs[it.workType]; ok {
			return maxCategoryBonus
		}
	}
	var best float64
	for _, h := range q.ContextHeaders {
		for _, c := range []string{it.Category, it.Subcategory} {
			if c == "" {
				continue
			}
			best = max(best, TextSimilarity(h, c))
		}
	}
	if best < categoryThreshold {
		return 0
	}
	return maxCategoryBonus * best / 100
}

func keywordBonus(q, it map[string]struct{}) float64 {
	shared := 0
	for k := range q {
		if _, ok := it[k]; ok {
			shared++
		}
	}
	if shared > keywordCap {
		shared = keywordCap
	}
	return maxKeywordBonus * float64(shared) / keywordCap
}

// Index is a catalog snapshot prepared for repeated lexical scoring.
type Index struct {
	items []Item
	stem  *Stemmer
}

// NewIndex prepares every catalog item once. The index owns a bounded stem
// cache shared by the queries it builds.
func NewIndex(catalog []entity.CatalogItem) *Index {
	idx := &Index{items: make([]Item, len(catalog)), stem: NewStemmer(DefaultStemCacheSize)}
	for i, c := range catalog {
		idx.items[i] = prepareItem(c, idx.stem)
	}
	return idx
}

// Query prepares a description with the index's stem cache.
func (idx *Index) Query(description, unit string, contextHeaders []string) Query {
	return newQuery(description, unit, contextHeaders, idx.stem)
}

// Len is the number of indexed items.
func (idx *Index) Len() int {
	return len(idx.items)
}

// Best returns the highest scoring item. Ties go to the smallest id. There is
// always a candidate unless the index is empty.
func (idx *Index) Best(q Query) (Scored, bool) {
	var best Scored
	found := false
	for _, it := range idx.items {
		s := Score(q, it)
		if !found || s.Score > best.Score || (s.Score == best.Score && s.Item.ID < best.Item.ID) {
			best, found = s, true
		}
	}
	return best, found
}

// Rank scores every item, best first, with the same tie-break as Best.
func (idx *Index) Rank(q Query, limit int) []Scored {
	out := make([]Scored, 0, len(idx.items))
	for _, it := range idx.items {
		out = append(out, Score(q, it))
	}
	sortScored(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func sortScored(s []Scored) {
	sort.Slice(s, func(i, j int) bool { return less(s[i], s[j]) })
}

func less(a, b Scored) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Item.ID < b.Item.ID
}
