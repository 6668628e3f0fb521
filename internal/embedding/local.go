package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"

	"github.com/joseph-ayodele/boq-matcher/internal/matching/lexical"
)

// LocalProvider is an offline feature-hashing embedder. Each unigram and
// bigram of the normalized, abbreviation-expanded text is hashed into a
// signed bucket; the result is L2-normalized. It is deterministic and needs
// no network.
type LocalProvider struct {
	dims int
}

func NewLocalProvider(dims int) *LocalProvider {
	if dims <= 0 {
		dims = 256
	}
	return &LocalProvider{dims: dims}
}

func (p *LocalProvider) Name() string    { return fmt.Sprintf("local:hash%d", p.dims) }
func (p *LocalProvider) MaxBatch() int   { return 1024 }
func (p *LocalProvider) Dimensions() int { return p.dims }

func (p *LocalProvider) Embed(ctx context.Context, texts []string, _ Role) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = p.vector(t)
	}
	return out, nil
}

func (p *LocalProvider) vector(text string) []float64 {
	v := make([]float64, p.dims)
	var tokens []string
	for _, variant := range lexical.Variants(text) {
		tokens = append(tokens, lexical.Tokens(variant)...)
	}
	for i, tok := range tokens {
		p.add(v, tok, 1)
		if i > 0 {
			p.add(v, tokens[i-1]+" "+tok, 0.5)
		}
	}
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	if norm == 0 {
		return v
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] /= norm
	}
	return v
}

func (p *LocalProvider) add(v []float64, feature string, weight float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(p.dims))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	v[idx] += weight
}
