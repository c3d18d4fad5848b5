// Package semantic resolves user-supplied semantic layer references to
// configured layer ids.
//
// A reference may be an exact id, an exact name (case-insensitive), or an
// approximate name. Approximate matching uses Jaro-Winkler similarity with a
// 0.85 threshold; anything below that is rejected with did-you-mean
// suggestions so a typo never silently queries the wrong layer.
package semantic

import (
	"fmt"
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
)

// defaultFuzzyThreshold is the minimum Jaro-Winkler score for a fuzzy name match.
const defaultFuzzyThreshold = 0.85

// Layer describes one selectable semantic layer.
type Layer struct {
	ID          string
	Name        string
	Description string
}

// NotFoundError is returned when a reference cannot be resolved. Suggestions
// holds the closest-scoring layer names, best first.
type NotFoundError struct {
	Ref         string
	Suggestions []string
}

func (e *NotFoundError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("semantic: no layer matches %q", e.Ref)
	}
	return fmt.Sprintf("semantic: no layer matches %q (did you mean: %s?)", e.Ref, strings.Join(e.Suggestions, ", "))
}

// Option is a functional option for configuring a [Registry].
type Option func(*Registry)

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required for an
// approximate name match. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(r *Registry) {
		r.fuzzyThreshold = threshold
	}
}

// Registry holds the configured semantic layers. It is read-only after
// construction and safe for concurrent use.
type Registry struct {
	layers         []Layer
	fuzzyThreshold float64
}

// NewRegistry creates a Registry over the given layers.
func NewRegistry(layers []Layer, opts ...Option) *Registry {
	r := &Registry{
		layers:         layers,
		fuzzyThreshold: defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Layers returns all configured layers in registration order.
func (r *Registry) Layers() []Layer {
	out := make([]Layer, len(r.layers))
	copy(out, r.layers)
	return out
}

// Resolve maps ref to a configured layer. Exact id match wins, then exact
// name (case-insensitive), then the best fuzzy name match above the
// threshold. An unknown ref with no configured layers resolves to a layer
// with the ref as its id, since ids are opaque to this tool.
func (r *Registry) Resolve(ref string) (Layer, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Layer{}, fmt.Errorf("semantic: layer reference must not be empty")
	}

	if len(r.layers) == 0 {
		// Nothing configured to match against; pass the ref through as an id.
		return Layer{ID: ref}, nil
	}

	for _, l := range r.layers {
		if l.ID == ref {
			return l, nil
		}
	}

	refLower := strings.ToLower(ref)
	for _, l := range r.layers {
		if strings.ToLower(l.Name) == refLower {
			return l, nil
		}
	}

	type scored struct {
		layer Layer
		score float64
	}
	ranked := make([]scored, 0, len(r.layers))
	for _, l := range r.layers {
		if l.Name == "" {
			continue
		}
		score := matchr.JaroWinkler(refLower, strings.ToLower(l.Name), false)
		ranked = append(ranked, scored{layer: l, score: score})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if len(ranked) > 0 && ranked[0].score >= r.fuzzyThreshold {
		return ranked[0].layer, nil
	}

	// Build did-you-mean suggestions from the top candidates.
	var suggestions []string
	for i, c := range ranked {
		if i >= 3 || c.score < 0.5 {
			break
		}
		suggestions = append(suggestions, c.layer.Name)
	}
	return Layer{}, &NotFoundError{Ref: ref, Suggestions: suggestions}
}
