// Package catalog loads the static Resource Catalog the Roadmap Planner
// binds weeks against. The catalog is read-only process state: it is
// parsed once at startup and never mutated, so adding resources never
// requires a code change in the planner.
package catalog

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/connexus-ai/resumatch/internal/model"
)

//go:embed resources.yaml
var resourcesYAML []byte

// Catalog is an in-memory, read-only index over the curated learning
// resources.
type Catalog struct {
	resources []model.LearningResource
	byKeyword map[string][]model.LearningResource
}

// Load parses the embedded catalog and builds its keyword index. Called
// once at startup; the result is shared read-only across requests.
func Load() (*Catalog, error) {
	var resources []model.LearningResource
	if err := yaml.Unmarshal(resourcesYAML, &resources); err != nil {
		return nil, fmt.Errorf("catalog.Load: %w", err)
	}
	if len(resources) < 80 {
		return nil, fmt.Errorf("catalog.Load: only %d resources embedded, want at least 80", len(resources))
	}

	c := &Catalog{
		resources: resources,
		byKeyword: make(map[string][]model.LearningResource),
	}
	for _, r := range resources {
		for _, kw := range r.Keywords {
			nkw := normalizeKeyword(kw)
			c.byKeyword[nkw] = append(c.byKeyword[nkw], r)
		}
		for _, alias := range r.Aliases {
			nkw := normalizeKeyword(alias)
			c.byKeyword[nkw] = append(c.byKeyword[nkw], r)
		}
	}
	return c, nil
}

// Size returns the number of entries in the catalog.
func (c *Catalog) Size() int {
	return len(c.resources)
}

// Has reports whether url belongs to a catalog entry, used to enforce the
// "never emit a resource URL absent from the catalog" guarantee.
func (c *Catalog) Has(url string) bool {
	for _, r := range c.resources {
		if r.URL == url {
			return true
		}
	}
	return false
}

// maxResourcesPerWeek bounds how many resources Resolve returns.
const maxResourcesPerWeek = 3

// Resolve finds up to maxResourcesPerWeek resources for a keyword, by
// normalized equality first and falling back to alias matches, preferring
// entries whose difficulty matches preferredDifficulty.
func (c *Catalog) Resolve(keyword string, preferredDifficulty model.Difficulty) []model.LearningResource {
	candidates := c.byKeyword[normalizeKeyword(keyword)]
	if len(candidates) == 0 {
		return nil
	}

	preferred := make([]model.LearningResource, 0, len(candidates))
	rest := make([]model.LearningResource, 0, len(candidates))
	for _, r := range candidates {
		if r.Difficulty == preferredDifficulty {
			preferred = append(preferred, r)
		} else {
			rest = append(rest, r)
		}
	}
	ordered := append(preferred, rest...)

	seen := make(map[string]bool)
	var out []model.LearningResource
	for _, r := range ordered {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		out = append(out, r)
		if len(out) >= maxResourcesPerWeek {
			break
		}
	}
	return out
}

// normalizeKeyword lowercases and strips whitespace, matching the Matching
// Engine and Roadmap Planner's keyword normalization rule.
func normalizeKeyword(kw string) string {
	return strings.ToLower(strings.Join(strings.Fields(kw), ""))
}
