// Package catalog loads and indexes tool specifications.
//
// Specs are JSON files loaded once at startup, either from the embedded
// default set or an operator-provided directory. The catalog is read-only after
// construction, so lookups need no locking.
package catalog

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"github.com/nichedotsol/agentex/internal/model"
)

//go:embed specs/*.json
var embeddedSpecs embed.FS

// ErrNotFound is returned when a tool id cannot be resolved.
var ErrNotFound = errors.New("catalog: tool not found")

// IDPrefix is the canonical tool id prefix. Callers frequently omit or
// double it, so resolution tries both forms.
const IDPrefix = "tool-"

// Catalog is an immutable, indexed set of tool specifications.
type Catalog struct {
	byID  map[string]model.ToolSpec
	order []string // ids in sorted order, for deterministic listings
}

// Load builds a catalog from the embedded spec files.
func Load(logger *slog.Logger) (*Catalog, error) {
	sub, err := fs.Sub(embeddedSpecs, "specs")
	if err != nil {
		return nil, fmt.Errorf("catalog: embedded specs: %w", err)
	}
	return LoadFS(sub, logger)
}

// LoadFS builds a catalog from JSON spec files in fsys. Files that fail to
// parse are skipped with a warning; a catalog with zero tools is an error.
func LoadFS(fsys fs.FS, logger *slog.Logger) (*Catalog, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("catalog: read specs dir: %w", err)
	}

	c := &Catalog{byID: make(map[string]model.ToolSpec)}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := fs.ReadFile(fsys, e.Name())
		if err != nil {
			logger.Warn("catalog: read spec failed", "file", e.Name(), "error", err)
			continue
		}
		var spec model.ToolSpec
		if err := json.Unmarshal(data, &spec); err != nil {
			logger.Warn("catalog: parse spec failed", "file", e.Name(), "error", err)
			continue
		}
		if err := validateSpec(spec); err != nil {
			logger.Warn("catalog: invalid spec skipped", "file", e.Name(), "error", err)
			continue
		}
		if spec.Category == "" || !model.ValidCategory(spec.Category) {
			spec.Category = model.CategoryUtility
		}
		if spec.Cost.Tier == "" {
			spec.Cost.Tier = model.TierFree
		}
		c.byID[spec.ID] = spec
	}

	if len(c.byID) == 0 {
		return nil, errors.New("catalog: no valid tool specs found")
	}

	for id := range c.byID {
		c.order = append(c.order, id)
	}
	sort.Strings(c.order)

	logger.Info("catalog loaded", "tools", len(c.byID))
	return c, nil
}

func validateSpec(spec model.ToolSpec) error {
	if spec.ID == "" {
		return errors.New("missing id")
	}
	if spec.Name == "" {
		return errors.New("missing name")
	}
	return nil
}

// Len returns the number of tools in the catalog.
func (c *Catalog) Len() int { return len(c.byID) }

// All returns every tool spec in deterministic (id-sorted) order.
func (c *Catalog) All() []model.ToolSpec {
	out := make([]model.ToolSpec, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// Resolve looks up a tool by id using three-step matching: the exact id,
// the id with the canonical prefix added, and the id with it stripped.
func (c *Catalog) Resolve(id string) (model.ToolSpec, error) {
	if spec, ok := c.byID[id]; ok {
		return spec, nil
	}
	if spec, ok := c.byID[IDPrefix+id]; ok {
		return spec, nil
	}
	if trimmed := strings.TrimPrefix(id, IDPrefix); trimmed != id {
		if spec, ok := c.byID[trimmed]; ok {
			return spec, nil
		}
	}
	return model.ToolSpec{}, fmt.Errorf("%w: %q", ErrNotFound, id)
}

// FindSimilar returns the closest existing tool for an unresolved id, or
// false when nothing is close. Closeness is substring containment in either
// direction on the id, or containment of the requested id in the display
// name, case-insensitively. Candidates are scanned in sorted id order so the
// suggestion is deterministic.
func (c *Catalog) FindSimilar(id string) (model.ToolSpec, bool) {
	lower := strings.ToLower(id)
	if lower == "" {
		return model.ToolSpec{}, false
	}
	for _, candidateID := range c.order {
		spec := c.byID[candidateID]
		lowerCandidate := strings.ToLower(spec.ID)
		if strings.Contains(lowerCandidate, lower) || strings.Contains(lower, lowerCandidate) {
			return spec, true
		}
		lowerName := strings.ToLower(spec.Name)
		if strings.Contains(lowerName, lower) || strings.Contains(lower, lowerName) {
			return spec, true
		}
	}
	return model.ToolSpec{}, false
}

// Search filters tools by the provided criteria, combined with AND.
// An empty request returns the full catalog.
func (c *Catalog) Search(req model.ToolSearchRequest) []model.ToolSpec {
	var out []model.ToolSpec
	for _, id := range c.order {
		spec := c.byID[id]
		if req.Category != "" && spec.Category != req.Category {
			continue
		}
		if !hasAllCapabilities(spec, req.Capabilities) {
			continue
		}
		if req.Query != "" && !matchesQuery(spec, req.Query) {
			continue
		}
		out = append(out, spec)
	}
	return out
}

func hasAllCapabilities(spec model.ToolSpec, wanted []string) bool {
	for _, cap := range wanted {
		lowerCap := strings.ToLower(cap)
		found := false
		for _, have := range spec.Capabilities {
			if strings.Contains(strings.ToLower(have), lowerCap) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func matchesQuery(spec model.ToolSpec, query string) bool {
	q := strings.ToLower(query)
	if strings.Contains(strings.ToLower(spec.Name), q) ||
		strings.Contains(strings.ToLower(spec.Description), q) ||
		strings.Contains(strings.ToLower(spec.ID), q) {
		return true
	}
	for _, tag := range spec.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}
