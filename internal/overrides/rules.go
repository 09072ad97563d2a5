package overrides

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"crittersync/internal/logging"
	"crittersync/internal/services"
	"crittersync/internal/textutil"
)

// File mirrors the on-disk override document.
type File struct {
	CritterCategories Section `yaml:"critter_categories"`
}

// Section holds the two override maps.
type Section struct {
	Species map[string]string `yaml:"species"`
	Groups  map[string]string `yaml:"groups"`
}

// Rules is the normalized, read-only form of an override file. The zero value
// and nil both behave as an empty rule set.
type Rules struct {
	species map[string]string
	groups  map[string]string
}

// Empty returns a rule set with no overrides.
func Empty() *Rules {
	return &Rules{}
}

// New normalizes the given section into rules. Entries with blank keys or
// values are ignored.
func New(section Section) *Rules {
	return &Rules{
		species: normalizeMap(section.Species),
		groups:  normalizeMap(section.Groups),
	}
}

// Load reads the override file at path. A blank path or a missing file yields
// empty rules.
func Load(path string, logger *slog.Logger) (*Rules, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return Empty(), nil
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	data, err := os.ReadFile(trimmed)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Debug("no override file", logging.String("path", trimmed))
			return Empty(), nil
		}
		return nil, services.Wrap(services.ErrConfiguration, "overrides", "read", trimmed, err)
	}

	rules, err := Parse(data)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "overrides", "parse", trimmed, err)
	}
	logger.Info("loaded classification overrides",
		logging.String("path", trimmed),
		logging.Int("species", len(rules.species)),
		logging.Int("groups", len(rules.groups)))
	return rules, nil
}

// Parse decodes an override document.
func Parse(data []byte) (*Rules, error) {
	data = bytes.TrimPrefix(data, []byte("\xEF\xBB\xBF"))
	if len(bytes.TrimSpace(data)) == 0 {
		return Empty(), nil
	}
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode overrides: %w", err)
	}
	return New(file.CritterCategories), nil
}

// Species returns the group pinned to a scientific name.
func (r *Rules) Species(name string) (string, bool) {
	if r == nil {
		return "", false
	}
	group, ok := r.species[textutil.Key(name)]
	return group, ok
}

// Group returns the group mapped to a taxon name.
func (r *Rules) Group(name string) (string, bool) {
	if r == nil {
		return "", false
	}
	group, ok := r.groups[textutil.Key(name)]
	return group, ok
}

// Len reports the total number of rules.
func (r *Rules) Len() int {
	if r == nil {
		return 0
	}
	return len(r.species) + len(r.groups)
}

func normalizeMap(values map[string]string) map[string]string {
	normalized := make(map[string]string, len(values))
	for key, value := range values {
		k := textutil.Key(key)
		v := strings.Join(strings.Fields(value), " ")
		if k == "" || v == "" {
			continue
		}
		normalized[k] = v
	}
	return normalized
}
