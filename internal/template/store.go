package template

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/gestornet/invoice-extractor/internal/models"
	"github.com/gestornet/invoice-extractor/internal/rules"
	"github.com/gestornet/invoice-extractor/pkg/logger"
)

// Store loads the hierarchical template tree (<dir>/<advisor>/<name>.yml)
// and resolves templates for incoming documents. The loaded set lives
// behind an atomic pointer: Reload swaps a whole new snapshot so in-flight
// requests never observe a half-updated store.
type Store struct {
	dir    string
	logger logger.Logger
	snap   atomic.Pointer[snapshot]
}

type snapshot struct {
	advisors map[string][]*Template
}

type templateFile struct {
	Match  string    `yaml:"match"`
	Fields yaml.Node `yaml:"fields"`
}

type fieldSpec struct {
	Pattern  string `yaml:"pattern"`
	Scope    string `yaml:"scope"`
	Priority *int   `yaml:"priority"`
}

// NewStore loads all templates under dir. Load failures of the whole tree
// are fatal; a store with zero templates is valid (generic rules only).
func NewStore(dir string, log logger.Logger) (*Store, error) {
	s := &Store{dir: dir, logger: log}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the template tree and atomically replaces the snapshot.
func (s *Store) Reload() error {
	snap, err := load(s.dir)
	if err != nil {
		return err
	}
	s.snap.Store(snap)

	total := 0
	for _, tpls := range snap.advisors {
		total += len(tpls)
	}
	s.logger.Info("template store loaded",
		logger.String("dir", s.dir),
		logger.Int("advisors", len(snap.advisors)),
		logger.Int("templates", total),
	)
	return nil
}

// Resolve returns the first template of the advisor whose pattern matches
// the filename, in lexicographic template order, or nil when the advisor is
// empty, unknown, or nothing matches. A nil result is not an error, it
// signals "generic rules only".
func (s *Store) Resolve(advisor, filename string) *Template {
	if advisor == "" {
		return nil
	}
	snap := s.snap.Load()
	for _, tpl := range snap.advisors[advisor] {
		if tpl.Matches(filename) {
			return tpl
		}
	}
	return nil
}

// Advisors lists the advisors that have at least one template, sorted.
func (s *Store) Advisors() []string {
	snap := s.snap.Load()
	out := make([]string, 0, len(snap.advisors))
	for advisor := range snap.advisors {
		out = append(out, advisor)
	}
	sort.Strings(out)
	return out
}

// TemplateIDs lists the template ids of one advisor, in resolution order.
func (s *Store) TemplateIDs(advisor string) []string {
	snap := s.snap.Load()
	tpls := snap.advisors[advisor]
	out := make([]string, 0, len(tpls))
	for _, tpl := range tpls {
		out = append(out, tpl.ID)
	}
	return out
}

func load(dir string) (*snapshot, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return &snapshot{advisors: map[string][]*Template{}}, nil
		}
		return nil, fmt.Errorf("failed to read template dir: %w", err)
	}

	advisors := make(map[string][]*Template)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		advisor := entry.Name()

		files, err := os.ReadDir(filepath.Join(dir, advisor))
		if err != nil {
			return nil, fmt.Errorf("failed to read advisor dir %q: %w", advisor, err)
		}

		var tpls []*Template
		for _, f := range files {
			name := f.Name()
			ext := strings.ToLower(filepath.Ext(name))
			if f.IsDir() || (ext != ".yml" && ext != ".yaml") {
				continue
			}

			tpl, err := parseTemplate(filepath.Join(dir, advisor, name), advisor, strings.TrimSuffix(name, filepath.Ext(name)))
			if err != nil {
				return nil, err
			}
			tpls = append(tpls, tpl)
		}

		// Lexicographic template order keeps resolution deterministic.
		sort.Slice(tpls, func(i, j int) bool { return tpls[i].Name < tpls[j].Name })
		if len(tpls) > 0 {
			advisors[advisor] = tpls
		}
	}

	return &snapshot{advisors: advisors}, nil
}

func parseTemplate(path, advisor, name string) (*Template, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", path, err)
	}

	var tf templateFile
	if err := yaml.Unmarshal(raw, &tf); err != nil {
		return nil, fmt.Errorf("invalid template %s: %w", path, err)
	}

	tpl := &Template{
		ID:      advisor + "/" + name,
		Advisor: advisor,
		Name:    name,
	}

	if tf.Match != "" {
		re, err := regexp.Compile(tf.Match)
		if err != nil {
			return nil, fmt.Errorf("invalid match pattern in %s: %w", path, err)
		}
		tpl.Match = re
	}

	if tf.Fields.Kind != 0 && tf.Fields.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("invalid template %s: fields must be a mapping", path)
	}

	// Walk the mapping node pairwise so the author's field order is the
	// rule order.
	for i := 0; i+1 < len(tf.Fields.Content); i += 2 {
		field := tf.Fields.Content[i].Value

		var spec fieldSpec
		if err := tf.Fields.Content[i+1].Decode(&spec); err != nil {
			return nil, fmt.Errorf("invalid field %q in %s: %w", field, path, err)
		}

		if !models.IsSchemaField(field) {
			return nil, fmt.Errorf("template %s names unknown field %q", path, field)
		}
		if spec.Pattern == "" {
			return nil, fmt.Errorf("field %q in %s has no pattern", field, path)
		}

		re, err := regexp.Compile(spec.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern for field %q in %s: %w", field, path, err)
		}

		priority := 0 // template rules outrank generic ones by default
		if spec.Priority != nil {
			priority = *spec.Priority
		}

		tpl.Rules = append(tpl.Rules, rules.FieldRule{
			ID:       tpl.ID + ":" + field,
			Field:    field,
			Pattern:  re,
			Scope:    rules.ParseScope(spec.Scope),
			Priority: priority,
		})
	}

	return tpl, nil
}
