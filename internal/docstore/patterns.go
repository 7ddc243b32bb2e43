package docstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Pattern statuses eligible for approved-only retrieval.
const (
	PatternApproved = "approved"
	PatternActive   = "active"
)

// Priority tiers for pattern ranking.
const (
	PriorityHighest = "highest"
	PriorityMedium  = "medium"
)

// Pattern is one reusable practice surfaced during review. One JSON
// file per pattern source under patterns/; each file holds a list.
type Pattern struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Status      string   `json:"status,omitempty"`   // approved | active | draft | deprecated
	Priority    string   `json:"priority,omitempty"` // highest | medium | "" (default)
}

// Approved reports whether the pattern participates in approved-only
// retrieval.
func (p Pattern) Approved() bool {
	return p.Status == PatternApproved || p.Status == PatternActive
}

// SavePatternSource writes one pattern source file.
func (s *Store) SavePatternSource(name string, patterns []Pattern) error {
	return writeJSON(filepath.Join(s.root, PatternsDir, name+".json"), patterns)
}

// ListPatterns loads every pattern from every source file, in stable
// source-then-position order. Unreadable sources are skipped.
func (s *Store) ListPatterns() ([]Pattern, error) {
	dir := filepath.Join(s.root, PatternsDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("docstore: read patterns: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var all []Pattern
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		var patterns []Pattern
		if err := json.Unmarshal(data, &patterns); err != nil {
			s.log.Warn().Str("source", name).Err(err).Msg("skipping unreadable pattern source")
			continue
		}
		all = append(all, patterns...)
	}
	return all, nil
}

// ─── Rule sets ───────────────────────────────────────────────────────────────

// Rule is one reviewable rule inside a rule set.
type Rule struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Keywords    []string `yaml:"keywords,omitempty" json:"keywords,omitempty"`
	Status      string   `yaml:"status,omitempty" json:"status,omitempty"`
	Priority    string   `yaml:"priority,omitempty" json:"priority,omitempty"`
}

// RuleSet is one YAML file under rules/.
type RuleSet struct {
	Name  string `yaml:"name" json:"name"`
	Rules []Rule `yaml:"rules" json:"rules"`
}

// ListRuleSets loads every rule set. Unreadable files are skipped.
func (s *Store) ListRuleSets() ([]RuleSet, error) {
	dir := filepath.Join(s.root, RulesDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("docstore: read rules: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".yaml") || strings.HasSuffix(e.Name(), ".yml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var sets []RuleSet
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		var set RuleSet
		if err := yaml.Unmarshal(data, &set); err != nil {
			s.log.Warn().Str("source", name).Err(err).Msg("skipping unreadable rule set")
			continue
		}
		if set.Name == "" {
			set.Name = strings.TrimSuffix(strings.TrimSuffix(name, ".yaml"), ".yml")
		}
		sets = append(sets, set)
	}
	return sets, nil
}
