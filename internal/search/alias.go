package search

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// AliasDict expands query terms with domain synonyms, so "auth" also
// matches documents tagged "authentication". Each entry in the
// dictionary file defines a group (the canonical label plus its
// aliases); every member of the group maps to all its siblings, so a
// query using any surface form reaches the whole group. Keys and
// values are matched and emitted lowercase.
type AliasDict map[string][]string

// LoadAliases reads an alias dictionary from a YAML file and closes
// each group: the canonical key and every alias all expand to the rest
// of their group. A missing file is an empty dictionary.
func LoadAliases(path string) (AliasDict, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return AliasDict{}, nil
		}
		return nil, fmt.Errorf("search: read aliases: %w", err)
	}
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("search: parse aliases: %w", err)
	}
	dict := make(AliasDict, len(raw))
	for k, vs := range raw {
		group := make([]string, 0, len(vs)+1)
		if key := strings.ToLower(strings.TrimSpace(k)); key != "" {
			group = append(group, key)
		}
		for _, v := range vs {
			if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
				group = append(group, v)
			}
		}
		for i, member := range group {
			for j, other := range group {
				if i != j {
					dict[member] = append(dict[member], other)
				}
			}
		}
	}
	return dict, nil
}

// Expand returns the terms plus their aliases, deduplicated, original
// terms first. Expansion is one level deep; aliases of aliases are not
// followed.
func (d AliasDict) Expand(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	var out []string
	add := func(t string) {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			return
		}
		seen[t] = true
		out = append(out, t)
	}
	for _, t := range terms {
		add(t)
	}
	for _, t := range terms {
		for _, alias := range d[strings.ToLower(strings.TrimSpace(t))] {
			add(alias)
		}
	}
	return out
}
