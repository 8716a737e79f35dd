// Package declaration parses the nested YAML document the compiler
// consumes: an ordered list of playbook imports and blocks, validated
// against a fixed key whitelist at every nesting level.
package declaration

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/smilemakc/playbookflow/internal/domain"
)

// allowedKeys is the closed set of declaration keys: any other key fails
// the load.
var allowedKeys = map[string]struct{}{
	"block":           {},
	"import_playbook": {},
	"name":            {},
	"strategy":        {},
	"id":              {},
	"vars":            {},
	"inventory":       {},
	"description":     {},
	"reference":       {},
}

// Entry is one element of the declaration list: either a Playbook entry
// (ImportPlaybook set) or a Block entry (Block set).
type Entry struct {
	ID          string         `yaml:"id,omitempty"`
	Name        string         `yaml:"name,omitempty"`
	Description string         `yaml:"description,omitempty"`
	Reference   string         `yaml:"reference,omitempty"`
	Inventory   string         `yaml:"inventory,omitempty"`
	Vars        map[string]any `yaml:"vars,omitempty"`

	ImportPlaybook string `yaml:"import_playbook,omitempty"`

	Strategy domain.Strategy `yaml:"strategy,omitempty"`
	Block    []Entry         `yaml:"block,omitempty"`

	raw map[string]any
}

// IsBlock reports whether the entry is a Block (has a "block" key), even an
// empty one.
func (e Entry) IsBlock() bool {
	_, hasKey := e.raw["block"]
	return hasKey
}

// Document is the top-level declaration: an ordered list of entries that
// the compiler treats as implicitly strategy=serial.
type Document []Entry

// Parse decodes a YAML document into a Document, rejecting unknown keys at
// every nesting level.
func Parse(data []byte) (Document, error) {
	var raw []map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, domain.NewDomainError(domain.ErrCodeYAMLInvalid, "failed to parse workflow YAML", err)
	}
	doc, err := parseEntries(raw)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func parseEntries(raw []map[string]any) ([]Entry, error) {
	entries := make([]Entry, 0, len(raw))
	for _, m := range raw {
		e, err := parseEntry(m)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func parseEntry(m map[string]any) (Entry, error) {
	for k := range m {
		if _, ok := allowedKeys[k]; !ok {
			return Entry{}, domain.NewDomainError(domain.ErrCodeValidationFailed,
				fmt.Sprintf("unknown declaration key %q", k), nil)
		}
	}

	e := Entry{raw: m}
	if v, ok := m["id"].(string); ok {
		e.ID = v
	}
	if v, ok := m["name"].(string); ok {
		e.Name = v
	}
	if v, ok := m["description"].(string); ok {
		e.Description = v
	}
	if v, ok := m["reference"].(string); ok {
		e.Reference = v
	}
	if v, ok := m["inventory"].(string); ok {
		e.Inventory = v
	}
	if v, ok := m["import_playbook"].(string); ok {
		e.ImportPlaybook = v
	}
	if v, ok := m["vars"].(map[string]any); ok {
		e.Vars = v
	}
	if v, ok := m["strategy"].(string); ok {
		e.Strategy = domain.Strategy(v)
	}

	if blockRaw, hasBlock := m["block"]; hasBlock {
		items, ok := blockRaw.([]any)
		if !ok {
			return Entry{}, domain.NewDomainError(domain.ErrCodeValidationFailed, "block must be a list", nil)
		}
		converted := make([]map[string]any, 0, len(items))
		for _, item := range items {
			cm, ok := item.(map[string]any)
			if !ok {
				return Entry{}, domain.NewDomainError(domain.ErrCodeValidationFailed, "block entries must be mappings", nil)
			}
			converted = append(converted, cm)
		}
		children, err := parseEntries(converted)
		if err != nil {
			return Entry{}, err
		}
		e.Block = children
	}

	return e, nil
}
