package rules

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fint-dev/fint/pkg/domain"
)

// Patch is a partial metadata update applied when a rule matches. Empty
// fields leave the existing value alone.
type Patch struct {
	Category string `json:"category,omitempty"`
	Payee    string `json:"payee,omitempty"`
}

// Rule pairs a matcher with the metadata patch to apply on match. Rules
// are externally authored, static, ordered configuration.
type Rule struct {
	Match Matcher
	Set   Patch
}

type ruleEnvelope struct {
	Match json.RawMessage `json:"match"`
	Set   Patch           `json:"set"`
}

func (r *Rule) UnmarshalJSON(b []byte) error {
	env := &ruleEnvelope{}
	err := json.Unmarshal(b, env)
	if err != nil {
		return err
	}

	match, err := DecodeMatcher(env.Match)
	if err != nil {
		return err
	}

	r.Match = match
	r.Set = env.Set
	return nil
}

// Load reads an ordered rule list from a JSON file.
func Load(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes an ordered rule list from JSON.
func Parse(data []byte) ([]Rule, error) {
	loaded := []Rule{}
	err := json.Unmarshal(data, &loaded)
	if err != nil {
		return nil, fmt.Errorf("parsing rules: %w", err)
	}
	return loaded, nil
}

// Categorize folds the rule list over every record in a dedup group and
// returns the resulting metadata. Later matches fully override earlier
// ones field by field - last match wins, across the record loop and the
// rule loop - so the outcome depends on record order then rule order.
// A group matching nothing stays "uncategorised".
func Categorize(group []*domain.RawTransaction, ruleset []Rule) domain.Metadata {
	metadata := domain.Metadata{Category: domain.CategoryNone}

	for _, raw := range group {
		doc := raw.Data.Document()
		for _, rule := range ruleset {
			if !rule.Match.Match(doc) {
				continue
			}
			if rule.Set.Category != "" {
				metadata.Category = rule.Set.Category
			}
			if rule.Set.Payee != "" {
				metadata.Payee = rule.Set.Payee
			}
		}
	}

	return metadata
}
