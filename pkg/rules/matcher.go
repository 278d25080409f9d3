package rules

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Matcher is a pure boolean predicate over a payload document. Matchers
// form a small AST: substring / eq leaves composed with and / or / not.
type Matcher interface {
	Match(doc map[string]interface{}) bool
}

// Substring matches if any listed key holds a string containing substr,
// case-insensitively.
type Substring struct {
	Keys   []string
	Substr string
}

func (m *Substring) Match(doc map[string]interface{}) bool {
	for _, key := range m.Keys {
		for _, value := range pathValues(doc, key) {
			s, ok := value.(string)
			if !ok {
				continue
			}
			if strings.Contains(strings.ToLower(s), strings.ToLower(m.Substr)) {
				return true
			}
		}
	}
	return false
}

// Eq matches if any listed key holds exactly str, case-insensitively.
type Eq struct {
	Keys []string
	Str  string
}

func (m *Eq) Match(doc map[string]interface{}) bool {
	for _, key := range m.Keys {
		for _, value := range pathValues(doc, key) {
			s, ok := value.(string)
			if !ok {
				continue
			}
			if strings.EqualFold(s, m.Str) {
				return true
			}
		}
	}
	return false
}

// And matches if every child matches. Matches on empty children.
type And struct {
	Matchers []Matcher
}

func (m *And) Match(doc map[string]interface{}) bool {
	for _, child := range m.Matchers {
		if !child.Match(doc) {
			return false
		}
	}
	return true
}

// Or matches if any child matches.
type Or struct {
	Matchers []Matcher
}

func (m *Or) Match(doc map[string]interface{}) bool {
	for _, child := range m.Matchers {
		if child.Match(doc) {
			return true
		}
	}
	return false
}

// Not inverts its child.
type Not struct {
	Matcher Matcher
}

func (m *Not) Match(doc map[string]interface{}) bool {
	return !m.Matcher.Match(doc)
}

// matcherEnvelope is the wire form of a matcher node in rules JSON.
type matcherEnvelope struct {
	Type string `json:"type"`

	Keys   []string `json:"keys,omitempty"`
	Substr string   `json:"substr,omitempty"`
	Str    string   `json:"str,omitempty"`

	Matchers []json.RawMessage `json:"matchers,omitempty"`
	Matcher  json.RawMessage   `json:"matcher,omitempty"`
}

// DecodeMatcher parses one matcher node (recursively) from rules JSON.
func DecodeMatcher(data []byte) (Matcher, error) {
	env := &matcherEnvelope{}
	err := json.Unmarshal(data, env)
	if err != nil {
		return nil, err
	}

	switch env.Type {
	case "substring":
		return &Substring{Keys: env.Keys, Substr: env.Substr}, nil
	case "eq":
		return &Eq{Keys: env.Keys, Str: env.Str}, nil
	case "and", "or":
		children := make([]Matcher, 0, len(env.Matchers))
		for _, raw := range env.Matchers {
			child, err := DecodeMatcher(raw)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		if env.Type == "and" {
			return &And{Matchers: children}, nil
		}
		return &Or{Matchers: children}, nil
	case "not":
		if env.Matcher == nil {
			return nil, fmt.Errorf("matcher type 'not' requires a child matcher")
		}
		child, err := DecodeMatcher(env.Matcher)
		if err != nil {
			return nil, err
		}
		return &Not{Matcher: child}, nil
	}

	return nil, fmt.Errorf("unknown matcher type %q", env.Type)
}
