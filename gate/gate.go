// Package gate implements the L0 cheap gate: a chain of ordered heuristic
// rules that decides whether a request is trivially answerable or needs the
// full analysis pipeline. The gate is pure and side-effect free; any rule
// evaluation error degrades toward NEEDS_ANALYSIS, never toward an
// unchecked direct answer.
package gate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hupe1980/hybridflow/config"
)

// Outcome is the gate's classification of a raw request.
type Outcome string

const (
	// DirectCandidate marks a request the semantic layer may answer
	// directly without planning.
	DirectCandidate Outcome = "DIRECT_CANDIDATE"
	// NeedsAnalysis routes the request through the full pipeline. This is
	// the default for anything unmatched.
	NeedsAnalysis Outcome = "NEEDS_ANALYSIS"
)

// Rule is one ordered heuristic. Match returns the outcome and true when
// the rule fires; evaluation stops at the first firing rule.
type Rule struct {
	Name  string
	Match func(text string) (Outcome, bool, error)
}

// Gate evaluates rules with first-match-wins semantics.
type Gate struct {
	rules []Rule
}

// New builds the standard rule chain from configuration. Rules are ordered:
// risk keywords first (they must win over any factoid match), then the
// length ceiling, then factoid patterns.
func New(cfg config.GateConfig) (*Gate, error) {
	patterns := make([]*regexp.Regexp, 0, len(cfg.FactoidPatterns))
	for _, p := range cfg.FactoidPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile factoid pattern %q: %w", p, err)
		}
		patterns = append(patterns, re)
	}

	keywords := make([]string, len(cfg.RiskKeywords))
	for i, k := range cfg.RiskKeywords {
		keywords[i] = strings.ToLower(k)
	}

	rules := []Rule{
		{
			Name: "risk_keywords",
			Match: func(text string) (Outcome, bool, error) {
				lower := strings.ToLower(text)
				for _, k := range keywords {
					if strings.Contains(lower, k) {
						return NeedsAnalysis, true, nil
					}
				}
				return "", false, nil
			},
		},
		{
			Name: "length_ceiling",
			Match: func(text string) (Outcome, bool, error) {
				if utf8.RuneCountInString(text) > cfg.MaxDirectLength {
					return NeedsAnalysis, true, nil
				}
				return "", false, nil
			},
		},
		{
			Name: "factoid_patterns",
			Match: func(text string) (Outcome, bool, error) {
				for _, re := range patterns {
					if re.MatchString(text) {
						return DirectCandidate, true, nil
					}
				}
				return "", false, nil
			},
		},
	}

	return &Gate{rules: rules}, nil
}

// NewWithRules builds a gate from a custom rule chain. Order matters.
func NewWithRules(rules ...Rule) *Gate { return &Gate{rules: rules} }

// Classify runs the rule chain over the request text. First match wins;
// unmatched input and rule errors both resolve to NeedsAnalysis.
func (g *Gate) Classify(text string) Outcome {
	for _, r := range g.rules {
		outcome, matched, err := r.Match(text)
		if err != nil {
			// Fail open toward the fuller pipeline.
			return NeedsAnalysis
		}
		if matched {
			return outcome
		}
	}
	return NeedsAnalysis
}
