// Package intent implements the L2 intent abstraction layer: a fixed,
// versioned scoring function mapping a semantic digest onto exactly one
// registry intent. Absence of a confident match is a defined outcome (the
// designated fallback intent), never an error.
package intent

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/hybridflow/config"
	"github.com/hupe1980/hybridflow/core"
	"github.com/hupe1980/hybridflow/logging"
)

// Match reports which intent was selected and how. Score and ScorerVersion
// are kept for reproducibility audits.
type Match struct {
	Intent         core.Intent
	Score          float64
	ScorerVersion  string
	CatalogVersion string
	UsedFallback   bool
}

// Matcher scores registry intents against semantic digests.
type Matcher struct {
	registry core.IntentRegistry
	cfg      config.IntentConfig
	logger   logging.Logger
}

// Options configures a Matcher.
type Options struct {
	Logger logging.Logger
}

// NewMatcher builds a Matcher over the intent registry.
func NewMatcher(registry core.IntentRegistry, cfg config.IntentConfig, optFns ...func(o *Options)) *Matcher {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Matcher{registry: registry, cfg: cfg, logger: opts.Logger}
}

// Resolve selects the highest-scoring intent above the confidence floor, or
// the fallback intent otherwise. catalogVersion may be empty for the active
// catalog. The scoring function is deterministic for a given scorer version.
func (m *Matcher) Resolve(_ context.Context, sem core.SemanticOutput, catalogVersion string) (Match, error) {
	intents, err := m.registry.ListIntents(catalogVersion)
	if err != nil {
		return Match{}, fmt.Errorf("list intents: %w", err)
	}

	best := Match{Score: -1, ScorerVersion: m.cfg.ScorerVersion, CatalogVersion: catalogVersion}
	for _, in := range intents {
		if in.IsFallback {
			continue
		}
		score := m.score(in, sem)
		if score > best.Score {
			best.Intent = in
			best.Score = score
		}
	}

	if best.Score >= m.cfg.ConfidenceFloor && best.Intent.ID != "" {
		m.logger.Debug("intent matched", "intent", best.Intent.ID, "score", best.Score)
		return best, nil
	}

	fb, err := m.registry.Fallback()
	if err != nil {
		return Match{}, fmt.Errorf("fallback intent: %w", err)
	}
	m.logger.Debug("no confident intent, using fallback", "best_score", best.Score, "floor", m.cfg.ConfidenceFloor)
	return Match{
		Intent:         fb,
		Score:          best.Score,
		ScorerVersion:  m.cfg.ScorerVersion,
		CatalogVersion: catalogVersion,
		UsedFallback:   true,
	}, nil
}

// score computes the weighted keyword overlap between an intent and the
// digest, normalized by the intent's keyword count so verbose intents do
// not dominate.
func (m *Matcher) score(in core.Intent, sem core.SemanticOutput) float64 {
	if len(in.Keywords) == 0 {
		return 0
	}
	keywords := make(map[string]struct{}, len(in.Keywords))
	for _, k := range in.Keywords {
		keywords[strings.ToLower(k)] = struct{}{}
	}

	var raw float64
	for _, t := range sem.Topics {
		if _, ok := keywords[strings.ToLower(t)]; ok {
			raw += m.cfg.TopicWeight
		}
	}
	for _, e := range sem.Entities {
		if _, ok := keywords[strings.ToLower(e)]; ok {
			raw += m.cfg.EntityWeight
		}
	}
	for _, s := range sem.ActionSignals {
		if _, ok := keywords[strings.ToLower(s)]; ok {
			raw += m.cfg.ActionWeight
		}
	}

	maxWeight := m.cfg.TopicWeight
	if m.cfg.ActionWeight > maxWeight {
		maxWeight = m.cfg.ActionWeight
	}
	if m.cfg.EntityWeight > maxWeight {
		maxWeight = m.cfg.EntityWeight
	}
	norm := raw / (maxWeight * float64(len(in.Keywords)))
	if norm > 1 {
		norm = 1
	}
	return norm
}
