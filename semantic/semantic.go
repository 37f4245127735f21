// Package semantic implements the L1 understanding layer. It produces a
// structured digest of a request (topics, entities, action signals,
// modality, certainty) and may answer gate-approved factoid queries
// directly through the model router.
//
// Contract boundaries: this layer never selects an intent or an agent and
// never performs retrieval-augmented lookup; those belong to L2/L3. When no
// answering backend is available it reports that instead of guessing.
package semantic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/hupe1980/hybridflow/config"
	"github.com/hupe1980/hybridflow/core"
	"github.com/hupe1980/hybridflow/logging"
	"github.com/hupe1980/hybridflow/model"
)

// ErrNoBackend is returned when a direct answer is requested but no model
// backend is configured. The pipeline treats this as NEEDS_ANALYSIS.
var ErrNoBackend = errors.New("no answering backend available")

// actionVerbs are the signals the planner later maps toward capabilities.
var actionVerbs = map[string]string{
	"research": "research", "investigate": "research", "find": "search",
	"search": "search", "look": "search", "summarize": "summarize",
	"summarise": "summarize", "report": "report", "write": "compose",
	"create": "compose", "generate": "compose", "prepare": "compose",
	"draft": "compose", "analyze": "analyze", "analyse": "analyze",
	"compare": "analyze", "translate": "translate", "schedule": "schedule",
	"send": "send", "review": "review",
}

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "of": {}, "to": {},
	"in": {}, "on": {}, "for": {}, "with": {}, "is": {}, "are": {}, "was": {},
	"be": {}, "it": {}, "this": {}, "that": {}, "my": {}, "me": {}, "i": {},
	"you": {}, "please": {}, "can": {}, "could": {}, "would": {}, "do": {},
	"does": {}, "what": {}, "who": {}, "when": {}, "where": {}, "how": {},
	"why": {}, "which": {}, "about": {}, "at": {}, "by": {}, "from": {},
	"into": {}, "up": {}, "out": {}, "as": {}, "if": {}, "some": {}, "all": {},
}

// Analyzer is the semantic understanding layer.
type Analyzer struct {
	router *model.Router
	cfg    config.SemanticConfig
	logger logging.Logger
}

// Options configures an Analyzer.
type Options struct {
	Logger logging.Logger
}

// New builds an Analyzer over the model router. A nil router is allowed;
// the analyzer then only produces digests and never direct answers.
func New(router *model.Router, cfg config.SemanticConfig, optFns ...func(o *Options)) *Analyzer {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Analyzer{router: router, cfg: cfg, logger: opts.Logger}
}

// Analyze produces the semantic digest for a request. The digest is built
// from deterministic lexical extraction so it is reproducible and cheap;
// the model backend is reserved for direct answers.
func (a *Analyzer) Analyze(_ context.Context, text string, sessionContext map[string]string) (core.SemanticOutput, error) {
	words := tokenize(text)

	var topics, entities, signals []string
	seenTopic := map[string]struct{}{}
	seenEntity := map[string]struct{}{}
	seenSignal := map[string]struct{}{}

	for _, w := range words {
		lower := strings.ToLower(w)
		if sig, ok := actionVerbs[lower]; ok {
			if _, dup := seenSignal[sig]; !dup {
				seenSignal[sig] = struct{}{}
				signals = append(signals, sig)
			}
			continue
		}
		if _, stop := stopwords[lower]; stop {
			continue
		}
		if isCapitalized(w) {
			if _, dup := seenEntity[lower]; !dup {
				seenEntity[lower] = struct{}{}
				entities = append(entities, w)
			}
			continue
		}
		if _, dup := seenTopic[lower]; !dup {
			seenTopic[lower] = struct{}{}
			topics = append(topics, lower)
		}
	}

	// Session context contributes topics the current utterance omits
	// ("the same report as yesterday").
	if topic, ok := sessionContext["topic"]; ok && topic != "" {
		lower := strings.ToLower(topic)
		if _, dup := seenTopic[lower]; !dup {
			topics = append(topics, lower)
		}
	}

	out := core.SemanticOutput{
		Topics:        topics,
		Entities:      entities,
		ActionSignals: signals,
		Modality:      classifyModality(text, words, signals),
		Certainty:     certainty(words, topics, signals),
	}
	a.logger.Debug("semantic digest", "topics", len(topics), "entities", len(entities), "signals", signals, "modality", out.Modality)
	return out, nil
}

// AnswerDirect answers a gate-approved factoid query through the model
// router. It returns ErrNoBackend when no provider is configured; callers
// must fall back to full analysis, never to a guessed answer.
func (a *Analyzer) AnswerDirect(ctx context.Context, text string) (string, []core.ModelAttempt, error) {
	if a.router == nil || !a.router.HasBackend() {
		return "", nil, ErrNoBackend
	}
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	resp, attempts, err := a.router.Chat(ctx, model.Request{Messages: []model.Message{
		{Role: "system", Content: "Answer the factual question concisely. If you are not certain, say you do not know."},
		{Role: "user", Content: text},
	}})
	if err != nil {
		return "", attempts, fmt.Errorf("direct answer: %w", err)
	}
	return resp.Content, attempts, nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func isCapitalized(w string) bool {
	r := []rune(w)
	return len(r) > 0 && unicode.IsUpper(r[0])
}

func classifyModality(text string, words []string, signals []string) core.Modality {
	trimmed := strings.TrimSpace(text)
	if strings.HasSuffix(trimmed, "?") {
		return core.ModalityQuery
	}
	if len(words) > 0 {
		switch strings.ToLower(words[0]) {
		case "what", "who", "when", "where", "how", "why", "which":
			return core.ModalityQuery
		}
		if _, imperative := actionVerbs[strings.ToLower(words[0])]; imperative {
			return core.ModalityInstruction
		}
	}
	if len(signals) > 0 {
		return core.ModalityInstruction
	}
	return core.ModalityText
}

// certainty grades how much structure was extracted: a digest with clear
// action signals and topics is more trustworthy than bare stopwords.
func certainty(words, topics, signals []string) float64 {
	if len(words) == 0 {
		return 0
	}
	c := 0.3
	if len(topics) > 0 {
		c += 0.3
	}
	if len(signals) > 0 {
		c += 0.3
	}
	if len(words) >= 4 {
		c += 0.1
	}
	if c > 1 {
		c = 1
	}
	return c
}
