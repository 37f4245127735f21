// Package hybridflow provides a high-level façade over the request analysis
// pipeline and the hybrid orchestration layer. Most applications interact
// with this package by:
//  1. Creating a HybridFlow via New() (optionally overriding the default
//     in-memory stores, model providers and intent catalog)
//  2. Registering one or more agents
//  3. Submitting requests with Process()
//
// The façade delegates all staged work to pipeline.Pipeline while keeping
// setup ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply the SQLite store and
// sink implementations, real model providers and a structured logger.
package hybridflow

import (
	"context"

	"github.com/hupe1980/hybridflow/config"
	"github.com/hupe1980/hybridflow/core"
	"github.com/hupe1980/hybridflow/decision"
	"github.com/hupe1980/hybridflow/gate"
	"github.com/hupe1980/hybridflow/intent"
	"github.com/hupe1980/hybridflow/logging"
	"github.com/hupe1980/hybridflow/model"
	"github.com/hupe1980/hybridflow/orchestrator"
	"github.com/hupe1980/hybridflow/pipeline"
	"github.com/hupe1980/hybridflow/planner"
	"github.com/hupe1980/hybridflow/policy"
	"github.com/hupe1980/hybridflow/record"
	"github.com/hupe1980/hybridflow/registry"
	"github.com/hupe1980/hybridflow/semantic"
	"github.com/hupe1980/hybridflow/store"
)

// Options configures the HybridFlow instance.
type Options struct {
	// Config holds every pipeline and orchestration tunable. Defaults to
	// config.Default().
	Config config.Config

	// Providers is the ordered model provider preference list for the
	// direct-answer path. Empty means no direct answers; the gate's direct
	// candidates then run through full analysis.
	Providers []model.Model
	// Local is the designated offline fallback model attempted after every
	// configured provider failed.
	Local model.Model

	// Intents is the initial intent catalog; it must contain exactly one
	// fallback intent. IntentVersion names the catalog version.
	Intents       []core.Intent
	IntentVersion string

	// PolicyRules are appended to the default policy rule set.
	PolicyRules []policy.Rule

	// TaskStore defaults to an in-memory implementation.
	TaskStore core.TaskStore
	// RecordSink defaults to an in-memory implementation.
	RecordSink core.RecordSink

	// Logger defaults to NoOp.
	Logger logging.Logger
}

// HybridFlow is the high-level façade aggregating the analysis pipeline,
// the orchestrator and the registries.
type HybridFlow struct {
	opts         Options
	pipeline     *pipeline.Pipeline
	agents       *registry.AgentRegistry
	capabilities *registry.CapabilityRegistry
	intents      *registry.IntentRegistry
}

// New creates a HybridFlow instance with optional overrides. Any unset
// store is initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) (*HybridFlow, error) {
	opts := Options{
		Config:        config.Default(),
		IntentVersion: "1.0.0",
		TaskStore:     store.NewMemoryStore(),
		RecordSink:    record.NewMemorySink(),
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}

	g, err := gate.New(opts.Config.Gate)
	if err != nil {
		return nil, err
	}

	var router *model.Router
	if len(opts.Providers) > 0 || opts.Local != nil {
		router = model.NewRouter(opts.Providers, func(o *model.RouterOptions) {
			o.Local = opts.Local
			o.Logger = opts.Logger
		})
	}

	intents := opts.Intents
	if len(intents) == 0 {
		intents = defaultIntents()
	}
	intentReg, err := registry.NewIntentRegistry(opts.IntentVersion, intents)
	if err != nil {
		return nil, err
	}

	agents := registry.NewAgentRegistry()
	capabilities := registry.NewCapabilityRegistry()

	p := pipeline.New(opts.Config, pipeline.Components{
		Gate: g,
		Analyzer: semantic.New(router, opts.Config.Semantic, func(o *semantic.Options) {
			o.Logger = opts.Logger
		}),
		Matcher:  intent.NewMatcher(intentReg, opts.Config.Intent),
		Planner: planner.New(capabilities, func(o *planner.Options) {
			o.Logger = opts.Logger
		}),
		Policy: policy.NewCheckLayer(policy.NewService(func(o *policy.Options) {
			o.Logger = opts.Logger
			o.ExtraRules = opts.PolicyRules
		}), opts.Config.Policy),
		Decider: decision.New(opts.Config.Decision),
		Orchestrator: orchestrator.New(agents, opts.TaskStore, opts.Config, func(o *orchestrator.Options) {
			o.Logger = opts.Logger
		}),
		Sink: opts.RecordSink,
	}, func(o *pipeline.Options) {
		o.Logger = opts.Logger
	})

	return &HybridFlow{
		opts:         opts,
		pipeline:     p,
		agents:       agents,
		capabilities: capabilities,
		intents:      intentReg,
	}, nil
}

// RegisterAgent adds an agent and refreshes the capability catalog the
// planner resolves against.
func (h *HybridFlow) RegisterAgent(a core.Agent) {
	h.agents.Register(a)
	h.capabilities.Replace(h.agents.Entries())
}

// PublishIntents installs a new intent catalog version. Readers switch to
// it atomically.
func (h *HybridFlow) PublishIntents(version string, intents []core.Intent) error {
	return h.intents.Publish(version, intents)
}

// Process runs one request through the full pipeline to a terminal
// response.
func (h *HybridFlow) Process(ctx context.Context, req pipeline.Request) (pipeline.Response, error) {
	return h.pipeline.Process(ctx, req)
}

// defaultIntents is the minimal starter catalog: research, reporting and a
// general-chat fallback.
func defaultIntents() []core.Intent {
	return []core.Intent{
		{
			ID: "research.topic", Domain: "research", TargetCapability: "web.search",
			OutputFormat: "markdown", Depth: "deep", Version: "1.0.0",
			Keywords: []string{"research", "investigate", "find", "sources"},
		},
		{
			ID: "report.generate", Domain: "reporting", TargetCapability: "report.compose",
			OutputFormat: "document", Depth: "deep", Version: "1.0.0",
			Keywords: []string{"report", "summary", "quarterly", "charts"},
		},
		{
			ID: "general.chat", Domain: "general", TargetCapability: "chat.respond",
			OutputFormat: "text", Depth: "shallow", Version: "1.0.0",
			IsFallback: true,
		},
	}
}
