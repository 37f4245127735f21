// Command hybridflow runs one request through the full analysis and
// orchestration pipeline and prints the terminal response. It is a
// development harness, not a production entry point: agents are simple
// built-ins that echo their capability work.
//
// Usage:
//
//	hybridflow [-config config.yaml] [-db tasks.db] [-long-horizon] "Research X and write a report"
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/hupe1980/hybridflow"
	"github.com/hupe1980/hybridflow/config"
	"github.com/hupe1980/hybridflow/core"
	"github.com/hupe1980/hybridflow/logging"
	"github.com/hupe1980/hybridflow/model"
	"github.com/hupe1980/hybridflow/model/anthropic"
	"github.com/hupe1980/hybridflow/model/local"
	"github.com/hupe1980/hybridflow/model/openai"
	"github.com/hupe1980/hybridflow/pipeline"
	"github.com/hupe1980/hybridflow/record"
	"github.com/hupe1980/hybridflow/store"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	dbPath := flag.String("db", "", "SQLite path for task state and execution records (default in-memory)")
	longHorizon := flag.Bool("long-horizon", false, "hint the strategy decision toward plan lookahead")
	flag.Parse()

	if flag.NArg() == 0 {
		log.Fatal("usage: hybridflow [flags] \"request text\"")
	}
	request := strings.Join(flag.Args(), " ")

	// .env is optional; real environments export the keys directly.
	_ = godotenv.Load()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
	}

	providers := providersFromConfig(cfg.Model, os.Getenv)

	opts := []func(o *hybridflow.Options){
		func(o *hybridflow.Options) {
			o.Config = cfg
			o.Providers = providers
			o.Local = localFromConfig(cfg.Model)
			o.Logger = logging.NewLogger(&logging.LoggerConfig{
				Level:  logging.LogLevelInfo,
				Format: "text",
				Output: os.Stderr,
			})
		},
	}
	if *dbPath != "" {
		taskStore, err := store.OpenSQLite(*dbPath)
		if err != nil {
			log.Fatalf("open task store: %v", err)
		}
		defer taskStore.Close()
		sink, err := record.OpenSQLite(*dbPath + ".records")
		if err != nil {
			log.Fatalf("open record sink: %v", err)
		}
		defer sink.Close()
		opts = append(opts, func(o *hybridflow.Options) {
			o.TaskStore = taskStore
			o.RecordSink = sink
		})
	}

	flow, err := hybridflow.New(opts...)
	if err != nil {
		log.Fatalf("init: %v", err)
	}
	for _, a := range builtinAgents() {
		flow.RegisterAgent(a)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	resp, err := flow.Process(ctx, pipeline.Request{
		Text:                request,
		Caller:              core.CallerContext{UserID: "cli"},
		LongHorizonRequired: *longHorizon,
	})
	if err != nil {
		log.Fatalf("process: %v", err)
	}

	out, _ := json.MarshalIndent(struct {
		TraceID  string             `json:"trace_id"`
		Status   core.TaskStatus    `json:"status"`
		Direct   bool               `json:"direct"`
		Intent   string             `json:"intent,omitempty"`
		Strategy core.StrategyMode  `json:"strategy,omitempty"`
		Reason   string             `json:"reason_code,omitempty"`
		Nodes    []core.NodeResult  `json:"nodes,omitempty"`
		Switches []core.SwitchEvent `json:"switches,omitempty"`
		Answer   string             `json:"answer"`
	}{
		TraceID:  resp.TraceID,
		Status:   resp.Status,
		Direct:   resp.Direct,
		Intent:   resp.Intent.ID,
		Strategy: resp.Strategy.Mode,
		Reason:   resp.ReasonCode,
		Nodes:    resp.NodeResults,
		Switches: resp.SwitchEvents,
		Answer:   resp.Answer,
	}, "", "  ")
	fmt.Println(string(out))
}

// apiKeyEnv maps configured provider names to the env var carrying their
// credential.
var apiKeyEnv = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
}

// providersFromConfig builds the provider list in configured order. A
// provider is included only when its API key is present; unknown names are
// skipped with a warning so a typo in the config is visible.
func providersFromConfig(cfg config.ModelConfig, getenv func(string) string) []model.Model {
	var providers []model.Model
	for _, name := range cfg.Providers {
		envKey, ok := apiKeyEnv[name]
		if !ok {
			log.Printf("unknown model provider %q in config, skipping", name)
			continue
		}
		if getenv(envKey) == "" {
			continue
		}
		switch name {
		case "openai":
			providers = append(providers, openai.NewModel())
		case "anthropic":
			providers = append(providers, anthropic.NewModel())
		}
	}
	return providers
}

// localFromConfig returns the offline fallback model, or nil when the config
// names none.
func localFromConfig(cfg config.ModelConfig) model.Model {
	if cfg.LocalFallback == "" {
		return nil
	}
	return local.NewModel()
}

// builtinAgents are deterministic demo agents covering the default intent
// catalog's capabilities.
func builtinAgents() []core.Agent {
	return []core.Agent{
		newEchoAgent("searcher", "web.search"),
		newEchoAgent("analyst", "data.analyze", "text.summarize"),
		newEchoAgent("writer", "report.compose", "chat.respond"),
	}
}

type echoAgent struct {
	id           string
	capabilities []string
}

func newEchoAgent(id string, capabilities ...string) *echoAgent {
	return &echoAgent{id: id, capabilities: capabilities}
}

func (a *echoAgent) ID() string             { return a.id }
func (a *echoAgent) Capabilities() []string { return a.capabilities }
func (a *echoAgent) Available() bool        { return true }

func (a *echoAgent) Invoke(ctx context.Context, capabilityID, input string) (core.Observation, error) {
	if err := ctx.Err(); err != nil {
		return core.Observation{}, err
	}
	return core.Observation{
		Output: fmt.Sprintf("[%s] %s: %s", a.id, capabilityID, input),
	}, nil
}
