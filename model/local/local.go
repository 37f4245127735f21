// Package local provides the designated offline fallback model. It never
// reaches the network and therefore cannot be unavailable; its answers are
// deliberately conservative acknowledgements so a full provider outage still
// resolves to a defined, recorded outcome instead of an error.
package local

import (
	"context"
	"strings"

	"github.com/hupe1980/hybridflow/model"
)

const providerName = "local"

// Model is a deterministic, dependency-free fallback model.
type Model struct {
	name string
}

// NewModel returns the offline fallback model.
func NewModel() *Model { return &Model{name: "local-fallback"} }

// Chat implements model.Model. It produces a minimal deterministic reply
// derived from the last user message.
func (m *Model) Chat(_ context.Context, req model.Request) (model.Response, error) {
	var last string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			last = req.Messages[i].Content
			break
		}
	}
	content := "I could not reach any configured model provider. "
	if last != "" {
		content += "Your request (" + truncate(last, 80) + ") was recorded and can be retried."
	} else {
		content += "The request was recorded and can be retried."
	}
	return model.Response{Content: content, Provider: providerName, Model: m.name}, nil
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.name, Provider: providerName}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
