package model

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/hybridflow/core"
	"github.com/hupe1980/hybridflow/logging"
)

// Router walks an ordered provider preference list. On an unavailable-class
// error it fails over to the next provider; when every configured provider
// fails it attempts the designated local fallback before surfacing
// core.ErrAllProvidersFailed. Invalid-request errors abort routing
// immediately since no provider would accept the same request.
type Router struct {
	providers []Model
	local     Model
	logger    logging.Logger
}

// RouterOptions configures a Router.
type RouterOptions struct {
	// Local is the designated offline fallback model. Optional but strongly
	// recommended; without it an outage of every provider is terminal.
	Local Model
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// NewRouter builds a Router over an ordered provider list.
func NewRouter(providers []Model, optFns ...func(o *RouterOptions)) *Router {
	opts := RouterOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Router{providers: providers, local: opts.Local, logger: opts.Logger}
}

// Chat attempts providers strictly in configured order and records every
// attempt. The attempt slice is returned even on error so the execution
// record can include failed routing.
func (r *Router) Chat(ctx context.Context, req Request) (Response, []core.ModelAttempt, error) {
	var attempts []core.ModelAttempt

	try := func(m Model) (Response, error) {
		start := time.Now()
		resp, err := m.Chat(ctx, req)
		info := m.Info()
		attempts = append(attempts, core.ModelAttempt{
			Provider: info.Provider,
			Model:    info.Name,
			Success:  err == nil,
			Error:    errString(err),
		})
		r.logger.Debug("model attempt", "provider", info.Provider, "duration", time.Since(start), "err", err)
		return resp, err
	}

	for _, m := range r.providers {
		if ctx.Err() != nil {
			return Response{}, attempts, ctx.Err()
		}
		resp, err := try(m)
		if err == nil {
			return resp, attempts, nil
		}
		if !IsUnavailable(err) {
			return Response{}, attempts, err
		}
		r.logger.Warn("provider unavailable, failing over", "provider", m.Info().Provider, "error", err)
	}

	if r.local != nil {
		resp, err := try(r.local)
		if err == nil {
			return resp, attempts, nil
		}
		r.logger.Error("local fallback failed", "error", err)
	}

	return Response{}, attempts, fmt.Errorf("%w: %d attempts", core.ErrAllProvidersFailed, len(attempts))
}

// HasBackend reports whether at least one provider or the local fallback is
// configured. The semantic layer signals NEEDS_ANALYSIS instead of guessing
// when no backend exists.
func (r *Router) HasBackend() bool {
	return len(r.providers) > 0 || r.local != nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ClassifyStatus maps an HTTP status code to the uniform error kind shared
// by provider adapters: rate limits and server errors are retryable against
// another provider, 4xx (except 408/429) are not.
func ClassifyStatus(status int) ErrorKind {
	switch {
	case status == 408 || status == 429 || status >= 500:
		return KindUnavailable
	case status >= 400:
		return KindInvalidRequest
	default:
		return KindUnavailable
	}
}
