// Package model defines the provider-agnostic chat contract used by the
// semantic understanding layer and agents, the uniform error shape that
// separates retryable provider unavailability from caller mistakes, and the
// Router that walks an ordered provider preference list with a designated
// local fallback.
//
// Concrete providers live in subpackages (model/openai, model/anthropic,
// model/local); a scripted MockModel is provided for tests and examples.
package model
