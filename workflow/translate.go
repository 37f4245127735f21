package workflow

import (
	"encoding/json"
	"fmt"

	"github.com/hupe1980/hybridflow/core"
)

// DecodeNeutral parses an engine-native blob into the neutral HybridState.
// This is the only place native representations are interpreted outside
// their owning engine.
func DecodeNeutral(data []byte, from core.EngineID) (*core.HybridState, error) {
	switch from {
	case core.EngineStateMachine:
		var s smState
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("decode %s state: %w", from, err)
		}
		return smToNeutral(s), nil
	case core.EnginePlanner:
		var s plState
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("decode %s state: %w", from, err)
		}
		return plToNeutral(s), nil
	default:
		return nil, fmt.Errorf("unknown engine %q", from)
	}
}

// EncodeNative converts neutral state into the target engine's native blob.
func EncodeNative(state *core.HybridState, to core.EngineID) ([]byte, error) {
	switch to {
	case core.EngineStateMachine:
		return json.Marshal(neutralToSM(state))
	case core.EnginePlanner:
		return json.Marshal(neutralToPL(state))
	default:
		return nil, fmt.Errorf("unknown engine %q", to)
	}
}

// Translate converts a native blob of one engine into the native blob of
// another via the neutral representation. Translating between structurally
// different representations must preserve the step cursor and all
// completed-step outputs; the switch controller verifies this after every
// translation.
func Translate(data []byte, from, to core.EngineID) ([]byte, error) {
	neutral, err := DecodeNeutral(data, from)
	if err != nil {
		return nil, err
	}
	return EncodeNative(neutral, to)
}
