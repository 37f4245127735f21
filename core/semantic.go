package core

// Modality classifies the surface form of a user request.
type Modality string

const (
	// ModalityText is free-form conversational text.
	ModalityText Modality = "text"
	// ModalityInstruction is an imperative request to perform work.
	ModalityInstruction Modality = "instruction"
	// ModalityQuery is an information-seeking question.
	ModalityQuery Modality = "query"
)

// SemanticOutput is the structured digest produced by the semantic
// understanding layer (L1). It carries what the request is about without
// committing to an intent or an agent; that decision belongs to later
// layers. Instances are immutable once produced.
type SemanticOutput struct {
	Topics        []string `json:"topics"`
	Entities      []string `json:"entities"`
	ActionSignals []string `json:"action_signals"`
	Modality      Modality `json:"modality"`
	// Certainty is the layer's own confidence in the digest, in [0,1].
	Certainty float64 `json:"certainty"`
}

// Clone returns a deep copy so downstream layers can hold the digest
// without aliasing the producer's slices.
func (s SemanticOutput) Clone() SemanticOutput {
	cp := s
	cp.Topics = append([]string(nil), s.Topics...)
	cp.Entities = append([]string(nil), s.Entities...)
	cp.ActionSignals = append([]string(nil), s.ActionSignals...)
	return cp
}
