package pipeline

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// DefaultMinConfidence is the acceptance floor for structured results
// that report a confidence score.
const DefaultMinConfidence = 60.0

// minTextLength rejects empty and near-empty completions outright.
const minTextLength = 2

// refusalPhrases is the denylist of refusal/uncertainty markers. Cheap
// string containment runs before any JSON work so clearly-bad output is
// discarded without parsing.
var refusalPhrases = []string{
	"i cannot assist",
	"i can't assist",
	"i'm sorry, but",
	"i am unable to",
	"as an ai language model",
	"i cannot provide medical",
	"无法提供",
	"抱歉，我不能",
}

// Validator applies the two-tier acceptance strategy: string heuristics
// first, then structural parsing/repair and schema, is_valid and
// confidence checks for JSON outputs.
type Validator struct {
	MinConfidence float64
}

func NewValidator(minConfidence float64) *Validator {
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}
	return &Validator{MinConfidence: minConfidence}
}

// ValidateText accepts plain-text completions.
func (v *Validator) ValidateText(raw string) ValidatedResult {
	text := strings.TrimSpace(raw)
	if len(text) < minTextLength {
		return ValidatedResult{Confidence: -1, Diagnostic: "response below length threshold"}
	}
	if reason := refusalMatch(text); reason != "" {
		return ValidatedResult{Confidence: -1, Diagnostic: reason}
	}
	return ValidatedResult{IsValid: true, Confidence: -1, Text: text}
}

// ValidateJSON accepts structured completions. The raw text is fence
// stripped and parsed (with repair); the payload must then satisfy the
// schema (when given), an explicit is_valid flag, and the confidence
// floor. A confidence below the floor always loses, regardless of any
// other field.
func (v *Validator) ValidateJSON(raw, schema string) ValidatedResult {
	text := strings.TrimSpace(raw)
	if len(text) < minTextLength {
		return ValidatedResult{Confidence: -1, Diagnostic: "response below length threshold"}
	}
	if reason := refusalMatch(text); reason != "" {
		return ValidatedResult{Confidence: -1, Diagnostic: reason}
	}

	payload, ok := ParseJSON(text)
	if !ok {
		return ValidatedResult{Confidence: -1, Diagnostic: "unparseable JSON after repair"}
	}

	confidence := -1.0
	if c, found := numberField(payload, "confidence"); found {
		confidence = c
		if c < v.MinConfidence {
			return ValidatedResult{
				Confidence: c,
				Payload:    payload,
				Diagnostic: fmt.Sprintf("confidence %.0f below floor %.0f", c, v.MinConfidence),
			}
		}
	}
	if flag, found := payload["is_valid"]; found {
		if b, isBool := flag.(bool); isBool && !b {
			return ValidatedResult{Confidence: confidence, Payload: payload, Diagnostic: "model marked result invalid"}
		}
	}

	if schema != "" {
		docLoader := gojsonschema.NewGoLoader(payload)
		schemaLoader := gojsonschema.NewStringLoader(schema)
		res, err := gojsonschema.Validate(schemaLoader, docLoader)
		if err != nil {
			return ValidatedResult{Confidence: confidence, Payload: payload, Diagnostic: "schema validation error: " + err.Error()}
		}
		if !res.Valid() {
			return ValidatedResult{Confidence: confidence, Payload: payload, Diagnostic: schemaDiagnostic(res)}
		}
	}

	return ValidatedResult{IsValid: true, Confidence: confidence, Payload: payload}
}

func refusalMatch(text string) string {
	lower := strings.ToLower(text)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return "refusal phrase detected: " + phrase
		}
	}
	return ""
}

// numberField reads a numeric field from an unmarshaled payload, where
// every JSON number arrives as float64.
func numberField(m map[string]any, key string) (float64, bool) {
	n, ok := m[key].(float64)
	return n, ok
}

func schemaDiagnostic(res *gojsonschema.Result) string {
	var parts []string
	for _, e := range res.Errors() {
		parts = append(parts, e.String())
	}
	return "schema violation: " + strings.Join(parts, "; ")
}
