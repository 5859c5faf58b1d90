package pipeline

// ExtractAlias tries the aliases in order against the payload and
// returns the first value present. Models drift between field names
// (observation vs analysis vs description); the ordered list makes the
// variant set explicit.
func ExtractAlias(payload map[string]any, aliases []string) (any, bool) {
	for _, key := range aliases {
		if v, ok := payload[key]; ok {
			return v, true
		}
	}
	return nil, false
}

// normalize maps a valid result into the endpoint's declared shape: the
// first alias becomes the canonical key when the model answered under a
// later one.
func normalize(req Request, vr ValidatedResult, model string, attempts []Attempt) Result {
	if !req.JSONMode {
		return Result{Text: vr.Text, ModelUsed: model, Attempts: attempts}
	}
	payload := vr.Payload
	if len(req.Aliases) > 0 {
		canonical := req.Aliases[0]
		if _, ok := payload[canonical]; !ok {
			if v, ok := ExtractAlias(payload, req.Aliases); ok {
				payload[canonical] = v
			}
		}
	}
	return Result{Payload: payload, ModelUsed: model, Attempts: attempts}
}

// fallbackResult emits the endpoint's static fallback payload verbatim.
// Exhaustion is not an error: the caller answers 200 with a degraded
// but actionable body, never a raw provider error.
func fallbackResult(req Request, attempts []Attempt) Result {
	return Result{
		Payload:  req.FallbackPayload,
		Text:     req.FallbackText,
		Degraded: true,
		Attempts: attempts,
	}
}
