package domain

// Payload is the nested key-value document collected across the stages of
// a session. Top-level keys are stage IDs; each stage mutates only its own
// subtree. Values are JSON-compatible (maps, slices, scalars).
type Payload map[string]any

// Stage returns the subtree owned by the given stage, or nil if the stage
// has not written any data yet. The returned map is live, not a copy.
func (p Payload) Stage(stageID string) map[string]any {
	if p == nil {
		return nil
	}
	sub, _ := p[stageID].(map[string]any)
	return sub
}

// MergeStage applies a shallow merge of patch into the subtree owned by
// stageID. Existing keys inside the subtree are replaced, never deleted.
func (p Payload) MergeStage(stageID string, patch map[string]any) {
	sub, ok := p[stageID].(map[string]any)
	if !ok {
		sub = make(map[string]any, len(patch))
		p[stageID] = sub
	}
	for k, v := range patch {
		sub[k] = v
	}
}

// Clone returns a deep copy of the payload.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	return Payload(deepCopyMap(p))
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case Payload:
		return deepCopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		// Scalars (and anything else) are copied by value. Payloads come
		// from JSON decoding, so pointer-shaped values do not occur.
		return v
	}
}
