package models

// Recognized metadata keys. Unknown keys pass through untouched; these are
// the ones components interpret.
const (
	MetaReason      = "reason"
	MetaLoopOwnerID = "loopOwnerId"
	MetaReflection  = "reflection"
	MetaORPARPhase  = "orparPhase"
)

// MetadataMap is the free-form metadata attached to hint events and loop
// lifecycle payloads.
type MetadataMap map[string]any

// Phase extracts the "orparPhase" key if present and valid.
func (m MetadataMap) Phase() (Phase, bool) {
	v, ok := m[MetaORPARPhase]
	if !ok {
		return PhaseNull, false
	}
	s, ok := v.(string)
	if !ok {
		return PhaseNull, false
	}
	p := Phase(s)
	if !p.Valid() {
		return PhaseNull, false
	}
	return p, true
}

// Reason extracts the "reason" key if present.
func (m MetadataMap) Reason() (string, bool) {
	v, ok := m[MetaReason]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// LoopOwnerID extracts the "loopOwnerId" key if present.
func (m MetadataMap) LoopOwnerID() (string, bool) {
	v, ok := m[MetaLoopOwnerID]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Clone returns a shallow copy, nil-safe.
func (m MetadataMap) Clone() MetadataMap {
	if m == nil {
		return nil
	}
	out := make(MetadataMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
