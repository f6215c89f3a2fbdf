package model

// Overlay holds an AI-produced value alongside an optional reviewer
// correction. The AI value is never overwritten, so accuracy can always be
// measured against what the model originally said.
type Overlay[T comparable] struct {
	AI        *T `json:"ai,omitempty" yaml:"ai,omitempty"`
	Corrected *T `json:"corrected,omitempty" yaml:"corrected,omitempty"`
}

// AIValue returns an overlay carrying only an AI value.
func AIValue[T comparable](v T) Overlay[T] {
	return Overlay[T]{AI: &v}
}

// CorrectedValue returns an overlay carrying only a reviewer value, as on
// records a reviewer added by hand.
func CorrectedValue[T comparable](v T) Overlay[T] {
	return Overlay[T]{Corrected: &v}
}

// Correct returns a copy of o with the reviewer value set to v.
func (o Overlay[T]) Correct(v T) Overlay[T] {
	o.Corrected = &v
	return o
}

// Effective returns the corrected value when present, otherwise the AI
// value. ok is false when neither is set.
func (o Overlay[T]) Effective() (v T, ok bool) {
	if o.Corrected != nil {
		return *o.Corrected, true
	}
	if o.AI != nil {
		return *o.AI, true
	}
	return v, false
}

// Value is Effective without the presence flag.
func (o Overlay[T]) Value() T {
	v, _ := o.Effective()
	return v
}

// Original returns the AI value. ok is false when the AI never produced one.
func (o Overlay[T]) Original() (v T, ok bool) {
	if o.AI == nil {
		return v, false
	}
	return *o.AI, true
}

// IsCorrected reports whether a reviewer value is present.
func (o Overlay[T]) IsCorrected() bool { return o.Corrected != nil }

// Changed reports whether the reviewer value differs from the AI value.
// A correction on a record with no AI value counts as a change.
func (o Overlay[T]) Changed() bool {
	if o.Corrected == nil {
		return false
	}
	if o.AI == nil {
		return true
	}
	return *o.AI != *o.Corrected
}
