package domain

import (
	"bytes"
	"encoding/json"
)

// ChangePayload is the JSON image of an entity before or after a change.
// The zero value means no image, as for the Before side of a create.
type ChangePayload struct {
	raw json.RawMessage
}

// NewChangePayload copies raw into a payload.
func NewChangePayload(raw json.RawMessage) ChangePayload {
	return ChangePayload{raw: bytes.Clone(raw)}
}

// NewChangePayloadFromValue encodes value as a payload.
func NewChangePayloadFromValue[T any](value T) (ChangePayload, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return ChangePayload{}, err
	}
	return ChangePayload{raw: raw}, nil
}

// IsEmpty reports whether the payload carries no image.
func (p ChangePayload) IsEmpty() bool { return len(p.raw) == 0 }

// DecodeChangePayload decodes the image into T. It reports false for an empty
// payload or one that does not decode into T.
func DecodeChangePayload[T any](payload ChangePayload) (T, bool) {
	var out T
	if payload.IsEmpty() {
		return out, false
	}
	if err := json.Unmarshal(payload.raw, &out); err != nil {
		return out, false
	}
	return out, true
}

// Change describes one mutation recorded by a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before ChangePayload
	After  ChangePayload
}

// Action is the kind of mutation.
type Action string

// Mutation kinds.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)
