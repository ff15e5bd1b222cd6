package core

import (
	"encoding/json"
	"fmt"
)

// Element is one drawing primitive. The core reads only its id and kind;
// the rest of the payload travels untouched between clients and storage.
type Element struct {
	ID   string
	Kind string
	raw  json.RawMessage
}

// NewElement builds an element from a raw JSON object. A nil raw payload
// yields a minimal {"id","kind"} object.
func NewElement(id, kind string, raw json.RawMessage) Element {
	return Element{ID: id, Kind: kind, raw: raw}
}

// Raw returns the element payload as received.
func (e Element) Raw() json.RawMessage {
	return e.raw
}

// MarshalJSON emits the original payload.
func (e Element) MarshalJSON() ([]byte, error) {
	if len(e.raw) == 0 {
		return json.Marshal(struct {
			ID   string `json:"id"`
			Kind string `json:"kind,omitempty"`
		}{e.ID, e.Kind})
	}
	return e.raw, nil
}

// UnmarshalJSON keeps the payload and extracts id and kind. Older clients
// send the kind as "tool" (pen, pencil, highlighter, eraser, text).
func (e *Element) UnmarshalJSON(data []byte) error {
	var head struct {
		ID   string `json:"id"`
		Kind string `json:"kind"`
		Tool string `json:"tool"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return fmt.Errorf("decode element: %w", err)
	}
	e.ID = head.ID
	e.Kind = head.Kind
	if e.Kind == "" {
		e.Kind = head.Tool
	}
	e.raw = append(json.RawMessage(nil), data...)
	return nil
}

// ValidateElements checks that every element carries a unique id.
func ValidateElements(elements []Element) error {
	seen := make(map[string]struct{}, len(elements))
	for i, el := range elements {
		if el.ID == "" {
			return fmt.Errorf("element %d: %w", i, ErrMissingElementID)
		}
		if _, dup := seen[el.ID]; dup {
			return fmt.Errorf("element %q: %w", el.ID, ErrDuplicateElementID)
		}
		seen[el.ID] = struct{}{}
	}
	return nil
}

// EncodeElements serializes a list for storage. Nil encodes as [].
func EncodeElements(elements []Element) ([]byte, error) {
	if elements == nil {
		elements = []Element{}
	}
	return json.Marshal(elements)
}

// DecodeElements parses a stored list.
func DecodeElements(data []byte) ([]Element, error) {
	if len(data) == 0 {
		return []Element{}, nil
	}
	var elements []Element
	if err := json.Unmarshal(data, &elements); err != nil {
		return nil, err
	}
	if elements == nil {
		elements = []Element{}
	}
	return elements, nil
}

func cloneElements(elements []Element) []Element {
	out := make([]Element, len(elements))
	copy(out, elements)
	return out
}
