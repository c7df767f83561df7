package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Answer is the sealed union of checklist answer values, tagged by the
// field type that produced it. Only the five Answer types below implement
// it. Decoding an unknown tag is an explicit error, never a pass-through.
type Answer interface {
	Kind() FormFieldType
	answer() // sealed
}

// TextAnswer is the answer to a TEXT field.
type TextAnswer string

func (TextAnswer) Kind() FormFieldType { return FieldText }
func (TextAnswer) answer()             {}

// LongTextAnswer is the answer to a LONG_TEXT field.
type LongTextAnswer string

func (LongTextAnswer) Kind() FormFieldType { return FieldLongText }
func (LongTextAnswer) answer()             {}

// SelectAnswer is the chosen option of a SELECT field.
type SelectAnswer string

func (SelectAnswer) Kind() FormFieldType { return FieldSelect }
func (SelectAnswer) answer()             {}

// PhotoAnswer references an uploaded photo by storage key. The upload
// itself happens outside this system; only the reference is recorded.
type PhotoAnswer struct {
	StorageRef string `json:"storage_ref"`
}

func (PhotoAnswer) Kind() FormFieldType { return FieldPhoto }
func (PhotoAnswer) answer()             {}

// SignatureAnswer references a captured signature image and who signed.
type SignatureAnswer struct {
	StorageRef string `json:"storage_ref"`
	SignedBy   string `json:"signed_by"`
}

func (SignatureAnswer) Kind() FormFieldType { return FieldSignature }
func (SignatureAnswer) answer()             {}

// FormData maps field id (or, for legacy records, field label) to answer.
type FormData map[string]Answer

// answerEnvelope is the wire form of an Answer: a type tag plus the
// payload fields of whichever variant is encoded.
type answerEnvelope struct {
	Type       FormFieldType `json:"type"`
	Value      string        `json:"value,omitempty"`
	StorageRef string        `json:"storage_ref,omitempty"`
	SignedBy   string        `json:"signed_by,omitempty"`
}

// MarshalJSON encodes the answer with its type tag.
func (d FormData) MarshalJSON() ([]byte, error) {
	out := make(map[string]answerEnvelope, len(d))
	for id, a := range d {
		env := answerEnvelope{Type: a.Kind()}
		switch v := a.(type) {
		case TextAnswer:
			env.Value = string(v)
		case LongTextAnswer:
			env.Value = string(v)
		case SelectAnswer:
			env.Value = string(v)
		case PhotoAnswer:
			env.StorageRef = v.StorageRef
		case SignatureAnswer:
			env.StorageRef = v.StorageRef
			env.SignedBy = v.SignedBy
		default:
			return nil, fmt.Errorf("form data %q: unknown answer type %T", id, a)
		}
		out[id] = env
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes tagged answers, rejecting unknown field types.
func (d *FormData) UnmarshalJSON(data []byte) error {
	var raw map[string]answerEnvelope
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("form data: %w", err)
	}
	out := make(FormData, len(raw))
	for id, env := range raw {
		a, err := decodeAnswer(env)
		if err != nil {
			return fmt.Errorf("form data %q: %w", id, err)
		}
		out[id] = a
	}
	*d = out
	return nil
}

func decodeAnswer(env answerEnvelope) (Answer, error) {
	switch env.Type {
	case FieldText:
		return TextAnswer(env.Value), nil
	case FieldLongText:
		return LongTextAnswer(env.Value), nil
	case FieldSelect:
		return SelectAnswer(env.Value), nil
	case FieldPhoto:
		return PhotoAnswer{StorageRef: env.StorageRef}, nil
	case FieldSignature:
		return SignatureAnswer{StorageRef: env.StorageRef, SignedBy: env.SignedBy}, nil
	default:
		return nil, fmt.Errorf("unknown field type %q", env.Type)
	}
}

// StringValue returns the trimmed textual value of the answer for key, if
// the answer carries one. Photo and signature answers report presence with
// their storage reference so conditions can test "answered at all".
func (d FormData) StringValue(key string) (string, bool) {
	a, ok := d[key]
	if !ok {
		return "", false
	}
	switch v := a.(type) {
	case TextAnswer:
		return strings.TrimSpace(string(v)), true
	case LongTextAnswer:
		return strings.TrimSpace(string(v)), true
	case SelectAnswer:
		return strings.TrimSpace(string(v)), true
	case PhotoAnswer:
		return v.StorageRef, true
	case SignatureAnswer:
		return v.StorageRef, true
	}
	return "", false
}

// Answered reports whether the field has a non-empty answer.
func (d FormData) Answered(key string) bool {
	s, ok := d.StringValue(key)
	return ok && s != ""
}

// Merge returns a copy of d with answers from other overlaid.
// Neither input is mutated.
func (d FormData) Merge(other FormData) FormData {
	out := make(FormData, len(d)+len(other))
	for k, v := range d {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}
