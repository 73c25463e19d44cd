// Package normalized defines the backend-agnostic canonical event model.
// Every agent runtime schema is mapped onto Message and its Part union;
// unrecognized shapes degrade to unknown parts instead of being dropped.
package normalized

import (
	"encoding/json"
	"fmt"
	"time"
)

// Role classifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleResult    Role = "result"
)

// Usage is the shared token accounting shape all backends map onto.
type Usage struct {
	InputTokens              int `json:"input_tokens,omitempty"`
	OutputTokens             int `json:"output_tokens,omitempty"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens,omitempty"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens,omitempty"`
	ReasoningOutputTokens    int `json:"reasoning_output_tokens,omitempty"`
	TotalTokens              int `json:"total_tokens,omitempty"`
}

// ModelUsage is a per-model usage breakdown entry.
type ModelUsage struct {
	Usage
	CostUSD float64 `json:"cost_usd,omitempty"`
}

// Message is the canonical representation of one session event.
//
// ID is the stable logical identity of the message: a streaming backend may
// re-emit the same ID several times with progressively fuller parts, and the
// store reconciles those re-emissions in place. ParentToolUseID is a lookup
// reference into an earlier tool-use part's ToolID, used only to bucket
// sub-agent children; it never implies ownership.
type Message struct {
	ID              string                `json:"id"`
	Role            Role                  `json:"role"`
	Parts           PartList              `json:"parts"`
	Timestamp       time.Time             `json:"timestamp"`
	Model           string                `json:"model,omitempty"`
	SessionID       string                `json:"session_id,omitempty"`
	ParentToolUseID string                `json:"parent_tool_use_id,omitempty"`
	Synthetic       bool                  `json:"synthetic,omitempty"`
	IsError         bool                  `json:"is_error,omitempty"`
	CostUSD         float64               `json:"cost_usd,omitempty"`
	DurationMS      int64                 `json:"duration_ms,omitempty"`
	Usage           *Usage                `json:"usage,omitempty"`
	ModelUsage      map[string]ModelUsage `json:"model_usage,omitempty"`
	// Meta carries backend-specific extras the canonical model does not
	// promote to a first-class field. Values are already-serialized strings;
	// it must not grow into a second polymorphic model.
	Meta map[string]string `json:"meta,omitempty"`
}

// PartType discriminates the Part union.
type PartType string

const (
	PartTypeText         PartType = "text"
	PartTypeReasoning    PartType = "reasoning"
	PartTypeFile         PartType = "file"
	PartTypeToolUse      PartType = "tool-use"
	PartTypeToolResult   PartType = "tool-result"
	PartTypeCompact      PartType = "compact"
	PartTypeSystemStatus PartType = "system-status"
	PartTypeUnknown      PartType = "unknown"
)

// Part is one typed fragment of a message's content.
type Part interface {
	Type() PartType
}

// TextPart is plain assistant or user text.
type TextPart struct {
	Text string `json:"text"`
}

// Type returns the part type.
func (TextPart) Type() PartType { return PartTypeText }

// ReasoningPart is extended-thinking content.
type ReasoningPart struct {
	Text string `json:"text"`
}

// Type returns the part type.
func (ReasoningPart) Type() PartType { return PartTypeReasoning }

// FilePart references a file attached to a message.
type FilePart struct {
	Path     string `json:"path"`
	MimeType string `json:"mime_type,omitempty"`
}

// Type returns the part type.
func (FilePart) Type() PartType { return PartTypeFile }

// ToolUsePart is a tool invocation. ToolID is unique per task.
type ToolUsePart struct {
	ToolID   string         `json:"tool_id"`
	ToolName string         `json:"tool_name"`
	Input    map[string]any `json:"input,omitempty"`
}

// Type returns the part type.
func (ToolUsePart) Type() PartType { return PartTypeToolUse }

// ToolResultPart is the outcome of a tool invocation. Structured carries the
// backend's side-channel payload (todo diff, file-write diff, skill outcome)
// verbatim when present.
type ToolResultPart struct {
	ToolID     string          `json:"tool_id"`
	Content    string          `json:"content"`
	IsError    bool            `json:"is_error,omitempty"`
	Structured json.RawMessage `json:"structured,omitempty"`
}

// Type returns the part type.
func (ToolResultPart) Type() PartType { return PartTypeToolResult }

// CompactPart marks a compaction boundary in the history.
type CompactPart struct {
	Trigger   string `json:"trigger"`
	PreTokens int    `json:"pre_tokens,omitempty"`
}

// Type returns the part type.
func (CompactPart) Type() PartType { return PartTypeCompact }

// SystemStatusPart is a user-visible system status change.
type SystemStatusPart struct {
	Subtype string `json:"subtype"`
	Status  string `json:"status,omitempty"`
}

// Type returns the part type.
func (SystemStatusPart) Type() PartType { return PartTypeSystemStatus }

// UnknownPart preserves a raw block the normalizer could not classify.
// Raw is the original payload verbatim so it stays reprocessable.
type UnknownPart struct {
	OriginalType string          `json:"original_type"`
	Raw          json.RawMessage `json:"raw"`
}

// Type returns the part type.
func (UnknownPart) Type() PartType { return PartTypeUnknown }

// PartList is an ordered sequence of parts that survives JSON round-trips
// with the type discriminator intact.
type PartList []Part

type partEnvelope struct {
	Type PartType `json:"type"`
}

// MarshalJSON implements json.Marshaler.
func (pl PartList) MarshalJSON() ([]byte, error) {
	out := make([]json.RawMessage, 0, len(pl))
	for _, p := range pl {
		body, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("marshal %s part: %w", p.Type(), err)
		}
		tagged, err := tagPart(p.Type(), body)
		if err != nil {
			return nil, err
		}
		out = append(out, tagged)
	}
	return json.Marshal(out)
}

// tagPart injects the type discriminator into an already-marshaled part body.
func tagPart(t PartType, body []byte) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("tag %s part: %w", t, err)
	}
	fields["type"] = json.RawMessage(`"` + string(t) + `"`)
	return json.Marshal(fields)
}

// UnmarshalJSON implements json.Unmarshaler.
func (pl *PartList) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	parts := make(PartList, 0, len(raws))
	for _, raw := range raws {
		p, err := UnmarshalPart(raw)
		if err != nil {
			return err
		}
		parts = append(parts, p)
	}
	*pl = parts
	return nil
}

// UnmarshalPart decodes one tagged part. An unrecognized discriminator is not
// an error: it decodes as an UnknownPart carrying the payload verbatim.
func UnmarshalPart(data json.RawMessage) (Part, error) {
	var env partEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode part envelope: %w", err)
	}
	switch env.Type {
	case PartTypeText:
		var p TextPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case PartTypeReasoning:
		var p ReasoningPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case PartTypeFile:
		var p FilePart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case PartTypeToolUse:
		var p ToolUsePart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case PartTypeToolResult:
		var p ToolResultPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case PartTypeCompact:
		var p CompactPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case PartTypeSystemStatus:
		var p SystemStatusPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case PartTypeUnknown:
		var p UnknownPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return UnknownPart{OriginalType: string(env.Type), Raw: data}, nil
	}
}

// ToolUses returns the tool-use parts of the message in emission order.
func (m *Message) ToolUses() []ToolUsePart {
	var out []ToolUsePart
	for _, p := range m.Parts {
		if tu, ok := p.(ToolUsePart); ok {
			out = append(out, tu)
		}
	}
	return out
}

// ToolResults returns the tool-result parts of the message in emission order.
func (m *Message) ToolResults() []ToolResultPart {
	var out []ToolResultPart
	for _, p := range m.Parts {
		if tr, ok := p.(ToolResultPart); ok {
			out = append(out, tr)
		}
	}
	return out
}

// Text concatenates the text parts of the message.
func (m *Message) Text() string {
	var out string
	for _, p := range m.Parts {
		if tp, ok := p.(TextPart); ok {
			if out != "" {
				out += "\n"
			}
			out += tp.Text
		}
	}
	return out
}

// SetMeta stores an already-serialized metadata value, allocating the bag on
// first use.
func (m *Message) SetMeta(key, value string) {
	if m.Meta == nil {
		m.Meta = make(map[string]string)
	}
	m.Meta[key] = value
}
