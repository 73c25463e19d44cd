// Package claude normalizes the stream-json wire schema emitted by
// Claude-style agent CLIs into the canonical message model.
package claude

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/AgentTrail/AgentTrail/internal/normalized"
	"github.com/AgentTrail/AgentTrail/internal/normalizer"
)

func init() {
	normalizer.Register(normalizer.BackendClaude, func() normalizer.Normalizer {
		return &Normalizer{}
	})
}

// Normalizer maps stream-json records onto normalized messages. It is
// stateless; the same raw bytes always produce the same message.
type Normalizer struct{}

// Backend returns the backend name.
func (n *Normalizer) Backend() string { return normalizer.BackendClaude }

// System subtypes that are pure lifecycle noise. Status and
// compact_boundary records carry user-visible meaning and stay.
var suppressedSubtypes = map[string]bool{
	"init":              true,
	"hook_started":      true,
	"hook_completed":    true,
	"hook_response":     true,
	"mcp_server_status": true,
}

// Normalize converts one raw stream-json record. Suppressed lifecycle
// records return (nil, nil). A record that is not valid JSON returns an
// error wrapping normalizer.ErrMalformed; any well-formed record yields a
// message, degrading unrecognized shapes to unknown parts.
func (n *Normalizer) Normalize(raw []byte, ctx normalizer.Context) (*normalized.Message, error) {
	var rec rawRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", normalizer.ErrMalformed, err)
	}

	switch rec.Type {
	case recordTypeSystem:
		return n.normalizeSystem(&rec, raw, ctx)
	case recordTypeAssistant, recordTypeUser:
		return n.normalizeChat(&rec, ctx)
	case recordTypeResult:
		return n.normalizeResult(&rec, ctx), nil
	default:
		// Unrecognized record kind: classification failure is never
		// silent data loss.
		msg := n.baseMessage(&rec, normalized.RoleSystem, ctx)
		msg.Parts = normalized.PartList{normalized.UnknownPart{
			OriginalType: string(rec.Type),
			Raw:          json.RawMessage(raw),
		}}
		return msg, nil
	}
}

func (n *Normalizer) normalizeSystem(rec *rawRecord, raw []byte, ctx normalizer.Context) (*normalized.Message, error) {
	if suppressedSubtypes[rec.Subtype] || strings.HasPrefix(rec.Subtype, "hook_") {
		return nil, nil
	}

	msg := n.baseMessage(rec, normalized.RoleSystem, ctx)
	switch rec.Subtype {
	case "compact_boundary":
		trigger := "auto"
		preTokens := 0
		if rec.CompactMetadata != nil {
			if rec.CompactMetadata.Trigger != "" {
				trigger = rec.CompactMetadata.Trigger
			}
			preTokens = rec.CompactMetadata.PreTokens
		}
		msg.Parts = normalized.PartList{normalized.CompactPart{
			Trigger:   trigger,
			PreTokens: preTokens,
		}}
	case "status":
		msg.Parts = normalized.PartList{normalized.SystemStatusPart{
			Subtype: rec.Subtype,
			Status:  rec.Status,
		}}
	default:
		// Known kind, unrecognized subtype: keep the payload verbatim so a
		// future normalizer version can reprocess it.
		msg.Parts = normalized.PartList{normalized.UnknownPart{
			OriginalType: "system." + rec.Subtype,
			Raw:          json.RawMessage(raw),
		}}
	}
	return msg, nil
}

func (n *Normalizer) normalizeChat(rec *rawRecord, ctx normalizer.Context) (*normalized.Message, error) {
	role := normalized.RoleAssistant
	if rec.Type == recordTypeUser {
		role = normalized.RoleUser
	}
	msg := n.baseMessage(rec, role, ctx)

	var content messageContent
	if len(rec.Message) > 0 {
		if err := json.Unmarshal(rec.Message, &content); err != nil {
			return nil, fmt.Errorf("%w: inner message: %v", normalizer.ErrMalformed, err)
		}
	}
	// The API message id is the stable identity across streaming
	// re-emissions; the envelope uuid changes per emission.
	if content.ID != "" {
		msg.ID = content.ID
	}
	if content.Model != "" {
		msg.Model = content.Model
	}
	if content.Usage != nil {
		msg.Usage = mapUsage(content.Usage)
	}

	if text, ok := content.contentString(); ok {
		msg.Parts = normalized.PartList{normalized.TextPart{Text: text}}
		return msg, nil
	}
	blocks, ok := content.contentBlocks()
	if !ok {
		if len(content.Content) > 0 {
			msg.Parts = normalized.PartList{normalized.UnknownPart{
				OriginalType: string(rec.Type) + ".content",
				Raw:          content.Content,
			}}
		}
		return msg, nil
	}

	for _, raw := range blocks {
		msg.Parts = append(msg.Parts, mapBlock(raw))
	}
	attachToolUseResult(msg, rec.ToolUseResult)
	return msg, nil
}

// attachToolUseResult binds the record-level side-channel payload to the
// message's tool-result part. The envelope carries no tool_use_id, so the
// payload is only unambiguous when the record holds exactly one result;
// with several, attaching would duplicate the payload onto all of them.
func attachToolUseResult(msg *normalized.Message, structured json.RawMessage) {
	if len(structured) == 0 {
		return
	}
	pos := -1
	for i, part := range msg.Parts {
		if _, ok := part.(normalized.ToolResultPart); ok {
			if pos >= 0 {
				return
			}
			pos = i
		}
	}
	if pos < 0 {
		return
	}
	p := msg.Parts[pos].(normalized.ToolResultPart)
	p.Structured = structured
	msg.Parts[pos] = p
}

// mapBlock maps one content block to a part.
func mapBlock(raw json.RawMessage) normalized.Part {
	var block contentBlock
	if err := json.Unmarshal(raw, &block); err != nil {
		return normalized.UnknownPart{OriginalType: "block", Raw: raw}
	}
	switch block.Type {
	case "text":
		return normalized.TextPart{Text: block.Text}
	case "thinking", "redacted_thinking":
		return normalized.ReasoningPart{Text: block.Thinking}
	case "tool_use":
		return normalized.ToolUsePart{
			ToolID:   block.ID,
			ToolName: block.Name,
			Input:    block.Input,
		}
	case "tool_result":
		return normalized.ToolResultPart{
			ToolID:  block.ToolUseID,
			Content: flattenResultContent(block.Content),
			IsError: block.IsError,
		}
	case "image", "document":
		part := normalized.FilePart{}
		if block.Source != nil {
			part.Path = block.Source.Path
			part.MimeType = block.Source.MediaType
		}
		return part
	default:
		return normalized.UnknownPart{OriginalType: block.Type, Raw: raw}
	}
}

// flattenResultContent renders a tool_result content field (string or nested
// text blocks) as plain text.
func flattenResultContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var nested []contentBlock
	if err := json.Unmarshal(raw, &nested); err == nil {
		var parts []string
		for _, b := range nested {
			if b.Type == "text" && b.Text != "" {
				parts = append(parts, b.Text)
			}
		}
		return strings.Join(parts, "\n")
	}
	return string(raw)
}

func (n *Normalizer) normalizeResult(rec *rawRecord, ctx normalizer.Context) *normalized.Message {
	msg := n.baseMessage(rec, normalized.RoleResult, ctx)
	msg.IsError = rec.IsError
	msg.CostUSD = rec.TotalCostUSD
	msg.DurationMS = rec.DurationMS
	if rec.Usage != nil {
		msg.Usage = mapUsage(rec.Usage)
	}
	if len(rec.ModelUsage) > 0 {
		msg.ModelUsage = make(map[string]normalized.ModelUsage, len(rec.ModelUsage))
		for model, mu := range rec.ModelUsage {
			msg.ModelUsage[model] = normalized.ModelUsage{
				Usage: normalized.Usage{
					InputTokens:              mu.InputTokens,
					OutputTokens:             mu.OutputTokens,
					CacheReadInputTokens:     mu.CacheReadInputTokens,
					CacheCreationInputTokens: mu.CacheCreationInputTokens,
					TotalTokens:              mu.InputTokens + mu.OutputTokens,
				},
				CostUSD: mu.CostUSD,
			}
		}
	}
	if rec.Result != "" {
		msg.Parts = normalized.PartList{normalized.TextPart{Text: rec.Result}}
	}
	if rec.NumTurns > 0 {
		msg.SetMeta("num_turns", fmt.Sprintf("%d", rec.NumTurns))
	}
	return msg
}

func (n *Normalizer) baseMessage(rec *rawRecord, role normalized.Role, ctx normalizer.Context) *normalized.Message {
	msg := &normalized.Message{
		ID:        rec.UUID,
		Role:      role,
		SessionID: rec.SessionID,
		Model:     rec.Model,
		Synthetic: rec.IsMeta,
	}
	if msg.SessionID == "" {
		msg.SessionID = ctx.SessionID
	}
	if msg.Model == "" {
		msg.Model = ctx.Model
	}
	if rec.ParentToolUseID != nil && *rec.ParentToolUseID != "" {
		msg.ParentToolUseID = *rec.ParentToolUseID
	}
	if rec.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339, rec.Timestamp); err == nil {
			msg.Timestamp = ts
		}
	}
	return msg
}

func mapUsage(u *wireUsage) *normalized.Usage {
	return &normalized.Usage{
		InputTokens:              u.InputTokens,
		OutputTokens:             u.OutputTokens,
		CacheReadInputTokens:     u.CacheReadInputTokens,
		CacheCreationInputTokens: u.CacheCreationInputTokens,
		TotalTokens:              u.InputTokens + u.OutputTokens,
	}
}
