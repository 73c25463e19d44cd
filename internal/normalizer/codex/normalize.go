// Package codex normalizes the notification wire schema emitted by
// Codex-style agent CLIs into the canonical message model.
package codex

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/AgentTrail/AgentTrail/internal/normalized"
	"github.com/AgentTrail/AgentTrail/internal/normalizer"
)

func init() {
	normalizer.Register(normalizer.BackendCodex, func() normalizer.Normalizer {
		return &Normalizer{}
	})
}

// Normalizer maps Codex notifications onto normalized messages. Item
// snapshots re-use the item id as the logical message id, so progressively
// fuller re-emissions of the same item reconcile through the store's
// update-by-logical-id path.
type Normalizer struct{}

// Backend returns the backend name.
func (n *Normalizer) Backend() string { return normalizer.BackendCodex }

// Normalize converts one raw notification. Thread/turn lifecycle and
// token_count records are suppressed: Codex has no session-complete record,
// so their side data feeds SynthesizeResult instead of the per-event path.
func (n *Normalizer) Normalize(raw []byte, ctx normalizer.Context) (*normalized.Message, error) {
	var notif notification
	if err := json.Unmarshal(raw, &notif); err != nil {
		return nil, fmt.Errorf("%w: %v", normalizer.ErrMalformed, err)
	}

	switch notif.Method {
	case notifyThreadStarted, notifyTurnStarted, notifyTurnCompleted,
		notifyTurnFailed, notifyTokenCount:
		return nil, nil
	case notifyItemStarted, notifyItemUpdated, notifyItemCompleted:
		return n.normalizeItem(&notif, raw, ctx)
	case notifyError:
		return n.normalizeError(&notif, ctx)
	default:
		// Unrecognized method: preserved, never dropped. No logical id;
		// a fabricated one would collide across occurrences and make the
		// update path overwrite one event with another.
		msg := &normalized.Message{
			Role:      normalized.RoleSystem,
			SessionID: ctx.SessionID,
			Model:     ctx.Model,
			Parts: normalized.PartList{normalized.UnknownPart{
				OriginalType: notif.Method,
				Raw:          json.RawMessage(raw),
			}},
		}
		return msg, nil
	}
}

func (n *Normalizer) normalizeItem(notif *notification, raw []byte, ctx normalizer.Context) (*normalized.Message, error) {
	var params itemParams
	if err := json.Unmarshal(notif.Params, &params); err != nil {
		return nil, fmt.Errorf("%w: %s params: %v", normalizer.ErrMalformed, notif.Method, err)
	}
	if params.Item == nil {
		return nil, fmt.Errorf("%w: %s without item", normalizer.ErrMalformed, notif.Method)
	}
	item := params.Item

	msg := &normalized.Message{
		ID:        item.ID,
		Role:      normalized.RoleAssistant,
		SessionID: params.ThreadID,
		Model:     ctx.Model,
	}
	// An item without an id has no stable identity to reconcile on; each
	// snapshot stays a distinct message rather than sharing a made-up id.
	if msg.SessionID == "" {
		msg.SessionID = ctx.SessionID
	}
	if params.TurnID != "" {
		msg.SetMeta("turn_id", params.TurnID)
	}

	switch item.ItemType {
	case "agent_message":
		msg.Parts = normalized.PartList{normalized.TextPart{Text: item.Text}}
	case "user_message":
		msg.Role = normalized.RoleUser
		msg.Parts = normalized.PartList{normalized.TextPart{Text: item.Text}}
	case "reasoning":
		msg.Parts = normalized.PartList{normalized.ReasoningPart{Text: item.Text}}
	case "command_execution":
		msg.Parts = normalized.PartList{normalized.ToolUsePart{
			ToolID:   item.ID,
			ToolName: "Bash",
			Input:    commandInput(item),
		}}
		// Completed snapshots carry the outcome; the same logical message
		// just grows a result part.
		if notif.Method == notifyItemCompleted {
			msg.Parts = append(msg.Parts, normalized.ToolResultPart{
				ToolID:     item.ID,
				Content:    item.AggregatedOutput,
				IsError:    item.ExitCode != nil && *item.ExitCode != 0,
				Structured: commandStructured(item),
			})
		}
	case "file_change":
		msg.Parts = normalized.PartList{normalized.ToolUsePart{
			ToolID:   item.ID,
			ToolName: "ApplyPatch",
		}}
		if notif.Method == notifyItemCompleted {
			msg.Parts = append(msg.Parts, normalized.ToolResultPart{
				ToolID:     item.ID,
				IsError:    item.Status == "failed",
				Structured: item.Changes,
			})
		}
	case "todo_list":
		msg.Parts = normalized.PartList{
			normalized.ToolUsePart{ToolID: item.ID, ToolName: "TodoWrite"},
			normalized.ToolResultPart{ToolID: item.ID, Structured: item.Items},
		}
	case "error":
		msg.Role = normalized.RoleSystem
		msg.Parts = normalized.PartList{normalized.SystemStatusPart{
			Subtype: "error",
			Status:  item.Message,
		}}
	default:
		msg.Role = normalized.RoleSystem
		msg.Parts = normalized.PartList{normalized.UnknownPart{
			OriginalType: "item." + item.ItemType,
			Raw:          json.RawMessage(raw),
		}}
	}
	return msg, nil
}

func (n *Normalizer) normalizeError(notif *notification, ctx normalizer.Context) (*normalized.Message, error) {
	var params errorParams
	if err := json.Unmarshal(notif.Params, &params); err != nil {
		return nil, fmt.Errorf("%w: error params: %v", normalizer.ErrMalformed, err)
	}
	// Error notifications carry no id of their own and a turn can raise
	// several; they always append as distinct messages.
	msg := &normalized.Message{
		Role:      normalized.RoleSystem,
		SessionID: params.ThreadID,
		IsError:   true,
		Parts: normalized.PartList{normalized.SystemStatusPart{
			Subtype: "error",
			Status:  params.Message,
		}},
	}
	if msg.SessionID == "" {
		msg.SessionID = ctx.SessionID
	}
	return msg, nil
}

func commandInput(item *rawItem) map[string]any {
	input := map[string]any{}
	if item.Command != "" {
		input["command"] = item.Command
	}
	if item.CWD != "" {
		input["cwd"] = item.CWD
	}
	return input
}

func commandStructured(item *rawItem) json.RawMessage {
	payload := map[string]any{"status": item.Status}
	if item.ExitCode != nil {
		payload["exit_code"] = *item.ExitCode
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return b
}

// ParseTokenCount extracts the cumulative usage from a token_count
// notification, if the record is one. Session owners accumulate this side
// data for SynthesizeResult.
func ParseTokenCount(raw []byte) (*TurnUsage, bool) {
	var notif notification
	if err := json.Unmarshal(raw, &notif); err != nil || notif.Method != notifyTokenCount {
		return nil, false
	}
	var params struct {
		Usage *wireUsage `json:"usage"`
	}
	if err := json.Unmarshal(notif.Params, &params); err != nil || params.Usage == nil {
		return nil, false
	}
	return &TurnUsage{
		InputTokens:           params.Usage.InputTokens,
		CachedInputTokens:     params.Usage.CachedInputTokens,
		OutputTokens:          params.Usage.OutputTokens,
		ReasoningOutputTokens: params.Usage.ReasoningOutputTokens,
		TotalTokens:           params.Usage.TotalTokens,
	}, true
}

// SessionEnd carries the side data a result message is synthesized from.
// Codex has no explicit session-complete record, so the session owner
// collects this from turn.completed/token_count notifications and errors.
type SessionEnd struct {
	SessionID  string
	Text       string
	IsError    bool
	DurationMS int64
	CostUSD    float64
	Usage      *TurnUsage
	EndedAt    time.Time
}

// TurnUsage is the Codex-native cumulative token count for a session.
type TurnUsage struct {
	InputTokens           int
	CachedInputTokens     int
	OutputTokens          int
	ReasoningOutputTokens int
	TotalTokens           int
}

// SynthesizeResult builds the result-role message for a finished Codex
// session. It is never invoked inside the per-event Normalize path; the
// caller decides when the session is over.
func SynthesizeResult(end SessionEnd) *normalized.Message {
	msg := &normalized.Message{
		ID:         "result/" + end.SessionID,
		Role:       normalized.RoleResult,
		SessionID:  end.SessionID,
		Synthetic:  true,
		IsError:    end.IsError,
		CostUSD:    end.CostUSD,
		DurationMS: end.DurationMS,
		Timestamp:  end.EndedAt,
	}
	if end.Usage != nil {
		msg.Usage = &normalized.Usage{
			InputTokens:           end.Usage.InputTokens,
			CacheReadInputTokens:  end.Usage.CachedInputTokens,
			OutputTokens:          end.Usage.OutputTokens,
			ReasoningOutputTokens: end.Usage.ReasoningOutputTokens,
			TotalTokens:           end.Usage.TotalTokens,
		}
	}
	if end.Text != "" {
		msg.Parts = normalized.PartList{normalized.TextPart{Text: end.Text}}
	}
	return msg
}
