package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/AgentTrail/AgentTrail/internal/normalized"
	"github.com/AgentTrail/AgentTrail/internal/store"
	"github.com/AgentTrail/AgentTrail/internal/timeline"
)

// renderTimeline writes a human-readable merged timeline.
func renderTimeline(w io.Writer, task *store.Task, entries []timeline.Entry) {
	fmt.Fprintf(w, "Task %s (%s, %s)\n", task.TaskID, task.Backend, task.Status)
	if task.SessionID != "" {
		fmt.Fprintf(w, "Session %s\n", task.SessionID)
	}
	fmt.Fprintln(w, strings.Repeat("─", 60))

	for _, entry := range entries {
		switch e := entry.(type) {
		case timeline.RegularEntry:
			renderMessage(w, e.Message, "")
		case timeline.SubagentEntry:
			renderSubagent(w, e)
		case timeline.SkillEntry:
			fmt.Fprintf(w, "%s %s\n", color.MagentaString("◆ skill"), e.SkillName)
			renderMessage(w, e.Prompt, "  ")
		case timeline.CompactingEntry:
			if e.InProgress {
				fmt.Fprintln(w, color.CyanString("▤ compaction (in progress)"))
			} else {
				fmt.Fprintf(w, "%s trigger=%s pre_tokens=%d\n",
					color.CyanString("▤ compaction"), e.Trigger, e.PreTokens)
			}
		}
	}
}

func renderSubagent(w io.Writer, e timeline.SubagentEntry) {
	state := color.YellowString("running")
	if e.Complete {
		state = color.GreenString("done")
	}
	desc := ""
	if v, ok := e.Launch.Input["description"].(string); ok {
		desc = " " + v
	}
	fmt.Fprintf(w, "%s [%s]%s\n", color.BlueString("▶ subagent"), state, desc)
	for _, child := range e.Children {
		renderMessage(w, child, "  ")
	}
}

func renderMessage(w io.Writer, msg *normalized.Message, indent string) {
	label := roleLabel(msg)
	for _, part := range msg.Parts {
		switch p := part.(type) {
		case normalized.TextPart:
			fmt.Fprintf(w, "%s%s %s\n", indent, label, p.Text)
		case normalized.ReasoningPart:
			fmt.Fprintf(w, "%s%s %s\n", indent, color.HiBlackString("think"), firstLine(p.Text))
		case normalized.ToolUsePart:
			fmt.Fprintf(w, "%s%s %s\n", indent, color.YellowString("tool"), p.ToolName)
		case normalized.ToolResultPart:
			if p.IsError {
				fmt.Fprintf(w, "%s%s %s\n", indent, color.RedString("fail"), firstLine(p.Content))
			} else if p.Content != "" {
				fmt.Fprintf(w, "%s%s %s\n", indent, color.HiBlackString("  ->"), firstLine(p.Content))
			}
		case normalized.FilePart:
			fmt.Fprintf(w, "%s%s %s\n", indent, color.YellowString("file"), p.MimeType)
		case normalized.SystemStatusPart:
			fmt.Fprintf(w, "%s%s %s: %s\n", indent, color.CyanString("sys"), p.Subtype, p.Status)
		case normalized.UnknownPart:
			fmt.Fprintf(w, "%s%s %s\n", indent, color.HiBlackString("?"), p.OriginalType)
		}
	}
	if msg.Role == normalized.RoleResult {
		fmt.Fprintf(w, "%s%s cost=$%.4f duration=%dms error=%v\n",
			indent, color.HiBlackString("sum"), msg.CostUSD, msg.DurationMS, msg.IsError)
	}
}

func roleLabel(msg *normalized.Message) string {
	switch msg.Role {
	case normalized.RoleUser:
		if msg.Meta["type"] == store.KindPrompt {
			return color.GreenString("prompt")
		}
		return color.GreenString("user")
	case normalized.RoleAssistant:
		return color.WhiteString("agent")
	case normalized.RoleResult:
		return color.HiBlackString("result")
	default:
		return color.CyanString("system")
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 100 {
		s = s[:97] + "..."
	}
	return s
}
