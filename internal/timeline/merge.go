package timeline

import (
	"encoding/json"

	"github.com/AgentTrail/AgentTrail/internal/normalized"
)

// SubagentToolName is the tool that spawns a nested agent in both source
// schemas.
const SubagentToolName = "Task"

// launchSite records where a sub-agent launch was seen.
type launchSite struct {
	msgIndex int
	part     normalized.ToolUsePart
}

// Merge regroups an index-ordered message sequence into display entries in
// one left-to-right pass. It never mutates its input and is idempotent:
// identical input yields identical output. For any two entries, A precedes
// B iff the minimum input index among A's messages is less than B's.
func Merge(msgs []*normalized.Message) []Entry {
	if len(msgs) == 0 {
		return nil
	}

	processed := make(map[int]bool, len(msgs))

	// Pass A: find every sub-agent launch.
	var launchOrder []string
	launches := make(map[string]launchSite)
	for i, msg := range msgs {
		for _, tu := range msg.ToolUses() {
			if tu.ToolName != SubagentToolName {
				continue
			}
			if _, dup := launches[tu.ToolID]; dup {
				continue
			}
			launches[tu.ToolID] = launchSite{msgIndex: i, part: tu}
			launchOrder = append(launchOrder, tu.ToolID)
		}
	}

	// Pass B: bucket children by parent ToolID. Bucketed children never
	// appear at top level.
	children := make(map[string][]*normalized.Message)
	for i, msg := range msgs {
		if msg.ParentToolUseID == "" {
			continue
		}
		site, ok := launches[msg.ParentToolUseID]
		if !ok || site.msgIndex >= i {
			continue
		}
		children[msg.ParentToolUseID] = append(children[msg.ParentToolUseID], msg)
		processed[i] = true
	}

	// A message whose whole content is the closing tool-result of a launch
	// folds into the subagent entry (it flips Complete) instead of
	// emitting a top-level entry.
	for i, msg := range msgs {
		if processed[i] || len(msg.Parts) == 0 {
			continue
		}
		folds := true
		for _, p := range msg.Parts {
			tr, ok := p.(normalized.ToolResultPart)
			if !ok {
				folds = false
				break
			}
			site, isLaunch := launches[tr.ToolID]
			if !isLaunch || site.msgIndex >= i {
				folds = false
				break
			}
		}
		if folds {
			processed[i] = true
		}
	}

	var entries []Entry
	for i := 0; i < len(msgs); i++ {
		if processed[i] {
			continue
		}
		msg := msgs[i]

		// Rule 1: skill pair. Adjacency is required.
		if name, ok := skillLaunchName(msg); ok && i+1 < len(msgs) && msgs[i+1].Synthetic && !processed[i+1] {
			entries = append(entries, SkillEntry{
				Index:     i,
				SkillName: name,
				Launch:    msg,
				Prompt:    msgs[i+1],
			})
			processed[i] = true
			processed[i+1] = true
			continue
		}

		// Rule 2: compaction pair. The boundary need not be adjacent but
		// must share the session id. A missing boundary is a valid
		// terminal state, not an error.
		if isCompactionStart(msg) {
			entry := CompactingEntry{
				Index:      i,
				SessionID:  msg.SessionID,
				Trigger:    "auto",
				InProgress: true,
			}
			for j := i + 1; j < len(msgs); j++ {
				if processed[j] || msgs[j].SessionID != msg.SessionID {
					continue
				}
				if cp, ok := compactBoundary(msgs[j]); ok {
					entry.Trigger = cp.Trigger
					entry.PreTokens = cp.PreTokens
					entry.InProgress = false
					processed[j] = true
					break
				}
			}
			entries = append(entries, entry)
			processed[i] = true
			continue
		}

		// Rule 3: sub-agent grouping. A message may yield a regular entry
		// for its surrounding content plus one subagent entry per launch.
		msgLaunches := launchesAt(launchOrder, launches, i)
		if len(msgLaunches) > 0 {
			if hasNonLaunchContent(msg) {
				entries = append(entries, RegularEntry{Index: i, Message: msg})
			}
			for _, site := range msgLaunches {
				entries = append(entries, SubagentEntry{
					Index:    i,
					Launch:   site.part,
					Parent:   msg,
					Children: children[site.part.ToolID],
					Complete: hasLaterResult(msgs, i, site.part.ToolID),
				})
			}
			processed[i] = true
			continue
		}

		// Rule 4: default.
		entries = append(entries, RegularEntry{Index: i, Message: msg})
		processed[i] = true
	}
	return entries
}

// skillLaunchName reports whether the message carries a structured skill
// launch result and returns the skill name.
func skillLaunchName(msg *normalized.Message) (string, bool) {
	for _, tr := range msg.ToolResults() {
		if len(tr.Structured) == 0 {
			continue
		}
		var payload struct {
			SkillName string `json:"skillName"`
		}
		if err := json.Unmarshal(tr.Structured, &payload); err != nil {
			continue
		}
		if payload.SkillName != "" {
			return payload.SkillName, true
		}
	}
	return "", false
}

// isCompactionStart reports whether the message is a "compaction started"
// status record.
func isCompactionStart(msg *normalized.Message) bool {
	for _, p := range msg.Parts {
		if ss, ok := p.(normalized.SystemStatusPart); ok && ss.Status == "compacting" {
			return true
		}
	}
	return false
}

// compactBoundary returns the compaction boundary part of a message, if any.
func compactBoundary(msg *normalized.Message) (normalized.CompactPart, bool) {
	for _, p := range msg.Parts {
		if cp, ok := p.(normalized.CompactPart); ok {
			return cp, true
		}
	}
	return normalized.CompactPart{}, false
}

// launchesAt returns the launches recorded at message index i, preserving
// emission order.
func launchesAt(order []string, launches map[string]launchSite, i int) []launchSite {
	var out []launchSite
	for _, toolID := range order {
		if site := launches[toolID]; site.msgIndex == i {
			out = append(out, site)
		}
	}
	return out
}

// hasNonLaunchContent reports whether the message carries anything besides
// sub-agent launches.
func hasNonLaunchContent(msg *normalized.Message) bool {
	for _, p := range msg.Parts {
		if tu, ok := p.(normalized.ToolUsePart); ok && tu.ToolName == SubagentToolName {
			continue
		}
		return true
	}
	return false
}

// hasLaterResult reports whether any message after index i carries a
// tool-result for the given ToolID.
func hasLaterResult(msgs []*normalized.Message, i int, toolID string) bool {
	for j := i + 1; j < len(msgs); j++ {
		for _, tr := range msgs[j].ToolResults() {
			if tr.ToolID == toolID {
				return true
			}
		}
	}
	return false
}
