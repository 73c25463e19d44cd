// Package timeline regroups a flat, index-ordered normalized message
// sequence into display entries: sub-agent trees, paired skill invocations,
// paired compaction windows, and regular messages.
package timeline

import (
	"github.com/AgentTrail/AgentTrail/internal/normalized"
)

// EntryKind discriminates the Entry union.
type EntryKind string

const (
	EntryKindRegular    EntryKind = "regular"
	EntryKindSubagent   EntryKind = "subagent"
	EntryKindSkill      EntryKind = "skill"
	EntryKindCompacting EntryKind = "compacting"
)

// Entry is one display unit of the merged timeline. Entries are consumed by
// rendering collaborators only; no further logic depends on their shape.
type Entry interface {
	Kind() EntryKind
	// FirstIndex is the minimum input index among the entry's constituent
	// messages; entries are ordered by it.
	FirstIndex() int
}

// RegularEntry is a standalone message.
type RegularEntry struct {
	Index   int
	Message *normalized.Message
}

// Kind returns the entry kind.
func (e RegularEntry) Kind() EntryKind { return EntryKindRegular }

// FirstIndex returns the entry's ordering index.
func (e RegularEntry) FirstIndex() int { return e.Index }

// SubagentEntry groups a sub-agent launch with its nested child messages.
// Children render only inside this entry, in their original order, never at
// top level. Complete is true once a later message carries a tool-result
// for the launch's ToolID.
type SubagentEntry struct {
	Index    int
	Launch   normalized.ToolUsePart
	Parent   *normalized.Message
	Children []*normalized.Message
	Complete bool
}

// Kind returns the entry kind.
func (e SubagentEntry) Kind() EntryKind { return EntryKindSubagent }

// FirstIndex returns the entry's ordering index.
func (e SubagentEntry) FirstIndex() int { return e.Index }

// SkillEntry pairs a skill-launch tool result with the synthetic prompt
// message injected right after it.
type SkillEntry struct {
	Index     int
	SkillName string
	Launch    *normalized.Message
	Prompt    *normalized.Message
}

// Kind returns the entry kind.
func (e SkillEntry) Kind() EntryKind { return EntryKindSkill }

// FirstIndex returns the entry's ordering index.
func (e SkillEntry) FirstIndex() int { return e.Index }

// CompactingEntry represents a compaction window. InProgress marks a session
// interrupted mid-compaction, which is a valid terminal state.
type CompactingEntry struct {
	Index      int
	SessionID  string
	Trigger    string
	PreTokens  int
	InProgress bool
}

// Kind returns the entry kind.
func (e CompactingEntry) Kind() EntryKind { return EntryKindCompacting }

// FirstIndex returns the entry's ordering index.
func (e CompactingEntry) FirstIndex() int { return e.Index }
