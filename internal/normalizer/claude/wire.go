package claude

import "encoding/json"

// recordType discriminates top-level stream-json records.
type recordType string

const (
	recordTypeSystem    recordType = "system"
	recordTypeAssistant recordType = "assistant"
	recordTypeUser      recordType = "user"
	recordTypeResult    recordType = "result"
)

// rawRecord is one line of the CLI's stream-json output. Only the fields the
// normalizer reads are modeled; everything else stays in the raw bytes.
type rawRecord struct {
	Type            recordType      `json:"type"`
	Subtype         string          `json:"subtype,omitempty"`
	UUID            string          `json:"uuid,omitempty"`
	SessionID       string          `json:"session_id,omitempty"`
	ParentToolUseID *string         `json:"parent_tool_use_id,omitempty"`
	Message         json.RawMessage `json:"message,omitempty"`
	Timestamp       string          `json:"timestamp,omitempty"`
	IsMeta          bool            `json:"isMeta,omitempty"`

	// Side-channel structured payload for tool results, present on the
	// parent user record rather than inside the content blocks.
	ToolUseResult json.RawMessage `json:"toolUseResult,omitempty"`

	// System record fields.
	Model           string           `json:"model,omitempty"`
	Status          string           `json:"status,omitempty"`
	CompactMetadata *compactMetadata `json:"compact_metadata,omitempty"`

	// Result record fields.
	Result       string                   `json:"result,omitempty"`
	IsError      bool                     `json:"is_error,omitempty"`
	DurationMS   int64                    `json:"duration_ms,omitempty"`
	TotalCostUSD float64                  `json:"total_cost_usd,omitempty"`
	NumTurns     int                      `json:"num_turns,omitempty"`
	Usage        *wireUsage               `json:"usage,omitempty"`
	ModelUsage   map[string]wireModelCost `json:"modelUsage,omitempty"`
}

type compactMetadata struct {
	Trigger   string `json:"trigger"`
	PreTokens int    `json:"pre_tokens"`
}

// messageContent is the inner API message of assistant/user records.
type messageContent struct {
	ID      string          `json:"id,omitempty"`
	Role    string          `json:"role"`
	Model   string          `json:"model,omitempty"`
	Content json.RawMessage `json:"content"`
	Usage   *wireUsage      `json:"usage,omitempty"`
}

// contentString returns the content as a plain string if it is one.
func (m *messageContent) contentString() (string, bool) {
	if len(m.Content) == 0 || m.Content[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(m.Content, &s); err != nil {
		return "", false
	}
	return s, true
}

// contentBlocks returns the content as raw blocks if it is an array.
func (m *messageContent) contentBlocks() ([]json.RawMessage, bool) {
	if len(m.Content) == 0 || m.Content[0] != '[' {
		return nil, false
	}
	var blocks []json.RawMessage
	if err := json.Unmarshal(m.Content, &blocks); err != nil {
		return nil, false
	}
	return blocks, true
}

// wireUsage is the backend-native token counter shape.
type wireUsage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
}

// wireModelCost is one entry of the per-model usage breakdown on result
// records. Field casing differs from wireUsage on the wire.
type wireModelCost struct {
	InputTokens              int     `json:"inputTokens"`
	OutputTokens             int     `json:"outputTokens"`
	CacheReadInputTokens     int     `json:"cacheReadInputTokens"`
	CacheCreationInputTokens int     `json:"cacheCreationInputTokens"`
	CostUSD                  float64 `json:"costUSD"`
}

// contentBlock is the discriminated shape of one content block. Unused
// fields for a given type are simply zero.
type contentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	Thinking  string          `json:"thinking,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     map[string]any  `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
	Source    *blockSource    `json:"source,omitempty"`
}

type blockSource struct {
	Type      string `json:"type"`
	Path      string `json:"path,omitempty"`
	MediaType string `json:"media_type,omitempty"`
}
