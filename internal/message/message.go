// Package message defines the chat message model shared by every pipeline stage.
//
// DESIGN: One Message struct carries both the UI-side fields (ids, timestamps,
// media lists, grouped children) and the wire-side fields (tool_calls,
// tool_call_id, name). Stages move data from the former to the latter; the
// final cleanup stage drops everything that is not part of the wire schema.
//
// Content is either a plain string or a list of typed parts. It marshals to a
// JSON string or a JSON array accordingly, matching chat-completion payloads.
package message

// Roles understood by the pipeline.
const (
	RoleSystem         = "system"
	RoleUser           = "user"
	RoleAssistant      = "assistant"
	RoleTool           = "tool"
	RoleAssistantGroup = "assistantGroup" // UI grouping of one agent turn with tool results
	RoleAgentCouncil   = "agentCouncil"   // UI grouping of several agents answering one prompt
)

// Message is a single conversational turn.
type Message struct {
	ID      string  `json:"id,omitempty"`
	Role    string  `json:"role"`
	Content Content `json:"content"`

	// Wire tool fields
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`

	// UI tool fields
	Tools       []ToolPayload  `json:"tools,omitempty"`
	Plugin      *ToolPayload   `json:"plugin,omitempty"`
	PluginState map[string]any `json:"pluginState,omitempty"`
	PluginError any            `json:"pluginError,omitempty"`

	// Media
	ImageList []ImageItem `json:"imageList,omitempty"`
	VideoList []VideoItem `json:"videoList,omitempty"`
	FileList  []FileItem  `json:"fileList,omitempty"`

	Reasoning *Reasoning `json:"reasoning,omitempty"`
	Error     any        `json:"error,omitempty"`

	// Grouped turns
	Children []GroupChild `json:"children,omitempty"`
	Members  []Message    `json:"members,omitempty"`

	AgentID  string `json:"agentId,omitempty"`
	Model    string `json:"model,omitempty"`
	Provider string `json:"provider,omitempty"`

	Meta      map[string]any `json:"meta,omitempty"`
	CreatedAt int64          `json:"createdAt,omitempty"` // unix ms
	UpdatedAt int64          `json:"updatedAt,omitempty"` // unix ms
}

// ToolCall is the wire representation of an assistant tool invocation.
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction names the function and carries its JSON arguments.
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolPayload is the UI representation of a tool invocation.
type ToolPayload struct {
	ID         string      `json:"id"`
	Identifier string      `json:"identifier"`
	APIName    string      `json:"apiName"`
	Arguments  string      `json:"arguments"`
	Type       string      `json:"type,omitempty"`
	Result     *ToolResult `json:"result,omitempty"`
}

// ToolResult is the stored outcome of a tool invocation inside a group child.
type ToolResult struct {
	ID      string         `json:"id"`
	Content string         `json:"content"`
	Error   any            `json:"error,omitempty"`
	State   map[string]any `json:"state,omitempty"`
}

// GroupChild is one assistant step inside an assistantGroup message.
type GroupChild struct {
	ID        string        `json:"id"`
	Content   string        `json:"content"`
	Tools     []ToolPayload `json:"tools,omitempty"`
	Reasoning *Reasoning    `json:"reasoning,omitempty"`
	ImageList []ImageItem   `json:"imageList,omitempty"`
	Error     any           `json:"error,omitempty"`
}

// Reasoning holds model thinking output. Signature is set by providers that
// require signed thinking blocks to be replayed.
type Reasoning struct {
	Content   string `json:"content,omitempty"`
	Signature string `json:"signature,omitempty"`
}

// ImageItem references an uploaded image.
type ImageItem struct {
	ID  string `json:"id"`
	URL string `json:"url"`
	Alt string `json:"alt,omitempty"`
}

// VideoItem references an uploaded video.
type VideoItem struct {
	ID  string `json:"id"`
	URL string `json:"url"`
	Alt string `json:"alt,omitempty"`
}

// FileItem references an uploaded file.
type FileItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	FileType string `json:"fileType,omitempty"`
	Size     int64  `json:"size,omitempty"`
	URL      string `json:"url,omitempty"`
}

// HasToolCalls reports whether the message carries wire tool calls.
func (m *Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// IsSystemInjection reports whether the message was inserted by an injector
// rather than typed by the user.
func (m *Message) IsSystemInjection() bool {
	if m.Meta == nil {
		return false
	}
	flag, _ := m.Meta["systemInjection"].(bool)
	return flag
}
