package provider

// Role tags a conversation turn.
type Role string

const (
	// RoleUser marks raw user text: the incident description, or the
	// feedback turn the agent appends after a failed tool execution.
	RoleUser Role = "user"
	// RoleAssistant marks a tool call requested by the model.
	RoleAssistant Role = "assistant"
	// RoleTool marks the result of an executed tool call.
	RoleTool Role = "tool"
)

// Turn is one transcript entry. Content is set for user turns, ToolCall
// for assistant turns, ToolResult for tool turns.
type Turn struct {
	Role       Role
	Content    string
	ToolCall   *ToolCall
	ToolResult *ToolResult
}

// ToolCall is a pending tool invocation requested by the model. ID
// correlates the call with its result: backend-issued under the tool-call
// array convention, synthesized locally for inline calls.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]interface{}
}

// ToolResult is the payload produced by executing a ToolCall. CallID
// matches the originating call's ID.
type ToolResult struct {
	CallID  string
	Name    string
	Payload map[string]interface{}
}

// Conversation is the append-only transcript threaded through every
// provider call. The system instruction is fixed at construction; user
// text, assistant tool calls and tool results are appended as the loop
// progresses. A fresh conversation is started per incident; there is no
// cross-incident memory.
//
// Conversations are not safe for concurrent mutation. The agent loop is
// strictly sequential, so this never arises in practice.
type Conversation struct {
	system string
	turns  []Turn
}

// NewConversation creates a conversation seeded with the system
// instruction.
func NewConversation(systemPrompt string) *Conversation {
	return &Conversation{system: systemPrompt}
}

// System returns the system instruction.
func (c *Conversation) System() string {
	return c.system
}

// Turns returns the transcript in order. Callers must not modify the
// returned slice.
func (c *Conversation) Turns() []Turn {
	return c.turns
}

// Len returns the number of turns, excluding the system instruction.
func (c *Conversation) Len() int {
	return len(c.turns)
}

// AddUser appends a user text turn.
func (c *Conversation) AddUser(text string) {
	c.turns = append(c.turns, Turn{Role: RoleUser, Content: text})
}

// AddToolCall appends the assistant turn recording a tool call the model
// requested.
func (c *Conversation) AddToolCall(call ToolCall) {
	c.turns = append(c.turns, Turn{Role: RoleAssistant, ToolCall: &call})
}

// AddToolResult appends the tool turn carrying an executed call's payload.
func (c *Conversation) AddToolResult(result ToolResult) {
	c.turns = append(c.turns, Turn{Role: RoleTool, ToolResult: &result})
}

// Clone returns a deep-enough copy for snapshotting: the turn slice is
// copied, turn pointers are shared. Appends to the original never show up
// in the clone.
func (c *Conversation) Clone() *Conversation {
	turns := make([]Turn, len(c.turns))
	copy(turns, c.turns)
	return &Conversation{system: c.system, turns: turns}
}
