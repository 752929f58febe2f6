package mirra

import "encoding/json"

// Memory types.

// MemoryEntity is a knowledge-base entry.
type MemoryEntity struct {
	ID       string         `json:"id,omitempty"`
	Content  string         `json:"content"`
	Type     string         `json:"type,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// MemorySearchQuery selects memories by semantic similarity.
type MemorySearchQuery struct {
	Query     string         `json:"query"`
	Limit     int            `json:"limit,omitempty"`
	Threshold float64        `json:"threshold,omitempty"`
	Filters   map[string]any `json:"filters,omitempty"`
}

// MemorySearchResult is one semantic search hit.
type MemorySearchResult struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Type     string         `json:"type,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    float64        `json:"score"`
}

// MemoryQueryParams filters memories without similarity ranking.
type MemoryQueryParams struct {
	Filters map[string]any `json:"filters,omitempty"`
	Limit   int            `json:"limit,omitempty"`
}

// MemoryUpdateParams are the mutable fields of a memory entity.
type MemoryUpdateParams struct {
	Content  string         `json:"content,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// AI types.

// ChatMessage is one turn of an AI conversation.
type ChatMessage struct {
	Role    string `json:"role"` // "user", "assistant" or "system"
	Content string `json:"content"`
}

// ChatRequest is an AI chat completion request.
type ChatRequest struct {
	Messages    []ChatMessage `json:"messages"`
	Model       string        `json:"model,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"maxTokens,omitempty"`
}

// TokenUsage reports token consumption for one AI call.
type TokenUsage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// ChatResponse is the AI chat completion result.
type ChatResponse struct {
	Content string     `json:"content"`
	Model   string     `json:"model"`
	Usage   TokenUsage `json:"usage"`
}

// DecisionOption is one candidate in a decide request.
type DecisionOption struct {
	ID       string         `json:"id"`
	Label    string         `json:"label"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// DecideRequest asks the AI to pick one option.
type DecideRequest struct {
	Prompt  string           `json:"prompt"`
	Options []DecisionOption `json:"options"`
	Context map[string]any   `json:"context,omitempty"`
	Model   string           `json:"model,omitempty"`
}

// DecideResponse is the AI's selection.
type DecideResponse struct {
	SelectedOption string `json:"selectedOption"`
	Reasoning      string `json:"reasoning"`
}

// BatchChatRequest bundles multiple chat requests.
type BatchChatRequest struct {
	Requests []ChatRequest `json:"requests"`
}

// Agent types.

// Agent is a hosted Mirra agent.
type Agent struct {
	ID           string `json:"id"`
	Subdomain    string `json:"subdomain"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	SystemPrompt string `json:"systemPrompt"`
	Enabled      bool   `json:"enabled"`
	Status       string `json:"status,omitempty"` // "draft" or "published"
	CreatedAt    string `json:"createdAt,omitempty"`
	UpdatedAt    string `json:"updatedAt,omitempty"`
}

// CreateAgentParams creates a new agent.
type CreateAgentParams struct {
	Subdomain    string `json:"subdomain"`
	Name         string `json:"name"`
	SystemPrompt string `json:"systemPrompt"`
	Description  string `json:"description,omitempty"`
	Enabled      *bool  `json:"enabled,omitempty"`
}

// UpdateAgentParams are the mutable fields of an agent.
type UpdateAgentParams struct {
	Name         string `json:"name,omitempty"`
	SystemPrompt string `json:"systemPrompt,omitempty"`
	Description  string `json:"description,omitempty"`
	Enabled      *bool  `json:"enabled,omitempty"`
}

// Script types.

// ScriptConfig bounds a script's runtime.
type ScriptConfig struct {
	Timeout          int      `json:"timeout,omitempty"`
	Memory           int      `json:"memory,omitempty"`
	AllowedResources []string `json:"allowedResources,omitempty"`
}

// Script is a deployable serverless script.
type Script struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Code        string       `json:"code"`
	Runtime     string       `json:"runtime,omitempty"` // "nodejs18" or "python3.11"
	Config      ScriptConfig `json:"config,omitempty"`
	Status      string       `json:"status,omitempty"` // "draft", "deployed" or "failed"
	CreatedAt   string       `json:"createdAt,omitempty"`
	UpdatedAt   string       `json:"updatedAt,omitempty"`
}

// CreateScriptParams creates a new script.
type CreateScriptParams struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Code        string        `json:"code"`
	Runtime     string        `json:"runtime,omitempty"`
	Config      *ScriptConfig `json:"config,omitempty"`
}

// UpdateScriptParams are the mutable fields of a script.
type UpdateScriptParams struct {
	Name        string        `json:"name,omitempty"`
	Description string        `json:"description,omitempty"`
	Code        string        `json:"code,omitempty"`
	Config      *ScriptConfig `json:"config,omitempty"`
}

// ScriptInvocationResult is the outcome of one script invocation.
type ScriptInvocationResult struct {
	Success  bool            `json:"success"`
	Result   json.RawMessage `json:"result,omitempty"`
	Logs     string          `json:"logs,omitempty"`
	Error    string          `json:"error,omitempty"`
	Duration float64         `json:"duration,omitempty"`
}

// Resource types.

// Resource is an external integration exposed to scripts and agents.
type Resource struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Type        string         `json:"type"`
	Config      map[string]any `json:"config,omitempty"`
	Status      string         `json:"status,omitempty"` // "active" or "inactive"
	CreatedAt   string         `json:"createdAt,omitempty"`
}

// CallResourceParams invokes a method on a resource.
type CallResourceParams struct {
	ResourceID string         `json:"resourceId"`
	Method     string         `json:"method"`
	Params     map[string]any `json:"params,omitempty"`
}

// Template types.

// TemplateComponents lists the pieces installed by a template.
type TemplateComponents struct {
	Agents    []string `json:"agents,omitempty"`
	Scripts   []string `json:"scripts,omitempty"`
	Resources []string `json:"resources,omitempty"`
}

// Template is an installable bundle of agents, scripts and resources.
type Template struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Category    string             `json:"category,omitempty"`
	Components  TemplateComponents `json:"components"`
	CreatedAt   string             `json:"createdAt,omitempty"`
}

// Flow types.

// Flow is a server-side automation that routes messages.
type Flow struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Enabled   bool        `json:"enabled"`
	Trigger   FlowTrigger `json:"trigger"`
	Action    FlowAction  `json:"action"`
	CreatedAt string      `json:"createdAt,omitempty"`
}

// FlowTrigger describes what fires a flow.
type FlowTrigger struct {
	Type    string `json:"type"` // e.g. "group-message"
	GroupID string `json:"groupId,omitempty"`
}

// FlowAction describes what a flow does when triggered.
type FlowAction struct {
	Type      string `json:"type"` // e.g. "forward-to-session"
	SessionID string `json:"sessionId,omitempty"`
	MachineID string `json:"machineId,omitempty"`
}

// CreateFlowParams creates a new flow.
type CreateFlowParams struct {
	Name    string      `json:"name"`
	Enabled bool        `json:"enabled"`
	Trigger FlowTrigger `json:"trigger"`
	Action  FlowAction  `json:"action"`
}

// Message types.

// Message is one message in a messaging group.
type Message struct {
	ID        string `json:"id"`
	GroupID   string `json:"groupId"`
	Content   string `json:"content"`
	Sender    string `json:"sender,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// SendMessageParams posts a new message to a group.
type SendMessageParams struct {
	GroupID string         `json:"groupId"`
	Content string         `json:"content"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// UpdateMessageParams edits an existing message in place.
type UpdateMessageParams struct {
	Content string         `json:"content"`
	Meta    map[string]any `json:"meta,omitempty"`
}
