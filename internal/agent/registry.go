package agent

import (
	"context"

	"github.com/google/uuid"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/shared"
)

// ToolOutcome is what a tool handler hands back to the loop. Message
// is the conversational string returned to the model; Result is the
// structured payload recorded in the tool-call trace. Handlers never
// return an error: every failure is expressed through Success=false
// and a translated Message.
type ToolOutcome struct {
	Message string
	Result  map[string]any
	Success bool
}

// ToolHandler executes one tool invocation. The user identity comes
// from the orchestration layer, never from model-supplied arguments.
type ToolHandler func(ctx context.Context, userID uuid.UUID, params map[string]any) ToolOutcome

// ToolDef declares a tool: its name, the description guiding tool
// selection, a JSON schema for parameters, and the handler.
type ToolDef struct {
	Name        string
	Description string
	Parameters  openai.FunctionParameters
	Handler     ToolHandler
}

// Registry holds the fixed tool surface exposed to the model, in
// declaration order.
type Registry struct {
	defs  []ToolDef
	index map[string]*ToolDef
}

// NewRegistry builds a registry from the given definitions.
func NewRegistry(defs ...ToolDef) *Registry {
	r := &Registry{
		defs:  defs,
		index: make(map[string]*ToolDef, len(defs)),
	}
	for i := range r.defs {
		r.index[r.defs[i].Name] = &r.defs[i]
	}
	return r
}

// Lookup returns the tool definition for name, or nil if unknown.
func (r *Registry) Lookup(name string) *ToolDef {
	return r.index[name]
}

// Tools renders the registry as completion API tool parameters.
func (r *Registry) Tools() []openai.ChatCompletionToolUnionParam {
	tools := make([]openai.ChatCompletionToolUnionParam, 0, len(r.defs))
	for _, def := range r.defs {
		tools = append(tools, openai.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        def.Name,
			Description: openai.String(def.Description),
			Parameters:  def.Parameters,
		}))
	}
	return tools
}
