package agent

// ToolCall is one entry in the tool-call trace surfaced to API
// clients: the tool name, the parameters the model supplied, the
// structured result, and whether the call succeeded.
type ToolCall struct {
	ToolName   string         `json:"tool_name"`
	Parameters map[string]any `json:"parameters"`
	Result     map[string]any `json:"result"`
	Success    bool           `json:"success"`
}

// ExtractToolCalls pairs each emitted call with its output by
// correlation ID. A call with no matching output is recorded with an
// empty result and success=false. Extraction never fails: malformed
// argument payloads degrade to an empty parameter set.
func ExtractToolCalls(result *RunResult) []ToolCall {
	if result == nil {
		return []ToolCall{}
	}

	calls := make([]ToolCall, 0, len(result.Calls))
	for _, call := range result.Calls {
		entry := ToolCall{
			ToolName:   call.Name,
			Parameters: ParseToolArguments(call.Arguments),
			Result:     map[string]any{},
		}
		if output, ok := result.Outputs[call.ID]; ok {
			entry.Result = output.Result
			entry.Success = output.Success
		}
		calls = append(calls, entry)
	}
	return calls
}
