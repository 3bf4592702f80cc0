package gateway

// Normalize converts an inbound request into the canonical form the
// dispatcher understands: messages in input order, generation
// parameters carried over, and the legacy functions field merged with
// the modern tools field into one translated schema list.
//
// It fails with a ValidationError when the message list is empty or no
// message carries the user role.
func Normalize(req *ChatCompletionRequest) (*CanonicalRequest, error) {
	if len(req.Messages) == 0 {
		return nil, NewValidationError("messages must not be empty")
	}

	hasUser := false
	for _, msg := range req.Messages {
		if msg.Role == RoleUser {
			hasUser = true
			break
		}
	}
	if !hasUser {
		return nil, NewValidationError("at least one message must have role %q", RoleUser)
	}

	messages := make([]Message, len(req.Messages))
	copy(messages, req.Messages)

	canonical := &CanonicalRequest{
		Model:            req.Model,
		Messages:         messages,
		Stream:           req.Stream,
		Temperature:      req.Temperature,
		MaxTokens:        req.MaxTokens,
		TopP:             req.TopP,
		FrequencyPenalty: req.FrequencyPenalty,
		PresencePenalty:  req.PresencePenalty,
		Tools:            MergeToolDeclarations(req.Functions, req.Tools),
	}

	if canonical.Tools != nil {
		canonical.ToolChoice = resolveToolChoice(req)
	}

	return canonical, nil
}

// resolveToolChoice picks the tool selection directive to forward. The
// modern tool_choice wins; a legacy function_call of "auto"/"none"
// maps straight across, and a legacy {"name": ...} target becomes the
// modern {"type":"function","function":{"name":...}} shape.
func resolveToolChoice(req *ChatCompletionRequest) any {
	if req.ToolChoice != nil {
		return req.ToolChoice
	}

	switch fc := req.FunctionCall.(type) {
	case string:
		return fc
	case map[string]any:
		if name, ok := fc["name"].(string); ok {
			return map[string]any{
				"type": ToolTypeFunction,
				"function": map[string]any{
					"name": name,
				},
			}
		}
	}

	return "auto"
}

// LastUserMessage returns the content of the most recent user turn, or
// "" when none carries text.
func LastUserMessage(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Text()
		}
	}
	return ""
}
