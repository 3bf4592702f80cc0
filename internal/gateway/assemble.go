package gateway

import (
	"encoding/json"
)

// upstreamCompletion is the loose shape of a buffered upstream reply.
// Only the fields the assembler needs are decoded; everything else is
// ignored rather than rejected.
type upstreamCompletion struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int      `json:"index"`
		Message      *Message `json:"message"`
		FinishReason string   `json:"finish_reason"`
	} `json:"choices"`
	Usage *Usage `json:"usage"`
}

// Assemble maps a buffered upstream completion body into the canonical
// chat.completion shape. The first choice is taken; tool calls are
// copied with identity preserved, arguments string verbatim. Token
// usage passes through when the upstream supplies it with the total
// recomputed as the sum, and is estimated otherwise.
//
// Fails with UpstreamShapeError when choices is empty or the first
// choice lacks a message.
func Assemble(body []byte, id string, created int64, model string, prompt []Message) (*ChatCompletionResponse, error) {
	var upstream upstreamCompletion
	if err := json.Unmarshal(body, &upstream); err != nil {
		return nil, &UpstreamShapeError{Reason: "body is not a JSON completion object"}
	}

	if len(upstream.Choices) == 0 {
		return nil, &UpstreamShapeError{Reason: "choices is empty"}
	}

	first := upstream.Choices[0]
	if first.Message == nil {
		return nil, &UpstreamShapeError{Reason: "first choice has no message"}
	}

	finishReason := first.FinishReason
	if finishReason == "" {
		finishReason = FinishReasonStop
	}

	var usage Usage
	if upstream.Usage != nil {
		usage = Usage{
			PromptTokens:     upstream.Usage.PromptTokens,
			CompletionTokens: upstream.Usage.CompletionTokens,
		}
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	} else {
		usage = EstimateUsage(prompt, first.Message.Text())
	}

	return &ChatCompletionResponse{
		ID:      id,
		Object:  ObjectChatCompletion,
		Created: created,
		Model:   model,
		Choices: []Choice{
			{
				Index:        0,
				Message:      *first.Message,
				FinishReason: finishReason,
			},
		},
		Usage: usage,
	}, nil
}

// AssembleText builds a chat.completion response around plain
// assistant text, used when the reply was produced by the local tool
// loop rather than a single upstream call.
func AssembleText(text, id string, created int64, model string, prompt []Message) *ChatCompletionResponse {
	return &ChatCompletionResponse{
		ID:      id,
		Object:  ObjectChatCompletion,
		Created: created,
		Model:   model,
		Choices: []Choice{
			{
				Index:        0,
				Message:      TextMessage(RoleAssistant, text),
				FinishReason: FinishReasonStop,
			},
		},
		Usage: EstimateUsage(prompt, text),
	}
}
