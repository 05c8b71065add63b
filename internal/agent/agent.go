package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
)

const (
	// DefaultMaxTurns bounds the number of model round trips per user
	// message. Each tool batch costs one extra visit.
	DefaultMaxTurns = 5

	exhaustedMessage = "I completed the requested actions. Is there anything else you'd like me to help with?"

	errorMessageFormat = "I encountered an error while processing your request: %s" +
		"\n\nPlease try again or contact support if the issue persists."
)

// ExecutedCall records one tool invocation for the chat transcript.
type ExecutedCall struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	Result    map[string]any `json:"result"`
}

// Result is what one conversational turn produced.
type Result struct {
	Content   string
	ToolCalls []ExecutedCall
	Usage     Usage
	Err       bool
}

// Agent runs the bounded tool-calling loop: ask the model, execute any
// tool calls it requests, feed the results back, repeat until the model
// answers in plain text or the turn budget runs out.
type Agent struct {
	provider CompletionProvider
	maxTurns int
}

func New(provider CompletionProvider) *Agent {
	return &Agent{provider: provider, maxTurns: DefaultMaxTurns}
}

func NewWithMaxTurns(provider CompletionProvider, maxTurns int) *Agent {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Agent{provider: provider, maxTurns: maxTurns}
}

// ProcessMessage runs one conversational turn. history holds prior
// messages oldest first, without the system prompt.
func (a *Agent) ProcessMessage(ctx context.Context, userMessage string, history []Message, exec *Executor) Result {
	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, Message{Role: "system", Content: SystemPrompt})
	messages = append(messages, history...)
	messages = append(messages, Message{Role: "user", Content: userMessage})

	tools := ToolDefs()

	var executed []ExecutedCall
	for turn := 1; turn <= a.maxTurns; turn++ {
		log.Printf("Agent turn %d/%d", turn, a.maxTurns)

		completion, err := a.provider.Complete(ctx, messages, tools)
		if err != nil {
			log.Printf("[WARN] agent processing failed: %v", err)
			return errorResult(err)
		}

		if len(completion.ToolCalls) > 0 && exec != nil {
			messages = append(messages, Message{
				Role:      "assistant",
				Content:   completion.Content,
				ToolCalls: completion.ToolCalls,
			})

			for _, tc := range completion.ToolCalls {
				var args map[string]any
				if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
					args = map[string]any{}
				}

				result := exec.Execute(ctx, tc.Function.Name, args)
				executed = append(executed, ExecutedCall{
					ID:        tc.ID,
					Type:      "function",
					Name:      tc.Function.Name,
					Arguments: args,
					Result:    result,
				})

				payload, err := json.Marshal(result)
				if err != nil {
					payload = []byte(`{"error": "failed to encode tool result"}`)
				}
				messages = append(messages, Message{
					Role:       "tool",
					ToolCallID: tc.ID,
					Content:    string(payload),
				})
			}
			continue
		}

		log.Printf("Agent response generated after %d turns", turn)
		return Result{
			Content:   CleanResponse(completion.Content),
			ToolCalls: executed,
			Usage:     completion.Usage,
		}
	}

	// Turn budget exhausted with the model still asking for tools.
	// Every executed tool already took effect; acknowledge and stop.
	log.Printf("[WARN] max turns (%d) reached", a.maxTurns)
	return Result{
		Content:   exhaustedMessage,
		ToolCalls: executed,
	}
}

func errorResult(err error) Result {
	return Result{
		Content: fmt.Sprintf(errorMessageFormat, err),
		Err:     true,
	}
}
