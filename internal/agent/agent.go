package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/taskline/taskline/internal/domain"
	calendarintegration "github.com/taskline/taskline/pkg/integrations/google/calendar"
	gmailintegration "github.com/taskline/taskline/pkg/integrations/google/gmail"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/xid"
	"github.com/rs/zerolog/log"
)

const (
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 4096

	// maxToolRounds bounds the model/tool round trips for one user turn.
	maxToolRounds = 8
)

// Agent runs the chat loop: model call, tool execution, follow-up call, until
// the model stops asking for tools. Credentials are resolved lazily inside
// the integrations, so a turn that needs no external service never touches
// the credential subsystem.
type Agent struct {
	client        anthropic.Client
	model         string
	mail          *gmailintegration.GmailIntegration
	calendar      *calendarintegration.CalendarIntegration
	conversations domain.ConversationStore
}

type Dependencies struct {
	APIKey string
	Model  string

	Mail          *gmailintegration.GmailIntegration
	Calendar      *calendarintegration.CalendarIntegration
	Conversations domain.ConversationStore
}

func New(deps Dependencies) *Agent {
	model := deps.Model
	if model == "" {
		model = defaultModel
	}

	return &Agent{
		client:        anthropic.NewClient(option.WithAPIKey(deps.APIKey)),
		model:         model,
		mail:          deps.Mail,
		calendar:      deps.Calendar,
		conversations: deps.Conversations,
	}
}

// StreamFunc receives assistant text as it becomes available.
type StreamFunc func(delta string)

type RunResult struct {
	ConversationID string
	Title          string
	Output         string
}

// Run handles one user turn: loads history, loops through tool calls, streams
// assistant text, and appends the exchange to the conversation.
func (a *Agent) Run(ctx context.Context, userID, conversationID, prompt string, stream StreamFunc) (RunResult, error) {
	if conversationID == "" {
		conversationID = xid.New().String()
	}

	messages, err := a.loadHistory(ctx, userID, conversationID)
	if err != nil {
		return RunResult{}, err
	}

	messages = append(messages, anthropic.MessageParam{
		Role:    anthropic.MessageParamRoleUser,
		Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(prompt)},
	})

	var output string

	for round := 0; round < maxToolRounds; round++ {
		response, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     anthropic.Model(a.model),
			MaxTokens: defaultMaxTokens,
			System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
			Messages:  messages,
			Tools:     agentTools(),
		})
		if err != nil {
			return RunResult{}, fmt.Errorf("model call failed: %w", err)
		}

		var assistantBlocks []anthropic.ContentBlockParamUnion
		var toolResults []anthropic.ContentBlockParamUnion

		for _, block := range response.Content {
			switch block.Type {
			case "text":
				output += block.Text
				if stream != nil {
					stream(block.Text)
				}
				assistantBlocks = append(assistantBlocks, anthropic.NewTextBlock(block.Text))
			case "tool_use":
				var input map[string]any
				if len(block.Input) > 0 {
					if err := json.Unmarshal(block.Input, &input); err != nil {
						input = map[string]any{}
					}
				} else {
					input = map[string]any{}
				}

				assistantBlocks = append(assistantBlocks, anthropic.NewToolUseBlock(block.ID, input, block.Name))

				result, toolErr := a.executeTool(ctx, userID, block.Name, block.Input)
				if toolErr != nil {
					log.Warn().
						Str("user_id", userID).
						Str("tool", block.Name).
						Err(toolErr).
						Msg("Tool execution failed")

					toolResults = append(toolResults, anthropic.NewToolResultBlock(block.ID, toolErr.Error(), true))
				} else {
					toolResults = append(toolResults, anthropic.NewToolResultBlock(block.ID, result, false))
				}
			}
		}

		if response.StopReason != "tool_use" {
			break
		}

		messages = append(messages,
			anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleAssistant,
				Content: assistantBlocks,
			},
			anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleUser,
				Content: toolResults,
			},
		)
	}

	conversation, err := a.conversations.AppendMessages(ctx, userID, conversationID,
		domain.Message{
			ID:        xid.New().String(),
			Role:      domain.MessageRoleUser,
			Content:   prompt,
			CreatedAt: time.Now(),
		},
		domain.Message{
			ID:        xid.New().String(),
			Role:      domain.MessageRoleAssistant,
			Content:   output,
			CreatedAt: time.Now(),
		},
	)
	if err != nil {
		return RunResult{}, err
	}

	return RunResult{
		ConversationID: conversation.ID,
		Title:          conversation.Title,
		Output:         output,
	}, nil
}

func (a *Agent) loadHistory(ctx context.Context, userID, conversationID string) ([]anthropic.MessageParam, error) {
	conversation, err := a.conversations.GetConversation(ctx, userID, conversationID)
	if err != nil {
		if errors.Is(err, domain.ErrConversationNotFound) {
			return nil, nil
		}

		return nil, err
	}

	messages := make([]anthropic.MessageParam, 0, len(conversation.Messages))

	for _, message := range conversation.Messages {
		role := anthropic.MessageParamRoleUser
		if message.Role == domain.MessageRoleAssistant {
			role = anthropic.MessageParamRoleAssistant
		}

		messages = append(messages, anthropic.MessageParam{
			Role:    role,
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(message.Content)},
		})
	}

	return messages, nil
}
