package controllers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/taskline/taskline/internal/agent"
	"github.com/taskline/taskline/internal/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"
)

type AgentController struct {
	agent         *agent.Agent
	conversations domain.ConversationStore
}

type AgentControllerDependencies struct {
	Agent         *agent.Agent
	Conversations domain.ConversationStore
}

func NewAgentController(deps AgentControllerDependencies) *AgentController {
	return &AgentController{
		agent:         deps.Agent,
		conversations: deps.Conversations,
	}
}

type agentRequest struct {
	UserID string `json:"user_id"`
	ChatID string `json:"chat_id"`
	Prompt string `json:"prompt"`
}

type streamEvent struct {
	Type           string `json:"type"`
	Delta          string `json:"delta,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Title          string `json:"title,omitempty"`
	Error          string `json:"error,omitempty"`
}

// StreamAgent runs one agent turn and streams assistant text back as
// server-sent events.
func (c *AgentController) StreamAgent(ctx *fiber.Ctx) error {
	var request agentRequest
	if err := ctx.BodyParser(&request); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if request.UserID == "" || request.Prompt == "" {
		return fiber.NewError(fiber.StatusBadRequest, "user_id and prompt are required")
	}

	ctx.Set(fiber.HeaderContentType, "text/event-stream")
	ctx.Set(fiber.HeaderCacheControl, "no-cache")
	ctx.Set(fiber.HeaderConnection, "keep-alive")

	ctx.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		writeEvent := func(event streamEvent) {
			payload, err := json.Marshal(event)
			if err != nil {
				return
			}

			fmt.Fprintf(w, "data: %s\n\n", payload)
			w.Flush()
		}

		// An abandoned request runs to completion; the agent turn is not
		// tied to the connection's lifetime.
		result, err := c.agent.Run(context.Background(), request.UserID, request.ChatID, request.Prompt, func(delta string) {
			writeEvent(streamEvent{Type: "delta", Delta: delta})
		})
		if err != nil {
			log.Error().
				Str("user_id", request.UserID).
				Err(err).
				Msg("Agent turn failed")

			writeEvent(streamEvent{Type: "error", Error: publicError(err)})

			return
		}

		writeEvent(streamEvent{
			Type:           "done",
			ConversationID: result.ConversationID,
			Title:          result.Title,
		})
	}))

	return nil
}

func (c *AgentController) ListConversations(ctx *fiber.Ctx) error {
	userID := ctx.Query("user_id")
	if userID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "user_id is required")
	}

	conversations, err := c.conversations.ListConversations(ctx.UserContext(), userID)
	if err != nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "conversation storage is unavailable")
	}

	return ctx.JSON(fiber.Map{"conversations": conversations})
}

func (c *AgentController) GetConversation(ctx *fiber.Ctx) error {
	userID := ctx.Query("user_id")
	if userID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "user_id is required")
	}

	conversation, err := c.conversations.GetConversation(ctx.UserContext(), userID, ctx.Params("conversationID"))
	if err != nil {
		if errors.Is(err, domain.ErrConversationNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "conversation not found")
		}

		return fiber.NewError(fiber.StatusServiceUnavailable, "conversation storage is unavailable")
	}

	return ctx.JSON(conversation)
}

// publicError maps internal failures to user-facing messages. Terminal
// credential failures ask for re-authorization; operational failures do not.
func publicError(err error) string {
	var refreshErr *domain.RefreshFailedError
	var storeErr *domain.StoreUnavailableError

	switch {
	case errors.Is(err, domain.ErrAuthorizationDenied):
		return "Authorization was denied. Please re-connect the service and try again."
	case errors.As(err, &refreshErr):
		return "The service could not be reached to renew your access. Please try again."
	case errors.As(err, &storeErr):
		return "Storage is temporarily unavailable. Please try again later."
	default:
		return "Something went wrong while handling your request."
	}
}
