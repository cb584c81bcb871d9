package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/yemishi/chatteroo-server/internal/core"
	"github.com/yemishi/chatteroo-server/internal/store"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// APIHandlers provides HTTP handlers for REST API endpoints.
type APIHandlers struct {
	hub      *core.Hub
	chats    store.ChatStore
	messages store.MessageStore
	log      *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(hub *core.Hub, st store.Store, logger *zerolog.Logger) *APIHandlers {
	h := &APIHandlers{hub: hub, log: logger}
	if st != nil {
		h.chats = st
		h.messages = st
	}
	return h
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// OnlineUsersResponse lists the users that currently have a live connection.
type OnlineUsersResponse struct {
	Users []string `json:"users"`
}

// MessageResponse is one stored chat message.
type MessageResponse struct {
	ID        string  `json:"id"`
	ChatID    string  `json:"chatId"`
	SenderID  string  `json:"senderId"`
	Content   string  `json:"content"`
	Timestamp string  `json:"timestamp"`
	EditedAt  *string `json:"editedAt,omitempty"`
}

// ChatResponse describes a chat and who is in it.
type ChatResponse struct {
	ID            string   `json:"id"`
	Members       []string `json:"members"`
	LastMessageAt *string  `json:"lastMessageAt,omitempty"`
	Online        []string `json:"online"`
}

// HistoryResponse is a page of messages in chronological order.
type HistoryResponse struct {
	ChatID   string            `json:"chatId"`
	Messages []MessageResponse `json:"messages"`
}

// OnlineUsers returns the presence snapshot.
// GET /api/online
func (h *APIHandlers) OnlineUsers(c *gin.Context) {
	c.JSON(http.StatusOK, OnlineUsersResponse{Users: h.hub.OnlineUsers()})
}

// ChatHistory returns the newest messages of a chat.
// GET /api/chats/:chatId/messages?limit=50&before=<id>
func (h *APIHandlers) ChatHistory(c *gin.Context) {
	chatID := c.Param("chatId")

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	var beforeID *int64
	if raw := c.Query("before"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid before id"})
			return
		}
		beforeID = &id
	}

	msgs, err := h.messages.ListMessages(c.Request.Context(), chatID, limit, beforeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "chat not found"})
			return
		}
		h.log.Error().Err(err).Str("room", chatID).Msg("failed to list messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	resp := HistoryResponse{ChatID: chatID, Messages: make([]MessageResponse, 0, len(msgs))}
	for _, msg := range msgs {
		resp.Messages = append(resp.Messages, messageToResponse(msg))
	}
	c.JSON(http.StatusOK, resp)
}

// GetChat returns a chat's members and which of them are online.
// GET /api/chats/:chatId
func (h *APIHandlers) GetChat(c *gin.Context) {
	chatID := c.Param("chatId")

	chat, err := h.chats.GetChat(c.Request.Context(), chatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "chat not found"})
			return
		}
		h.log.Error().Err(err).Str("room", chatID).Msg("failed to get chat")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, chatToResponse(chat, h.hub.Presence()))
}

// GetMessage returns one stored message.
// GET /api/messages/:messageId
func (h *APIHandlers) GetMessage(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("messageId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid message id"})
		return
	}

	msg, err := h.messages.GetMessage(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "message not found"})
			return
		}
		h.log.Error().Err(err).Int64("message_id", id).Msg("failed to get message")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, messageToResponse(msg))
}
