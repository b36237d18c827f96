package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"unicode/utf8"

	"portfolio-backend/internal/metrics"
	"portfolio-backend/internal/middleware"
	"portfolio-backend/internal/models"
	"portfolio-backend/internal/services"
)

const maxChatBodyBytes = 64 << 10

type messageStore interface {
	Create(ctx context.Context, content string, sender models.Sender) (*models.ChatMessage, error)
	List(ctx context.Context) ([]models.ChatMessage, error)
	Recent(ctx context.Context, n int) ([]models.ChatMessage, error)
}

type aiGateway interface {
	Complete(ctx context.Context, userText string) (string, error)
	CompleteWithHistory(ctx context.Context, userText string, load services.HistoryLoader) (string, error)
}

type messagePublisher interface {
	PublishMessage(ctx context.Context, msg *models.ChatMessage)
}

type ChatOptions struct {
	// HistoryContext sends the latest messages along with each question.
	HistoryContext bool
	// MaxContentLength caps a message in runes; 0 means no cap.
	MaxContentLength int
}

type ChatHandler struct {
	store messageStore
	ai    aiGateway
	feed  messagePublisher
	opts  ChatOptions
}

func NewChatHandler(store messageStore, ai aiGateway, feed messagePublisher, opts ChatOptions) *ChatHandler {
	return &ChatHandler{
		store: store,
		ai:    ai,
		feed:  feed,
		opts:  opts,
	}
}

// SendMessage stores the visitor's message, asks Gemini for a reply and
// stores the reply. A failure after the first write leaves the user message
// in place without an answer; the client shows it as unanswered.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)

	resp, err := h.sendMessage(r)
	metrics.ChatRequests.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		log.Printf("[Chat] request %s failed: %v", r.Header.Get(middleware.RequestIDHeader), err)
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *ChatHandler) sendMessage(r *http.Request) (*models.ChatResponse, error) {
	ctx := r.Context()

	content, err := h.decodeContent(r)
	if err != nil {
		return nil, err
	}

	// Sender is always set here, whatever the client claimed.
	userMessage, err := h.store.Create(ctx, content, models.SenderUser)
	if err != nil {
		return nil, err
	}
	h.stored(ctx, userMessage)

	reply, err := h.reply(ctx, userMessage)
	if err != nil {
		return nil, err
	}

	aiMessage, err := h.store.Create(ctx, reply, models.SenderAI)
	if err != nil {
		return nil, err
	}
	h.stored(ctx, aiMessage)

	return &models.ChatResponse{UserMessage: userMessage, AIMessage: aiMessage}, nil
}

func (h *ChatHandler) decodeContent(r *http.Request) (string, error) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", &services.ValidationError{Fields: map[string]string{"body": "Invalid request body"}}
	}

	if req.Content == nil || strings.TrimSpace(*req.Content) == "" {
		return "", &services.ValidationError{Fields: map[string]string{"content": "Content is required"}}
	}

	content := *req.Content
	if h.opts.MaxContentLength > 0 && utf8.RuneCountInString(content) > h.opts.MaxContentLength {
		return "", &services.ValidationError{
			Message: fmt.Sprintf(services.MsgTooLong, h.opts.MaxContentLength),
			Fields:  map[string]string{"content": "Content is too long"},
		}
	}

	return content, nil
}

func (h *ChatHandler) reply(ctx context.Context, userMessage *models.ChatMessage) (string, error) {
	if !h.opts.HistoryContext {
		return h.ai.Complete(ctx, userMessage.Content)
	}

	// The message just stored is the question itself; leave it out of the
	// transcript.
	load := func(ctx context.Context, n int) ([]models.ChatMessage, error) {
		recent, err := h.store.Recent(ctx, n+1)
		if err != nil {
			return nil, err
		}
		if len(recent) > 0 && recent[len(recent)-1].ID == userMessage.ID {
			recent = recent[:len(recent)-1]
		}
		if len(recent) > n {
			recent = recent[len(recent)-n:]
		}
		return recent, nil
	}
	return h.ai.CompleteWithHistory(ctx, userMessage.Content, load)
}

func (h *ChatHandler) stored(ctx context.Context, msg *models.ChatMessage) {
	metrics.MessagesStored.WithLabelValues(string(msg.Sender)).Inc()
	if h.feed != nil {
		h.feed.PublishMessage(ctx, msg)
	}
}

// History returns every stored message, oldest first.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	messages, err := h.store.List(r.Context())
	if err != nil {
		log.Printf("[Chat] fetching history failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("STORAGE_ERROR", "Failed to fetch chat history", r))
		return
	}
	if messages == nil {
		messages = []models.ChatMessage{}
	}

	writeJSON(w, http.StatusOK, messages)
}
