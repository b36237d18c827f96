package models

import (
	"time"

	"github.com/google/uuid"
)

type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

func (s Sender) Valid() bool {
	return s == SenderUser || s == SenderAI
}

// ChatMessage is a single stored turn of the portfolio chat. An AI message
// belongs to the user message right before it; there is no explicit link.
type ChatMessage struct {
	ID        uuid.UUID `json:"id"`
	Content   string    `json:"content"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatRequest is the payload sent to POST /api/chat. The web client also
// sends a "sender" field; it is dropped on decode since the server decides
// who authored each message.
type ChatRequest struct {
	Content *string `json:"content"`
}

// ChatResponse holds both records written by one chat turn.
type ChatResponse struct {
	UserMessage *ChatMessage `json:"userMessage"`
	AIMessage   *ChatMessage `json:"aiMessage"`
}
