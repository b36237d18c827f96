package models

// WebSocket message types
const WSTypeChatMessage = "chat_message"

type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// API Error response. Message is the only field the web client reads.
type ErrorResponse struct {
	Message   string            `json:"message"`
	Code      string            `json:"code,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}
