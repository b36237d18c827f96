package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"portfolio-backend/internal/metrics"
	"portfolio-backend/internal/models"
)

// HistoryContextSize is how many earlier messages the context-aware call
// includes.
const HistoryContextSize = 5

// contentGenerator is satisfied by *genai.GenerativeModel.
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// HistoryLoader returns up to n earlier messages in chronological order.
type HistoryLoader func(ctx context.Context, n int) ([]models.ChatMessage, error)

type GeminiConfig struct {
	APIKey         string
	Model          string
	SystemPrompt   string
	Timeout        time.Duration
	ConcurrentReqs int
	Temperature    float32
}

// GeminiService is the only component that talks to the Gemini API. It is
// built once at startup; without an API key it still constructs and every
// call fails with ConfigurationError.
type GeminiService struct {
	client   *genai.Client
	model    contentGenerator
	timeout  time.Duration
	rateChan chan struct{} // Token bucket
}

func NewGeminiService(ctx context.Context, cfg GeminiConfig) (*GeminiService, error) {
	if cfg.APIKey == "" {
		return newGeminiService(nil, cfg), nil
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.Model)
	if cfg.SystemPrompt != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(cfg.SystemPrompt)}}
	}
	if cfg.Temperature > 0 {
		model.SetTemperature(cfg.Temperature)
	}

	s := newGeminiService(model, cfg)
	s.client = client
	return s, nil
}

func newGeminiService(model contentGenerator, cfg GeminiConfig) *GeminiService {
	concurrent := cfg.ConcurrentReqs
	if concurrent < 1 {
		concurrent = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	rateChan := make(chan struct{}, concurrent)
	for i := 0; i < concurrent; i++ {
		rateChan <- struct{}{}
	}

	return &GeminiService{
		model:    model,
		timeout:  timeout,
		rateChan: rateChan,
	}
}

// Configured reports whether an API key was supplied.
func (s *GeminiService) Configured() bool {
	return s.model != nil
}

func (s *GeminiService) Close() {
	if s.client != nil {
		s.client.Close()
	}
}

// acquireRate blocks until a rate slot is available
func (s *GeminiService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for Gemini rate slot: %w", ctx.Err())
	}
}

func (s *GeminiService) releaseRate() {
	s.rateChan <- struct{}{}
}

// Complete sends userText with the configured system instruction and returns
// the reply text. One attempt per call; failures come back as one of the
// typed errors in errors.go.
func (s *GeminiService) Complete(ctx context.Context, userText string) (string, error) {
	if s.model == nil {
		metrics.ObserveGemini(metrics.ResultConfig, 0)
		return "", &ConfigurationError{Message: "GEMINI_API_KEY environment variable is not set"}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.acquireRate(ctx); err != nil {
		mapped := classifyError(err)
		metrics.ObserveGemini(ResultLabel(mapped), 0)
		log.Printf("[Gemini] %v", mapped)
		return "", mapped
	}
	defer s.releaseRate()

	start := time.Now()
	resp, err := s.model.GenerateContent(ctx, genai.Text(userText))
	elapsed := time.Since(start)
	if err != nil {
		mapped := classifyError(err)
		metrics.ObserveGemini(ResultLabel(mapped), elapsed)
		log.Printf("[Gemini] request failed after %s: %v", elapsed.Round(time.Millisecond), mapped)
		return "", mapped
	}

	for i, cand := range candidates(resp) {
		if cand.FinishReason != genai.FinishReasonStop && cand.FinishReason != genai.FinishReasonUnspecified {
			log.Printf("[Gemini] candidate %d finished with %s", i, cand.FinishReason)
		}
	}

	text := extractText(resp)
	if strings.TrimSpace(text) == "" {
		err := &EmptyResponseError{Reason: fmt.Sprintf("%d candidates without text", len(candidates(resp)))}
		metrics.ObserveGemini(metrics.ResultEmpty, elapsed)
		log.Printf("[Gemini] %v", err)
		return "", err
	}

	metrics.ObserveGemini(metrics.ResultOK, elapsed)
	return text, nil
}

// CompleteWithHistory appends a transcript of the most recent messages to
// userText before calling Complete. The transcript is optional: if it cannot
// be built the plain message is sent instead.
func (s *GeminiService) CompleteWithHistory(ctx context.Context, userText string, load HistoryLoader) (string, error) {
	prompt, err := buildContextPrompt(ctx, userText, load)
	if err != nil {
		log.Printf("[Gemini] history context unavailable, sending plain message: %v", err)
		return s.Complete(ctx, userText)
	}
	return s.Complete(ctx, prompt)
}

func buildContextPrompt(ctx context.Context, userText string, load HistoryLoader) (string, error) {
	if load == nil {
		return "", errors.New("no history loader")
	}

	history, err := load(ctx, HistoryContextSize)
	if err != nil {
		return "", fmt.Errorf("load history: %w", err)
	}
	if len(history) > HistoryContextSize {
		history = history[len(history)-HistoryContextSize:]
	}
	if len(history) == 0 {
		return userText, nil
	}

	var b strings.Builder
	b.WriteString(userText)
	b.WriteString("\n\nسياق المحادثة السابقة:\n")
	for _, msg := range history {
		role := "المساعد"
		if msg.Sender == models.SenderUser {
			role = "المستخدم"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, msg.Content)
	}
	return b.String(), nil
}

// classifyError maps a Gemini client failure onto the error taxonomy. Status
// codes win over message text; the text checks catch errors that arrive
// without a googleapi.Error in the chain. The API key is scrubbed from the
// text before anything can log it.
func classifyError(err error) error {
	err = redact(err)

	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return &EmptyResponseError{Reason: blocked.Error()}
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden:
			return &AuthError{Err: err}
		case apiErr.Code == http.StatusTooManyRequests:
			return &QuotaError{Err: err}
		case apiErr.Code == http.StatusBadGateway || apiErr.Code == http.StatusServiceUnavailable || apiErr.Code == http.StatusGatewayTimeout:
			return &NetworkError{Err: err}
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &NetworkError{Err: err}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "api key", "api_key_invalid", "unauthenticated", "permission_denied", "permissiondenied"):
		return &AuthError{Err: err}
	case containsAny(msg, "quota", "limit", "resource_exhausted", "resourceexhausted"):
		return &QuotaError{Err: err}
	case containsAny(msg, "network", "connection"):
		return &NetworkError{Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &NetworkError{Err: err}
	}

	return &UnknownError{Err: err}
}

// ResultLabel names an error kind for metrics.
func ResultLabel(err error) string {
	switch err.(type) {
	case nil:
		return metrics.ResultOK
	case *ConfigurationError:
		return metrics.ResultConfig
	case *AuthError:
		return metrics.ResultAuth
	case *QuotaError:
		return metrics.ResultQuota
	case *NetworkError:
		return metrics.ResultNetwork
	case *EmptyResponseError:
		return metrics.ResultEmpty
	default:
		return metrics.ResultUnknown
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Helper functions

func candidates(resp *genai.GenerateContentResponse) []*genai.Candidate {
	if resp == nil {
		return nil
	}
	return resp.Candidates
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range candidates(resp) {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
