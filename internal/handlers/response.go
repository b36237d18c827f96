package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"portfolio-backend/internal/middleware"
	"portfolio-backend/internal/models"
	"portfolio-backend/internal/repository"
	"portfolio-backend/internal/services"
)

// Shared helpers

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Message:   message,
		Code:      code,
		RequestID: r.Header.Get(middleware.RequestIDHeader),
	}
}

func errorRespWithFields(code, message string, fields map[string]string, r *http.Request) models.ErrorResponse {
	resp := errorResp(code, message, r)
	resp.Fields = fields
	return resp
}

// classify maps an error onto the HTTP status, the error code and the
// user-facing message sent back to the client.
func classify(err error) (int, string, string) {
	switch e := err.(type) {
	case *services.ValidationError:
		msg := services.MsgValidation
		if e.Message != "" {
			msg = e.Message
		}
		return http.StatusBadRequest, "VALIDATION_ERROR", msg
	case *services.ConfigurationError:
		return http.StatusInternalServerError, "AI_NOT_CONFIGURED", services.MsgAuth
	case *services.AuthError:
		return http.StatusInternalServerError, "AI_AUTH_ERROR", services.MsgAuth
	case *services.QuotaError:
		return http.StatusTooManyRequests, "AI_QUOTA_EXCEEDED", services.MsgQuota
	case *services.NetworkError:
		return http.StatusServiceUnavailable, "AI_UNAVAILABLE", services.MsgNetwork
	case *services.EmptyResponseError:
		return http.StatusBadGateway, "AI_EMPTY_RESPONSE", services.MsgEmptyResponse
	case *services.UnknownError:
		return http.StatusInternalServerError, "AI_ERROR", services.MsgUnknown
	case *repository.StorageError:
		return http.StatusInternalServerError, "STORAGE_ERROR", services.MsgStorage
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", services.MsgUnknown
	}
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := classify(err)
	if v, ok := err.(*services.ValidationError); ok && len(v.Fields) > 0 {
		writeJSON(w, status, errorRespWithFields(code, message, v.Fields, r))
		return
	}
	writeJSON(w, status, errorResp(code, message, r))
}

// outcome is the metrics label for a finished chat request.
func outcome(err error) string {
	if err == nil {
		return "success"
	}
	_, code, _ := classify(err)
	return strings.ToLower(code)
}
