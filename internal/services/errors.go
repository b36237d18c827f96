package services

import (
	"fmt"
	"regexp"
)

// User-facing messages, one per failure kind. Internal detail stays in the
// server log.
const (
	MsgValidation    = "الرسالة مطلوبة ولا يمكن أن تكون فارغة."
	MsgTooLong       = "الرسالة طويلة جدًا. الحد الأقصى هو %d حرف."
	MsgAuth          = "مفتاح API الخاص بـ Gemini غير صحيح أو غير موجود. يرجى التحقق من إعدادات البيئة."
	MsgQuota         = "تم تجاوز حد الاستخدام المسموح لـ Gemini AI. يرجى المحاولة لاحقًا."
	MsgNetwork       = "مشكلة في الاتصال بخدمة Gemini AI. يرجى التحقق من الاتصال بالإنترنت."
	MsgEmptyResponse = "لم يتم استلام أي رد من Gemini AI. يرجى المحاولة مرة أخرى."
	MsgUnknown       = "حدث خطأ غير متوقع أثناء التواصل مع مساعد الذكاء الاصطناعي. يرجى المحاولة مرة أخرى."
	MsgStorage       = "تعذر حفظ الرسالة. يرجى المحاولة لاحقًا."
)

type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "Validation error"
}

// ConfigurationError means no Gemini credential was configured. It is
// raised before any network call.
type ConfigurationError struct{ Message string }

func (e *ConfigurationError) Error() string { return e.Message }

type AuthError struct{ Err error }

func (e *AuthError) Error() string { return fmt.Sprintf("gemini auth failed: %v", e.Err) }

func (e *AuthError) Unwrap() error { return e.Err }

type QuotaError struct{ Err error }

func (e *QuotaError) Error() string { return fmt.Sprintf("gemini quota exceeded: %v", e.Err) }

func (e *QuotaError) Unwrap() error { return e.Err }

type NetworkError struct{ Err error }

func (e *NetworkError) Error() string { return fmt.Sprintf("gemini unreachable: %v", e.Err) }

func (e *NetworkError) Unwrap() error { return e.Err }

// EmptyResponseError means the call succeeded but carried no text.
type EmptyResponseError struct{ Reason string }

func (e *EmptyResponseError) Error() string { return "gemini returned no text: " + e.Reason }

type UnknownError struct{ Err error }

func (e *UnknownError) Error() string { return fmt.Sprintf("gemini call failed: %v", e.Err) }

func (e *UnknownError) Unwrap() error { return e.Err }

// The REST transport puts the API key in the query string, and url.Error
// repeats the full URL in its text.
var apiKeyParam = regexp.MustCompile(`([?&](?:key|api_key)=)[^&"\s]+`)

// redactedError hides credentials in an error's text and keeps the original
// error in the chain for errors.Is/As.
type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }

func (e *redactedError) Unwrap() error { return e.err }

func redact(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	clean := apiKeyParam.ReplaceAllString(msg, "${1}REDACTED")
	if clean == msg {
		return err
	}
	return &redactedError{msg: clean, err: err}
}
