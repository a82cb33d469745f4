package server

import (
	"encoding/json"
	"net/http"
)

// Error codes carried in failure envelopes so clients can branch without
// parsing human-readable text.
const (
	CodeMalformedInput   = "malformed_input"
	CodeValidation       = "validation_failure"
	CodeNotFound         = "not_found"
	CodeIO               = "io_failure"
	CodeInternal         = "internal_error"
	CodeMethodNotAllowed = "method_not_allowed"
	CodeRateLimited      = "rate_limited"
)

// Envelope is the JSON shape of every API response:
// {"success":true,"data":...}, {"success":true,"message":"..."} or
// {"success":false,"error":"...","code":"..."}.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty" example:"backup not found"`
	Code    string `json:"code,omitempty" example:"not_found"`
}

// WriteEnvelope writes env with the given status code.
func WriteEnvelope(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

// WriteData writes a 200 success envelope carrying data.
func WriteData(w http.ResponseWriter, data any) {
	WriteEnvelope(w, http.StatusOK, Envelope{Success: true, Data: data})
}

// WriteMessage writes a 200 success envelope carrying a message.
func WriteMessage(w http.ResponseWriter, message string) {
	WriteEnvelope(w, http.StatusOK, Envelope{Success: true, Message: message})
}

// WriteFailure writes a failure envelope.
func WriteFailure(w http.ResponseWriter, status int, code, detail string) {
	WriteEnvelope(w, status, Envelope{Success: false, Error: detail, Code: code})
}

// NotFound writes a 404 failure envelope.
func NotFound(w http.ResponseWriter, detail string) {
	WriteFailure(w, http.StatusNotFound, CodeNotFound, detail)
}

// BadRequest writes a 400 failure envelope.
func BadRequest(w http.ResponseWriter, detail string) {
	WriteFailure(w, http.StatusBadRequest, CodeMalformedInput, detail)
}

// InternalError writes a 500 failure envelope.
func InternalError(w http.ResponseWriter, detail string) {
	WriteFailure(w, http.StatusInternalServerError, CodeInternal, detail)
}

// MethodNotAllowed writes a 405 failure envelope.
func MethodNotAllowed(w http.ResponseWriter) {
	WriteFailure(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "unsupported request method")
}

// RateLimited writes a 429 failure envelope.
func RateLimited(w http.ResponseWriter, detail string) {
	WriteFailure(w, http.StatusTooManyRequests, CodeRateLimited, detail)
}
