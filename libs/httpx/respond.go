package httpx

import (
	"encoding/json"
	"net/http"
)

type errorBody struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// JSON writes v as a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes the standard error envelope. Code is a stable machine-readable
// reason; message is for humans and carries no internal detail.
func Error(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, errorEnvelope{Error: errorBody{Code: code, Message: message}})
}

// ErrorFields is Error with the failing field names attached, for
// validation rejections.
func ErrorFields(w http.ResponseWriter, status int, code, message string, fields []string) {
	JSON(w, status, errorEnvelope{Error: errorBody{Code: code, Message: message, Fields: fields}})
}
