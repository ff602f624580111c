package net

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// ErrorBody is the JSON body of an error reply.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Errorf replies to an HTTP request with the specified error as JSON, also logging it.
// Server errors are logged at error level, client errors at info.
func Errorf(w http.ResponseWriter, logger *zap.Logger, code int, kind, msgfmt string, args ...interface{}) {
	msg := fmt.Sprintf(msgfmt, args...)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(ErrorBody{Error: kind, Message: msg})

	fields := []zap.Field{zap.Int("status", code), zap.String("kind", kind)}
	if code >= 500 {
		logger.Error(msg, fields...)
	} else {
		logger.Info(msg, fields...)
	}
}
