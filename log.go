package authcore

import (
	"strconv"

	"go.uber.org/zap"
)

// maskSecret renders a secret value for logs without exposing it: a short
// prefix plus the total length. Codes, reset tokens, and refresh values must
// only ever reach a log line through this helper.
func maskSecret(value string) string {
	const visible = 4
	if value == "" {
		return "(empty)"
	}
	if len(value) <= visible {
		return "****"
	}
	return value[:visible] + "****(" + strconv.Itoa(len(value)) + ")"
}

func (e *Engine) log() *zap.Logger {
	if e == nil || e.logger == nil {
		return zap.NewNop()
	}
	return e.logger
}
