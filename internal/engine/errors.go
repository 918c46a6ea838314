package engine

import "strings"

// ClassifyBackendError maps a backend failure onto one of the envelope
// error codes. Matching is by substring on the lowered error text, which
// is the best the serving API offers.
func ClassifyBackendError(err error) string {
	if err == nil {
		return CodeUnknown
	}
	errStr := strings.ToLower(err.Error())

	// Transport-level failures: the server is unreachable or gave up.
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "eof") {
		return CodeConnectionFailed
	}

	// The server answered but the model is not there.
	if strings.Contains(errStr, "model not found") ||
		strings.Contains(errStr, "model_not_found") ||
		strings.Contains(errStr, "not loaded") ||
		strings.Contains(errStr, "no models loaded") {
		return CodeModelNotLoaded
	}

	return CodeUnknown
}
