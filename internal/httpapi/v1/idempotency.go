package v1

import (
	"net/http"
	"strings"
)

const (
	idempotencyHeader = "Idempotency-Key"
	maxIdempotencyKey = 255
)

// idempotencyKey returns the trimmed Idempotency-Key header. ok is false when
// the header is present but unusable, in which case a 400 has been written.
func idempotencyKey(w http.ResponseWriter, r *http.Request) (key string, ok bool) {
	key = strings.TrimSpace(r.Header.Get(idempotencyHeader))
	if len(key) > maxIdempotencyKey {
		badRequest(w, "Idempotency-Key too long")
		return "", false
	}
	return key, true
}
