// Package utils carries the small helpers shared across the HTTP layer:
// message id generation and JSON response writing.
package utils

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

// GenID returns a fresh message identifier. Ids are uuids, so uniqueness
// does not depend on store state.
func GenID() string {
	return uuid.NewString()
}

// JSONWrite writes v as the JSON response body with the given status. A zero
// status leaves the default 200 header untouched.
func JSONWrite(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	return json.NewEncoder(w).Encode(v)
}

// JSONError writes the API's error envelope, {"error": message}.
func JSONError(w http.ResponseWriter, status int, message string) {
	_ = JSONWrite(w, status, map[string]string{"error": message})
}
