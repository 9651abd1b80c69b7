// Package httpx provides HTTP response utilities following RFC7807 problem details.
package httpx

import (
	"encoding/json"
	"net/http"
)

// ProblemDetail represents RFC7807 problem details.
type ProblemDetail struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// problemTypes gives stable identifiers for the failure classes the API
// reports. Clients switch on these rather than on the human-readable titles.
var problemTypes = map[int]string{
	http.StatusBadRequest:          "urn:clinicore:problem:validation",
	http.StatusUnauthorized:        "urn:clinicore:problem:unauthorized",
	http.StatusForbidden:           "urn:clinicore:problem:forbidden",
	http.StatusNotFound:            "urn:clinicore:problem:not-found",
	http.StatusConflict:            "urn:clinicore:problem:conflict",
	http.StatusInternalServerError: "urn:clinicore:problem:internal",
}

// Problem sends an RFC7807 problem details response.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	JSON(w, status, ProblemDetail{
		Type:   problemTypes[status],
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// DecodeJSON decodes JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(r.Body).Decode(target)
}
