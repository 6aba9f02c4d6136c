// Package httputil holds the small set of JSON response helpers shared
// across the HTTP layer, trimmed from the teacher's internal/httputil
// package down to OkJSON and WriteJSON (WriteJSON writes the error bodies
// of internal/middleware; OkJSON has no caller outside its test) — its JSON body
// wire format is OpenAI-shaped (see internal/apierror, internal/openai),
// not the teacher's generic ErrorResponse{Code,Message}, and its routes
// don't use chi path/query struct tags, so Parse/PathVar/QueryInt/
// QueryString/Error/Unauthorized/NotFound/InternalError were dropped.
package httputil

import (
	"encoding/json"
	"net/http"
)

// OkJSON writes a JSON response with 200 OK status.
func OkJSON(w http.ResponseWriter, v any) {
	WriteJSON(w, http.StatusOK, v)
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
