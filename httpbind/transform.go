package httpbind

import (
	"encoding/json"
	"net/http"
)

// ParseJSON parses r's Body into a *P.
func ParseJSON[P any](r *http.Request) (*P, error) {
	var out P
	if err := json.NewDecoder(r.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// IndirectJSONInput parses r's Body into a *P before passing it to a
// user-defined transformer function that produces a *I.
func IndirectJSONInput[P any, I any](t func(*P) (*I, error)) func(r *http.Request) (*I, error) {
	return func(r *http.Request) (*I, error) {
		params, err := ParseJSON[P](r)
		if err != nil {
			return nil, err
		}
		return t(params)
	}
}

// WriteJSON writes val to w as JSON.
func WriteJSON(w http.ResponseWriter, val any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(val)
}

// Zero produces a zero-valued *I for handlers that take no input.
func Zero[I any](r *http.Request) (*I, error) {
	var out I
	return &out, nil
}
