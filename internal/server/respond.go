package server

import (
	"encoding/json"
	"net/http"

	"github.com/FrenchMajesty/shoewall/pkg/schema"
)

type errorBody struct {
	Error      string             `json:"error"`
	Violations []schema.Violation `json:"violations,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorBody{Error: message})
}
