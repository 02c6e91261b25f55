// Package response writes the API's JSON bodies. All payloads are flat
// objects; errors are always {"error": "..."} so the dashboard has one place
// to look.
package response

import (
	"encoding/json"
	"net/http"
)

type errorBody struct {
	Error string `json:"error"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// OK writes v with 200.
func OK(w http.ResponseWriter, v any) {
	JSON(w, http.StatusOK, v)
}

// Created writes v with 201.
func Created(w http.ResponseWriter, v any) {
	JSON(w, http.StatusCreated, v)
}

// Accepted writes v with 202.
func Accepted(w http.ResponseWriter, v any) {
	JSON(w, http.StatusAccepted, v)
}

// Error writes {"error": message} with the given status.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, errorBody{Error: message})
}
