package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// TokenWriter is the registration-side slice of the endpoint store.
type TokenWriter interface {
	AddToken(ctx context.Context, userID, token string) error
	RemoveToken(ctx context.Context, userID, token string) error
}

// Registrar handles the server-side write path of push registration. The
// browser permission flow and token acquisition stay on the client; only
// the resulting token lands here.
type Registrar struct {
	tokens TokenWriter
}

func NewRegistrar(tokens TokenWriter) *Registrar {
	return &Registrar{tokens: tokens}
}

type registerRequest struct {
	UID   string `json:"uid"`
	Token string `json:"token"`
}

func decodeRegisterRequest(w http.ResponseWriter, r *http.Request) (registerRequest, bool) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"message": "invalid JSON body",
		})
		return req, false
	}
	req.UID = strings.TrimSpace(req.UID)
	req.Token = strings.TrimSpace(req.Token)
	if req.UID == "" || req.Token == "" {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"message": "uid and token are required",
		})
		return req, false
	}
	return req, true
}

// Register adds a push token to a user's endpoint set.
func (h *Registrar) Register(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	req, ok := decodeRegisterRequest(w, r)
	if !ok {
		return
	}

	if err := h.tokens.AddToken(r.Context(), req.UID, req.Token); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"message": "failed to register token",
		})
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
}

// Unregister removes a push token from a user's endpoint set. Removing an
// unknown token still succeeds.
func (h *Registrar) Unregister(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	req, ok := decodeRegisterRequest(w, r)
	if !ok {
		return
	}

	if err := h.tokens.RemoveToken(r.Context(), req.UID, req.Token); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"message": "failed to unregister token",
		})
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
}
