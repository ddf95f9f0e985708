package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-api-auth/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ErrorEnvelope carries an error and, for validation failures, per-field messages.
type ErrorEnvelope struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// FlowEnvelope wraps the response of a step that hands out a flow token.
type FlowEnvelope struct {
	Message    string `json:"message"`
	RegToken   string `json:"reg_token,omitempty"`
	LoginToken string `json:"login_token,omitempty"`
}

// SessionEnvelope wraps responses that complete a flow or confirm a session.
// Tokens are only present for mobile clients.
type SessionEnvelope struct {
	Message      string `json:"message"`
	UserID       string `json:"user_id"`
	Username     string `json:"username"`
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// TokenEnvelope wraps a rotated pair for mobile clients.
type TokenEnvelope struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// ProfileEnvelope is the public view of a user.
type ProfileEnvelope struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Bio      string `json:"bio"`
}

func toProfile(u *domain.User) ProfileEnvelope {
	return ProfileEnvelope{ID: u.UserID, Username: u.Username, Bio: u.Bio}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorEnvelope{Error: msg})
}

const maxBodyBytes = 1 << 20

// decodeJSON reads the request body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
