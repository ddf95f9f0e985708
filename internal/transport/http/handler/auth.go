package handler

import (
	"net/http"

	"github.com/go-api-auth/internal/application/auth"
	"github.com/go-api-auth/internal/domain"
	"github.com/go-api-auth/internal/transport/http/delivery"
	"github.com/go-api-auth/internal/transport/http/middleware"
)

// AuthHandler handles the registration, login and session endpoints.
type AuthHandler struct {
	svc      auth.Service
	delivery *delivery.Strategy
}

func NewAuthHandler(svc auth.Service, d *delivery.Strategy) *AuthHandler {
	return &AuthHandler{svc: svc, delivery: d}
}

func (h *AuthHandler) RegisterEmail(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterEmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	token, err := h.svc.RegisterEmail(r.Context(), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FlowEnvelope{Message: "verification code sent", RegToken: token})
}

func (h *AuthHandler) RegisterVerify(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterVerifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	token, err := h.svc.RegisterVerify(r.Context(), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FlowEnvelope{Message: "code accepted, choose a password", RegToken: token})
}

func (h *AuthHandler) RegisterPassword(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess, err := h.svc.RegisterPassword(r.Context(), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	h.deliver(w, r, http.StatusCreated, "account created", sess.User, sess.Tokens)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	token, err := h.svc.Login(r.Context(), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FlowEnvelope{Message: "verification code sent", LoginToken: token})
}

func (h *AuthHandler) LoginVerify(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginVerifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess, err := h.svc.LoginVerify(r.Context(), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	h.deliver(w, r, http.StatusOK, "logged in", sess.User, sess.Tokens)
}

// deliver writes a completed session in the shape the client expects.
func (h *AuthHandler) deliver(w http.ResponseWriter, r *http.Request, status int, msg string, u *domain.User, pair *domain.TokenPair) {
	cookies, body := h.delivery.Encode(delivery.ClientFrom(r.Context()), pair)
	for _, c := range cookies {
		http.SetCookie(w, c)
	}
	env := SessionEnvelope{Message: msg, UserID: u.UserID, Username: u.Username}
	if body != nil {
		env.AccessToken = body.AccessToken
		env.RefreshToken = body.RefreshToken
	}
	writeJSON(w, status, env)
}

type refreshBody struct {
	Refresh      string `json:"refresh"`
	RefreshToken string `json:"refresh_token"`
}

func (b refreshBody) token() string {
	if b.RefreshToken != "" {
		return b.RefreshToken
	}
	return b.Refresh
}

// Logout always reports success; web clients also get their cookies cleared.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	client := delivery.ClientFrom(r.Context())
	var body refreshBody
	if client == delivery.Mobile {
		_ = decodeJSON(w, r, &body)
	}
	h.svc.Logout(r.Context(), h.delivery.RefreshToken(r, client, body.token()))
	if client == delivery.Web {
		for _, c := range h.delivery.Clear() {
			http.SetCookie(w, c)
		}
	}
	writeJSON(w, http.StatusAccepted, MessageEnvelope{Message: "logged out"})
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	client := delivery.ClientFrom(r.Context())
	var body refreshBody
	if client == delivery.Mobile {
		// An unreadable body still lets the header carry the token.
		_ = decodeJSON(w, r, &body)
	}
	pair, err := h.svc.Refresh(r.Context(), h.delivery.RefreshToken(r, client, body.token()))
	if err != nil {
		httpError(w, r, err)
		return
	}
	cookies, tokens := h.delivery.Encode(client, pair)
	if tokens != nil {
		writeJSON(w, http.StatusOK, TokenEnvelope{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken})
		return
	}
	for _, c := range cookies {
		http.SetCookie(w, c)
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "token refreshed"})
}

func (h *AuthHandler) CheckAuth(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, SessionEnvelope{Message: "authenticated", UserID: p.UserID, Username: p.Username})
}
