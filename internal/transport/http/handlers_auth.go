package httptransport

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"palisade/internal/csrf"
	"palisade/internal/session"
	id "palisade/pkg/domain"
	dErrors "palisade/pkg/domain-errors"
	"palisade/pkg/platform/httputil"
	"palisade/pkg/requestcontext"
)

// LoginResponse is the body of a successful login.
type LoginResponse struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	ExpiresIn   int            `json:"expires_in"`
	SessionID   id.SessionID   `json:"session_id"`
	ExpiresAt   time.Time      `json:"expires_at"`
	CSRF        csrf.TokenData `json:"csrf"`
}

// handleLogin authenticates the credential pair, creates a managed session,
// and hands out the bearer token plus the first CSRF token.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid login request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	principal, err := h.auth.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		h.logger.WarnContext(ctx, "login failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		h.audit.LogAuth(ctx, "login_failed",
			"success", false,
			"reason", "invalid_credentials",
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials"))
		return
	}

	record, err := session.NewRecord(session.NewRecordParams{
		UserID:    principal.UserID,
		Role:      principal.Role,
		DeviceID:  requestcontext.DeviceID(ctx),
		IPAddress: requestcontext.ClientIP(ctx),
		UserAgent: requestcontext.UserAgent(ctx),
	}, requestcontext.Now(ctx), h.sessionCfg.IdleTimeout)
	if err != nil {
		h.writeInternalError(ctx, w, "failed to build session record", err)
		return
	}
	if err := h.store.Create(ctx, record); err != nil {
		h.writeInternalError(ctx, w, "failed to persist session", err)
		return
	}
	if err := h.startSession(ctx, record.ID); err != nil {
		h.writeInternalError(ctx, w, "failed to start session lifecycle", err)
		return
	}

	token, err := h.identity.GenerateAccessToken(record.UserID, record.ID, principal.Role, h.tokenTTL)
	if err != nil {
		h.writeInternalError(ctx, w, "failed to issue access token", err)
		return
	}

	csrfToken, err := h.guard.Issue(ctx, w)
	if err != nil {
		h.writeInternalError(ctx, w, "failed to issue csrf token", err)
		return
	}

	h.audit.LogAuth(ctx, "login_success",
		"user_id", record.UserID.String(),
		"session_id", record.ID.String(),
		"device_id", record.DeviceID,
		"device_fingerprint", requestcontext.DeviceFingerprint(ctx),
	)

	httputil.WriteJSON(w, http.StatusOK, &LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(h.tokenTTL.Seconds()),
		SessionID:   record.ID,
		ExpiresAt:   record.ExpiresAt,
		CSRF:        *csrfToken,
	})
}

// handleLogout revokes the caller's session and stops its manager. Revoking
// an already-revoked session is still a successful logout.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := requestcontext.SessionID(ctx)

	if err := h.terminator.SignOut(ctx, sessionID); err != nil {
		h.writeInternalError(ctx, w, "failed to sign out session", err)
		return
	}
	h.registry.Remove(sessionID)

	h.audit.LogAuth(ctx, "logout",
		"session_id", sessionID.String(),
	)

	w.WriteHeader(http.StatusNoContent)
}

// handleCSRFToken rotates the caller's CSRF token pair. Clients call it when
// their cookie is close to its lifetime.
func (h *Handler) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token, err := h.guard.Issue(ctx, w)
	if err != nil {
		h.writeInternalError(ctx, w, "failed to issue csrf token", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, token)
}

// writeInternalError logs the cause and answers with an opaque 500. Domain
// errors that should reach the client go through httputil.WriteError at the
// call site instead.
func (h *Handler) writeInternalError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	h.logger.ErrorContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err.Error(),
	)
	httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, msg))
}
