package csrf

import (
	"context"
	"net/http"

	"palisade/pkg/platform/httputil"
	"palisade/pkg/requestcontext"
)

type exemptKey struct{}

// Exempt marks every request on a route as exempt from CSRF validation.
// Exemptions are granted by registering this middleware on the exact routes
// that need them (login, token endpoints), never by path matching inside
// the guard. Exempt must run before Protect in the chain.
func Exempt(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), exemptKey{}, true)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func isExempt(ctx context.Context) bool {
	exempt, ok := ctx.Value(exemptKey{}).(bool)
	return ok && exempt
}

// ValidationFailedResponse is the JSON body of a CSRF denial.
type ValidationFailedResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

// Protect enforces CSRF validation on mutating requests. Safe methods and
// exempted routes pass through; everything else needs the full token pair.
// Denials are fail-closed: logged, audited, counted, answered with 403.
func (g *Guard) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.RequiresProtection(r.Method) || isExempt(r.Context()) {
			next.ServeHTTP(w, r)
			return
		}

		if err := g.Validate(r); err != nil {
			g.deny(w, r, ReasonOf(err))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (g *Guard) deny(w http.ResponseWriter, r *http.Request, reason Reason) {
	ctx := r.Context()

	g.logger.WarnContext(ctx, "csrf validation failed",
		"reason", reason,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", requestcontext.RequestID(ctx),
	)
	if g.auditor != nil {
		g.auditor.LogSecurityEvent(ctx, "csrf_failure",
			"reason", string(reason),
			"method", r.Method,
			"path", r.URL.Path,
		)
	}
	if g.metrics != nil {
		g.metrics.RecordDenial(reason)
	}

	httputil.WriteJSON(w, http.StatusForbidden, &ValidationFailedResponse{
		Error:  "csrf_validation_failed",
		Reason: string(reason),
	})
}
