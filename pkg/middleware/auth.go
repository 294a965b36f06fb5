package middleware

import (
	"net/http"
	"slotkeeper/pkg/auth"
	apperrors "slotkeeper/pkg/errors"
	httputil "slotkeeper/pkg/http"
	"slotkeeper/pkg/logger"
	"slotkeeper/pkg/model"
	"strings"

	"github.com/julienschmidt/httprouter"
)

// Headers set by a trusted gateway when no JWT secret is configured.
const (
	RequesterIDHeader   = "X-Requester-ID"
	RequesterRoleHeader = "X-Requester-Role"
)

// Authenticate resolves the caller and stores it in the request context.
// With a secret, a Bearer token is required whenever an Authorization header
// is present and an invalid one is rejected; without a secret the gateway
// headers are trusted. Requests carrying neither proceed anonymously and
// handlers decide whether that is acceptable.
func Authenticate(secret string, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var requester model.Requester

			if secret != "" {
				header := r.Header.Get("Authorization")
				if header != "" {
					token, found := strings.CutPrefix(header, "Bearer ")
					if !found {
						rejectUnauthorized(w, r, log, "Authorization header must use the Bearer scheme")
						return
					}
					claims, err := auth.ParseValidate(secret, token)
					if err != nil {
						rejectUnauthorized(w, r, log, "Invalid or expired token")
						return
					}
					requester = claims.Requester()
				}
			} else {
				requester = model.Requester{
					ID:    strings.TrimSpace(r.Header.Get(RequesterIDHeader)),
					Staff: strings.EqualFold(r.Header.Get(RequesterRoleHeader), model.RoleStaff),
				}
				if requester.ID == "" {
					requester.Staff = false
				}
			}

			next.ServeHTTP(w, r.WithContext(auth.WithRequester(r.Context(), requester)))
		})
	}
}

func rejectUnauthorized(w http.ResponseWriter, r *http.Request, log *logger.Logger, reason string) {
	log.FromContext(r.Context()).Warn("Authentication failed",
		"reason", reason,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
	)
	if err := httputil.WriteError(w, apperrors.Unauthorized(reason)); err != nil {
		log.Error("failed to write error response", "handler", "Authenticate", "operation", "WriteError", "error", err)
	}
}

// RequireRequester rejects anonymous callers.
func RequireRequester(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if auth.RequesterFromContext(r.Context()).Anonymous() {
			_ = httputil.WriteError(w, apperrors.Unauthorized("Authentication required"))
			return
		}
		next(w, r, ps)
	}
}

// StaffOnly rejects callers without the staff role.
func StaffOnly(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		requester := auth.RequesterFromContext(r.Context())
		if requester.Anonymous() {
			_ = httputil.WriteError(w, apperrors.Unauthorized("Authentication required"))
			return
		}
		if !requester.Staff {
			_ = httputil.WriteError(w, apperrors.Forbidden("Staff access required"))
			return
		}
		next(w, r, ps)
	}
}
