package identity

import (
	"net/http"
	"strings"

	dErrors "frisk/pkg/domain-errors"
	"frisk/pkg/platform/httputil"
	"frisk/pkg/requestcontext"
)

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(h, "Bearer "); ok {
		return token
	}
	return ""
}

// Authenticate resolves the bearer token into a request identity and rejects
// requests without a valid session.
func (s *Service) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
			return
		}
		ident, err := s.Resolve(r.Context(), token)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(requestcontext.WithIdentity(r.Context(), ident)))
	})
}

// MaybeAuthenticate resolves an identity when a valid token is present but
// lets anonymous requests through. Used by the route-access endpoint, which
// must answer for logged-out visitors too.
func (s *Service) MaybeAuthenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := bearerToken(r); token != "" {
			if ident, err := s.Resolve(r.Context(), token); err == nil {
				r = r.WithContext(requestcontext.WithIdentity(r.Context(), ident))
			}
		}
		next.ServeHTTP(w, r)
	})
}
