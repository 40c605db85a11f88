package middleware

import (
	"net/http"

	"github.com/bookinga/bookinga-backend/api/responses"
	pkgAuth "github.com/bookinga/bookinga-backend/pkg/auth"
	"github.com/bookinga/bookinga-backend/pkg/config"
	pkgerrors "github.com/bookinga/bookinga-backend/pkg/errors"
	"github.com/bookinga/bookinga-backend/pkg/logger"
)

// Auth validates the bearer token and seeds the request context with its uid. Browsers cannot set
// headers on a websocket handshake, so an access_token query parameter is accepted too.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := pkgAuth.BearerToken(r.Header.Get("Authorization"))
			if token == "" {
				token = r.URL.Query().Get("access_token")
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithUserID(r.Context(), claims.UserID)
			if logg != nil {
				ctx = logg.WithUserID(ctx, claims.UserID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
