package authtransport

import (
	"net/http"

	kitjwt "github.com/go-kit/kit/auth/jwt"
	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"
	"github.com/ichigozero/todokit/authsvc"
	"github.com/ichigozero/todokit/authsvc/pkg/authendpoint"
)

// NewAuthenticater returns a router middleware that resolves the bearer
// token of every request to an authsvc.Identity before the wrapped handler
// decodes anything. Requests without a usable token never reach next.
func NewAuthenticater(authenticate endpoint.Endpoint, logger log.Logger) mux.MiddlewareFunc {
	toContext := kitjwt.HTTPToContext()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := toContext(r.Context(), r)

			token, _ := ctx.Value(kitjwt.JWTTokenContextKey).(string)
			if token == "" {
				ErrorEncoder(ctx, authsvc.ErrNotAuthenticated, w)
				return
			}

			response, err := authenticate(ctx, authendpoint.AuthenticateRequest{Token: token})
			if err == nil {
				if f, ok := response.(endpoint.Failer); ok {
					err = f.Failed()
				}
			}
			if err != nil {
				logger.Log("path", r.URL.Path, "err", err)
				ErrorEncoder(ctx, err, w)
				return
			}

			id := response.(authendpoint.AuthenticateResponse).Identity
			next.ServeHTTP(w, r.WithContext(authsvc.ContextWithIdentity(ctx, id)))
		})
	}
}
