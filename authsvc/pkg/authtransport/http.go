package authtransport

import (
	"context"
	"encoding/json"
	"errors"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/ratelimit"
	"github.com/go-kit/kit/transport"
	httptransport "github.com/go-kit/kit/transport/http"
	"github.com/gorilla/mux"
	"github.com/ichigozero/todokit/authsvc"
	"github.com/ichigozero/todokit/authsvc/pkg/authendpoint"
	"github.com/ichigozero/todokit/authsvc/pkg/authservice"
	"github.com/ichigozero/todokit/usersvc"
)

func NewHTTPHandler(endpoints authendpoint.Set, logger log.Logger) http.Handler {
	options := []httptransport.ServerOption{
		httptransport.ServerErrorEncoder(ErrorEncoder),
		httptransport.ServerErrorHandler(transport.NewLogErrorHandler(logger)),
	}

	loginHandler := httptransport.NewServer(
		endpoints.LoginEndpoint,
		decodeHTTPLoginRequest,
		encodeHTTPGenericResponse,
		options...,
	)

	r := mux.NewRouter()
	r.Methods("POST").Path("/token").Handler(loginHandler)

	return r
}

func NewHTTPClient(instance string, logger log.Logger) (authservice.Service, error) {
	if !strings.HasPrefix(instance, "http") {
		instance = "http://" + instance
	}
	u, err := url.Parse(instance)
	if err != nil {
		return nil, err
	}

	var loginEndpoint endpoint.Endpoint
	{
		loginEndpoint = httptransport.NewClient(
			"POST",
			copyURL(u, "/token"),
			encodeHTTPLoginRequest,
			decodeHTTPLoginResponse,
		).Endpoint()
		loginEndpoint = authendpoint.LoggingMiddleware(log.With(logger, "method", "Login"))(loginEndpoint)
	}

	return authendpoint.Set{
		LoginEndpoint:        loginEndpoint,
		AuthenticateEndpoint: unexposed,
	}, nil
}

// Tokens are only checked in-process by the guard.
func unexposed(context.Context, interface{}) (interface{}, error) {
	return nil, errors.New("authenticate is not exposed over HTTP")
}

func copyURL(base *url.URL, path string) *url.URL {
	next := *base
	next.Path = path
	return &next
}

// ErrorEncoder writes err as a {"detail": ...} body. Unauthorized responses
// carry a Bearer challenge.
func ErrorEncoder(_ context.Context, err error, w http.ResponseWriter) {
	code := err2code(err)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if code == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(errorWrapper{Detail: detail(err, code)})
}

func err2code(err error) int {
	switch {
	case errors.Is(err, authsvc.ErrNotAuthenticated),
		errors.Is(err, authsvc.ErrInvalidToken),
		errors.Is(err, authsvc.ErrBadCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, usersvc.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, authsvc.ErrInvalidArgument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ratelimit.ErrLimited):
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

func detail(err error, code int) string {
	switch {
	case errors.Is(err, authsvc.ErrNotAuthenticated):
		return "Not authenticated"
	case errors.Is(err, authsvc.ErrInvalidToken):
		return "Invalid token"
	case errors.Is(err, authsvc.ErrBadCredentials):
		return "Incorrect username or password"
	case errors.Is(err, usersvc.ErrUserNotFound):
		return "User not found"
	case code == http.StatusInternalServerError:
		return "Internal server error"
	}
	return err.Error()
}

type errorWrapper struct {
	Detail string `json:"detail"`
}

func decodeHTTPLoginRequest(_ context.Context, r *http.Request) (interface{}, error) {
	if err := r.ParseForm(); err != nil {
		return nil, authsvc.ErrInvalidArgument
	}

	_, hasUsername := r.PostForm["username"]
	_, hasPassword := r.PostForm["password"]
	if !hasUsername || !hasPassword {
		return nil, authsvc.ErrInvalidArgument
	}

	return authendpoint.LoginRequest{
		Username: r.PostForm.Get("username"),
		Password: r.PostForm.Get("password"),
	}, nil
}

func encodeHTTPLoginRequest(_ context.Context, r *http.Request, request interface{}) error {
	req := request.(authendpoint.LoginRequest)

	form := url.Values{}
	form.Set("username", req.Username)
	form.Set("password", req.Password)

	body := form.Encode()
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.ContentLength = int64(len(body))
	r.Body = ioutil.NopCloser(strings.NewReader(body))
	return nil
}

func decodeHTTPLoginResponse(_ context.Context, r *http.Response) (interface{}, error) {
	if r.StatusCode != http.StatusOK {
		return nil, errorFromResponse(r)
	}
	var resp authendpoint.LoginResponse
	err := json.NewDecoder(r.Body).Decode(&resp)
	return resp, err
}

// errorFromResponse maps a failed response back onto the sentinel errors
// err2code produced it from.
func errorFromResponse(r *http.Response) error {
	switch r.StatusCode {
	case http.StatusUnauthorized:
		return authsvc.ErrBadCredentials
	case http.StatusTooManyRequests:
		return ratelimit.ErrLimited
	case http.StatusUnprocessableEntity:
		return authsvc.ErrInvalidArgument
	}

	var w errorWrapper
	if err := json.NewDecoder(r.Body).Decode(&w); err != nil || w.Detail == "" {
		return errors.New(r.Status)
	}
	return errors.New(w.Detail)
}

// encodeHTTPGenericResponse is a transport/http.EncodeResponseFunc that encodes
// the response as JSON to the response writer. Primarily useful in a server.
func encodeHTTPGenericResponse(ctx context.Context, w http.ResponseWriter, response interface{}) error {
	if f, ok := response.(endpoint.Failer); ok && f.Failed() != nil {
		ErrorEncoder(ctx, f.Failed(), w)
		return nil
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	return json.NewEncoder(w).Encode(response)
}
