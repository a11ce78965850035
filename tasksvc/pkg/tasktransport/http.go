package tasktransport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	kitjwt "github.com/go-kit/kit/auth/jwt"
	"github.com/go-kit/kit/circuitbreaker"
	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/ratelimit"
	"github.com/go-kit/kit/transport"
	httptransport "github.com/go-kit/kit/transport/http"
	"github.com/gorilla/mux"
	"github.com/ichigozero/todokit/authsvc"
	"github.com/ichigozero/todokit/tasksvc"
	"github.com/ichigozero/todokit/tasksvc/pkg/taskendpoint"
	"github.com/ichigozero/todokit/tasksvc/pkg/taskschema"
	"github.com/ichigozero/todokit/usersvc"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// NewHTTPHandler mounts the task routes behind authenticate, which must
// resolve the caller before any request body is read.
func NewHTTPHandler(endpoints taskendpoint.Set, v *taskschema.Validator, authenticate mux.MiddlewareFunc, logger log.Logger) http.Handler {
	options := []httptransport.ServerOption{
		httptransport.ServerErrorEncoder(errorEncoder),
		httptransport.ServerErrorHandler(transport.NewLogErrorHandler(logger)),
	}

	createTaskHandler := httptransport.NewServer(
		endpoints.CreateTaskEndpoint,
		decodeHTTPCreateTaskRequest(v),
		encodeHTTPGenericResponse,
		options...,
	)

	tasksHandler := httptransport.NewServer(
		endpoints.TasksEndpoint,
		decodeHTTPTasksRequest,
		encodeHTTPGenericResponse,
		options...,
	)

	taskHandler := httptransport.NewServer(
		endpoints.TaskEndpoint,
		decodeHTTPTaskRequest,
		encodeHTTPGenericResponse,
		options...,
	)

	updateTaskHandler := httptransport.NewServer(
		endpoints.UpdateTaskEndpoint,
		decodeHTTPUpdateTaskRequest(v),
		encodeHTTPGenericResponse,
		options...,
	)

	deleteTaskHandler := httptransport.NewServer(
		endpoints.DeleteTaskEndpoint,
		decodeHTTPDeleteTaskRequest,
		encodeHTTPGenericResponse,
		options...,
	)

	r := mux.NewRouter()

	r.Methods("POST").Path("/tasks").Handler(authenticate(createTaskHandler))
	r.Methods("GET").Path("/tasks").Handler(authenticate(tasksHandler))
	r.Methods("GET").Path("/tasks/{task_id:[0-9]+}").Handler(authenticate(taskHandler))
	r.Methods("PUT").Path("/tasks/{task_id:[0-9]+}").Handler(authenticate(updateTaskHandler))
	r.Methods("DELETE").Path("/tasks/{task_id:[0-9]+}").Handler(authenticate(deleteTaskHandler))
	r.Methods("GET").Path("/metrics").Handler(promhttp.Handler())

	return r
}

// NewHTTPClient returns task endpoints backed by the server at instance.
// The bearer token is taken from kitjwt.JWTTokenContextKey in the context
// passed to each call.
func NewHTTPClient(instance string, logger log.Logger) (taskendpoint.Set, error) {
	if !strings.HasPrefix(instance, "http") {
		instance = "http://" + instance
	}
	u, err := url.Parse(instance)
	if err != nil {
		return taskendpoint.Set{}, err
	}

	limiter := ratelimit.NewErroringLimiter(rate.NewLimiter(rate.Every(time.Second), 100))

	options := []httptransport.ClientOption{
		httptransport.ClientBefore(kitjwt.ContextToHTTP()),
	}

	wrap := func(name string, e endpoint.Endpoint) endpoint.Endpoint {
		e = limiter(e)
		e = circuitbreaker.Gobreaker(gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    name,
			Timeout: 30 * time.Second,
		}))(e)
		return taskendpoint.LoggingMiddleware(log.With(logger, "method", name))(e)
	}

	var createTaskEndpoint endpoint.Endpoint
	{
		createTaskEndpoint = httptransport.NewClient(
			"POST",
			copyURL(u, "/tasks"),
			encodeHTTPCreateTaskRequest,
			decodeHTTPCreateTaskResponse,
			options...,
		).Endpoint()
		createTaskEndpoint = wrap("CreateTask", createTaskEndpoint)
	}

	var tasksEndpoint endpoint.Endpoint
	{
		tasksEndpoint = httptransport.NewClient(
			"GET",
			copyURL(u, "/tasks"),
			encodeHTTPTasksRequest,
			decodeHTTPTasksResponse,
			options...,
		).Endpoint()
		tasksEndpoint = wrap("Tasks", tasksEndpoint)
	}

	var taskEndpoint endpoint.Endpoint
	{
		taskEndpoint = httptransport.NewClient(
			"GET",
			copyURL(u, "/tasks"),
			encodeHTTPTaskRequest,
			decodeHTTPTaskResponse,
			options...,
		).Endpoint()
		taskEndpoint = wrap("Task", taskEndpoint)
	}

	var updateTaskEndpoint endpoint.Endpoint
	{
		updateTaskEndpoint = httptransport.NewClient(
			"PUT",
			copyURL(u, "/tasks"),
			encodeHTTPUpdateTaskRequest,
			decodeHTTPUpdateTaskResponse,
			options...,
		).Endpoint()
		updateTaskEndpoint = wrap("UpdateTask", updateTaskEndpoint)
	}

	var deleteTaskEndpoint endpoint.Endpoint
	{
		deleteTaskEndpoint = httptransport.NewClient(
			"DELETE",
			copyURL(u, "/tasks"),
			encodeHTTPDeleteTaskRequest,
			decodeHTTPDeleteTaskResponse,
			options...,
		).Endpoint()
		deleteTaskEndpoint = wrap("DeleteTask", deleteTaskEndpoint)
	}

	return taskendpoint.Set{
		CreateTaskEndpoint: createTaskEndpoint,
		TasksEndpoint:      tasksEndpoint,
		TaskEndpoint:       taskEndpoint,
		UpdateTaskEndpoint: updateTaskEndpoint,
		DeleteTaskEndpoint: deleteTaskEndpoint,
	}, nil
}

func copyURL(base *url.URL, path string) *url.URL {
	next := *base
	next.Path = path
	return &next
}

func errorEncoder(_ context.Context, err error, w http.ResponseWriter) {
	code := err2code(err)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if code == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	w.WriteHeader(code)

	body := errorWrapper{Detail: err.Error()}
	var verr *tasksvc.ValidationError
	switch {
	case errors.As(err, &verr):
		body.Errors = verr.Fields
	case errors.Is(err, tasksvc.ErrTaskNotFound):
		body.Detail = "Task not found"
	case errors.Is(err, usersvc.ErrUserNotFound):
		body.Detail = "User not found"
	case code == http.StatusInternalServerError:
		body.Detail = "Internal server error"
	}
	json.NewEncoder(w).Encode(body)
}

type errorWrapper struct {
	Detail string               `json:"detail"`
	Errors []tasksvc.FieldError `json:"errors,omitempty"`
}

func err2code(err error) int {
	switch {
	case errors.Is(err, authsvc.ErrNotAuthenticated), errors.Is(err, authsvc.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, tasksvc.ErrTaskNotFound), errors.Is(err, usersvc.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, tasksvc.ErrInvalidSortField), errors.Is(err, tasksvc.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, tasksvc.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrBodyTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ratelimit.ErrLimited):
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

func decodeHTTPCreateTaskRequest(v *taskschema.Validator) httptransport.DecodeRequestFunc {
	return func(_ context.Context, r *http.Request) (interface{}, error) {
		in, err := decodeInput(v, r)
		if err != nil {
			return nil, err
		}
		return taskendpoint.CreateTaskRequest{Input: in}, nil
	}
}

func decodeHTTPUpdateTaskRequest(v *taskschema.Validator) httptransport.DecodeRequestFunc {
	return func(_ context.Context, r *http.Request) (interface{}, error) {
		taskID, err := taskIDFrom(r)
		if err != nil {
			return nil, err
		}

		in, err := decodeInput(v, r)
		if err != nil {
			return nil, err
		}
		return taskendpoint.UpdateTaskRequest{TaskID: taskID, Input: in}, nil
	}
}

// MaxBodySize bounds task payloads.
const MaxBodySize = 4 << 10

func decodeInput(v *taskschema.Validator, r *http.Request) (tasksvc.TaskInput, error) {
	body, err := ioutil.ReadAll(io.LimitReader(r.Body, MaxBodySize+1))
	if err != nil {
		return tasksvc.TaskInput{}, err
	}
	if len(body) > MaxBodySize {
		return tasksvc.TaskInput{}, ErrBodyTooLarge
	}
	return v.Decode(body)
}

func decodeHTTPTasksRequest(_ context.Context, r *http.Request) (interface{}, error) {
	values := r.URL.Query()
	q := tasksvc.DefaultListQuery()

	if title := values.Get("title"); title != "" {
		q.Title = &title
	}

	if s := values.Get("is_complete"); s != "" {
		c, err := parseBool(s)
		if err != nil {
			return nil, err
		}
		q.IsComplete = &c
	}

	sortBy, err := tasksvc.ParseSortField(values.Get("sort_by"))
	if err != nil {
		return nil, err
	}
	q.SortBy = sortBy
	q.Desc = strings.EqualFold(values.Get("order"), "desc")

	if q.Skip, err = intParam(values, "skip", 0); err != nil {
		return nil, err
	}
	if q.Limit, err = intParam(values, "limit", tasksvc.DefaultLimit); err != nil {
		return nil, err
	}

	return taskendpoint.TasksRequest{Query: q}, nil
}

func decodeHTTPTaskRequest(_ context.Context, r *http.Request) (interface{}, error) {
	taskID, err := taskIDFrom(r)
	if err != nil {
		return nil, err
	}
	return taskendpoint.TaskRequest{TaskID: taskID}, nil
}

func decodeHTTPDeleteTaskRequest(_ context.Context, r *http.Request) (interface{}, error) {
	taskID, err := taskIDFrom(r)
	if err != nil {
		return nil, err
	}
	return taskendpoint.DeleteTaskRequest{TaskID: taskID}, nil
}

func taskIDFrom(r *http.Request) (uint64, error) {
	id, ok := mux.Vars(r)["task_id"]
	if !ok {
		return 0, ErrBadRouting
	}
	// Ids past the signed 64-bit range cannot exist in storage.
	taskID, err := strconv.ParseUint(id, 10, 63)
	if err != nil {
		return 0, tasksvc.ErrTaskNotFound
	}
	return taskID, nil
}

func intParam(values url.Values, key string, def int) (int, error) {
	s := values.Get(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", tasksvc.ErrInvalidArgument, key)
	}
	return n, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	}
	return false, fmt.Errorf("%w: is_complete must be a boolean", tasksvc.ErrInvalidArgument)
}

// ErrBodyTooLarge is returned for payloads over MaxBodySize.
var ErrBodyTooLarge = errors.New("request body too large")

// ErrBadRouting is returned when an expected path variable is missing.
// It always indicates programmer error.
var ErrBadRouting = errors.New("inconsistent mapping between route and handler (programmer error)")

func encodeHTTPGenericResponse(ctx context.Context, w http.ResponseWriter, response interface{}) error {
	if f, ok := response.(endpoint.Failer); ok && f.Failed() != nil {
		errorEncoder(ctx, f.Failed(), w)
		return nil
	}
	return httptransport.EncodeJSONResponse(ctx, w, response)
}

func encodeHTTPCreateTaskRequest(_ context.Context, r *http.Request, request interface{}) error {
	req := request.(taskendpoint.CreateTaskRequest)
	return encodeJSONBody(r, req.Input)
}

func encodeHTTPTasksRequest(_ context.Context, r *http.Request, request interface{}) error {
	q := request.(taskendpoint.TasksRequest).Query

	values := url.Values{}
	if q.Title != nil {
		values.Set("title", *q.Title)
	}
	if q.IsComplete != nil {
		values.Set("is_complete", strconv.FormatBool(*q.IsComplete))
	}
	if q.SortBy != "" {
		values.Set("sort_by", string(q.SortBy))
	}
	if q.Desc {
		values.Set("order", "desc")
	}
	values.Set("skip", strconv.Itoa(q.Skip))
	values.Set("limit", strconv.Itoa(q.Limit))

	r.URL.RawQuery = values.Encode()
	return nil
}

func encodeHTTPTaskRequest(_ context.Context, r *http.Request, request interface{}) error {
	req := request.(taskendpoint.TaskRequest)
	r.URL.Path = taskPath(req.TaskID)
	return nil
}

func encodeHTTPUpdateTaskRequest(_ context.Context, r *http.Request, request interface{}) error {
	req := request.(taskendpoint.UpdateTaskRequest)
	r.URL.Path = taskPath(req.TaskID)
	return encodeJSONBody(r, req.Input)
}

func encodeHTTPDeleteTaskRequest(_ context.Context, r *http.Request, request interface{}) error {
	req := request.(taskendpoint.DeleteTaskRequest)
	r.URL.Path = taskPath(req.TaskID)
	return nil
}

func taskPath(taskID uint64) string {
	return "/tasks/" + strconv.FormatUint(taskID, 10)
}

func encodeJSONBody(r *http.Request, v interface{}) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		return err
	}
	r.Header.Set("Content-Type", "application/json; charset=utf-8")
	r.ContentLength = int64(buf.Len())
	r.Body = ioutil.NopCloser(&buf)
	return nil
}

func decodeHTTPCreateTaskResponse(_ context.Context, r *http.Response) (interface{}, error) {
	if err := failure(r); err != nil {
		return taskendpoint.CreateTaskResponse{Err: err}, transportErr(r, err)
	}
	var resp taskendpoint.CreateTaskResponse
	err := json.NewDecoder(r.Body).Decode(&resp.Task)
	return resp, err
}

func decodeHTTPTasksResponse(_ context.Context, r *http.Response) (interface{}, error) {
	if err := failure(r); err != nil {
		return taskendpoint.TasksResponse{Err: err}, transportErr(r, err)
	}
	var resp taskendpoint.TasksResponse
	err := json.NewDecoder(r.Body).Decode(&resp.Tasks)
	return resp, err
}

func decodeHTTPTaskResponse(_ context.Context, r *http.Response) (interface{}, error) {
	if err := failure(r); err != nil {
		return taskendpoint.TaskResponse{Err: err}, transportErr(r, err)
	}
	var resp taskendpoint.TaskResponse
	err := json.NewDecoder(r.Body).Decode(&resp.Task)
	return resp, err
}

func decodeHTTPUpdateTaskResponse(_ context.Context, r *http.Response) (interface{}, error) {
	if err := failure(r); err != nil {
		return taskendpoint.UpdateTaskResponse{Err: err}, transportErr(r, err)
	}
	var resp taskendpoint.UpdateTaskResponse
	err := json.NewDecoder(r.Body).Decode(&resp.Task)
	return resp, err
}

func decodeHTTPDeleteTaskResponse(_ context.Context, r *http.Response) (interface{}, error) {
	if err := failure(r); err != nil {
		return taskendpoint.DeleteTaskResponse{Err: err}, transportErr(r, err)
	}
	return taskendpoint.DeleteTaskResponse{}, nil
}

// transportErr keeps client errors inside the response so that only server
// failures trip the circuit breaker.
func transportErr(r *http.Response, err error) error {
	if r.StatusCode >= http.StatusInternalServerError {
		return err
	}
	return nil
}

// failure maps an unsuccessful response back onto the errors err2code
// produced it from.
func failure(r *http.Response) error {
	if r.StatusCode < http.StatusBadRequest {
		return nil
	}

	var w errorWrapper
	json.NewDecoder(r.Body).Decode(&w)

	switch r.StatusCode {
	case http.StatusUnauthorized:
		if w.Detail == "Invalid token" {
			return authsvc.ErrInvalidToken
		}
		return authsvc.ErrNotAuthenticated
	case http.StatusNotFound:
		if w.Detail == "User not found" {
			return usersvc.ErrUserNotFound
		}
		return tasksvc.ErrTaskNotFound
	case http.StatusBadRequest:
		if strings.HasPrefix(w.Detail, tasksvc.ErrInvalidSortField.Error()) {
			return fmt.Errorf("%w%s", tasksvc.ErrInvalidSortField, strings.TrimPrefix(w.Detail, tasksvc.ErrInvalidSortField.Error()))
		}
		return tasksvc.ErrInvalidArgument
	case http.StatusUnprocessableEntity:
		verr := &tasksvc.ValidationError{Fields: w.Errors}
		if len(verr.Fields) == 0 {
			verr.Add("body", w.Detail)
		}
		return verr
	case http.StatusRequestEntityTooLarge:
		return ErrBodyTooLarge
	case http.StatusTooManyRequests:
		return ratelimit.ErrLimited
	}

	if w.Detail == "" {
		return errors.New(r.Status)
	}
	return fmt.Errorf("%s: %s", r.Status, w.Detail)
}
