package client

import (
	"io"
	"time"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/sd"
	"github.com/go-kit/kit/sd/lb"
	"github.com/ichigozero/todokit/tasksvc/pkg/taskendpoint"
	"github.com/ichigozero/todokit/tasksvc/pkg/tasktransport"
)

// New returns task endpoints balanced across the instances reported by
// instancer.
func New(instancer sd.Instancer, logger log.Logger, retryMax int, retryTimeout time.Duration) taskendpoint.Set {
	endpoints := taskendpoint.Set{}
	{
		factory := factoryFor(func(s taskendpoint.Set) endpoint.Endpoint { return s.CreateTaskEndpoint }, logger)
		endpointer := sd.NewEndpointer(instancer, factory, logger)
		balancer := lb.NewRoundRobin(endpointer)
		retry := lb.Retry(retryMax, retryTimeout, balancer)
		endpoints.CreateTaskEndpoint = retry
	}
	{
		factory := factoryFor(func(s taskendpoint.Set) endpoint.Endpoint { return s.TasksEndpoint }, logger)
		endpointer := sd.NewEndpointer(instancer, factory, logger)
		balancer := lb.NewRoundRobin(endpointer)
		retry := lb.Retry(retryMax, retryTimeout, balancer)
		endpoints.TasksEndpoint = retry
	}
	{
		factory := factoryFor(func(s taskendpoint.Set) endpoint.Endpoint { return s.TaskEndpoint }, logger)
		endpointer := sd.NewEndpointer(instancer, factory, logger)
		balancer := lb.NewRoundRobin(endpointer)
		retry := lb.Retry(retryMax, retryTimeout, balancer)
		endpoints.TaskEndpoint = retry
	}
	{
		factory := factoryFor(func(s taskendpoint.Set) endpoint.Endpoint { return s.UpdateTaskEndpoint }, logger)
		endpointer := sd.NewEndpointer(instancer, factory, logger)
		balancer := lb.NewRoundRobin(endpointer)
		retry := lb.Retry(retryMax, retryTimeout, balancer)
		endpoints.UpdateTaskEndpoint = retry
	}
	{
		factory := factoryFor(func(s taskendpoint.Set) endpoint.Endpoint { return s.DeleteTaskEndpoint }, logger)
		endpointer := sd.NewEndpointer(instancer, factory, logger)
		balancer := lb.NewRoundRobin(endpointer)
		retry := lb.Retry(retryMax, retryTimeout, balancer)
		endpoints.DeleteTaskEndpoint = retry
	}
	return endpoints
}

// The remote endpoints are used as they are: the caller's identity is the
// bearer token in the context, not an authsvc.Identity.
func factoryFor(pick func(taskendpoint.Set) endpoint.Endpoint, logger log.Logger) sd.Factory {
	return func(instance string) (endpoint.Endpoint, io.Closer, error) {
		set, err := tasktransport.NewHTTPClient(instance, logger)
		if err != nil {
			return nil, nil, err
		}
		return pick(set), nil, nil
	}
}
