package main

import (
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/go-kit/kit/log"
	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	consulsd "github.com/go-kit/kit/sd/consul"
	"github.com/gorilla/mux"
	"github.com/hashicorp/consul/api"
	"github.com/ichigozero/todokit/authsvc/pkg/authendpoint"
	"github.com/ichigozero/todokit/authsvc/pkg/authservice"
	"github.com/ichigozero/todokit/authsvc/pkg/authtransport"
	"github.com/ichigozero/todokit/config"
	"github.com/ichigozero/todokit/database"
	taskgorm "github.com/ichigozero/todokit/tasksvc/db/gorm"
	"github.com/ichigozero/todokit/tasksvc/pkg/taskendpoint"
	"github.com/ichigozero/todokit/tasksvc/pkg/taskschema"
	"github.com/ichigozero/todokit/tasksvc/pkg/taskservice"
	"github.com/ichigozero/todokit/tasksvc/pkg/tasktransport"
	usergorm "github.com/ichigozero/todokit/usersvc/db/gorm"
	"github.com/ichigozero/todokit/usersvc/pkg/userendpoint"
	"github.com/ichigozero/todokit/usersvc/pkg/userservice"
	"github.com/joho/godotenv"
	"github.com/oklog/oklog/pkg/group"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"github.com/twinj/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

func main() {
	var logger log.Logger
	{
		logger = log.NewLogfmtLogger(os.Stderr)
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
		logger = log.With(logger, "caller", log.DefaultCaller)
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Log("during", "dotenv", "err", err)
	}

	fs := flag.NewFlagSet("todosvc", flag.ExitOnError)
	var (
		configFile = fs.String(
			"config",
			getEnv("CONFIG_FILE", ""),
			"TOML configuration file",
		)
		httpAddr = fs.String(
			"http.addr",
			"",
			"HTTP listen address (overrides HTTP_ADDR)",
		)
		databaseURL = fs.String(
			"database.url",
			"",
			"Postgres URL (overrides DATABASE_URL)",
		)
		consulAddr = fs.String(
			"consul.addr",
			"",
			"Consul agent address (overrides CONSUL_ADDR)",
		)
	)

	fs.Usage = usageFor(fs, os.Args[0]+" [flags]")
	fs.Parse(os.Args[1:])

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Log("during", "config", "err", err)
		os.Exit(1)
	}
	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}
	if *databaseURL != "" {
		cfg.DatabaseURL = *databaseURL
	}
	if *consulAddr != "" {
		cfg.ConsulAddr = *consulAddr
	}

	db, err := database.Open(cfg.DatabaseURL, cfg.DatabasePath, logger)
	if err != nil {
		logger.Log("during", "database", "err", err)
		os.Exit(1)
	}

	fieldKeys := []string{"method"}

	var userService userservice.Service
	{
		userService = userservice.New(
			usergorm.NewUserRepository(db),
			userservice.NewBcryptHasher(bcrypt.DefaultCost),
			log.With(logger, "service", "user"),
		)
		userService = userservice.InstrumentingMiddleware(
			kitprometheus.NewCounterFrom(stdprometheus.CounterOpts{
				Namespace: "api",
				Subsystem: "user_service",
				Name:      "request_count",
				Help:      "Number of requests received.",
			}, fieldKeys),
			kitprometheus.NewSummaryFrom(stdprometheus.SummaryOpts{
				Namespace: "api",
				Subsystem: "user_service",
				Name:      "request_latency_microseconds",
				Help:      "Total duration of requests in microseconds.",
			}, fieldKeys),
		)(userService)
	}
	userEndpoints := userendpoint.New(userService, logger)

	tokenizer, err := authservice.NewTokenizer(cfg.SecretKey, cfg.Algorithm)
	if err != nil {
		logger.Log("during", "tokenizer", "err", err)
		os.Exit(1)
	}

	var authService authservice.Service
	{
		authService = authservice.New(tokenizer, cfg.AccessTokenTTL(), log.With(logger, "service", "auth"))
		authService = authservice.ProxingMiddleware(userEndpoints.UserIDEndpoint, userEndpoints.UserEndpoint)(authService)
		authService = authservice.InstrumentingMiddleware(
			kitprometheus.NewCounterFrom(stdprometheus.CounterOpts{
				Namespace: "api",
				Subsystem: "auth_service",
				Name:      "request_count",
				Help:      "Number of requests received.",
			}, fieldKeys),
			kitprometheus.NewSummaryFrom(stdprometheus.SummaryOpts{
				Namespace: "api",
				Subsystem: "auth_service",
				Name:      "request_latency_microseconds",
				Help:      "Total duration of requests in microseconds.",
			}, fieldKeys),
		)(authService)
	}
	authEndpoints := authendpoint.New(
		authService,
		rate.NewLimiter(rate.Limit(cfg.LoginRate), cfg.LoginBurst),
		logger,
	)

	var taskService taskservice.Service
	{
		taskService = taskservice.New(taskgorm.NewTaskRepository(db), log.With(logger, "service", "task"))
		taskService = taskservice.InstrumentingMiddleware(
			kitprometheus.NewCounterFrom(stdprometheus.CounterOpts{
				Namespace: "api",
				Subsystem: "task_service",
				Name:      "request_count",
				Help:      "Number of requests received.",
			}, fieldKeys),
			kitprometheus.NewSummaryFrom(stdprometheus.SummaryOpts{
				Namespace: "api",
				Subsystem: "task_service",
				Name:      "request_latency_microseconds",
				Help:      "Total duration of requests in microseconds.",
			}, fieldKeys),
		)(taskService)
	}
	taskEndpoints := taskendpoint.New(taskService, logger)

	validator, err := taskschema.New()
	if err != nil {
		logger.Log("during", "taskschema", "err", err)
		os.Exit(1)
	}

	r := mux.NewRouter()
	{
		authenticate := authtransport.NewAuthenticater(authEndpoints.AuthenticateEndpoint, log.With(logger, "component", "guard"))
		r.Path("/token").Handler(authtransport.NewHTTPHandler(authEndpoints, logger))
		r.PathPrefix("/").Handler(tasktransport.NewHTTPHandler(taskEndpoints, validator, authenticate, logger))
	}

	if cfg.ConsulAddr != "" {
		registrar, err := register(cfg.ConsulAddr, cfg.HTTPAddr, logger)
		if err != nil {
			logger.Log("during", "consul", "err", err)
			os.Exit(1)
		}
		registrar.Register()
		defer registrar.Deregister()
	}

	var g group.Group
	{
		httpListener, err := net.Listen("tcp", cfg.HTTPAddr)
		if err != nil {
			logger.Log("transport", "HTTP", "during", "Listen", "err", err)
			os.Exit(1)
		}
		g.Add(func() error {
			logger.Log("transport", "HTTP", "addr", cfg.HTTPAddr)
			return http.Serve(httpListener, r)
		}, func(error) {
			httpListener.Close()
		})
	}
	{
		// This function just sits and waits for ctrl-C.
		cancelInterrupt := make(chan struct{})
		g.Add(func() error {
			c := make(chan os.Signal, 1)
			signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
			select {
			case sig := <-c:
				return fmt.Errorf("received signal %s", sig)
			case <-cancelInterrupt:
				return nil
			}
		}, func(error) {
			close(cancelInterrupt)
		})
	}
	logger.Log("exit", g.Run())
}

func register(consulAddr, httpAddr string, logger log.Logger) (*consulsd.Registrar, error) {
	consulConfig := api.DefaultConfig()
	consulConfig.Address = consulAddr

	consulClient, err := api.NewClient(consulConfig)
	if err != nil {
		return nil, err
	}

	host, port, err := net.SplitHostPort(httpAddr)
	if err != nil {
		return nil, err
	}
	if host == "" {
		host = "localhost"
	}

	p, _ := strconv.Atoi(port)
	asr := &api.AgentServiceRegistration{
		ID:      uuid.NewV4().String(),
		Name:    "todosvc",
		Address: host,
		Port:    p,
	}

	return consulsd.NewRegistrar(consulsd.NewClient(consulClient), asr, logger), nil
}

func usageFor(fs *flag.FlagSet, short string) func() {
	return func() {
		fmt.Fprintf(os.Stderr, "USAGE\n")
		fmt.Fprintf(os.Stderr, "  %s\n", short)
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "FLAGS\n")
		w := tabwriter.NewWriter(os.Stderr, 0, 2, 2, ' ', 0)
		fs.VisitAll(func(f *flag.Flag) {
			fmt.Fprintf(w, "\t-%s %s\t%s\n", f.Name, f.DefValue, f.Usage)
		})
		w.Flush()
		fmt.Fprintf(os.Stderr, "\n")
	}
}

func getEnv(key, fallback string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		value = fallback
	}
	return value
}
