package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	kitjwt "github.com/go-kit/kit/auth/jwt"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/sd"
	consulsd "github.com/go-kit/kit/sd/consul"
	"github.com/hashicorp/consul/api"
	authclient "github.com/ichigozero/todokit/authsvc/client"
	"github.com/ichigozero/todokit/config"
	"github.com/ichigozero/todokit/database"
	"github.com/ichigozero/todokit/tasksvc"
	taskclient "github.com/ichigozero/todokit/tasksvc/client"
	"github.com/ichigozero/todokit/tasksvc/pkg/taskendpoint"
	usergorm "github.com/ichigozero/todokit/usersvc/db/gorm"
	"github.com/ichigozero/todokit/usersvc/pkg/userservice"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	var logger log.Logger
	{
		logger = log.NewLogfmtLogger(os.Stderr)
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
		logger = log.With(logger, "caller", log.DefaultCaller)
		logger = level(logger, os.Getenv("TODOCTL_DEBUG") != "")
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "dotenv: %v\n", err)
	}

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var (
		cmd  = os.Args[1]
		args = os.Args[2:]
		err  error
	)
	switch cmd {
	case "useradd":
		err = runUserAdd(args, logger)
	case "login":
		err = runLogin(args, logger)
	case "list":
		err = runList(args, logger)
	case "get":
		err = runGet(args, logger)
	case "add":
		err = runAdd(args, logger)
	case "update":
		err = runUpdate(args, logger)
	case "rm":
		err = runRemove(args, logger)
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "USAGE\n")
	fmt.Fprintf(os.Stderr, "  %s <command> [flags]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "COMMANDS\n")
	w := tabwriter.NewWriter(os.Stderr, 0, 2, 2, ' ', 0)
	fmt.Fprintf(w, "\tuseradd\tcreate a user directly in the database\n")
	fmt.Fprintf(w, "\tlogin\tprint an access token\n")
	fmt.Fprintf(w, "\tlist\tlist tasks\n")
	fmt.Fprintf(w, "\tget\tshow one task\n")
	fmt.Fprintf(w, "\tadd\tcreate a task\n")
	fmt.Fprintf(w, "\tupdate\treplace a task\n")
	fmt.Fprintf(w, "\trm\tdelete a task\n")
	w.Flush()
	fmt.Fprintf(os.Stderr, "\n")
}

// level drops client logs unless debug is set.
func level(logger log.Logger, debug bool) log.Logger {
	if debug {
		return logger
	}
	return log.NewNopLogger()
}

func runUserAdd(args []string, logger log.Logger) error {
	fs := flag.NewFlagSet("useradd", flag.ExitOnError)
	var (
		configFile = fs.String("config", getEnv("CONFIG_FILE", ""), "TOML configuration file")
		username   = fs.String("username", "", "login name (1-15 characters)")
		password   = fs.String("password", "", "password")
	)
	fs.Parse(args)

	cfg, err := config.Load(*configFile)
	if err != nil {
		return err
	}

	db, err := database.Open(cfg.DatabaseURL, cfg.DatabasePath, logger)
	if err != nil {
		return err
	}

	svc := userservice.New(
		usergorm.NewUserRepository(db),
		userservice.NewBcryptHasher(bcrypt.DefaultCost),
		logger,
	)

	u, err := svc.CreateUser(context.Background(), *username, *password)
	if err != nil {
		return err
	}

	fmt.Printf("created user %q with id %d\n", u.Username, u.ID)
	return nil
}

type remote struct {
	addr         string
	consulAddr   string
	token        string
	retryMax     int
	retryTimeout time.Duration
}

func remoteFlags(fs *flag.FlagSet) *remote {
	r := &remote{}
	fs.StringVar(&r.addr, "addr", getEnv("TODOSVC_ADDR", "localhost:8000"), "todosvc address")
	fs.StringVar(&r.consulAddr, "consul.addr", getEnv("CONSUL_ADDR", ""), "Consul agent address; overrides -addr")
	fs.StringVar(&r.token, "token", getEnv("TODO_TOKEN", ""), "access token")
	fs.IntVar(&r.retryMax, "retry.max", 3, "per-request retries to different instances")
	fs.DurationVar(&r.retryTimeout, "retry.timeout", 5*time.Second, "per-request timeout, including retries")
	return r
}

func (r *remote) instancer(logger log.Logger) (sd.Instancer, error) {
	if r.consulAddr == "" {
		return sd.FixedInstancer{r.addr}, nil
	}

	consulConfig := api.DefaultConfig()
	consulConfig.Address = r.consulAddr
	consulClient, err := api.NewClient(consulConfig)
	if err != nil {
		return nil, err
	}

	return consulsd.NewInstancer(consulsd.NewClient(consulClient), logger, "todosvc", nil, true), nil
}

func (r *remote) context() (context.Context, error) {
	if r.token == "" {
		return nil, errors.New("no access token: pass -token or set TODO_TOKEN")
	}
	return context.WithValue(context.Background(), kitjwt.JWTTokenContextKey, r.token), nil
}

func (r *remote) tasks(logger log.Logger) (context.Context, taskendpoint.Set, error) {
	ctx, err := r.context()
	if err != nil {
		return nil, taskendpoint.Set{}, err
	}
	instancer, err := r.instancer(logger)
	if err != nil {
		return nil, taskendpoint.Set{}, err
	}
	return ctx, taskclient.New(instancer, logger, r.retryMax, r.retryTimeout), nil
}

func runLogin(args []string, logger log.Logger) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	var (
		r        = remoteFlags(fs)
		username = fs.String("username", "", "login name")
		password = fs.String("password", "", "password")
	)
	fs.Parse(args)

	instancer, err := r.instancer(logger)
	if err != nil {
		return err
	}

	endpoints := authclient.New(instancer, logger, r.retryMax, r.retryTimeout)
	t, err := endpoints.Login(context.Background(), *username, *password)
	if err != nil {
		return err
	}

	fmt.Println(t.AccessToken)
	return nil
}

func runList(args []string, logger log.Logger) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	var (
		r          = remoteFlags(fs)
		title      = fs.String("title", "", "title substring filter")
		isComplete = fs.String("complete", "", "completion filter (true|false)")
		sortBy     = fs.String("sort", "", "sort field")
		desc       = fs.Bool("desc", false, "sort descending")
		skip       = fs.Int("skip", 0, "tasks to skip")
		limit      = fs.Int("limit", tasksvc.DefaultLimit, "maximum number of tasks")
	)
	fs.Parse(args)

	q := tasksvc.DefaultListQuery()
	if *title != "" {
		q.Title = title
	}
	if *isComplete != "" {
		c := strings.EqualFold(*isComplete, "true")
		q.IsComplete = &c
	}
	q.SortBy = tasksvc.SortField(*sortBy)
	q.Desc = *desc
	q.Skip = *skip
	q.Limit = *limit

	ctx, svc, err := r.tasks(logger)
	if err != nil {
		return err
	}

	tasks, err := svc.Tasks(ctx, tasksvc.Auth{}, q)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tTITLE\tDONE\tDUE\tPRIORITY\n")
	for _, t := range tasks {
		due := "-"
		if t.Date != nil {
			due = tasksvc.FormatDate(*t.Date)
		}
		fmt.Fprintf(w, "%d\t%s\t%t\t%s\t%s\n", t.ID, t.Title, t.IsComplete, due, t.Priority)
	}
	return w.Flush()
}

func runGet(args []string, logger log.Logger) error {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	var (
		r  = remoteFlags(fs)
		id = fs.Uint64("id", 0, "task ID")
	)
	fs.Parse(args)

	ctx, svc, err := r.tasks(logger)
	if err != nil {
		return err
	}

	t, err := svc.Task(ctx, tasksvc.Auth{}, *id)
	if err != nil {
		return err
	}
	return printJSON(t)
}

type inputFlags struct {
	title       *string
	description *string
	complete    *bool
	due         *string
	priority    *string
}

func taskInputFlags(fs *flag.FlagSet) inputFlags {
	return inputFlags{
		title:       fs.String("title", "", "task title (1-30 characters)"),
		description: fs.String("description", "", "task description (up to 50 characters)"),
		complete:    fs.Bool("complete", false, "mark the task complete"),
		due:         fs.String("due", "", "due date in ISO 8601; empty means tomorrow, \"none\" clears it"),
		priority:    fs.String("priority", "Low", "High, Medium, Low or 1-3"),
	}
}

func (f inputFlags) input() (tasksvc.TaskInput, error) {
	in := tasksvc.TaskInput{
		Title:      *f.title,
		IsComplete: *f.complete,
	}
	if *f.description != "" {
		in.Description = f.description
	}

	switch *f.due {
	case "":
		d := time.Now().Add(24 * time.Hour)
		in.Date = &d
	case "none":
	default:
		d, err := tasksvc.ParseDate(*f.due)
		if err != nil {
			return tasksvc.TaskInput{}, err
		}
		in.Date = &d
	}

	p, ok := tasksvc.PriorityFromName(*f.priority)
	if !ok {
		switch *f.priority {
		case "1", "2", "3":
			p = tasksvc.Priority((*f.priority)[0] - '0')
		default:
			return tasksvc.TaskInput{}, fmt.Errorf("unknown priority %q", *f.priority)
		}
	}
	in.Priority = p

	return in, nil
}

func runAdd(args []string, logger log.Logger) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	var (
		r     = remoteFlags(fs)
		input = taskInputFlags(fs)
	)
	fs.Parse(args)

	in, err := input.input()
	if err != nil {
		return err
	}

	ctx, svc, err := r.tasks(logger)
	if err != nil {
		return err
	}

	t, err := svc.CreateTask(ctx, tasksvc.Auth{}, in)
	if err != nil {
		return err
	}
	return printJSON(t)
}

func runUpdate(args []string, logger log.Logger) error {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	var (
		r     = remoteFlags(fs)
		id    = fs.Uint64("id", 0, "task ID")
		input = taskInputFlags(fs)
	)
	fs.Parse(args)

	in, err := input.input()
	if err != nil {
		return err
	}

	ctx, svc, err := r.tasks(logger)
	if err != nil {
		return err
	}

	t, err := svc.UpdateTask(ctx, tasksvc.Auth{}, *id, in)
	if err != nil {
		return err
	}
	return printJSON(t)
}

func runRemove(args []string, logger log.Logger) error {
	fs := flag.NewFlagSet("rm", flag.ExitOnError)
	var (
		r  = remoteFlags(fs)
		id = fs.Uint64("id", 0, "task ID")
	)
	fs.Parse(args)

	ctx, svc, err := r.tasks(logger)
	if err != nil {
		return err
	}

	return svc.DeleteTask(ctx, tasksvc.Auth{}, *id)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func getEnv(key, fallback string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		value = fallback
	}
	return value
}
