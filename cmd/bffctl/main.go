package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/samvad-hq/crm-bff/internal/config"
	"github.com/samvad-hq/crm-bff/internal/logger"
	"github.com/samvad-hq/crm-bff/internal/session"
	"github.com/samvad-hq/crm-bff/pkg/backendapi"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const usage = `usage: bffctl [flags] <command>

commands:
  login      authenticate with --email/--password and store the session
  refresh    exchange the stored refresh token for new tokens
  logout     revoke the stored refresh token and forget the session
  clients    list clients
  deals      list deals
  tasks      list tasks
  activity   list activity entries
  stats      show overview statistics
  dashboard  show stats, in-progress deals and recent activity

flags:
`

// Exit codes per error kind so scripts can tell outages from bad credentials.
const (
	exitOK          = 0
	exitFailure     = 1
	exitUsage       = 2
	exitAuth        = 3
	exitUnavailable = 4
)

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		if err != errUsage {
			fmt.Fprintf(os.Stderr, "bffctl: %v\n", err)
		}
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage):
		return exitUsage
	case backendapi.IsAuth(err):
		return exitAuth
	case backendapi.IsUnavailable(err):
		return exitUnavailable
	default:
		return exitFailure
	}
}

type options struct {
	output   string
	token    string
	email    string
	password string
	limit    int
	search   string
	status   string
	params   []string
	dealsN   int
	activity int
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := pflag.NewFlagSet("bffctl", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	var opts options
	fs.String("base-url", "", "backend API base URL (env BACKEND_API_URL)")
	fs.Float64("timeout", 0, "request timeout in seconds (env REQUEST_TIMEOUT_SECONDS)")
	fs.String("log-level", "", "log level: debug, info, warn, error")
	fs.StringVarP(&opts.output, "output", "o", "json", "output format: json or yaml")
	fs.StringVar(&opts.token, "token", "", "access token to use instead of the stored session")
	fs.StringVar(&opts.email, "email", "", "login email (env BFF_EMAIL)")
	fs.StringVar(&opts.password, "password", "", "login password (env BFF_PASSWORD)")
	fs.IntVar(&opts.limit, "limit", 0, "limit query parameter for list commands")
	fs.StringVar(&opts.search, "search", "", "search query parameter for list commands")
	fs.StringVar(&opts.status, "status", "", "status query parameter for list commands")
	fs.StringArrayVar(&opts.params, "param", nil, "extra query parameter key=value (repeatable)")
	fs.IntVar(&opts.dealsN, "deal-limit", 0, "dashboard deal limit")
	fs.IntVar(&opts.activity, "activity-limit", 0, "dashboard activity limit")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return errUsage
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errUsage
	}
	name := fs.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", name)
		fs.Usage()
		return errUsage
	}
	if opts.output != "json" && opts.output != "yaml" {
		return fmt.Errorf("invalid --output %q (want json or yaml)", opts.output)
	}

	v := viper.New()
	for key, flag := range map[string]string{
		"backend_api_url":          "base-url",
		"request_timeout_seconds":  "timeout",
		"log_level":                "log-level",
		"bff_email":                "email",
		"bff_password":             "password",
		"dashboard_deal_limit":     "deal-limit",
		"dashboard_activity_limit": "activity-limit",
	} {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}

	cfg, err := config.LoadWith(v)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	store, err := session.NewStore(cfg.SessionType, cfg.SessionLocation(), cfg.SessionOptions())
	if err != nil {
		return fmt.Errorf("init session store: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			log.WarnObj("session store close failed", "error", cerr.Error())
		}
	}()

	env := &commandEnv{
		cfg:   cfg,
		store: store,
		opts:  opts,
		out:   output{w: stdout, format: opts.output},
		key:   sessionKey(cfg.Email),
	}
	return backendapi.Use(cfg.Backend(), func(c *backendapi.Client) error {
		env.api = c
		return cmd(ctx, env)
	}, backendapi.WithLogger(log.Named("backendapi")))
}

func sessionKey(email string) string {
	if email = strings.TrimSpace(email); email != "" {
		return email
	}
	return session.DefaultKey
}
