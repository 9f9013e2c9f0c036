package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/devbook-dev/devbook/internal/app"
	"github.com/devbook-dev/devbook/internal/client"
	"github.com/devbook-dev/devbook/internal/config"
	"github.com/devbook-dev/devbook/internal/mock"
	"github.com/devbook-dev/devbook/internal/session"
)

type options struct {
	configPath string
	endpoint   string
	token      string
	env        string
	port       int
	debug      bool
	useMock    bool
	logFile    string
	logLevel   string
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var opts options
	flagSet := pflag.NewFlagSet("devbook", pflag.ContinueOnError)
	flagSet.StringVar(&opts.configPath, "config", config.DefaultPath(), "path to the YAML config file")
	flagSet.StringVar(&opts.endpoint, "endpoint", "", "environment API endpoint (ws://, wss://, http:// or https://)")
	flagSet.StringVar(&opts.token, "token", "", "API token")
	flagSet.StringVarP(&opts.env, "env", "e", "", "environment to start in")
	flagSet.IntVarP(&opts.port, "port", "p", 0, "target port to resolve a URL for (0 for none)")
	flagSet.BoolVarP(&opts.debug, "debug", "d", false, "start sessions in debug mode")
	flagSet.BoolVar(&opts.useMock, "mock", false, "use a scripted in-process environment instead of the API")
	flagSet.StringVar(&opts.logFile, "log-file", "devbook.log", "write logs to this file (empty to discard)")
	flagSet.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}

	cfg, err := loadConfig(flagSet, opts)
	if err != nil {
		return err
	}

	logger, closeLog, err := newLogger(opts.logFile, opts.logLevel)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var factory session.Factory
	if opts.useMock {
		script := mock.DefaultScript()
		script.Tick = cfg.Mock.Tick
		factory = mock.NewFactory(script)
	} else {
		factory = client.Factory(ctx,
			client.WithLogger(logger),
			client.WithDialer(client.NewDialer(cfg.HTTPTimeout)),
			client.WithReconnect(cfg.Reconnect.InitialInterval, cfg.Reconnect.MaxInterval),
		)
	}

	feed := app.NewFeed()
	binding := session.NewBinding(factory,
		session.WithLogger(logger),
		session.WithNotify(feed.Publish),
	)
	defer binding.Dispose()

	logger.Info("starting", "endpoint", cfg.Endpoint, "env", cfg.DefaultEnv, "mock", opts.useMock)
	program := tea.NewProgram(app.New(binding, feed, cfg), tea.WithAltScreen())
	_, err = program.Run()
	return err
}

// loadConfig layers the config file, DEVBOOK_* variables and explicitly
// set flags, in that order.
func loadConfig(flagSet *pflag.FlagSet, opts options) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(opts.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	if flagSet.Changed("endpoint") {
		cfg.Endpoint = opts.endpoint
	}
	if flagSet.Changed("token") {
		cfg.Token = opts.token
	}
	if flagSet.Changed("debug") {
		cfg.Debug = opts.debug
	}
	if flagSet.Changed("env") {
		if !slices.Contains(cfg.Environments, opts.env) {
			cfg.Environments = append(cfg.Environments, opts.env)
		}
		cfg.DefaultEnv = opts.env
	}
	if flagSet.Changed("port") {
		// The first configured port is selected at startup; 0 starts with
		// no port and disables cycling.
		var ports []int
		if opts.port != 0 {
			ports = append([]int{opts.port}, slices.DeleteFunc(slices.Clone(cfg.Ports), func(p int) bool { return p == opts.port })...)
		}
		cfg.Ports = ports
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(path, level string) (*slog.Logger, func(), error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, nil, fmt.Errorf("invalid --log-level: %w", err)
	}
	if path == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger, func() { f.Close() }, nil
}
