// hostbridge is a headless harness around the host bridge engine. It prints
// the injected source, routes bridge messages read from stdin, inspects and
// clears session tokens, resolves account status, watches the realtime
// channel and runs software-key enrollment.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/germanamz/hostbridge/pkg/account"
	"github.com/germanamz/hostbridge/pkg/engine"
	"github.com/germanamz/hostbridge/pkg/enroll"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app carries what every command needs.
type app struct {
	eng     *engine.Engine
	cfg     engine.Config
	logger  *slog.Logger
	address string
	// stateInit is the wallet state init used by enroll.
	stateInit string
	stdin     io.Reader
	stdout    io.Writer
}

type command struct {
	usage string
	run   func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"inject": {"print the source injected before content loads", runInject},
	"route":  {"route bridge messages from stdin, print outbound scripts", runRoute},
	"token":  {"get|delete the stored session token", runToken},
	"status": {"resolve the account status against the service", runStatus},
	"watch":  {"watch the realtime channel and poll status until interrupted", runWatch},
	"enroll": {"enroll with the ed25519 key seeded from HOSTBRIDGE_SEED", runEnroll},
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	flagSet := pflag.NewFlagSet("hostbridge", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.SetInterspersed(false)

	configPath := flagSet.String("config", "", "path to configuration file (default: built-in defaults)")
	envFile := flagSet.String("env", ".env", "path to .env file (ignored if missing)")
	logLevel := flagSet.String("log-level", "info", "log level: debug, info, warn or error")
	address := flagSet.StringP("address", "a", os.Getenv("HOSTBRIDGE_ADDRESS"), "account address")
	flagSet.Usage = func() { printUsage(stderr, flagSet) }

	if err := flagSet.Parse(args); err != nil {
		return err
	}

	rest := flagSet.Args()
	if len(rest) == 0 {
		printUsage(stderr, flagSet)
		return errors.New("no command given")
	}

	cmd, ok := commands[rest[0]]
	if !ok {
		return fmt.Errorf("unknown command %q", rest[0])
	}

	if err := loadDotEnv(*envFile); err != nil {
		return err
	}

	logger, err := newLogger(stderr, *logLevel)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	addr := *address
	if addr != "" {
		if addr, err = account.Normalize(addr); err != nil {
			return err
		}
	}

	signer, err := seedSignerFromEnv()
	if err != nil {
		return err
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		address: addr,
		stdin:   stdin,
		stdout:  stdout,
	}

	deps := engine.Deps{Logger: logger, Wallets: enroll.WalletBuilderFunc(a.walletStateInit)}
	if signer != nil {
		deps.Keys = signer
	}

	a.eng, err = engine.New(cfg, deps)
	if err != nil {
		return err
	}
	defer func() { _ = a.eng.Close() }()

	return cmd.run(ctx, a, rest[1:])
}

func printUsage(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, "Usage: hostbridge [flags] <command> [command flags]\n\nFlags:\n")
	fmt.Fprint(w, flagSet.FlagUsages())
	fmt.Fprintf(w, "\nCommands:\n")

	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Fprintf(w, "  %-7s %s\n", name, commands[name].usage)
	}
}

// loadDotEnv loads environment variables from path. Missing files are ignored.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func loadConfig(path string) (engine.Config, error) {
	if path == "" {
		return engine.Config{}, nil
	}

	cfg, err := engine.LoadConfig(path)
	if err != nil {
		return engine.Config{}, err
	}

	return cfg, cfg.Validate()
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})), nil
}

func (a *app) requireAddress() error {
	if a.address == "" {
		return errors.New("--address is required")
	}
	return nil
}

// walletStateInit serves the state init given on the command line; building
// it from the public key is outside the bridge's concern.
func (a *app) walletStateInit(account.Account) (string, error) {
	if a.stateInit == "" {
		return "", errors.New("--state-init is required")
	}
	return a.stateInit, nil
}
