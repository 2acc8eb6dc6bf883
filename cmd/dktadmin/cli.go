package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/alecgard/dktadmin/internal/apiclient"
	"github.com/alecgard/dktadmin/internal/auth"
	"github.com/alecgard/dktadmin/internal/config"
	"github.com/alecgard/dktadmin/internal/crypto"
	"github.com/alecgard/dktadmin/internal/guard"
	"github.com/alecgard/dktadmin/internal/notify"
	"github.com/alecgard/dktadmin/internal/resource"
	"github.com/alecgard/dktadmin/internal/session"
)

var errNotLoggedIn = errors.New("not logged in (run: dktadmin login)")

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// cliEnv is what every session-aware subcommand works with. The token lives
// in a file so consecutive invocations share one session.
type cliEnv struct {
	api      *apiclient.Client
	session  *session.Controller
	logger   *slog.Logger
	notifier notify.Notifier
	stdin    io.Reader
	in       *bufio.Reader
	out      io.Writer
}

func newCLIEnv(cmd *cobra.Command) (*cliEnv, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logCfg := cfg.Log
	logCfg.Format = "text"
	logger := newLogger(logCfg, cmd.ErrOrStderr())

	api, err := apiclient.New(apiclient.Config{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.Backend.Timeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	path, err := cfg.TokenFilePath()
	if err != nil {
		return nil, err
	}

	store := session.NewFileStore(path).WithLogger(logger)
	sealer, err := crypto.NewCipher(cfg.CLI.TokenKey)
	if err != nil {
		return nil, fmt.Errorf("cli.token_key: %w", err)
	}
	if sealer != nil {
		store.WithSealer(sealer)
	}

	n := notify.Logger{Log: logger}
	ctrl := session.NewController(api, store, session.Options{
		TTL:      cfg.Session.TTL,
		Notifier: n,
		Logger:   logger,
	})
	return &cliEnv{
		api:      api,
		session:  ctrl,
		logger:   logger,
		notifier: n,
		stdin:    cmd.InOrStdin(),
		in:       bufio.NewReader(cmd.InOrStdin()),
		out:      cmd.OutOrStdout(),
	}, nil
}

// requireSession restores the stored session and applies the same role
// gate as the console.
func (e *cliEnv) requireSession(ctx context.Context, roles ...auth.Role) (session.Snapshot, error) {
	snap := e.session.Restore(ctx)
	switch guard.Decide(snap, roles).Outcome {
	case guard.Redirect:
		return snap, errNotLoggedIn
	case guard.Forbidden:
		return snap, errors.New(resource.PermissionDeniedMessage)
	}
	return snap, nil
}

func (e *cliEnv) resourceConfig(snap session.Snapshot) resource.Config {
	return resource.Config{
		Token:    snap.Token,
		Notifier: e.notifier,
		Logger:   e.logger,
	}
}

// confirm asks a yes/no question on out and reads the answer from in.
func confirm(in *bufio.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", question)
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// readPassword reads a password from passwordFile, from the terminal with
// echo disabled, or from the next line of a piped stdin.
func (e *cliEnv) readPassword(passwordFile string, prompt io.Writer) (string, error) {
	if passwordFile != "" && passwordFile != "-" {
		data, err := os.ReadFile(passwordFile)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", passwordFile, err)
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	}

	if f, ok := e.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(b), nil
	}

	line, err := e.in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading password from stdin: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
