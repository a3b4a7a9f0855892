package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/synote"
	"github.com/aretw0/synote/pkg/adapters/docstore"
	"github.com/aretw0/synote/pkg/adapters/local"
	"github.com/aretw0/synote/pkg/config"
	"github.com/aretw0/synote/pkg/identity"
)

const readyTimeout = 5 * time.Second

// app wires the client to the on-disk backends of the data directory.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	accounts *identity.BoltAccounts
	db       *docstore.DB
	provider *identity.Provider
	client   *synote.Client
}

// loadConfig resolves the data directory: --data, then the nearest .synote
// above the working directory, then the configured default.
func loadConfig() (config.Config, error) {
	dir := dataDir
	if dir == "" {
		if wd, err := os.Getwd(); err == nil {
			if found, err := synote.FindDataDir(wd); err == nil {
				dir = found
			}
		}
	}

	path := configPath
	if path == "" {
		base := dir
		if base == "" {
			base = config.Default().DataDir
		}
		path = filepath.Join(base, "config.yaml")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if dir != "" {
		cfg.DataDir = dir
	}
	return cfg, nil
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := slog.Default()
	if !verbose {
		if level, err := cfg.Level(); err == nil {
			logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		}
	}

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, err
	}
	secret, err := cfg.SecretBytes()
	if err != nil {
		return nil, fmt.Errorf("load secret: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}
	a.accounts, err = identity.OpenBoltAccounts(cfg.AccountsPath())
	if err != nil {
		return nil, err
	}
	a.db, err = docstore.OpenBolt(cfg.DocumentsPath(), docstore.WithLogger(logger))
	if err != nil {
		a.close()
		return nil, err
	}
	guest, err := local.NewFileStorage(cfg.GuestDir(), logger)
	if err != nil {
		a.close()
		return nil, err
	}

	a.provider, err = identity.NewProvider(identity.Config{
		Accounts: a.accounts,
		Secret:   secret,
		TokenTTL: cfg.TokenTTL,
		Logger:   logger,
		// There is no mail server; the reset token goes to the terminal.
		ResetSender: identity.ResetSenderFunc(func(ctx context.Context, email, token string) error {
			fmt.Fprintf(os.Stderr, "Reset token for %s:\n%s\n", email, token)
			return nil
		}),
	})
	if err != nil {
		a.close()
		return nil, err
	}
	a.restore(ctx)

	a.client, err = synote.New(ctx,
		synote.WithConfig(cfg),
		synote.WithLogger(logger),
		synote.WithAuthenticator(a.provider),
		synote.WithStore(a.db),
		synote.WithGuestStorage(guest),
	)
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

// restore resumes the user of the saved token, if any.
func (a *app) restore(ctx context.Context) {
	raw, err := os.ReadFile(a.cfg.TokenPath())
	if err != nil {
		return
	}
	if err := a.provider.Restore(ctx, strings.TrimSpace(string(raw))); err != nil {
		a.logger.Warn("saved session is no longer valid", "error", err)
		_ = os.Remove(a.cfg.TokenPath())
	}
}

// saveToken remembers the signed-in user for the next run.
func (a *app) saveToken() error {
	token, err := a.provider.Token()
	if err != nil {
		return err
	}
	return os.WriteFile(a.cfg.TokenPath(), []byte(token+"\n"), 0o600)
}

func (a *app) forgetToken() {
	if err := os.Remove(a.cfg.TokenPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		a.logger.Warn("failed to remove session token", "error", err)
	}
}

// session waits for the signed-in user's first snapshot.
func (a *app) session(ctx context.Context) (*synote.Session, error) {
	if a.provider.CurrentUser() == nil {
		return nil, errors.New("not signed in: run `synote signin` or `synote guest`")
	}
	ctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()
	return a.client.Ready(ctx)
}

// close flushes pending edits and releases the databases.
func (a *app) close() {
	if a.client != nil {
		_ = a.client.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
	if a.accounts != nil {
		_ = a.accounts.Close()
	}
}

// withApp runs fn against an open app and exits on error.
func withApp(fn func(ctx context.Context, a *app) error) {
	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		fatal("Error initializing synote", err)
	}
	err = fn(ctx, a)
	a.close()
	if err != nil {
		fatal("Error", err)
	}
}

// confirm reads a yes/no answer from stdin.
func confirm(prompt string) bool {
	fmt.Fprintf(os.Stderr, "%s [y/N] ", prompt)
	var answer string
	if _, err := fmt.Fscanln(os.Stdin, &answer); err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
