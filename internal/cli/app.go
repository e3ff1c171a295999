package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/soyeahso/zeyn/internal/api"
	"github.com/soyeahso/zeyn/internal/chat"
	"github.com/soyeahso/zeyn/internal/config"
	"github.com/soyeahso/zeyn/internal/hub"
	"github.com/soyeahso/zeyn/internal/logging"
	"github.com/soyeahso/zeyn/internal/store"
)

// app holds the collaborators a command needs, built from the loaded config.
type app struct {
	cfg   config.Config
	log   *logging.Logger
	creds store.CredentialStore
	api   *api.Client

	db *store.DB
}

// openApp opens the credential store and builds the REST client.
// A configured static token shadows the stored one without overwriting it.
func openApp(ctx context.Context, cfg config.Config, paths config.Paths, log *logging.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	switch cfg.Credentials.Store {
	case "memory":
		a.creds = store.NewMemoryCredentialStore()
	case "sqlite", "":
		if err := paths.EnsureDirs(); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		db, err := store.Open(paths.Credentials, log)
		if err != nil {
			return nil, fmt.Errorf("opening credential store: %w", err)
		}
		a.db = db
		a.creds = store.NewSQLiteCredentialStore(db)
	default:
		return nil, &config.ConfigError{Message: fmt.Sprintf("unknown credentials.store %q", cfg.Credentials.Store)}
	}

	if cfg.Credentials.AccessToken != "" {
		mem := store.NewMemoryCredentialStore()
		if err := store.SetAccessToken(ctx, mem, cfg.Credentials.AccessToken); err != nil {
			a.Close()
			return nil, err
		}
		a.creds = mem
	}

	a.api = api.New(cfg.API.BaseURL, a.creds, log,
		api.WithTimeout(time.Duration(cfg.API.TimeoutSeconds)*time.Second),
		api.WithNamespace(cfg.API.Namespace),
	)
	return a, nil
}

func (a *app) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Debug().Err(err).Msg("closing credential store")
		}
	}
}

// hubFactory builds a new chat hub connection per conversation. The token
// is read from the credential store on every connection attempt.
func (a *app) hubFactory() chat.HubFactory {
	hubLog := logging.NewStyled(nil, a.cfg.Hub.LogLevel, a.cfg.Logging.ConsoleStyle).Sub("hub")
	return func() (chat.Hub, error) {
		b := hub.NewZeynAIBuilder(a.cfg.API.BaseURL, a.cfg.Hub.Path, func(ctx context.Context) (string, error) {
			return store.AccessToken(ctx, a.creds)
		}, hubLog).
			WithSkipNegotiation(a.cfg.Hub.SkipNegotiation)
		if a.cfg.Hub.ReconnectEnabled() {
			b.WithAutomaticReconnect(hub.FixedDelay(time.Duration(a.cfg.Hub.ReconnectDelayMs) * time.Millisecond))
		} else {
			b.WithAutomaticReconnect(nil)
		}
		conn, err := b.Build()
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

func (a *app) newSession() *chat.Session {
	return chat.NewSession(a.api, a.hubFactory(), a.log.Sub("chat"), chat.WithPageSize(a.cfg.Chat.PageSize))
}

// requireLogin fails early with a readable message when no token is stored.
func (a *app) requireLogin(ctx context.Context) error {
	tok, err := store.AccessToken(ctx, a.creds)
	if err != nil {
		return err
	}
	if tok == "" {
		return fmt.Errorf("not signed in; run `zeyn login` first")
	}
	return nil
}
