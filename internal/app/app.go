package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/aussiebroadwan/skyres/internal/store"
	"github.com/aussiebroadwan/skyres/internal/store/drivers/sqlite"
	"github.com/aussiebroadwan/skyres/pkg/cachex"
	"github.com/aussiebroadwan/skyres/pkg/cryptox"
	"github.com/aussiebroadwan/skyres/pkg/resclient"
	"github.com/aussiebroadwan/skyres/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"

	sessionSalt = "skyres/session/v1"
)

// Application wires the reservation client to its configuration, cache and
// session store for one CLI invocation.
type Application struct {
	cfg    Config
	logger *slog.Logger

	client *resclient.Client

	// Optional: only when a session secret is configured
	db     store.Store
	keeper *store.SessionKeeper

	// Optional: only when SKYRES_REDIS_URL is set
	cache *cachex.Redis
}

// Command is one CLI request.
type Command struct {
	Method string
	Path   string // may carry a query string
	Body   string // raw JSON
	Logout bool
	Info   bool // show the current token instead of calling Path
}

// New creates a new Application with all dependencies initialised.
func New(ctx context.Context, cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "skyres",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}

	if err := app.initClient(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}

	return app, nil
}

func (app *Application) initDatabase(ctx context.Context) error {
	if app.cfg.SessionSecret == "" {
		app.logger.Debug("session persistence disabled")
		return nil
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", app.cfg.SessionFile)
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}

	if err := db.Ping(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("session store unreachable: %w", err)
	}

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	sealer, err := cryptox.NewSealer([]byte(app.cfg.SessionSecret), []byte(sessionSalt))
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to initialise session sealer: %w", err)
	}

	app.db = db
	app.keeper = store.NewSessionKeeper(db, sealer)

	if n, err := app.keeper.Prune(ctx); err != nil {
		app.logger.Warn("failed to prune expired sessions", "error", err)
	} else if n > 0 {
		app.logger.Debug("pruned expired sessions", "count", n)
	}

	return nil
}

func (app *Application) initClient(ctx context.Context) error {
	opts := []resclient.Option{resclient.WithLogger(app.logger)}

	if app.cfg.CacheEnabled && app.cfg.RedisURL != "" {
		cache, err := cachex.OpenRedis(ctx, app.cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		app.cache = cache
		opts = append(opts, resclient.WithCache(cache))
	}

	client, err := resclient.New(app.cfg.ClientConfig(), opts...)
	if err != nil {
		return err
	}
	app.client = client
	return nil
}

// Client exposes the underlying reservation client.
func (app *Application) Client() *resclient.Client { return app.client }

// Run executes cmd and writes the resulting envelope, or a failure document,
// to out as JSON. The token held afterwards is saved for the next invocation.
func (app *Application) Run(ctx context.Context, cmd Command, out io.Writer) error {
	app.restoreSession(ctx)
	defer app.saveSession(ctx)

	if cmd.Logout {
		_ = app.client.Auth().Logout(ctx)
		return writeJSON(out, map[string]any{"success": true, "message": "Logged out"})
	}

	if err := app.authenticate(ctx); err != nil {
		return app.fail(out, err)
	}

	var (
		env *resclient.Envelope
		err error
	)
	if cmd.Info {
		env, err = app.client.Auth().TokenInfo(ctx)
	} else {
		var req resclient.Request
		if req, err = cmd.request(); err == nil {
			env, err = app.client.Do(ctx, req)
		}
	}
	if err != nil {
		return app.fail(out, err)
	}

	return writeJSON(out, env)
}

// authenticate makes sure a token is held, creating one from the configured
// credentials when no stored session was restored.
func (app *Application) authenticate(ctx context.Context) error {
	if app.client.Auth().IsAuthenticated() {
		return nil
	}

	creds, ok := app.cfg.Credentials()
	if !ok {
		return resclient.NewError(resclient.KindAuthentication, 0,
			"no stored session; set SKYRES_USERNAME and SKYRES_PASSWORD")
	}

	_, err := app.client.Auth().CreateToken(ctx, creds)
	return err
}

func (app *Application) restoreSession(ctx context.Context) {
	if app.keeper == nil {
		return
	}

	tok, ok, err := app.keeper.Load(ctx, app.cfg.Profile, app.cfg.BaseURL, app.cfg.Username)
	if err != nil {
		app.logger.Warn("failed to load session", "profile", app.cfg.Profile, "error", err)
		return
	}
	if !ok {
		return
	}

	app.client.SetAccessTokenUntil(tok.Value, tok.ExpiresAt)
	app.logger.Debug("session restored", "profile", app.cfg.Profile, "token_fp", cryptox.FingerprintToken(tok.Value))
}

func (app *Application) saveSession(ctx context.Context) {
	if app.keeper == nil {
		return
	}

	// A cleared store yields the zero token, which deletes the session
	tok, _ := app.client.Tokens().Snapshot()
	if err := app.keeper.Save(ctx, app.cfg.Profile, app.cfg.BaseURL, app.cfg.Username, tok); err != nil {
		app.logger.Warn("failed to save session", "profile", app.cfg.Profile, "error", err)
	}
}

// Close releases the cache connection and the session store.
func (app *Application) Close() error {
	var errs []error

	if app.cache != nil {
		if err := app.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache: %w", err))
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database", "error", err)
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (cmd Command) request() (resclient.Request, error) {
	method := strings.ToUpper(strings.TrimSpace(cmd.Method))
	if method == "" {
		method = http.MethodGet
	}

	u, err := url.Parse(cmd.Path)
	if err != nil || u.Path == "" {
		return resclient.Request{}, resclient.NewError(resclient.KindValidation, 0, fmt.Sprintf("invalid path %q", cmd.Path))
	}

	req := resclient.Request{Method: method, Path: u.Path}
	if u.RawQuery != "" {
		req.Query = u.Query()
	}

	if body := strings.TrimSpace(cmd.Body); body != "" {
		if !json.Valid([]byte(body)) {
			return resclient.Request{}, resclient.NewError(resclient.KindValidation, 0, "request body is not valid JSON")
		}
		req.Body = json.RawMessage(body)
	}

	return req, nil
}

// failure is the JSON document printed when a call does not succeed.
type failure struct {
	Success    bool              `json:"success"`
	Kind       string            `json:"kind"`
	Message    string            `json:"message"`
	StatusCode int               `json:"status_code,omitempty"`
	Errors     map[string]string `json:"errors,omitempty"`
	RetryAfter int               `json:"retry_after,omitempty"`
	Method     string            `json:"method,omitempty"`
	Endpoint   string            `json:"endpoint,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
	Attempts   int               `json:"attempts,omitempty"`
}

// fail writes err as a failure document and returns it unchanged.
func (app *Application) fail(out io.Writer, err error) error {
	doc := failure{Kind: "error", Message: err.Error()}

	if e, ok := resclient.AsError(err); ok {
		doc = failure{
			Kind:       e.Kind.String(),
			Message:    e.Message,
			StatusCode: e.StatusCode,
			Errors:     e.Fields,
			RetryAfter: e.RetryAfterSeconds(),
			Method:     e.Method,
			Endpoint:   e.Endpoint,
			RequestID:  e.RequestID,
			Attempts:   e.Attempts,
		}
	}

	if werr := writeJSON(out, doc); werr != nil {
		app.logger.Error("failed to write failure document", "error", werr)
	}
	return err
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
