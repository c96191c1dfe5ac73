package twitter

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"go.uber.org/zap"
)

// State is a step of a pipeline run.
type State int

const (
	StateInit State = iota
	StateDirectoriesReady
	StateCredentialsValidated
	StateLoggedIn
	StateCollecting
	StateTransforming
	StateLoggedOut
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateDirectoriesReady:
		return "directories_ready"
	case StateCredentialsValidated:
		return "credentials_validated"
	case StateLoggedIn:
		return "logged_in"
	case StateCollecting:
		return "collecting"
	case StateTransforming:
		return "transforming"
	case StateLoggedOut:
		return "logged_out"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// PlatformClient is the authenticated client the pipeline drives.
type PlatformClient interface {
	RecordSource
	Login(ctx context.Context, username, password string) error
	IsLoggedIn(ctx context.Context) bool
	Logout(ctx context.Context) error
}

// SessionStore is implemented by clients that can persist their session.
// When the client supports it and session.cookie_file is set, a saved
// session is tried before logging in with the password.
type SessionStore interface {
	SaveSession(path string) error
	LoadSession(path string) error
}

// Result describes a successful run.
type Result struct {
	Records        []PostRecord
	Entries        int
	URLsPath       string
	RecordsPath    string
	FineTuningPath string
}

// Pipeline runs login, record collection, transformation and logout for one
// account.
type Pipeline struct {
	cfg       Config
	client    PlatformClient
	collector *PaginatedBatchCollector
	logger    *zap.Logger
	state     State
}

// NewPipeline wires a record collector over client. A nil logger disables
// logging.
func NewPipeline(cfg Config, client PlatformClient, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		cfg:       cfg,
		client:    client,
		collector: NewPaginatedBatchCollector(cfg, client, logger),
		logger:    logger,
		state:     StateInit,
	}
}

// WithPacer replaces the delay strategy of the record collector.
func (p *Pipeline) WithPacer(pacer Pacer) *Pipeline {
	p.collector.WithPacer(pacer)
	return p
}

// State returns the step the pipeline reached.
func (p *Pipeline) State() State {
	return p.state
}

// Run executes the pipeline. On error the pipeline ends in StateFailed and
// nothing past the failing step runs.
func (p *Pipeline) Run(ctx context.Context) (res Result, err error) {
	defer func() {
		if err != nil {
			p.logger.Error("Pipeline failed", zap.Stringer("at", p.state), zap.Error(err))
			p.transition(StateFailed)
		}
	}()

	if err := os.MkdirAll(p.cfg.Output.Dir, 0755); err != nil {
		return Result{}, fmt.Errorf("%w: create %s: %v", ErrPersistence, p.cfg.Output.Dir, err)
	}
	p.transition(StateDirectoriesReady)

	if err := p.cfg.Credentials.Validate(); err != nil {
		return Result{}, err
	}
	p.transition(StateCredentialsValidated)

	if err := p.login(ctx); err != nil {
		return Result{}, err
	}
	p.transition(StateLoggedIn)

	res, err = p.collectAndTransform(ctx)
	p.logout(ctx)
	if err != nil {
		return Result{}, err
	}
	p.transition(StateLoggedOut)
	return res, nil
}

func (p *Pipeline) collectAndTransform(ctx context.Context) (Result, error) {
	res := Result{
		URLsPath:       p.cfg.URLsPath(),
		RecordsPath:    p.cfg.RecordsPath(),
		FineTuningPath: p.cfg.FineTuningPath(),
	}

	p.transition(StateCollecting)
	records, err := p.collector.CollectAndPersist(ctx, res.URLsPath, res.RecordsPath)
	if err != nil {
		return Result{}, err
	}
	res.Records = records

	p.transition(StateTransforming)
	entries, err := TransformAndPersist(res.FineTuningPath, records)
	if err != nil {
		return Result{}, err
	}
	res.Entries = len(entries)
	p.logger.Info("Saved fine-tuning data",
		zap.String("path", res.FineTuningPath),
		zap.Int("entries", res.Entries))
	return res, nil
}

func (p *Pipeline) login(ctx context.Context) error {
	store, canStore := p.client.(SessionStore)
	cookieFile := p.cfg.Session.CookieFile
	canStore = canStore && cookieFile != ""

	if canStore {
		err := store.LoadSession(cookieFile)
		switch {
		case err == nil && p.client.IsLoggedIn(ctx):
			p.logger.Info("Reusing saved session", zap.String("path", cookieFile))
			return nil
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			p.logger.Warn("Could not load saved session", zap.Error(err))
		}
	}

	creds := p.cfg.Credentials
	p.logger.Info("Logging in", zap.String("username", creds.Username))
	if err := p.client.Login(ctx, creds.Username, creds.Password); err != nil {
		if !errors.Is(err, ErrAuthentication) {
			err = fmt.Errorf("%w: %w", ErrAuthentication, err)
		}
		return err
	}
	if !p.client.IsLoggedIn(ctx) {
		return fmt.Errorf("%w: login returned without a verified session", ErrAuthentication)
	}

	if canStore {
		if err := store.SaveSession(cookieFile); err != nil {
			p.logger.Warn("Could not save session", zap.Error(err))
		}
	}
	return nil
}

// logout is best effort. It runs even when ctx is already cancelled.
func (p *Pipeline) logout(ctx context.Context) {
	if err := p.client.Logout(context.WithoutCancel(ctx)); err != nil {
		p.logger.Warn("Logout failed", zap.Error(err))
		return
	}
	p.logger.Info("Logged out")
}

func (p *Pipeline) transition(next State) {
	p.logger.Debug("Pipeline state",
		zap.Stringer("from", p.state),
		zap.Stringer("to", next))
	p.state = next
}
