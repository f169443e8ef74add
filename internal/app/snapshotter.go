package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samvad-hq/crm-bff/internal/config"
	"github.com/samvad-hq/crm-bff/internal/logger"
	"github.com/samvad-hq/crm-bff/internal/session"
	"github.com/samvad-hq/crm-bff/pkg/backendapi"
	"github.com/samvad-hq/crm-bff/pkg/dto"
	"github.com/samvad-hq/crm-bff/pkg/publishers"
)

// Snapshotter periodically builds the dashboard for the configured account and
// publishes it to every enabled sink. It owns the session: tokens are reused
// from the session store, refreshed on ErrAuth and re-created by login.
type Snapshotter struct {
	api        backendapi.API
	store      session.Store
	publisher  EventPublisher
	log        logger.Logger
	interval   time.Duration
	dashboard  backendapi.DashboardOptions
	email      string
	password   string
	sessionKey string

	skew        time.Duration
	now         func() time.Time
	metrics     *Metrics
	metricsAddr string
}

// NewSnapshotter builds a snapshotter runtime from config.
func NewSnapshotter(ctx context.Context, cfg *config.Config, log logger.Logger) (*Snapshotter, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	log = logger.Ensure(log)
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Email == "" || cfg.Password == "" {
		return nil, fmt.Errorf("bff_email and bff_password are required for snapshots")
	}

	catalog, err := publishers.LoadCatalog(cfg.PublishersFile)
	if err != nil {
		return nil, fmt.Errorf("load publishers catalog: %w", err)
	}
	enabled := catalog.Enabled()
	if len(enabled) == 0 {
		return nil, fmt.Errorf("no publishers enabled in %s", cfg.PublishersFile)
	}
	pubs, err := publishers.DefaultBuilders().BuildAll(ctx, enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}
	fanout := publishers.NewFanout(pubs)
	summaries := make([]map[string]any, 0, len(enabled))
	for _, pubCfg := range enabled {
		summaries = append(summaries, map[string]any{
			"id":       pubCfg.ID,
			"type":     pubCfg.Type,
			"sections": pubCfg.Sections,
		})
	}
	log.InfoObj("publishers catalog loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})

	store, err := session.NewStore(cfg.SessionType, cfg.SessionLocation(), cfg.SessionOptions())
	if err != nil {
		_ = fanout.Close()
		return nil, fmt.Errorf("init session store: %w", err)
	}

	api, err := backendapi.New(cfg.Backend(), backendapi.WithLogger(log))
	if err != nil {
		_ = fanout.Close()
		_ = store.Close()
		return nil, fmt.Errorf("init backend client: %w", err)
	}

	s := newSnapshotter(api, store, fanout, log, cfg.SnapshotInterval, cfg.Dashboard())
	s.email, s.password, s.sessionKey = cfg.Email, cfg.Password, cfg.Email
	s.skew = cfg.TokenRefreshSkew
	s.metricsAddr = cfg.MetricsAddr
	return s, nil
}

func newSnapshotter(api backendapi.API, store session.Store, pub EventPublisher, log logger.Logger, interval time.Duration, dash backendapi.DashboardOptions) *Snapshotter {
	return &Snapshotter{
		api:        api,
		store:      store,
		publisher:  pub,
		log:        logger.Ensure(log),
		interval:   interval,
		dashboard:  dash,
		sessionKey: session.DefaultKey,
		now:        time.Now,
		metrics:    NewMetrics(),
	}
}

// Run publishes a snapshot immediately and then on every interval until ctx is
// cancelled. Resources are released on return.
func (s *Snapshotter) Run(ctx context.Context) error {
	if s == nil || s.api == nil {
		return fmt.Errorf("snapshotter is not initialized")
	}
	defer s.close()

	if s.metricsAddr != "" {
		go serveMetrics(ctx, s.metricsAddr, s.metrics, s.log)
	}

	s.log.InfoObj("snapshot loop starting", "snapshotter_state", map[string]any{
		"publishers_count": s.publisher.Size(),
		"interval":         s.interval.String(),
		"deal_limit":       s.dashboard.DealLimit,
		"activity_limit":   s.dashboard.ActivityLimit,
		"refresh_skew":     s.skew.String(),
	})

	if err := s.runOnce(ctx); err != nil {
		s.log.ErrorObj("initial snapshot failed", "error", err.Error())
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.InfoObj("snapshot loop exiting", "reason", ctx.Err().Error())
			return nil
		case <-ticker.C:
			if err := s.runOnce(ctx); err != nil {
				s.log.ErrorObj("scheduled snapshot failed", "error", err.Error())
			}
		}
	}
}

func (s *Snapshotter) runOnce(ctx context.Context) error {
	start := time.Now()
	if err := s.SnapshotOnce(ctx); err != nil {
		return err
	}
	s.log.InfoObj("snapshot completed", "snapshot_meta", map[string]any{
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return nil
}

// SnapshotOnce builds one dashboard and publishes it. An expired access token
// is renewed once before giving up.
func (s *Snapshotter) SnapshotOnce(ctx context.Context) error {
	start := time.Now()
	delivered, err := s.snapshot(ctx)
	s.metrics.observeSnapshot(resultOf(err), time.Since(start), delivered)
	return err
}

func (s *Snapshotter) snapshot(ctx context.Context) (int, error) {
	tokens, err := s.tokens(ctx)
	if err != nil {
		return 0, err
	}

	dash, err := s.api.BuildDashboard(ctx, tokens.Access, s.dashboard)
	if backendapi.IsAuth(err) {
		s.log.WarnObj("access token rejected; renewing session", "session_key", s.sessionKey)
		if tokens, err = s.renew(ctx, tokens); err != nil {
			return 0, err
		}
		dash, err = s.api.BuildDashboard(ctx, tokens.Access, s.dashboard)
	}
	if err != nil {
		return 0, fmt.Errorf("build dashboard: %w", err)
	}

	delivered, err := s.publisher.Publish(ctx, publishers.NewDashboardEvent(tokens.UserID, dash))
	s.log.InfoObj("snapshot published", "snapshot_delivery", map[string]any{
		"delivered":  delivered,
		"publishers": s.publisher.Size(),
		"deals":      len(dash.Deals),
		"activity":   len(dash.Activity),
	})
	if err != nil {
		return delivered, &publishError{err: err}
	}
	return delivered, nil
}

type publishError struct{ err error }

func (e *publishError) Error() string { return "publish snapshot: " + e.err.Error() }
func (e *publishError) Unwrap() error { return e.err }

func resultOf(err error) string {
	var pubErr *publishError
	switch {
	case err == nil:
		return resultOK
	case errors.As(err, &pubErr):
		return resultPublish
	case backendapi.IsAuth(err):
		return resultAuth
	case backendapi.IsUnavailable(err):
		return resultUnavailable
	default:
		return resultError
	}
}

func (s *Snapshotter) tokens(ctx context.Context) (dto.AuthTokens, error) {
	tokens, found, err := s.store.Load(s.sessionKey)
	if err != nil {
		s.log.WarnObj("session load failed; logging in", "error", err.Error())
	}
	if !found {
		return s.login(ctx)
	}
	if s.skew > 0 && session.Expiring(tokens, s.now(), s.skew) {
		s.log.DebugObj("access token near expiry; renewing session", "session_key", s.sessionKey)
		return s.renew(ctx, tokens)
	}
	return tokens, nil
}

// renew tries the refresh token first and falls back to a fresh login unless
// the backend is unavailable.
func (s *Snapshotter) renew(ctx context.Context, old dto.AuthTokens) (dto.AuthTokens, error) {
	if old.Refresh != "" {
		refreshed, err := s.api.Refresh(ctx, old.Refresh)
		switch {
		case err == nil:
			if refreshed.UserID == "" {
				refreshed.UserID, refreshed.FullName, refreshed.Role = old.UserID, old.FullName, old.Role
			}
			s.save(refreshed)
			s.metrics.observeRenewal("refresh")
			return refreshed, nil
		case backendapi.IsUnavailable(err):
			return dto.AuthTokens{}, fmt.Errorf("refresh session: %w", err)
		default:
			s.log.WarnObj("token refresh failed; logging in", "error", err.Error())
		}
	}
	return s.login(ctx)
}

func (s *Snapshotter) login(ctx context.Context) (dto.AuthTokens, error) {
	if s.email == "" {
		return dto.AuthTokens{}, errors.New("no stored session and no credentials configured")
	}
	tokens, err := s.api.Login(ctx, s.email, s.password)
	if err != nil {
		return dto.AuthTokens{}, fmt.Errorf("login: %w", err)
	}
	s.save(tokens)
	s.metrics.observeRenewal("login")
	return tokens, nil
}

func (s *Snapshotter) save(tokens dto.AuthTokens) {
	if err := s.store.Save(s.sessionKey, tokens); err != nil {
		s.log.WarnObj("session save failed", "error", err.Error())
	}
}

// close releases the backend client, the session store and publishers,
// logging any errors encountered.
func (s *Snapshotter) close() {
	if err := s.api.Close(); err != nil {
		s.log.ErrorObj("backend client close failed", "error", err.Error())
	}
	if err := s.store.Close(); err != nil {
		s.log.ErrorObj("session store close failed", "error", err.Error())
	}
	if err := s.publisher.Close(); err != nil {
		s.log.ErrorObj("publishers close failed", "error", err.Error())
	}
}
