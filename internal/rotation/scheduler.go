package rotation

import (
	"context"
	"sync"
	"time"

	"github.com/ordermesh/tokengate/internal/logging"
)

// DefaultTick is how often the scheduler checks token ages.
const DefaultTick = time.Minute

// DefaultRotationInterval is the per-provider rotation interval applied when
// a provider does not configure its own.
const DefaultRotationInterval = 5 * time.Minute

// Scheduler drives both rotation cycles in the background: one shared ticker
// for access tokens, plus one ticker per provider with secret rotation
// enabled. A failed invocation is logged and retried on the next tick; it
// never stops the loop or affects other providers.
type Scheduler struct {
	store        *Store
	engine       *Engine
	secretEngine *SecretEngine
	providers    []*ProviderConfig
	logger       *logging.Logger

	tick            time.Duration
	defaultInterval time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewScheduler creates a stopped scheduler over the given providers.
func NewScheduler(store *Store, engine *Engine, secretEngine *SecretEngine, providers []*ProviderConfig, logger *logging.Logger) *Scheduler {
	return &Scheduler{
		store:           store,
		engine:          engine,
		secretEngine:    secretEngine,
		providers:       providers,
		logger:          logger,
		tick:            DefaultTick,
		defaultInterval: DefaultRotationInterval,
	}
}

// SetTick overrides the check interval. Must be called before Start; exists
// so tests can run the loop without wall-clock waiting.
func (s *Scheduler) SetTick(tick time.Duration) {
	s.tick = tick
}

// SetDefaultInterval overrides the fallback rotation interval applied to
// providers without their own. Must be called before Start.
func (s *Scheduler) SetDefaultInterval(d time.Duration) {
	if d > 0 {
		s.defaultInterval = d
	}
}

// Start launches the background loops. They run until Stop or until the
// parent context is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.tokenLoop(ctx)

	for _, cfg := range s.providers {
		if !cfg.SecretRotation.Enabled {
			continue
		}
		s.wg.Add(1)
		go s.secretLoop(ctx, cfg)
	}
	s.logger.Info("rotation scheduler started (tick %s, %d providers)", s.tick, len(s.providers))
}

// Stop cancels the loops and waits for them to drain. Safe to call more than
// once.
func (s *Scheduler) Stop() {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()
		s.logger.Info("rotation scheduler stopped")
	})
}

func (s *Scheduler) tokenLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.rotateDue(ctx)
		}
	}
}

// rotateDue rotates every provider whose token age has reached its interval.
func (s *Scheduler) rotateDue(ctx context.Context) {
	for _, cfg := range s.providers {
		age, ok := s.store.AgeSinceRotation(cfg.Name)
		if !ok || age < cfg.Interval(s.defaultInterval) {
			continue
		}
		if err := s.engine.Rotate(ctx, cfg); err != nil {
			// Logged by the engine; the next tick retries.
			s.logger.Debug("scheduled rotation for %s will retry next tick", cfg.Name)
		}
	}
}

func (s *Scheduler) secretLoop(ctx context.Context, cfg *ProviderConfig) {
	defer s.wg.Done()
	interval := cfg.SecretRotation.Interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.secretEngine.RotateSecret(ctx, cfg); err != nil {
				s.logger.Debug("scheduled secret rotation for %s will retry next tick", cfg.Name)
			}
		}
	}
}
