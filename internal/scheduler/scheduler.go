// Package scheduler drives the collect-and-push loop: resolve the endpoint,
// keep the session alive, poll the counters, deliver the payload, sleep.
// Failures pick a backoff policy by error kind; cancellation takes effect at
// cycle boundaries so a cycle is never torn down halfway through.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/Dlizzz/fbxmetrics/internal/collector"
	"github.com/Dlizzz/fbxmetrics/internal/discovery"
	fbxerrors "github.com/Dlizzz/fbxmetrics/internal/errors"
	"github.com/Dlizzz/fbxmetrics/internal/metrics"
	"github.com/Dlizzz/fbxmetrics/pkg/sample"
)

// EndpointResolver resolves and caches the device endpoint. Satisfied by
// *discovery.Resolver.
type EndpointResolver interface {
	Resolve(ctx context.Context) (discovery.Endpoint, error)
	Invalidate()
}

// Session is the authentication capability the scheduler drives. Satisfied
// by *fbx.Session.
type Session interface {
	EnsureAuthenticated(ctx context.Context) error
}

// Collector polls the counter targets. Satisfied by *collector.Collector.
type Collector interface {
	Collect(ctx context.Context) ([]sample.Sample, []collector.TargetError)
}

// Pusher delivers one cycle's samples. Satisfied by *push.Client and by the
// dry-run writer in cmd.
type Pusher interface {
	Push(ctx context.Context, samples []sample.Sample) error
}

// Scheduler owns the run loop state: the current backoff position and the
// wired pipeline stages.
type Scheduler struct {
	resolver  EndpointResolver
	session   Session
	collector Collector
	pusher    Pusher

	// onEndpoint fires with every resolved endpoint so the transport can
	// follow address changes across re-resolutions.
	onEndpoint func(discovery.Endpoint)

	interval  time.Duration
	retry     fbxerrors.RetryConfig
	authRetry fbxerrors.RetryConfig

	attempt     int
	authAttempt int

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// New wires a scheduler over the pipeline stages. onEndpoint may be nil.
func New(resolver EndpointResolver, session Session, collector Collector, pusher Pusher,
	interval time.Duration, onEndpoint func(discovery.Endpoint)) *Scheduler {
	return &Scheduler{
		resolver:   resolver,
		session:    session,
		collector:  collector,
		pusher:     pusher,
		onEndpoint: onEndpoint,
		interval:   interval,
		retry:      fbxerrors.DefaultRetryConfig(),
		authRetry:  fbxerrors.AuthRetryConfig(),
		sleep:      sleepCtx,
		now:        time.Now,
	}
}

// Run loops until the context is cancelled. The error is always the context's
// cancellation cause; cycle failures are absorbed into backoff.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("run loop started", "interval", s.interval)

	for {
		err := s.RunOnce(ctx)
		if ctx.Err() != nil {
			slog.Info("run loop stopping")
			return ctx.Err()
		}

		delay := s.interval
		if err != nil {
			delay = s.nextDelay(err)
			s.resolver.Invalidate()
		}

		if err := s.sleep(ctx, delay); err != nil {
			slog.Info("run loop stopping")
			return err
		}
	}
}

// RunOnce executes a single cycle: resolve, authenticate, collect, push.
// Partial collection results are pushed; a cycle only fails when nothing at
// all was collected or delivery itself failed.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := s.now()
	defer func() {
		metrics.CycleDuration.Observe(s.now().Sub(start).Seconds())
	}()

	ep, err := s.resolver.Resolve(ctx)
	if err != nil {
		return err
	}
	if s.onEndpoint != nil {
		s.onEndpoint(ep)
	}

	if err := s.session.EnsureAuthenticated(ctx); err != nil {
		return err
	}

	samples, failures := s.collector.Collect(ctx)
	if len(samples) == 0 && len(failures) > 0 {
		// Every target failed for the same underlying reason; surface the
		// first so the backoff policy can classify it.
		return failures[0]
	}

	if err := s.pusher.Push(ctx, samples); err != nil {
		metrics.PushFailures.WithLabelValues(fbxerrors.KindOf(err).String()).Inc()
		return err
	}

	metrics.SamplesCollected.Set(float64(len(samples)))
	if len(failures) == 0 {
		metrics.LastCycleSuccess.Set(float64(s.now().Unix()))
	}

	s.attempt = 0
	s.authAttempt = 0
	slog.Debug("cycle complete",
		"samples", len(samples),
		"failed_targets", len(failures),
		"duration", s.now().Sub(start))
	return nil
}

// nextDelay picks the backoff for a failed cycle. A rejected credential
// cannot self-heal, so it gets the slow policy and an operator-facing log.
func (s *Scheduler) nextDelay(err error) time.Duration {
	if fbxerrors.IsKind(err, fbxerrors.KindAuthRejected) {
		delay := s.authRetry.CalculateDelay(s.authAttempt)
		s.authAttempt++
		slog.Error("device rejected the stored application token; run --register to pair again",
			"error", err, "retry_in", delay)
		return delay
	}

	delay := s.retry.CalculateDelay(s.attempt)
	s.attempt++
	slog.Warn("cycle failed, backing off",
		"kind", fbxerrors.KindOf(err).String(),
		"error", err,
		"retry_in", delay)
	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
