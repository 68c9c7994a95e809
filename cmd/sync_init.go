package main

import (
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/callsync/internal/callsync"
	"github.com/sells-group/callsync/internal/config"
	"github.com/sells-group/callsync/internal/monitoring"
	"github.com/sells-group/callsync/internal/resilience"
	"github.com/sells-group/callsync/internal/store"
	"github.com/sells-group/callsync/pkg/hubspot"
	"github.com/sells-group/callsync/pkg/threec"
)

// syncEnv holds the engine and its scheduler, shared by the once and serve
// commands.
type syncEnv struct {
	Engine    *callsync.Engine
	Scheduler *callsync.Scheduler
	Recorder  *monitoring.Recorder
}

// initSync validates the config, builds both API clients and wires the
// engine to a scheduler whose reports go to a fresh Recorder.
func initSync(c *config.Config) (*syncEnv, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	source := threec.NewClient(c.ThreeC.Token,
		threec.WithBaseURL(c.ThreeC.BaseURL),
		threec.WithInsecureSkipVerify(c.ThreeC.InsecureSkipVerify),
		threec.WithTimeout(c.ThreeC.Timeout()),
		threec.WithRetry(resilience.FromRetryConfig(
			c.ThreeC.Retry.MaxAttempts, c.ThreeC.Retry.InitialBackoffMs, c.ThreeC.Retry.MaxBackoffMs,
		)),
	)

	crmOpts := []hubspot.Option{
		hubspot.WithBaseURL(c.CRM.BaseURL),
		hubspot.WithRateLimit(c.CRM.RateLimitRPS),
		hubspot.WithPhoneProperty(c.CRM.Properties.Phone),
		hubspot.WithRetry(resilience.FromRetryConfig(
			c.CRM.Retry.MaxAttempts, c.CRM.Retry.InitialBackoffMs, c.CRM.Retry.MaxBackoffMs,
		)),
	}
	var engineOpts []callsync.EngineOption
	if c.CRM.Circuit.FailureThreshold > 0 {
		breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			FailureThreshold: c.CRM.Circuit.FailureThreshold,
			Cooldown:         time.Duration(c.CRM.Circuit.CooldownSecs) * time.Second,
			OnStateChange: func(from, to resilience.CircuitState) {
				zap.L().Warn("hubspot circuit state changed",
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		})
		crmOpts = append(crmOpts, hubspot.WithCircuitBreaker(breaker))
		engineOpts = append(engineOpts, callsync.WithCRMReady(breaker.Ready))
	}
	crm := hubspot.NewClient(c.CRM.Token, crmOpts...)

	engine, err := callsync.New(c, source, crm, store.NewMemorySeenSet(), store.NewMemoryIdentityCache(), engineOpts...)
	if err != nil {
		return nil, eris.Wrap(err, "init sync")
	}

	rec := monitoring.NewRecorder(c.Sync.HistorySize)
	return &syncEnv{
		Engine:    engine,
		Scheduler: callsync.NewScheduler(engine.RunCycle, c.Sync.Interval(), rec.Record),
		Recorder:  rec,
	}, nil
}
