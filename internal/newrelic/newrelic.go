// Package newrelic provides New Relic APM integration for monitoring.
package newrelic

import (
	"context"
	"sync"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/cyberia-to/uhash/internal/config"
	"github.com/cyberia-to/uhash/internal/util"
)

// Agent wraps New Relic APM functionality
type Agent struct {
	cfg   *config.NewRelicConfig
	app   *newrelic.Application
	mu    sync.RWMutex
}

// NewAgent creates a new New Relic agent
func NewAgent(cfg *config.NewRelicConfig) *Agent {
	return &Agent{
		cfg: cfg,
	}
}

// Start initializes the New Relic agent
func (a *Agent) Start() error {
	if !a.cfg.Enabled {
		util.Info("New Relic APM disabled")
		return nil
	}

	if a.cfg.LicenseKey == "" {
		util.Warn("New Relic license key not configured, APM disabled")
		return nil
	}

	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(a.cfg.AppName),
		newrelic.ConfigLicense(a.cfg.LicenseKey),
		newrelic.ConfigDistributedTracerEnabled(true),
		newrelic.ConfigAppLogForwardingEnabled(true),
	)
	if err != nil {
		return err
	}

	// Wait for connection (up to 5 seconds)
	if err := app.WaitForConnection(5 * time.Second); err != nil {
		util.Warnf("New Relic connection timeout: %v (will retry in background)", err)
	}

	a.mu.Lock()
	a.app = app
	a.mu.Unlock()

	util.Infof("New Relic APM enabled for app: %s", a.cfg.AppName)
	return nil
}

// Stop shuts down the New Relic agent
func (a *Agent) Stop() {
	a.mu.RLock()
	app := a.app
	a.mu.RUnlock()

	if app != nil {
		util.Info("Shutting down New Relic agent")
		app.Shutdown(10 * time.Second)
	}
}

// Application returns the underlying New Relic application (for middleware)
func (a *Agent) Application() *newrelic.Application {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.app
}

// IsEnabled returns true if New Relic is enabled and connected
func (a *Agent) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.app != nil
}

// StartTransaction starts a new New Relic transaction
func (a *Agent) StartTransaction(name string) *newrelic.Transaction {
	a.mu.RLock()
	app := a.app
	a.mu.RUnlock()

	if app == nil {
		return nil
	}
	return app.StartTransaction(name)
}

// RecordCustomEvent records a custom event
func (a *Agent) RecordCustomEvent(eventType string, params map[string]interface{}) {
	a.mu.RLock()
	app := a.app
	a.mu.RUnlock()

	if app != nil {
		app.RecordCustomEvent(eventType, params)
	}
}

// RecordCustomMetric records a custom metric
func (a *Agent) RecordCustomMetric(name string, value float64) {
	a.mu.RLock()
	app := a.app
	a.mu.RUnlock()

	if app != nil {
		app.RecordCustomMetric(name, value)
	}
}

// NoticeError records an error
func (a *Agent) NoticeError(txn *newrelic.Transaction, err error) {
	if txn != nil && err != nil {
		txn.NoticeError(err)
	}
}

// NewContext adds transaction to context
func (a *Agent) NewContext(ctx context.Context, txn *newrelic.Transaction) context.Context {
	if txn == nil {
		return ctx
	}
	return newrelic.NewContext(ctx, txn)
}

// FromContext gets transaction from context
func (a *Agent) FromContext(ctx context.Context) *newrelic.Transaction {
	return newrelic.FromContext(ctx)
}

// RecordRoundCompleted records a single mining round (one seed/difficulty
// refresh period) finishing, whether or not it produced a proof.
func (a *Agent) RecordRoundCompleted(address string, difficulty uint32, hashes uint64, found bool) {
	a.RecordCustomEvent("RoundCompleted", map[string]interface{}{
		"address":    address,
		"difficulty": difficulty,
		"hashes":     hashes,
		"found":      found,
	})
}

// RecordProofFound records a found proof event.
func (a *Agent) RecordProofFound(address string, nonce uint64, difficulty uint32) {
	a.RecordCustomEvent("ProofFound", map[string]interface{}{
		"address":    address,
		"nonce":      nonce,
		"difficulty": difficulty,
	})
}

// RecordSubmissionFailed records a proof that could not be submitted upstream.
func (a *Agent) RecordSubmissionFailed(address string, nonce uint64, reason string) {
	a.RecordCustomEvent("ProofSubmissionFailed", map[string]interface{}{
		"address": address,
		"nonce":   nonce,
		"reason":  reason,
	})
}

// RecordUpstreamFailover records a switch from one upstream to another.
func (a *Agent) RecordUpstreamFailover(from, to string) {
	a.RecordCustomEvent("UpstreamFailover", map[string]interface{}{
		"from": from,
		"to":   to,
	})
}

// UpdateHashrateMetrics updates the miner's own throughput metrics.
func (a *Agent) UpdateHashrateMetrics(hashesPerSecond float64, threads int) {
	a.RecordCustomMetric("Custom/Miner/HashesPerSecond", hashesPerSecond)
	a.RecordCustomMetric("Custom/Miner/Threads", float64(threads))
}

// UpdateNetworkMetrics updates the observed network difficulty.
func (a *Agent) UpdateNetworkMetrics(difficulty uint32) {
	a.RecordCustomMetric("Custom/Network/Difficulty", float64(difficulty))
}
