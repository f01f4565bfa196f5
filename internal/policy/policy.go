// Package policy implements request-rate guarding for the miner status API.
package policy

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cyberia-to/uhash/internal/config"
	"github.com/cyberia-to/uhash/internal/util"
)

// Config holds policy configuration.
type Config struct {
	Enabled bool

	// MaxRequestsPerIP is the request budget per ResetInterval window.
	MaxRequestsPerIP int32

	// BanThreshold is how many over-budget requests an IP may make before it
	// gets temporarily banned. The count carries over into the next window
	// only while the IP keeps exceeding its budget.
	BanThreshold int32

	// BanDuration is how long a banned IP stays banned.
	BanDuration time.Duration

	// ResetInterval is how often the per-IP request counter rolls over.
	ResetInterval time.Duration
}

// FromSecurityConfig builds a policy Config from the loaded API security
// settings.
func FromSecurityConfig(cfg config.SecurityConfig) *Config {
	return &Config{
		Enabled:          cfg.MaxRequestsPerIP > 0,
		MaxRequestsPerIP: int32(cfg.MaxRequestsPerIP),
		BanThreshold:     int32(cfg.BanThreshold),
		BanDuration:      cfg.BanDuration,
		ResetInterval:    time.Minute,
	}
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:          true,
		MaxRequestsPerIP: 120,
		BanThreshold:     3,
		BanDuration:      15 * time.Minute,
		ResetInterval:    time.Minute,
	}
}

// ipStats tracks per-IP request activity within the current window.
type ipStats struct {
	mu        sync.Mutex
	Requests  int32
	Overruns  int32 // over-budget requests since the last window that stayed within budget
	BannedAt  int64 // unix millis, 0 = not banned
	Banned    int32 // atomic flag, 1 = banned
	LastBeat  int64
}

// PolicyServer guards the status API against a single misbehaving client
// consuming it in a tight loop.
type PolicyServer struct {
	config *Config

	statsMu sync.RWMutex
	stats   map[string]*ipStats

	quit chan struct{}
	wg   sync.WaitGroup
}

// NewPolicyServer creates a new policy server.
func NewPolicyServer(cfg *Config) *PolicyServer {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	return &PolicyServer{
		config: cfg,
		stats:  make(map[string]*ipStats),
		quit:   make(chan struct{}),
	}
}

// Start begins the policy server's background reset loop.
func (p *PolicyServer) Start() {
	if !p.config.Enabled {
		return
	}

	util.Info("Starting policy server...")
	p.wg.Add(1)
	go p.resetLoop()
}

// Stop shuts down the policy server.
func (p *PolicyServer) Stop() {
	if !p.config.Enabled {
		return
	}

	close(p.quit)
	p.wg.Wait()
	util.Info("Policy server stopped")
}

func (p *PolicyServer) resetLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.ResetInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.quit:
			return
		case <-ticker.C:
			p.rollWindow()
		}
	}
}

// rollWindow rolls every IP's request counter over to a fresh window,
// unbanning IPs whose ban has expired and evicting entries that have gone
// quiet.
func (p *PolicyServer) rollWindow() {
	now := time.Now().UnixMilli()
	banMillis := p.config.BanDuration.Milliseconds()
	staleMillis := 10 * p.config.ResetInterval.Milliseconds()

	p.statsMu.Lock()
	defer p.statsMu.Unlock()

	for ip, stats := range p.stats {
		stats.mu.Lock()

		if stats.BannedAt > 0 && now-stats.BannedAt >= banMillis {
			stats.BannedAt = 0
			stats.Overruns = 0
			if atomic.CompareAndSwapInt32(&stats.Banned, 1, 0) {
				util.Infof("policy: ban expired for %s", ip)
			}
		}

		if stats.Requests <= p.config.MaxRequestsPerIP {
			stats.Overruns = 0
		}
		stats.Requests = 0

		if now-stats.LastBeat >= staleMillis && stats.Banned == 0 {
			stats.mu.Unlock()
			delete(p.stats, ip)
			continue
		}

		stats.mu.Unlock()
	}
}

func (p *PolicyServer) getStats(ip string) *ipStats {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()

	stats, ok := p.stats[ip]
	if !ok {
		stats = &ipStats{LastBeat: time.Now().UnixMilli()}
		p.stats[ip] = stats
	} else {
		stats.LastBeat = time.Now().UnixMilli()
	}

	return stats
}

// IsBanned reports whether an IP is currently banned.
func (p *PolicyServer) IsBanned(ip string) bool {
	if !p.config.Enabled {
		return false
	}

	stats := p.getStats(ip)
	return atomic.LoadInt32(&stats.Banned) > 0
}

// Allow records a request from ip and reports whether it is allowed. Once
// BanThreshold requests have exceeded the budget (counted across consecutive
// over-budget windows), the request is denied and the IP is banned for
// BanDuration.
func (p *PolicyServer) Allow(ip string) bool {
	if !p.config.Enabled {
		return true
	}

	stats := p.getStats(ip)
	if atomic.LoadInt32(&stats.Banned) > 0 {
		return false
	}

	stats.mu.Lock()
	defer stats.mu.Unlock()

	stats.Requests++
	if stats.Requests <= p.config.MaxRequestsPerIP {
		return true
	}

	stats.Overruns++
	if stats.Overruns < p.config.BanThreshold {
		return true
	}

	stats.BannedAt = time.Now().UnixMilli()
	if atomic.CompareAndSwapInt32(&stats.Banned, 0, 1) {
		util.Warnf("policy: banning %s for %v after %d budget overruns", ip, p.config.BanDuration, stats.Overruns)
	}

	return false
}

// GetStats returns the number of tracked and currently banned IPs.
func (p *PolicyServer) GetStats() (total, banned int) {
	p.statsMu.RLock()
	defer p.statsMu.RUnlock()

	total = len(p.stats)
	for _, stats := range p.stats {
		if atomic.LoadInt32(&stats.Banned) > 0 {
			banned++
		}
	}
	return
}

// Middleware returns a gin middleware that rejects requests from banned IPs
// and counts every request against its source IP's budget.
func (p *PolicyServer) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		if !p.Allow(ip) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}

		c.Next()
	}
}
