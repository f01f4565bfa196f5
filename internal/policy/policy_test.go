package policy

import (
	"sync"
	"testing"
	"time"

	"github.com/cyberia-to/uhash/internal/config"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}

	if !cfg.Enabled {
		t.Error("Enabled should be true by default")
	}

	if cfg.MaxRequestsPerIP != 120 {
		t.Errorf("MaxRequestsPerIP = %d, want 120", cfg.MaxRequestsPerIP)
	}

	if cfg.BanThreshold != 3 {
		t.Errorf("BanThreshold = %d, want 3", cfg.BanThreshold)
	}

	if cfg.BanDuration != 15*time.Minute {
		t.Errorf("BanDuration = %v, want 15m", cfg.BanDuration)
	}
}

func TestFromSecurityConfig(t *testing.T) {
	sec := config.SecurityConfig{
		MaxRequestsPerIP: 60,
		BanThreshold:     5,
		BanDuration:      10 * time.Minute,
	}

	cfg := FromSecurityConfig(sec)
	if !cfg.Enabled {
		t.Error("Enabled should be true when MaxRequestsPerIP > 0")
	}
	if cfg.MaxRequestsPerIP != 60 {
		t.Errorf("MaxRequestsPerIP = %d, want 60", cfg.MaxRequestsPerIP)
	}
	if cfg.BanThreshold != 5 {
		t.Errorf("BanThreshold = %d, want 5", cfg.BanThreshold)
	}

	disabled := FromSecurityConfig(config.SecurityConfig{})
	if disabled.Enabled {
		t.Error("Enabled should be false when MaxRequestsPerIP is zero")
	}
}

func TestNewPolicyServer(t *testing.T) {
	ps := NewPolicyServer(nil)
	if ps == nil {
		t.Fatal("NewPolicyServer returned nil")
	}
	if ps.config == nil {
		t.Fatal("PolicyServer.config should not be nil")
	}

	cfg := &Config{Enabled: true, MaxRequestsPerIP: 5}
	ps = NewPolicyServer(cfg)
	if ps.config.MaxRequestsPerIP != 5 {
		t.Errorf("MaxRequestsPerIP = %d, want 5", ps.config.MaxRequestsPerIP)
	}
}

func TestIsBannedInitiallyFalse(t *testing.T) {
	ps := NewPolicyServer(DefaultConfig())
	if ps.IsBanned("192.168.1.100") {
		t.Error("IP should not be banned initially")
	}
}

func TestIsBannedDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false
	cfg.MaxRequestsPerIP = 1
	cfg.BanThreshold = 1
	ps := NewPolicyServer(cfg)

	ip := "192.168.1.100"
	for i := 0; i < 100; i++ {
		ps.Allow(ip)
	}

	if ps.IsBanned(ip) {
		t.Error("IP should never be banned when policy is disabled")
	}
}

func TestAllowWithinBudget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRequestsPerIP = 3
	ps := NewPolicyServer(cfg)

	ip := "192.168.1.100"
	for i := 0; i < 3; i++ {
		if !ps.Allow(ip) {
			t.Errorf("request %d should be within budget", i+1)
		}
	}
}

func TestAllowBansAfterRepeatedOverruns(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRequestsPerIP = 2
	cfg.BanThreshold = 2
	ps := NewPolicyServer(cfg)

	ip := "192.168.1.100"

	// First window: 2 allowed, 3rd is the first overrun but doesn't ban yet.
	for i := 0; i < 2; i++ {
		ps.Allow(ip)
	}
	if !ps.Allow(ip) {
		t.Error("first overrun should not ban immediately")
	}
	if ps.IsBanned(ip) {
		t.Error("IP should not be banned after a single overrun")
	}

	// Continued requests in the same window keep overrunning the budget
	// until BanThreshold consecutive overruns trip the ban.
	var banned bool
	for i := 0; i < 5; i++ {
		if !ps.Allow(ip) {
			banned = true
			break
		}
	}

	if !banned {
		t.Error("IP should eventually be banned after repeated overruns")
	}
	if !ps.IsBanned(ip) {
		t.Error("IsBanned should report true once Allow denies a request")
	}
}

func TestAllowDisabledAlwaysTrue(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false
	ps := NewPolicyServer(cfg)

	ip := "192.168.1.100"
	for i := 0; i < 1000; i++ {
		if !ps.Allow(ip) {
			t.Error("Allow should always return true when policy is disabled")
		}
	}
}

func TestRollWindowUnbansAfterDuration(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRequestsPerIP = 1
	cfg.BanThreshold = 1
	cfg.BanDuration = 0 // expires immediately on the next roll
	ps := NewPolicyServer(cfg)

	ip := "192.168.1.100"
	ps.Allow(ip)
	if !ps.IsBanned(ip) {
		ps.Allow(ip)
	}
	if !ps.IsBanned(ip) {
		t.Fatal("setup failed: IP should be banned before testing expiry")
	}

	ps.rollWindow()

	if ps.IsBanned(ip) {
		t.Error("ban should have expired after rollWindow with zero BanDuration")
	}
}

func TestGetStats(t *testing.T) {
	ps := NewPolicyServer(DefaultConfig())

	total, banned := ps.GetStats()
	if total != 0 || banned != 0 {
		t.Errorf("expected empty stats, got total=%d banned=%d", total, banned)
	}

	ps.getStats("192.168.1.1")
	ps.getStats("192.168.1.2")

	cfg := DefaultConfig()
	cfg.MaxRequestsPerIP = 0
	cfg.BanThreshold = 1
	banPs := NewPolicyServer(cfg)
	banPs.Allow("192.168.1.3")
	banPs.Allow("192.168.1.3")

	total, _ = ps.GetStats()
	if total != 2 {
		t.Errorf("Total = %d, want 2", total)
	}
}

func TestMiddlewareUnconfiguredPassesThrough(t *testing.T) {
	ps := NewPolicyServer(&Config{Enabled: false})
	mw := ps.Middleware()
	if mw == nil {
		t.Fatal("Middleware() returned nil")
	}
}

func TestConcurrentAccess(t *testing.T) {
	ps := NewPolicyServer(DefaultConfig())

	var wg sync.WaitGroup
	ips := []string{"192.168.1.1", "192.168.1.2", "192.168.1.3"}

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			ip := ips[id%len(ips)]

			for j := 0; j < 100; j++ {
				ps.IsBanned(ip)
				ps.Allow(ip)
			}
		}(i)
	}

	wg.Wait()

	total, _ := ps.GetStats()
	if total == 0 {
		t.Error("Should have tracked some IPs")
	}
}

func BenchmarkIsBanned(b *testing.B) {
	ps := NewPolicyServer(DefaultConfig())
	ip := "192.168.1.100"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ps.IsBanned(ip)
	}
}

func BenchmarkAllow(b *testing.B) {
	cfg := DefaultConfig()
	cfg.MaxRequestsPerIP = 1000000000 // Prevent banning during benchmark
	ps := NewPolicyServer(cfg)
	ip := "192.168.1.100"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ps.Allow(ip)
	}
}
