// Package api provides the miner status HTTP API.
package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/cyberia-to/uhash/internal/config"
	"github.com/cyberia-to/uhash/internal/policy"
	"github.com/cyberia-to/uhash/internal/storage"
	"github.com/cyberia-to/uhash/internal/util"
)

// UpstreamStateFunc is a callback to get upstream states.
type UpstreamStateFunc func() []UpstreamStatus

// UpstreamStatus represents the status of an upstream node.
type UpstreamStatus struct {
	Name         string  `json:"name"`
	URL          string  `json:"url"`
	Healthy      bool    `json:"healthy"`
	ResponseTime float64 `json:"response_time_ms"`
	Height       uint64  `json:"height"`
	Weight       int     `json:"weight"`
	FailCount    int32   `json:"fail_count"`
	SuccessCount int32   `json:"success_count"`
}

// StatusFunc is a callback returning the current miner status, supplied
// by the caller (typically the miner.Coordinator wiring in main).
type StatusFunc func() StatusResponse

// StatusResponse is the /status response.
type StatusResponse struct {
	Address         string  `json:"address"`
	Threads         int     `json:"threads"`
	HashesPerSecond float64 `json:"hashrate"`
	TotalHashes     uint64  `json:"total_hashes"`
	ProofsFound     uint64  `json:"proofs_found"`
	Difficulty      uint32  `json:"difficulty"`
	Now             int64   `json:"now"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server is the status API server.
type Server struct {
	cfg    *config.Config
	redis  *storage.RedisClient
	router *gin.Engine
	server *http.Server

	statusFunc StatusFunc

	statsCacheMu   sync.RWMutex
	statsCache     *StatusResponse
	statsCacheTime time.Time

	upstreamStateFunc UpstreamStateFunc

	wsClientsMu sync.Mutex
	wsClients   map[*websocket.Conn]struct{}

	policy *policy.PolicyServer
}

// NewServer creates a new API server.
func NewServer(cfg *config.Config, redis *storage.RedisClient) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		cfg:       cfg,
		redis:     redis,
		router:    router,
		wsClients: make(map[*websocket.Conn]struct{}),
		policy:    policy.NewPolicyServer(policy.FromSecurityConfig(cfg.Security)),
	}

	s.policy.Start()
	s.setupRoutes()
	return s
}

// SetStatusFunc sets the callback used to answer /status requests.
func (s *Server) SetStatusFunc(fn StatusFunc) {
	s.statusFunc = fn
}

// SetUpstreamStateFunc sets the callback for getting upstream states.
func (s *Server) SetUpstreamStateFunc(fn UpstreamStateFunc) {
	s.upstreamStateFunc = fn
}

func (s *Server) setupRoutes() {
	s.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})
	s.router.Use(s.policy.Middleware())

	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	s.router.GET("/status", s.handleStatus)
	s.router.GET("/status/ws", s.handleStatusWebSocket)
	s.router.GET("/proofs", s.handleProofs)
	s.router.GET("/proofs/:address", s.handleAddressProofs)
	s.router.GET("/upstreams", s.handleUpstreams)
	s.router.GET("/hashrate/:session", s.handleHashrateHistory)
}

// Start begins the API server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    s.cfg.API.Bind,
		Handler: s.router,
	}

	util.Infof("API server listening on %s", s.cfg.API.Bind)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			util.Errorf("API server error: %v", err)
		}
	}()

	return nil
}

// Stop shuts down the API server.
func (s *Server) Stop() error {
	s.policy.Stop()
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

func (s *Server) handleStatus(c *gin.Context) {
	s.statsCacheMu.RLock()
	if s.statsCache != nil && time.Since(s.statsCacheTime) < s.cfg.API.StatsCache {
		cache := s.statsCache
		s.statsCacheMu.RUnlock()
		c.JSON(200, cache)
		return
	}
	s.statsCacheMu.RUnlock()

	response := s.currentStatus()

	s.statsCacheMu.Lock()
	s.statsCache = &response
	s.statsCacheTime = time.Now()
	s.statsCacheMu.Unlock()

	c.JSON(200, response)
}

func (s *Server) currentStatus() StatusResponse {
	if s.statusFunc == nil {
		return StatusResponse{Now: time.Now().Unix()}
	}
	response := s.statusFunc()
	response.Now = time.Now().Unix()
	return response
}

// handleStatusWebSocket streams the status response on a ticker, used by
// dashboards that want live hashrate updates without polling.
func (s *Server) handleStatusWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		util.Errorf("websocket upgrade failed: %v", err)
		return
	}

	s.wsClientsMu.Lock()
	s.wsClients[conn] = struct{}{}
	s.wsClientsMu.Unlock()

	defer func() {
		s.wsClientsMu.Lock()
		delete(s.wsClients, conn)
		s.wsClientsMu.Unlock()
		conn.Close()
	}()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		if err := conn.WriteJSON(s.currentStatus()); err != nil {
			return
		}
	}
}

func (s *Server) handleProofs(c *gin.Context) {
	if s.redis == nil {
		c.JSON(200, gin.H{"proofs": []storage.FoundProof{}})
		return
	}

	proofs, err := s.redis.GetRecentProofs(50)
	if err != nil {
		c.JSON(500, gin.H{"error": "failed to get proofs"})
		return
	}

	c.JSON(200, gin.H{"proofs": proofs})
}

func (s *Server) handleAddressProofs(c *gin.Context) {
	address := c.Param("address")
	if !util.ValidateAddress(address) {
		c.JSON(400, gin.H{"error": "invalid address"})
		return
	}

	if s.redis == nil {
		c.JSON(200, gin.H{"proofs": []storage.FoundProof{}})
		return
	}

	proofs, err := s.redis.GetAddressProofs(address, 100)
	if err != nil {
		c.JSON(500, gin.H{"error": "failed to get proofs"})
		return
	}

	c.JSON(200, gin.H{"address": address, "proofs": proofs})
}

func (s *Server) handleHashrateHistory(c *gin.Context) {
	session := c.Param("session")

	if s.redis == nil {
		c.JSON(200, gin.H{"samples": []storage.HashrateSample{}})
		return
	}

	history, err := s.redis.GetHashrateHistory(session, 24)
	if err != nil {
		c.JSON(500, gin.H{"error": "failed to get hashrate history"})
		return
	}

	c.JSON(200, gin.H{"session": session, "samples": history})
}

func (s *Server) handleUpstreams(c *gin.Context) {
	if s.upstreamStateFunc == nil {
		c.JSON(200, gin.H{
			"upstreams": []UpstreamStatus{},
			"total":     0,
			"healthy":   0,
			"active":    "",
		})
		return
	}

	upstreams := s.upstreamStateFunc()

	healthyCount := 0
	var activeUpstream string
	for _, u := range upstreams {
		if u.Healthy {
			healthyCount++
			if activeUpstream == "" {
				activeUpstream = u.Name
			}
		}
	}

	c.JSON(200, gin.H{
		"upstreams": upstreams,
		"total":     len(upstreams),
		"healthy":   healthyCount,
		"active":    activeUpstream,
	})
}
