package http

import (
	"net/http"
	"time"

	"vaultmesh/internal/config"
	"vaultmesh/internal/domain"
	"vaultmesh/internal/infra/peer"
	"vaultmesh/internal/infra/ratelimit"
	"vaultmesh/internal/usecase"

	"github.com/gin-gonic/gin"
)

type Server struct {
	cfg    config.Config
	ledger *usecase.Ledger
	guard  *peer.Guard
	r      *gin.Engine

	rateLimiter       domain.RateLimiter
	rateLimitRequests int
	rateLimitWindow   time.Duration
}

func NewServer(cfg config.Config, ledger *usecase.Ledger) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		cfg:    cfg,
		ledger: ledger,
		guard:  peer.LoadGuard(cfg.PeersFile),
		r:      r,
	}
	s.initRateLimit(nil)
	s.routes()
	return s
}

// NewServerWithDeps lets tests inject a limiter and guard without
// touching the environment.
func NewServerWithDeps(cfg config.Config, ledger *usecase.Ledger, guard *peer.Guard, limiter domain.RateLimiter) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		cfg:    cfg,
		ledger: ledger,
		guard:  guard,
		r:      r,
	}
	s.initRateLimit(limiter)
	s.routes()
	return s
}

func (s *Server) initRateLimit(override domain.RateLimiter) {
	if override != nil {
		s.rateLimiter = override
	}
	if s.rateLimiter == nil && s.cfg.RateLimitRequests > 0 {
		if s.cfg.RedisAddr != "" {
			if limiter, err := ratelimit.NewRedisLimiter(s.cfg.RedisAddr, s.cfg.RedisPassword, s.cfg.RedisDB, nil); err == nil {
				s.rateLimiter = limiter
			}
		}
		if s.rateLimiter == nil {
			s.rateLimiter = ratelimit.NewMemoryLimiter(nil)
		}
	}
	s.rateLimitRequests = s.cfg.RateLimitRequests
	s.rateLimitWindow = s.cfg.RateLimitWindow()
}

func (s *Server) routes() {
	v1 := s.r.Group("/v1")
	{
		v1.GET("/health", s.handleHealth)
		v1.GET("/ledger/:digest", s.handleGetDocument)
		v1.POST("/verify", s.handleVerify)
	}

	s.r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})
}

func (s *Server) Handler() http.Handler {
	return s.r
}

func (s *Server) Run() error {
	return s.r.Run(s.cfg.HTTPAddr)
}
