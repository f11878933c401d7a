package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/packsight/packsight/engine"
	"github.com/packsight/packsight/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Server exposes one analysis session over HTTP. All state lives in the
// session; the server is just routing, encoding and backpressure.
type Server struct {
	cfg     *config.Config
	session *engine.Session
	log     *logrus.Logger
	hub     *hub
}

// NewServer wires a server around an existing session. The server takes
// over the session's load-event stream for its websocket clients.
func NewServer(cfg *config.Config, session *engine.Session, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{
		cfg:     cfg,
		session: session,
		log:     log,
		hub:     newHub(log),
	}
	go s.hub.relay(session.Subscribe())
	return s
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.health)
	r.GET("/ws", s.hub.handleWS)

	api := r.Group("/api/v1")
	api.Use(rateLimit(s.cfg.Server.RateLimit, s.cfg.Server.RateBurst))
	{
		api.POST("/load", s.load)
		api.GET("/result", s.result)
		api.GET("/sheets/:name", s.sheet)
		api.GET("/stats", s.stats)
		api.GET("/downsample", s.downsampled)
	}
	return r
}

// Run serves until the listener fails.
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%d", s.cfg.Server.Port)
	s.log.WithField("addr", addr).Info("Starting API server")
	return s.Router().Run(addr)
}

// rateLimit is a token-bucket limiter shared by all API routes.
func rateLimit(limit float64, burst int) gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(limit), burst)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// respond writes v as JSON through jsoniter rather than gin's default
// encoder; the result payload is large and this path is hot.
func respond(c *gin.Context, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(status, "application/json; charset=utf-8", data)
}
