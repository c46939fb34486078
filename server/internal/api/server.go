package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"robot-coach/server/internal/config"
	"robot-coach/server/internal/model"
	"robot-coach/server/internal/orchestrator"
	"robot-coach/server/internal/phase"
	"robot-coach/server/internal/session"
	"robot-coach/server/internal/timeline"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type Server struct {
	config       *config.Config
	orchestrator *orchestrator.Orchestrator
	hub          *StreamHub
	logger       *log.Logger

	// WebSocket upgrader
	upgrader websocket.Upgrader
}

// NewServer 创建 HTTP 服务，并把 websocket 广播注册为编排器的 Notifier。
func NewServer(cfg *config.Config, orch *orchestrator.Orchestrator) *Server {
	logger := log.Default()
	hub := NewStreamHub(logger)
	orch.WithNotifier(hub)

	s := &Server{
		config:       cfg,
		orchestrator: orch,
		hub:          hub,
		logger:       logger,
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			// 非浏览器客户端不带 Origin。
			return origin == "" || s.originAllowed(origin)
		},
	}
	return s
}

func (s *Server) Hub() *StreamHub {
	return s.hub
}

func (s *Server) Routes() http.Handler {
	// Gin 统一承载中间件与路由，便于扩展日志/鉴权/限流等能力。
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery(), s.corsMiddleware())
	engine.GET("/healthz", s.handleHealthz)
	engine.GET("/api/triggers", s.handleTriggers)
	engine.GET("/api/scenarios", s.handleScenarios)

	sessions := engine.Group("/api/sessions")
	sessions.GET("", s.handleListSessions)
	sessions.POST("", s.handleCreateSession)
	sessions.GET("/:id", s.handleSessionDetails)
	sessions.POST("/:id/triggers", s.handleTrigger)
	sessions.POST("/:id/force-end", s.handleForceEnd)
	sessions.POST("/:id/reset", s.handleReset)
	sessions.POST("/:id/rating", s.handleRating)
	sessions.GET("/:id/statistics", s.handleStatistics)
	sessions.GET("/:id/evaluation", s.handleEvaluation)
	sessions.GET("/:id/stream", s.handleSessionStream)
	return engine
}

// handleHealthz 返回服务健康状态。
func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleTriggers 返回按分组排列的全部触发器。
func (s *Server) handleTriggers(c *gin.Context) {
	c.JSON(http.StatusOK, s.orchestrator.Catalog().Groups())
}

func (s *Server) handleScenarios(c *gin.Context) {
	c.JSON(http.StatusOK, s.orchestrator.Scenarios())
}

func (s *Server) handleListSessions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	list, err := s.orchestrator.ListSessions(c.Request.Context(), limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleCreateSession(c *gin.Context) {
	resp, err := s.orchestrator.CreateSession(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSessionDetails(c *gin.Context) {
	details, err := s.orchestrator.Details(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

// handleTrigger 处理 /api/sessions/{id}/triggers 路由，触发一次阶段转移。
func (s *Server) handleTrigger(c *gin.Context) {
	var evt model.TriggerEvent
	if err := c.ShouldBindJSON(&evt); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	// 这里将触发交给编排器，确保走 append-first 与快照归约。
	res, err := s.orchestrator.HandleEvent(c.Request.Context(), c.Param("id"), evt)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleForceEnd(c *gin.Context) {
	res, err := s.orchestrator.ForceEnd(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleReset(c *gin.Context) {
	if err := s.orchestrator.Reset(c.Request.Context(), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type ratingRequest struct {
	Supportive     *int `json:"supportive"`
	Understandable *int `json:"understandable"`
	NonIntrusive   *int `json:"non_intrusive"`
}

func (s *Server) handleRating(c *gin.Context) {
	var req ratingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	err := s.orchestrator.Rate(c.Request.Context(), c.Param("id"), model.Rating{
		Supportive:     req.Supportive,
		Understandable: req.Understandable,
		NonIntrusive:   req.NonIntrusive,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type statisticsResponse struct {
	phase.Statistics
	StateInfo phase.StateInfo `json:"state_info"`
}

func (s *Server) handleStatistics(c *gin.Context) {
	st, err := s.orchestrator.Statistics(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, statisticsResponse{Statistics: *st, StateInfo: phase.Describe(st.State)})
}

func (s *Server) handleEvaluation(c *gin.Context) {
	report, err := s.orchestrator.Evaluate(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// handleSessionStream 升级为 WebSocket，推送该会话的每一次转移结果。
func (s *Server) handleSessionStream(c *gin.Context) {
	sessionID := c.Param("id")
	s.logger.Printf("[API] 📞 WebSocket connection request for session: %s", sessionID)

	// 验证 Session 存在
	if _, err := s.orchestrator.Statistics(c.Request.Context(), sessionID); err != nil {
		s.logger.Printf("[API] ❌ Session not available: %s: %v", sessionID, err)
		s.writeError(c, err)
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Printf("[API] ❌ Failed to upgrade websocket: %v", err)
		return
	}
	s.logger.Printf("[API] ✅ WebSocket upgraded for session %s", sessionID)

	// 请求 context 在升级后仍然有效，直到 handler 返回。
	s.hub.Serve(c.Request.Context(), sessionID, conn, func(ctx context.Context, id, trigger string) error {
		_, err := s.orchestrator.HandleTrigger(ctx, id, trigger)
		return err
	})
}

// writeError 把领域错误映射为 HTTP 状态码；未知错误只记录日志，返回简洁信息。
func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, orchestrator.ErrEmptyTrigger), errors.Is(err, orchestrator.ErrInvalidRating):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, session.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errors.Is(err, session.ErrConflict), errors.Is(err, timeline.ErrConflict),
		errors.Is(err, orchestrator.ErrSessionEnded):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		s.logger.Printf("[API] ❌ %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (s *Server) originAllowed(origin string) bool {
	for _, o := range s.config.Server.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && s.originAllowed(origin) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
