// Package api is the HTTP surface of synk: chat turns, emoji reactions, the
// read-only session and relationship views, and a websocket that streams
// turns over one connection.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/synk-web/synk/internal/character"
	"github.com/synk-web/synk/internal/chat"
	"github.com/synk-web/synk/internal/observe"
	"github.com/synk-web/synk/internal/scene"
	"github.com/synk-web/synk/pkg/memory"
)

// Service is the turn service behind the API. [*chat.Service] implements it.
type Service interface {
	Turn(ctx context.Context, req chat.TurnRequest) (*chat.TurnResponse, error)
	React(ctx context.Context, req chat.ReactionRequest) (*chat.ReactionResponse, error)
	Relationship(ctx context.Context, userID, characterID string) (*memory.RelationshipData, error)
	History(ctx context.Context, sessionID string) (scene.History, error)
	Scene(ctx context.Context, sessionID string) (*scene.Scene, error)
	Characters(ctx context.Context, locationID string) (*character.Location, []character.Character, error)
}

var _ Service = (*chat.Service)(nil)

// Server holds the handlers.
type Server struct {
	svc     Service
	metrics *observe.Metrics
	origins []string
}

// Option configures a [Server].
type Option func(*Server)

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithOriginPatterns allows cross-origin websocket clients whose Origin
// host matches one of patterns.
func WithOriginPatterns(patterns ...string) Option {
	return func(s *Server) { s.origins = append(s.origins, patterns...) }
}

// New creates a Server.
func New(svc Service, opts ...Option) *Server {
	s := &Server{svc: svc}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Handler returns the gin engine serving every route.
func (s *Server) Handler() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), observe.Middleware(s.metrics))
	s.Register(r)
	return r
}

// Register adds the API routes to r.
func (s *Server) Register(r gin.IRouter) {
	g := r.Group("/api")
	g.POST("/chat/location/:location_id", s.postTurn)
	g.GET("/chat/ws", s.chatSocket)
	g.GET("/chat/session/:session_id/history", s.getHistory)
	g.GET("/chat/session/:session_id/scene", s.getScene)
	g.POST("/reaction", s.postReaction)
	g.GET("/relationship/:user_id/:character_id", s.getRelationship)
	g.GET("/locations/:location_id/characters", s.getCharacters)
}

type turnBody struct {
	UserID    string `json:"user_id"`
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

func (s *Server) postTurn(c *gin.Context) {
	var body turnBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, chat.ErrValidation, err)
		return
	}
	resp, err := s.svc.Turn(c.Request.Context(), chat.TurnRequest{
		UserID:     body.UserID,
		LocationID: c.Param("location_id"),
		Message:    body.Message,
		SessionID:  body.SessionID,
	})
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) postReaction(c *gin.Context) {
	var req chat.ReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, chat.ErrValidation, err)
		return
	}
	resp, err := s.svc.React(c.Request.Context(), req)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) getRelationship(c *gin.Context) {
	rel, err := s.svc.Relationship(c.Request.Context(), c.Param("user_id"), c.Param("character_id"))
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, rel)
}

func (s *Server) getHistory(c *gin.Context) {
	sid := c.Param("session_id")
	h, err := s.svc.History(c.Request.Context(), sid)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": sid, "history": h, "total_turns": len(h)})
}

func (s *Server) getScene(c *gin.Context) {
	sc, err := s.svc.Scene(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, sc)
}

func (s *Server) getCharacters(c *gin.Context) {
	loc, roster, err := s.svc.Characters(c.Request.Context(), c.Param("location_id"))
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"location": loc, "characters": roster})
}

// statusOf maps service errors onto HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, chat.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, character.ErrNotFound),
		errors.Is(err, chat.ErrSessionNotFound),
		errors.Is(err, chat.ErrRelationshipNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError answers with {"error": ...}. detail, when set, is appended to
// the message of err.
func writeError(c *gin.Context, err, detail error) {
	status := statusOf(err)
	msg := err.Error()
	if detail != nil {
		msg += ": " + detail.Error()
	}
	if status == http.StatusInternalServerError {
		observe.Logger(c.Request.Context()).Error("api: request failed", "path", c.FullPath(), "err", err)
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
