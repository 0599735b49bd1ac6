package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"FitPulse_V0.1/internal/auth"
	"FitPulse_V0.1/internal/memory"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

var startTime = time.Now()

// agentInfo is the service metadata served at the root route.
var agentInfo = map[string]interface{}{
	"name":        "FitPulse Coach",
	"version":     "0.1.0",
	"description": "AI-powered fitness and nutrition coach",
	"capabilities": []string{
		"nutrition_tracking",
		"workout_planning",
		"conversation_memory",
		"real_time_coaching",
	},
	"apis": map[string]string{
		"nutrition": "Nutritionix API",
		"llm":       "OpenRouter",
	},
}

// ChatRequest is the inbound chat payload.
type ChatRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// chatEvent is one server-sent chat event.
type chatEvent struct {
	Content string `json:"content,omitempty"`
	Type    string `json:"type"`
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"https://*", "http://*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Platform"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	e.Use(LoggerMiddleware)

	e.GET("/", s.agentInfoHandler)
	e.GET("/health", s.healthHandler)

	// Chat & profile routes. Auth is a pass-through until a session
	// secret is configured.
	protected := e.Group("")
	protected.Use(auth.Middleware())

	protected.POST("/chat", s.chatHandler)
	protected.GET("/chat/ws", s.chatSocketHandler)
	protected.GET("/profile/:user_id", s.getProfileHandler)
	protected.PUT("/profile/:user_id", s.updateProfileHandler)

	return e
}

func LoggerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := c.Request().Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Response().Header().Set("X-Request-ID", requestID)

		logger := log.With().Str("request_id", requestID).Logger()

		c.Set("logger", &logger)

		return next(c)
	}
}

func (s *Server) agentInfoHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, agentInfo)
}

// healthHandler reports agent status, store health and basic system
// metrics.
func (s *Server) healthHandler(c echo.Context) error {
	v, _ := mem.VirtualMemory()
	cpuPercent, _ := cpu.Percent(0, false)
	hostUptime, _ := host.Uptime()

	system := map[string]interface{}{
		"host_uptime_s": hostUptime,
		"app_uptime_s":  int64(time.Since(startTime).Seconds()),
	}
	if len(cpuPercent) > 0 {
		system["cpu_load"] = fmt.Sprintf("%.1f%%", cpuPercent[0])
	}
	if v != nil {
		system["ram_usage"] = fmt.Sprintf("%.1f%%", v.UsedPercent)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"agent":  s.agent.Name(),
		"store":  s.store.Health(),
		"system": system,
	})
}

// resolveUserID prefers the authenticated identity over the one the
// request body claims, defaulting to "anonymous".
func resolveUserID(c echo.Context, claimed string) string {
	if id := auth.UserIDFromContext(c); id != "" {
		return id
	}
	if claimed != "" {
		return claimed
	}
	return "anonymous"
}

// chatHandler streams the coaching reply as server-sent events:
// data: {"content": ..., "type": "chunk"} per chunk, then a terminal
// data: {"type": "done"} event.
func (s *Server) chatHandler(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if req.Message == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Message is required"})
	}

	userID := resolveUserID(c, req.UserID)

	preview := req.Message
	if len(preview) > 50 {
		preview = strings.ToValidUTF8(preview[:50], "")
	}
	log.Info().Str("user_id", userID).Str("message", preview).Msg("Chat request")

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeEvent := func(event chatEvent) error {
		payload, err := json.Marshal(event)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return err
		}
		w.Flush()
		return nil
	}

	// The request context is cancelled when the client disconnects,
	// which abandons the stream without recording the turn.
	s.agent.ProcessMessage(c.Request().Context(), userID, req.Message, func(chunk string) error {
		return writeEvent(chatEvent{Content: chunk, Type: "chunk"})
	})

	if err := writeEvent(chatEvent{Type: "done"}); err != nil {
		log.Debug().Err(err).Msg("Client gone before done event")
	}
	return nil
}

func (s *Server) getProfileHandler(c echo.Context) error {
	userID := resolveUserID(c, c.Param("user_id"))
	return c.JSON(http.StatusOK, s.store.GetContext(c.Request().Context(), userID))
}

func (s *Server) updateProfileHandler(c echo.Context) error {
	userID := resolveUserID(c, c.Param("user_id"))

	var updates memory.ProfileUpdate
	if err := c.Bind(&updates); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	if err := s.store.UpdateProfile(c.Request().Context(), userID, updates); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to update profile")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update profile"})
	}

	return c.JSON(http.StatusOK, s.store.GetContext(c.Request().Context(), userID))
}
