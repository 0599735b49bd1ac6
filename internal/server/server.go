/*
Package server implements the application's network transport layer.
It initializes the HTTP server, configures timeouts, and wires the
coaching pipeline behind the chat routes.
*/
package server

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"FitPulse_V0.1/internal/coach"
	"FitPulse_V0.1/internal/exercise"
	"FitPulse_V0.1/internal/intent"
	"FitPulse_V0.1/internal/llm"
	"FitPulse_V0.1/internal/memory"
	"FitPulse_V0.1/internal/nutrition"
	_ "github.com/joho/godotenv/autoload"
	"github.com/labstack/echo/v4"
)

// Server defines the configuration and dependencies for the HTTP service.
type Server struct {
	// port specifies the TCP port the server will listen on.
	port int

	// store persists per-user profiles and conversation history.
	store memory.Store

	// agent runs the message-processing pipeline.
	agent *coach.Agent

	// Echo is the underlying web framework instance.
	*echo.Echo
}

// NewServer initializes a new Server instance and returns a configured
// *http.Server. It reads configuration from environment variables and
// sets network timeouts that leave room for streamed replies.
func NewServer(store memory.Store) *http.Server {
	// Attempt to parse port from environment; fallback to 8080 if not set or invalid.
	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil || port == 0 {
		port = 8080
	}

	completion := llm.NewClient()
	agent := coach.New(
		completion,
		nutrition.NewClient(),
		intent.NewClassifier(completion),
		exercise.NewCatalog(),
		store,
	)

	newApp := &Server{
		port:  port,
		store: store,
		agent: agent,
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", newApp.port),
		Handler:      newApp.RegisterRoutes(), // Injected from routes.go
		IdleTimeout:  time.Minute,             // Time to wait for the next request on keep-alive connections.
		ReadTimeout:  10 * time.Second,        // Maximum duration for reading the entire request.
		WriteTimeout: 3 * time.Minute,         // Streamed chat replies can outlive a normal write window.
	}

	return server
}
