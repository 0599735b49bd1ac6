package server

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow CORS for development
	CheckOrigin: func(r *http.Request) bool { return true },
}

// chatSocketHandler is the websocket twin of the SSE chat endpoint:
// the client sends {user_id, message} frames and receives the same
// chunk/done events as JSON messages.
func (s *Server) chatSocketHandler(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	log.Info().Msg("WebSocket chat client connected")
	defer log.Info().Msg("WebSocket chat client disconnected")

	requests := make(chan ChatRequest)
	g, ctx := errgroup.WithContext(c.Request().Context())

	// ReadJSON only notices cancellation through a closed socket, so
	// force the read pump loose when the group winds down.
	go func() {
		<-ctx.Done()
		ws.Close()
	}()

	// Read pump: one chat request per frame until the client leaves.
	g.Go(func() error {
		defer close(requests)
		for {
			var req ChatRequest
			if err := ws.ReadJSON(&req); err != nil {
				return err
			}
			select {
			case requests <- req:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	// Processor: stream each reply back over the socket in order.
	g.Go(func() error {
		for req := range requests {
			if req.Message == "" {
				if err := ws.WriteJSON(chatEvent{Type: "error", Content: "Message is required"}); err != nil {
					return err
				}
				continue
			}

			userID := resolveUserID(c, req.UserID)
			s.agent.ProcessMessage(ctx, userID, req.Message, func(chunk string) error {
				return ws.WriteJSON(chatEvent{Content: chunk, Type: "chunk"})
			})

			if err := ws.WriteJSON(chatEvent{Type: "done"}); err != nil {
				return err
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		log.Debug().Err(err).Msg("WebSocket chat session ended")
	}
	return nil
}
