package api

import (
	"errors"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/gosocial/internal/auth"
	"github.com/npezzotti/gosocial/internal/database"
)

// serveWs authenticates the handshake before upgrading. Rejected requests
// never reach the chat server.
func (s *GoSocialApp) serveWs(w http.ResponseWriter, r *http.Request) {
	userId, err := s.tokens.Resolve(auth.FromRequest(r))
	if err != nil {
		s.log.Printf("ws: rejected handshake: %v", err)
		s.writeError(w, NewUnauthorizedError())
		return
	}

	if _, err := s.db.GetAccountById(r.Context(), userId); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.writeError(w, NewUnauthorizedError())
			return
		}
		s.storeError(w, "ws: get account", err)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// only allow connections from allowed origins
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	s.cs.Serve(conn, userId)
}
