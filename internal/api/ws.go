package api

import (
	"errors"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/gossip/internal/auth"
	"github.com/npezzotti/gossip/internal/server"
)

// serveWs authenticates the handshake before upgrading, so a connection
// that fails authentication never reaches the chat server.
func (s *GoChatApp) serveWs(w http.ResponseWriter, r *http.Request) {
	user, err := s.authn.Authenticate(auth.CredentialFromRequest(r))
	if err != nil {
		s.log.Printf("ws handshake rejected: %v", err)
		errResp := NewUnauthorizedError()
		if !errors.Is(err, auth.ErrUnauthenticated) {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
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

	client := server.NewClient(user, conn, s.cs, s.log)
	s.cs.RegisterClient(client)

	go client.Write()
	go client.Read()
}
