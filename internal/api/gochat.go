package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/npezzotti/gossip/internal/auth"
	"github.com/npezzotti/gossip/internal/blobstore"
	"github.com/npezzotti/gossip/internal/config"
	"github.com/npezzotti/gossip/internal/database"
	"github.com/npezzotti/gossip/internal/server"
)

// SessionManager authenticates credentials and issues new ones.
type SessionManager interface {
	auth.Authenticator
	CreateToken(userId int, exp time.Duration) (string, error)
}

type GoChatApp struct {
	log            *log.Logger
	db             database.Repository
	blobs          blobstore.ObjectStore
	authn          SessionManager
	mux            *http.Server
	cs             *server.ChatServer
	allowedOrigins []string
}

func NewGoChatApp(mux *http.ServeMux, logger *log.Logger, cs *server.ChatServer, db database.Repository,
	blobs blobstore.ObjectStore, authn SessionManager, cfg *config.Config) *GoChatApp {
	s := &GoChatApp{
		log:            logger,
		db:             db,
		blobs:          blobs,
		authn:          authn,
		cs:             cs,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("POST /api/auth/register", s.createAccount)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("GET /api/auth/logout", s.authMiddleware(s.logout))
	mux.HandleFunc("GET /api/auth/session", s.authMiddleware(s.session))
	mux.HandleFunc("PUT /api/account/avatar", s.authMiddleware(s.updateAvatar))
	mux.HandleFunc("GET /api/users/search", s.authMiddleware(s.searchUsers))

	mux.HandleFunc("POST /api/chats", s.authMiddleware(s.createGroup))
	mux.HandleFunc("GET /api/chats/mine", s.authMiddleware(s.myChats))
	mux.HandleFunc("GET /api/chats/groups", s.authMiddleware(s.myGroups))
	mux.HandleFunc("GET /api/chats/{id}", s.authMiddleware(s.chatDetails))
	mux.HandleFunc("PUT /api/chats/{id}", s.authMiddleware(s.renameGroup))
	mux.HandleFunc("DELETE /api/chats/{id}", s.authMiddleware(s.deleteChat))
	mux.HandleFunc("PUT /api/chats/{id}/members", s.authMiddleware(s.addMembers))
	mux.HandleFunc("DELETE /api/chats/{id}/members/{userId}", s.authMiddleware(s.removeMember))
	mux.HandleFunc("DELETE /api/chats/{id}/leave", s.authMiddleware(s.leaveGroup))
	mux.HandleFunc("POST /api/chats/{id}/messages", s.authMiddleware(s.sendAttachments))
	mux.HandleFunc("GET /api/chats/{id}/messages", s.authMiddleware(s.getMessages))
	mux.HandleFunc("DELETE /api/messages/{id}", s.authMiddleware(s.deleteMessage))

	mux.HandleFunc("POST /api/requests", s.authMiddleware(s.sendFriendRequest))
	mux.HandleFunc("PUT /api/requests/{id}", s.authMiddleware(s.answerFriendRequest))
	mux.HandleFunc("GET /api/requests", s.authMiddleware(s.listFriendRequests))
	mux.HandleFunc("GET /api/friends", s.authMiddleware(s.listFriends))

	mux.HandleFunc("GET /ws", s.serveWs)

	if cfg.UploadDir != "" {
		mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir))))
	}

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	s.mux = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return s
}

func (s *GoChatApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *GoChatApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
