package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/npezzotti/gosocial/internal/auth"
	"github.com/npezzotti/gosocial/internal/config"
	"github.com/npezzotti/gosocial/internal/database"
	"github.com/npezzotti/gosocial/internal/docstore"
	"github.com/npezzotti/gosocial/internal/server"
)

type GoSocialApp struct {
	log            *log.Logger
	db             database.GoSocialRepository
	docs           docstore.MessageStore
	srv            *http.Server
	cs             *server.ChatServer
	tokens         *auth.TokenIssuer
	allowedOrigins []string
}

func NewGoSocialApp(mux *http.ServeMux, logger *log.Logger, cs *server.ChatServer, db database.GoSocialRepository, docs docstore.MessageStore, cfg *config.Config) *GoSocialApp {
	s := &GoSocialApp{
		log:            logger,
		db:             db,
		docs:           docs,
		cs:             cs,
		tokens:         auth.NewTokenIssuer(cfg.SigningKey),
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("POST /api/auth/register", s.createAccount)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("GET /api/auth/session", s.authMiddleware(s.session))
	mux.HandleFunc("GET /api/auth/logout", s.authMiddleware(s.logout))
	mux.HandleFunc("/api/account", s.authMiddleware(s.account))
	mux.HandleFunc("GET /api/friends", s.authMiddleware(s.listFriends))
	mux.HandleFunc("DELETE /api/friends/{user_id}", s.authMiddleware(s.removeFriend))
	mux.HandleFunc("GET /api/friends/requests", s.authMiddleware(s.listFriendRequests))
	mux.HandleFunc("POST /api/friends/requests", s.authMiddleware(s.createFriendRequest))
	mux.HandleFunc("POST /api/friends/requests/{id}/accept", s.authMiddleware(s.acceptFriendRequest))
	mux.HandleFunc("DELETE /api/friends/requests/{id}", s.authMiddleware(s.deleteFriendRequest))
	mux.HandleFunc("POST /api/posts", s.authMiddleware(s.createPost))
	mux.HandleFunc("GET /api/posts/{id}", s.authMiddleware(s.getPost))
	mux.HandleFunc("GET /ws", s.serveWs)

	var h http.Handler = handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)
	if logger != nil {
		h = handlers.LoggingHandler(logger.Writer(), h)
	}

	s.srv = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return s
}

func (s *GoSocialApp) Handler() http.Handler {
	return s.srv.Handler
}

func (s *GoSocialApp) Start() error {
	s.log.Printf("starting server on %s\n", s.srv.Addr)
	return s.srv.ListenAndServe()
}

func (s *GoSocialApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
