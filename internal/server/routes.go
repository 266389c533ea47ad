package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

func (s *Server) setupRoutes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	r.HandleFunc("/chat", s.handleChat).Methods(http.MethodPost)
	r.HandleFunc("/chat/simple", s.handleChatSimple).Methods(http.MethodPost)
	r.HandleFunc("/analyze", s.handleAnalyze).Methods(http.MethodPost)

	r.HandleFunc("/config", s.handleGetConfig).Methods(http.MethodGet)
	r.HandleFunc("/config", s.handleUpdateConfig).Methods(http.MethodPost)
	r.HandleFunc("/reload", s.handleReload).Methods(http.MethodPost)

	r.HandleFunc("/ws", s.handleWebSocket)

	return r
}
