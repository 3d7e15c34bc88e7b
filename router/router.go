package router

import (
	"database/sql"
	"net/http"

	docHandler "markpad/internal/document"
	"markpad/internal/document/repository"
	"markpad/internal/document/service"
	"markpad/middleware"
	"markpad/socket"

	"github.com/rs/cors"
)

func Setup(db *sql.DB, hub *socket.Hub) http.Handler {
	mux := http.NewServeMux()

	// WebSocket
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		socket.ServeWs(hub, w, r)
	})

	// REST API
	docRepo := repository.NewDocumentRepository(db)
	docService := service.NewDocumentService(docRepo, hub)
	h := docHandler.NewDocumentHandler(docService)

	mux.HandleFunc("POST /api/documents", h.CreateDocument)
	mux.HandleFunc("GET /api/documents", h.ListDocuments)
	mux.HandleFunc("GET /api/documents/{id}", h.GetDocument)
	mux.HandleFunc("PUT /api/documents/{id}", h.UpdateDocument)
	mux.HandleFunc("GET /api/share/{token}", h.GetSharedDocument)
	mux.HandleFunc("GET /api/health", h.Health)
	mux.HandleFunc("GET /{$}", h.Root)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})

	return c.Handler(middleware.Recovery(middleware.Logging(mux)))
}
