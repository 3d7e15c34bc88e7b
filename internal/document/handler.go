package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"markpad/internal/document/model"
	"markpad/internal/document/service"
	"markpad/pkg/logger"
)

type DocumentHandler struct {
	Service *service.DocumentService
}

func NewDocumentHandler(service *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{Service: service}
}

func (h *DocumentHandler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var req model.CreateDocRequest
	_ = json.NewDecoder(r.Body).Decode(&req) // Ignore error, default to empty

	docID, shareToken, err := h.Service.CreateDocument(req.Title, req.Content)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to create document: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create document")
		return
	}

	writeJSON(w, http.StatusCreated, model.CreateDocResponse{
		ID:         docID,
		ShareToken: shareToken,
		Message:    "document created",
	})
}

func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	docID := r.PathValue("id")

	doc, err := h.Service.GetDocument(docID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		logger.Sugar.Errorf("Handler: Failed to get document %s: %v", docID, err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	docID := r.PathValue("id")

	var req model.UpdateDocRequest
	_ = json.NewDecoder(r.Body).Decode(&req) // Missing fields default, never reject

	doc, err := h.Service.UpdateDocument(docID, req.Content, req.Title)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		logger.Sugar.Errorf("Handler: Failed to update document %s: %v", docID, err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, model.UpdateDocResponse{
		Success:   true,
		Message:   "document updated",
		UpdatedAt: doc.UpdatedAt,
	})
}

func (h *DocumentHandler) GetSharedDocument(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")

	doc, err := h.Service.GetDocumentByShareToken(token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "invalid share link")
			return
		}
		logger.Sugar.Errorf("Handler: Failed to resolve share token: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, model.SharedDocument{
		ID:        doc.ID,
		Title:     doc.Title,
		Content:   doc.Content,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	})
}

func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.Service.ListDocuments()
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to list documents: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, model.ListDocsResponse{Count: len(docs), Documents: docs})
}

func (h *DocumentHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (h *DocumentHandler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "markpad API", "status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Sugar.Errorf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}
