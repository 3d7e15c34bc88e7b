package service

import (
	"errors"
	"strings"
	"time"

	"markpad/internal/document/model"
	"markpad/internal/document/repository"
	"markpad/socket"

	"github.com/google/uuid"
)

const (
	DefaultTitle = "Untitled Document"

	docIDLength      = 8
	shareTokenLength = 12
	maxKeyAttempts   = 5
	maxListLimit     = 50
)

type DocumentService struct {
	Repo *repository.DocumentRepository
	Hub  *socket.Hub
}

func NewDocumentService(repo *repository.DocumentRepository, hub *socket.Hub) *DocumentService {
	return &DocumentService{Repo: repo, Hub: hub}
}

// CreateDocument stores a new document and returns its id and share token.
// Missing fields are defaulted, never rejected.
func (s *DocumentService) CreateDocument(title, content string) (string, string, error) {
	if title == "" {
		title = DefaultTitle
	}
	if content == "" {
		content = "# " + title
	}

	// Keys are short random slices of a uuid, so collisions are
	// possible in principle. Probe and regenerate instead of trusting luck.
	for attempt := 0; attempt < maxKeyAttempts; attempt++ {
		docID := randomKey(docIDLength)
		shareToken := randomKey(shareTokenLength)

		taken, err := s.Repo.KeyExists(docID, shareToken)
		if err != nil {
			return "", "", err
		}
		if taken {
			continue
		}
		if err := s.Repo.Create(docID, title, content, shareToken); err != nil {
			return "", "", err
		}
		return docID, shareToken, nil
	}
	return "", "", errors.New("failed to generate a unique document id")
}

func (s *DocumentService) GetDocument(docID string) (*model.Document, error) {
	return s.Repo.GetByID(docID)
}

func (s *DocumentService) GetDocumentByShareToken(token string) (*model.Document, error) {
	return s.Repo.GetByShareToken(token)
}

// UpdateDocument rewrites the document and notifies its room. Last write wins.
func (s *DocumentService) UpdateDocument(docID, content string, title *string) (*model.Document, error) {
	doc, err := s.Repo.Update(docID, content, title)
	if err != nil {
		return nil, err
	}

	s.Hub.Broadcast <- socket.Event{
		DocumentID: docID,
		Name:       socket.EventDocumentUpdated,
		Data: socket.DocumentUpdatedPayload{
			DocumentID: docID,
			Content:    doc.Content,
			Timestamp:  doc.UpdatedAt.Format(time.RFC3339),
		},
	}
	return doc, nil
}

func (s *DocumentService) ListDocuments() ([]model.DocumentSummary, error) {
	return s.Repo.List(maxListLimit)
}

func randomKey(length int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:length]
}
