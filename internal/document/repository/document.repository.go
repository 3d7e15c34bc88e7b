package repository

import (
	"database/sql"
	"markpad/internal/document/model"
	"markpad/pkg/logger"
)

const documentColumns = "id, title, content, share_token, created_at, updated_at"

type DocumentRepository struct {
	DB *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{DB: db}
}

func (r *DocumentRepository) Create(id, title, content, shareToken string) error {
	_, err := r.DB.Exec(`INSERT INTO documents (id, title, content, share_token) VALUES ($1, $2, $3, $4)`,
		id, title, content, shareToken)
	if err != nil {
		logger.Sugar.Errorf("Failed to create document: %v", err)
	}
	return err
}

// KeyExists reports whether either candidate key is already taken.
func (r *DocumentRepository) KeyExists(id, shareToken string) (bool, error) {
	var exists bool
	err := r.DB.QueryRow(`SELECT EXISTS(SELECT 1 FROM documents WHERE id = $1 OR share_token = $2)`,
		id, shareToken).Scan(&exists)
	if err != nil {
		logger.Sugar.Errorf("Failed to check key uniqueness: %v", err)
	}
	return exists, err
}

func (r *DocumentRepository) GetByID(docID string) (*model.Document, error) {
	var doc model.Document
	err := r.DB.QueryRow("SELECT "+documentColumns+" FROM documents WHERE id = $1", docID).
		Scan(&doc.ID, &doc.Title, &doc.Content, &doc.ShareToken, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if err != sql.ErrNoRows {
			logger.Sugar.Errorf("Failed to get document %s: %v", docID, err)
		}
		return nil, err
	}
	return &doc, nil
}

func (r *DocumentRepository) GetByShareToken(token string) (*model.Document, error) {
	var doc model.Document
	err := r.DB.QueryRow("SELECT "+documentColumns+" FROM documents WHERE share_token = $1", token).
		Scan(&doc.ID, &doc.Title, &doc.Content, &doc.ShareToken, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if err != sql.ErrNoRows {
			logger.Sugar.Errorf("Failed to get document by share token: %v", err)
		}
		return nil, err
	}
	return &doc, nil
}

// Update rewrites content (and title when given) and bumps updated_at.
// A nil title leaves the stored title untouched.
func (r *DocumentRepository) Update(docID, content string, title *string) (*model.Document, error) {
	var doc model.Document
	var err error
	if title != nil {
		err = r.DB.QueryRow(`UPDATE documents SET content = $1, title = $2, updated_at = NOW() WHERE id = $3 RETURNING `+documentColumns,
			content, *title, docID).
			Scan(&doc.ID, &doc.Title, &doc.Content, &doc.ShareToken, &doc.CreatedAt, &doc.UpdatedAt)
	} else {
		err = r.DB.QueryRow(`UPDATE documents SET content = $1, updated_at = NOW() WHERE id = $2 RETURNING `+documentColumns,
			content, docID).
			Scan(&doc.ID, &doc.Title, &doc.Content, &doc.ShareToken, &doc.CreatedAt, &doc.UpdatedAt)
	}
	if err != nil {
		if err != sql.ErrNoRows {
			logger.Sugar.Errorf("Failed to update document %s: %v", docID, err)
		}
		return nil, err
	}
	return &doc, nil
}

func (r *DocumentRepository) List(limit int) ([]model.DocumentSummary, error) {
	rows, err := r.DB.Query(`SELECT id, title, created_at, updated_at FROM documents ORDER BY updated_at DESC LIMIT $1`, limit)
	if err != nil {
		logger.Sugar.Errorf("Failed to list documents: %v", err)
		return nil, err
	}
	defer rows.Close()

	docs := []model.DocumentSummary{}
	for rows.Next() {
		var d model.DocumentSummary
		if err := rows.Scan(&d.ID, &d.Title, &d.CreatedAt, &d.UpdatedAt); err != nil {
			logger.Sugar.Errorf("Failed to scan document row: %v", err)
			continue
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}
