package model

import "time"

type Document struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	ShareToken string    `json:"share_token"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// SharedDocument is the read-only view served for a share token.
// It never exposes the token itself.
type SharedDocument struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type DocumentSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateDocRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type CreateDocResponse struct {
	ID         string `json:"id"`
	ShareToken string `json:"share_token"`
	Message    string `json:"message"`
}

type UpdateDocRequest struct {
	Content string  `json:"content"`
	Title   *string `json:"title"`
}

type UpdateDocResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ListDocsResponse struct {
	Count     int               `json:"count"`
	Documents []DocumentSummary `json:"documents"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
