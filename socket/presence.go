package socket

import (
	"errors"
	"sync"
)

var (
	ErrDuplicateConnection = errors.New("connection id already registered")
	ErrUnknownConnection   = errors.New("connection id not registered")
)

// Presence is the live association between a connection and a user.
type Presence struct {
	Username   string
	DocumentID string
}

// Registry tracks every open connection and which document it is viewing.
// It is the single shared mutable structure in the system; every method
// takes the mutex so operations are linearizable regardless of caller.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*Presence
	order   []string // registration order, keeps snapshots deterministic
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Presence)}
}

func (r *Registry) Register(connID, username, documentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[connID]; ok {
		return ErrDuplicateConnection
	}
	r.entries[connID] = &Presence{Username: username, DocumentID: documentID}
	r.order = append(r.order, connID)
	return nil
}

// Join associates the connection with a document. Join may also rename
// the user, since clients send their display name with every join.
func (r *Registry) Join(connID, documentID, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[connID]
	if !ok {
		return ErrUnknownConnection
	}
	entry.DocumentID = documentID
	entry.Username = username
	return nil
}

// Leave clears the document association but keeps the connection registered.
func (r *Registry) Leave(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.entries[connID]; ok {
		entry.DocumentID = ""
	}
}

// Unregister removes the connection entirely and returns its last presence.
func (r *Registry) Unregister(connID string) (Presence, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[connID]
	if !ok {
		return Presence{}, false
	}
	delete(r.entries, connID)
	for i, id := range r.order {
		if id == connID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return *entry, true
}

// UsernamesIn snapshots the usernames currently joined to a document,
// in registration order.
func (r *Registry) UsernamesIn(documentID string) []string {
	users := []string{}
	if documentID == "" {
		return users
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.order {
		if entry := r.entries[id]; entry.DocumentID == documentID {
			users = append(users, entry.Username)
		}
	}
	return users
}

// ConnectionsIn snapshots the connection ids currently joined to a document.
func (r *Registry) ConnectionsIn(documentID string) []string {
	conns := []string{}
	if documentID == "" {
		return conns
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.order {
		if entry := r.entries[id]; entry.DocumentID == documentID {
			conns = append(conns, id)
		}
	}
	return conns
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
