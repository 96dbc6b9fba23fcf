// Package board wires the demo message-board graph served by the CLI.
//
// The board is an external driver of the engine, not part of it: its nodes
// consume the inbound request as a raw value and go through the same
// resolution, glaze and finalize machinery as any embedding application.
package board

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/kiln/pkg/domain"
	"github.com/aretw0/kiln/pkg/glaze"
	"github.com/aretw0/kiln/pkg/registry"
)

// Node names of the board graph.
const (
	NodeRequest  = "http.request"
	NodeForm     = "board.form"
	NodeMessages = "board.messages"
	NodePost     = "board.post"
)

// Message is one board entry.
type Message struct {
	ID     int       `json:"id"`
	Author string    `json:"author"`
	Body   string    `json:"body"`
	Posted time.Time `json:"posted"`
}

// Store holds messages in memory. Safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	msgs   []Message
	nextID int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{nextID: 1}
}

// Append adds a message and returns it with its assigned ID.
func (s *Store) Append(author, body string) Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := Message{ID: s.nextID, Author: author, Body: body, Posted: time.Now()}
	s.nextID++
	s.msgs = append(s.msgs, msg)
	return msg
}

// List returns a copy of all messages, newest first.
func (s *Store) List() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.msgs))
	copy(out, s.msgs)
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// Form is the parsed post payload.
type Form struct {
	Author string
	Body   string
}

// Register wires the board graph into reg and returns the backing store.
func Register(reg *registry.Registry, logger *slog.Logger) *Store {
	store := NewStore()

	reg.DefineRaw(NodeRequest)

	reg.DefineDerived(NodeForm, []string{NodeRequest},
		func(ctx context.Context, r domain.Resolver) (any, error) {
			req, err := domain.ResolveTyped[*http.Request](ctx, r, NodeRequest)
			if err != nil {
				return nil, err
			}
			if err := req.ParseForm(); err != nil {
				return nil, fmt.Errorf("parsing form: %w", err)
			}
			form := Form{
				Author: strings.TrimSpace(req.FormValue("author")),
				Body:   strings.TrimSpace(req.FormValue("body")),
			}
			if form.Author == "" || form.Body == "" {
				return nil, fmt.Errorf("author and body are required")
			}
			return form, nil
		},
	)

	reg.DefineDerived(NodeMessages, nil,
		func(ctx context.Context, r domain.Resolver) (any, error) {
			return store.List(), nil
		},
		registry.WithGlaze(glaze.Logging(logger)),
	)

	reg.DefineDerived(NodePost, []string{NodeForm},
		func(ctx context.Context, r domain.Resolver) (any, error) {
			form, err := domain.ResolveTyped[Form](ctx, r, NodeForm)
			if err != nil {
				return nil, err
			}
			return store.Append(form.Author, form.Body), nil
		},
		registry.WithGlaze(glaze.Recover(), glaze.Logging(logger)),
	)

	return store
}
