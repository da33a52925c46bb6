package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Error values returned by store operations
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExists   = errors.New("session already exists")
	ErrInvalidTurn     = errors.New("turn must carry exactly one outcome")
)

// RejectionRecord captures a validation rejection inside a turn
type RejectionRecord struct {
	Reason string `json:"reason"`
	Detail string `json:"detail"`
}

// ExecRecord captures an execution failure inside a turn
type ExecRecord struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ResultRecord captures a successful result set inside a turn. Rows are
// stored column-aligned so exports preserve order.
type ResultRecord struct {
	Columns   []string        `json:"columns"`
	Rows      [][]interface{} `json:"rows"`
	RowCount  int             `json:"row_count"`
	Truncated bool            `json:"truncated"`
	ElapsedMs int64           `json:"elapsed_ms"`
}

// Turn represents one question/answer exchange. Exactly one of Result,
// ExecError and Rejection is present.
type Turn struct {
	ID          string           `json:"id"`
	Question    string           `json:"question"`
	RawQuery    string           `json:"raw_query"`
	Explanation string           `json:"explanation,omitempty"`
	RulePath    string           `json:"rule_path,omitempty"`
	Tables      []string         `json:"tables,omitempty"`
	Result      *ResultRecord    `json:"result,omitempty"`
	ExecError   *ExecRecord      `json:"exec_error,omitempty"`
	Rejection   *RejectionRecord `json:"rejection,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// NewRejectedTurn creates a turn for a query the validator refused
func NewRejectedTurn(question, rawQuery, reason, detail string) Turn {
	return Turn{
		ID:        uuid.New().String(),
		Question:  question,
		RawQuery:  rawQuery,
		Rejection: &RejectionRecord{Reason: reason, Detail: detail},
		CreatedAt: time.Now(),
	}
}

// NewFailedTurn creates a turn for a validated query that failed to execute
func NewFailedTurn(question, rawQuery, explanation, rulePath string, tables []string, kind, message string) Turn {
	return Turn{
		ID:          uuid.New().String(),
		Question:    question,
		RawQuery:    rawQuery,
		Explanation: explanation,
		RulePath:    rulePath,
		Tables:      tables,
		ExecError:   &ExecRecord{Kind: kind, Message: message},
		CreatedAt:   time.Now(),
	}
}

// NewAnsweredTurn creates a turn for a successfully executed query
func NewAnsweredTurn(question, rawQuery, explanation, rulePath string, tables []string, result *ResultRecord) Turn {
	return Turn{
		ID:          uuid.New().String(),
		Question:    question,
		RawQuery:    rawQuery,
		Explanation: explanation,
		RulePath:    rulePath,
		Tables:      tables,
		Result:      result,
		CreatedAt:   time.Now(),
	}
}

// Succeeded reports whether the turn carries a result set
func (t *Turn) Succeeded() bool {
	return t.Result != nil
}

// outcomes counts the outcome fields present; valid turns have exactly one
func (t *Turn) outcomes() int {
	n := 0
	if t.Result != nil {
		n++
	}
	if t.ExecError != nil {
		n++
	}
	if t.Rejection != nil {
		n++
	}
	return n
}

// Session represents an independent, named conversation bound to one data
// source at creation time. Turns are append-only and chronological.
type Session struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	SourceID  string    `json:"source_id"`
	CreatedAt time.Time `json:"created_at"`
	Turns     []Turn    `json:"turns"`
}

// Summary is a listing view of a session
type Summary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	SourceID  string    `json:"source_id"`
	CreatedAt time.Time `json:"created_at"`
	TurnCount int       `json:"turn_count"`
	Active    bool      `json:"active"`
}

// Store holds all sessions plus the active-session pointer. All mutating
// operations are serialized under one coarse lock; conversation throughput
// is human-paced and contention is never a bottleneck.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	order    []string
	activeID string
	tracker  tracker
}

// NewStore creates an empty session store
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
		tracker:  newTracker(),
	}
}

// Create adds a new session bound to the given data source and returns a
// copy of it. The new session does not become active implicitly.
func (s *Store) Create(name, sourceID string) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := &Session{
		ID:        uuid.New().String(),
		Name:      name,
		SourceID:  sourceID,
		CreatedAt: time.Now(),
	}
	s.sessions[sess.ID] = sess
	s.order = append(s.order, sess.ID)
	s.tracker.addSession(sess.ID)
	return copySession(sess)
}

// Switch makes the given session the active one
func (s *Store) Switch(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.activeID = id
	return nil
}

// ActiveID returns the active session id, empty if none is selected
func (s *Store) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// Get returns a copy of the session
func (s *Store) Get(id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return copySession(sess), nil
}

// List returns summaries in creation order
func (s *Store) List() []Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Summary, 0, len(s.order))
	for _, id := range s.order {
		sess := s.sessions[id]
		out = append(out, Summary{
			ID:        sess.ID,
			Name:      sess.Name,
			SourceID:  sess.SourceID,
			CreatedAt: sess.CreatedAt,
			TurnCount: len(sess.Turns),
			Active:    id == s.activeID,
		})
	}
	return out
}

// Rename changes a session's display name
func (s *Store) Rename(id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	sess.Name = name
	return nil
}

// Delete removes a session. Deleting the active session clears the active
// pointer; the caller must explicitly pick a new active session.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(s.sessions, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.activeID == id {
		s.activeID = ""
	}
	s.tracker.invalidate()
	return nil
}

// AppendTurn appends a turn to the session's history. History is an
// append-only log: turns are never edited or reordered. Failed and
// rejected turns are appended exactly like successful ones.
func (s *Store) AppendTurn(id string, t Turn) error {
	if t.outcomes() != 1 {
		return ErrInvalidTurn
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	sess.Turns = append(sess.Turns, t)

	// First question titles the session, like a fresh chat tab
	if sess.Name == "" {
		sess.Name = titleFrom(t.Question)
	}

	s.tracker.observe(id, &t)
	return nil
}

// titleFrom derives a session title from the first user question
func titleFrom(question string) string {
	const maxTitle = 50
	if len(question) > maxTitle {
		return question[:maxTitle] + "..."
	}
	if question == "" {
		return "New Chat"
	}
	return question
}

func copySession(sess *Session) Session {
	out := *sess
	out.Turns = make([]Turn, len(sess.Turns))
	copy(out.Turns, sess.Turns)
	return out
}
