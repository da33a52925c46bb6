package session

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"
)

// exportHeader is the first line of a session export, carrying the session
// metadata ahead of the turn lines
type exportHeader struct {
	Kind      string    `json:"kind"`
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	SourceID  string    `json:"source_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ExportSession writes the session as JSON Lines: one metadata line
// followed by one line per turn, in chronological order.
func (s *Store) ExportSession(w io.Writer, id string) error {
	sess, err := s.Get(id)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	header := exportHeader{
		Kind:      "session",
		ID:        sess.ID,
		Name:      sess.Name,
		SourceID:  sess.SourceID,
		CreatedAt: sess.CreatedAt,
	}
	if err := enc.Encode(header); err != nil {
		return fmt.Errorf("failed to write session header: %w", err)
	}
	for i := range sess.Turns {
		if err := enc.Encode(&sess.Turns[i]); err != nil {
			return fmt.Errorf("failed to write turn: %w", err)
		}
	}
	return nil
}

// ImportSession reads a JSON Lines export and adds it to the store as a
// new session. Numbers are decoded with UseNumber so integer cells survive
// an export/import round trip byte for byte.
func (s *Store) ImportSession(r io.Reader) (Session, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var header exportHeader
	if err := dec.Decode(&header); err != nil {
		return Session{}, fmt.Errorf("failed to read session header: %w", err)
	}
	if header.Kind != "session" {
		return Session{}, fmt.Errorf("not a session export: first line has kind %q", header.Kind)
	}

	sess := &Session{
		ID:        header.ID,
		Name:      header.Name,
		SourceID:  header.SourceID,
		CreatedAt: header.CreatedAt,
	}
	for {
		var turn Turn
		if err := dec.Decode(&turn); err == io.EOF {
			break
		} else if err != nil {
			return Session{}, fmt.Errorf("failed to read turn: %w", err)
		}
		if turn.outcomes() != 1 {
			return Session{}, fmt.Errorf("%w: turn %s", ErrInvalidTurn, turn.ID)
		}
		sess.Turns = append(sess.Turns, turn)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sess.ID]; ok {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionExists, sess.ID)
	}
	s.sessions[sess.ID] = sess
	s.order = append(s.order, sess.ID)
	s.tracker.invalidate()
	return copySession(sess), nil
}

// WriteResultCSV writes a stored result record as CSV, columns in their
// original order
func WriteResultCSV(w io.Writer, result *ResultRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(result.Columns); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	record := make([]string, len(result.Columns))
	for _, row := range result.Rows {
		for i := range record {
			record[i] = ""
			if i < len(row) {
				record[i] = formatCell(row[i])
			}
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatCell(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case int64:
		return strconv.FormatInt(val, 10)
	case json.Number:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}
