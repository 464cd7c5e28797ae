package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Status is the outcome recorded for a processed frame.
type Status string

const (
	StatusRecognized Status = "recognized"
	StatusNoHand     Status = "no_hand"
	StatusError      Status = "error"
)

// Source identifies the transport a frame arrived on.
type Source string

const (
	SourceHTTP      Source = "http"
	SourceWebSocket Source = "ws"
)

// DefaultListLimit and MaxListLimit bound ListRecent.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Prediction is one row of the prediction log.
type Prediction struct {
	ID         string    `json:"id"`
	RequestID  string    `json:"request_id,omitempty"`
	Status     Status    `json:"status"`
	Label      string    `json:"label,omitempty"`
	Confidence float64   `json:"confidence"`
	Message    string    `json:"message,omitempty"`
	Source     Source    `json:"source"`
	LatencyMs  int64     `json:"latency_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// Stats summarizes the prediction log.
type Stats struct {
	Total    int            `json:"total"`
	ByStatus map[Status]int `json:"by_status"`
	ByLabel  map[string]int `json:"by_label"`
}

// PredictionRepository records and queries processed frames.
type PredictionRepository struct {
	db *sql.DB
}

// Predictions returns the prediction repository for this store.
func (s *Store) Predictions() *PredictionRepository {
	return &PredictionRepository{db: s.db}
}

// Create inserts a prediction. ID and CreatedAt are set when zero.
// RequestID is not unique: a client may resend the same X-Request-ID.
func (r *PredictionRepository) Create(p *Prediction) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if p.Source == "" {
		p.Source = SourceHTTP
	}

	_, err := r.db.Exec(
		`INSERT INTO predictions (id, request_id, status, label, confidence, message, source, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.RequestID, string(p.Status), p.Label, p.Confidence, p.Message, string(p.Source), p.LatencyMs, p.CreatedAt,
	)
	return err
}

// GetByID retrieves a prediction by its row ID.
func (r *PredictionRepository) GetByID(id string) (*Prediction, error) {
	row := r.db.QueryRow(
		`SELECT id, request_id, status, label, confidence, message, source, latency_ms, created_at
		 FROM predictions WHERE id = ?`,
		id,
	)

	p, err := scanPrediction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// ListByRequestID returns every prediction logged under requestID, oldest first.
func (r *PredictionRepository) ListByRequestID(requestID string) ([]*Prediction, error) {
	rows, err := r.db.Query(
		`SELECT id, request_id, status, label, confidence, message, source, latency_ms, created_at
		 FROM predictions WHERE request_id = ? ORDER BY created_at, rowid`,
		requestID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	predictions := []*Prediction{}
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		predictions = append(predictions, p)
	}
	return predictions, rows.Err()
}

// ListRecent returns up to limit predictions, newest first. A non-positive
// limit means DefaultListLimit; limits above MaxListLimit are capped.
func (r *PredictionRepository) ListRecent(limit int) ([]*Prediction, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	rows, err := r.db.Query(
		`SELECT id, request_id, status, label, confidence, message, source, latency_ms, created_at
		 FROM predictions ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	predictions := []*Prediction{}
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		predictions = append(predictions, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return predictions, nil
}

// Stats counts predictions per status and per recognized label.
func (r *PredictionRepository) Stats() (*Stats, error) {
	stats := &Stats{
		ByStatus: map[Status]int{},
		ByLabel:  map[string]int{},
	}

	rows, err := r.db.Query(`SELECT status, COUNT(*) FROM predictions GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats.ByStatus[Status(status)] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	labelRows, err := r.db.Query(
		`SELECT label, COUNT(*) FROM predictions WHERE status = ? GROUP BY label`,
		string(StatusRecognized),
	)
	if err != nil {
		return nil, err
	}
	defer labelRows.Close()

	for labelRows.Next() {
		var label string
		var count int
		if err := labelRows.Scan(&label, &count); err != nil {
			return nil, err
		}
		stats.ByLabel[label] = count
	}

	return stats, labelRows.Err()
}

// DeleteBefore removes predictions older than cutoff and returns how many were deleted.
func (r *PredictionRepository) DeleteBefore(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM predictions WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPrediction(s scanner) (*Prediction, error) {
	p := &Prediction{}
	var status, source string

	err := s.Scan(&p.ID, &p.RequestID, &status, &p.Label, &p.Confidence, &p.Message, &source, &p.LatencyMs, &p.CreatedAt)
	if err != nil {
		return nil, err
	}

	p.Status = Status(status)
	p.Source = Source(source)
	return p, nil
}
