package storage

import (
	"fmt"
	"time"
)

// Turn is a finalized debate kept on this device
type Turn struct {
	ID                  int64
	Prompt              string
	OpenerModel         string
	OpenerResponse      string
	CritiquerModel      string
	CritiquerResponse   string
	SynthesizerModel    string
	SynthesizerResponse string
	FinishedAt          time.Time
}

// SaveTurn appends a finalized turn to the local archive
func (s *Store) SaveTurn(t Turn) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO turns (prompt, opener_model, opener_response, critiquer_model, critiquer_response,
			synthesizer_model, synthesizer_response, finished_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Prompt, t.OpenerModel, t.OpenerResponse, t.CritiquerModel, t.CritiquerResponse,
		t.SynthesizerModel, t.SynthesizerResponse, t.FinishedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save turn: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read turn id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("turn archived", "turn_id", id, "prompt_chars", len(t.Prompt))
	return id, nil
}

// RecentTurns returns up to limit archived turns, newest first
func (s *Store) RecentTurns(limit int) ([]Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT id, prompt, opener_model, opener_response, critiquer_model, critiquer_response,
			synthesizer_model, synthesizer_response, finished_at
		FROM turns ORDER BY finished_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load turns: %w", err)
	}
	defer rows.Close()

	turns := []Turn{}
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.Prompt, &t.OpenerModel, &t.OpenerResponse, &t.CritiquerModel,
			&t.CritiquerResponse, &t.SynthesizerModel, &t.SynthesizerResponse, &t.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate turns: %w", err)
	}
	return turns, nil
}
