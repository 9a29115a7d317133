package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/hoopsight/bankguard/internal/domain"
	"github.com/hoopsight/bankguard/internal/ports"
)

// Batch file formats. Candidates and outcomes arrive as JSON arrays,
// written by the prediction and scheduling collaborators.

type candidateRecord struct {
	GameID         string  `json:"game_id"`
	Probability    float64 `json:"probability"`
	Odds           float64 `json:"odds"`
	SeasonProgress float64 `json:"season_progress"`
}

type outcomeRecord struct {
	GameID  string `json:"game_id"`
	Outcome string `json:"outcome"` // WIN | LOSS | PUSH
}

func readCandidates(path string) ([]domain.Candidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read candidates %q: %w", path, err)
	}
	var records []candidateRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse candidates %q: %w", path, err)
	}

	candidates := make([]domain.Candidate, 0, len(records))
	for _, r := range records {
		candidates = append(candidates, domain.Candidate{
			GameID:         r.GameID,
			Probability:    r.Probability,
			Odds:           r.Odds,
			SeasonProgress: r.SeasonProgress,
		})
	}
	return candidates, nil
}

func readOutcomes(path string) (map[string]domain.Outcome, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read outcomes %q: %w", path, err)
	}
	var records []outcomeRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse outcomes %q: %w", path, err)
	}

	results := make(map[string]domain.Outcome, len(records))
	for _, r := range records {
		results[r.GameID] = domain.Outcome(r.Outcome)
	}
	return results, nil
}

// fileOutcomes serves the scheduler sweep from an outcome batch file,
// re-read on every sweep so the file can be refreshed between cycles.
type fileOutcomes struct {
	path string
}

func (f fileOutcomes) Outcomes(_ context.Context, gameIDs []string) (map[string]domain.Outcome, error) {
	all, err := readOutcomes(f.path)
	if err != nil {
		return nil, err
	}
	results := make(map[string]domain.Outcome, len(gameIDs))
	for _, id := range gameIDs {
		if outcome, ok := all[id]; ok {
			results[id] = outcome
		}
	}
	return results, nil
}

// noOutcomes is the source used when no outcome file is configured: every
// sweep finds nothing to settle.
type noOutcomes struct{}

func (noOutcomes) Outcomes(context.Context, []string) (map[string]domain.Outcome, error) {
	return map[string]domain.Outcome{}, nil
}

func outcomeSource(path string) ports.OutcomeSource {
	if path == "" {
		return noOutcomes{}
	}
	return fileOutcomes{path: path}
}
