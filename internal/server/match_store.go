package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/botarena/arena/pkg/arena/ipd"
)

// MatchStore provides persistence for matches and their per-round steps.
type MatchStore struct {
	db *gorm.DB
}

// NewMatchStore creates a new MatchStore.
func NewMatchStore(db *gorm.DB) *MatchStore {
	return &MatchStore{db: db}
}

// AutoMigrate creates or updates the matches and match_steps tables.
func (s *MatchStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(&Match{}, &MatchStep{}); err != nil {
		return fmt.Errorf("auto-migrate matches: %w", err)
	}
	return nil
}

// Begin records a match in the running state.
func (s *MatchStore) Begin(match *Match) error {
	match.Status = MatchRunning
	if err := s.db.Create(match).Error; err != nil {
		return fmt.Errorf("create match: %w", err)
	}
	return nil
}

// Complete stores the engine result and flips the match to completed.
func (s *MatchStore) Complete(match *Match, result *ipd.Result) error {
	steps := make([]MatchStep, len(result.Steps))
	for i, st := range result.Steps {
		obsA, err := toJSONAny(st.ObsA)
		if err != nil {
			return err
		}
		obsB, err := toJSONAny(st.ObsB)
		if err != nil {
			return err
		}
		steps[i] = MatchStep{
			MatchID: match.ID,
			Round:   st.Round,
			ObsA:    obsA,
			ActA:    string(st.ActA),
			ObsB:    obsB,
			ActB:    string(st.ActB),
			RewardA: st.RewardA,
			RewardB: st.RewardB,
			CumA:    st.CumA,
			CumB:    st.CumB,
		}
	}

	now := time.Now().UTC()
	return s.db.Transaction(func(tx *gorm.DB) error {
		if len(steps) > 0 {
			if err := tx.CreateInBatches(steps, 100).Error; err != nil {
				return fmt.Errorf("create match steps: %w", err)
			}
		}
		match.Status = MatchCompleted
		match.CumA = &result.CumA
		match.CumB = &result.CumB
		match.FinishedAt = &now
		if err := tx.Save(match).Error; err != nil {
			return fmt.Errorf("complete match: %w", err)
		}
		return nil
	})
}

// Fail marks the match failed and records the error log.
func (s *MatchStore) Fail(match *Match, errLog string) error {
	now := time.Now().UTC()
	match.Status = MatchFailed
	match.ErrorLog = errLog
	match.FinishedAt = &now
	if err := s.db.Save(match).Error; err != nil {
		return fmt.Errorf("fail match: %w", err)
	}
	return nil
}

// Get returns one of the user's matches with its steps in round order, or
// nil, nil when it does not exist.
func (s *MatchStore) Get(userID, matchID int64) (*Match, error) {
	var match Match
	err := s.db.Preload("Steps", func(db *gorm.DB) *gorm.DB {
		return db.Order("round ASC")
	}).Where("user_id = ? AND id = ?", userID, matchID).First(&match).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get match: %w", err)
	}
	return &match, nil
}

// toJSONAny round-trips a value through JSON into the generic map shape the
// step columns store.
func toJSONAny(v any) (JSONAny, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode observation: %w", err)
	}
	var out JSONAny
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode observation: %w", err)
	}
	return out, nil
}
