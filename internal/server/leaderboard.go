package server

import (
	"errors"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"github.com/botarena/arena/pkg/arena/ipd"
)

// LeaderboardRow is one public leaderboard entry.
type LeaderboardRow struct {
	BotID     int64   `json:"bot_id"`
	BotName   string  `json:"bot_name"`
	Creator   string  `json:"creator,omitempty"`
	AvgScore  float64 `json:"avg_score"`
	AvgExecMS float64 `json:"avg_exec_ms"`
	Opponents int     `json:"opponents"`
	Duels     int     `json:"duels"`
}

// DuelStore caches undirected pairwise matches between submitted bots.
type DuelStore struct {
	db *gorm.DB
}

// NewDuelStore creates a new DuelStore.
func NewDuelStore(db *gorm.DB) *DuelStore {
	return &DuelStore{db: db}
}

// AutoMigrate creates or updates the ipd_duels table.
func (s *DuelStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(&IPDDuel{}); err != nil {
		return fmt.Errorf("auto-migrate duels: %w", err)
	}
	return nil
}

// Ensure returns the duel for the unordered pair at its current code
// snapshots, running exactly one match when no cached result exists. The
// duel is stored with bot1 < bot2 and a seed derived from the hash pair, so
// replays are deterministic.
func (s *DuelStore) Ensure(runner Runner, botX, botY *Bot) (*IPDDuel, error) {
	if botX.ID == botY.ID {
		return nil, errors.New("same bot")
	}

	b1, b2 := botX, botY
	if b2.ID < b1.ID {
		b1, b2 = b2, b1
	}

	v1, v2 := b1.ActiveVersion(), b2.ActiveVersion()
	if v1 == nil || v2 == nil {
		return nil, errors.New("bot has no active version")
	}
	h1, h2 := v1.CodeHash, v2.CodeHash

	var existing IPDDuel
	err := s.db.Where("bot1_id = ? AND bot2_id = ? AND bot1_hash = ? AND bot2_hash = ?",
		b1.ID, b2.ID, h1, h2).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("lookup duel: %w", err)
	}

	seed := ipd.StableSeed(h1, h2)
	result, err := runner.Run(v1.Code, v2.Code, seed)
	if err != nil {
		return nil, fmt.Errorf("duel %d vs %d: %w", b1.ID, b2.ID, err)
	}

	duel := IPDDuel{
		Bot1ID:   b1.ID,
		Bot2ID:   b2.ID,
		Bot1Hash: h1,
		Bot2Hash: h2,
		Seed:     seed,
		Score1:   result.CumA,
		Score2:   result.CumB,
		ExecMS1:  result.ExecA.Milliseconds(),
		ExecMS2:  result.ExecB.Milliseconds(),
	}
	if err := s.db.Create(&duel).Error; err != nil {
		return nil, fmt.Errorf("create duel: %w", err)
	}
	return &duel, nil
}

// Leaderboard computes the round-robin standings over all submitted IPD
// bots: every pair duels once per code snapshot, and each bot is ranked by
// its average duel score, with average per-round execution time as the
// tiebreaker.
type Leaderboard struct {
	db     *gorm.DB
	duels  *DuelStore
	runner Runner
}

// NewLeaderboard creates a leaderboard over the given database and runner.
func NewLeaderboard(db *gorm.DB, duels *DuelStore, runner Runner) *Leaderboard {
	return &Leaderboard{db: db, duels: duels, runner: runner}
}

// Compute ensures all pairwise duels exist and returns up to limit rows.
func (l *Leaderboard) Compute(limit int) ([]LeaderboardRow, error) {
	if limit <= 0 {
		limit = 50
	}

	var bots []Bot
	err := l.db.Preload("Versions").
		Where("env_id = ? AND submitted = ?", ipd.EnvID, true).
		Order("id ASC").Find(&bots).Error
	if err != nil {
		return nil, fmt.Errorf("list submitted bots: %w", err)
	}

	for i := range bots {
		for j := i + 1; j < len(bots); j++ {
			if _, err := l.duels.Ensure(l.runner, &bots[i], &bots[j]); err != nil {
				return nil, err
			}
		}
	}

	rows := make([]LeaderboardRow, 0, len(bots))
	for i := range bots {
		row, err := l.rowFor(&bots[i], len(bots)-1)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.AvgScore != b.AvgScore {
			return a.AvgScore > b.AvgScore
		}
		if a.AvgExecMS != b.AvgExecMS {
			return a.AvgExecMS < b.AvgExecMS
		}
		if a.Opponents != b.Opponents {
			return a.Opponents > b.Opponents
		}
		return a.BotID < b.BotID
	})

	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// rowFor aggregates a bot's duels at its current code hash. Duels played by
// stale code are excluded by the hash filter.
func (l *Leaderboard) rowFor(bot *Bot, opponents int) (LeaderboardRow, error) {
	row := LeaderboardRow{BotID: bot.ID, BotName: bot.Name, Opponents: max(opponents, 0)}

	var creators []string
	err := l.db.Model(&User{}).Where("id = ?", bot.UserID).Limit(1).Pluck("username", &creators).Error
	if err != nil {
		return row, fmt.Errorf("lookup creator: %w", err)
	}
	if len(creators) > 0 {
		row.Creator = creators[0]
	}

	active := bot.ActiveVersion()
	if active == nil {
		return row, nil
	}
	hash := active.CodeHash

	var duels []IPDDuel
	err = l.db.Where(
		"(bot1_id = ? AND bot1_hash = ?) OR (bot2_id = ? AND bot2_hash = ?)",
		bot.ID, hash, bot.ID, hash,
	).Find(&duels).Error
	if err != nil {
		return row, fmt.Errorf("list duels: %w", err)
	}

	var scoreSum, execSum float64
	for _, d := range duels {
		if d.Bot1ID == bot.ID {
			scoreSum += float64(d.Score1)
			execSum += float64(d.ExecMS1) / float64(ipd.Rounds)
		} else {
			scoreSum += float64(d.Score2)
			execSum += float64(d.ExecMS2) / float64(ipd.Rounds)
		}
	}
	row.Duels = len(duels)
	if len(duels) > 0 {
		row.AvgScore = scoreSum / float64(len(duels))
		row.AvgExecMS = execSum / float64(len(duels))
	}
	return row, nil
}
