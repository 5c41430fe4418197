package server

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// User is a registered account.
type User struct {
	ID           int64     `gorm:"primaryKey;column:id"`
	Username     string    `gorm:"column:username;uniqueIndex;not null"`
	PasswordHash string    `gorm:"column:password_hash;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the GORM table name.
func (User) TableName() string { return "users" }

// Bot is a user's bot for one environment. Submitted is monotonic: once true
// it never reverts.
type Bot struct {
	ID              int64     `gorm:"primaryKey;column:id"`
	UserID          int64     `gorm:"column:user_id;index;not null"`
	EnvID           string    `gorm:"column:env_id;uniqueIndex:idx_bots_env_name,priority:1;not null"`
	Name            string    `gorm:"column:name;uniqueIndex:idx_bots_env_name,priority:2;not null"`
	Description     string    `gorm:"column:description"`
	Submitted       bool      `gorm:"column:submitted;not null;default:false"`
	ActiveVersionID *int64    `gorm:"column:active_version_id"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`

	Versions []BotVersion `gorm:"foreignKey:BotID"`
}

// TableName returns the GORM table name.
func (Bot) TableName() string { return "bots" }

// BotVersion is one immutable code revision. VersionNum is 1-based and
// unique per bot.
type BotVersion struct {
	ID         int64     `gorm:"primaryKey;column:id"`
	BotID      int64     `gorm:"column:bot_id;uniqueIndex:idx_versions_bot_num,priority:1;not null"`
	VersionNum int       `gorm:"column:version_num;uniqueIndex:idx_versions_bot_num,priority:2;not null"`
	Code       string    `gorm:"column:code;type:text;not null"`
	CodeHash   string    `gorm:"column:code_hash;index;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the GORM table name.
func (BotVersion) TableName() string { return "bot_versions" }

// Match status values.
const (
	MatchRunning   = "running"
	MatchCompleted = "completed"
	MatchFailed    = "failed"
)

// Match is one sandbox test run of a bot version against an opponent.
type Match struct {
	ID           int64      `gorm:"primaryKey;column:id"`
	EnvID        string     `gorm:"column:env_id;index;not null"`
	UserID       int64      `gorm:"column:user_id;index;not null"`
	BotID        int64      `gorm:"column:bot_id;index;not null"`
	BotCodeHash  string     `gorm:"column:bot_code_hash;index;not null"`
	OpponentName string     `gorm:"column:opponent_name;not null"`
	Seed         int64      `gorm:"column:seed;not null"`
	Status       string     `gorm:"column:status;index;not null"`
	CumA         *int       `gorm:"column:cum_a"`
	CumB         *int       `gorm:"column:cum_b"`
	ErrorLog     string     `gorm:"column:error_log;type:text"`
	StartedAt    time.Time  `gorm:"column:started_at;autoCreateTime"`
	FinishedAt   *time.Time `gorm:"column:finished_at"`

	Steps []MatchStep `gorm:"foreignKey:MatchID"`
}

// TableName returns the GORM table name.
func (Match) TableName() string { return "matches" }

// MatchStep is one round of a match.
type MatchStep struct {
	ID      int64   `gorm:"primaryKey;column:id"`
	MatchID int64   `gorm:"column:match_id;uniqueIndex:idx_steps_match_round,priority:1;not null"`
	Round   int     `gorm:"column:round;uniqueIndex:idx_steps_match_round,priority:2;not null"`
	ObsA    JSONAny `gorm:"column:obs_a;type:text;not null"`
	ActA    string  `gorm:"column:act_a;type:varchar(1);not null"`
	ObsB    JSONAny `gorm:"column:obs_b;type:text;not null"`
	ActB    string  `gorm:"column:act_b;type:varchar(1);not null"`
	RewardA int     `gorm:"column:reward_a;not null"`
	RewardB int     `gorm:"column:reward_b;not null"`
	CumA    int     `gorm:"column:cum_a;not null"`
	CumB    int     `gorm:"column:cum_b;not null"`
}

// TableName returns the GORM table name.
func (MatchStep) TableName() string { return "match_steps" }

// IPDDuel is the cached outcome of one undirected leaderboard pairing,
// keyed by bot ids (bot1 < bot2) and the code hashes that played. A bot that
// changes code invalidates its old duels by hash mismatch.
type IPDDuel struct {
	ID        int64     `gorm:"primaryKey;column:id"`
	Bot1ID    int64     `gorm:"column:bot1_id;uniqueIndex:idx_duels_pair,priority:1;not null"`
	Bot2ID    int64     `gorm:"column:bot2_id;uniqueIndex:idx_duels_pair,priority:2;not null"`
	Bot1Hash  string    `gorm:"column:bot1_hash;uniqueIndex:idx_duels_pair,priority:3;not null"`
	Bot2Hash  string    `gorm:"column:bot2_hash;uniqueIndex:idx_duels_pair,priority:4;not null"`
	Seed      int64     `gorm:"column:seed;not null"`
	Score1    int       `gorm:"column:score1;not null"`
	Score2    int       `gorm:"column:score2;not null"`
	ExecMS1   int64     `gorm:"column:exec_ms_1;not null"`
	ExecMS2   int64     `gorm:"column:exec_ms_2;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the GORM table name.
func (IPDDuel) TableName() string { return "ipd_duels" }

// JSONAny is a custom GORM type for map[string]any stored as JSON text.
type JSONAny map[string]any

// Scan implements the sql.Scanner interface for JSONAny.
func (m *JSONAny) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case string:
		bytes = []byte(v)
	case []byte:
		bytes = v
	default:
		return fmt.Errorf("unsupported type for JSONAny: %T", value)
	}
	return json.Unmarshal(bytes, m)
}

// Value implements the driver.Valuer interface for JSONAny.
func (m JSONAny) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
