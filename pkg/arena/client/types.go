package client

import "encoding/json"

// User is a registered account.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Token is the credential issued by a successful login.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Bot is a bot list entry.
type Bot struct {
	ID          int64  `json:"id"`
	EnvID       string `json:"env_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Submitted   bool   `json:"submitted"`
}

// Version is one immutable code revision of a bot.
type Version struct {
	ID         int64  `json:"id"`
	VersionNum int    `json:"version_num"`
	Code       string `json:"code"`
}

// BotDetail is the full bot record: metadata, version sequence, and the
// active-version pointer. ActiveVersionID, when set, references an entry in
// Versions.
type BotDetail struct {
	ID              int64     `json:"id"`
	EnvID           string    `json:"env_id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Submitted       bool      `json:"submitted"`
	ActiveVersionID *int64    `json:"active_version_id"`
	Versions        []Version `json:"versions"`
}

// ActiveVersion resolves the active pointer against the version sequence.
// Returns nil when no version is active.
func (b *BotDetail) ActiveVersion() *Version {
	if b.ActiveVersionID == nil {
		return nil
	}
	for i := range b.Versions {
		if b.Versions[i].ID == *b.ActiveVersionID {
			return &b.Versions[i]
		}
	}
	return nil
}

// RunResult is the outcome of a sandbox test run.
type RunResult struct {
	MatchID int64 `json:"match_id"`
	CumA    int   `json:"cum_a"`
	CumB    int   `json:"cum_b"`
}

// MatchStep is one round of a completed match. Observations are kept raw;
// display code decides how much of them to render.
type MatchStep struct {
	Round   int             `json:"round"`
	ObsA    json.RawMessage `json:"obs_a"`
	ActA    string          `json:"act_a"`
	ObsB    json.RawMessage `json:"obs_b"`
	ActB    string          `json:"act_b"`
	RewardA int             `json:"reward_a"`
	RewardB int             `json:"reward_b"`
	CumA    int             `json:"cum_a"`
	CumB    int             `json:"cum_b"`
}

// Match is the read-through copy of a match record held for display.
type Match struct {
	ID           int64       `json:"id"`
	EnvID        string      `json:"env_id"`
	OpponentName string      `json:"opponent_name"`
	Seed         int64       `json:"seed"`
	Status       string      `json:"status"`
	CumA         *int        `json:"cum_a,omitempty"`
	CumB         *int        `json:"cum_b,omitempty"`
	Steps        []MatchStep `json:"steps"`
}

// LeaderboardRow is one entry of the round-robin leaderboard.
type LeaderboardRow struct {
	BotID     int64   `json:"bot_id"`
	BotName   string  `json:"bot_name"`
	Creator   string  `json:"creator,omitempty"`
	AvgScore  float64 `json:"avg_score"`
	AvgExecMS float64 `json:"avg_exec_ms"`
	Opponents int     `json:"opponents"`
	Duels     int     `json:"duels"`
}
