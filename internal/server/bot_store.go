package server

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/botarena/arena/pkg/arena/ipd"
)

// Store-level policy violations, mapped to 4xx responses by the handlers.
var (
	ErrNameTaken       = errors.New("bot name taken")
	ErrDuplicateCode   = errors.New("duplicate code")
	ErrVersionNotFound = errors.New("version not found")
	ErrActiveVersion   = errors.New("version is active")
)

// BotStore provides persistence for bots and their version sequences.
type BotStore struct {
	db *gorm.DB
}

// NewBotStore creates a new BotStore.
func NewBotStore(db *gorm.DB) *BotStore {
	return &BotStore{db: db}
}

// AutoMigrate creates or updates the bots and bot_versions tables.
func (s *BotStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(&Bot{}, &BotVersion{}); err != nil {
		return fmt.Errorf("auto-migrate bots: %w", err)
	}
	return nil
}

// List returns the user's bots, most recently updated first.
func (s *BotStore) List(userID int64) ([]Bot, error) {
	var bots []Bot
	err := s.db.Where("user_id = ?", userID).Order("updated_at DESC").Find(&bots).Error
	if err != nil {
		return nil, fmt.Errorf("list bots: %w", err)
	}
	return bots, nil
}

// Get returns one bot with its version sequence, or nil, nil when the user
// has no such bot.
func (s *BotStore) Get(userID, botID int64) (*Bot, error) {
	var bot Bot
	err := s.db.Preload("Versions", func(db *gorm.DB) *gorm.DB {
		return db.Order("version_num ASC")
	}).Where("user_id = ? AND id = ?", userID, botID).First(&bot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get bot: %w", err)
	}
	return &bot, nil
}

// Create inserts a bot and persists its initial code as version 1, which
// immediately becomes the active version.
func (s *BotStore) Create(userID int64, envID, name, description, code string) (*Bot, error) {
	var created Bot
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Bot{}).Where("env_id = ? AND name = ?", envID, name).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrNameTaken
		}

		created = Bot{
			UserID:      userID,
			EnvID:       envID,
			Name:        name,
			Description: description,
		}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}

		version := BotVersion{
			BotID:      created.ID,
			VersionNum: 1,
			Code:       code,
			CodeHash:   ipd.CodeHash(code),
		}
		if err := tx.Create(&version).Error; err != nil {
			return err
		}

		created.ActiveVersionID = &version.ID
		created.Versions = []BotVersion{version}
		return tx.Model(&Bot{}).Where("id = ?", created.ID).
			Update("active_version_id", version.ID).Error
	})
	if err != nil {
		if errors.Is(err, ErrNameTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &created, nil
}

// CreateVersion appends a new version with the next sequence number. A
// version whose trimmed code equals an existing version's is refused; the
// client guards this too, the store is the backstop for racing sessions.
func (s *BotStore) CreateVersion(userID, botID int64, code string) (*BotVersion, error) {
	var created *BotVersion
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var bot Bot
		err := tx.Where("user_id = ? AND id = ?", userID, botID).First(&bot).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return gorm.ErrRecordNotFound
		}
		if err != nil {
			return err
		}

		var versions []BotVersion
		if err := tx.Where("bot_id = ?", botID).Order("version_num ASC").Find(&versions).Error; err != nil {
			return err
		}

		trimmed := strings.TrimSpace(code)
		maxNum := 0
		for _, v := range versions {
			if strings.TrimSpace(v.Code) == trimmed {
				return ErrDuplicateCode
			}
			if v.VersionNum > maxNum {
				maxNum = v.VersionNum
			}
		}

		version := BotVersion{
			BotID:      botID,
			VersionNum: maxNum + 1,
			Code:       code,
			CodeHash:   ipd.CodeHash(code),
		}
		if err := tx.Create(&version).Error; err != nil {
			return err
		}
		created = &version
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if errors.Is(err, ErrDuplicateCode) {
			return nil, err
		}
		return nil, fmt.Errorf("create version: %w", err)
	}
	return created, nil
}

// SetActive moves the bot's active pointer to versionID, which must be one of
// the bot's versions.
func (s *BotStore) SetActive(userID, botID, versionID int64) (*Bot, error) {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var bot Bot
		err := tx.Where("user_id = ? AND id = ?", userID, botID).First(&bot).Error
		if err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&BotVersion{}).Where("bot_id = ? AND id = ?", botID, versionID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrVersionNotFound
		}

		return tx.Model(&Bot{}).Where("id = ?", botID).
			Update("active_version_id", versionID).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if errors.Is(err, ErrVersionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("set active version: %w", err)
	}
	return s.Get(userID, botID)
}

// DeleteVersion removes a version. The active version cannot be deleted:
// that would leave the bot with no code to run.
func (s *BotStore) DeleteVersion(userID, botID, versionID int64) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var bot Bot
		err := tx.Where("user_id = ? AND id = ?", userID, botID).First(&bot).Error
		if err != nil {
			return err
		}
		if bot.ActiveVersionID != nil && *bot.ActiveVersionID == versionID {
			return ErrActiveVersion
		}

		res := tx.Where("bot_id = ? AND id = ?", botID, versionID).Delete(&BotVersion{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrVersionNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) ||
			errors.Is(err, ErrVersionNotFound) || errors.Is(err, ErrActiveVersion) {
			return err
		}
		return fmt.Errorf("delete version: %w", err)
	}
	return nil
}

// Submit flips the submitted flag to true. Submitting an already-submitted
// bot is a no-op.
func (s *BotStore) Submit(userID, botID int64) (*Bot, error) {
	bot, err := s.Get(userID, botID)
	if err != nil || bot == nil {
		return bot, err
	}
	if !bot.Submitted {
		if err := s.db.Model(&Bot{}).Where("id = ?", botID).Update("submitted", true).Error; err != nil {
			return nil, fmt.Errorf("submit bot: %w", err)
		}
		bot.Submitted = true
	}
	return bot, nil
}

// Delete removes a bot and everything hanging off it: versions, matches and
// their steps, and leaderboard duels.
func (s *BotStore) Delete(userID, botID int64) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var bot Bot
		if err := tx.Where("user_id = ? AND id = ?", userID, botID).First(&bot).Error; err != nil {
			return err
		}

		var matchIDs []int64
		if err := tx.Model(&Match{}).Where("bot_id = ?", botID).Pluck("id", &matchIDs).Error; err != nil {
			return err
		}
		if len(matchIDs) > 0 {
			if err := tx.Where("match_id IN ?", matchIDs).Delete(&MatchStep{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", matchIDs).Delete(&Match{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("bot1_id = ? OR bot2_id = ?", botID, botID).Delete(&IPDDuel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("bot_id = ?", botID).Delete(&BotVersion{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Bot{}, botID).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return fmt.Errorf("delete bot: %w", err)
	}
	return nil
}

// ActiveVersion resolves the active pointer, or nil when none is set.
func (b *Bot) ActiveVersion() *BotVersion {
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
