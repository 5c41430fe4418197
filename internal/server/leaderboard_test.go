package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botarena/arena/pkg/arena/ipd"
)

func newSubmittedBot(t *testing.T, store *BotStore, userID int64, name, code string) *Bot {
	t.Helper()
	bot, err := store.Create(userID, ipd.EnvID, name, "", code)
	require.NoError(t, err)
	bot, err = store.Submit(userID, bot.ID)
	require.NoError(t, err)
	return bot
}

func TestDuelStore_EnsureIsCached(t *testing.T) {
	db := newTestDB(t)
	user := newTestUser(t, db, "alice")
	bots := NewBotStore(db)
	duels := NewDuelStore(db)

	b1 := newSubmittedBot(t, bots, user.ID, "coop", "always_cooperate")
	b2 := newSubmittedBot(t, bots, user.ID, "defect", "always_defect")

	first, err := duels.Ensure(NewEngineRunner(), b1, b2)
	require.NoError(t, err)
	assert.Equal(t, b1.ID, first.Bot1ID)
	assert.Equal(t, 0, first.Score1)
	assert.Equal(t, 5*ipd.Rounds, first.Score2)

	// Same pair and hashes: the cached duel is reused, argument order is
	// irrelevant for the undirected pairing.
	again, err := duels.Ensure(NewEngineRunner(), b2, b1)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	var count int64
	require.NoError(t, db.Model(&IPDDuel{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestDuelStore_NewCodeNewDuel(t *testing.T) {
	db := newTestDB(t)
	user := newTestUser(t, db, "alice")
	bots := NewBotStore(db)
	duels := NewDuelStore(db)

	b1 := newSubmittedBot(t, bots, user.ID, "a", "always_cooperate")
	b2 := newSubmittedBot(t, bots, user.ID, "b", "always_defect")

	_, err := duels.Ensure(NewEngineRunner(), b1, b2)
	require.NoError(t, err)

	// b2 changes code; the stale duel no longer matches its hash.
	v2, err := bots.CreateVersion(user.ID, b2.ID, "tit_for_tat")
	require.NoError(t, err)
	b2, err = bots.SetActive(user.ID, b2.ID, v2.ID)
	require.NoError(t, err)

	_, err = duels.Ensure(NewEngineRunner(), b1, b2)
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&IPDDuel{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestLeaderboard_Compute(t *testing.T) {
	db := newTestDB(t)
	alice := newTestUser(t, db, "alice")
	bob := newTestUser(t, db, "bob")
	bots := NewBotStore(db)

	newSubmittedBot(t, bots, alice.ID, "coop", "always_cooperate")
	newSubmittedBot(t, bots, bob.ID, "defect", "always_defect")
	newSubmittedBot(t, bots, bob.ID, "tft", "tit_for_tat")

	// Unsubmitted bots stay off the board.
	_, err := bots.Create(alice.ID, ipd.EnvID, "draft", "", "grudger")
	require.NoError(t, err)

	duels := NewDuelStore(db)
	board := NewLeaderboard(db, duels, NewEngineRunner())

	rows, err := board.Compute(50)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	for _, row := range rows {
		assert.Equal(t, 2, row.Opponents)
		assert.Equal(t, 2, row.Duels)
		assert.NotEqual(t, "draft", row.BotName)
	}

	// tit_for_tat: 600 vs coop, 199+... vs defect; defect: 1000 vs coop,
	// mostly mutual defection vs tft; coop suffers the defector.
	assert.Equal(t, "defect", rows[0].BotName)
	assert.Equal(t, "tft", rows[1].BotName)
	assert.Equal(t, "coop", rows[2].BotName)
	assert.Greater(t, rows[0].AvgScore, rows[1].AvgScore)

	assert.Equal(t, "bob", rows[0].Creator)

	// Recomputing reuses the cached duels.
	var before int64
	require.NoError(t, db.Model(&IPDDuel{}).Count(&before).Error)
	_, err = board.Compute(50)
	require.NoError(t, err)
	var after int64
	require.NoError(t, db.Model(&IPDDuel{}).Count(&after).Error)
	assert.Equal(t, before, after)
}

func TestLeaderboard_CreatorLookupFailure(t *testing.T) {
	db := newTestDB(t)
	user := newTestUser(t, db, "alice")
	bots := NewBotStore(db)
	newSubmittedBot(t, bots, user.ID, "coop", "always_cooperate")

	require.NoError(t, db.Migrator().DropTable(&User{}))

	board := NewLeaderboard(db, NewDuelStore(db), NewEngineRunner())
	_, err := board.Compute(50)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lookup creator")
}

func TestLeaderboard_Limit(t *testing.T) {
	db := newTestDB(t)
	user := newTestUser(t, db, "alice")
	bots := NewBotStore(db)

	newSubmittedBot(t, bots, user.ID, "a", "always_cooperate")
	newSubmittedBot(t, bots, user.ID, "b", "always_defect")
	newSubmittedBot(t, bots, user.ID, "c", "tit_for_tat")

	board := NewLeaderboard(db, NewDuelStore(db), NewEngineRunner())
	rows, err := board.Compute(2)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
