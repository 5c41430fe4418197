package workbench

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botarena/arena/pkg/arena/client"
)

// fakeAPI is an in-memory arena that records every remote call, so tests can
// assert which operations reached the network.
type fakeAPI struct {
	mu    sync.Mutex
	calls []string

	bot          client.BotDetail
	nextID       int64
	err          error         // when set, every call fails with it
	setActiveErr error         // when set, only SetActiveVersion fails
	blocked      chan struct{} // when set, RunTest waits on it
}

func newFakeAPI(code string) *fakeAPI {
	active := int64(1)
	return &fakeAPI{
		nextID: 2,
		bot: client.BotDetail{
			ID:              1,
			EnvID:           "ipd",
			Name:            "testbot",
			ActiveVersionID: &active,
			Versions:        []client.Version{{ID: 1, VersionNum: 1, Code: code}},
		},
	}
}

func (f *fakeAPI) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return f.err
}

func (f *fakeAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeAPI) GetBot(_ context.Context, _ int64) (*client.BotDetail, error) {
	if err := f.record("GetBot"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := f.bot
	cp.Versions = append([]client.Version(nil), f.bot.Versions...)
	if f.bot.ActiveVersionID != nil {
		id := *f.bot.ActiveVersionID
		cp.ActiveVersionID = &id
	}
	return &cp, nil
}

func (f *fakeAPI) CreateVersion(_ context.Context, _ int64, code string) (*client.Version, error) {
	if err := f.record("CreateVersion"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	v := client.Version{ID: f.nextID, VersionNum: len(f.bot.Versions) + 1, Code: code}
	f.nextID++
	f.bot.Versions = append(f.bot.Versions, v)
	return &v, nil
}

func (f *fakeAPI) SetActiveVersion(_ context.Context, _ int64, versionID int64) error {
	if err := f.record("SetActiveVersion"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setActiveErr != nil {
		return f.setActiveErr
	}
	f.bot.ActiveVersionID = &versionID
	return nil
}

func (f *fakeAPI) DeleteVersion(_ context.Context, _ int64, versionID int64) error {
	if err := f.record("DeleteVersion"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.bot.Versions[:0]
	for _, v := range f.bot.Versions {
		if v.ID != versionID {
			kept = append(kept, v)
		}
	}
	f.bot.Versions = kept
	return nil
}

func (f *fakeAPI) RunTest(_ context.Context, _ int64) (*client.RunResult, error) {
	if f.blocked != nil {
		<-f.blocked
	}
	if err := f.record("RunTest"); err != nil {
		return nil, err
	}
	return &client.RunResult{MatchID: 1, CumA: 600, CumB: 600}, nil
}

func (f *fakeAPI) Submit(_ context.Context, _ int64) (*client.Bot, error) {
	if err := f.record("Submit"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bot.Submitted = true
	return &client.Bot{ID: f.bot.ID, EnvID: f.bot.EnvID, Name: f.bot.Name, Submitted: true}, nil
}

func loadedWorkbench(t *testing.T, code string) (*Workbench, *fakeAPI) {
	t.Helper()
	api := newFakeAPI(code)
	w := New(api, 1)
	require.NoError(t, w.Load(context.Background()))
	return w, api
}

func TestDirty(t *testing.T) {
	const code = "def act(observation, state):\n    return 'C', state\n"
	w, _ := loadedWorkbench(t, code)

	assert.False(t, w.Dirty(), "fresh load is clean")

	w.SetBuffer(code + "   \n")
	assert.False(t, w.Dirty(), "outer whitespace does not make the buffer dirty")

	w.SetBuffer("def act(observation, state):\n    return 'D', state\n")
	assert.True(t, w.Dirty())

	w.SetBuffer(code)
	assert.False(t, w.Dirty())
}

func TestDirty_NoActiveVersion(t *testing.T) {
	api := newFakeAPI("x")
	api.bot.ActiveVersionID = nil
	w := New(api, 1)
	require.NoError(t, w.Load(context.Background()))

	w.SetBuffer("anything at all")
	assert.False(t, w.Dirty(), "nothing to compare against, must not block")
}

func TestDirty_WhitespaceOnlyCode(t *testing.T) {
	w, _ := loadedWorkbench(t, "   \n  ")
	w.SetBuffer("")
	assert.False(t, w.Dirty())
	w.SetBuffer("\t\n")
	assert.False(t, w.Dirty())
}

func TestSave_CreatesThenActivatesThenReloads(t *testing.T) {
	w, api := loadedWorkbench(t, "return 'C', state")

	w.SetBuffer("return 'D', state")
	require.True(t, w.Dirty())
	require.NoError(t, w.Save(context.Background()))

	// Save-before-activate-before-reload ordering.
	assert.Equal(t, []string{"GetBot", "CreateVersion", "SetActiveVersion", "GetBot"}, api.calls)

	bot := w.Bot()
	require.Len(t, bot.Versions, 2)
	active := bot.ActiveVersion()
	require.NotNil(t, active)
	assert.Equal(t, 2, active.VersionNum)

	// Dirty clears as a consequence of the buffer reset, for any code string.
	assert.False(t, w.Dirty())
	assert.Equal(t, "return 'D', state", w.Buffer())
}

func TestSave_ActivationFailureReloads(t *testing.T) {
	w, api := loadedWorkbench(t, "return 'C', state")
	api.setActiveErr = &client.APIError{Status: 500, Detail: "internal_error"}

	w.SetBuffer("return 'D', state")
	err := w.Save(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "internal_error")

	// The version was persisted before activation failed; the reload keeps
	// the local model aware of it.
	require.Len(t, w.Bot().Versions, 2)

	// Retrying the same code trips the local duplicate guard, not a server
	// rejection.
	w.SetBuffer("return 'D', state")
	before := api.callCount()
	err = w.Save(context.Background())
	require.ErrorIs(t, err, ErrDuplicateCode)
	assert.Equal(t, before, api.callCount())
}

func TestDuplicateGuard(t *testing.T) {
	tests := []struct {
		name      string
		existing  string
		candidate string
		duplicate bool
	}{
		{"identical", "return 'C', state", "return 'C', state", true},
		{"leading whitespace", "return 'C', state", "  \nreturn 'C', state", true},
		{"trailing whitespace", "return 'C', state", "return 'C', state\n\n  ", true},
		{"internal whitespace differs", "return 'C', state", "return  'C', state", false},
		{"different code", "return 'C', state", "return 'D', state", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, api := loadedWorkbench(t, tt.existing)
			before := api.callCount()

			w.SetBuffer(tt.candidate)
			err := w.Save(context.Background())
			if tt.duplicate {
				require.ErrorIs(t, err, ErrDuplicateCode)
				assert.Equal(t, before, api.callCount(), "refused locally, no network call")
				assert.Len(t, w.Bot().Versions, 1, "version count unchanged")
			} else {
				require.NoError(t, err)
				assert.Len(t, w.Bot().Versions, 2)
			}
		})
	}
}

func TestDuplicateGuard_ChecksAllVersions(t *testing.T) {
	w, api := loadedWorkbench(t, "return 'C', state")

	// Version 2 becomes active; version 1 still holds the old code.
	w.SetBuffer("return 'D', state")
	require.NoError(t, w.Save(context.Background()))

	// Re-saving version 1's code must be caught even though it is inactive.
	w.SetBuffer("return 'C', state\n")
	before := api.callCount()
	err := w.Save(context.Background())
	require.ErrorIs(t, err, ErrDuplicateCode)
	assert.Equal(t, before, api.callCount())
}

func TestRunTest_RefusedWhileDirty(t *testing.T) {
	w, api := loadedWorkbench(t, "return 'C', state")

	w.SetBuffer("return 'D', state")
	before := api.callCount()

	_, err := w.RunTest(context.Background())
	require.ErrorIs(t, err, ErrUnsavedChanges)
	assert.Equal(t, before, api.callCount(), "rejected without a network call")
	assert.Equal(t, RunIdle, w.RunState())
}

func TestRunTest_Succeeds(t *testing.T) {
	w, _ := loadedWorkbench(t, "return 'C', state")

	res, err := w.RunTest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.MatchID)
	assert.Equal(t, 600, res.CumA)
	assert.Equal(t, RunSucceeded, w.RunState())

	got, runErr := w.LastRun()
	assert.Equal(t, res, got)
	assert.NoError(t, runErr)

	w.AckResult()
	assert.Equal(t, RunIdle, w.RunState())

	// Re-running after acknowledgement is allowed.
	_, err = w.RunTest(context.Background())
	require.NoError(t, err)
}

func TestRunTest_Failure(t *testing.T) {
	w, api := loadedWorkbench(t, "return 'C', state")
	api.err = &client.APIError{Status: 500, Detail: "runner_failed"}

	_, err := w.RunTest(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runner_failed")
	assert.Equal(t, RunFailed, w.RunState())

	_, runErr := w.LastRun()
	assert.Error(t, runErr)

	w.AckResult()
	assert.Equal(t, RunIdle, w.RunState())
}

func TestRunTest_NoOverlappingRuns(t *testing.T) {
	w, api := loadedWorkbench(t, "return 'C', state")
	api.blocked = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := w.RunTest(context.Background())
		done <- err
	}()

	// Wait for the first run to take the Running slot.
	for w.RunState() != RunRunning {
		time.Sleep(time.Millisecond)
	}

	_, err := w.RunTest(context.Background())
	assert.ErrorIs(t, err, ErrRunInFlight)

	// Mutating operations are also gated while a run is in flight.
	w.SetBuffer("return 'D', state")
	assert.ErrorIs(t, w.Save(context.Background()), ErrRunInFlight)
	assert.ErrorIs(t, w.Submit(context.Background()), ErrRunInFlight)
	w.SetBuffer("return 'C', state")

	close(api.blocked)
	require.NoError(t, <-done)
	assert.Equal(t, RunSucceeded, w.RunState())
}

func TestRunTest_RequiresLoadAndActiveVersion(t *testing.T) {
	w := New(newFakeAPI("x"), 1)
	_, err := w.RunTest(context.Background())
	assert.ErrorIs(t, err, ErrNotLoaded)

	api := newFakeAPI("x")
	api.bot.ActiveVersionID = nil
	w = New(api, 1)
	require.NoError(t, w.Load(context.Background()))
	_, err = w.RunTest(context.Background())
	assert.ErrorIs(t, err, ErrNoActiveVersion)
}

func TestDeleteVersion_RefusesActive(t *testing.T) {
	w, api := loadedWorkbench(t, "return 'C', state")
	before := api.callCount()

	err := w.DeleteVersion(context.Background(), 1)
	require.ErrorIs(t, err, ErrActiveVersion)
	assert.Equal(t, before, api.callCount())
}

func TestDeleteVersion_Inactive(t *testing.T) {
	w, _ := loadedWorkbench(t, "return 'C', state")
	w.SetBuffer("return 'D', state")
	require.NoError(t, w.Save(context.Background()))

	require.NoError(t, w.DeleteVersion(context.Background(), 1))
	assert.Len(t, w.Bot().Versions, 1)
}

func TestSetActive_ResetsBuffer(t *testing.T) {
	w, _ := loadedWorkbench(t, "return 'C', state")
	w.SetBuffer("return 'D', state")
	require.NoError(t, w.Save(context.Background()))

	// Switch back to version 1; buffer follows the active version, so there
	// is no window where the pointer moved but dirty stayed stale.
	require.NoError(t, w.SetActive(context.Background(), 1))
	assert.Equal(t, "return 'C', state", w.Buffer())
	assert.False(t, w.Dirty())
}

func TestSubmit_Idempotent(t *testing.T) {
	w, _ := loadedWorkbench(t, "return 'C', state")

	require.NoError(t, w.Submit(context.Background()))
	assert.True(t, w.Bot().Submitted)

	// Submitting again never reverts the flag.
	require.NoError(t, w.Submit(context.Background()))
	assert.True(t, w.Bot().Submitted)
}

func TestLoad_FailureLeavesStateIntact(t *testing.T) {
	w, api := loadedWorkbench(t, "return 'C', state")
	w.SetBuffer("return 'D', state")

	api.err = &client.APIError{Status: 502, Detail: "HTTP 502"}
	err := w.Load(context.Background())
	require.Error(t, err)

	// No partial mutation: prior model and buffer survive.
	require.NotNil(t, w.Bot())
	assert.Equal(t, "return 'D', state", w.Buffer())
	assert.True(t, w.Dirty())
}
