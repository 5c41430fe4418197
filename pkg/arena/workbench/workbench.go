// Package workbench implements the bot editing and test-run workflow for a
// single bot: the local version set, the editor buffer with its dirty flag,
// the duplicate guard, the test-run state machine, and the submission gate.
//
// One Workbench is constructed when a bot detail view is entered and
// discarded when it is left; nothing here is process-global.
package workbench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/botarena/arena/pkg/arena/client"
)

// API is the slice of the arena client the workbench needs. *client.Client
// satisfies it.
type API interface {
	GetBot(ctx context.Context, botID int64) (*client.BotDetail, error)
	CreateVersion(ctx context.Context, botID int64, code string) (*client.Version, error)
	SetActiveVersion(ctx context.Context, botID, versionID int64) error
	DeleteVersion(ctx context.Context, botID, versionID int64) error
	RunTest(ctx context.Context, botID int64) (*client.RunResult, error)
	Submit(ctx context.Context, botID int64) (*client.Bot, error)
}

// RunState is the test-run orchestrator state.
type RunState string

const (
	RunIdle      RunState = "idle"
	RunRunning   RunState = "running"
	RunSucceeded RunState = "succeeded"
	RunFailed    RunState = "failed"
)

// Local precondition violations. These are rejected before any network call.
var (
	ErrNotLoaded       = errors.New("bot not loaded")
	ErrNoActiveVersion = errors.New("bot has no active version")
	ErrDuplicateCode   = errors.New("code is identical to an existing version")
	ErrActiveVersion   = errors.New("cannot delete the active version")
	ErrUnsavedChanges  = errors.New("unsaved changes: save before running a test")
	ErrRunInFlight     = errors.New("a test run is already in flight")
)

// Workbench owns the workflow state for exactly one bot.
type Workbench struct {
	api    API
	botID  int64
	logger *slog.Logger

	mu       sync.Mutex
	bot      *client.BotDetail
	buffer   string
	runState RunState
	lastRun  *client.RunResult
	lastErr  error
}

// Option configures a Workbench.
type Option func(*Workbench)

// WithLogger sets the workbench logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Workbench) { w.logger = l }
}

// New creates a workbench for botID. Call Load before anything else.
func New(api API, botID int64, opts ...Option) *Workbench {
	w := &Workbench{
		api:      api,
		botID:    botID,
		logger:   slog.Default(),
		runState: RunIdle,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// BotID returns the bot this workbench is bound to.
func (w *Workbench) BotID() int64 { return w.botID }

// Load replaces the whole local model with a fresh fetch of the bot record.
// Either the model updates completely or not at all. The editor buffer is
// reset to the active version's code, which clears the dirty flag as a
// consequence.
func (w *Workbench) Load(ctx context.Context) error {
	bot, err := w.api.GetBot(ctx, w.botID)
	if err != nil {
		return fmt.Errorf("load bot %d: %w", w.botID, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.bot = bot
	if active := bot.ActiveVersion(); active != nil {
		w.buffer = active.Code
	} else {
		w.buffer = ""
	}
	return nil
}

// Bot returns the last loaded record, nil before the first successful Load.
func (w *Workbench) Bot() *client.BotDetail {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.bot
}

// Buffer returns the editor buffer content.
func (w *Workbench) Buffer() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buffer
}

// SetBuffer replaces the editor buffer content.
func (w *Workbench) SetBuffer(code string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buffer = code
}

// Dirty reports whether the trimmed buffer differs from the active version's
// trimmed code. When no active version is known there is nothing to compare
// against and Dirty is false.
func (w *Workbench) Dirty() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dirtyLocked()
}

func (w *Workbench) dirtyLocked() bool {
	if w.bot == nil {
		return false
	}
	active := w.bot.ActiveVersion()
	if active == nil {
		return false
	}
	return strings.TrimSpace(w.buffer) != strings.TrimSpace(active.Code)
}

// duplicateLocked returns the existing version whose trimmed code equals the
// trimmed candidate, or nil. Every version is checked, not just the active
// one.
func (w *Workbench) duplicateLocked(code string) *client.Version {
	if w.bot == nil {
		return nil
	}
	trimmed := strings.TrimSpace(code)
	for i := range w.bot.Versions {
		if strings.TrimSpace(w.bot.Versions[i].Code) == trimmed {
			return &w.bot.Versions[i]
		}
	}
	return nil
}

// Save persists the buffer as a new version and activates it, then reloads
// the bot. The duplicate guard runs first: if the trimmed buffer equals any
// existing version's trimmed code the save is refused locally, with no
// network call, and the version count stays unchanged.
func (w *Workbench) Save(ctx context.Context) error {
	w.mu.Lock()
	if w.bot == nil {
		w.mu.Unlock()
		return ErrNotLoaded
	}
	if w.runState == RunRunning {
		w.mu.Unlock()
		return ErrRunInFlight
	}
	if dup := w.duplicateLocked(w.buffer); dup != nil {
		w.mu.Unlock()
		return fmt.Errorf("%w (version %d)", ErrDuplicateCode, dup.VersionNum)
	}
	code := w.buffer
	w.mu.Unlock()

	version, err := w.api.CreateVersion(ctx, w.botID, code)
	if err != nil {
		return fmt.Errorf("create version: %w", err)
	}
	if err := w.api.SetActiveVersion(ctx, w.botID, version.ID); err != nil {
		// The version was created; reload so the local model and its
		// duplicate guard still know about it.
		if loadErr := w.Load(ctx); loadErr != nil {
			w.logger.Warn("reload after failed activation", "bot", w.botID, "error", loadErr)
		}
		return fmt.Errorf("activate version %d: %w", version.ID, err)
	}

	w.logger.Debug("saved version", "bot", w.botID, "version", version.VersionNum)
	return w.Load(ctx)
}

// SetActive asks the server to move the active pointer and reloads. The
// server is authoritative: an unknown versionID surfaces as its rejection.
func (w *Workbench) SetActive(ctx context.Context, versionID int64) error {
	w.mu.Lock()
	if w.bot == nil {
		w.mu.Unlock()
		return ErrNotLoaded
	}
	if w.runState == RunRunning {
		w.mu.Unlock()
		return ErrRunInFlight
	}
	w.mu.Unlock()

	if err := w.api.SetActiveVersion(ctx, w.botID, versionID); err != nil {
		return fmt.Errorf("set active version: %w", err)
	}
	return w.Load(ctx)
}

// DeleteVersion removes a version. Deleting the active version would leave
// the bot with no code to run, so that case is refused locally; the server
// remains the final arbiter for everything else.
func (w *Workbench) DeleteVersion(ctx context.Context, versionID int64) error {
	w.mu.Lock()
	if w.bot == nil {
		w.mu.Unlock()
		return ErrNotLoaded
	}
	if w.runState == RunRunning {
		w.mu.Unlock()
		return ErrRunInFlight
	}
	if w.bot.ActiveVersionID != nil && *w.bot.ActiveVersionID == versionID {
		w.mu.Unlock()
		return ErrActiveVersion
	}
	w.mu.Unlock()

	if err := w.api.DeleteVersion(ctx, w.botID, versionID); err != nil {
		return fmt.Errorf("delete version %d: %w", versionID, err)
	}
	return w.Load(ctx)
}

// RunState returns the orchestrator state.
func (w *Workbench) RunState() RunState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.runState
}

// LastRun returns the result of the last completed run and the error of a
// failed one.
func (w *Workbench) LastRun() (*client.RunResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastRun, w.lastErr
}

// AckResult returns the orchestrator to Idle after the result or error has
// been displayed.
func (w *Workbench) AckResult() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.runState == RunSucceeded || w.runState == RunFailed {
		w.runState = RunIdle
	}
}

// RunTest executes the active version against the baseline opponent.
//
// The central invariant: a run's reported score always corresponds to a
// persisted version, never to unsaved buffer content. The run is refused
// before any network call when the buffer is dirty, when no version is
// active, or when another run is in flight.
func (w *Workbench) RunTest(ctx context.Context) (*client.RunResult, error) {
	w.mu.Lock()
	switch {
	case w.bot == nil:
		w.mu.Unlock()
		return nil, ErrNotLoaded
	case w.runState == RunRunning:
		w.mu.Unlock()
		return nil, ErrRunInFlight
	case w.bot.ActiveVersion() == nil:
		w.mu.Unlock()
		return nil, ErrNoActiveVersion
	case w.dirtyLocked():
		w.mu.Unlock()
		return nil, ErrUnsavedChanges
	}
	w.runState = RunRunning
	w.lastRun = nil
	w.lastErr = nil
	w.mu.Unlock()

	result, err := w.api.RunTest(ctx, w.botID)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.runState = RunFailed
		w.lastErr = err
		return nil, fmt.Errorf("run test: %w", err)
	}
	w.runState = RunSucceeded
	w.lastRun = result
	return result, nil
}

// Submit flips the bot into its submitted state and refreshes the record.
// The transition is one-way; submitting an already-submitted bot is
// informational, not fatal, so server rejections are returned as-is for the
// caller to display.
func (w *Workbench) Submit(ctx context.Context) error {
	w.mu.Lock()
	if w.bot == nil {
		w.mu.Unlock()
		return ErrNotLoaded
	}
	if w.runState == RunRunning {
		w.mu.Unlock()
		return ErrRunInFlight
	}
	w.mu.Unlock()

	if _, err := w.api.Submit(ctx, w.botID); err != nil {
		return fmt.Errorf("submit bot %d: %w", w.botID, err)
	}
	return w.Load(ctx)
}
