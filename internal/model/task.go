package model

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ProgressSnapshot is the latest progress reported for one destination file
type ProgressSnapshot struct {
	Filename        string
	DownloadedBytes int64
	TotalBytes      int64   // 0 when unknown
	SpeedBPS        float64 // bytes per second
	ETASec          int     // -1 if unknown
	Percent         float64 // 0 to 100
	UpdatedAt       time.Time
}

// GetETAString returns ETA formatted as hh:mm:ss, or "—" if unknown
func (p ProgressSnapshot) GetETAString() string {
	if p.ETASec <= 0 {
		return "—"
	}

	hours := p.ETASec / 3600
	minutes := (p.ETASec % 3600) / 60
	seconds := p.ETASec % 60

	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// GetSpeedString returns speed as MB/s, or "" when nothing was measured
func (p ProgressSnapshot) GetSpeedString() string {
	if p.SpeedBPS <= 0 {
		return ""
	}
	return fmt.Sprintf("%.1f MB/s", p.SpeedBPS/1024/1024)
}

// FetchTask represents one in-flight fetch. The coordinator owns it; the
// registry only keeps it as a handle for lookup and cancellation.
type FetchTask struct {
	ID        string
	URL       string
	OutputDir string
	FormatID  string // empty selects the backend default
	OwnerID   int64
	Caption   string // overrides the title as caption of every produced file
	CreatedAt time.Time

	mu       sync.RWMutex
	status   TaskStatus
	progress map[string]ProgressSnapshot
	current  string
	err      error

	cancelled atomic.Bool
	cancelFn  context.CancelFunc
}

// NewFetchTask creates a pending task
func NewFetchTask(id, url, outputDir, formatID string, ownerID int64) *FetchTask {
	return &FetchTask{
		ID:        id,
		URL:       url,
		OutputDir: outputDir,
		FormatID:  formatID,
		OwnerID:   ownerID,
		CreatedAt: time.Now(),
		status:    TaskStatusPending,
		progress:  make(map[string]ProgressSnapshot),
	}
}

// Status returns the current task status
func (t *FetchTask) Status() TaskStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Err returns the error that failed the task, if any
func (t *FetchTask) Err() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.err
}

// SetStatus moves the task to status. Terminal states are sticky.
func (t *FetchTask) SetStatus(status TaskStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.IsFinished() {
		return
	}
	t.status = status
}

// Fail marks the task failed with err unless it is already terminal
func (t *FetchTask) Fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.IsFinished() {
		return
	}
	t.status = TaskStatusFailed
	t.err = err
}

// UpdateProgress stores the snapshot for its destination file
func (t *FetchTask) UpdateProgress(snap ProgressSnapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.progress[snap.Filename] = snap
	t.current = snap.Filename
}

// Progress returns the snapshot of the file being transferred most recently
func (t *FetchTask) Progress() ProgressSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.progress[t.current]
}

// ProgressFor returns the snapshot recorded for filename
func (t *FetchTask) ProgressFor(filename string) (ProgressSnapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	snap, ok := t.progress[filename]
	return snap, ok
}

// BindCancel attaches the function that aborts the running fetch. If the
// task was cancelled before binding, cancel is invoked immediately.
func (t *FetchTask) BindCancel(cancel context.CancelFunc) {
	t.mu.Lock()
	t.cancelFn = cancel
	cancelled := t.cancelled.Load()
	t.mu.Unlock()
	if cancelled {
		cancel()
	}
}

// Cancel raises the cancellation flag. It returns false when the task is
// already terminal or was cancelled before.
func (t *FetchTask) Cancel() bool {
	t.mu.Lock()
	if t.status.IsFinished() || !t.cancelled.CompareAndSwap(false, true) {
		t.mu.Unlock()
		return false
	}
	cancel := t.cancelFn
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return true
}

// Finish marks the task finished. It refuses once cancellation was
// requested or the task is already terminal.
func (t *FetchTask) Finish() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled.Load() || t.status.IsFinished() {
		return false
	}
	t.status = TaskStatusFinished
	return true
}

// Interrupt fires the bound cancel func if cancellation was requested
func (t *FetchTask) Interrupt() {
	t.mu.RLock()
	cancel := t.cancelFn
	t.mu.RUnlock()
	if cancel != nil && t.cancelled.Load() {
		cancel()
	}
}

// Cancelled reports whether cancellation was requested
func (t *FetchTask) Cancelled() bool {
	return t.cancelled.Load()
}

// Owner returns the id of the user who started the task
func (t *FetchTask) Owner() int64 {
	return t.OwnerID
}
