// Package registry tracks in-flight fetch tasks by id so that control paths
// other than the owning run can find and cancel them. It holds non-owning
// handles only and never changes task state besides signalling cancellation.
package registry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ytget/yt-relay/internal/model"
)

// TaskIDPrefix prefixes generated task ids
const TaskIDPrefix = "task-"

// Handle is the view of a task the registry needs
type Handle interface {
	Cancel() bool
	Status() model.TaskStatus
	Progress() model.ProgressSnapshot
	Owner() int64
}

// Entry is one registered task
type Entry struct {
	ID           string
	Handle       Handle
	RegisteredAt time.Time
}

// Registry is safe for concurrent use
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		entries: make(map[string]Entry),
	}
}

// NewTaskID generates a unique task ID using UUID v7, which is time ordered
func NewTaskID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf(TaskIDPrefix+"%d", time.Now().UnixNano())
	}
	return TaskIDPrefix + id.String()
}

// Register adds handle under taskID. Registering an id twice is an error.
func (r *Registry) Register(taskID string, handle Handle) error {
	if taskID == "" || handle == nil {
		return fmt.Errorf("invalid registration for task %q", taskID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[taskID]; exists {
		return fmt.Errorf("task already registered: %s", taskID)
	}
	r.entries[taskID] = Entry{ID: taskID, Handle: handle, RegisteredAt: time.Now()}
	return nil
}

// Lookup returns the handle registered under taskID
func (r *Registry) Lookup(taskID string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[taskID]
	return entry.Handle, ok
}

// Cancel signals cancellation of taskID. It returns false when the task is
// unknown or already terminal.
func (r *Registry) Cancel(taskID string) bool {
	handle, ok := r.Lookup(taskID)
	if !ok {
		return false
	}
	return handle.Cancel()
}

// Unregister drops taskID. Unknown ids are ignored.
func (r *Registry) Unregister(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, taskID)
}

// List returns all entries ordered by registration time
func (r *Registry) List() []Entry {
	r.mu.RLock()
	entries := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].RegisteredAt.Equal(entries[j].RegisteredAt) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].RegisteredAt.Before(entries[j].RegisteredAt)
	})
	return entries
}

// Len returns the number of registered tasks
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
