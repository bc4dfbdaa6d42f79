package model

// TaskStatus represents the status of a fetch task
type TaskStatus string

const (
	// TaskStatusPending means the task is registered but not started
	TaskStatusPending TaskStatus = "Pending"

	// TaskStatusDownloading means the backend is transferring bytes
	TaskStatusDownloading TaskStatus = "Downloading"

	// TaskStatusFinished means the backend produced every file
	TaskStatusFinished TaskStatus = "Finished"

	// TaskStatusFailed means the fetch ended with an error
	TaskStatusFailed TaskStatus = "Failed"

	// TaskStatusCancelled means the owner cancelled the fetch
	TaskStatusCancelled TaskStatus = "Cancelled"
)

// String returns the string representation of TaskStatus
func (ts TaskStatus) String() string {
	return string(ts)
}

// IsActive returns true if the task can still be cancelled
func (ts TaskStatus) IsActive() bool {
	return ts == TaskStatusPending || ts == TaskStatusDownloading
}

// IsFinished returns true if the task is in a terminal state (finished, failed, or cancelled)
func (ts TaskStatus) IsFinished() bool {
	return ts == TaskStatusFinished || ts == TaskStatusFailed || ts == TaskStatusCancelled
}

// SessionState is the position of a user request in the upload pipeline.
type SessionState string

const (
	SessionFormatsPending SessionState = "FormatsPending"
	SessionFormatsReady   SessionState = "FormatsReady"
	SessionDownloading    SessionState = "Downloading"
	SessionSplitting      SessionState = "Splitting"
	SessionRelaying       SessionState = "Relaying"
	SessionCleaning       SessionState = "Cleaning"
	SessionDone           SessionState = "Done"
	SessionCancelled      SessionState = "Cancelled"
	SessionFailed         SessionState = "Failed"
)

// IsBusy reports whether a fetch-and-relay run owns the session.
func (s SessionState) IsBusy() bool {
	switch s {
	case SessionDownloading, SessionSplitting, SessionRelaying, SessionCleaning:
		return true
	}
	return false
}

// IsTerminal reports whether the session has reached an end state.
func (s SessionState) IsTerminal() bool {
	return s == SessionDone || s == SessionCancelled || s == SessionFailed
}

// CanTransition reports whether the pipeline may move from s to next.
func (s SessionState) CanTransition(next SessionState) bool {
	switch s {
	case SessionFormatsPending:
		return next == SessionFormatsReady || next == SessionFailed
	case SessionFormatsReady:
		return next == SessionDownloading
	case SessionDownloading:
		return next == SessionSplitting || next == SessionRelaying ||
			next == SessionCancelled || next == SessionFailed
	case SessionSplitting:
		return next == SessionRelaying || next == SessionCancelled || next == SessionFailed
	case SessionRelaying:
		// a relayed file may be followed by another file that needs splitting
		return next == SessionSplitting || next == SessionRelaying || next == SessionCleaning ||
			next == SessionCancelled || next == SessionFailed
	case SessionCleaning:
		return next == SessionDone
	}
	return false
}
