package coordinator

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ytget/yt-relay/internal/model"
)

// session is the state of one user request, from URL to final message
type session struct {
	userID    int64
	chatID    int64
	url       string
	caption   string
	createdAt time.Time

	// serializes status edits with opening and closing the cancel dialog
	editMu sync.Mutex

	mu        sync.Mutex
	state     model.SessionState
	messageID int
	catalog   *model.CatalogResult
	task      *model.FetchTask
	kind      string
	dialog    bool // cancel confirmation is on screen
}

func newSession(userID, chatID int64, url, caption string, now time.Time) *session {
	return &session{
		userID:    userID,
		chatID:    chatID,
		url:       url,
		caption:   caption,
		createdAt: now,
		state:     model.SessionFormatsPending,
	}
}

func (s *session) State() model.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// transition moves the session to next, refusing moves the pipeline does not allow
func (s *session) transition(logger *slog.Logger, next model.SessionState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.CanTransition(next) {
		logger.Warn("invalid session transition", "user", s.userID, "from", s.state, "to", next)
		return false
	}
	logger.Debug("session transition", "user", s.userID, "from", s.state, "to", next)
	s.state = next
	return true
}

func (s *session) message() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messageID
}

func (s *session) setDialog(open bool) {
	s.mu.Lock()
	s.dialog = open
	s.mu.Unlock()
}

func (s *session) dialogOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dialog
}

func (s *session) currentTask() *model.FetchTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.task
}

func (s *session) title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.catalog == nil || s.catalog.Title == "" {
		return "Video"
	}
	return s.catalog.Title
}
