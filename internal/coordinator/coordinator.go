// Package coordinator drives a user request through the pipeline: format
// menu, fetch with live progress, splitting, relay of every part and cleanup.
// It owns the per-user sessions and is the only layer that turns errors into
// user-visible text.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/ytget/yt-relay/internal/callback"
	"github.com/ytget/yt-relay/internal/kv"
	"github.com/ytget/yt-relay/internal/model"
	"github.com/ytget/yt-relay/internal/platform"
	"github.com/ytget/yt-relay/internal/registry"
	"github.com/ytget/yt-relay/internal/relay"
)

// Defaults for Options fields left zero
const (
	DefaultDownloadDir      = "./DOWNLOADS"
	DefaultProgressInterval = 3 * time.Second
	DefaultSessionTTL       = 30 * time.Minute
)

// Catalog lists the formats of a source URL
type Catalog interface {
	ListFormats(ctx context.Context, url string) (*model.CatalogResult, error)
}

// Fetcher downloads a task
type Fetcher interface {
	Fetch(ctx context.Context, task *model.FetchTask) ([]model.FileResult, error)
}

// Splitter cuts a file into parts no larger than chunkSize
type Splitter interface {
	Split(path string, chunkSize int64) (model.ChunkSet, error)
}

// Options configures a Coordinator
type Options struct {
	DownloadDir      string
	MaxPartSize      int64
	ProgressInterval time.Duration
	SessionTTL       time.Duration
	BannedKeywords   []string
}

// Request is an incoming text message
type Request struct {
	UserID int64
	ChatID int64
	Text   string
}

// Callback is a pressed inline button
type Callback struct {
	ID        string
	UserID    int64
	ChatID    int64
	MessageID int
	Data      string
}

// Coordinator is safe for concurrent use. Requests of different users run
// in parallel; each user owns at most one session.
type Coordinator struct {
	catalog  Catalog
	fetcher  Fetcher
	splitter Splitter
	sink     relay.Sink
	notifier relay.Notifier
	store    kv.MembershipStore
	tasks    *registry.Registry
	opts     Options
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	sessions map[int64]*session

	runCtx   context.Context
	stopRuns context.CancelFunc
	wg       sync.WaitGroup
}

// Deps are the collaborators of a Coordinator
type Deps struct {
	Catalog  Catalog
	Fetcher  Fetcher
	Splitter Splitter
	Sink     relay.Sink
	Notifier relay.Notifier
	Store    kv.MembershipStore
	Tasks    *registry.Registry
}

// New creates a Coordinator. Zero option fields take their defaults.
func New(deps Deps, opts Options, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.DownloadDir == "" {
		opts.DownloadDir = DefaultDownloadDir
	}
	if opts.MaxPartSize <= 0 {
		opts.MaxPartSize = model.MaxPartSize
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = DefaultProgressInterval
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	if opts.BannedKeywords == nil {
		opts.BannedKeywords = DefaultBannedKeywords
	}
	if deps.Tasks == nil {
		deps.Tasks = registry.New()
	}

	runCtx, stop := context.WithCancel(context.Background())
	return &Coordinator{
		catalog:  deps.Catalog,
		fetcher:  deps.Fetcher,
		splitter: deps.Splitter,
		sink:     deps.Sink,
		notifier: deps.Notifier,
		store:    deps.Store,
		tasks:    deps.Tasks,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[int64]*session),
		runCtx:   runCtx,
		stopRuns: stop,
	}
}

// Tasks returns the registry of running fetches
func (c *Coordinator) Tasks() *registry.Registry {
	return c.tasks
}

// Wait blocks until every started run has finished
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Close cancels all runs and waits for them to clean up
func (c *Coordinator) Close() {
	c.stopRuns()
	c.wg.Wait()
}

// HandleURL validates req and answers with the format menu of its URL.
// Rejected requests are answered and reported through the returned error.
func (c *Coordinator) HandleURL(ctx context.Context, req Request) error {
	banned, err := c.store.Contains(ctx, kv.KeyBlacklist, req.UserID)
	if err != nil {
		c.logger.Error("blacklist lookup failed", "user", req.UserID, "error", err)
	}
	if banned {
		c.reply(ctx, req.ChatID, textBanned)
		return fmt.Errorf("user %d: %w", req.UserID, model.ErrNotAuthorized)
	}

	if err := c.store.Add(ctx, kv.KeyAllChats, req.UserID); err != nil {
		c.logger.Error("failed to record chat", "user", req.UserID, "error", err)
	}

	url, caption, ok := parseRequest(req.Text)
	if !ok {
		c.reply(ctx, req.ChatID, textNoURL)
		return nil
	}

	if kw, hit := bannedKeyword(url, c.opts.BannedKeywords); hit {
		if err := c.store.Add(ctx, kv.KeyBlacklist, req.UserID); err != nil {
			c.logger.Error("failed to blacklist user", "user", req.UserID, "error", err)
		}
		c.logger.Info("user blacklisted", "user", req.UserID, "keyword", kw)
		c.reply(ctx, req.ChatID, bannedText(kw))
		return fmt.Errorf("user %d: banned keyword %q: %w", req.UserID, kw, model.ErrNotAuthorized)
	}

	s, err := c.openSession(req, url, caption)
	if err != nil {
		c.reply(ctx, req.ChatID, userMessage(err))
		return err
	}

	msgID, err := c.notifier.Send(ctx, req.ChatID, relay.Message{Text: textFetchingFormats})
	if err != nil {
		c.logger.Error("failed to send status message", "user", req.UserID, "error", err)
	}
	s.mu.Lock()
	s.messageID = msgID
	s.mu.Unlock()

	res, err := c.catalog.ListFormats(ctx, url)
	if err != nil {
		s.transition(c.logger, model.SessionFailed)
		c.dropSession(s)
		c.logger.Error("format listing failed", "user", req.UserID, "url", url, "error", err)
		c.edit(ctx, s, relay.Message{Text: userMessage(err)})
		return err
	}

	menu, count := menuMessage(req.UserID, res)
	if count == 0 {
		s.transition(c.logger, model.SessionFailed)
		c.dropSession(s)
		c.edit(ctx, s, relay.Message{Text: textNoFormats})
		return fmt.Errorf("%s: %w: no formats", url, model.ErrExtraction)
	}

	s.mu.Lock()
	s.catalog = res
	s.mu.Unlock()
	if !s.transition(c.logger, model.SessionFormatsReady) {
		return fmt.Errorf("user %d: %w", req.UserID, model.ErrSessionExpired)
	}
	c.logger.Info("format menu ready", "user", req.UserID, "url", url, "formats", count)
	c.edit(ctx, s, menu)
	return nil
}

// openSession replaces any idle session of the user. A user whose previous
// request is still being fetched or relayed is rejected.
func (c *Coordinator) openSession(req Request, url, caption string) (*session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.sessions[req.UserID]; ok && prev.State().IsBusy() {
		return nil, fmt.Errorf("user %d: %w", req.UserID, model.ErrSessionBusy)
	}
	s := newSession(req.UserID, req.ChatID, url, caption, c.now())
	c.sessions[req.UserID] = s
	return s, nil
}

// dropSession forgets s unless a newer session already replaced it
func (c *Coordinator) dropSession(s *session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessions[s.userID] == s {
		delete(c.sessions, s.userID)
	}
}

func (c *Coordinator) session(userID int64) *session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions[userID]
}

// Session returns the pipeline state of the user's current request
func (c *Coordinator) Session(userID int64) (model.SessionState, bool) {
	s := c.session(userID)
	if s == nil {
		return "", false
	}
	return s.State(), true
}

// HandleCallback decodes and executes a button press
func (c *Coordinator) HandleCallback(ctx context.Context, cb Callback) error {
	payload, err := callback.Decode(cb.Data)
	if err != nil {
		c.answer(ctx, cb, userMessage(err))
		return err
	}
	if payload.User() != cb.UserID {
		err := fmt.Errorf("user %d pressed a button of user %d: %w", cb.UserID, payload.User(), model.ErrNotAuthorized)
		c.answer(ctx, cb, userMessage(err))
		return err
	}

	switch p := payload.(type) {
	case callback.SelectFormat:
		err = c.selectFormat(ctx, cb, p)
	case callback.RequestCancel:
		err = c.requestCancel(ctx, cb, p)
	case callback.ConfirmCancel:
		err = c.confirmCancel(ctx, cb, p)
	case callback.Continue:
		err = c.continueTask(ctx, cb, p)
	}
	return err
}

// selectFormat starts the fetch of the chosen format in the background
func (c *Coordinator) selectFormat(ctx context.Context, cb Callback, p callback.SelectFormat) error {
	s, err := c.readySession(cb)
	if err != nil {
		c.answer(ctx, cb, "")
		c.editMessage(ctx, cb.ChatID, cb.MessageID, relay.Message{Text: userMessage(err)})
		return err
	}

	s.mu.Lock()
	_, known := s.catalog.Find(p.FormatID)
	s.mu.Unlock()
	if !known {
		err := fmt.Errorf("format %q: %w", p.FormatID, model.ErrInvalidPayload)
		c.answer(ctx, cb, userMessage(err))
		return err
	}

	id := registry.NewTaskID()
	dir := filepath.Join(c.opts.DownloadDir, platform.TaskDirName(c.now()))
	task := model.NewFetchTask(id, s.url, dir, p.FormatID, s.userID)
	task.Caption = s.caption

	if err := c.tasks.Register(id, task); err != nil {
		c.answer(ctx, cb, "")
		return fmt.Errorf("register %s: %w", id, err)
	}
	s.mu.Lock()
	s.task = task
	s.kind = p.MediaKind
	s.mu.Unlock()
	if !s.transition(c.logger, model.SessionDownloading) {
		c.tasks.Unregister(id)
		c.answer(ctx, cb, "")
		return fmt.Errorf("user %d: %w", s.userID, model.ErrSessionBusy)
	}

	c.logger.Info("task started", "task", id, "user", s.userID, "format", p.FormatID, "kind", p.MediaKind)
	c.answer(ctx, cb, "")
	c.edit(ctx, s, progressMessage(s.title(), p.FormatID, p.MediaKind, task))

	c.wg.Add(1)
	go c.run(c.runCtx, s, task)
	return nil
}

// readySession returns the user's session waiting for a format choice on
// the pressed menu
func (c *Coordinator) readySession(cb Callback) (*session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[cb.UserID]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", cb.UserID, model.ErrSessionExpired)
	}
	state := s.State()
	if state.IsBusy() {
		return nil, fmt.Errorf("user %d: %w", cb.UserID, model.ErrSessionBusy)
	}
	if state != model.SessionFormatsReady || s.message() != cb.MessageID {
		return nil, fmt.Errorf("user %d: %w", cb.UserID, model.ErrSessionExpired)
	}
	if c.now().Sub(s.createdAt) > c.opts.SessionTTL {
		delete(c.sessions, cb.UserID)
		return nil, fmt.Errorf("user %d: %w", cb.UserID, model.ErrSessionExpired)
	}
	return s, nil
}

// ownedTask returns the live task registered under taskID, or nil when the
// task already ended. Tasks of other users are refused.
func (c *Coordinator) ownedTask(userID int64, taskID string) (registry.Handle, error) {
	h, ok := c.tasks.Lookup(taskID)
	if !ok || h.Status().IsFinished() {
		return nil, nil
	}
	if h.Owner() != userID {
		return nil, fmt.Errorf("task %s: %w", taskID, model.ErrNotAuthorized)
	}
	return h, nil
}

func (c *Coordinator) requestCancel(ctx context.Context, cb Callback, p callback.RequestCancel) error {
	h, err := c.ownedTask(cb.UserID, p.TaskID)
	if err != nil {
		c.answer(ctx, cb, userMessage(err))
		return err
	}
	c.answer(ctx, cb, "")
	if h == nil {
		c.editMessage(ctx, cb.ChatID, cb.MessageID, relay.Message{Text: textNotActive})
		return nil
	}
	s := c.session(cb.UserID)
	if s == nil {
		c.editMessage(ctx, cb.ChatID, cb.MessageID, confirmMessage(cb.UserID, p.TaskID))
		return nil
	}
	s.editMu.Lock()
	defer s.editMu.Unlock()
	s.setDialog(true)
	c.editMessage(ctx, cb.ChatID, cb.MessageID, confirmMessage(cb.UserID, p.TaskID))
	return nil
}

// confirmCancel raises the cancellation flag of the task. The run observing
// it reports the outcome; a task that already ended is left alone.
func (c *Coordinator) confirmCancel(ctx context.Context, cb Callback, p callback.ConfirmCancel) error {
	h, err := c.ownedTask(cb.UserID, p.TaskID)
	if err != nil {
		c.answer(ctx, cb, userMessage(err))
		return err
	}
	if h == nil || !c.tasks.Cancel(p.TaskID) {
		c.answer(ctx, cb, "")
		c.editMessage(ctx, cb.ChatID, cb.MessageID, relay.Message{Text: textNotActive})
		return nil
	}
	c.logger.Info("task cancel requested", "task", p.TaskID, "user", cb.UserID)
	c.answer(ctx, cb, textCancelling)
	return nil
}

func (c *Coordinator) continueTask(ctx context.Context, cb Callback, p callback.Continue) error {
	h, err := c.ownedTask(cb.UserID, p.TaskID)
	if err != nil {
		c.answer(ctx, cb, userMessage(err))
		return err
	}
	c.answer(ctx, cb, "")
	s := c.session(cb.UserID)
	if h == nil || s == nil || s.currentTask() == nil || s.currentTask().ID != p.TaskID {
		c.editMessage(ctx, cb.ChatID, cb.MessageID, relay.Message{Text: textNotContinued})
		return nil
	}
	s.editMu.Lock()
	defer s.editMu.Unlock()
	s.setDialog(false)
	c.refreshProgress(ctx, s)
	return nil
}

// CancelTask cancels a running fetch by id regardless of owner
func (c *Coordinator) CancelTask(taskID string) bool {
	return c.tasks.Cancel(taskID)
}

func (c *Coordinator) reply(ctx context.Context, chatID int64, text string) {
	if _, err := c.notifier.Send(ctx, chatID, relay.Message{Text: text}); err != nil {
		c.logger.Error("failed to send message", "chat", chatID, "error", err)
	}
}

func (c *Coordinator) edit(ctx context.Context, s *session, msg relay.Message) {
	c.editMessage(ctx, s.chatID, s.message(), msg)
}

func (c *Coordinator) editMessage(ctx context.Context, chatID int64, messageID int, msg relay.Message) {
	if messageID == 0 {
		c.reply(ctx, chatID, msg.Text)
		return
	}
	if err := c.notifier.Edit(ctx, chatID, messageID, msg); err != nil {
		c.logger.Error("failed to edit message", "chat", chatID, "message", messageID, "error", err)
	}
}

func (c *Coordinator) answer(ctx context.Context, cb Callback, text string) {
	if cb.ID == "" {
		return
	}
	if err := c.notifier.AnswerCallback(ctx, cb.ID, text); err != nil {
		c.logger.Error("failed to answer callback", "callback", cb.ID, "error", err)
	}
}
