package coordinator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ytget/yt-relay/internal/model"
	"github.com/ytget/yt-relay/internal/platform"
	"github.com/ytget/yt-relay/internal/relay"
)

// run fetches task and relays its files. It ends the session in Done,
// Cancelled or Failed and never leaves the task registered.
func (c *Coordinator) run(ctx context.Context, s *session, task *model.FetchTask) {
	defer c.wg.Done()
	defer c.dropSession(s)

	start := time.Now()
	done := make(chan struct{})
	stopped := make(chan struct{})
	go c.watchProgress(ctx, s, done, stopped)

	files, err := c.fetcher.Fetch(ctx, task)
	close(done)
	<-stopped
	c.tasks.Unregister(task.ID)
	s.setDialog(false)

	if err != nil {
		c.fail(ctx, s, task, err)
		return
	}

	relayed, err := c.relayFiles(ctx, s, files)
	if err != nil {
		c.fail(ctx, s, task, err)
		return
	}

	s.transition(c.logger, model.SessionCleaning)
	c.cleanup(task, files)
	s.transition(c.logger, model.SessionDone)

	c.logger.Info("task done", "task", task.ID, "user", s.userID, "files", relayed, "elapsed", time.Since(start))
	c.edit(context.WithoutCancel(ctx), s, relay.Message{Text: doneText(relayed)})
}

// watchProgress refreshes the status message every ProgressInterval until
// done is closed. Refreshes pause while the cancel dialog is shown.
func (c *Coordinator) watchProgress(ctx context.Context, s *session, done <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	ticker := time.NewTicker(c.opts.ProgressInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.editMu.Lock()
			if !s.dialogOpen() {
				c.refreshProgress(ctx, s)
			}
			s.editMu.Unlock()
		}
	}
}

func (c *Coordinator) refreshProgress(ctx context.Context, s *session) {
	s.mu.Lock()
	task, kind := s.task, s.kind
	s.mu.Unlock()
	if task == nil {
		return
	}
	snap := task.Progress()
	c.logger.Debug("progress", "task", task.ID, "percent", snap.Percent, "downloaded", snap.DownloadedBytes)
	c.edit(ctx, s, progressMessage(s.title(), task.FormatID, kind, task))
}

// relayFiles sends every file, split into parts when it exceeds the sink
// ceiling. Part files are removed once their file is relayed.
func (c *Coordinator) relayFiles(ctx context.Context, s *session, files []model.FileResult) (int, error) {
	s.mu.Lock()
	kind := s.kind
	s.mu.Unlock()

	relayed := 0
	for _, fr := range files {
		set := model.ChunkSet{
			Source: fr.Path,
			Parts:  []model.Chunk{{PartPath: fr.Path, PartIndex: 1, PartCount: 1, Size: fr.SizeBytes}},
		}
		if fr.NeedsSplit {
			s.transition(c.logger, model.SessionSplitting)
			split, err := c.splitter.Split(fr.Path, c.opts.MaxPartSize)
			if err != nil {
				return relayed, fmt.Errorf("split %s: %w", fr.FileName, err)
			}
			set = split
		}
		s.transition(c.logger, model.SessionRelaying)

		err := c.relayParts(ctx, s, kind, fr, set)
		if set.IsSplit() {
			c.removeParts(set)
		}
		if err != nil {
			return relayed, err
		}
		relayed++
	}
	return relayed, nil
}

// relayParts sends the parts of one file in ascending order
func (c *Coordinator) relayParts(ctx context.Context, s *session, kind string, fr model.FileResult, set model.ChunkSet) error {
	asVideo := kind == model.KindVideo && fr.IsVideoFile()
	for _, part := range set.Parts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("relay %s: %w", fr.FileName, model.ErrCancelled)
		}

		name := filepath.Base(part.PartPath)
		c.edit(ctx, s, relay.Message{Text: uploadingText(name)})

		file := relay.File{
			Path:    part.PartPath,
			Caption: partCaption(fr.Caption, part.PartIndex, part.PartCount),
			Width:   fr.Width,
			Height:  fr.Height,
		}
		if part.PartCount <= 1 {
			file.Duration = int(fr.Duration)
		}

		var err error
		if asVideo {
			err = c.sink.SendVideo(ctx, s.chatID, file)
		} else {
			err = c.sink.SendDocument(ctx, s.chatID, file)
		}
		if err != nil {
			return fmt.Errorf("relay %s: %w", name, err)
		}
		c.logger.Info("part relayed", "user", s.userID, "part", name, "index", part.PartIndex, "count", part.PartCount, "video", asVideo)
	}
	return nil
}

func (c *Coordinator) removeParts(set model.ChunkSet) {
	paths := make([]string, 0, len(set.Parts))
	for _, p := range set.Parts {
		paths = append(paths, p.PartPath)
	}
	platform.RemoveFiles(c.logger, paths...)
	platform.RemoveDirIfEmpty(c.logger, set.Dir)
}

// cleanup removes the downloaded files and their directories once empty
func (c *Coordinator) cleanup(task *model.FetchTask, files []model.FileResult) {
	dirs := make(map[string]bool)
	paths := make([]string, 0, len(files))
	for _, fr := range files {
		paths = append(paths, fr.Path)
		dirs[filepath.Dir(fr.Path)] = true
	}
	platform.RemoveFiles(c.logger, paths...)
	for dir := range dirs {
		platform.RemoveDirIfEmpty(c.logger, dir)
	}
	platform.RemoveDirIfEmpty(c.logger, task.OutputDir)
}

// fail ends the session after a fetch, split or relay error. Files already
// relayed stay relayed; everything left on disk for the task is removed.
func (c *Coordinator) fail(ctx context.Context, s *session, task *model.FetchTask, err error) {
	platform.RemoveTree(c.logger, task.OutputDir)

	if errors.Is(err, model.ErrCancelled) || errors.Is(err, context.Canceled) {
		s.transition(c.logger, model.SessionCancelled)
		c.logger.Info("task cancelled", "task", task.ID, "user", s.userID)
		err = model.ErrCancelled
	} else {
		s.transition(c.logger, model.SessionFailed)
		c.logger.Error("task failed", "task", task.ID, "user", s.userID, "error", err)
	}
	c.edit(context.WithoutCancel(ctx), s, relay.Message{Text: userMessage(err)})
}
