package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strconv"

	"github.com/huaweicloud/huaweicloud-sdk-go-obs/obs"

	"github.com/ytget/yt-relay/internal/model"
)

// ObsSink archives files into a Huawei Cloud OBS bucket under <chat id>/<file name>
type ObsSink struct {
	client *obs.ObsClient
	bucket string
	prefix string
	put    func(input *obs.PutFileInput) (*obs.PutObjectOutput, error)
	logger *slog.Logger
}

// NewObsSink creates an OBS client for endpoint
func NewObsSink(endpoint, ak, sk, bucket string, logger *slog.Logger) (*ObsSink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := obs.New(ak, sk, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create OBS client: %w", err)
	}

	return &ObsSink{
		client: client,
		bucket: bucket,
		put: func(input *obs.PutFileInput) (*obs.PutObjectOutput, error) {
			return client.PutFile(input)
		},
		logger: logger,
	}, nil
}

// SetPrefix sets the object key prefix
func (s *ObsSink) SetPrefix(prefix string) {
	s.prefix = prefix
}

// SendVideo archives a video file
func (s *ObsSink) SendVideo(ctx context.Context, chatID int64, file File) error {
	return s.upload(ctx, chatID, file)
}

// SendDocument archives a generic file
func (s *ObsSink) SendDocument(ctx context.Context, chatID int64, file File) error {
	return s.upload(ctx, chatID, file)
}

// ObjectKey returns the key a file of chatID is stored under
func (s *ObsSink) ObjectKey(chatID int64, filePath string) string {
	return path.Join(s.prefix, strconv.FormatInt(chatID, 10), filepath.Base(filePath))
}

func (s *ObsSink) upload(ctx context.Context, chatID int64, file File) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", model.ErrCancelled, err)
	}

	input := &obs.PutFileInput{}
	input.Bucket = s.bucket
	input.Key = s.ObjectKey(chatID, file.Path)
	input.SourceFile = file.Path

	output, err := s.put(input)
	if err != nil {
		var obsError obs.ObsError
		if errors.As(err, &obsError) {
			return fmt.Errorf("%w: OBS error %s: %s", model.ErrNetwork, obsError.Code, obsError.Message)
		}
		return fmt.Errorf("%w: upload to OBS: %v", model.ErrNetwork, err)
	}

	s.logger.Info("file archived", "path", file.Path, "bucket", s.bucket, "key", input.Key, "etag", output.ETag)
	return nil
}

// Close closes the client connection
func (s *ObsSink) Close() {
	if s.client != nil {
		s.client.Close()
	}
}
