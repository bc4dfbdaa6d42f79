// Package callback encodes the data carried by interactive buttons. Every
// button payload goes through Encode and Decode; no other code parses them.
//
// Wire form: <tag>:<user>:<fields...>, at most MaxLen bytes.
package callback

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ytget/yt-relay/internal/model"
)

// MaxLen is the largest payload a chat button can carry
const MaxLen = 64

// Kind identifies a payload variant
type Kind string

const (
	KindSelectFormat  Kind = "f"
	KindRequestCancel Kind = "c"
	KindConfirmCancel Kind = "x"
	KindContinue      Kind = "r"
)

const separator = ":"

// Payload is one of SelectFormat, RequestCancel, ConfirmCancel or Continue
type Payload interface {
	Kind() Kind
	User() int64
}

// SelectFormat picks a format from a menu
type SelectFormat struct {
	UserID    int64
	FormatID  string
	MediaKind string // model.KindVideo or model.KindAudio
}

// RequestCancel opens the cancel confirmation dialog of a task
type RequestCancel struct {
	UserID int64
	TaskID string
}

// ConfirmCancel cancels a task
type ConfirmCancel struct {
	UserID int64
	TaskID string
}

// Continue dismisses the cancel confirmation dialog
type Continue struct {
	UserID int64
	TaskID string
}

func (SelectFormat) Kind() Kind  { return KindSelectFormat }
func (RequestCancel) Kind() Kind { return KindRequestCancel }
func (ConfirmCancel) Kind() Kind { return KindConfirmCancel }
func (Continue) Kind() Kind      { return KindContinue }

func (p SelectFormat) User() int64  { return p.UserID }
func (p RequestCancel) User() int64 { return p.UserID }
func (p ConfirmCancel) User() int64 { return p.UserID }
func (p Continue) User() int64      { return p.UserID }

// ErrTooLong is returned when a payload does not fit in MaxLen bytes
var ErrTooLong = errors.New("callback payload too long")

// Encode serializes p
func Encode(p Payload) (string, error) {
	var fields []string
	switch v := p.(type) {
	case SelectFormat:
		if v.FormatID == "" {
			return "", fmt.Errorf("%w: empty format id", model.ErrInvalidPayload)
		}
		if v.MediaKind != model.KindVideo && v.MediaKind != model.KindAudio {
			return "", fmt.Errorf("%w: unknown media kind %q", model.ErrInvalidPayload, v.MediaKind)
		}
		// format id last: it may contain the separator
		fields = []string{kindCode(v.MediaKind), v.FormatID}
	case RequestCancel:
		fields = []string{v.TaskID}
	case ConfirmCancel:
		fields = []string{v.TaskID}
	case Continue:
		fields = []string{v.TaskID}
	default:
		return "", fmt.Errorf("%w: unsupported payload %T", model.ErrInvalidPayload, p)
	}

	if p.Kind() != KindSelectFormat && fields[0] == "" {
		return "", fmt.Errorf("%w: empty task id", model.ErrInvalidPayload)
	}

	parts := append([]string{string(p.Kind()), strconv.FormatInt(p.User(), 10)}, fields...)
	data := strings.Join(parts, separator)
	if len(data) > MaxLen {
		return "", fmt.Errorf("%w: %d bytes", ErrTooLong, len(data))
	}
	return data, nil
}

// Decode parses data produced by Encode
func Decode(data string) (Payload, error) {
	if data == "" || len(data) > MaxLen {
		return nil, fmt.Errorf("%w: bad length %d", model.ErrInvalidPayload, len(data))
	}

	parts := strings.SplitN(data, separator, 3)
	if len(parts) != 3 || parts[2] == "" {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidPayload, data)
	}

	user, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad user in %q", model.ErrInvalidPayload, data)
	}
	rest := parts[2]

	switch Kind(parts[0]) {
	case KindSelectFormat:
		kindPart, formatID, ok := strings.Cut(rest, separator)
		if !ok || formatID == "" {
			return nil, fmt.Errorf("%w: %q", model.ErrInvalidPayload, data)
		}
		mediaKind, ok := mediaKindOf(kindPart)
		if !ok {
			return nil, fmt.Errorf("%w: bad media kind in %q", model.ErrInvalidPayload, data)
		}
		return SelectFormat{UserID: user, FormatID: formatID, MediaKind: mediaKind}, nil
	case KindRequestCancel:
		return RequestCancel{UserID: user, TaskID: rest}, nil
	case KindConfirmCancel:
		return ConfirmCancel{UserID: user, TaskID: rest}, nil
	case KindContinue:
		return Continue{UserID: user, TaskID: rest}, nil
	}
	return nil, fmt.Errorf("%w: unknown tag in %q", model.ErrInvalidPayload, data)
}

// MustEncode is Encode for payloads built from trusted values; it panics on error
func MustEncode(p Payload) string {
	data, err := Encode(p)
	if err != nil {
		panic(err)
	}
	return data
}

func kindCode(mediaKind string) string {
	if mediaKind == model.KindVideo {
		return "v"
	}
	return "a"
}

func mediaKindOf(code string) (string, bool) {
	switch code {
	case "v":
		return model.KindVideo, true
	case "a":
		return model.KindAudio, true
	}
	return "", false
}
