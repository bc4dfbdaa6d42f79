package coordinator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ytget/yt-relay/internal/callback"
	"github.com/ytget/yt-relay/internal/model"
	"github.com/ytget/yt-relay/internal/relay"
)

// User-visible texts
const (
	textBanned          = "You are banned from using this bot."
	textNoURL           = "Please send a valid URL."
	textFetchingFormats = "Fetching available formats... ⏳"
	textNoFormats       = "❌ No downloadable formats found for this URL."
	textSelectFormat    = "Select format to download:"
	textConfirmCancel   = "⚠️ Are you sure you want to cancel this download?\n\nThis will immediately stop the current process."
	textCancelling      = "Cancelling..."
	textNotActive       = "⚠️ Could not cancel download. It may have already completed or been cancelled."
	textNotContinued    = "⚠️ Could not continue download. It may have already completed or been cancelled."
	textWaiting         = "Downloading... Please wait."

	buttonCancel   = "❌ Cancel Download"
	buttonConfirm  = "✅ Yes, Cancel Download"
	buttonContinue = "🔄 Continue Download"

	maxButtonText = 60
)

func bannedText(keyword string) string {
	return fmt.Sprintf("Sorry! No %s content here. 🙂", keyword)
}

// formatDuration renders seconds as m:ss or h:mm:ss, "Unknown" when absent
func formatDuration(seconds *uint) string {
	if seconds == nil || *seconds == 0 {
		return "Unknown"
	}
	s := *seconds
	if s >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", s/3600, (s%3600)/60, s%60)
	}
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

// menuMessage builds the format selection menu, two buttons per row, video
// formats first. Formats whose payload does not fit a button are skipped.
func menuMessage(userID int64, res *model.CatalogResult) (relay.Message, int) {
	var b strings.Builder
	b.WriteString(res.Title)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Uploader: %s\n", res.Uploader)
	fmt.Fprintf(&b, "Duration: %s\n\n", formatDuration(res.DurationSeconds))
	b.WriteString(textSelectFormat)

	var rows [][]relay.Button
	count := 0
	addGroup := func(formats []model.FormatDescriptor, icon string) {
		var row []relay.Button
		for _, f := range formats {
			data, err := callback.Encode(callback.SelectFormat{
				UserID:    userID,
				FormatID:  f.FormatID,
				MediaKind: f.Kind(),
			})
			if err != nil {
				continue
			}
			row = append(row, relay.Button{
				Text: relay.Truncate(icon+" "+f.Description, maxButtonText),
				Data: data,
			})
			count++
			if len(row) == 2 {
				rows = append(rows, row)
				row = nil
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	addGroup(res.VideoFormats(), "🎬")
	addGroup(res.AudioFormats(), "🎵")

	return relay.Message{Text: b.String(), Buttons: rows}, count
}

// progressMessage renders the download status of task with a Cancel button
func progressMessage(title, formatID, kind string, task *model.FetchTask) relay.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Downloading: %s\n\n", title)
	fmt.Fprintf(&b, "Format: %s (%s)\n\n", formatID, kind)

	snap := task.Progress()
	if snap.UpdatedAt.IsZero() {
		b.WriteString(textWaiting)
	} else {
		fmt.Fprintf(&b, "Downloaded: %.1f%%", snap.Percent)
		if speed := snap.GetSpeedString(); speed != "" {
			fmt.Fprintf(&b, "\nSpeed: %s", speed)
		}
		if snap.ETASec > 0 {
			fmt.Fprintf(&b, "\nETA: %s", snap.GetETAString())
		}
	}

	return relay.Message{
		Text: b.String(),
		Buttons: [][]relay.Button{{{
			Text: buttonCancel,
			Data: callback.MustEncode(callback.RequestCancel{UserID: task.OwnerID, TaskID: task.ID}),
		}}},
	}
}

func confirmMessage(userID int64, taskID string) relay.Message {
	return relay.Message{
		Text: textConfirmCancel,
		Buttons: [][]relay.Button{
			{{Text: buttonConfirm, Data: callback.MustEncode(callback.ConfirmCancel{UserID: userID, TaskID: taskID})}},
			{{Text: buttonContinue, Data: callback.MustEncode(callback.Continue{UserID: userID, TaskID: taskID})}},
		},
	}
}

func uploadingText(name string) string {
	return fmt.Sprintf("Uploading: %s\n\nPlease wait...", name)
}

func doneText(files int) string {
	return fmt.Sprintf("✅ Successfully processed URL!\n\n%d file(s) uploaded.\nFiles cleaned up to save space.", files)
}

// partCaption numbers the caption of a split file
func partCaption(caption string, index, count int) string {
	if count <= 1 {
		return caption
	}
	return fmt.Sprintf("%s (Part %d/%d)", caption, index, count)
}

// userMessage is the only place an error becomes user-visible text
func userMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, model.ErrCancelled):
		return "❌ Download cancelled by user."
	case errors.Is(err, model.ErrSessionBusy):
		return "⚠️ A download is already running. Finish or cancel it first."
	case errors.Is(err, model.ErrSessionExpired):
		return "Session expired. Please send the URL again."
	case errors.Is(err, model.ErrNotAuthorized):
		return "You are not authorized to use these buttons."
	case errors.Is(err, model.ErrInvalidPayload):
		return "⚠️ This button is no longer valid."
	case errors.Is(err, model.ErrUnsupportedSource):
		return "❌ This site is not supported."
	case errors.Is(err, model.ErrExtraction):
		return "❌ Error processing URL: " + err.Error()
	case errors.Is(err, model.ErrFileNotFound):
		return "❌ Failed to download file."
	case errors.Is(err, model.ErrNetwork):
		return "❌ Network error, please try again later."
	case errors.Is(err, model.ErrIO):
		return "❌ Could not prepare the file for upload."
	}
	return "❌ Error processing URL: " + err.Error()
}
