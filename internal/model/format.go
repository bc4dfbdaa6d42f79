package model

// AudioOnlyResolution is the resolution label of audio streams
const AudioOnlyResolution = "Audio only"

// FormatDescriptor describes one downloadable stream of a source URL
type FormatDescriptor struct {
	FormatID    string  `json:"format_id"`
	Container   string  `json:"ext"`
	Resolution  string  `json:"resolution"`
	ApproxSize  *int64  `json:"filesize,omitempty"` // nil when the backend reports nothing usable
	HumanSize   string  `json:"human_size"`
	Description string  `json:"description"`
	IsVideo     bool    `json:"is_video"`
	Width       int     `json:"width,omitempty"`
	Height      int     `json:"height,omitempty"`
	FPS         int     `json:"fps,omitempty"`
	TBR         float64 `json:"tbr,omitempty"`
	ABR         float64 `json:"abr,omitempty"`
	VBR         float64 `json:"vbr,omitempty"`
}

// Kind returns "video" or "audio"
func (f FormatDescriptor) Kind() string {
	if f.IsVideo {
		return KindVideo
	}
	return KindAudio
}

// Format kinds carried by a selection
const (
	KindVideo = "video"
	KindAudio = "audio"
)

// CatalogResult is the format menu of a source URL
type CatalogResult struct {
	Title           string             `json:"title"`
	Uploader        string             `json:"uploader"`
	DurationSeconds *uint              `json:"duration,omitempty"`
	Formats         []FormatDescriptor `json:"formats"`
	ThumbnailURL    string             `json:"thumbnail"`
	SourceURL       string             `json:"webpage_url"`
}

// Find returns the format with the given id
func (c *CatalogResult) Find(formatID string) (FormatDescriptor, bool) {
	for _, f := range c.Formats {
		if f.FormatID == formatID {
			return f, true
		}
	}
	return FormatDescriptor{}, false
}

// VideoFormats returns the video entries in catalog order
func (c *CatalogResult) VideoFormats() []FormatDescriptor {
	var out []FormatDescriptor
	for _, f := range c.Formats {
		if f.IsVideo {
			out = append(out, f)
		}
	}
	return out
}

// AudioFormats returns the audio entries in catalog order
func (c *CatalogResult) AudioFormats() []FormatDescriptor {
	var out []FormatDescriptor
	for _, f := range c.Formats {
		if !f.IsVideo {
			out = append(out, f)
		}
	}
	return out
}
