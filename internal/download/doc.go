package download

// Package download implements the fetch engine built on top of yt-dlp
// (via github.com/lrstanley/go-ytdlp). It runs one cancellable fetch per task,
// propagates progress into the task, expands playlists and resolves the files
// the backend produced into FileResults.
