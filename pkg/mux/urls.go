package mux

import "fmt"

const (
	imageBaseURL  = "https://image.mux.com"
	streamBaseURL = "https://stream.mux.com"
)

// ThumbnailURL returns the provider-rendered still for a playback id.
func ThumbnailURL(playbackID string) string {
	return fmt.Sprintf("%s/%s/thumbnail.jpg", imageBaseURL, playbackID)
}

// PreviewURL returns the provider-rendered animated preview for a playback id.
func PreviewURL(playbackID string) string {
	return fmt.Sprintf("%s/%s/animated.gif", imageBaseURL, playbackID)
}

// TranscriptURL returns the plain-text transcript of a generated subtitle track.
func TranscriptURL(playbackID, trackID string) string {
	return fmt.Sprintf("%s/%s/text/%s.txt", streamBaseURL, playbackID, trackID)
}
