package downloader

import "strings"

// Phrases yt-dlp prints when YouTube wants a signed-in session.
var credentialSignatures = []string{
	"sign in to confirm",
	"use --cookies",
	"cookie",
	"authentication",
}

// NeedsCredentials reports whether an extractor failure message looks like an
// authentication challenge.
func NeedsCredentials(msg string) bool {
	msg = strings.ToLower(msg)
	for _, sig := range credentialSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}
