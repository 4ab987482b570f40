package media

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

const maxTitleRunes = 100

// Sanitize drops path-unsafe symbols and control characters and truncates to 100 runes.
func Sanitize(title string) string {
	var b strings.Builder
	n := 0
	for _, r := range title {
		if n == maxTitleRunes {
			break
		}
		if r < 0x20 || strings.ContainsRune(`<>:"/\|?*`, r) {
			continue
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}

// HashID is the first 8 hex chars of md5(sourceID).
func HashID(sourceID string) string {
	sum := md5.Sum([]byte(sourceID))
	return hex.EncodeToString(sum[:])[:8]
}

// Key names both the media file and its metadata sidecar.
func Key(sourceID, title string) string {
	return HashID(sourceID) + "-" + Sanitize(title)
}
