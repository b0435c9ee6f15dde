package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"server/internal/domain"
)

const (
	postsPrefix = "posts"
	moodsPrefix = "moods"

	// maxDirStemLen caps the combined campaign+headline stem so generated
	// directories stay well inside filesystem path limits.
	maxDirStemLen = 50

	maxMoodNameLen = 20
)

var deaccent = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// sanitizeName reduces a free-form name to a filesystem-safe token: accents
// are stripped, anything outside [A-Za-z0-9_-] becomes a separator, and
// separator runs collapse to a single underscore.
func sanitizeName(name string) string {
	if out, _, err := transform.String(deaccent, name); err == nil {
		name = out
	}
	var b strings.Builder
	lastSep := true
	for _, r := range name {
		switch {
		case unicode.IsLetter(r) && r < 128, unicode.IsDigit(r) && r < 128, r == '-':
			b.WriteRune(r)
			lastSep = false
		default:
			if !lastSep {
				b.WriteRune('_')
				lastSep = true
			}
		}
	}
	return strings.Trim(b.String(), "_")
}

// postDirectory builds the per-run output directory for post images:
// posts/{campaign}_{headline}-{digest}. The short digest of the raw names
// keeps runs distinct even when different headlines sanitize to the same
// stem ("Buy Now!" vs "Buy Now!!"), while staying deterministic for
// identical inputs.
func postDirectory(campaignName, headline string) string {
	// A component that sanitizes away entirely (an all-emoji headline, say)
	// must not leave a dangling underscore in the stem.
	parts := make([]string, 0, 2)
	for _, part := range []string{sanitizeName(campaignName), sanitizeName(headline)} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	stem := strings.Join(parts, "_")
	if stem == "" {
		stem = "post"
	}
	if runes := []rune(stem); len(runes) > maxDirStemLen {
		stem = strings.Trim(string(runes[:maxDirStemLen]), "_")
	}
	sum := sha256.Sum256([]byte(campaignName + "\x00" + headline))
	return fmt.Sprintf("%s/%s-%s", postsPrefix, stem, hex.EncodeToString(sum[:])[:6])
}

// postFileName names one ratio's output inside the run directory, with the
// colon replaced by a hyphen: image_16-9.png.
func postFileName(ratio string) string {
	return fmt.Sprintf("image_%s.png", domain.FileLabel(ratio))
}

// moodFileName builds a date-stamped mood asset name:
// {campaign}_{kind}_{YYYYMMDD_HHMMSS}_{ratio}.{ext}.
func moodFileName(campaignName, kind string, at time.Time, ratio, ext string) string {
	name := sanitizeName(campaignName)
	if runes := []rune(name); len(runes) > maxMoodNameLen {
		name = strings.Trim(string(runes[:maxMoodNameLen]), "_")
	}
	if name == "" {
		name = "campaign"
	}
	stamp := at.UTC().Format("20060102_150405")
	return fmt.Sprintf("%s/%s_%s_%s_%s.%s", moodsPrefix, name, kind, stamp, domain.FileLabel(ratio), ext)
}
