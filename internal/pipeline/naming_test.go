package pipeline

import (
	"strings"
	"testing"
	"time"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Summer Sale", "Summer_Sale"},
		{"Buy Now!", "Buy_Now"},
		{"  spaced  out  ", "spaced_out"},
		{"Café Olé", "Cafe_Ole"},
		{"emoji 🎉 party", "emoji_party"},
		{"already_clean-name", "already_clean-name"},
		{"///", ""},
	}
	for _, tc := range tests {
		if got := sanitizeName(tc.input); got != tc.want {
			t.Fatalf("sanitizeName(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestPostDirectoryDeterministic(t *testing.T) {
	a := postDirectory("Summer Sale", "Buy Now!")
	b := postDirectory("Summer Sale", "Buy Now!")
	if a != b {
		t.Fatalf("same inputs produced different directories: %q vs %q", a, b)
	}
	if !strings.HasPrefix(a, "posts/Summer_Sale_Buy_Now-") {
		t.Fatalf("directory = %q, want posts/Summer_Sale_Buy_Now-<digest>", a)
	}
}

func TestPostDirectoryDistinguishesPunctuation(t *testing.T) {
	// "Buy Now!" and "Buy Now!!" sanitize to the same stem; the digest
	// suffix must keep their runs apart.
	a := postDirectory("Summer Sale", "Buy Now!")
	b := postDirectory("Summer Sale", "Buy Now!!")
	if a == b {
		t.Fatalf("distinct headlines mapped to the same directory: %q", a)
	}
}

func TestPostDirectoryCapsStemLength(t *testing.T) {
	dir := postDirectory(strings.Repeat("campaign", 20), strings.Repeat("headline", 20))
	rest := strings.TrimPrefix(dir, "posts/")
	stem := rest[:strings.LastIndex(rest, "-")]
	if len([]rune(stem)) > maxDirStemLen {
		t.Fatalf("stem length = %d, want <= %d", len([]rune(stem)), maxDirStemLen)
	}
}

func TestPostDirectorySkipsEmptyComponents(t *testing.T) {
	tests := []struct {
		name     string
		campaign string
		headline string
		wantStem string
	}{
		{"empty headline", "Summer Sale", "🎉🎉", "Summer_Sale"},
		{"empty campaign", "🎉🎉", "Buy Now!", "Buy_Now"},
		{"both empty", "🎉", "!!!", "post"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := postDirectory(tc.campaign, tc.headline)
			if !strings.HasPrefix(dir, "posts/"+tc.wantStem+"-") {
				t.Fatalf("postDirectory(%q, %q) = %q, want stem %q", tc.campaign, tc.headline, dir, tc.wantStem)
			}
		})
	}
}

func TestPostFileName(t *testing.T) {
	tests := []struct {
		ratio string
		want  string
	}{
		{"1:1", "image_1-1.png"},
		{"16:9", "image_16-9.png"},
		{"9:16", "image_9-16.png"},
	}
	for _, tc := range tests {
		if got := postFileName(tc.ratio); got != tc.want {
			t.Fatalf("postFileName(%q) = %q, want %q", tc.ratio, got, tc.want)
		}
	}
}

func TestMoodFileName(t *testing.T) {
	at := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	got := moodFileName("Spring Launch", "img", at, "16:9", "png")
	want := "moods/Spring_Launch_img_20260314_150926_16-9.png"
	if got != want {
		t.Fatalf("moodFileName = %q, want %q", got, want)
	}

	long := moodFileName(strings.Repeat("verylongcampaign", 5), "vid", at, "9:16", "mp4")
	name := strings.TrimPrefix(long, "moods/")
	campaign := name[:strings.Index(name, "_vid_")]
	if len([]rune(campaign)) > maxMoodNameLen {
		t.Fatalf("campaign token length = %d, want <= %d", len([]rune(campaign)), maxMoodNameLen)
	}

	blank := moodFileName("🎉🎉", "img", at, "1:1", "png")
	if blank != "moods/campaign_img_20260314_150926_1-1.png" {
		t.Fatalf("empty campaign name = %q, want the fallback token", blank)
	}
}
