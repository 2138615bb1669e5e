package media

import (
	"fmt"
	"math"
	"os"
	"strings"
)

// FormatTimestamp renders seconds as a zero-padded HH:MM:SS.mmm cue
// boundary.
func FormatTimestamp(seconds float64) string {
	ms := int(math.Round((seconds - math.Floor(seconds)) * 1000))
	total := int(seconds)
	if ms == 1000 {
		total++
		ms = 0
	}
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

// BuildThumbnailIndex renders a WEBVTT cue list where cue i covers
// [i/fps, (i+1)/fps) and references the i-th image by filename. The
// result is a deterministic function of the image list and the rate.
func BuildThumbnailIndex(images []string, fps int) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	step := 1.0 / float64(fps)
	for i, img := range images {
		start := FormatTimestamp(float64(i) * step)
		end := FormatTimestamp(float64(i+1) * step)
		fmt.Fprintf(&b, "%s --> %s\n%s\n\n", start, end, img)
	}
	return b.String()
}

// WriteThumbnailIndex writes the WEBVTT index for images to path.
func WriteThumbnailIndex(path string, images []string, fps int) error {
	if err := os.WriteFile(path, []byte(BuildThumbnailIndex(images, fps)), 0600); err != nil {
		return fmt.Errorf("write thumbnail index: %w", err)
	}
	return nil
}
