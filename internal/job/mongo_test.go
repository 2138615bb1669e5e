package job

import (
	"testing"
	"time"
)

func TestUpdate_SetFields(t *testing.T) {
	u := Update{
		Status:      StatusOf(StatusRunning),
		Progress:    IntOf(5),
		ArtifactURL: StringOf("https://example.com/v.mp4"),
	}

	set := u.setFields()

	if len(set) != 3 {
		t.Fatalf("setFields() has %d entries, want 3: %v", len(set), set)
	}
	if set["status"] != StatusRunning {
		t.Errorf("status = %v", set["status"])
	}
	if set["progress"] != 5 {
		t.Errorf("progress = %v", set["progress"])
	}
	if set["artifact_url"] != "https://example.com/v.mp4" {
		t.Errorf("artifact_url = %v", set["artifact_url"])
	}
}

func TestUpdate_SetFields_Empty(t *testing.T) {
	if set := (Update{}).setFields(); len(set) != 0 {
		t.Errorf("empty update produced $set fields: %v", set)
	}
}

func TestJobDoc_RoundTrip(t *testing.T) {
	j := &Job{
		ID:             "abc123",
		Status:         StatusDone,
		Progress:       100,
		Prompt:         "a dog in the park",
		NegativePrompt: "rain",
		PromptSource:   SourceComposedPrompt,
		LocalPath:      "videos/a_dog-abc123.mp4",
		ArtifactKey:    "videos/a_dog-abc123.mp4",
		ArtifactURL:    "https://bucket.s3.amazonaws.com/videos/a_dog-abc123.mp4",
		StreamURL:      "/hls/abc123/a_dog-abc123/index.m3u8",
		ThumbTrackURL:  "/hls/abc123/a_dog-abc123/thumbs/thumbs.vtt",
		CreatedAt:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	got := toDoc(j).toJob()

	if *got != *j {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", got, j)
	}
}
