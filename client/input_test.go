package client

import (
	"errors"
	"testing"
)

func TestResolveIdentifier_SupportedShapes(t *testing.T) {
	tests := []struct {
		in   string
		want VideoID
	}{
		{in: "jNQXAC9IVRw", want: "jNQXAC9IVRw"},
		{in: "dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{in: "  dQw4w9WgXcQ\n", want: "dQw4w9WgXcQ"},
		{in: "https://www.youtube.com/watch?v=jNQXAC9IVRw", want: "jNQXAC9IVRw"},
		{in: "https://www.youtube.com/watch?v=jNQXAC9IVRw&list=PLabc123&index=2", want: "jNQXAC9IVRw"},
		{in: "https://www.youtube.com/watch?feature=share&v=jNQXAC9IVRw", want: "jNQXAC9IVRw"},
		{in: "https://m.youtube.com/watch?v=jNQXAC9IVRw&pp=ygU=", want: "jNQXAC9IVRw"},
		{in: "https://youtu.be/jNQXAC9IVRw?t=1", want: "jNQXAC9IVRw"},
		{in: "youtu.be/jNQXAC9IVRw", want: "jNQXAC9IVRw"},
		{in: "youtube.com/watch?v=jNQXAC9IVRw", want: "jNQXAC9IVRw"},
		{in: "www.youtube.com/watch?v=jNQXAC9IVRw", want: "jNQXAC9IVRw"},
		{in: "m.youtube.com/watch?v=jNQXAC9IVRw", want: "jNQXAC9IVRw"},
		{in: "https://www.youtube.com/watch?v=Mh1hKt5kQ_4", want: "Mh1hKt5kQ_4"},
	}
	for _, tt := range tests {
		got, err := ResolveIdentifier(tt.in)
		if err != nil {
			t.Fatalf("ResolveIdentifier(%q) error=%v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ResolveIdentifier(%q)=%q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolveIdentifier_Invalid(t *testing.T) {
	tests := []struct {
		in     string
		reason string
	}{
		{in: "", reason: "empty_input"},
		{in: "   ", reason: "empty_input"},
		{in: "https://example.com/", reason: "unsupported_host"},
		{in: "https://example.com/watch?v=jNQXAC9IVRw", reason: "unsupported_host"},
		{in: "https://www.youtube.com/watch?v=", reason: "invalid_video_id"},
		{in: "https://www.youtube.com/watch?v=short", reason: "invalid_video_id"},
		{in: "jNQXAC9IVR", reason: "invalid_video_id"},
		{in: "jNQXAC9IVRw!", reason: "invalid_video_id"},
	}
	for _, tt := range tests {
		_, err := ResolveIdentifier(tt.in)
		if !errors.Is(err, ErrInvalidReference) {
			t.Fatalf("ResolveIdentifier(%q) expected ErrInvalidReference, got %v", tt.in, err)
		}
		var detail *InvalidInputDetailError
		if !errors.As(err, &detail) {
			t.Fatalf("expected InvalidInputDetailError, got %T", err)
		}
		if detail.Reason != tt.reason {
			t.Fatalf("ResolveIdentifier(%q) reason=%q, want %q", tt.in, detail.Reason, tt.reason)
		}
	}
}

func TestResolveIdentifier_NonWatchPathsUseTextualFallback(t *testing.T) {
	// Structured parsing only understands /watch; other youtube.com paths
	// resolve only when a textual pattern matches.
	if _, err := ResolveIdentifier("https://www.youtube.com/embed/jNQXAC9IVRw"); !errors.Is(err, ErrInvalidReference) {
		t.Fatalf("embed path: expected ErrInvalidReference, got %v", err)
	}
	if _, err := ResolveIdentifier("https://www.youtube.com/shorts/jNQXAC9IVRw"); !errors.Is(err, ErrInvalidReference) {
		t.Fatalf("shorts path: expected ErrInvalidReference, got %v", err)
	}
	got, err := ResolveIdentifier("https://www.youtube.com/attribution_link?u=/watch?v=jNQXAC9IVRw")
	if err == nil {
		t.Fatalf("attribution link unexpectedly resolved to %q", got)
	}
}

func TestResolveIdentifier_Idempotent(t *testing.T) {
	for _, in := range []string{"https://youtu.be/jNQXAC9IVRw", "https://example.com/", "dQw4w9WgXcQ"} {
		a, errA := ResolveIdentifier(in)
		b, errB := ResolveIdentifier(in)
		if a != b || (errA == nil) != (errB == nil) {
			t.Fatalf("ResolveIdentifier(%q) not idempotent: (%q,%v) vs (%q,%v)", in, a, errA, b, errB)
		}
	}
}

func TestExtractVideoID(t *testing.T) {
	got, err := ExtractVideoID("https://youtu.be/jNQXAC9IVRw")
	if err != nil || got != "jNQXAC9IVRw" {
		t.Fatalf("ExtractVideoID()=%q,%v", got, err)
	}
	if _, err := ExtractVideoID("not a video"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
