package models

import (
	"errors"
	"testing"
	"time"
)

func TestParseBlockKind(t *testing.T) {
	for _, want := range []BlockKind{BlockContent, BlockInteraction, BlockComplete} {
		got, err := ParseBlockKind(string(want))
		if err != nil {
			t.Fatalf("ParseBlockKind(%q) unexpected error: %v", want, err)
		}
		if got != want {
			t.Fatalf("ParseBlockKind(%q) = %q", want, got)
		}
	}

	for _, bad := range []string{"", "Content", "COMPLETE", "full", " content"} {
		if _, err := ParseBlockKind(bad); !errors.Is(err, ErrInvalidBlockKind) {
			t.Errorf("ParseBlockKind(%q): expected ErrInvalidBlockKind, got %v", bad, err)
		}
	}
}

func TestBlockKind_LabelsAndDescriptions(t *testing.T) {
	for _, k := range BlockKinds {
		if !k.Valid() {
			t.Errorf("%q should be valid", k)
		}
		if k.Label() == "" || k.Description() == "" {
			t.Errorf("%q should have a label and description", k)
		}
	}
	if BlockKind("nope").Valid() {
		t.Error("unknown kind should be invalid")
	}
}

func TestBlockTarget_PathSegment(t *testing.T) {
	tests := []struct {
		name   string
		target BlockTarget
		want   string
	}{
		{"user id preferred", BlockTarget{Username: "quill", UserID: "42"}, "42"},
		{"user id escaped", BlockTarget{Username: "quill", UserID: "7/follow?x="}, "7%2Ffollow%3Fx="},
		{"plain username", BlockTarget{Username: "quill"}, "quill"},
		{"username escaped", BlockTarget{Username: "ink & quill/2"}, "ink%20&%20quill%2F2"},
		{"unicode username", BlockTarget{Username: "墨水"}, "%E5%A2%A8%E6%B0%B4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.target.PathSegment(); got != tt.want {
				t.Errorf("PathSegment() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBlockTarget_Validate(t *testing.T) {
	if err := (BlockTarget{Username: "quill"}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (BlockTarget{UserID: "42"}).Validate(); !errors.Is(err, ErrMissingUsername) {
		t.Fatalf("expected ErrMissingUsername, got %v", err)
	}
	if err := (BlockTarget{Username: "   "}).Validate(); !errors.Is(err, ErrMissingUsername) {
		t.Fatalf("expected ErrMissingUsername for blank username, got %v", err)
	}
	for _, target := range []BlockTarget{
		{Username: "quill", UserID: ".."},
		{Username: "quill", UserID: "."},
		{Username: ".."},
	} {
		if err := target.Validate(); !errors.Is(err, ErrInvalidTarget) {
			t.Errorf("Validate(%+v): expected ErrInvalidTarget, got %v", target, err)
		}
	}
	if err := (BlockTarget{Username: "quill", UserID: "7/follow?x="}).Validate(); err != nil {
		t.Fatalf("escapable user id should validate, got %v", err)
	}
}

func TestWebSession_Expired(t *testing.T) {
	now := time.Now()
	if (WebSession{ExpiresAt: now.Add(time.Minute)}).Expired(now) {
		t.Error("future expiry should not be expired")
	}
	if !(WebSession{ExpiresAt: now.Add(-time.Minute)}).Expired(now) {
		t.Error("past expiry should be expired")
	}
	cred := (WebSession{Username: "quill", APIToken: "tok"}).Credential()
	if cred.Token != "tok" || cred.Username != "quill" {
		t.Errorf("unexpected credential %+v", cred)
	}
}
