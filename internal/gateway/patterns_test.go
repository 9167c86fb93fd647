package gateway

import (
	"testing"

	"github.com/opsdesk/opsdesk/internal/config"
)

func newTestPatterns() *Patterns {
	return NewPatterns(config.DefaultRoutingTables())
}

func TestTicketKeyNormalizesCase(t *testing.T) {
	p := newTestPatterns()

	if got := p.TicketKey("please resolve sup-123 today"); got != "SUP-123" {
		t.Fatalf("expected SUP-123, got %q", got)
	}
	if got := p.TicketKey("Kan-7 is broken"); got != "KAN-7" {
		t.Fatalf("expected KAN-7, got %q", got)
	}
	if got := p.TicketKey("no key here"); got != "" {
		t.Fatalf("expected empty key, got %q", got)
	}
}

func TestTicketKeyIgnoresEmbeddedText(t *testing.T) {
	p := newTestPatterns()

	// Word boundaries keep suffixed text like SUP-12x from matching.
	if got := p.TicketKey("backup-12 is not a ticket"); got != "" {
		t.Fatalf("expected no match, got %q", got)
	}
	if got := p.TicketKey("(see SUP-42)"); got != "SUP-42" {
		t.Fatalf("expected SUP-42, got %q", got)
	}
}

func TestStatusTargetUsesOrderedTable(t *testing.T) {
	p := newTestPatterns()

	cases := []struct {
		utterance string
		want      string
	}{
		{"set SUP-1 to in progress", "Pågående"},
		{"move SUP-1 to pending review", "Pending"},
		{"mark SUP-1 as done", "Done"},
		{"set SUP-1 status closed", "Closed"},
		{"set SUP-1 to something weird", ""},
	}
	for _, tc := range cases {
		if got := p.StatusTarget(tc.utterance); got != tc.want {
			t.Errorf("StatusTarget(%q) = %q, want %q", tc.utterance, got, tc.want)
		}
	}
}

func TestStatusTargetFirstRuleWins(t *testing.T) {
	p := newTestPatterns()

	// "start working" hits the in-progress rule even though later rules
	// could also match other words in the sentence.
	if got := p.StatusTarget("start working on it, then mark done"); got != "Pågående" {
		t.Fatalf("expected Pågående, got %q", got)
	}
}

func TestCommentTextRequiresMarkerColon(t *testing.T) {
	p := newTestPatterns()

	if got := p.CommentText("comment on SUP-1: user called back"); got != "user called back" {
		t.Fatalf("unexpected comment text: %q", got)
	}
	if got := p.CommentText("add note to SUP-1: waiting for parts"); got != "waiting for parts" {
		t.Fatalf("unexpected comment text: %q", got)
	}
	// A colon before the marker must not capture the wrong span.
	if got := p.CommentText("FW: add comment to SUP-1: done"); got != "done" {
		t.Fatalf("unexpected comment text: %q", got)
	}
	if got := p.CommentText("add note to SUP-1 waiting for parts"); got != "" {
		t.Fatalf("expected empty comment text without a colon, got %q", got)
	}
	if got := p.CommentText("comment on SUP-1"); got != "" {
		t.Fatalf("expected empty comment text, got %q", got)
	}
}

func TestCleanSearchTermsStripsStopWords(t *testing.T) {
	p := newTestPatterns()

	if got := p.CleanSearchTerms("search for tickets about the printer"); got != "printer" {
		t.Fatalf("expected %q, got %q", "printer", got)
	}
	if got := p.CleanSearchTerms("can you find issues regarding vpn access?"); got != "vpn access" {
		t.Fatalf("expected %q, got %q", "vpn access", got)
	}
	if got := p.CleanSearchTerms("search for the tickets"); got != "" {
		t.Fatalf("expected empty query, got %q", got)
	}
}

func TestResolutionCommentMarkers(t *testing.T) {
	p := newTestPatterns()

	if got := p.ResolutionComment("resolve SUP-1 with comment: fixed by restart"); got != "fixed by restart" {
		t.Fatalf("unexpected comment: %q", got)
	}
	if got := p.ResolutionComment("resolve SUP-1 note: replaced cable"); got != "replaced cable" {
		t.Fatalf("unexpected comment: %q", got)
	}
	if got := p.ResolutionComment("close SUP-2"); got != "" {
		t.Fatalf("expected empty comment, got %q", got)
	}
}

func TestBulkTopicFallbackCapsAtThreeWords(t *testing.T) {
	p := newTestPatterns()

	got := p.BulkTopic("close all slow database replication backlog tickets")
	if got != "slow database replication" {
		t.Fatalf("expected first three meaningful words, got %q", got)
	}
}

func TestBulkTopicAliasRequiresAllKeywords(t *testing.T) {
	p := newTestPatterns()

	if got := p.BulkTopic("close all windows login tickets"); got != "windows login" {
		t.Fatalf("expected alias phrase, got %q", got)
	}
	// "windows" alone must not fire the two-keyword alias; it falls through
	// to stop-word stripping.
	if got := p.BulkTopic("close all windows tickets"); got != "windows" {
		t.Fatalf("expected fallback terms, got %q", got)
	}
	if got := p.BulkTopic("close all outlook email issues"); got != "outlook email" {
		t.Fatalf("expected alias phrase, got %q", got)
	}
}
