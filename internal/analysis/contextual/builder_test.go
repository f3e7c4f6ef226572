package contextual

import (
	"strings"
	"testing"
	"time"

	"github.com/mindmend/backend/internal/model/chat"
)

func TestPastContextEmpty(t *testing.T) {
	if got := PastContext(nil); got != "" {
		t.Fatalf("PastContext(nil) = %q, want empty", got)
	}
	if got := PastContext([]chat.Record{}); got != "" {
		t.Fatalf("PastContext(empty) = %q, want empty", got)
	}
}

func TestPastContextCapsAtThree(t *testing.T) {
	records := []chat.Record{
		{Role: chat.RoleUser, Content: "first", Timestamp: time.Now()},
		{Role: chat.RoleAssistant, Content: "second", Timestamp: time.Now()},
		{Role: chat.RoleUser, Content: "third", Timestamp: time.Now()},
		{Role: chat.RoleUser, Content: "fourth", Timestamp: time.Now()},
		{Role: chat.RoleUser, Content: "fifth", Timestamp: time.Now()},
	}

	got := PastContext(records)
	if !strings.Contains(got, "Relevant past moments:") {
		t.Fatalf("missing header in %q", got)
	}

	for _, want := range []string{"first", "second", "third"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in context %q", want, got)
		}
	}
	for _, excluded := range []string{"fourth", "fifth"} {
		if strings.Contains(got, excluded) {
			t.Fatalf("did not expect %q in context %q", excluded, got)
		}
	}
}

func TestPastContextSingleRecord(t *testing.T) {
	got := PastContext([]chat.Record{{Role: chat.RoleUser, Content: "only one"}})
	if !strings.Contains(got, "only one") {
		t.Fatalf("missing record in %q", got)
	}
}

func TestNamePrefix(t *testing.T) {
	if got := NamePrefix(""); got != "" {
		t.Fatalf("NamePrefix(\"\") = %q, want empty", got)
	}
	if got := NamePrefix("   "); got != "" {
		t.Fatalf("NamePrefix(blank) = %q, want empty", got)
	}

	got := NamePrefix("Alice")
	if !strings.Contains(got, "User's name is Alice") {
		t.Fatalf("NamePrefix(Alice) = %q", got)
	}
}
