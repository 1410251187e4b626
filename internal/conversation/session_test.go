package conversation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/wolfman30/leasing-ai-platform/internal/leadfields"
)

func fixedNow() time.Time {
	return time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)
}

func TestSessionMergeFieldsFirstWriteWins(t *testing.T) {
	sess := NewSession("s-1", fixedNow())
	added := sess.MergeFields(leadfields.Fields{leadfields.Phone: "5095551212"})
	if len(added) != 1 || added[0] != leadfields.Phone {
		t.Fatalf("added = %v", added)
	}
	added = sess.MergeFields(leadfields.Fields{leadfields.Phone: "2065550000", leadfields.FirstName: "Frank"})
	if len(added) != 1 || added[0] != leadfields.FirstName {
		t.Fatalf("added = %v", added)
	}
	if got := sess.CollectedFields[leadfields.Phone]; got != "5095551212" {
		t.Fatalf("phone = %q, want first value kept", got)
	}
}

func TestNewSessionGeneratesID(t *testing.T) {
	a := NewSession("  ", fixedNow())
	b := NewSession("", fixedNow())
	if a.SessionID == "" || a.SessionID == b.SessionID {
		t.Fatalf("expected distinct generated ids, got %q and %q", a.SessionID, b.SessionID)
	}
	if c := NewSession(" abc ", fixedNow()); c.SessionID != "abc" {
		t.Fatalf("SessionID = %q", c.SessionID)
	}
}

func TestSessionAppendTurnAndReplay(t *testing.T) {
	sess := NewSession("s-1", fixedNow())
	sess.AppendTurn("hello", "hi!", "req-1", fixedNow().Add(time.Minute))

	if sess.MessageCount != 1 || sess.UserMessageCount != 1 {
		t.Fatalf("counts = %d/%d, want 1/1", sess.MessageCount, sess.UserMessageCount)
	}
	if len(sess.Messages) != 2 || sess.Messages[0].Role != ChatRoleUser || sess.Messages[1].Role != ChatRoleAssistant {
		t.Fatalf("messages = %+v", sess.Messages)
	}
	if reply, ok := sess.ReplyFor("req-1"); !ok || reply != "hi!" {
		t.Fatalf("ReplyFor = %q, %v", reply, ok)
	}
	if _, ok := sess.ReplyFor(""); ok {
		t.Fatal("blank request id must not replay")
	}
	if !sess.UpdatedAt.Equal(fixedNow().Add(time.Minute)) {
		t.Fatalf("UpdatedAt = %v", sess.UpdatedAt)
	}
}

func TestSessionRecentRequestsBounded(t *testing.T) {
	sess := NewSession("s-1", fixedNow())
	for i := 0; i < maxRecentRequests+5; i++ {
		sess.AppendTurn("msg", fmt.Sprintf("reply-%d", i), fmt.Sprintf("req-%d", i), fixedNow())
	}
	if len(sess.RecentRequests) != maxRecentRequests {
		t.Fatalf("recent = %d, want %d", len(sess.RecentRequests), maxRecentRequests)
	}
	if _, ok := sess.ReplyFor("req-0"); ok {
		t.Fatal("oldest request should have been evicted")
	}
	if reply, ok := sess.ReplyFor(fmt.Sprintf("req-%d", maxRecentRequests+4)); !ok || reply != fmt.Sprintf("reply-%d", maxRecentRequests+4) {
		t.Fatalf("newest request missing: %q %v", reply, ok)
	}
}

func TestSessionTranscript(t *testing.T) {
	sess := NewSession("s-1", fixedNow())
	sess.AppendTurn("hello", "hi!", "", fixedNow())
	want := "user: hello\nassistant: hi!"
	if got := sess.Transcript(); got != want {
		t.Fatalf("Transcript() = %q, want %q", got, want)
	}
	if got := sess.UserMessages(); len(got) != 1 || got[0] != "hello" {
		t.Fatalf("UserMessages() = %v", got)
	}
}

func TestSessionAbsorbKeepsStoredValues(t *testing.T) {
	stored := NewSession("s-1", fixedNow().Add(-time.Hour))
	stored.CollectedFields[leadfields.Phone] = "5095551212"
	stored.LeadID = "lead-1"
	stored.LeadSyncedToExternal = true
	stored.ExternalLeadID = "crm-1"

	next := NewSession("s-1", fixedNow())
	next.CollectedFields[leadfields.Phone] = "2065550000"
	next.CollectedFields[leadfields.Email] = "frank@example.com"
	next.absorb(stored)

	if next.CollectedFields[leadfields.Phone] != "5095551212" {
		t.Fatalf("phone = %q, want stored value", next.CollectedFields[leadfields.Phone])
	}
	if next.CollectedFields[leadfields.Email] != "frank@example.com" {
		t.Fatalf("email lost: %v", next.CollectedFields)
	}
	if next.LeadID != "lead-1" || !next.LeadSyncedToExternal || next.ExternalLeadID != "crm-1" {
		t.Fatalf("sticky values lost: %+v", next)
	}
	if !next.CreatedAt.Equal(stored.CreatedAt) {
		t.Fatalf("CreatedAt = %v, want %v", next.CreatedAt, stored.CreatedAt)
	}
}

func TestMemorySessionStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Get missing err = %v", err)
	}
	if err := store.MarkLeadSynced(ctx, "missing", "x"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("MarkLeadSynced missing err = %v", err)
	}
	if synced, err := store.LeadSynced(ctx, "missing"); err != nil || synced {
		t.Fatalf("LeadSynced missing = %v, %v", synced, err)
	}

	sess := NewSession("s-1", fixedNow())
	sess.CollectedFields[leadfields.Phone] = "5095551212"
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if synced, _ := store.LeadSynced(ctx, "s-1"); synced {
		t.Fatalf("expected unsynced session before MarkLeadSynced")
	}
	if err := store.MarkLeadSynced(ctx, "s-1", "crm-1"); err != nil {
		t.Fatalf("MarkLeadSynced: %v", err)
	}
	if synced, err := store.LeadSynced(ctx, "s-1"); err != nil || !synced {
		t.Fatalf("LeadSynced after mark = %v, %v", synced, err)
	}

	// A stale copy written after the sync must not reset the flag or the phone.
	sess.CollectedFields[leadfields.Phone] = "2065550000"
	sess.LeadSyncedToExternal = false
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("Save stale: %v", err)
	}

	got, err := store.Get(ctx, "s-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.LeadSyncedToExternal || got.ExternalLeadID != "crm-1" {
		t.Fatalf("sync flag lost: %+v", got)
	}
	if got.CollectedFields[leadfields.Phone] != "5095551212" {
		t.Fatalf("phone = %q", got.CollectedFields[leadfields.Phone])
	}

	got.CollectedFields[leadfields.Email] = "mutated@example.com"
	again, _ := store.Get(ctx, "s-1")
	if again.CollectedFields.Has(leadfields.Email) {
		t.Fatal("Get must return a copy")
	}

	if err := store.Save(ctx, &Session{}); err == nil {
		t.Fatal("expected error for blank session id")
	}
}
