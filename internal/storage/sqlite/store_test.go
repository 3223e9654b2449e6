package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/atticlabs/attic/internal/storage"
	"github.com/atticlabs/attic/pkg/types"
)

// newTestStore creates an in-memory SQLite store for testing. NewStore
// initialises the full Schema, so no additional DDL is required in tests.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func mustCapture(t *testing.T, store *Store, ownerID, text string) *types.Capture {
	t.Helper()
	c := &types.Capture{
		OwnerID:      ownerID,
		OriginalText: text,
		SourceKind:   types.SourceText,
	}
	if err := store.CreateCapture(context.Background(), c); err != nil {
		t.Fatalf("CreateCapture() failed: %v", err)
	}
	return c
}

func TestCreateAndGetCapture(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	c := &types.Capture{
		OwnerID:      "owner-1",
		OriginalText: "Met Anna at the harbour",
		SourceKind:   types.SourceVoice,
		AudioPath:    "/audio/note-1.ogg",
		CreatedBy:    "api",
		Metadata:     map[string]interface{}{"language": "en"},
	}
	if err := store.CreateCapture(ctx, c); err != nil {
		t.Fatalf("CreateCapture() failed: %v", err)
	}

	if c.ID == "" {
		t.Fatal("CreateCapture() did not assign an ID")
	}
	if c.Status != types.CapturePending {
		t.Errorf("Status: got %q, want %q", c.Status, types.CapturePending)
	}

	got, err := store.GetCapture(ctx, "owner-1", c.ID)
	if err != nil {
		t.Fatalf("GetCapture() failed: %v", err)
	}
	if got.OriginalText != c.OriginalText {
		t.Errorf("OriginalText: got %q, want %q", got.OriginalText, c.OriginalText)
	}
	if got.SourceKind != types.SourceVoice {
		t.Errorf("SourceKind: got %q, want %q", got.SourceKind, types.SourceVoice)
	}
	if got.AudioPath != "/audio/note-1.ogg" {
		t.Errorf("AudioPath: got %q, want %q", got.AudioPath, "/audio/note-1.ogg")
	}
	if got.Metadata["language"] != "en" {
		t.Errorf("Metadata[language]: got %v, want %q", got.Metadata["language"], "en")
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps were not set")
	}
}

func TestCreateCaptureValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cases := []struct {
		name    string
		capture *types.Capture
	}{
		{"empty text", &types.Capture{OwnerID: "o", OriginalText: "  ", SourceKind: types.SourceText}},
		{"missing owner", &types.Capture{OriginalText: "hello", SourceKind: types.SourceText}},
		{"bad source kind", &types.Capture{OwnerID: "o", OriginalText: "hello", SourceKind: "telegraph"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := store.CreateCapture(ctx, tc.capture)
			if !errors.Is(err, storage.ErrValidation) {
				t.Errorf("got %v, want ErrValidation", err)
			}
		})
	}
}

func TestGetCaptureCrossOwner(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	c := mustCapture(t, store, "owner-1", "private note")

	if _, err := store.GetCapture(ctx, "owner-2", c.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("cross-owner read: got %v, want ErrNotFound", err)
	}
}

func TestUpdateProcessedKeepsOriginal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	c := mustCapture(t, store, "owner-1", "buy milk tmrw")

	got, err := store.UpdateProcessed(ctx, "owner-1", c.ID, "Buy milk tomorrow.", map[string]interface{}{"confidence": 0.9})
	if err != nil {
		t.Fatalf("UpdateProcessed() failed: %v", err)
	}

	if got.OriginalText != "buy milk tmrw" {
		t.Errorf("original text mutated: got %q", got.OriginalText)
	}
	if got.ProcessedText != "Buy milk tomorrow." {
		t.Errorf("ProcessedText: got %q", got.ProcessedText)
	}
	if got.UpdatedAt.Before(got.CreatedAt) {
		t.Error("UpdatedAt was not bumped")
	}

	if _, err := store.UpdateProcessed(ctx, "owner-2", c.ID, "x", nil); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("cross-owner update: got %v, want ErrNotFound", err)
	}
}

func TestDeleteCaptureCascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	c := mustCapture(t, store, "owner-1", "lunch with Anna, remind me Friday")

	entity, err := store.ResolveOrCreateEntity(ctx, "owner-1", "Anna", types.EntityPerson, nil)
	if err != nil {
		t.Fatalf("ResolveOrCreateEntity() failed: %v", err)
	}
	if _, err := store.Link(ctx, "owner-1", c.ID, entity.ID, types.RelationMentioned, 0.9); err != nil {
		t.Fatalf("Link() failed: %v", err)
	}

	tag, err := store.GetOrCreateTag(ctx, "owner-1", "social", "")
	if err != nil {
		t.Fatalf("GetOrCreateTag() failed: %v", err)
	}
	if err := store.AttachTag(ctx, "owner-1", c.ID, tag.ID); err != nil {
		t.Fatalf("AttachTag() failed: %v", err)
	}

	rem := &types.Reminder{OwnerID: "owner-1", CaptureID: c.ID, Text: "lunch Friday", TriggerCondition: "friday noon"}
	if err := store.CreateReminder(ctx, rem); err != nil {
		t.Fatalf("CreateReminder() failed: %v", err)
	}

	if err := store.DeleteCapture(ctx, "owner-1", c.ID); err != nil {
		t.Fatalf("DeleteCapture() failed: %v", err)
	}

	// Linkages are gone with the capture.
	links, err := store.LinksForEntity(ctx, "owner-1", entity.ID)
	if err != nil {
		t.Fatalf("LinksForEntity() failed: %v", err)
	}
	if len(links) != 0 {
		t.Errorf("linkages survived delete: got %d", len(links))
	}

	// The entity itself survives.
	if _, err := store.GetEntity(ctx, "owner-1", entity.ID); err != nil {
		t.Errorf("entity did not survive capture delete: %v", err)
	}

	// The reminder survives with its capture reference cleared.
	gotRem, err := store.GetReminder(ctx, "owner-1", rem.ID)
	if err != nil {
		t.Fatalf("GetReminder() failed: %v", err)
	}
	if gotRem.CaptureID != "" {
		t.Errorf("reminder capture reference not cleared: got %q", gotRem.CaptureID)
	}
	if gotRem.Status != types.ReminderActive {
		t.Errorf("reminder status changed: got %q", gotRem.Status)
	}

	// Deleting again is a no-op; absence is the goal state.
	if err := store.DeleteCapture(ctx, "owner-1", c.ID); err != nil {
		t.Errorf("second delete: got %v, want nil", err)
	}
	if err := store.DeleteCapture(ctx, "owner-1", "cap:never-existed"); err != nil {
		t.Errorf("delete of absent capture: got %v, want nil", err)
	}
}

func TestListCapturesPaginationAndFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		mustCapture(t, store, "owner-1", "note")
	}
	voice := &types.Capture{OwnerID: "owner-1", OriginalText: "spoken", SourceKind: types.SourceVoice}
	if err := store.CreateCapture(ctx, voice); err != nil {
		t.Fatalf("CreateCapture() failed: %v", err)
	}
	mustCapture(t, store, "owner-2", "someone else's note")

	page1, err := store.ListCaptures(ctx, "owner-1", storage.ListOptions{Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("ListCaptures() failed: %v", err)
	}
	if page1.Total != 16 {
		t.Errorf("Total: got %d, want 16", page1.Total)
	}
	if len(page1.Items) != 10 || !page1.HasMore {
		t.Errorf("page 1: got %d items, HasMore=%v", len(page1.Items), page1.HasMore)
	}

	page2, err := store.ListCaptures(ctx, "owner-1", storage.ListOptions{Page: 2, Limit: 10})
	if err != nil {
		t.Fatalf("ListCaptures() page 2 failed: %v", err)
	}
	if len(page2.Items) != 6 || page2.HasMore {
		t.Errorf("page 2: got %d items, HasMore=%v", len(page2.Items), page2.HasMore)
	}

	voiceOnly, err := store.ListCaptures(ctx, "owner-1", storage.ListOptions{SourceKind: types.SourceVoice})
	if err != nil {
		t.Fatalf("ListCaptures() filter failed: %v", err)
	}
	if voiceOnly.Total != 1 {
		t.Errorf("voice filter Total: got %d, want 1", voiceOnly.Total)
	}
}

func TestResolveOrCreateEntityDedup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.ResolveOrCreateEntity(ctx, "owner-1", "Anna", types.EntityPerson,
		map[string]interface{}{"city": "Hamburg"})
	if err != nil {
		t.Fatalf("ResolveOrCreateEntity() failed: %v", err)
	}

	second, err := store.ResolveOrCreateEntity(ctx, "owner-1", "Anna", types.EntityPerson,
		map[string]interface{}{"city": "Berlin", "role": "sister"})
	if err != nil {
		t.Fatalf("second ResolveOrCreateEntity() failed: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("same key produced different entities: %s vs %s", first.ID, second.ID)
	}
	if second.Attributes["city"] != "Berlin" {
		t.Errorf("attribute merge: city got %v, want Berlin", second.Attributes["city"])
	}
	if second.Attributes["role"] != "sister" {
		t.Errorf("attribute merge: role got %v, want sister", second.Attributes["role"])
	}

	// Same name under a different kind is a different entity.
	place, err := store.ResolveOrCreateEntity(ctx, "owner-1", "Anna", types.EntityPlace, nil)
	if err != nil {
		t.Fatalf("ResolveOrCreateEntity() place failed: %v", err)
	}
	if place.ID == first.ID {
		t.Error("different kind resolved to the same entity")
	}

	// Same key under a different owner is a different entity.
	other, err := store.ResolveOrCreateEntity(ctx, "owner-2", "Anna", types.EntityPerson, nil)
	if err != nil {
		t.Fatalf("ResolveOrCreateEntity() other owner failed: %v", err)
	}
	if other.ID == first.ID {
		t.Error("different owner resolved to the same entity")
	}
}

func TestResolveOrCreateEntityConcurrent(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "attic.db"))
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	const n = 16
	ids := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, err := store.ResolveOrCreateEntity(ctx, "owner-1", "Walmart", types.EntityPlace,
				map[string]interface{}{"visit": i})
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = e.ID
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("concurrent resolve %d failed: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Errorf("resolve %d produced a different entity: %s vs %s", i, ids[i], ids[0])
		}
	}

	entities, err := store.FindEntitiesByKind(ctx, "owner-1", types.EntityPlace)
	if err != nil {
		t.Fatalf("FindEntitiesByKind() failed: %v", err)
	}
	if len(entities) != 1 {
		t.Errorf("concurrent resolves created %d rows, want 1", len(entities))
	}
}

func TestLinkUpsertsConfidence(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	c := mustCapture(t, store, "owner-1", "called Anna")
	entity, err := store.ResolveOrCreateEntity(ctx, "owner-1", "Anna", types.EntityPerson, nil)
	if err != nil {
		t.Fatalf("ResolveOrCreateEntity() failed: %v", err)
	}

	first, err := store.Link(ctx, "owner-1", c.ID, entity.ID, types.RelationMentioned, 0.6)
	if err != nil {
		t.Fatalf("Link() failed: %v", err)
	}

	second, err := store.Link(ctx, "owner-1", c.ID, entity.ID, types.RelationMentioned, 0.95)
	if err != nil {
		t.Fatalf("re-Link() failed: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("re-link created a new edge: %s vs %s", first.ID, second.ID)
	}
	if second.Confidence != 0.95 {
		t.Errorf("Confidence: got %v, want 0.95", second.Confidence)
	}

	// A different relation kind is a distinct edge.
	action, err := store.Link(ctx, "owner-1", c.ID, entity.ID, types.RelationAction, 0.5)
	if err != nil {
		t.Fatalf("Link() action failed: %v", err)
	}
	if action.ID == first.ID {
		t.Error("different relation kind reused the same edge")
	}

	links, err := store.LinksForCapture(ctx, "owner-1", c.ID)
	if err != nil {
		t.Fatalf("LinksForCapture() failed: %v", err)
	}
	if len(links) != 2 {
		t.Errorf("LinksForCapture: got %d links, want 2", len(links))
	}
}

func TestLinkValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	c := mustCapture(t, store, "owner-1", "note")
	entity, _ := store.ResolveOrCreateEntity(ctx, "owner-1", "Anna", types.EntityPerson, nil)

	if _, err := store.Link(ctx, "owner-1", c.ID, entity.ID, types.RelationMentioned, 1.5); !errors.Is(err, storage.ErrValidation) {
		t.Errorf("out-of-range confidence: got %v, want ErrValidation", err)
	}
	if _, err := store.Link(ctx, "owner-1", c.ID, entity.ID, "", 0.5); !errors.Is(err, storage.ErrValidation) {
		t.Errorf("empty relation: got %v, want ErrValidation", err)
	}
	if _, err := store.Link(ctx, "owner-1", "cap:missing", entity.ID, types.RelationMentioned, 0.5); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("missing capture: got %v, want ErrNotFound", err)
	}

	// Endpoints owned by someone else read as absent.
	otherCap := mustCapture(t, store, "owner-2", "theirs")
	if _, err := store.Link(ctx, "owner-1", otherCap.ID, entity.ID, types.RelationMentioned, 0.5); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("cross-owner capture endpoint: got %v, want ErrNotFound", err)
	}
}

func TestTagLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tag, err := store.GetOrCreateTag(ctx, "owner-1", "health", "#FF0000")
	if err != nil {
		t.Fatalf("GetOrCreateTag() failed: %v", err)
	}
	if tag.Color != "#FF0000" {
		t.Errorf("Color: got %q, want #FF0000", tag.Color)
	}

	// The color set at creation sticks.
	again, err := store.GetOrCreateTag(ctx, "owner-1", "health", "#00FF00")
	if err != nil {
		t.Fatalf("second GetOrCreateTag() failed: %v", err)
	}
	if again.ID != tag.ID {
		t.Errorf("same name produced different tags: %s vs %s", again.ID, tag.ID)
	}
	if again.Color != "#FF0000" {
		t.Errorf("color repainted: got %q", again.Color)
	}

	// Empty color gets the default.
	plain, err := store.GetOrCreateTag(ctx, "owner-1", "misc", "")
	if err != nil {
		t.Fatalf("GetOrCreateTag() default color failed: %v", err)
	}
	if plain.Color != types.DefaultTagColor {
		t.Errorf("default color: got %q, want %q", plain.Color, types.DefaultTagColor)
	}

	if _, err := store.GetOrCreateTag(ctx, "owner-1", "bad", "red"); !errors.Is(err, storage.ErrValidation) {
		t.Errorf("invalid color: got %v, want ErrValidation", err)
	}

	c := mustCapture(t, store, "owner-1", "jogged 5k")
	if err := store.AttachTag(ctx, "owner-1", c.ID, tag.ID); err != nil {
		t.Fatalf("AttachTag() failed: %v", err)
	}
	// Re-attach is a no-op.
	if err := store.AttachTag(ctx, "owner-1", c.ID, tag.ID); err != nil {
		t.Fatalf("re-AttachTag() failed: %v", err)
	}

	tags, err := store.TagsForCapture(ctx, "owner-1", c.ID)
	if err != nil {
		t.Fatalf("TagsForCapture() failed: %v", err)
	}
	if len(tags) != 1 {
		t.Fatalf("TagsForCapture: got %d tags, want 1", len(tags))
	}

	ids, err := store.CaptureIDsForTag(ctx, "owner-1", tag.ID)
	if err != nil {
		t.Fatalf("CaptureIDsForTag() failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != c.ID {
		t.Errorf("CaptureIDsForTag: got %v, want [%s]", ids, c.ID)
	}

	if err := store.DetachTag(ctx, "owner-1", c.ID, tag.ID); err != nil {
		t.Fatalf("DetachTag() failed: %v", err)
	}
	// Detaching a detached tag is a no-op.
	if err := store.DetachTag(ctx, "owner-1", c.ID, tag.ID); err != nil {
		t.Fatalf("re-DetachTag() failed: %v", err)
	}

	tags, err = store.TagsForCapture(ctx, "owner-1", c.ID)
	if err != nil {
		t.Fatalf("TagsForCapture() after detach failed: %v", err)
	}
	if len(tags) != 0 {
		t.Errorf("tags after detach: got %d, want 0", len(tags))
	}

	// Attach against a cross-owner tag fails closed.
	theirTag, _ := store.GetOrCreateTag(ctx, "owner-2", "theirs", "")
	if err := store.AttachTag(ctx, "owner-1", c.ID, theirTag.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("cross-owner attach: got %v, want ErrNotFound", err)
	}
}

func TestCaptureStatusPipeline(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	c := mustCapture(t, store, "owner-1", "note")

	if err := store.UpdateCaptureStatus(ctx, c.ID, types.CaptureProcessing); err != nil {
		t.Fatalf("UpdateCaptureStatus() failed: %v", err)
	}

	byStatus, err := store.ListCapturesByStatus(ctx, types.CaptureProcessing, storage.ListOptions{})
	if err != nil {
		t.Fatalf("ListCapturesByStatus() failed: %v", err)
	}
	if byStatus.Total != 1 {
		t.Errorf("processing captures: got %d, want 1", byStatus.Total)
	}

	if err := store.UpdateCaptureStatus(ctx, c.ID, "mystery"); !errors.Is(err, storage.ErrValidation) {
		t.Errorf("bad status: got %v, want ErrValidation", err)
	}
	if err := store.UpdateCaptureStatus(ctx, "cap:missing", types.CaptureExtracted); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("missing capture: got %v, want ErrNotFound", err)
	}
}
