package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/atticlabs/attic/internal/storage"
	"github.com/atticlabs/attic/pkg/types"
)

func TestSearchCaptures(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mustCapture(t, store, "owner-1", "Met Anna at the harbour cafe")
	mustCapture(t, store, "owner-1", "Bought groceries for the week")
	mustCapture(t, store, "owner-2", "Anna called about the harbour project")

	res, err := store.SearchCaptures(ctx, "owner-1", storage.SearchOptions{Query: "harbour"})
	if err != nil {
		t.Fatalf("SearchCaptures() failed: %v", err)
	}
	if res.Total != 1 {
		t.Fatalf("Total: got %d, want 1", res.Total)
	}
	if res.Items[0].OwnerID != "owner-1" {
		t.Errorf("result leaked across owners: %q", res.Items[0].OwnerID)
	}
}

func TestSearchCapturesMatchesProcessedText(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	c := mustCapture(t, store, "owner-1", "bght grcrs")
	if _, err := store.UpdateProcessed(ctx, "owner-1", c.ID, "Bought groceries at the market.", nil); err != nil {
		t.Fatalf("UpdateProcessed() failed: %v", err)
	}

	res, err := store.SearchCaptures(ctx, "owner-1", storage.SearchOptions{Query: "groceries"})
	if err != nil {
		t.Fatalf("SearchCaptures() failed: %v", err)
	}
	if res.Total != 1 {
		t.Errorf("processed text not indexed: Total got %d, want 1", res.Total)
	}
}

func TestSearchCapturesHostileQuery(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mustCapture(t, store, "owner-1", "plain note")

	// Unbalanced quotes and FTS5 operators must not error.
	for _, q := range []string{`"unbalanced`, `NOT AND OR`, `(((`, `col:value`} {
		if _, err := store.SearchCaptures(ctx, "owner-1", storage.SearchOptions{Query: q}); err != nil {
			t.Errorf("query %q errored: %v", q, err)
		}
	}
}

func TestSearchCapturesEmptyQueryListsRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mustCapture(t, store, "owner-1", "first")
	mustCapture(t, store, "owner-1", "second")

	res, err := store.SearchCaptures(ctx, "owner-1", storage.SearchOptions{Query: "  "})
	if err != nil {
		t.Fatalf("SearchCaptures() failed: %v", err)
	}
	if res.Total != 2 {
		t.Errorf("empty query Total: got %d, want 2", res.Total)
	}
}

func TestOwnerStats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// A blank owner gets zeroes, not an error.
	empty, err := store.OwnerStats(ctx, "nobody")
	if err != nil {
		t.Fatalf("OwnerStats() failed: %v", err)
	}
	if *empty != (types.OwnerStats{}) {
		t.Errorf("empty owner stats: got %+v", empty)
	}

	c := mustCapture(t, store, "owner-1", "ran with Ben")
	entity, _ := store.ResolveOrCreateEntity(ctx, "owner-1", "Ben", types.EntityPerson, nil)
	if _, err := store.Link(ctx, "owner-1", c.ID, entity.ID, types.RelationMentioned, 1.0); err != nil {
		t.Fatalf("Link() failed: %v", err)
	}
	if _, err := store.GetOrCreateTag(ctx, "owner-1", "sport", ""); err != nil {
		t.Fatalf("GetOrCreateTag() failed: %v", err)
	}
	mustReminder(t, store, "owner-1", "stretch", nil, "tonight")

	stats, err := store.OwnerStats(ctx, "owner-1")
	if err != nil {
		t.Fatalf("OwnerStats() failed: %v", err)
	}
	want := types.OwnerStats{Captures: 1, Entities: 1, Linkages: 1, Tags: 1, ActiveReminders: 1}
	if *stats != want {
		t.Errorf("stats: got %+v, want %+v", stats, want)
	}
}

func TestRelatedAndTopEntities(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	anna, _ := store.ResolveOrCreateEntity(ctx, "owner-1", "Anna", types.EntityPerson, nil)
	ben, _ := store.ResolveOrCreateEntity(ctx, "owner-1", "Ben", types.EntityPerson, nil)
	gym, _ := store.ResolveOrCreateEntity(ctx, "owner-1", "Gym", types.EntityPlace, nil)

	// Anna and Ben co-occur twice, Anna and Gym once.
	for i := 0; i < 2; i++ {
		c := mustCapture(t, store, "owner-1", "anna and ben")
		store.Link(ctx, "owner-1", c.ID, anna.ID, types.RelationMentioned, 1.0)
		store.Link(ctx, "owner-1", c.ID, ben.ID, types.RelationMentioned, 1.0)
	}
	c := mustCapture(t, store, "owner-1", "anna at the gym")
	store.Link(ctx, "owner-1", c.ID, anna.ID, types.RelationMentioned, 1.0)
	store.Link(ctx, "owner-1", c.ID, gym.ID, types.RelationMentioned, 1.0)

	related, err := store.RelatedEntities(ctx, "owner-1", anna.ID, 10)
	if err != nil {
		t.Fatalf("RelatedEntities() failed: %v", err)
	}
	if len(related) != 2 {
		t.Fatalf("related: got %d, want 2", len(related))
	}
	if related[0].Entity.ID != ben.ID || related[0].SharedCaptures != 2 {
		t.Errorf("top related: got %s (%d shared), want Ben with 2",
			related[0].Entity.Name, related[0].SharedCaptures)
	}

	top, err := store.TopEntities(ctx, "owner-1", types.EntityPerson, 10)
	if err != nil {
		t.Fatalf("TopEntities() failed: %v", err)
	}
	if len(top) != 2 || top[0].Entity.ID != anna.ID || top[0].MentionCount != 3 {
		t.Errorf("top entities: got %+v", top)
	}

	if _, err := store.RelatedEntities(ctx, "owner-2", anna.ID, 10); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("cross-owner related: got %v, want ErrNotFound", err)
	}
}

func TestEmbeddingsAndSimilarity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := mustCapture(t, store, "owner-1", "coffee with Anna")
	b := mustCapture(t, store, "owner-1", "server maintenance window")

	if err := store.StoreCaptureEmbedding(ctx, a.ID, []float32{1, 0, 0}); err != nil {
		t.Fatalf("StoreCaptureEmbedding() failed: %v", err)
	}
	if err := store.StoreCaptureEmbedding(ctx, b.ID, []float32{0, 1, 0}); err != nil {
		t.Fatalf("StoreCaptureEmbedding() failed: %v", err)
	}

	// Replacing an embedding is an upsert.
	if err := store.StoreCaptureEmbedding(ctx, a.ID, []float32{0.9, 0.1, 0}); err != nil {
		t.Fatalf("re-StoreCaptureEmbedding() failed: %v", err)
	}

	results, err := store.SimilarCaptures(ctx, "owner-1", []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("SimilarCaptures() failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results: got %d, want 2", len(results))
	}
	if results[0].Capture.ID != a.ID {
		t.Errorf("best match: got %s, want %s", results[0].Capture.ID, a.ID)
	}
	if results[0].Score <= results[1].Score {
		t.Errorf("scores not descending: %v then %v", results[0].Score, results[1].Score)
	}

	if err := store.StoreCaptureEmbedding(ctx, "cap:missing", []float32{1}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("missing capture: got %v, want ErrNotFound", err)
	}
	if err := store.StoreCaptureEmbedding(ctx, a.ID, nil); !errors.Is(err, storage.ErrValidation) {
		t.Errorf("empty vector: got %v, want ErrValidation", err)
	}
}

func TestPreferencesRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.GetPreferences(ctx, "owner-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("unset preferences: got %v, want ErrNotFound", err)
	}

	prefs := &types.OwnerPreferences{
		OwnerID:     "owner-1",
		Timezone:    "Europe/Berlin",
		WebhookURL:  "https://example.com/hook",
		DigestHour:  8,
		DisplayName: "MJ",
	}
	if err := store.SavePreferences(ctx, prefs); err != nil {
		t.Fatalf("SavePreferences() failed: %v", err)
	}

	got, err := store.GetPreferences(ctx, "owner-1")
	if err != nil {
		t.Fatalf("GetPreferences() failed: %v", err)
	}
	if got.Timezone != "Europe/Berlin" || got.DigestHour != 8 {
		t.Errorf("preferences: got %+v", got)
	}

	// Saving again updates in place.
	prefs.DigestHour = 20
	if err := store.SavePreferences(ctx, prefs); err != nil {
		t.Fatalf("second SavePreferences() failed: %v", err)
	}
	got, _ = store.GetPreferences(ctx, "owner-1")
	if got.DigestHour != 20 {
		t.Errorf("DigestHour after update: got %d, want 20", got.DigestHour)
	}

	bad := &types.OwnerPreferences{OwnerID: "owner-1", Timezone: "Mars/Olympus"}
	if err := store.SavePreferences(ctx, bad); !errors.Is(err, storage.ErrValidation) {
		t.Errorf("bad timezone: got %v, want ErrValidation", err)
	}
	bad = &types.OwnerPreferences{OwnerID: "owner-1", DigestHour: 25}
	if err := store.SavePreferences(ctx, bad); !errors.Is(err, storage.ErrValidation) {
		t.Errorf("bad digest hour: got %v, want ErrValidation", err)
	}
}
