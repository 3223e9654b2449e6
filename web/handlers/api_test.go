package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atticlabs/attic/internal/config"
	"github.com/atticlabs/attic/internal/engine"
	"github.com/atticlabs/attic/internal/server"
	"github.com/atticlabs/attic/internal/storage"
	"github.com/atticlabs/attic/internal/storage/sqlite"
	"github.com/atticlabs/attic/pkg/types"
)

// newTestServer starts a full API server on a random port backed by an
// in-memory store, with the engine running in push mode (no in-process
// extractor).
func newTestServer(t *testing.T) (string, storage.Store) {
	t.Helper()

	store, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	eng, err := engine.NewEngine(store, nil, engine.DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, eng.Start(context.Background()))
	t.Cleanup(func() { _ = eng.Shutdown(context.Background()) })

	cfg := &config.Config{}
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Security.SecurityMode = "development"

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	addr, _, err := server.Start(ctx, cfg, store, eng)
	require.NoError(t, err)

	return "http://" + addr, store
}

// doRequest performs an API request under the given owner and decodes the
// JSON response into out when out is non-nil.
func doRequest(t *testing.T, method, url, owner string, body, out interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if owner != "" {
		req.Header.Set("X-Owner-ID", owner)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return resp
}

func createCapture(t *testing.T, base, owner, text string) *types.Capture {
	t.Helper()
	var capture types.Capture
	resp := doRequest(t, http.MethodPost, base+"/api/captures", owner,
		map[string]string{"text": text}, &capture)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return &capture
}

func TestCaptureLifecycle(t *testing.T) {
	base, _ := newTestServer(t)
	owner := "own:alice"

	created := createCapture(t, base, owner, "Met Cathy at the library")
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, types.CapturePending, created.Status)
	assert.Equal(t, "api", created.CreatedBy)

	var fetched types.Capture
	resp := doRequest(t, http.MethodGet, base+"/api/captures/"+created.ID, owner, nil, &fetched)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, created.ID, fetched.ID)
	assert.Equal(t, "Met Cathy at the library", fetched.OriginalText)

	var listed struct {
		Items []types.Capture `json:"Items"`
		Total int             `json:"Total"`
	}
	resp = doRequest(t, http.MethodGet, base+"/api/captures", owner, nil, &listed)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, listed.Total)

	resp = doRequest(t, http.MethodDelete, base+"/api/captures/"+created.ID, owner, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, base+"/api/captures/"+created.ID, owner, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOwnerHeaderRequired(t *testing.T) {
	base, _ := newTestServer(t)

	resp := doRequest(t, http.MethodGet, base+"/api/captures", "", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateCaptureValidation(t *testing.T) {
	base, _ := newTestServer(t)

	resp := doRequest(t, http.MethodPost, base+"/api/captures", "own:alice",
		map[string]string{"text": ""}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCrossOwnerIsolation(t *testing.T) {
	base, _ := newTestServer(t)

	created := createCapture(t, base, "own:alice", "private note")

	resp := doRequest(t, http.MethodGet, base+"/api/captures/"+created.ID, "own:bob", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var listed struct {
		Total int `json:"Total"`
	}
	resp = doRequest(t, http.MethodGet, base+"/api/captures", "own:bob", nil, &listed)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, listed.Total)
}

func TestExtractionPushIsIdempotent(t *testing.T) {
	base, _ := newTestServer(t)
	owner := "own:alice"

	created := createCapture(t, base, owner, "Bought milk at Walmart, remind me to get eggs tomorrow")

	trigger := time.Now().UTC().Add(24 * time.Hour)
	result := map[string]interface{}{
		"processed_text": "Bought milk at Walmart. Reminder: get eggs.",
		"entities": []map[string]interface{}{
			{"name": "Walmart", "kind": "place"},
			{"name": "milk", "kind": "object"},
		},
		"relations": []map[string]interface{}{
			{"entity_ref": map[string]string{"name": "Walmart", "kind": "place"}, "relation_kind": "mentioned", "confidence": 0.9},
			{"entity_ref": map[string]string{"name": "milk", "kind": "object"}, "relation_kind": "action", "confidence": 1.0},
		},
		"tags":     []map[string]string{{"name": "errands"}},
		"reminder": map[string]interface{}{"text": "get eggs", "trigger_at": trigger.Format(time.RFC3339)},
	}

	var extracted types.Capture
	resp := doRequest(t, http.MethodPost, base+"/api/captures/"+created.ID+"/extraction", owner, result, &extracted)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, types.CaptureExtracted, extracted.Status)
	assert.Equal(t, "Bought milk at Walmart. Reminder: get eggs.", extracted.ProcessedText)

	var links struct {
		Links []types.EntityLink `json:"links"`
	}
	resp = doRequest(t, http.MethodGet, base+"/api/captures/"+created.ID+"/links", owner, nil, &links)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, links.Links, 2)

	var tags struct {
		Tags []types.Tag `json:"tags"`
	}
	resp = doRequest(t, http.MethodGet, base+"/api/captures/"+created.ID+"/tags", owner, nil, &tags)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, tags.Tags, 1)
	assert.Equal(t, "errands", tags.Tags[0].Name)

	var statsBefore map[string]int
	resp = doRequest(t, http.MethodGet, base+"/api/stats", owner, nil, &statsBefore)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Redelivering the identical result must not mint new rows.
	resp = doRequest(t, http.MethodPost, base+"/api/captures/"+created.ID+"/extraction", owner, result, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var statsAfter map[string]int
	resp = doRequest(t, http.MethodGet, base+"/api/stats", owner, nil, &statsAfter)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, statsBefore, statsAfter)
	assert.Equal(t, 1, statsAfter["active_reminders"])
}

func TestReminderEndpoints(t *testing.T) {
	base, _ := newTestServer(t)
	owner := "own:alice"

	trigger := time.Now().UTC().Add(-time.Hour)
	var created types.Reminder
	resp := doRequest(t, http.MethodPost, base+"/api/reminders", owner,
		map[string]interface{}{"text": "water the plants", "trigger_at": trigger.Format(time.RFC3339)}, &created)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, types.ReminderActive, created.Status)

	var due struct {
		Reminders []types.Reminder `json:"reminders"`
	}
	resp = doRequest(t, http.MethodGet, base+"/api/reminders/due", owner, nil, &due)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, due.Reminders, 1)

	var completed types.Reminder
	resp = doRequest(t, http.MethodPost, base+"/api/reminders/"+created.ID+"/complete", owner, nil, &completed)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, types.ReminderCompleted, completed.Status)

	// Cancelling a completed reminder is an illegal transition.
	resp = doRequest(t, http.MethodPost, base+"/api/reminders/"+created.ID+"/cancel", owner, nil, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doRequest(t, http.MethodDelete, base+"/api/reminders/"+created.ID, owner, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, base+"/api/reminders/"+created.ID, owner, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestReminderWithoutTriggerRejected(t *testing.T) {
	base, _ := newTestServer(t)

	resp := doRequest(t, http.MethodPost, base+"/api/reminders", "own:alice",
		map[string]interface{}{"text": "never fires"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTagAttachDetach(t *testing.T) {
	base, _ := newTestServer(t)
	owner := "own:alice"

	created := createCapture(t, base, owner, "tagged capture")

	var attach struct {
		TagID string `json:"tag_id"`
	}
	resp := doRequest(t, http.MethodPost, base+"/api/captures/"+created.ID+"/tags", owner,
		map[string]string{"name": "errands", "color": "#FF0000"}, &attach)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, attach.TagID)

	var tagged struct {
		CaptureIDs []string `json:"capture_ids"`
	}
	resp = doRequest(t, http.MethodGet, base+"/api/tags/"+attach.TagID+"/captures", owner, nil, &tagged)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{created.ID}, tagged.CaptureIDs)

	resp = doRequest(t, http.MethodDelete,
		fmt.Sprintf("%s/api/captures/%s/tags/%s", base, created.ID, attach.TagID), owner, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, base+"/api/tags/"+attach.TagID+"/captures", owner, nil, &tagged)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, tagged.CaptureIDs)
}

func TestSearchEndpoint(t *testing.T) {
	base, _ := newTestServer(t)
	owner := "own:alice"

	createCapture(t, base, owner, "picked up groceries at the market")
	createCapture(t, base, owner, "finished the quarterly report")

	var found struct {
		Results struct {
			Items []types.Capture `json:"Items"`
		} `json:"results"`
	}
	resp := doRequest(t, http.MethodGet, base+"/api/search?q=groceries", owner, nil, &found)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, found.Results.Items, 1)
	assert.Contains(t, found.Results.Items[0].OriginalText, "groceries")
}

func TestEntityEndpoints(t *testing.T) {
	base, store := newTestServer(t)
	owner := "own:alice"
	ctx := context.Background()

	capture := createCapture(t, base, owner, "lunch with Cathy and Bob")
	cathy, err := store.ResolveOrCreateEntity(ctx, owner, "Cathy", types.EntityPerson, nil)
	require.NoError(t, err)
	bob, err := store.ResolveOrCreateEntity(ctx, owner, "Bob", types.EntityPerson, nil)
	require.NoError(t, err)
	_, err = store.Link(ctx, owner, capture.ID, cathy.ID, types.RelationMentioned, 1.0)
	require.NoError(t, err)
	_, err = store.Link(ctx, owner, capture.ID, bob.ID, types.RelationMentioned, 1.0)
	require.NoError(t, err)

	var fetched types.Entity
	resp := doRequest(t, http.MethodGet, base+"/api/entities/"+cathy.ID, owner, nil, &fetched)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Cathy", fetched.Name)

	var byKind struct {
		Entities []types.Entity `json:"entities"`
	}
	resp = doRequest(t, http.MethodGet, base+"/api/entities?kind=person", owner, nil, &byKind)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, byKind.Entities, 2)

	var captures struct {
		Captures []types.CaptureLink `json:"captures"`
	}
	resp = doRequest(t, http.MethodGet, base+"/api/entities/"+cathy.ID+"/captures", owner, nil, &captures)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, captures.Captures, 1)
	assert.Equal(t, capture.ID, captures.Captures[0].Capture.ID)

	var related struct {
		Related []types.RelatedEntity `json:"related"`
	}
	resp = doRequest(t, http.MethodGet, base+"/api/entities/"+cathy.ID+"/related", owner, nil, &related)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, related.Related, 1)
	assert.Equal(t, bob.ID, related.Related[0].Entity.ID)
	assert.Equal(t, 1, related.Related[0].SharedCaptures)
}

func TestPreferencesEndpoints(t *testing.T) {
	base, _ := newTestServer(t)
	owner := "own:alice"

	var defaults types.OwnerPreferences
	resp := doRequest(t, http.MethodGet, base+"/api/preferences", owner, nil, &defaults)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "UTC", defaults.Timezone)

	var updated types.OwnerPreferences
	resp = doRequest(t, http.MethodPut, base+"/api/preferences", owner,
		map[string]interface{}{"timezone": "Europe/Berlin", "webhook_url": "https://example.com/hook"}, &updated)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Europe/Berlin", updated.Timezone)
	assert.Equal(t, "https://example.com/hook", updated.WebhookURL)
}

func TestActivityEndpoint(t *testing.T) {
	base, _ := newTestServer(t)
	owner := "own:alice"

	createCapture(t, base, owner, "recent activity")

	var activity struct {
		Points []struct {
			Time  string `json:"time"`
			Count int    `json:"count"`
		} `json:"points"`
		Range string `json:"range"`
	}
	resp := doRequest(t, http.MethodGet, base+"/api/activity?range=1hour", owner, nil, &activity)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1hour", activity.Range)
	require.NotEmpty(t, activity.Points)

	total := 0
	for _, p := range activity.Points {
		total += p.Count
	}
	assert.Equal(t, 1, total)
}

func TestHealthEndpointNeedsNoOwner(t *testing.T) {
	base, _ := newTestServer(t)

	resp := doRequest(t, http.MethodGet, base+"/api/health", "", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProductionModeRequiresToken(t *testing.T) {
	store, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	eng, err := engine.NewEngine(store, nil, engine.DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, eng.Start(context.Background()))
	t.Cleanup(func() { _ = eng.Shutdown(context.Background()) })

	cfg := &config.Config{}
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Security.SecurityMode = "production"
	cfg.Security.APIToken = "secret-token"

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	addr, _, err := server.Start(ctx, cfg, store, eng)
	require.NoError(t, err)
	base := "http://" + addr

	req, err := http.NewRequest(http.MethodGet, base+"/api/captures", nil)
	require.NoError(t, err)
	req.Header.Set("X-Owner-ID", "own:alice")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req.Header.Set("Authorization", "Bearer secret-token")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Health stays open without a token.
	resp, err = http.Get(base + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDefaultOwnerFallback(t *testing.T) {
	store, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	eng, err := engine.NewEngine(store, nil, engine.DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, eng.Start(context.Background()))
	t.Cleanup(func() { _ = eng.Shutdown(context.Background()) })

	cfg := &config.Config{}
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Security.SecurityMode = "development"
	cfg.User.DefaultOwner = "own:solo"

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	addr, _, err := server.Start(ctx, cfg, store, eng)
	require.NoError(t, err)
	base := "http://" + addr

	var capture types.Capture
	resp := doRequest(t, http.MethodPost, base+"/api/captures", "",
		map[string]string{"text": "no header needed"}, &capture)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "own:solo", capture.OwnerID)
}
