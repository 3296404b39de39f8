package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/newtube/backend/internal/events"
	"github.com/newtube/backend/internal/models"
	"github.com/newtube/backend/internal/videos/videostest"
	"github.com/newtube/backend/pkg/mux"
	"github.com/newtube/backend/pkg/storage"
)

const secret = "whsec_test"

type mockObjects struct{ mock.Mock }

func (m *mockObjects) UploadFromURL(ctx context.Context, sourceURL, key string) (*storage.Object, error) {
	args := m.Called(ctx, sourceURL, key)
	obj, _ := args.Get(0).(*storage.Object)
	return obj, args.Error(1)
}

func (m *mockObjects) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

type countingPublisher struct{ events []events.Event }

func (p *countingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.events = append(p.events, ev)
	return nil
}

func (p *countingPublisher) Close() error { return nil }

type fixture struct {
	store     *videostest.Store
	objects   *mockObjects
	publisher *countingPublisher
	router    *gin.Engine
	now       time.Time
}

func newFixture(t *testing.T, secret string) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &fixture{
		store:     videostest.NewStore(),
		objects:   &mockObjects{},
		publisher: &countingPublisher{},
		now:       time.Unix(1_760_000_000, 0),
	}
	h := NewMuxHandler(f.store, f.objects, f.publisher, secret, nil)
	h.now = func() time.Time { return f.now }
	f.router = gin.New()
	f.router.POST("/api/videos/webhook", h.Handle)
	return f
}

func (f *fixture) send(t *testing.T, payload any, sign bool) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/videos/webhook", bytes.NewReader(body))
	if sign {
		req.Header.Set(mux.SignatureHeader, mux.SignatureHeaderValue(body, secret, f.now))
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) seed(mutate func(v *models.Video)) models.Video {
	v := &models.Video{
		UserID:      uuid.New(),
		Title:       models.DefaultTitle,
		MuxStatus:   models.StringPtr(models.MuxStatusWaiting),
		MuxUploadID: models.StringPtr("upload_1"),
	}
	if mutate != nil {
		mutate(v)
	}
	_ = f.store.Create(context.Background(), v)
	return *v
}

func event(eventType string, data map[string]any) map[string]any {
	return map[string]any{"type": eventType, "data": data}
}

func TestRejectsUnsignedAndForged(t *testing.T) {
	f := newFixture(t, secret)
	v := f.seed(nil)
	payload := event(mux.TypeAssetCreated, map[string]any{"id": "asset_1", "upload_id": "upload_1", "status": "preparing"})

	w := f.send(t, payload, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing mux signature header", w.Body.String())

	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/videos/webhook", bytes.NewReader(body))
	req.Header.Set(mux.SignatureHeader, mux.SignatureHeaderValue(body, "wrong", f.now))
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	stored, _ := f.store.Get(v.ID)
	assert.Equal(t, v, stored)
}

func TestMissingSecret(t *testing.T) {
	f := newFixture(t, "")
	w := f.send(t, event(mux.TypeAssetCreated, map[string]any{"upload_id": "upload_1"}), true)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestAssetCreated(t *testing.T) {
	f := newFixture(t, secret)
	v := f.seed(func(v *models.Video) { v.Description = models.StringPtr("keep me") })

	w := f.send(t, event(mux.TypeAssetCreated, map[string]any{"id": "asset_1", "upload_id": "upload_1", "status": "preparing"}), true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Webhook received", w.Body.String())

	got, _ := f.store.Get(v.ID)
	assert.Equal(t, "preparing", models.Deref(got.MuxStatus))
	assert.Equal(t, "asset_1", models.Deref(got.MuxAssetID))

	want := v
	want.MuxStatus = got.MuxStatus
	want.MuxAssetID = got.MuxAssetID
	assert.Equal(t, want, got, "other fields untouched")
	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, events.TypeVideoUpdated, f.publisher.events[0].Type)
}

func TestMissingCorrelationKeyLeavesStoreUnchanged(t *testing.T) {
	cases := []map[string]any{
		event(mux.TypeAssetCreated, map[string]any{"id": "asset_1", "status": "preparing"}),
		event(mux.TypeAssetReady, map[string]any{"id": "asset_1", "status": "ready", "playback_ids": []map[string]any{{"id": "pb"}}}),
		event(mux.TypeAssetErrored, map[string]any{"id": "asset_1", "status": "errored"}),
		event(mux.TypeAssetDeleted, map[string]any{"upload_id": "upload_1"}),
		event(mux.TypeAssetTrackReady, map[string]any{"id": "track_1", "status": "ready"}),
	}
	for _, payload := range cases {
		f := newFixture(t, secret)
		v := f.seed(func(v *models.Video) { v.MuxAssetID = models.StringPtr("asset_1") })

		w := f.send(t, payload, true)
		assert.Equal(t, http.StatusBadRequest, w.Code, payload["type"])

		got, ok := f.store.Get(v.ID)
		require.True(t, ok)
		assert.Equal(t, v, got, payload["type"])
		assert.Empty(t, f.publisher.events)
		f.objects.AssertNotCalled(t, "UploadFromURL", mock.Anything, mock.Anything, mock.Anything)
	}
}

func TestAssetReadyWithoutPlaybackIDs(t *testing.T) {
	f := newFixture(t, secret)
	v := f.seed(nil)

	w := f.send(t, event(mux.TypeAssetReady, map[string]any{
		"id": "asset_1", "upload_id": "upload_1", "status": "ready", "playback_ids": []any{},
	}), true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	got, _ := f.store.Get(v.ID)
	assert.Nil(t, got.MuxPlaybackID)
}

func readyPayload(duration any) map[string]any {
	data := map[string]any{
		"id":           "asset_1",
		"upload_id":    "upload_1",
		"status":       "ready",
		"playback_ids": []map[string]any{{"id": "pb_1", "policy": "public"}},
	}
	if duration != nil {
		data["duration"] = duration
	}
	return event(mux.TypeAssetReady, data)
}

func (f *fixture) expectUploads(videoID uuid.UUID) {
	thumbKey := storage.ThumbnailKey(videoID, "pb_1")
	previewKey := storage.PreviewKey(videoID, "pb_1")
	f.objects.On("UploadFromURL", mock.Anything, "https://image.mux.com/pb_1/thumbnail.jpg", thumbKey).
		Return(&storage.Object{Key: thumbKey, URL: "https://cdn.example/" + thumbKey}, nil)
	f.objects.On("UploadFromURL", mock.Anything, "https://image.mux.com/pb_1/animated.gif", previewKey).
		Return(&storage.Object{Key: previewKey, URL: "https://cdn.example/" + previewKey}, nil)
}

func TestAssetReadyIsIdempotent(t *testing.T) {
	f := newFixture(t, secret)
	v := f.seed(nil)
	f.expectUploads(v.ID)

	w := f.send(t, readyPayload(12.3456), true)
	require.Equal(t, http.StatusOK, w.Code)
	once, _ := f.store.Get(v.ID)

	assert.Equal(t, "ready", models.Deref(once.MuxStatus))
	assert.Equal(t, "pb_1", models.Deref(once.MuxPlaybackID))
	assert.Equal(t, "asset_1", models.Deref(once.MuxAssetID))
	assert.Equal(t, storage.ThumbnailKey(v.ID, "pb_1"), models.Deref(once.ThumbnailKey))
	assert.Equal(t, "https://cdn.example/"+storage.PreviewKey(v.ID, "pb_1"), models.Deref(once.PreviewURL))
	assert.Equal(t, 12346, once.Duration)

	w = f.send(t, readyPayload(12.3456), true)
	require.Equal(t, http.StatusOK, w.Code)
	twice, _ := f.store.Get(v.ID)
	assert.Equal(t, once, twice)
}

func TestAssetReadyDefaultDuration(t *testing.T) {
	f := newFixture(t, secret)
	v := f.seed(func(v *models.Video) { v.Duration = 999 })
	f.expectUploads(v.ID)

	w := f.send(t, readyPayload(nil), true)
	require.Equal(t, http.StatusOK, w.Code)
	got, _ := f.store.Get(v.ID)
	assert.Equal(t, models.DefaultDuration, got.Duration)
}

func TestAssetReadyUploadFailure(t *testing.T) {
	f := newFixture(t, secret)
	v := f.seed(nil)
	f.objects.On("UploadFromURL", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("s3 down"))

	w := f.send(t, readyPayload(3.0), true)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to upload thumbnail or preview", w.Body.String())

	got, _ := f.store.Get(v.ID)
	assert.Nil(t, got.MuxPlaybackID)
}

func TestAssetErrored(t *testing.T) {
	f := newFixture(t, secret)
	v := f.seed(nil)

	w := f.send(t, event(mux.TypeAssetErrored, map[string]any{"id": "asset_1", "upload_id": "upload_1", "status": "errored"}), true)
	require.Equal(t, http.StatusOK, w.Code)
	got, _ := f.store.Get(v.ID)
	assert.Equal(t, "errored", models.Deref(got.MuxStatus))
	assert.Nil(t, got.MuxAssetID)
}

func TestAssetDeleted(t *testing.T) {
	f := newFixture(t, secret)
	v := f.seed(func(v *models.Video) {
		v.MuxAssetID = models.StringPtr("asset_1")
		v.ThumbnailKey = models.StringPtr("thumbnails/x.jpg")
	})
	f.objects.On("Delete", mock.Anything, "thumbnails/x.jpg").Return(nil).Once()

	w := f.send(t, event(mux.TypeAssetDeleted, map[string]any{"id": "asset_1", "upload_id": "upload_1"}), true)
	require.Equal(t, http.StatusOK, w.Code)
	_, ok := f.store.Get(v.ID)
	assert.False(t, ok)
	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, events.TypeVideoDeleted, f.publisher.events[0].Type)
	f.objects.AssertExpectations(t)

	w = f.send(t, event(mux.TypeAssetDeleted, map[string]any{"id": "asset_1"}), true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Video not found", w.Body.String())
}

func TestTrackReady(t *testing.T) {
	f := newFixture(t, secret)
	v := f.seed(func(v *models.Video) { v.MuxAssetID = models.StringPtr("asset_1") })

	w := f.send(t, event(mux.TypeAssetTrackReady, map[string]any{"id": "track_1", "asset_id": "asset_1", "status": "ready", "type": "text"}), true)
	require.Equal(t, http.StatusOK, w.Code)
	got, _ := f.store.Get(v.ID)
	assert.Equal(t, "track_1", models.Deref(got.MuxTrackID))
	assert.Equal(t, "ready", models.Deref(got.MuxTrackStatus))
}

func TestUnknownEventAcknowledged(t *testing.T) {
	f := newFixture(t, secret)
	v := f.seed(nil)

	w := f.send(t, event("video.upload.cancelled", map[string]any{"id": "upload_1"}), true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Webhook received", w.Body.String())
	got, _ := f.store.Get(v.ID)
	assert.Equal(t, v, got)
}

func TestUnmatchedCorrelationKeyAcknowledged(t *testing.T) {
	f := newFixture(t, secret)
	w := f.send(t, event(mux.TypeAssetCreated, map[string]any{"id": "asset_9", "upload_id": "nobody", "status": "preparing"}), true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, f.publisher.events)
}
