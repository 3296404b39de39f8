// Package webhooks reconciles video platform callbacks into the video store.
package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/newtube/backend/internal/events"
	"github.com/newtube/backend/internal/models"
	"github.com/newtube/backend/internal/videos"
	"github.com/newtube/backend/pkg/metrics"
	"github.com/newtube/backend/pkg/mux"
	"github.com/newtube/backend/pkg/response"
	"github.com/newtube/backend/pkg/storage"
)

const maxBodyBytes = 1 << 20

// Plain-text responses of the webhook endpoint.
const (
	msgReceived       = "Webhook received"
	msgSecretMissing  = "mux webhook secret is not set"
	msgMissingHeader  = "Missing mux signature header"
	msgInvalidSig     = "Invalid mux signature"
	msgInvalidPayload = "Invalid webhook payload"
	msgNoUploadID     = "No upload ID found"
	msgNoAssetID      = "No asset ID found"
	msgNoPlaybackID   = "Missing playback ID"
	msgVideoNotFound  = "Video not found"
	msgUploadFailed   = "Failed to upload thumbnail or preview"
	msgUpdateFailed   = "Failed to update video"
)

// Store is the correlation-keyed side of the video repository.
type Store interface {
	GetByUploadID(ctx context.Context, uploadID string) (*models.Video, error)
	SetAssetCreated(ctx context.Context, uploadID, assetID, status string) (*models.Video, error)
	SetAssetReady(ctx context.Context, uploadID string, a models.AssetReady) (*models.Video, error)
	SetAssetStatus(ctx context.Context, uploadID, status string) (*models.Video, error)
	SetTrackReady(ctx context.Context, assetID, trackID, status string) (*models.Video, error)
	DeleteByAssetID(ctx context.Context, assetID string) (*models.Video, error)
}

// MuxHandler handles POST /api/videos/webhook.
type MuxHandler struct {
	store     Store
	objects   storage.Store
	events    events.Publisher
	secret    string
	tolerance time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// NewMuxHandler creates the webhook handler. An empty secret makes every request fail with 500.
func NewMuxHandler(store Store, objects storage.Store, publisher events.Publisher, secret string, logger *zap.Logger) *MuxHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &MuxHandler{
		store:     store,
		objects:   objects,
		events:    publisher,
		secret:    secret,
		tolerance: mux.DefaultTolerance,
		now:       time.Now,
		logger:    logger,
	}
}

// result is the outcome of one handled event.
type result struct {
	status int
	msg    string
}

var received = result{http.StatusOK, msgReceived}

// Handle verifies and dispatches one delivery.
func (h *MuxHandler) Handle(c *gin.Context) {
	if h.secret == "" {
		h.logger.Error("mux webhook secret is not set")
		h.reply(c, "", result{http.StatusInternalServerError, msgSecretMissing})
		return
	}
	header := c.GetHeader(mux.SignatureHeader)
	if header == "" {
		h.reply(c, "", result{http.StatusBadRequest, msgMissingHeader})
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		h.reply(c, "", result{http.StatusBadRequest, msgInvalidPayload})
		return
	}
	if err := mux.VerifySignature(body, header, h.secret, h.tolerance, h.now()); err != nil {
		h.logger.Warn("mux webhook signature rejected", zap.Error(err))
		h.reply(c, "", result{http.StatusBadRequest, msgInvalidSig})
		return
	}
	ev, err := mux.ParseEvent(body)
	if err != nil {
		h.logger.Warn("mux webhook payload rejected", zap.Error(err))
		h.reply(c, "", result{http.StatusBadRequest, msgInvalidPayload})
		return
	}

	ctx := c.Request.Context()
	var res result
	switch ev := ev.(type) {
	case mux.AssetCreated:
		res = h.assetCreated(ctx, ev)
	case mux.AssetReady:
		res = h.assetReady(ctx, ev)
	case mux.AssetErrored:
		res = h.assetErrored(ctx, ev)
	case mux.AssetDeleted:
		res = h.assetDeleted(ctx, ev)
	case mux.TrackReady:
		res = h.trackReady(ctx, ev)
	default:
		h.logger.Debug("mux webhook ignored", zap.String("type", ev.Type()))
		res = received
	}
	h.reply(c, ev.Type(), res)
}

func (h *MuxHandler) reply(c *gin.Context, eventType string, res result) {
	outcome := "ok"
	switch {
	case res.status >= http.StatusInternalServerError:
		outcome = "error"
	case res.status >= http.StatusBadRequest:
		outcome = "rejected"
	}
	if eventType == "" {
		eventType = "unverified"
	}
	metrics.WebhookEventsTotal.WithLabelValues(eventType, outcome).Inc()
	response.Text(c, res.status, res.msg)
}

// applied maps a store result to a response. A correlation key that matches no
// row is acknowledged; there is nothing to reconcile.
func (h *MuxHandler) applied(ctx context.Context, source, key string, v *models.Video, err error) result {
	if errors.Is(err, models.ErrNotFound) {
		h.logger.Warn("mux webhook matched no video", zap.String("type", source), zap.String("key", key))
		return received
	}
	if err != nil {
		h.logger.Error("mux webhook update failed", zap.Error(err), zap.String("type", source), zap.String("key", key))
		return result{http.StatusInternalServerError, msgUpdateFailed}
	}
	h.logger.Info("mux webhook applied", zap.String("type", source), zap.String("key", key), zap.String("video_id", v.ID.String()))
	videos.Publish(ctx, h.events, events.New(events.TypeVideoUpdated, v.ID, v.UserID, source, v), h.logger)
	return received
}

func (h *MuxHandler) assetCreated(ctx context.Context, ev mux.AssetCreated) result {
	if ev.UploadID == "" {
		return result{http.StatusBadRequest, msgNoUploadID}
	}
	v, err := h.store.SetAssetCreated(ctx, ev.UploadID, ev.AssetID, ev.Status)
	return h.applied(ctx, ev.Type(), ev.UploadID, v, err)
}

func (h *MuxHandler) assetReady(ctx context.Context, ev mux.AssetReady) result {
	if ev.UploadID == "" {
		return result{http.StatusBadRequest, msgNoUploadID}
	}
	playbackID := ev.FirstPlaybackID()
	if playbackID == "" {
		return result{http.StatusBadRequest, msgNoPlaybackID}
	}

	video, err := h.store.GetByUploadID(ctx, ev.UploadID)
	if err != nil {
		return h.applied(ctx, ev.Type(), ev.UploadID, nil, err)
	}

	thumb, err := h.objects.UploadFromURL(ctx, mux.ThumbnailURL(playbackID), storage.ThumbnailKey(video.ID, playbackID))
	if err != nil {
		h.logger.Error("thumbnail upload failed", zap.Error(err), zap.String("video_id", video.ID.String()))
		return result{http.StatusInternalServerError, msgUploadFailed}
	}
	preview, err := h.objects.UploadFromURL(ctx, mux.PreviewURL(playbackID), storage.PreviewKey(video.ID, playbackID))
	if err != nil {
		h.logger.Error("preview upload failed", zap.Error(err), zap.String("video_id", video.ID.String()))
		return result{http.StatusInternalServerError, msgUploadFailed}
	}

	duration := ev.DurationMillis(models.DefaultDuration)
	h.logger.Debug("asset ready", zap.String("upload_id", ev.UploadID), zap.String("duration", models.FormatDuration(duration)))
	v, err := h.store.SetAssetReady(ctx, ev.UploadID, models.AssetReady{
		MuxStatus:     ev.Status,
		MuxAssetID:    ev.AssetID,
		MuxPlaybackID: playbackID,
		ThumbnailURL:  thumb.URL,
		ThumbnailKey:  thumb.Key,
		PreviewURL:    preview.URL,
		PreviewKey:    preview.Key,
		Duration:      duration,
	})
	return h.applied(ctx, ev.Type(), ev.UploadID, v, err)
}

func (h *MuxHandler) assetErrored(ctx context.Context, ev mux.AssetErrored) result {
	if ev.UploadID == "" {
		return result{http.StatusBadRequest, msgNoUploadID}
	}
	v, err := h.store.SetAssetStatus(ctx, ev.UploadID, ev.Status)
	return h.applied(ctx, ev.Type(), ev.UploadID, v, err)
}

func (h *MuxHandler) assetDeleted(ctx context.Context, ev mux.AssetDeleted) result {
	if ev.AssetID == "" {
		return result{http.StatusBadRequest, msgNoAssetID}
	}
	v, err := h.store.DeleteByAssetID(ctx, ev.AssetID)
	if errors.Is(err, models.ErrNotFound) {
		return result{http.StatusBadRequest, msgVideoNotFound}
	}
	if err != nil {
		h.logger.Error("delete video failed", zap.Error(err), zap.String("asset_id", ev.AssetID))
		return result{http.StatusInternalServerError, msgUpdateFailed}
	}
	videos.DeleteDerivedObjects(ctx, h.objects, v, h.logger)
	h.logger.Info("mux webhook applied", zap.String("type", ev.Type()), zap.String("key", ev.AssetID), zap.String("video_id", v.ID.String()))
	videos.Publish(ctx, h.events, events.New(events.TypeVideoDeleted, v.ID, v.UserID, ev.Type(), nil), h.logger)
	return received
}

func (h *MuxHandler) trackReady(ctx context.Context, ev mux.TrackReady) result {
	if ev.AssetID == "" {
		return result{http.StatusBadRequest, msgNoAssetID}
	}
	v, err := h.store.SetTrackReady(ctx, ev.AssetID, ev.TrackID, ev.Status)
	return h.applied(ctx, ev.Type(), ev.AssetID, v, err)
}
