package videos

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newtube/backend/internal/events"
	"github.com/newtube/backend/internal/middleware"
	"github.com/newtube/backend/internal/models"
	"github.com/newtube/backend/internal/rpc"
	"github.com/newtube/backend/pkg/mux"
	"github.com/newtube/backend/pkg/response"
	"github.com/newtube/backend/pkg/storage"
)

// Workflow names triggered by the generate* procedures.
const (
	WorkflowTitle       = "title"
	WorkflowDescription = "description"
	WorkflowThumbnail   = "thumbnail"
)

// Uploader allocates direct-upload targets on the video platform.
type Uploader interface {
	CreateUpload(ctx context.Context, passthrough string) (*mux.Upload, error)
}

// Trigger starts a workflow run and returns its run id.
type Trigger interface {
	Trigger(ctx context.Context, name string, input any) (string, error)
}

// WorkflowInput is the body every video workflow receives.
type WorkflowInput struct {
	UserID  uuid.UUID `json:"userId"`
	VideoID uuid.UUID `json:"videoId"`
}

// Handler serves the videos.* procedures.
type Handler struct {
	store     Store
	uploads   Uploader
	objects   storage.Store
	workflows Trigger
	events    events.Publisher
	logger    *zap.Logger
}

// NewHandler creates a videos procedure handler.
func NewHandler(store Store, uploads Uploader, objects storage.Store, workflows Trigger, publisher events.Publisher, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Handler{store: store, uploads: uploads, objects: objects, workflows: workflows, events: publisher, logger: logger}
}

// Register mounts the procedures on an authenticated RPC group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/videos.create", h.Create)
	rg.POST("/videos.update", h.Update)
	rg.POST("/videos.remove", h.Remove)
	rg.POST("/videos.restoreThumbnail", h.RestoreThumbnail)
	rg.POST("/videos.generateTitle", h.generate(WorkflowTitle))
	rg.POST("/videos.generateDescription", h.generate(WorkflowDescription))
	rg.POST("/videos.generateThumbnail", h.generate(WorkflowThumbnail))
}

// CreateResult is returned by videos.create.
type CreateResult struct {
	Video *models.Video `json:"video"`
	URL   string        `json:"url"`
}

// MaxDescriptionRunes bounds videos.update descriptions.
const MaxDescriptionRunes = 5000

// UpdateInput is the input of videos.update. Absent fields are left untouched;
// description and categoryId accept null to clear them.
type UpdateInput struct {
	ID          *uuid.UUID                 `json:"id"`
	Title       *string                    `json:"title" binding:"omitempty,min=1,max=100"`
	Description models.Nullable[string]    `json:"description"`
	CategoryID  models.Nullable[uuid.UUID] `json:"categoryId"`
	Visibility  *models.Visibility         `json:"visibility"`
}

// IDInput is the input of procedures addressing one video.
type IDInput struct {
	ID uuid.UUID `json:"id" binding:"required"`
}

// WorkflowResult is returned by the generate* procedures.
type WorkflowResult struct {
	WorkflowRunID string `json:"workflowRunId"`
}

func currentUser(c *gin.Context) (uuid.UUID, error) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return uuid.Nil, rpc.Errorf(rpc.CodeUnauthorized, "unauthorized")
	}
	return userID, nil
}

// Create handles videos.create: allocates an upload target and inserts the placeholder row.
func (h *Handler) Create(c *gin.Context) {
	userID, err := currentUser(c)
	if err != nil {
		rpc.Abort(c, err)
		return
	}
	ctx := c.Request.Context()

	upload, err := h.uploads.CreateUpload(ctx, userID.String())
	if err != nil {
		h.logger.Error("create upload failed", zap.Error(err), zap.String("user_id", userID.String()))
		rpc.Abort(c, rpc.Wrap(rpc.CodeInternalServerError, err, "failed to create upload"))
		return
	}

	video := &models.Video{
		UserID:      userID,
		Title:       models.DefaultTitle,
		Visibility:  models.VisibilityPrivate,
		MuxStatus:   models.StringPtr(models.MuxStatusWaiting),
		MuxUploadID: models.StringPtr(upload.ID),
		Duration:    models.DefaultDuration,
	}
	if err := h.store.Create(ctx, video); err != nil {
		h.logger.Error("insert video failed", zap.Error(err), zap.String("upload_id", upload.ID))
		rpc.Abort(c, err)
		return
	}
	h.logger.Info("video created", zap.String("video_id", video.ID.String()), zap.String("upload_id", upload.ID))
	response.OK(c, CreateResult{Video: video, URL: upload.URL})
}

// Update handles videos.update.
func (h *Handler) Update(c *gin.Context) {
	userID, err := currentUser(c)
	if err != nil {
		rpc.Abort(c, err)
		return
	}
	var in UpdateInput
	if err := rpc.BindInput(c, &in); err != nil {
		rpc.Abort(c, err)
		return
	}
	if in.ID == nil || *in.ID == uuid.Nil {
		rpc.Abort(c, rpc.Errorf(rpc.CodeBadRequest, "id is required"))
		return
	}
	if in.Visibility != nil && !in.Visibility.Valid() {
		rpc.Abort(c, rpc.Errorf(rpc.CodeBadRequest, "visibility must be public or private"))
		return
	}
	if in.Description.Valid && utf8.RuneCountInString(in.Description.Value) > MaxDescriptionRunes {
		rpc.Abort(c, rpc.Errorf(rpc.CodeBadRequest, "description is too long"))
		return
	}

	video, err := h.store.UpdateOwned(c.Request.Context(), *in.ID, userID, models.VideoUpdate{
		Title:       in.Title,
		Description: in.Description,
		CategoryID:  in.CategoryID,
		Visibility:  in.Visibility,
	})
	if err != nil {
		rpc.Abort(c, err)
		return
	}
	h.publish(c.Request.Context(), events.TypeVideoUpdated, video, "videos.update")
	response.OK(c, video)
}

// Remove handles videos.remove.
func (h *Handler) Remove(c *gin.Context) {
	userID, err := currentUser(c)
	if err != nil {
		rpc.Abort(c, err)
		return
	}
	var in IDInput
	if err := rpc.BindInput(c, &in); err != nil {
		rpc.Abort(c, err)
		return
	}
	ctx := c.Request.Context()

	if _, err := h.store.GetOwned(ctx, in.ID, userID); err != nil {
		rpc.Abort(c, err)
		return
	}
	removed, err := h.store.DeleteOwned(ctx, in.ID, userID)
	if err != nil {
		rpc.Abort(c, err)
		return
	}
	DeleteDerivedObjects(ctx, h.objects, removed, h.logger)
	h.publish(ctx, events.TypeVideoDeleted, removed, "videos.remove")
	response.OK(c, removed)
}

// RestoreThumbnail handles videos.restoreThumbnail: replaces the stored thumbnail
// with the provider-rendered default.
func (h *Handler) RestoreThumbnail(c *gin.Context) {
	userID, err := currentUser(c)
	if err != nil {
		rpc.Abort(c, err)
		return
	}
	var in IDInput
	if err := rpc.BindInput(c, &in); err != nil {
		rpc.Abort(c, err)
		return
	}
	ctx := c.Request.Context()

	video, err := h.store.GetOwned(ctx, in.ID, userID)
	if err != nil {
		rpc.Abort(c, err)
		return
	}
	playbackID := models.Deref(video.MuxPlaybackID)
	if playbackID == "" {
		rpc.Abort(c, rpc.Errorf(rpc.CodeBadRequest, "video has no playback id"))
		return
	}
	if key := models.Deref(video.ThumbnailKey); key != "" {
		if err := h.objects.Delete(ctx, key); err != nil {
			h.logger.Error("delete thumbnail failed", zap.Error(err), zap.String("key", key))
			rpc.Abort(c, rpc.Wrap(rpc.CodeInternalServerError, err, "failed to delete thumbnail"))
			return
		}
	}

	obj, err := h.objects.UploadFromURL(ctx, mux.ThumbnailURL(playbackID), storage.ThumbnailKey(video.ID, playbackID))
	if err != nil {
		h.logger.Error("upload thumbnail failed", zap.Error(err), zap.String("video_id", video.ID.String()))
		rpc.Abort(c, rpc.Wrap(rpc.CodeInternalServerError, err, "failed to upload thumbnail"))
		return
	}
	updated, err := h.store.SetThumbnail(ctx, video.ID, userID, obj.URL, obj.Key)
	if err != nil {
		rpc.Abort(c, err)
		return
	}
	h.publish(ctx, events.TypeVideoUpdated, updated, "videos.restoreThumbnail")
	response.OK(c, updated)
}

// generate returns the handler of a generate* procedure bound to a workflow name.
func (h *Handler) generate(workflow string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := currentUser(c)
		if err != nil {
			rpc.Abort(c, err)
			return
		}
		var in IDInput
		if err := rpc.BindInput(c, &in); err != nil {
			rpc.Abort(c, err)
			return
		}
		ctx := c.Request.Context()

		if _, err := h.store.GetOwned(ctx, in.ID, userID); err != nil {
			rpc.Abort(c, err)
			return
		}
		runID, err := h.workflows.Trigger(ctx, workflow, WorkflowInput{UserID: userID, VideoID: in.ID})
		if err != nil {
			h.logger.Error("trigger workflow failed", zap.Error(err), zap.String("workflow", workflow))
			rpc.Abort(c, rpc.Wrap(rpc.CodeInternalServerError, err, "failed to start workflow"))
			return
		}
		response.OK(c, WorkflowResult{WorkflowRunID: runID})
	}
}

func (h *Handler) publish(ctx context.Context, eventType string, v *models.Video, source string) {
	Publish(ctx, h.events, events.New(eventType, v.ID, v.UserID, source, v), h.logger)
}

// Publish sends ev and logs failures; lifecycle events never fail the caller.
func Publish(ctx context.Context, publisher events.Publisher, ev events.Event, logger *zap.Logger) {
	if err := publisher.Publish(ctx, ev); err != nil {
		logger.Warn("publish event failed", zap.Error(err), zap.String("event", ev.Type), zap.String("video_id", ev.VideoID.String()))
	}
}

// DeleteDerivedObjects removes the stored thumbnail and preview of v, logging failures.
func DeleteDerivedObjects(ctx context.Context, objects storage.Store, v *models.Video, logger *zap.Logger) {
	var errs []error
	for _, key := range []string{models.Deref(v.ThumbnailKey), models.Deref(v.PreviewKey)} {
		if key == "" {
			continue
		}
		if err := objects.Delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		logger.Warn("delete derived objects failed", zap.Error(err), zap.String("video_id", v.ID.String()))
	}
}
