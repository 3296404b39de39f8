// Package studio serves the creator studio queries.
package studio

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newtube/backend/internal/middleware"
	"github.com/newtube/backend/internal/models"
	"github.com/newtube/backend/internal/rpc"
	"github.com/newtube/backend/pkg/response"
)

// MaxPageSize is the largest page getMany returns.
const MaxPageSize = 100

// Store is the read side of the video repository used by the studio.
type Store interface {
	GetOwned(ctx context.Context, id, userID uuid.UUID) (*models.Video, error)
	ListPage(ctx context.Context, userID uuid.UUID, cursor *models.Cursor, limit int) (*models.VideoPage, error)
}

// Handler serves studio.getOne and studio.getMany.
type Handler struct {
	store  Store
	logger *zap.Logger
}

func NewHandler(store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger}
}

// Register mounts the queries on an authenticated RPC group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/studio.getOne", h.GetOne)
	rg.GET("/studio.getMany", h.GetMany)
}

type getOneInput struct {
	ID uuid.UUID `json:"id" binding:"required"`
}

// GetManyInput is the input of studio.getMany.
type GetManyInput struct {
	Cursor *models.Cursor `json:"cursor"`
	Limit  int            `json:"limit" binding:"required,min=1,max=100"`
}

// GetOne handles studio.getOne.
func (h *Handler) GetOne(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		rpc.Abort(c, rpc.Errorf(rpc.CodeUnauthorized, "unauthorized"))
		return
	}
	var in getOneInput
	if err := rpc.BindInput(c, &in); err != nil {
		rpc.Abort(c, err)
		return
	}
	video, err := h.store.GetOwned(c.Request.Context(), in.ID, userID)
	if err != nil {
		rpc.Abort(c, err)
		return
	}
	response.OK(c, video)
}

// GetMany handles studio.getMany: newest first by (updatedAt, id), continuing
// strictly after the cursor.
func (h *Handler) GetMany(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		rpc.Abort(c, rpc.Errorf(rpc.CodeUnauthorized, "unauthorized"))
		return
	}
	var in GetManyInput
	if err := rpc.BindInput(c, &in); err != nil {
		rpc.Abort(c, err)
		return
	}
	if in.Cursor != nil && (in.Cursor.ID == uuid.Nil || in.Cursor.UpdatedAt.IsZero()) {
		rpc.Abort(c, rpc.Errorf(rpc.CodeBadRequest, "cursor requires id and updatedAt"))
		return
	}
	page, err := h.store.ListPage(c.Request.Context(), userID, in.Cursor, in.Limit)
	if err != nil {
		h.logger.Error("list videos failed", zap.Error(err), zap.String("user_id", userID.String()))
		rpc.Abort(c, err)
		return
	}
	response.OK(c, page)
}
