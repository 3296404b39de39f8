package categories

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/newtube/backend/internal/models"
	"github.com/newtube/backend/internal/rpc"
	"github.com/newtube/backend/pkg/response"
)

// Lister reads all categories.
type Lister interface {
	List(ctx context.Context) ([]models.Category, error)
}

// Handler serves categories.getMany.
type Handler struct {
	repo   Lister
	logger *zap.Logger
}

func NewHandler(repo Lister, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/categories.getMany", h.GetMany)
}

// GetMany handles categories.getMany.
func (h *Handler) GetMany(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list categories failed", zap.Error(err))
		rpc.Abort(c, err)
		return
	}
	response.OK(c, list)
}
