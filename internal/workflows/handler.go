// Package workflows serves the durable metadata-generation workflows
// (title, description) invoked by the workflow dispatcher.
package workflows

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newtube/backend/internal/models"
	"github.com/newtube/backend/internal/videos"
	"github.com/newtube/backend/pkg/mux"
	"github.com/newtube/backend/pkg/response"
	"github.com/newtube/backend/pkg/workflow"
)

const maxBodyBytes = 64 << 10

// maxTranscriptBytes always holds MaxTranscriptRunes whole runes; the rest of a transcript is never read.
const maxTranscriptBytes = MaxTranscriptRunes * utf8.UTFMax

// Step names, in execution order.
const (
	StepFetchVideo          = "fetch-video"
	StepFetchTranscript     = "fetch-transcript"
	StepGenerateTitle       = "generate-title"
	StepGenerateDescription = "generate-description"
	StepUpdateVideo         = "update-video"
)

var (
	errVideoNotFound      = errors.New("video not found")
	errTranscriptNotFound = errors.New("transcript not found")
	errEmptyGeneration    = errors.New("generation returned no text")
)

// Store is the owner-scoped side of the video repository.
type Store interface {
	GetOwned(ctx context.Context, id, userID uuid.UUID) (*models.Video, error)
	UpdateOwned(ctx context.Context, id, userID uuid.UUID, u models.VideoUpdate) (*models.Video, error)
}

// Generator produces text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// definition describes one generation workflow.
type definition struct {
	name     string
	prompt   string
	genStep  string
	toUpdate func(text string) models.VideoUpdate
}

var (
	titleWorkflow = definition{
		name:    videos.WorkflowTitle,
		prompt:  titlePrompt,
		genStep: StepGenerateTitle,
		toUpdate: func(text string) models.VideoUpdate {
			return models.VideoUpdate{Title: &text}
		},
	}
	descriptionWorkflow = definition{
		name:    videos.WorkflowDescription,
		prompt:  descriptionPrompt,
		genStep: StepGenerateDescription,
		toUpdate: func(text string) models.VideoUpdate {
			return models.VideoUpdate{Description: models.Some(text)}
		},
	}
)

// Handler runs workflow steps against the store and the text generator.
type Handler struct {
	store         Store
	generator     Generator
	checkpoints   workflow.Checkpoints
	signer        *workflow.Signer
	httpClient    *http.Client
	transcriptURL func(playbackID, trackID string) string
	logger        *zap.Logger
}

// NewHandler creates the workflow endpoint handler. When signer has a secret,
// requests without a valid signature are rejected.
func NewHandler(store Store, generator Generator, checkpoints workflow.Checkpoints, signer *workflow.Signer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		store:         store,
		generator:     generator,
		checkpoints:   checkpoints,
		signer:        signer,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		transcriptURL: mux.TranscriptURL,
		logger:        logger,
	}
}

// Register mounts the workflow endpoints under /api/videos/workflows.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/"+titleWorkflow.name, h.serve(titleWorkflow))
	rg.POST("/"+descriptionWorkflow.name, h.serve(descriptionWorkflow))
}

// RunResult is returned when every step completed.
type RunResult struct {
	WorkflowRunID string       `json:"workflowRunId"`
	Video         models.Video `json:"video"`
}

func (h *Handler) serve(def definition) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
		if err != nil {
			response.Text(c, http.StatusBadRequest, "invalid body")
			return
		}
		runID := c.GetHeader(workflow.HeaderRunID)
		if runID == "" {
			runID = uuid.NewString()
		}
		if h.signer.Enabled() {
			if err := h.signer.Verify(c.GetHeader(workflow.HeaderSignature), runID, body); err != nil {
				h.logger.Warn("workflow request rejected", zap.String("workflow", def.name), zap.String("run_id", runID))
				response.Text(c, http.StatusUnauthorized, err.Error())
				return
			}
		}

		var in videos.WorkflowInput
		if err := json.Unmarshal(body, &in); err != nil || in.UserID == uuid.Nil || in.VideoID == uuid.Nil {
			response.Text(c, http.StatusBadRequest, "userId and videoId are required")
			return
		}

		run := workflow.NewRun(def.name, runID, h.checkpoints, h.logger)
		video, err := h.execute(c.Request.Context(), run, def, in)
		if err != nil {
			var stepErr *workflow.StepError
			if errors.As(err, &stepErr) {
				response.Text(c, http.StatusInternalServerError, fmt.Sprintf("step %s failed: %v", stepErr.Step, stepErr.Err))
				return
			}
			h.logger.Error("workflow run failed", zap.String("workflow", def.name), zap.String("run_id", runID), zap.Error(err))
			response.Text(c, http.StatusInternalServerError, "workflow run failed")
			return
		}
		response.OK(c, RunResult{WorkflowRunID: runID, Video: video})
	}
}

// execute runs fetch-video, fetch-transcript, generate and update-video in order.
func (h *Handler) execute(ctx context.Context, run *workflow.Run, def definition, in videos.WorkflowInput) (models.Video, error) {
	video, err := workflow.Step(ctx, run, StepFetchVideo, func(ctx context.Context) (models.Video, error) {
		v, err := h.store.GetOwned(ctx, in.VideoID, in.UserID)
		if errors.Is(err, models.ErrNotFound) {
			return models.Video{}, errVideoNotFound
		}
		if err != nil {
			return models.Video{}, err
		}
		return *v, nil
	})
	if err != nil {
		return models.Video{}, err
	}

	transcript, err := workflow.Step(ctx, run, StepFetchTranscript, func(ctx context.Context) (string, error) {
		return h.fetchTranscript(ctx, models.Deref(video.MuxPlaybackID), models.Deref(video.MuxTrackID))
	})
	if err != nil {
		return models.Video{}, err
	}

	text, err := workflow.Step(ctx, run, def.genStep, func(ctx context.Context) (string, error) {
		out, err := h.generator.Generate(ctx, BuildPrompt(def.prompt, transcript))
		if err != nil {
			return "", err
		}
		out = strings.TrimSpace(out)
		if out == "" {
			return "", errEmptyGeneration
		}
		return out, nil
	})
	if err != nil {
		return models.Video{}, err
	}

	return workflow.Step(ctx, run, StepUpdateVideo, func(ctx context.Context) (models.Video, error) {
		v, err := h.store.UpdateOwned(ctx, video.ID, video.UserID, def.toUpdate(text))
		if err != nil {
			return models.Video{}, err
		}
		return *v, nil
	})
}

func (h *Handler) fetchTranscript(ctx context.Context, playbackID, trackID string) (string, error) {
	if playbackID == "" || trackID == "" {
		return "", errTranscriptNotFound
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.transcriptURL(playbackID, trackID), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch transcript: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch transcript: status %d", resp.StatusCode)
	}
	text, err := io.ReadAll(io.LimitReader(resp.Body, maxTranscriptBytes))
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}
	if strings.TrimSpace(string(text)) == "" {
		return "", errTranscriptNotFound
	}
	return string(text), nil
}
