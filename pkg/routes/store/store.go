package store

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/preuvely/storematch/pkg/models"
	"github.com/preuvely/storematch/pkg/submission"
)

// Submitter runs the store submission workflow
type Submitter interface {
	Submit(ctx context.Context, req submission.SubmitStoreRequest) (*submission.SubmitResult, error)
}

// Reader loads stores by ID
type Reader interface {
	GetByID(ctx context.Context, id string) (*models.Store, error)
}

// Handler handles store API endpoints
type Handler struct {
	submitter Submitter
	reader    Reader
	logger    ectologger.Logger
}

// NewHandler creates a new store handler
func NewHandler(submitter Submitter, reader Reader, logger ectologger.Logger) *Handler {
	return &Handler{
		submitter: submitter,
		reader:    reader,
		logger:    logger,
	}
}

// Register registers the store routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("", h.Submit)
	g.GET("/:id", h.Get)
}

// Submit proposes a new store. A duplicate without force returns 409 with
// the existing store so the submitter can pick it instead.
// @Summary Submit a store
// @Tags Stores
// @Accept json
// @Produce json
// @Param body body submission.SubmitStoreRequest true "Proposed store"
// @Success 201 {object} submission.SubmitResult
// @Failure 409 {object} submission.SubmitResult
// @Router /api/v1/stores [post]
func (h *Handler) Submit(c echo.Context) error {
	ctx := c.Request().Context()

	var req submission.SubmitStoreRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	result, err := h.submitter.Submit(ctx, req)
	if err != nil {
		return err
	}

	if !result.Created {
		return c.JSON(http.StatusConflict, result)
	}
	return c.JSON(http.StatusCreated, result)
}

// Get returns a store in any status
// @Router /api/v1/stores/{id} [get]
func (h *Handler) Get(c echo.Context) error {
	id := c.Param("id")

	store, err := h.reader.GetByID(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if store == nil {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "store %s not found", id)
	}

	return c.JSON(http.StatusOK, store)
}
