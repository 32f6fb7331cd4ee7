package duplicate

import (
	"context"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/preuvely/storematch/pkg/models"
)

// Finder runs duplicate lookups
type Finder interface {
	FindByName(ctx context.Context, name string) ([]models.Store, error)
	FindByHandle(ctx context.Context, handle, platform string) ([]models.Store, error)
	FindByURL(ctx context.Context, url string) ([]models.Store, error)
	CheckForDuplicates(ctx context.Context, name string, links []models.LinkInput) (models.MatchResult, error)
}

// Handler handles duplicate detection API endpoints
type Handler struct {
	finder Finder
	logger ectologger.Logger
}

// NewHandler creates a new duplicate handler
func NewHandler(finder Finder, logger ectologger.Logger) *Handler {
	return &Handler{
		finder: finder,
		logger: logger,
	}
}

// Register registers the duplicate routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("/check", h.Check)
	g.GET("/by-name", h.ByName)
	g.GET("/by-handle", h.ByHandle)
	g.GET("/by-url", h.ByURL)
}

// CheckRequest is the request body for a duplicate check
type CheckRequest struct {
	Name  string             `json:"name" validate:"max=255"`
	Links []models.LinkInput `json:"links" validate:"omitempty,max=20,dive"`
}

// Check runs the full duplicate check for a proposed store
// @Summary Check a proposed store for duplicates
// @Tags Duplicates
// @Accept json
// @Produce json
// @Param body body CheckRequest true "Proposed store"
// @Success 200 {object} models.MatchResult
// @Failure 400 {object} httperror.HTTPError
// @Router /api/v1/stores/duplicates/check [post]
func (h *Handler) Check(c echo.Context) error {
	ctx := c.Request().Context()

	var req CheckRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Name) == "" && len(req.Links) == 0 {
		return httperror.NewHTTPError(http.StatusBadRequest, "name or links is required")
	}

	result, err := h.finder.CheckForDuplicates(ctx, req.Name, req.Links)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// ByName lists active stores whose name matches
// @Router /api/v1/stores/duplicates/by-name [get]
func (h *Handler) ByName(c echo.Context) error {
	name := c.QueryParam("name")
	if strings.TrimSpace(name) == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "name is required")
	}

	stores, err := h.finder.FindByName(c.Request().Context(), name)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.Summarize(stores))
}

// ByHandle lists active stores with a matching social handle
// @Router /api/v1/stores/duplicates/by-handle [get]
func (h *Handler) ByHandle(c echo.Context) error {
	handle := c.QueryParam("handle")
	if strings.TrimSpace(handle) == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "handle is required")
	}

	platform := c.QueryParam("platform")
	if platform != "" {
		if _, ok := models.ParsePlatform(platform); !ok {
			return httperror.NewHTTPErrorf(http.StatusBadRequest, "unknown platform %q", platform)
		}
	}

	stores, err := h.finder.FindByHandle(c.Request().Context(), handle, platform)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.Summarize(stores))
}

// ByURL lists active stores with a matching link
// @Router /api/v1/stores/duplicates/by-url [get]
func (h *Handler) ByURL(c echo.Context) error {
	url := c.QueryParam("url")
	if strings.TrimSpace(url) == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "url is required")
	}

	stores, err := h.finder.FindByURL(c.Request().Context(), url)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.Summarize(stores))
}
