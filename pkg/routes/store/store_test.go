package store

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/preuvely/storematch/pkg/catalog"
	"github.com/preuvely/storematch/pkg/events"
	"github.com/preuvely/storematch/pkg/matching"
	"github.com/preuvely/storematch/pkg/middleware"
	"github.com/preuvely/storematch/pkg/models"
	"github.com/preuvely/storematch/pkg/submission"
)

func newTestServer(t *testing.T) (*echo.Echo, *catalog.Memory) {
	t.Helper()

	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	memory := catalog.NewMemory(models.Store{
		ID:     "s1",
		Name:   "Pharmacie Centrale",
		Slug:   "pharmacie-centrale",
		Status: models.StoreStatusActive,
	})

	engine := matching.NewService(logger, memory, matching.DefaultConfig())
	emitter := events.NewEmitter(events.DiscardPublisher{}, logger)
	svc := submission.NewService(logger, engine, memory, submission.NewLocalLocker(), emitter, nil, submission.DefaultConfig())

	e := echo.New()
	e.Validator = middleware.NewValidator()
	e.HTTPErrorHandler = middleware.Error(logger)
	NewHandler(svc, memory, logger).Register(e.Group("/api/v1/stores"))
	return e, memory
}

func post(e *echo.Echo, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/stores", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestSubmitDuplicateReturnsConflict(t *testing.T) {
	e, memory := newTestServer(t)

	// ph folds to f
	rec := post(e, `{"name":"Farmacie Centrale"}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	var result submission.SubmitResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.False(t, result.Created)
	assert.Equal(t, "s1", result.Duplicate.ExistingStore.ID)
	assert.Equal(t, 1, memory.Count())
}

func TestSubmitCreatesStore(t *testing.T) {
	e, memory := newTestServer(t)

	rec := post(e, `{"name":"Librairie du Centre","links":[{"handle":"@librairie.dc","platform":"instagram"}]}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var result submission.SubmitResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.NotNil(t, result.Store)
	assert.Equal(t, "librairie-du-centre", result.Store.Slug)
	assert.Equal(t, 2, memory.Count())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stores/"+result.Store.ID, nil)
	getRec := httptest.NewRecorder()
	e.ServeHTTP(getRec, req)
	assert.Equal(t, http.StatusOK, getRec.Code)
}

func TestResubmittingPendingStoreReturnsConflict(t *testing.T) {
	e, memory := newTestServer(t)
	body := `{"name":"Zara Oran","links":[{"handle":"@zara.oran","platform":"instagram"}]}`

	first := post(e, body)
	require.Equal(t, http.StatusCreated, first.Code)

	second := post(e, body)
	require.Equal(t, http.StatusConflict, second.Code)

	var result submission.SubmitResult
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &result))
	assert.False(t, result.Created)
	assert.Equal(t, "name", result.Duplicate.TypeLabel())
	assert.Equal(t, 2, memory.Count())
}

func TestSubmitRequiresName(t *testing.T) {
	e, _ := newTestServer(t)

	rec := post(e, `{"links":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetUnknownStore(t *testing.T) {
	e, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stores/missing", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
