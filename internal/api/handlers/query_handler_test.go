package handlers

import (
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/policy-navigator/backend/internal/metrics"
	"github.com/policy-navigator/backend/internal/storage/models"
	"github.com/policy-navigator/backend/internal/storage/sqlite"
)

func newFeedbackApp(t *testing.T) (*fiber.App, *sqlite.Client) {
	t.Helper()

	db, err := sqlite.NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.InitSchema())

	handler := NewQueryHandler(nil, db)

	app := fiber.New()
	app.Post("/api/v1/feedback", handler.SubmitFeedback)
	return app, db
}

func TestSubmitFeedbackRecordsSatisfaction(t *testing.T) {
	app, db := newFeedbackApp(t)

	require.NoError(t, db.InsertQueryRecord(&models.QueryRecord{
		ID:        "query-1",
		QueryText: "Is Executive Order 14067 still in effect?",
		CreatedAt: time.Now(),
	}))

	before := testutil.ToFloat64(metrics.UserSatisfaction.WithLabelValues("true"))

	req := httptest.NewRequest("POST", "/api/v1/feedback",
		strings.NewReader(`{"query_id":"query-1","helpful":true,"comment":"answered it"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	after := testutil.ToFloat64(metrics.UserSatisfaction.WithLabelValues("true"))
	assert.Equal(t, before+1, after)
}

func TestSubmitFeedbackRequiresQueryID(t *testing.T) {
	app, _ := newFeedbackApp(t)

	before := testutil.ToFloat64(metrics.UserSatisfaction.WithLabelValues("false"))

	req := httptest.NewRequest("POST", "/api/v1/feedback",
		strings.NewReader(`{"helpful":false}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	after := testutil.ToFloat64(metrics.UserSatisfaction.WithLabelValues("false"))
	assert.Equal(t, before, after)
}
