package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"dag-trigger-gateway/internal/composer"
	"dag-trigger-gateway/internal/config"
	"dag-trigger-gateway/internal/metrics"
	"dag-trigger-gateway/internal/models"
	"dag-trigger-gateway/internal/repository"
	"dag-trigger-gateway/internal/scheduler"
	"dag-trigger-gateway/internal/trigger"
)

var testMetrics = metrics.NewMetrics()

const pushBody = `{"message":{"messageId":"abc123","attributes":{"data_type":"sales_data","process":"cleaning","status":"completed"}}}`

type stubResolver struct{}

func (stubResolver) ResolveEndpoint(context.Context) (*composer.Endpoint, error) {
	return &composer.Endpoint{
		AirflowURI:  "https://bc5c0e43e23571a62-tp.appspot.com",
		WebserverID: "bc5c0e43e23571a62-tp",
		ClientID:    "573384987581-test.apps.googleusercontent.com",
	}, nil
}

type stubInvoker struct {
	calls int
	err   error
}

func (s *stubInvoker) Post(context.Context, string, string, any) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return "OK", nil
}

type testGateway struct {
	router *gin.Engine
	db     *gorm.DB
	inv    *stubInvoker
	cfg    *config.Config
}

func setupGateway(t *testing.T) *testGateway {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.ProcessedMessage{}, &models.TriggerLog{}))

	cfg := &config.Config{
		Composer: config.ComposerConfig{
			Project:     "test-project",
			Location:    "us-central1",
			Environment: "test-env",
			DagName:     "sales_cleaning",
			APIVersion:  "experimental",
		},
		Trigger: config.TriggerConfig{
			Enabled:    true,
			IAPTimeout: 90 * time.Second,
			Match: map[string]string{
				"data_type": "sales_data",
				"process":   "cleaning",
				"status":    "completed",
			},
		},
		Stats: config.StatsConfig{IntervalMinutes: 5},
	}

	repo := repository.New(db)
	inv := &stubInvoker{}
	service := trigger.NewService(repo, stubResolver{}, inv, trigger.MatchAllFilter(cfg.Trigger.Match), cfg.Composer, testMetrics)
	sched := scheduler.NewScheduler(&cfg.Stats, repo, testMetrics)

	h := NewHandlers(db, repo, service, sched, testMetrics, cfg)
	router := gin.New()
	h.SetupRoutes(router)

	return &testGateway{router: router, db: db, inv: inv, cfg: cfg}
}

func (g *testGateway) post(body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/push", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, req)
	return w
}

func (g *testGateway) processedCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, g.db.Model(&models.ProcessedMessage{}).Count(&count).Error)
	return count
}

func TestPushTriggersOnce(t *testing.T) {
	g := setupGateway(t)

	w := g.post(pushBody)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Triggered DAG run")
	assert.Equal(t, 1, g.inv.calls)

	// Redelivery of the identical body is absorbed by the ledger.
	w = g.post(pushBody)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "already been processed")
	assert.Equal(t, 1, g.inv.calls)
	assert.Equal(t, int64(1), g.processedCount(t))
}

func TestPushMalformedBody(t *testing.T) {
	g := setupGateway(t)

	for _, body := range []string{`{}`, `not json`, `{"message":{}}`, `{"message":{"attributes":{"a":"b"}}}`} {
		w := g.post(body)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "Malformed Event Notification")
	}
	assert.Equal(t, int64(0), g.processedCount(t), "malformed deliveries must not touch the ledger")
	assert.Equal(t, 0, g.inv.calls)
}

func TestPushDisabled(t *testing.T) {
	g := setupGateway(t)
	g.cfg.Trigger.Enabled = false

	w := g.post(pushBody)
	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, int64(0), g.processedCount(t), "disabled gateway must not touch the ledger")
	assert.Equal(t, 0, g.inv.calls)
}

func TestPushFiltered(t *testing.T) {
	g := setupGateway(t)

	w := g.post(`{"message":{"messageId":"abc123","attributes":{"data_type":"weather_data"}}}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "did not match")
	assert.Equal(t, 0, g.inv.calls)
	assert.Equal(t, int64(1), g.processedCount(t), "filtered notifications are still claimed")
}

func TestPushDownstreamFailure(t *testing.T) {
	g := setupGateway(t)
	g.inv.err = assert.AnError

	w := g.post(pushBody)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	// The claim persisted, so the redelivery reports already-processed.
	g.inv.err = nil
	w = g.post(pushBody)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "already been processed")
	assert.Equal(t, 1, g.inv.calls)
}

func TestHealthCheck(t *testing.T) {
	g := setupGateway(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"ok"`)
}

func TestGetLogs(t *testing.T) {
	g := setupGateway(t)

	g.post(pushBody)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/logs", nil)
	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"message_id":"abc123"`)
	assert.Contains(t, w.Body.String(), `"status":"success"`)
}
