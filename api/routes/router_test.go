package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/openaid/aid-inventory/api/controllers"
	"github.com/openaid/aid-inventory/internal/auth"
	"github.com/openaid/aid-inventory/internal/items"
	"github.com/openaid/aid-inventory/internal/kits"
	"github.com/openaid/aid-inventory/internal/ledger"
	"github.com/openaid/aid-inventory/internal/recipients"
	"github.com/openaid/aid-inventory/internal/reports"
	"github.com/openaid/aid-inventory/internal/stock"
	"github.com/openaid/aid-inventory/internal/users"
	"github.com/openaid/aid-inventory/pkg/auth/session"
	"github.com/openaid/aid-inventory/pkg/config"
	"github.com/openaid/aid-inventory/pkg/db/dbtest"
	"github.com/openaid/aid-inventory/pkg/db/models"
	"github.com/openaid/aid-inventory/pkg/enums"
	"github.com/openaid/aid-inventory/pkg/logger"
	"github.com/openaid/aid-inventory/pkg/metrics"
	"github.com/openaid/aid-inventory/pkg/outbox"
	"github.com/openaid/aid-inventory/pkg/security"
)

var testPassword = config.PasswordConfig{ArgonMemoryKB: 1024, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32}

type memStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemStore() *memStore {
	return &memStore{data: map[string]string{}}
}

func (m *memStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v := value.(type) {
	case string:
		m.data[key] = v
	case []byte:
		m.data[key] = string(v)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		m.data[key] = string(raw)
	}
	return nil
}

func (m *memStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", redislib.Nil
	}
	return v, nil
}

func (m *memStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memStore) AccessSessionKey(accessID string) string {
	return "session:access:" + accessID
}

type harness struct {
	handler  http.Handler
	registry *prometheus.Registry
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.JWT = config.JWTConfig{
		Secret:                 "router-test-secret",
		Issuer:                 "aid-inventory-test",
		ExpirationMinutes:      15,
		RefreshTokenTTLMinutes: 60,
	}
	cfg.Password = testPassword
	cfg.FeatureFlags.MetricsEnabled = true
	cfg.Inventory.MaxKitsPerAssembly = 1000
	cfg.Inventory.RecentActivityLimit = 10
	cfg.Inventory.DashboardWindow = 30 * 24 * time.Hour
	return cfg
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testConfig()
	client := dbtest.Open(t)
	conn := client.DB()

	hash, err := security.HashPassword("admin-pass", testPassword)
	require.NoError(t, err)
	require.NoError(t, conn.Create(&models.User{
		Username:     "admin",
		Email:        "admin@example.org",
		Role:         enums.UserRoleAdmin,
		PasswordHash: hash,
		IsActive:     true,
	}).Error)

	registry := prometheus.NewRegistry()
	ledgerRepo := ledger.NewRepository(conn)
	events, err := ledger.NewService(conn, ledgerRepo)
	require.NoError(t, err)
	emitter := outbox.NewService(outbox.NewRepository(conn), logger.Nop())
	engine, err := stock.NewEngine(stock.EngineParams{
		DB:      client,
		Ledger:  ledgerRepo,
		Outbox:  emitter,
		Metrics: metrics.NewStockMetrics(registry),
	})
	require.NoError(t, err)

	itemSvc, err := items.NewService(items.ServiceParams{
		DB:     client,
		Repo:   items.NewRepository(conn),
		Kits:   kits.NewRepository(conn),
		Ledger: ledgerRepo,
		Stock:  engine,
	})
	require.NoError(t, err)
	kitSvc, err := kits.NewService(kits.ServiceParams{
		DB:      client,
		Conn:    conn,
		Repo:    kits.NewRepository(conn),
		Engine:  engine,
		Events:  events,
		Outbox:  emitter,
		MaxKits: cfg.Inventory.MaxKitsPerAssembly,
	})
	require.NoError(t, err)
	recipientSvc, err := recipients.NewService(conn)
	require.NoError(t, err)
	reportSvc, err := reports.NewService(conn, events, reports.Options{
		RecentLimit: cfg.Inventory.RecentActivityLimit,
		Window:      cfg.Inventory.DashboardWindow,
	})
	require.NoError(t, err)

	sessions, err := session.NewManager(newMemStore(), cfg.JWT)
	require.NoError(t, err)
	userRepo := users.NewRepository(conn)
	authSvc, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessions,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	require.NoError(t, err)
	registerSvc, err := auth.NewRegisterService(auth.RegisterServiceParams{Users: userRepo, PasswordConfig: cfg.Password})
	require.NoError(t, err)

	handler := NewRouter(cfg, logger.Nop(), Infra{
		Ready:       map[string]controllers.Pinger{"database": client},
		Gatherer:    registry,
		HTTPMetrics: metrics.NewHTTPMetrics(registry),
	}, Services{
		Auth:       authSvc,
		Register:   registerSvc,
		Sessions:   sessions,
		Items:      itemSvc,
		Stock:      engine,
		Kits:       kitSvc,
		Recipients: recipientSvc,
		Reports:    reportSvc,
		Events:     events,
	})
	return &harness{handler: handler, registry: registry}
}

func (h *harness) do(t *testing.T, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func (h *harness) login(t *testing.T, username, password string) string {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/api/auth/login", "", `{"username":"`+username+`","password":"`+password+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Data auth.LoginResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.AccessToken)
	require.Equal(t, "bearer", resp.Data.TokenType)
	return resp.Data.AccessToken
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Error.Code
}

func TestHealthLive(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/api/health/live", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "test", rec.Header().Get("X-AidInventory-Env"))

	rec = h.do(t, http.MethodGet, "/api/health/ready", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	h := newHarness(t)
	for _, target := range []string{"/api/items", "/api/quick/dashboard/stats", "/api/events", "/api/auth/me"} {
		rec := h.do(t, http.MethodGet, target, "", "")
		require.Equal(t, http.StatusUnauthorized, rec.Code, target)
		require.Equal(t, "UNAUTHORIZED", errorCode(t, rec))
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/api/auth/login", "", `{"username":"admin","password":"wrong"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminOnlyRoutes(t *testing.T) {
	h := newHarness(t)
	adminToken := h.login(t, "admin", "admin-pass")

	rec := h.do(t, http.MethodPost, "/api/auth/register", adminToken,
		`{"username":"warehouse","email":"warehouse@example.org","password":"warehouse-pass","role":"warehouse_manager"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodGet, "/api/auth/users", adminToken, "")
	require.Equal(t, http.StatusOK, rec.Code)

	staffToken := h.login(t, "warehouse", "warehouse-pass")
	rec = h.do(t, http.MethodGet, "/api/auth/users", staffToken, "")
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "FORBIDDEN", errorCode(t, rec))

	rec = h.do(t, http.MethodPost, "/api/auth/register", staffToken,
		`{"username":"other","email":"other@example.org","password":"other-pass","role":"admin"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/auth/me", staffToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"warehouse_manager"`)
}

func TestDistributionFlow(t *testing.T) {
	h := newHarness(t)
	token := h.login(t, "admin", "admin-pass")

	rec := h.do(t, http.MethodPost, "/api/items", token,
		`{"name":"Rice","category":"purchased_item","unit_of_measure":"kg","current_stock_level":10}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Data items.ItemDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	itemID := created.Data.ID.String()

	overdraw := `{"distribution_type":"weekly","items":[{"item_id":"` + itemID + `","quantity":15}]}`
	rec = h.do(t, http.MethodPost, "/api/quick/distribution", token, overdraw)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	require.Equal(t, "INSUFFICIENT_STOCK", errorCode(t, rec))

	ok := `{"distribution_type":"crisis_aid","items":[{"item_id":"` + itemID + `","quantity":4}]}`
	rec = h.do(t, http.MethodPost, "/api/quick/distribution", token, ok)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodGet, "/api/items/"+itemID, token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched struct {
		Data items.ItemDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetched))
	require.Equal(t, "6", fetched.Data.CurrentStockLevel.String())

	rec = h.do(t, http.MethodGet, "/api/events?kind=distribution", token, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var page struct {
		Data struct {
			Items []map[string]any `json:"items"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Data.Items, 1)
	require.Equal(t, "distribution", page.Data.Items[0]["kind"])

	rec = h.do(t, http.MethodGet, "/api/reports/distributions?period=day&distribution_type=crisis_aid", token, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Len(t, report.Data, 1)
	require.Equal(t, "crisis_aid", report.Data[0]["distribution_type"])

	rec = h.do(t, http.MethodGet, "/api/reports/distributions?distribution_type=weekly", token, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Empty(t, report.Data)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t)
	h.do(t, http.MethodGet, "/api/health/live", "", "")

	rec := h.do(t, http.MethodGet, "/api/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "aidinv_http_requests_total"))
}
