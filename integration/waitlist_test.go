package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/akeren/lore-anchor-waitlist/config"
	"github.com/akeren/lore-anchor-waitlist/config/router"
	"github.com/akeren/lore-anchor-waitlist/domain"
	"github.com/akeren/lore-anchor-waitlist/internal/log"
	"github.com/akeren/lore-anchor-waitlist/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type WaitlistAPITestSuite struct {
	suite.Suite
	db        *gorm.DB
	server    *httptest.Server
	baseURL   string
	logger    *log.Logger
	appConfig *config.ApplicationConfig
}

func newTestWaitlistConfig() *config.WaitlistConfig {
	cfg := config.DefaultWaitlistConfig()
	cfg.Store = config.StoreSQLite
	cfg.RegisterRateLimit = 1000
	return cfg
}

func newTestApp(t *testing.T, db *gorm.DB, cfg *config.WaitlistConfig) (*config.ApplicationConfig, *httptest.Server) {
	t.Helper()

	logger := log.NewLoggerWithJSONOutput()
	appConfig := &config.ApplicationConfig{
		DB:       db,
		Logger:   logger,
		Waitlist: cfg,
	}

	appConfig.RouterService = router.CreateRouterService(logger, nil, &router.RouterConfig{
		RateLimitRequests: 1000,
		RateLimitWindow:   time.Minute,
		RequestTimeout:    30 * time.Second,
	})

	require.NoError(t, domain.SetupCoreDomain(appConfig))

	return appConfig, httptest.NewServer(appConfig.RouterService.GetEngine())
}

func (suite *WaitlistAPITestSuite) SetupSuite() {
	suite.logger = log.NewLoggerWithJSONOutput()

	cfg := newTestWaitlistConfig()
	cfg.SQLitePath = filepath.Join(suite.T().TempDir(), "waitlist.db")

	var err error
	suite.db, err = config.OpenWaitlistStore(suite.logger, cfg, false)
	suite.Require().NoError(err)

	suite.appConfig, suite.server = newTestApp(suite.T(), suite.db, cfg)
	suite.baseURL = suite.server.URL
}

func (suite *WaitlistAPITestSuite) TearDownSuite() {
	if suite.server != nil {
		suite.server.Close()
	}
	config.CloseDatabase(suite.db, suite.logger)
}

func (suite *WaitlistAPITestSuite) SetupTest() {
	suite.Require().NoError(suite.db.Exec("DELETE FROM " + models.WaitlistTableName).Error)
}

func (suite *WaitlistAPITestSuite) post(path string, body any, headers map[string]string) (*http.Response, map[string]any) {
	var payload []byte
	switch b := body.(type) {
	case string:
		payload = []byte(b)
	default:
		var err error
		payload, err = json.Marshal(b)
		suite.Require().NoError(err)
	}

	req, err := http.NewRequest(http.MethodPost, suite.baseURL+path, bytes.NewReader(payload))
	suite.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	suite.Require().NoError(err)
	defer resp.Body.Close()

	var decoded map[string]any
	suite.Require().NoError(json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func (suite *WaitlistAPITestSuite) getCount(path string) (*http.Response, map[string]any) {
	resp, err := http.Get(suite.baseURL + path)
	suite.Require().NoError(err)
	defer resp.Body.Close()

	var decoded map[string]any
	suite.Require().NoError(json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func (suite *WaitlistAPITestSuite) TestHealthCheck() {
	resp, err := http.Get(suite.baseURL + "/health")
	suite.Require().NoError(err)
	defer resp.Body.Close()

	suite.Equal(http.StatusOK, resp.StatusCode)

	var response map[string]any
	suite.Require().NoError(json.NewDecoder(resp.Body).Decode(&response))

	suite.Contains(response["message"], "health check completed")
	data := response["data"].(map[string]any)
	suite.Equal(float64(1), data["database"])
	suite.Equal(float64(0), data["cache"])
	suite.Contains(data, "uptime")
}

func (suite *WaitlistAPITestSuite) TestEmptyWaitlistCountsZero() {
	resp, body := suite.getCount("/waitlist")

	suite.Equal(http.StatusOK, resp.StatusCode)
	suite.Equal(map[string]any{"count": float64(0)}, body)
	suite.Equal("ok", resp.Header.Get("X-Waitlist-Count"))
}

func (suite *WaitlistAPITestSuite) TestRegistrationScenario() {
	resp, body := suite.post("/waitlist", map[string]any{"email": "a@b.com", "ref": nil}, nil)
	suite.Equal(http.StatusOK, resp.StatusCode)
	suite.Equal(map[string]any{"success": true, "position": float64(1)}, body)

	resp, body = suite.post("/waitlist", map[string]any{"email": "a@b.com"}, nil)
	suite.Equal(http.StatusConflict, resp.StatusCode)
	suite.Equal("このメールアドレスは既に登録済みです", body["error"])

	resp, body = suite.post("/waitlist", map[string]any{"email": "not-an-email"}, nil)
	suite.Equal(http.StatusBadRequest, resp.StatusCode)
	suite.Equal("無効なメールアドレスです", body["error"])

	resp, body = suite.getCount("/waitlist")
	suite.Equal(http.StatusOK, resp.StatusCode)
	suite.Equal(float64(1), body["count"])
}

func (suite *WaitlistAPITestSuite) TestPositionsIncreaseAndRefIsStored() {
	_, body := suite.post("/api/waitlist", map[string]any{"email": "one@example.com", "ref": "x-campaign"}, nil)
	suite.Equal(float64(1), body["position"])

	_, body = suite.post("/api/waitlist", map[string]any{"email": "two@example.com"}, nil)
	suite.Equal(float64(2), body["position"])

	var entry models.WaitlistEntry
	suite.Require().NoError(suite.db.Where("email = ?", "one@example.com").First(&entry).Error)
	suite.Require().NotNil(entry.RefSource)
	suite.Equal("x-campaign", *entry.RefSource)

	_, count := suite.getCount("/api/waitlist")
	suite.Equal(float64(2), count["count"])
}

func (suite *WaitlistAPITestSuite) TestEnglishMessages() {
	resp, body := suite.post("/waitlist", map[string]any{"email": "nope"}, map[string]string{"Accept-Language": "en"})
	suite.Equal(http.StatusBadRequest, resp.StatusCode)
	suite.Equal("Invalid email address", body["error"])
}

func (suite *WaitlistAPITestSuite) TestMalformedBodyIsServerError() {
	resp, body := suite.post("/waitlist", `{"email":`, nil)
	suite.Equal(http.StatusInternalServerError, resp.StatusCode)
	suite.Equal("サーバーエラー", body["error"])

	_, count := suite.getCount("/waitlist")
	suite.Equal(float64(0), count["count"])
}

func (suite *WaitlistAPITestSuite) TestConcurrentSameEmailRegistersOnce() {
	const attempts = 10

	var wg sync.WaitGroup
	statuses := make(chan int, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			payload, _ := json.Marshal(map[string]string{"email": "race@example.com"})
			resp, err := http.Post(suite.baseURL+"/waitlist", "application/json", bytes.NewReader(payload))
			if err != nil {
				statuses <- 0
				return
			}
			resp.Body.Close()
			statuses <- resp.StatusCode
		}()
	}

	wg.Wait()
	close(statuses)

	counts := map[int]int{}
	for status := range statuses {
		counts[status]++
	}

	suite.Equal(1, counts[http.StatusOK], "statuses: %v", counts)
	suite.Equal(attempts-1, counts[http.StatusConflict], "statuses: %v", counts)

	_, count := suite.getCount("/waitlist")
	suite.Equal(float64(1), count["count"])
}

func TestWaitlistAPISuite(t *testing.T) {
	// Skip integration tests unless explicitly requested
	if os.Getenv("RUN_INTEGRATION_TESTS") != "true" {
		t.Skip("Skipping integration tests. Set RUN_INTEGRATION_TESTS=true to run them")
	}

	suite.Run(t, new(WaitlistAPITestSuite))
}

func TestUnreachableStore(t *testing.T) {
	if os.Getenv("RUN_INTEGRATION_TESTS") != "true" {
		t.Skip("Skipping integration tests. Set RUN_INTEGRATION_TESTS=true to run them")
	}

	logger := log.NewLoggerWithJSONOutput()
	cfg := newTestWaitlistConfig()
	cfg.SQLitePath = filepath.Join(t.TempDir(), "waitlist.db")

	db, err := config.OpenWaitlistStore(logger, cfg, false)
	require.NoError(t, err)
	config.CloseDatabase(db, logger)

	_, server := newTestApp(t, db, cfg)
	defer server.Close()

	resp, err := http.Get(server.URL + "/waitlist")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{"count": float64(0)}, body)
	assert.Equal(t, "unavailable", resp.Header.Get("X-Waitlist-Count"))

	post, err := http.Post(server.URL+"/waitlist", "application/json", bytes.NewReader([]byte(`{"email":"a@b.com"}`)))
	require.NoError(t, err)
	defer post.Body.Close()

	var postBody map[string]any
	require.NoError(t, json.NewDecoder(post.Body).Decode(&postBody))
	assert.Equal(t, http.StatusInternalServerError, post.StatusCode)
	assert.Equal(t, "登録に失敗しました", postBody["error"])
}
