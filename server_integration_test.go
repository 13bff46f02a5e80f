package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"lppm/pkg/config"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// helper to perform requests with auth token
func performRequest(r http.Handler, method, path string, body io.Reader, token string, contentType string) *httptest.ResponseRecorder {
	// allow callers to pass nil for body safely
	if body == nil {
		body = http.NoBody
	}
	req, _ := http.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func integrationConfig(t *testing.T) *config.Config {
	// integration tests are opt-in. Set DB_DSN_TEST=1 and DB_DSN to run them.
	if os.Getenv("DB_DSN_TEST") != "1" {
		t.Skip("integration tests are disabled; set DB_DSN_TEST=1 to enable")
	}
	loader, err := config.NewLoader()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	cfg.DBAutoMigrate = true
	return cfg
}

func setupTestServer(t *testing.T) *gin.Engine {
	cfg := integrationConfig(t)
	gin.SetMode(gin.TestMode)
	logger = zap.NewNop()
	jwtSecret = []byte(cfg.JWTSecret)
	tokenTTL = cfg.TokenTTL
	if err := initDB(cfg); err != nil {
		t.Fatalf("init db: %v", err)
	}
	wireServices(cfg)
	r := gin.New()
	setupRoutes(r)
	return r
}

func TestFullFlow(t *testing.T) {
	r := setupTestServer(t)
	username := fmt.Sprintf("user%d", time.Now().UnixNano())

	// 1. Register user
	regBody, _ := json.Marshal(map[string]string{"username": username, "password": "pass123", "name": "User One"})
	resp := performRequest(r, http.MethodPost, "/register", bytes.NewBuffer(regBody), "", "application/json")
	if resp.Code != 200 && resp.Code != 409 {
		t.Fatalf("register failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 2. Login
	loginBody, _ := json.Marshal(map[string]string{"username": username, "password": "pass123"})
	resp = performRequest(r, http.MethodPost, "/login", bytes.NewBuffer(loginBody), "", "application/json")
	if resp.Code != 200 {
		t.Fatalf("login failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var loginResp map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &loginResp)
	token, _ := loginResp["token"].(string)
	if token == "" {
		t.Fatalf("empty token in login response: %+v", loginResp)
	}

	// 3. Create submission
	subBody, _ := json.Marshal(map[string]string{"title": "Buku Integrasi"})
	resp = performRequest(r, http.MethodPost, "/submissions", bytes.NewBuffer(subBody), token, "application/json")
	if resp.Code != http.StatusCreated {
		t.Fatalf("create submission failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var sub map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &sub)
	id, _ := sub["id"].(string)

	// 4. Submitting without documents is refused
	resp = performRequest(r, http.MethodPost, "/submissions/"+id+"/submit", nil, token, "")
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("submit without documents status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 5. List submissions
	resp = performRequest(r, http.MethodGet, "/submissions", nil, token, "")
	if resp.Code != 200 {
		t.Fatalf("list submissions failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 6. Inbox holds the welcome notice
	resp = performRequest(r, http.MethodGet, "/notifications", nil, token, "")
	if resp.Code != 200 {
		t.Fatalf("list notifications failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var inboxResp map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &inboxResp)
	if total, _ := inboxResp["total"].(float64); total < 1 {
		t.Fatalf("expected welcome notice, got %s", resp.Body.String())
	}

	// 7. Unauthorized access to protected endpoint should be 401
	unauth := performRequest(r, http.MethodGet, "/submissions", nil, "", "")
	if unauth.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unauthorized list submissions got %d", unauth.Code)
	}
}

func TestMigrateCommand(t *testing.T) {
	cfg := integrationConfig(t)
	logger = zap.NewNop()
	if err := initDB(cfg); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}
