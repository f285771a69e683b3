package mobile

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/fieldwave/promoter-backoffice/internal/config"
	"github.com/fieldwave/promoter-backoffice/internal/db"
	adminapi "github.com/fieldwave/promoter-backoffice/internal/http/api/admin"
	"github.com/fieldwave/promoter-backoffice/internal/models"
	"github.com/fieldwave/promoter-backoffice/internal/ratelimit"
	"github.com/fieldwave/promoter-backoffice/internal/security"
	"github.com/fieldwave/promoter-backoffice/internal/statecache"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const testJWTSecret = "test-secret"

type mobileTestEnv struct {
	conn   *gorm.DB
	engine *gin.Engine
}

// newMobileTestEnv wires both API surfaces so admin device resets can be
// exercised against live mobile sessions.
func newMobileTestEnv(t *testing.T) *mobileTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "mobile-test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	engine := gin.New()
	jwtCfg := config.JWTConfig{Secret: testJWTSecret, Expiry: time.Hour}
	adminapi.RegisterAdminRoutes(engine, conn, jwtCfg, statecache.New(config.RedisConfig{}, 0))
	RegisterMobileRoutes(engine, conn, ratelimit.NewManager(config.RedisConfig{}, nil, nil))
	return &mobileTestEnv{conn: conn, engine: engine}
}

func (env *mobileTestEnv) seedPromoter(t *testing.T, username string) models.Promoter {
	t.Helper()
	hash, errHash := security.HashPassword("password")
	if errHash != nil {
		t.Fatalf("hash: %v", errHash)
	}
	promoter := models.Promoter{
		Name:     username,
		Username: username,
		Password: hash,
		State:    "Bihar",
		District: "Patna",
		IsActive: true,
		Status:   models.PromoterStatusActive,
	}
	if errCreate := env.conn.Create(&promoter).Error; errCreate != nil {
		t.Fatalf("seed promoter: %v", errCreate)
	}
	return promoter
}

func (env *mobileTestEnv) adminToken(t *testing.T) string {
	t.Helper()
	hash, errHash := security.HashPassword("password")
	if errHash != nil {
		t.Fatalf("hash: %v", errHash)
	}
	user := models.User{Username: "admin", Name: "admin", Password: hash, Active: true}
	if errCreate := env.conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create admin: %v", errCreate)
	}
	var role models.Role
	if errRole := env.conn.Where("name = ?", models.SuperAdminRole).First(&role).Error; errRole != nil {
		t.Fatalf("load role: %v", errRole)
	}
	if errAssign := env.conn.Model(&user).Association("Roles").Append(&role); errAssign != nil {
		t.Fatalf("assign role: %v", errAssign)
	}
	token, errToken := security.IssueAdminToken(testJWTSecret, time.Hour, user.ID, user.Username)
	if errToken != nil {
		t.Fatalf("issue token: %v", errToken)
	}
	return token
}

func (env *mobileTestEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, errMarshal := json.Marshal(body)
		if errMarshal != nil {
			t.Fatalf("marshal body: %v", errMarshal)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	env.engine.ServeHTTP(recorder, req)
	return recorder
}

func (env *mobileTestEnv) login(t *testing.T, username, password, deviceID string) *httptest.ResponseRecorder {
	t.Helper()
	return env.do(t, http.MethodPost, "/v0/app/login", "", gin.H{
		"username":  username,
		"password":  password,
		"device_id": deviceID,
	})
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if errDecode := json.Unmarshal(recorder.Body.Bytes(), &out); errDecode != nil {
		t.Fatalf("decode body %q: %v", recorder.Body.String(), errDecode)
	}
	return out
}

func loginToken(t *testing.T, recorder *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeBody(t, recorder)
	data, _ := body["data"].(map[string]any)
	token, _ := data["token"].(string)
	if token == "" {
		t.Fatalf("expected token in login response, got %v", body)
	}
	return token
}

func TestMobileLogin_DeviceBindingLifecycle(t *testing.T) {
	env := newMobileTestEnv(t)
	promoter := env.seedPromoter(t, "ravi")
	adminToken := env.adminToken(t)

	// First login binds device A.
	first := env.login(t, "ravi", "password", "device-A")
	if first.Code != http.StatusOK {
		t.Fatalf("first login: expected 200, got %d: %s", first.Code, first.Body.String())
	}
	token := loginToken(t, first)

	// Same device while logged in.
	again := env.login(t, "ravi", "password", "device-A")
	if again.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", again.Code)
	}
	if msg := decodeBody(t, again)["message"]; msg != "User already loggedin" {
		t.Fatalf("unexpected message: %v", msg)
	}

	// Different device while logged in.
	otherWhileIn := env.login(t, "ravi", "password", "device-B")
	if otherWhileIn.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", otherWhileIn.Code)
	}
	if msg := decodeBody(t, otherWhileIn)["message"]; msg != "User already logged in on another device" {
		t.Fatalf("unexpected message: %v", msg)
	}

	// Logout keeps the binding.
	logout := env.do(t, http.MethodPost, "/v0/app/logout", token, nil)
	if logout.Code != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d: %s", logout.Code, logout.Body.String())
	}
	var bound models.Promoter
	if errFind := env.conn.First(&bound, promoter.ID).Error; errFind != nil {
		t.Fatalf("reload: %v", errFind)
	}
	if bound.DeviceID == nil || *bound.DeviceID != "device-A" || bound.IsLoggedIn {
		t.Fatalf("expected bound logged-out promoter, got device=%v logged_in=%v", bound.DeviceID, bound.IsLoggedIn)
	}

	// The logged-out token is revoked.
	stale := env.do(t, http.MethodGet, "/v0/app/profile", token, nil)
	if stale.Code != http.StatusUnauthorized {
		t.Fatalf("expected revoked token to fail, got %d", stale.Code)
	}

	// Different device while bound and logged out.
	otherWhileOut := env.login(t, "ravi", "password", "device-B")
	if otherWhileOut.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", otherWhileOut.Code)
	}
	if msg := decodeBody(t, otherWhileOut)["message"]; msg != "This account is already bound to another device. Please contact admin to reset device binding." {
		t.Fatalf("unexpected message: %v", msg)
	}

	// Bound device can log back in without a reset.
	back := env.login(t, "ravi", "password", "device-A")
	if back.Code != http.StatusOK {
		t.Fatalf("re-login: expected 200, got %d: %s", back.Code, back.Body.String())
	}
	backToken := loginToken(t, back)

	// Admin reset unbinds and revokes the live session.
	reset := env.do(t, http.MethodPost, "/v0/admin/promoters/"+strconv.FormatUint(promoter.ID, 10)+"/reset-device", adminToken, nil)
	if reset.Code != http.StatusOK {
		t.Fatalf("reset: expected 200, got %d: %s", reset.Code, reset.Body.String())
	}
	revoked := env.do(t, http.MethodGet, "/v0/app/profile", backToken, nil)
	if revoked.Code != http.StatusUnauthorized {
		t.Fatalf("expected session revoked after reset, got %d", revoked.Code)
	}

	// After the reset, a new device can bind.
	rebound := env.login(t, "ravi", "password", "device-B")
	if rebound.Code != http.StatusOK {
		t.Fatalf("rebind: expected 200, got %d: %s", rebound.Code, rebound.Body.String())
	}
}

func TestMobileLogin_DeviceIDOptional(t *testing.T) {
	env := newMobileTestEnv(t)
	promoter := env.seedPromoter(t, "ravi")

	// A device-less login succeeds and leaves the account unbound.
	noDevice := env.do(t, http.MethodPost, "/v0/app/login", "", gin.H{"username": "ravi", "password": "password"})
	if noDevice.Code != http.StatusOK {
		t.Fatalf("device-less login: expected 200, got %d: %s", noDevice.Code, noDevice.Body.String())
	}
	token := loginToken(t, noDevice)
	var current models.Promoter
	if errFind := env.conn.First(&current, promoter.ID).Error; errFind != nil {
		t.Fatalf("reload: %v", errFind)
	}
	if current.DeviceID != nil || !current.IsLoggedIn {
		t.Fatalf("expected unbound logged-in promoter, got device=%v logged_in=%v", current.DeviceID, current.IsLoggedIn)
	}

	// A second device-less login hits the duplicate-session check.
	dup := env.do(t, http.MethodPost, "/v0/app/login", "", gin.H{"username": "ravi", "password": "password"})
	if dup.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", dup.Code)
	}
	if msg := decodeBody(t, dup)["message"]; msg != "User already loggedin" {
		t.Fatalf("unexpected message: %v", msg)
	}

	// Bind device A, then try a device-less login while still logged in.
	if logout := env.do(t, http.MethodPost, "/v0/app/logout", token, nil); logout.Code != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", logout.Code)
	}
	bind := env.login(t, "ravi", "password", "device-A")
	if bind.Code != http.StatusOK {
		t.Fatalf("bind: expected 200, got %d: %s", bind.Code, bind.Body.String())
	}
	boundToken := loginToken(t, bind)
	dupNoDevice := env.do(t, http.MethodPost, "/v0/app/login", "", gin.H{"username": "ravi", "password": "password"})
	if dupNoDevice.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", dupNoDevice.Code)
	}
	if msg := decodeBody(t, dupNoDevice)["message"]; msg != "User already loggedin" {
		t.Fatalf("unexpected message: %v", msg)
	}

	// A device-less login against a bound logged-out account succeeds
	// and keeps the stored binding.
	if logout := env.do(t, http.MethodPost, "/v0/app/logout", boundToken, nil); logout.Code != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", logout.Code)
	}
	back := env.do(t, http.MethodPost, "/v0/app/login", "", gin.H{"username": "ravi", "password": "password"})
	if back.Code != http.StatusOK {
		t.Fatalf("device-less re-login: expected 200, got %d: %s", back.Code, back.Body.String())
	}
	if errFind := env.conn.First(&current, promoter.ID).Error; errFind != nil {
		t.Fatalf("reload: %v", errFind)
	}
	if current.DeviceID == nil || *current.DeviceID != "device-A" {
		t.Fatalf("expected binding to survive a device-less login, got %v", current.DeviceID)
	}
}

func TestMobileLogin_RejectsBadInput(t *testing.T) {
	env := newMobileTestEnv(t)
	env.seedPromoter(t, "ravi")

	missing := env.do(t, http.MethodPost, "/v0/app/login", "", gin.H{"username": "ravi"})
	if missing.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 without password, got %d", missing.Code)
	}

	wrong := env.login(t, "ravi", "wrong", "device-A")
	if wrong.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", wrong.Code)
	}
	if msg := decodeBody(t, wrong)["message"]; msg != "invalid credentials" {
		t.Fatalf("unexpected message: %v", msg)
	}

	unknown := env.login(t, "ghost", "password", "device-A")
	if unknown.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown user, got %d", unknown.Code)
	}
}

func TestMobileLogin_DeactivatedAccount(t *testing.T) {
	env := newMobileTestEnv(t)
	promoter := env.seedPromoter(t, "ravi")
	if errUpdate := env.conn.Model(&promoter).Update("is_active", false).Error; errUpdate != nil {
		t.Fatalf("deactivate: %v", errUpdate)
	}

	recorder := env.login(t, "ravi", "password", "device-A")
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", recorder.Code, recorder.Body.String())
	}
}

func TestMobileLogin_RateLimited(t *testing.T) {
	env := newMobileTestEnv(t)
	env.seedPromoter(t, "ravi")

	var last *httptest.ResponseRecorder
	for i := 0; i < 6; i++ {
		last = env.login(t, "ravi", "wrong", "device-A")
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after repeated attempts, got %d", last.Code)
	}
}

func TestMobileLogin_SuccessClearsThrottle(t *testing.T) {
	env := newMobileTestEnv(t)
	env.seedPromoter(t, "ravi")

	for i := 0; i < 4; i++ {
		if bad := env.login(t, "ravi", "wrong", "device-A"); bad.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i, bad.Code)
		}
	}
	good := env.login(t, "ravi", "password", "device-A")
	if good.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", good.Code, good.Body.String())
	}
	token := loginToken(t, good)
	if logout := env.do(t, http.MethodPost, "/v0/app/logout", token, nil); logout.Code != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", logout.Code)
	}

	// Without the reset this attempt would exceed the window limit.
	after := env.login(t, "ravi", "wrong", "device-A")
	if after.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after counter reset, got %d: %s", after.Code, after.Body.String())
	}
}

func TestSubmitRecce_StampsPromoterScope(t *testing.T) {
	env := newMobileTestEnv(t)
	promoter := env.seedPromoter(t, "ravi")

	login := env.login(t, "ravi", "password", "device-A")
	if login.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", login.Code)
	}
	token := loginToken(t, login)

	recorder := env.do(t, http.MethodPost, "/v0/app/activity-recces", token, gin.H{
		"village":    "Rampur",
		"latitude":   25.59,
		"longitude":  85.13,
		"close_shot": "https://cdn.example.com/close.jpg",
		"photos":     []string{"https://cdn.example.com/extra.jpg"},
		"visit_date": "2026-08-30",
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
	}

	var recce models.ActivityRecce
	if errFind := env.conn.Where("promoter_id = ?", promoter.ID).First(&recce).Error; errFind != nil {
		t.Fatalf("find recce: %v", errFind)
	}
	if recce.State != "Bihar" || recce.District != "Patna" {
		t.Fatalf("expected recce to carry the promoter's scope, got state=%q district=%q", recce.State, recce.District)
	}
	if recce.Status != models.ActivityRecceStatusPending {
		t.Fatalf("expected pending status, got %q", recce.Status)
	}
}

func TestMobileRoutePlans_OwnStateOnly(t *testing.T) {
	env := newMobileTestEnv(t)
	env.seedPromoter(t, "ravi")

	plans := []models.RoutePlan{
		{State: "Bihar", District: "Patna", Village: "Rampur", Status: models.RoutePlanStatusActive},
		{State: "Bihar", District: "Gaya", Village: "Bela", Status: models.RoutePlanStatusActive},
		{State: "Odisha", District: "Puri", Village: "Sakhigopal", Status: models.RoutePlanStatusActive},
	}
	for i := range plans {
		if errCreate := env.conn.Create(&plans[i]).Error; errCreate != nil {
			t.Fatalf("seed plan: %v", errCreate)
		}
	}

	login := env.login(t, "ravi", "password", "device-A")
	token := loginToken(t, login)

	recorder := env.do(t, http.MethodGet, "/v0/app/route-plans", token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	body := decodeBody(t, recorder)
	data, _ := body["data"].([]any)
	if len(data) != 1 {
		t.Fatalf("expected only the promoter's district plans, got %d", len(data))
	}
}
