package admin

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
	"github.com/fieldwave/promoter-backoffice/internal/models"
	"github.com/fieldwave/promoter-backoffice/internal/security"
	"github.com/fieldwave/promoter-backoffice/internal/statecache"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const testJWTSecret = "test-secret"

type adminTestEnv struct {
	conn   *gorm.DB
	engine *gin.Engine
}

func newAdminTestEnv(t *testing.T) *adminTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "admin-test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	engine := gin.New()
	jwtCfg := config.JWTConfig{Secret: testJWTSecret, Expiry: time.Hour}
	RegisterAdminRoutes(engine, conn, jwtCfg, statecache.New(config.RedisConfig{}, 0))
	return &adminTestEnv{conn: conn, engine: engine}
}

// createUser creates an active back-office user with the named role and
// optional state assignments, returning a bearer token for it.
func (env *adminTestEnv) createUser(t *testing.T, username, roleName string, states ...models.UserState) (models.User, string) {
	t.Helper()
	hash, errHash := security.HashPassword("password")
	if errHash != nil {
		t.Fatalf("hash: %v", errHash)
	}
	user := models.User{Username: username, Name: username, Password: hash, Active: true}
	if errCreate := env.conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	if roleName != "" {
		var role models.Role
		if errRole := env.conn.Where("name = ?", roleName).First(&role).Error; errRole != nil {
			t.Fatalf("load role %q: %v", roleName, errRole)
		}
		if errAssign := env.conn.Model(&user).Association("Roles").Append(&role); errAssign != nil {
			t.Fatalf("assign role: %v", errAssign)
		}
	}
	for _, state := range states {
		state.UserID = user.ID
		if errState := env.conn.Create(&state).Error; errState != nil {
			t.Fatalf("assign state: %v", errState)
		}
	}
	token, errToken := security.IssueAdminToken(testJWTSecret, time.Hour, user.ID, user.Username)
	if errToken != nil {
		t.Fatalf("issue token: %v", errToken)
	}
	return user, token
}

func (env *adminTestEnv) seedPromoter(t *testing.T, username, state string) models.Promoter {
	t.Helper()
	promoter := models.Promoter{
		Name:     username,
		Username: username,
		Password: "x",
		State:    state,
		District: "District",
		IsActive: true,
		Status:   models.PromoterStatusActive,
	}
	if errCreate := env.conn.Create(&promoter).Error; errCreate != nil {
		t.Fatalf("seed promoter: %v", errCreate)
	}
	return promoter
}

func (env *adminTestEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
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

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if errDecode := json.Unmarshal(recorder.Body.Bytes(), &out); errDecode != nil {
		t.Fatalf("decode body %q: %v", recorder.Body.String(), errDecode)
	}
	return out
}

func TestAdminLogin_IssuesToken(t *testing.T) {
	env := newAdminTestEnv(t)
	env.createUser(t, "admin", models.SuperAdminRole)

	recorder := env.do(t, http.MethodPost, "/v0/admin/login", "", gin.H{"username": "admin", "password": "password"})
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	body := decodeBody(t, recorder)
	data, _ := body["data"].(map[string]any)
	if data == nil || data["token"] == "" {
		t.Fatalf("expected token in response, got %v", body)
	}

	bad := env.do(t, http.MethodPost, "/v0/admin/login", "", gin.H{"username": "admin", "password": "wrong"})
	if bad.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", bad.Code)
	}
}

func TestPermissionMiddleware_DeniesAndWritesNothing(t *testing.T) {
	env := newAdminTestEnv(t)
	_, token := env.createUser(t, "viewer", "Viewer")

	recorder := env.do(t, http.MethodPost, "/v0/admin/promoters", token, gin.H{
		"name": "New", "username": "new", "password": "secret", "state": "Bihar",
	})
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", recorder.Code, recorder.Body.String())
	}
	body := decodeBody(t, recorder)
	if body["message"] != "You do not have permission to perform this action" {
		t.Fatalf("unexpected denial message: %v", body["message"])
	}

	var count int64
	if errCount := env.conn.Model(&models.Promoter{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count: %v", errCount)
	}
	if count != 0 {
		t.Fatalf("expected denied request to write nothing, found %d promoters", count)
	}
}

func TestPromoterList_ScopedToAssignedStates(t *testing.T) {
	env := newAdminTestEnv(t)
	env.seedPromoter(t, "p-bihar-1", "Bihar")
	env.seedPromoter(t, "p-bihar-2", "Bihar")
	env.seedPromoter(t, "p-odisha", "Odisha")

	_, token := env.createUser(t, "bihar-viewer", "Viewer", models.UserState{State: "Bihar", IsActive: true})

	recorder := env.do(t, http.MethodGet, "/v0/admin/promoters", token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	body := decodeBody(t, recorder)
	data, _ := body["data"].([]any)
	if len(data) != 2 {
		t.Fatalf("expected 2 visible promoters, got %d", len(data))
	}

	// An explicit filter outside the scope must intersect to nothing.
	filtered := env.do(t, http.MethodGet, "/v0/admin/promoters?state=Odisha", token, nil)
	if filtered.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", filtered.Code)
	}
	filteredBody := decodeBody(t, filtered)
	filteredData, _ := filteredBody["data"].([]any)
	if len(filteredData) != 0 {
		t.Fatalf("expected state filter outside scope to return nothing, got %d", len(filteredData))
	}

	// Fetching an out-of-scope row by ID reads as not found.
	var odisha models.Promoter
	if errFind := env.conn.Where("state = ?", "Odisha").First(&odisha).Error; errFind != nil {
		t.Fatalf("find odisha promoter: %v", errFind)
	}
	missing := env.do(t, http.MethodGet, "/v0/admin/promoters/"+strconv.FormatUint(odisha.ID, 10), token, nil)
	if missing.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for out-of-scope promoter, got %d", missing.Code)
	}
}

func TestUserStates_AssignReplacesAndRemoves(t *testing.T) {
	env := newAdminTestEnv(t)
	_, adminToken := env.createUser(t, "admin", models.SuperAdminRole)
	target, _ := env.createUser(t, "target", "Viewer")

	base := "/v0/admin/users/" + strconv.FormatUint(target.ID, 10) + "/states"

	assign := env.do(t, http.MethodPost, base, adminToken, gin.H{"states": []string{"Bihar", "Odisha"}})
	if assign.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", assign.Code, assign.Body.String())
	}

	replace := env.do(t, http.MethodPost, base, adminToken, gin.H{"states": []string{"Bihar"}})
	if replace.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", replace.Code, replace.Body.String())
	}

	var rows []models.UserState
	if errFind := env.conn.Where("user_id = ?", target.ID).Find(&rows).Error; errFind != nil {
		t.Fatalf("find states: %v", errFind)
	}
	if len(rows) != 1 || rows[0].State != "Bihar" {
		t.Fatalf("expected replace-all semantics, got %+v", rows)
	}

	remove := env.do(t, http.MethodDelete, base, adminToken, gin.H{"state": "Odisha"})
	if remove.Code != http.StatusNotFound {
		t.Fatalf("expected 404 removing an unassigned state, got %d", remove.Code)
	}

	clear := env.do(t, http.MethodPost, base, adminToken, gin.H{"states": []string{}})
	if clear.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", clear.Code, clear.Body.String())
	}
	var count int64
	if errCount := env.conn.Model(&models.UserState{}).Where("user_id = ?", target.ID).Count(&count).Error; errCount != nil {
		t.Fatalf("count: %v", errCount)
	}
	if count != 0 {
		t.Fatalf("expected empty assignment to clear all rows, got %d", count)
	}
}

func TestResetDevice_Idempotent(t *testing.T) {
	env := newAdminTestEnv(t)
	_, adminToken := env.createUser(t, "admin", models.SuperAdminRole)

	promoter := env.seedPromoter(t, "bound", "Bihar")
	deviceID := "device-1"
	if errBind := env.conn.Model(&promoter).Updates(map[string]any{
		"device_id":    deviceID,
		"is_logged_in": true,
	}).Error; errBind != nil {
		t.Fatalf("bind device: %v", errBind)
	}
	if errToken := env.conn.Create(&models.PromoterToken{PromoterID: promoter.ID, TokenHash: "hash-1"}).Error; errToken != nil {
		t.Fatalf("seed token: %v", errToken)
	}

	path := "/v0/admin/promoters/" + strconv.FormatUint(promoter.ID, 10) + "/reset-device"
	for i := 0; i < 2; i++ {
		recorder := env.do(t, http.MethodPost, path, adminToken, nil)
		if recorder.Code != http.StatusOK {
			t.Fatalf("reset %d: expected 200, got %d: %s", i+1, recorder.Code, recorder.Body.String())
		}
		body := decodeBody(t, recorder)
		data, _ := body["data"].(map[string]any)
		if data == nil || data["promoter_name"] != "bound" {
			t.Fatalf("unexpected reset payload: %v", body)
		}
	}

	var after models.Promoter
	if errFind := env.conn.First(&after, promoter.ID).Error; errFind != nil {
		t.Fatalf("reload promoter: %v", errFind)
	}
	if after.DeviceID != nil || after.IsLoggedIn {
		t.Fatalf("expected unbound logged-out promoter, got device=%v logged_in=%v", after.DeviceID, after.IsLoggedIn)
	}
	var tokens int64
	if errCount := env.conn.Model(&models.PromoterToken{}).Where("promoter_id = ?", promoter.ID).Count(&tokens).Error; errCount != nil {
		t.Fatalf("count tokens: %v", errCount)
	}
	if tokens != 0 {
		t.Fatalf("expected all tokens revoked, got %d", tokens)
	}
}

func TestResetDevice_ScopedToAssignedStates(t *testing.T) {
	env := newAdminTestEnv(t)
	_, token := env.createUser(t, "bihar-admin", "Admin", models.UserState{State: "Bihar", IsActive: true})

	outside := env.seedPromoter(t, "odisha-p", "Odisha")
	if errBind := env.conn.Model(&outside).Update("device_id", "device-x").Error; errBind != nil {
		t.Fatalf("bind device: %v", errBind)
	}

	recorder := env.do(t, http.MethodPost, "/v0/admin/promoters/"+strconv.FormatUint(outside.ID, 10)+"/reset-device", token, nil)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for out-of-scope promoter, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var untouched models.Promoter
	if errFind := env.conn.First(&untouched, outside.ID).Error; errFind != nil {
		t.Fatalf("reload: %v", errFind)
	}
	if untouched.DeviceID == nil || *untouched.DeviceID != "device-x" {
		t.Fatalf("expected out-of-scope binding to survive, got %v", untouched.DeviceID)
	}

	inside := env.seedPromoter(t, "bihar-p", "Bihar")
	recorder = env.do(t, http.MethodPost, "/v0/admin/promoters/"+strconv.FormatUint(inside.ID, 10)+"/reset-device", token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200 for in-scope promoter, got %d: %s", recorder.Code, recorder.Body.String())
	}
}

func TestBulkStatus_ReportsActualAffectedCount(t *testing.T) {
	env := newAdminTestEnv(t)
	bihar := env.seedPromoter(t, "bihar-p", "Bihar")
	odisha := env.seedPromoter(t, "odisha-p", "Odisha")

	_, token := env.createUser(t, "moderator", "Moderator", models.UserState{State: "Bihar", IsActive: true})

	recorder := env.do(t, http.MethodPost, "/v0/admin/promoters/bulk-status", token, gin.H{
		"ids":    []uint64{bihar.ID, odisha.ID, 9999},
		"status": models.PromoterStatusSuspended,
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	body := decodeBody(t, recorder)
	if updated, _ := body["updated"].(float64); updated != 1 {
		t.Fatalf("expected exactly the in-scope row to update, got updated=%v", body["updated"])
	}

	var reloaded models.Promoter
	if errFind := env.conn.First(&reloaded, odisha.ID).Error; errFind != nil {
		t.Fatalf("reload: %v", errFind)
	}
	if reloaded.Status != models.PromoterStatusActive {
		t.Fatalf("expected out-of-scope promoter to keep its status, got %q", reloaded.Status)
	}
}

func TestHealthz_Open(t *testing.T) {
	env := newAdminTestEnv(t)
	recorder := env.do(t, http.MethodGet, "/healthz", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
}
