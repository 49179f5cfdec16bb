package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camden-git/acnesense/config"
	"github.com/camden-git/acnesense/database"
	"github.com/camden-git/acnesense/detection"
	"github.com/camden-git/acnesense/media"
	"github.com/camden-git/acnesense/metrics"
	"github.com/camden-git/acnesense/models"
	"github.com/camden-git/acnesense/repository"
	"github.com/camden-git/acnesense/services"
)

const testRecommendation = "## OVERVIEW\nPapula and **pustula** found.\n" +
	"## RECOMMENDATIONS\n\nUse benzoyl peroxide.\n" +
	"## SKINCARE TIPS\n\nWash twice a day.\n" +
	"## IMPORTANT NOTES\n\nSee a dermatologist."

type testServer struct {
	router http.Handler
	users  repository.UserRepository
	tokens *TokenIssuer
	store  *media.LocalStorage
}

func newTestServer(t *testing.T, opts ...func(*RouterDeps)) *testServer {
	t.Helper()

	db, err := database.InitGormDB(config.DriverSQLite, filepath.Join(t.TempDir(), "api.db"), database.Options{})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrateModels(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	store, err := media.NewLocalStorage(t.TempDir(), map[media.AssetType]string{
		media.AssetTypeCapture:   config.DefaultCapturesSubDir,
		media.AssetTypeThumbnail: config.DefaultThumbnailsSubDir,
	})
	require.NoError(t, err)

	m, err := metrics.NewPipelineMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	users := repository.NewGormUserRepository(db)
	histories := repository.NewGormHistoryRepository(db, config.DriverSQLite)
	tokens := NewTokenIssuer("test-secret", 1)
	svc := services.NewDetectionService(histories, store, nil, nil, m, time.Minute)

	deps := RouterDeps{
		Users:          users,
		Tokens:         tokens,
		Detections:     svc,
		Store:          store,
		AllowedOrigins: []string{"http://localhost:5173"},
		StartedAt:      time.Now(),
	}
	for _, opt := range opts {
		opt(&deps)
	}

	return &testServer{
		router: NewRouter(deps),
		users:  users,
		tokens: tokens,
		store:  store,
	}
}

// createUser stores a user and returns a bearer token for it.
func (s *testServer) createUser(t *testing.T, email string) (*models.User, string) {
	t.Helper()
	u := &models.User{Name: "Tester", Email: email}
	require.NoError(t, u.SetPassword("rahasia123"))
	require.NoError(t, s.users.Create(context.Background(), u))

	token, _, err := s.tokens.Issue(u.ID)
	require.NoError(t, err)
	return u, token
}

func (s *testServer) do(t *testing.T, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func testSubmission() *detection.Submission {
	return &detection.Submission{
		AcneTypes:        []string{"Papula", "Pustula"},
		DetectionClasses: []string{"Papula", "Pustula"},
		DetectionCount:   2,
		ClassificationResults: []detection.ClassificationResult{
			{Class: "Papula", Image: "data:image/jpeg;base64,AAA"},
			{Class: "Pustula", Image: "data:image/jpeg;base64,BBB"},
		},
		Recommendation:  testRecommendation,
		CapturedImage:   "data:image/jpeg;base64,CAPTURED",
		DetectionResult: "RESULT",
	}
}

func (s *testServer) save(t *testing.T, token string) uint {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/save-detection", token, testSubmission())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp SaveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotZero(t, resp.HistoryID)
	return resp.HistoryID
}

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) StatusResponse {
	t.Helper()
	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.GreaterOrEqual(t, resp.Uptime, 0.0)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	for _, target := range []string{"/api/me", "/api/riwayat", "/api/hasil/1"} {
		rec := s.do(t, http.MethodGet, target, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, target)
	}

	rec := s.do(t, http.MethodGet, "/api/me", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/register", "", RegisterPayload{
		Name: "Budi", Email: "budi@example.com", Password: "rahasia123", ConfirmPassword: "rahasia123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, decodeStatus(t, rec).Success)

	rec = s.do(t, http.MethodPost, "/api/register", "", RegisterPayload{
		Name: "Budi", Email: "BUDI@example.com", Password: "rahasia123", ConfirmPassword: "rahasia123",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/login", "", LoginPayload{Email: "budi@example.com", Password: "salah"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/login", "", LoginPayload{Email: "budi@example.com", Password: "rahasia123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var login LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	assert.NotEmpty(t, login.Token)
	assert.Equal(t, "budi@example.com", login.User.Email)
	assert.NotContains(t, rec.Body.String(), "password")

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == AccessTokenCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	// the cookie alone authenticates browser clients
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(cookie)
	me := httptest.NewRecorder()
	s.router.ServeHTTP(me, req)
	require.Equal(t, http.StatusOK, me.Code)
	assert.Contains(t, me.Body.String(), "budi@example.com")
}

func TestLogin_SecureCookie(t *testing.T) {
	for _, secure := range []bool{false, true} {
		s := newTestServer(t, func(d *RouterDeps) { d.SecureCookie = secure })
		s.createUser(t, "secure@example.com")

		rec := s.do(t, http.MethodPost, "/api/login", "", LoginPayload{Email: "secure@example.com", Password: "rahasia123"})
		require.Equal(t, http.StatusOK, rec.Code)

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, AccessTokenCookie, cookies[0].Name)
		assert.Equal(t, secure, cookies[0].Secure)
	}
}

func TestRegisterValidation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name    string
		payload RegisterPayload
		message string
	}{
		{"missing field", RegisterPayload{Email: "a@example.com", Password: "rahasia123", ConfirmPassword: "rahasia123"}, "Semua field harus diisi!"},
		{"bad email", RegisterPayload{Name: "Ani", Email: "ani", Password: "rahasia123", ConfirmPassword: "rahasia123"}, "Format email tidak valid!"},
		{"mismatch", RegisterPayload{Name: "Ani", Email: "ani@example.com", Password: "rahasia123", ConfirmPassword: "rahasia124"}, "Password dan konfirmasi password tidak cocok!"},
		{"short password", RegisterPayload{Name: "Ani", Email: "ani@example.com", Password: "abc", ConfirmPassword: "abc"}, "Password minimal 6 karakter!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/register", "", tt.payload)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.message, decodeStatus(t, rec).Message)
		})
	}
}

func TestSaveDetection(t *testing.T) {
	s := newTestServer(t)
	_, token := s.createUser(t, "owner@example.com")

	rec := s.do(t, http.MethodPost, "/api/save-detection", token, testSubmission())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp SaveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Data deteksi dan detail berhasil disimpan.", resp.Message)
	assert.NotZero(t, resp.HistoryID)
}

func TestSaveDetection_Rejections(t *testing.T) {
	s := newTestServer(t)
	_, token := s.createUser(t, "owner@example.com")

	missing := testSubmission()
	missing.DetectionClasses = nil

	malformed := testSubmission()
	malformed.Recommendation = "no section markers"

	tests := []struct {
		name    string
		body    any
		message string
	}{
		{"undecodable body", "{not json", "Data tidak lengkap."},
		{"null body", "null", "Data tidak lengkap."},
		{"missing field", missing, "Data tidak lengkap."},
		{"malformed recommendation", malformed, "Format rekomendasi tidak valid."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/save-detection", token, tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decodeStatus(t, rec)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.message, resp.Message)
		})
	}

	rec := s.do(t, http.MethodGet, "/api/riwayat", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String(), "rejected submissions leave no history behind")
}

func TestGetReport(t *testing.T) {
	s := newTestServer(t)
	_, token := s.createUser(t, "owner@example.com")
	_, otherToken := s.createUser(t, "other@example.com")
	id := s.save(t, token)
	target := "/api/hasil/" + strconv.FormatUint(uint64(id), 10)

	rec := s.do(t, http.MethodGet, target, token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "Papula, Pustula", report["judul_penyakit"])
	assert.EqualValues(t, 2, report["jumlah_deteksi"])
	assert.Equal(t, []any{"Papula", "Pustula"}, report["klas_deteksi"])
	assert.Equal(t, []any{"data:image/jpeg;base64,AAA", "data:image/jpeg;base64,BBB"}, report["image_klas"])
	assert.Contains(t, report["overview"], "<strong>pustula</strong>")

	rec = s.do(t, http.MethodGet, target+"?format=markdown", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, testRecommendation, report["overview"].(string)+report["recommendations"].(string)+
		report["skincare_tips"].(string)+report["important_notes"].(string))

	rec = s.do(t, http.MethodGet, target, otherToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "other users cannot see the report")

	rec = s.do(t, http.MethodGet, "/api/hasil/9999", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/hasil/abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAndDeleteHistory(t *testing.T) {
	s := newTestServer(t)
	_, token := s.createUser(t, "owner@example.com")
	_, otherToken := s.createUser(t, "other@example.com")
	id := s.save(t, token)
	target := "/api/riwayat/" + strconv.FormatUint(uint64(id), 10)

	rec := s.do(t, http.MethodGet, "/api/riwayat?sort=title_nat", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.EqualValues(t, id, list[0]["id_riwayat"])
	assert.Contains(t, list[0]["overview_preview"], "Papula and pustula found.")
	assert.NotContains(t, list[0]["overview_preview"], "**")
	assert.EqualValues(t, 2, list[0]["jumlah_deteksi"])

	rec = s.do(t, http.MethodGet, "/api/riwayat", otherToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = s.do(t, http.MethodDelete, target, otherToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodDelete, target, token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/hasil/"+strconv.FormatUint(uint64(id), 10), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAssetServer(t *testing.T) {
	s := newTestServer(t)
	_, token := s.createUser(t, "owner@example.com")
	_, otherToken := s.createUser(t, "other@example.com")
	id := s.save(t, token)

	rel, err := s.store.Save(context.Background(), media.AssetTypeCapture, strconv.FormatUint(uint64(id), 10), "capture.txt", strings.NewReader("capture bytes"))
	require.NoError(t, err)

	rec := s.do(t, http.MethodGet, "/api/assets/"+rel, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "capture bytes", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Cache-Control"), "private")

	rec = s.do(t, http.MethodGet, "/api/assets/"+rel, otherToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/assets/captures/"+strconv.FormatUint(uint64(id), 10)+"/missing.jpg", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/assets/captures/not-an-id/file.jpg", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTokenIssuer(t *testing.T) {
	issuer := NewTokenIssuer("secret-a", 1)
	token, expiresAt, err := issuer.Issue(42)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	id, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)

	_, err = NewTokenIssuer("secret-b", 1).Parse(token)
	assert.Error(t, err, "tokens signed with another secret are rejected")
}

func TestAssetHistoryID(t *testing.T) {
	tests := []struct {
		path string
		id   uint
		ok   bool
	}{
		{"captures/12/a.jpg", 12, true},
		{"thumbnails/3/b.jpg", 3, true},
		{"captures/12", 0, false},
		{"captures/../12/a.jpg", 0, false},
		{"captures/0/a.jpg", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		id, ok := assetHistoryID(tt.path)
		assert.Equal(t, tt.ok, ok, tt.path)
		assert.Equal(t, tt.id, id, tt.path)
	}
}
