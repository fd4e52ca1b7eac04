package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"frisk/internal/absence"
	"frisk/internal/audit"
	"frisk/internal/authz"
	"frisk/internal/checkin"
	"frisk/internal/identity"
	"frisk/internal/notify"
	"frisk/internal/platform/metrics"
	"frisk/internal/ratelimit"
	"frisk/internal/report"
	"frisk/internal/storage"
	"frisk/internal/student"
	"frisk/internal/university"
	"frisk/pkg/platform/tx"
	"frisk/pkg/requestcontext"
)

var testMetrics = metrics.New()

func newTestRouter(t *testing.T) (http.Handler, *identity.MemoryUserStore) {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	runner := tx.NewRunner(nil)
	auditStore := audit.NewMemoryStore()
	recorder := audit.NewRecorder(auditStore, logger, testMetrics)

	users := identity.NewMemoryUserStore()
	tokens := identity.NewTokenIssuer("test-signing-key", time.Hour)
	identitySvc := identity.NewService(users, identity.NewMemoryRevocationStore(), tokens,
		recorder, logger, testMetrics)

	universityStore := university.NewMemoryStore()
	studentStore := student.NewMemoryStore()
	absenceStore := absence.NewMemoryStore()
	checkinStore := checkin.NewMemoryStore()
	objects := storage.NewMemoryStore()

	noDependents := university.DependentFunc(func(context.Context, uuid.UUID) (bool, error) {
		return false, nil
	})
	universitySvc := university.NewService(universityStore, noDependents, recorder, logger)
	studentSvc := student.NewService(studentStore, universityStore, objects,
		"consent", time.Hour, runner, recorder, logger, testMetrics)
	notifySvc := notify.NewService(universityStore, notify.NewConsoleSender(logger), logger)
	absenceSvc := absence.NewService(absenceStore, studentStore, objects,
		"evidence", time.Hour, notifySvc, recorder, logger)
	checkinSvc := checkin.NewService(checkinStore, studentStore, runner, recorder, logger, testMetrics)
	reportSvc := report.NewService(studentStore, absenceStore, universityStore, recorder, logger)

	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), logger, testMetrics, false)

	router := NewRouter(Deps{
		Logger:  logger,
		Metrics: testMetrics,

		Identity: identitySvc,
		Limiter:  limiter,

		IdentityHandler:   identity.NewHandler(identitySvc),
		AuthzHandler:      authz.NewHandler(),
		AuditHandler:      audit.NewHandler(auditStore),
		UniversityHandler: university.NewHandler(universitySvc),
		StudentHandler:    student.NewHandler(studentSvc),
		AbsenceHandler:    absence.NewHandler(absenceSvc),
		CheckinHandler:    checkin.NewHandler(checkinSvc),
		NotifyHandler:     notify.NewHandler(notifySvc, absenceSvc),
		ReportHandler:     report.NewHandler(reportSvc),
	})
	return router, users
}

func seedAdmin(t *testing.T, users *identity.MemoryUserStore, email, password string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, users.Create(context.Background(), identity.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		Role:         requestcontext.RoleAdmin,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}))
}

func postLogin(router http.Handler, ip, email, password string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", ip)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestLoginThrottledBeforeCredentialCheck(t *testing.T) {
	router, users := newTestRouter(t)
	seedAdmin(t, users, "admin@frisk.app", "Correct-Horse-1!")

	for i := 0; i < 5; i++ {
		rec := postLogin(router, "198.51.100.7", "admin@frisk.app", "wrong-password")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	// The sixth attempt inside the window never reaches the password check,
	// even with the right credentials.
	rec := postLogin(router, "198.51.100.7", "admin@frisk.app", "Correct-Horse-1!")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Another client is unaffected.
	rec = postLogin(router, "203.0.113.9", "admin@frisk.app", "Correct-Horse-1!")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	router, users := newTestRouter(t)
	seedAdmin(t, users, "admin@frisk.app", "Correct-Horse-1!")

	req := httptest.NewRequest(http.MethodGet, "/api/students", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	login := postLogin(router, "198.51.100.8", "admin@frisk.app", "Correct-Horse-1!")
	require.Equal(t, http.StatusOK, login.Code)
	var session struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(login.Body.Bytes(), &session))
	require.NotEmpty(t, session.Token)

	req = httptest.NewRequest(http.MethodGet, "/api/students", nil)
	req.Header.Set("Authorization", "Bearer "+session.Token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthAndRouteAccess(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// Anonymous navigation check: protected paths redirect to login.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/route-access?path=/admin", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var decision struct {
		Allowed  bool   `json:"allowed"`
		Redirect string `json:"redirect"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decision))
	assert.False(t, decision.Allowed)
	assert.Equal(t, "/login", decision.Redirect)
}
