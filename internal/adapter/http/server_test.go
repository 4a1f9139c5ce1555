package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/closure-relay-service/internal/adapter/descartes"
	httpadapter "github.com/couchcryptid/closure-relay-service/internal/adapter/http"
	"github.com/couchcryptid/closure-relay-service/internal/config"
	"github.com/couchcryptid/closure-relay-service/internal/domain"
	"github.com/couchcryptid/closure-relay-service/internal/pipeline"
	"github.com/couchcryptid/closure-relay-service/internal/store"
)

// --- mocks ---

type mockProcessor struct {
	uploads []domain.Upload
	result  pipeline.BatchResult
	err     error
}

func (m *mockProcessor) ProcessBatch(_ context.Context, upload domain.Upload) (pipeline.BatchResult, error) {
	m.uploads = append(m.uploads, upload)
	return m.result, m.err
}

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type fixture struct {
	srv       *httpadapter.Server
	processor *mockProcessor
	allowlist *store.Allowlist
	tracking  *store.Tracking
	fatal     []error
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	configPath := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{
		"regions": [
			{"name": "Illinois", "env": "na", "locationKeywordsFilter": ["Illinois"]},
			{"name": "France", "env": "row", "locationKeywordsFilter": ["France"]}
		]
	}`), 0o644))
	provider, err := config.Load(configPath, slog.Default())
	require.NoError(t, err)

	allowPath := filepath.Join(dir, "allowlist.json")
	require.NoError(t, os.WriteFile(allowPath, []byte(`{"approved-agent": true, "pending-agent": false}`), 0o644))
	allowlist, err := store.OpenAllowlist(allowPath)
	require.NoError(t, err)

	tracking, err := store.OpenTracking(filepath.Join(dir, "tracking.json"))
	require.NoError(t, err)

	f := &fixture{
		processor: &mockProcessor{},
		allowlist: allowlist,
		tracking:  tracking,
	}
	f.srv = httpadapter.NewServer(":0", provider, allowlist, tracking, f.processor, &mockReadiness{}, slog.Default(), func(err error) {
		f.fatal = append(f.fatal, err)
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	f.srv.ServeHTTP(rec, req)
	return rec
}

func uploadBody(user string) string {
	return fmt.Sprintf(`{"userName": %q, "closures": [{"id": "c1", "segmentId": "s1", "location": "Springfield, Illinois"}]}`, user)
}

// --- tests ---

func TestUploadApprovedUserProcessed(t *testing.T) {
	f := newFixture(t)
	f.processor.result = pipeline.BatchResult{Received: 1, Accepted: 1, Notified: 1}

	rec := f.do(t, http.MethodPost, "/uploadClosures", uploadBody("approved-agent"))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, f.processor.uploads, 1)
	assert.Equal(t, "approved-agent", f.processor.uploads[0].UserName)

	var res pipeline.BatchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 1, res.Accepted)
}

func TestUploadUnknownUserProvisionedAndHidden(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/uploadClosures", uploadBody("newcomer"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, f.processor.uploads)
	assert.Equal(t, store.AllowPending, f.allowlist.Status("newcomer"))
}

func TestUploadPendingUserHidden(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/uploadClosures", uploadBody("pending-agent"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, f.processor.uploads)
}

func TestUploadMalformedBody(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/uploadClosures", "{not json").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/uploadClosures", `{"closures": [{"id": "x"}]}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/uploadClosures", `{"userName": "approved-agent", "closures": []}`).Code)
	assert.Empty(t, f.processor.uploads)
}

func TestUploadFatalErrorTriggersShutdownHook(t *testing.T) {
	f := newFixture(t)
	f.processor.err = fmt.Errorf("enrich closure c1: %w", descartes.ErrUnauthorized)

	rec := f.do(t, http.MethodPost, "/uploadClosures", uploadBody("approved-agent"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Len(t, f.fatal, 1)
	assert.ErrorIs(t, f.fatal[0], descartes.ErrUnauthorized)
}

func TestUploadNonFatalErrorDoesNotTriggerHook(t *testing.T) {
	f := newFixture(t)
	f.processor.err = fmt.Errorf("disk full")

	rec := f.do(t, http.MethodPost, "/uploadClosures", uploadBody("approved-agent"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, f.fatal)
}

func TestTrackedClosuresFilteredByEnv(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	require.NoError(t, f.tracking.Record("c-na", "Illinois", now))
	require.NoError(t, f.tracking.Record("c-row", "France", now))
	require.NoError(t, f.tracking.Record("c-gone", "Removed Region", now))

	rec := f.do(t, http.MethodPost, "/trackedClosures", `{"userName": "approved-agent", "env": "row"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var ids []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ids))
	assert.Equal(t, []string{"c-row"}, ids)
}

func TestTrackedClosuresNoEnvReturnsAll(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	require.NoError(t, f.tracking.Record("c-na", "Illinois", now))
	require.NoError(t, f.tracking.Record("c-row", "France", now))

	rec := f.do(t, http.MethodPost, "/trackedClosures", `{"userName": "approved-agent"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var ids []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ids))
	assert.ElementsMatch(t, []string{"c-na", "c-row"}, ids)
}

func TestTrackedClosuresRequiresApproval(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/trackedClosures", `{"userName": "pending-agent"}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/trackedClosures", `{}`).Code)
}

func TestTrackedClosuresProvisionsUnknownSender(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/trackedClosures", `{"userName": "stranger"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, store.AllowPending, f.allowlist.Status("stranger"))

	// Still hidden until an operator approves the pending entry.
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/trackedClosures", `{"userName": "stranger"}`).Code)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyz(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/readyz", "").Code)
}

func TestReadyzNotReady(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{"regions": []}`), 0o644))
	provider, err := config.Load(configPath, slog.Default())
	require.NoError(t, err)

	allowlist, err := store.OpenAllowlist(filepath.Join(dir, "allowlist.json"))
	require.NoError(t, err)
	tracking, err := store.OpenTracking(filepath.Join(dir, "tracking.json"))
	require.NoError(t, err)

	srv := httpadapter.NewServer(":0", provider, allowlist, tracking, &mockProcessor{},
		&mockReadiness{err: fmt.Errorf("no regions configured")}, slog.Default(), nil)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
