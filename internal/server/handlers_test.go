package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/clipforge/transcoder/internal/blobstore"
	"github.com/clipforge/transcoder/internal/job"
	"github.com/clipforge/transcoder/internal/ledger"
	"github.com/clipforge/transcoder/internal/scratch"
)

// mockStore implements blobstore.Store for testing.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) Download(ctx context.Context, bucket, key, destPath string) error {
	args := m.Called(ctx, bucket, key, destPath)
	return args.Error(0)
}

func (m *mockStore) Upload(ctx context.Context, srcPath, bucket, key string) error {
	args := m.Called(ctx, srcPath, bucket, key)
	return args.Error(0)
}

// mockEngine implements transcode.Engine for testing.
type mockEngine struct {
	mock.Mock
}

func (m *mockEngine) Transcode(ctx context.Context, inputPath, outputPath string, targetHeight int) error {
	args := m.Called(ctx, inputPath, outputPath, targetHeight)
	return args.Error(0)
}

func newTestHandlers(t *testing.T) (*Handlers, *mockStore, *mockEngine, *ledger.MemoryLedger) {
	t.Helper()

	base := t.TempDir()
	scr, err := scratch.NewManager(filepath.Join(base, "raw"), filepath.Join(base, "processed"))
	require.NoError(t, err)

	store := &mockStore{}
	engine := &mockEngine{}
	led := ledger.NewMemoryLedger(time.Minute)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	svc := job.NewTranscodeService(
		job.Config{RawBucket: "raw-videos", ProcessedBucket: "processed-videos", TargetHeight: 360},
		store, engine, led, scr, job.NewMemoryRecorder(), logger,
	)
	return NewHandlers(svc, logger), store, engine, led
}

// envelope builds the push-envelope request body for a notification naming
// the given object key.
func envelope(t *testing.T, name string) []byte {
	t.Helper()
	payload, err := json.Marshal(storageNotification{Name: name})
	require.NoError(t, err)
	body, err := json.Marshal(PushEnvelope{
		Message: PushMessage{
			Data:      base64.StdEncoding.EncodeToString(payload),
			MessageID: "msg-1",
		},
		Subscription: "projects/test/subscriptions/videos",
	})
	require.NoError(t, err)
	return body
}

func doProcess(h *Handlers, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/process", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ProcessVideo(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h, _, _, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.Health(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestProcessVideo_MalformedJSON(t *testing.T) {
	h, store, _, _ := newTestHandlers(t)

	rec := doProcess(h, []byte("{not json"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_JSON", resp.Code)

	// No ledger or storage interaction before a valid payload.
	store.AssertNotCalled(t, "Download", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessVideo_MissingData(t *testing.T) {
	h, _, _, _ := newTestHandlers(t)

	rec := doProcess(h, []byte(`{"message": {"messageId": "1"}}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProcessVideo_BadBase64(t *testing.T) {
	h, store, _, led := newTestHandlers(t)

	rec := doProcess(h, []byte(`{"message": {"data": "!!!not-base64!!!"}}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	store.AssertNotCalled(t, "Download", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	_, err := led.Get(context.Background(), "not-base64")
	assert.ErrorIs(t, err, ledger.ErrRecordNotFound)
}

func TestProcessVideo_PayloadNotJSON(t *testing.T) {
	h, _, _, _ := newTestHandlers(t)

	data := base64.StdEncoding.EncodeToString([]byte("plainly not json"))
	rec := doProcess(h, []byte(`{"message": {"data": "`+data+`"}}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_PAYLOAD", resp.Code)
}

func TestProcessVideo_MissingName(t *testing.T) {
	h, _, _, _ := newTestHandlers(t)

	data := base64.StdEncoding.EncodeToString([]byte(`{"bucket": "raw-videos"}`))
	rec := doProcess(h, []byte(`{"message": {"data": "`+data+`"}}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "MISSING_NAME", resp.Code)
}

func TestProcessVideo_Success(t *testing.T) {
	h, store, engine, led := newTestHandlers(t)

	store.On("Download", mock.Anything, "raw-videos", "user42-videoA.mp4", mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) {
			require.NoError(t, os.WriteFile(args.String(3), []byte("raw"), 0600))
		}).
		Return(nil)
	engine.On("Transcode", mock.Anything, mock.AnythingOfType("string"), mock.AnythingOfType("string"), 360).
		Run(func(args mock.Arguments) {
			require.NoError(t, os.WriteFile(args.String(2), []byte("out"), 0600))
		}).
		Return(nil)
	store.On("Upload", mock.Anything, mock.AnythingOfType("string"), "processed-videos", "processed-user42-videoA.mp4").
		Return(nil)

	rec := doProcess(h, envelope(t, "user42-videoA.mp4"))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp ProcessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "processing finished successfully", resp.Message)
	assert.Equal(t, "user42-videoA", resp.JobID)
	assert.Equal(t, "processed-user42-videoA.mp4", resp.OutputKey)

	record, err := led.Get(context.Background(), "user42-videoA")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusProcessed, record.Status)
}

func TestProcessVideo_SourceGone_Skipped(t *testing.T) {
	h, store, _, led := newTestHandlers(t)

	store.On("Download", mock.Anything, "raw-videos", "ghost.mp4", mock.AnythingOfType("string")).
		Return(blobstore.ErrNotFound)

	rec := doProcess(h, envelope(t, "ghost.mp4"))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp ProcessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Message, "skipped")

	_, err := led.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, ledger.ErrRecordNotFound)
}

func TestProcessVideo_Duplicate_Conflict(t *testing.T) {
	h, _, _, led := newTestHandlers(t)

	require.NoError(t, led.Claim(context.Background(), "user42-videoA", "user42"))

	rec := doProcess(h, envelope(t, "user42-videoA.mp4"))
	assert.Equal(t, http.StatusConflict, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ALREADY_PROCESSING", resp.Code)
}

func TestProcessVideo_EngineFailure(t *testing.T) {
	h, store, engine, _ := newTestHandlers(t)

	store.On("Download", mock.Anything, "raw-videos", "user9-bad.mp4", mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) {
			require.NoError(t, os.WriteFile(args.String(3), []byte("raw"), 0600))
		}).
		Return(nil)
	engine.On("Transcode", mock.Anything, mock.AnythingOfType("string"), mock.AnythingOfType("string"), 360).
		Return(errors.New("moov atom not found"))

	rec := doProcess(h, envelope(t, "user9-bad.mp4"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "PROCESSING_FAILED", resp.Code)
}

func TestRouter_PanicRecovered(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	mux := http.NewServeMux()
	mux.HandleFunc("POST /process", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	handler := ChainMiddleware(
		RecoveryMiddleware(logger),
		RequestIDMiddleware(),
		LoggingMiddleware(logger),
	)(mux)

	req := httptest.NewRequest(http.MethodPost, "/process", bytes.NewReader([]byte("{}")))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}
