package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Crosspost/internal/domain"
	"github.com/shaiso/Crosspost/internal/repo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) (*Handler, *repo.MemoryStore) {
	t.Helper()
	store := repo.NewMemoryStore()
	return NewHandler(Config{Posts: store, Component: "test"}), store
}

func createPost(t *testing.T, store *repo.MemoryStore) (*domain.Post, []domain.Platform) {
	t.Helper()
	ctx := context.Background()

	var platforms []domain.Platform
	var ids []uuid.UUID
	for _, p := range domain.DefaultPlatforms()[:2] {
		p := p
		require.NoError(t, store.Upsert(ctx, &p))
		platforms = append(platforms, p)
		ids = append(ids, p.ID)
	}

	at := time.Now().Add(-time.Minute)
	post := &domain.Post{
		ID:            uuid.New(),
		Title:         "Release notes",
		Content:       "v2 is out",
		Status:        domain.PostStatusScheduled,
		ScheduledTime: &at,
		CreatedAt:     at,
		UpdatedAt:     at,
	}
	require.NoError(t, store.CreatePost(ctx, post, ids))
	return post, platforms
}

// --- Health Tests ---

func TestHealth_OK(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.NewMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "test", resp.Component)
}

func TestHealth_NotReady(t *testing.T) {
	h := NewHandler(Config{Ready: func(context.Context) error { return errors.New("db down") }})

	rec := httptest.NewRecorder()
	h.NewMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "db down")
}

func TestMetrics(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.NewMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

// --- Publishing Summary Tests ---

func TestGetPublishingSummary(t *testing.T) {
	h, store := newTestHandler(t)
	post, platforms := createPost(t, store)

	err := store.InPostTx(context.Background(), post.ID, func(tx repo.PostTx) error {
		_, err := tx.WriteTargetStatus(context.Background(), platforms[0].ID, repo.TargetUpdate{
			Status:       domain.TargetStatusFailed,
			ErrorMessage: "Publishing failed after 3 attempts: Service temporarily unavailable.",
		})
		return err
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/posts/"+post.ID.String()+"/publishing", nil)
	h.NewMux().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data PublishingResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

	assert.Equal(t, post.ID, resp.Data.Post.ID)
	assert.Equal(t, domain.PostStatusScheduled, resp.Data.Post.Status)
	assert.Equal(t, 2, resp.Data.Summary.Total)
	assert.Equal(t, 1, resp.Data.Summary.Failed)
	assert.Equal(t, 1, resp.Data.Summary.Pending)
	assert.Len(t, resp.Data.Summary.Details, 2)
}

func TestGetPublishingSummary_NotFound(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/posts/"+uuid.NewString()+"/publishing", nil)
	h.NewMux().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), string(ErrCodeNotFound))
}

func TestGetPublishingSummary_InvalidID(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.NewMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/posts/nope/publishing", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- Middleware Tests ---

func TestRecovery(t *testing.T) {
	h, _ := newTestHandler(t)
	panicking := Recovery(h.logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	panicking.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), string(ErrCodeInternalError)))
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	handler := Chain(mark("first"), mark("second"))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"first", "second"}, order)
}

func TestResponseWriter_CapturesStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, status: http.StatusOK}

	rw.WriteHeader(http.StatusTeapot)
	// повторный WriteHeader игнорируется
	rw.WriteHeader(http.StatusOK)
	n, err := rw.Write([]byte("short and stout"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusTeapot, rw.status)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, n, rw.written)
}

func TestRecovery_AfterHeaderWritten(t *testing.T) {
	h, _ := newTestHandler(t)
	handler := Recovery(h.logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		panic("late")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestHandleRepoError(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	assert.False(t, HandleRepoError(rec, h.logger, nil, "post not found"))

	rec = httptest.NewRecorder()
	assert.True(t, HandleRepoError(rec, h.logger, fmt.Errorf("get post: %w", repo.ErrNotFound), "post not found"))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// без сообщения ErrNotFound — внутренняя ошибка
	rec = httptest.NewRecorder()
	assert.True(t, HandleRepoError(rec, h.logger, repo.ErrNotFound, ""))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

// --- Server Tests ---

func TestServe_StopsOnCancel(t *testing.T) {
	h, _ := newTestHandler(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- Serve(ctx, 0, h.NewMux(), h.logger) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(shutdownTimeout):
		t.Fatal("server did not stop")
	}
}
