package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dsjohal14/segqueue/internal/queue"
)

func setupTestHandler(t *testing.T) (*Handler, http.Handler) {
	t.Helper()
	dir := t.TempDir()
	q, err := queue.Open(filepath.Join(dir, "q"), 1<<20, queue.OpenDefault)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() { _ = q.Close() })

	h := NewHandler(q, zerolog.Nop())
	return h, NewRouter(h)
}

func TestHandleHealth(t *testing.T) {
	_, router := setupTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("expected healthy, got %v", resp.Status)
	}
	if resp.NewestTimestamp != -1 {
		t.Errorf("expected -1 on an empty queue, got %d", resp.NewestTimestamp)
	}
}

func TestHandleWriteAndStream(t *testing.T) {
	_, router := setupTestHandler(t)

	ts := int64(5)
	body, _ := json.Marshal(WriteRequest{TimestampMs: &ts, Payload: []byte("hello")})
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var wresp WriteResponse
	if err := json.NewDecoder(w.Body).Decode(&wresp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if wresp.TimestampMs != 5 {
		t.Errorf("expected timestamp 5, got %d", wresp.TimestampMs)
	}

	streamReq := httptest.NewRequest(http.MethodGet, "/v1/stream?from=0&timeout=1", nil)
	streamW := httptest.NewRecorder()
	router.ServeHTTP(streamW, streamReq)

	if streamW.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", streamW.Code, streamW.Body.String())
	}
	var sresp StreamResponse
	if err := json.NewDecoder(streamW.Body).Decode(&sresp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(sresp.Payload) != "hello" || sresp.TimestampMs != 5 {
		t.Errorf("unexpected stream response: %+v", sresp)
	}
}

func TestHandleWriteExplicitZeroTimestampIsPreserved(t *testing.T) {
	_, router := setupTestHandler(t)

	zero := int64(0)
	body, _ := json.Marshal(WriteRequest{TimestampMs: &zero, Payload: []byte("epoch")})
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp WriteResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.TimestampMs != 0 {
		t.Errorf("expected timestamp 0 to be preserved, got %d", resp.TimestampMs)
	}
}

func TestHandleWriteOmittedTimestampUsesCurrentTime(t *testing.T) {
	_, router := setupTestHandler(t)

	body, _ := json.Marshal(WriteRequest{Payload: []byte("now")})
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp WriteResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.TimestampMs <= 0 {
		t.Errorf("expected a current-time timestamp, got %d", resp.TimestampMs)
	}
}

func TestHandleStreamTimesOutWhenEmpty(t *testing.T) {
	_, router := setupTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/stream?from=0&timeout=0", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusRequestTimeout {
		t.Fatalf("expected 408, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHandleStreamReturnsGoneAfterQueueClosed(t *testing.T) {
	dir := t.TempDir()
	q, err := queue.Open(filepath.Join(dir, "q"), 1<<20, queue.OpenDefault)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	router := NewRouter(NewHandler(q, zerolog.Nop()))

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		req := httptest.NewRequest(http.MethodGet, "/v1/stream?from=0&timeout=-1", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		done <- w
	}()

	time.Sleep(20 * time.Millisecond)
	if err := q.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case w := <-done:
		if w.Code != http.StatusGone {
			t.Fatalf("expected 410, got %d: %s", w.Code, w.Body.String())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stream request never returned after queue close")
	}
}

func TestHandleSync(t *testing.T) {
	_, router := setupTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/sync", bytes.NewReader([]byte(`{"hard":false}`)))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHandleWriteInvalidJSON(t *testing.T) {
	_, router := setupTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/messages", bytes.NewReader([]byte("not json")))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
