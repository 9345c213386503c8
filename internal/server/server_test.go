package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docchat/internal/chat"
	"github.com/fyrsmithlabs/docchat/internal/chunker"
	"github.com/fyrsmithlabs/docchat/internal/extract"
	"github.com/fyrsmithlabs/docchat/internal/ingest"
	"github.com/fyrsmithlabs/docchat/internal/retrieval"
	"github.com/fyrsmithlabs/docchat/internal/store"
	"github.com/fyrsmithlabs/docchat/internal/vectorstore"
)

type memEmbedder struct{}

func (memEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i])), 1}
	}
	return out, nil
}

func (memEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text)), 1}, nil
}

// memIndex is a minimal in-memory index for handler tests.
type memIndex struct {
	entries []vectorstore.Entry
}

func (m *memIndex) Add(_ context.Context, entries []vectorstore.Entry) error {
	m.entries = append(m.entries, entries...)
	return nil
}

func (m *memIndex) Query(_ context.Context, _ []float32, topK int) ([]vectorstore.Match, error) {
	matches := make([]vectorstore.Match, 0, len(m.entries))
	for _, e := range m.entries {
		matches = append(matches, vectorstore.Match{ID: e.ID, Text: e.Text, Metadata: e.Metadata})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (m *memIndex) Count(_ context.Context) (int, error) { return len(m.entries), nil }
func (m *memIndex) Close() error                         { return nil }

type scriptedCompleter struct {
	reply string
	err   error
}

func (s *scriptedCompleter) Complete(_ context.Context, _ []chat.Message) (string, error) {
	return s.reply, s.err
}

func setupTestServer(t *testing.T, completer chat.Completer) (*Server, *memIndex) {
	t.Helper()
	dir := t.TempDir()

	st, err := store.New(store.Config{Path: filepath.Join(dir, "docchat.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	idx := &memIndex{}
	retriever, err := retrieval.NewService(memEmbedder{}, idx, zap.NewNop())
	require.NoError(t, err)

	chatSvc, err := chat.NewService(st, retriever, completer, chat.ServiceConfig{}, zap.NewNop())
	require.NoError(t, err)

	ch, err := chunker.New(chunker.DefaultChunkSize, chunker.DefaultOverlap)
	require.NoError(t, err)
	router := extract.NewRouter(extract.NewOCR(false, zap.NewNop()), zap.NewNop())
	pipeline, err := ingest.NewPipeline(router, ch, memEmbedder{}, idx, zap.NewNop())
	require.NoError(t, err)

	srv, err := NewServer(chatSvc, pipeline, st, zap.NewNop(), Config{
		UploadDir: filepath.Join(dir, "uploads"),
	})
	require.NoError(t, err)
	return srv, idx
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	fw, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func TestHandleHealth(t *testing.T) {
	srv, _ := setupTestServer(t, &scriptedCompleter{reply: "ok"})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestHandleUpload(t *testing.T) {
	srv, idx := setupTestServer(t, &scriptedCompleter{reply: "ok"})

	body, contentType := multipartBody(t, "notes.txt", "Alpha paragraph.\nBeta paragraph.")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "notes.txt", resp.Name)
	assert.Equal(t, extract.ExtractorPlainText, resp.Extractor)
	assert.Equal(t, 1, resp.ChunkCount)
	assert.Equal(t, store.DocumentProcessed, resp.Status)
	assert.Len(t, idx.entries, 1)
}

func TestHandleUpload_MissingFile(t *testing.T) {
	srv, _ := setupTestServer(t, &scriptedCompleter{reply: "ok"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleUpload_UnreadableDocumentStillRecorded(t *testing.T) {
	srv, idx := setupTestServer(t, &scriptedCompleter{reply: "ok"})

	// A docx that is not a zip archive yields zero chunks but the upload
	// itself succeeds and is recorded.
	body, contentType := multipartBody(t, "broken.docx", "not a zip")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.ChunkCount)
	assert.Empty(t, idx.entries)
}

func TestHandleChat(t *testing.T) {
	srv, _ := setupTestServer(t, &scriptedCompleter{reply: "the answer"})

	payload, err := json.Marshal(ChatRequest{Message: "a question"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, "application/json")
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var reply chat.Reply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	assert.NotEmpty(t, reply.SessionID)
	assert.Equal(t, "the answer", reply.Answer)
}

func TestHandleChat_EmptyMessage(t *testing.T) {
	srv, _ := setupTestServer(t, &scriptedCompleter{reply: "x"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewReader([]byte(`{"message":"  "}`)))
	req.Header.Set(echo.HeaderContentType, "application/json")
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleChat_GenerationFailure(t *testing.T) {
	srv, _ := setupTestServer(t, &scriptedCompleter{err: chat.ErrGenerationFailed})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewReader([]byte(`{"message":"q"}`)))
	req.Header.Set(echo.HeaderContentType, "application/json")
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandleListSessionsAndMessages(t *testing.T) {
	srv, _ := setupTestServer(t, &scriptedCompleter{reply: "pong"})

	payload := []byte(`{"message":"ping","session_id":"sess-1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, "application/json")
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
	rec = httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var sessions []store.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, "sess-1", sessions[0].ID)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/sessions/sess-1/messages", nil)
	rec = httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var msgs []store.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
	require.Len(t, msgs, 2)
	assert.Equal(t, "ping", msgs[0].Content)
	assert.Equal(t, "pong", msgs[1].Content)
}

func TestHandleListDocuments_Empty(t *testing.T) {
	srv, _ := setupTestServer(t, &scriptedCompleter{reply: "ok"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

