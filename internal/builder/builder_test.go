package builder

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/facundoguellutn/stoodeochat/internal/api/middleware"
	"github.com/facundoguellutn/stoodeochat/internal/config"
	"github.com/facundoguellutn/stoodeochat/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseTenantSeeds(t *testing.T) {
	tenants, err := parseTenantSeeds([]string{"acme:Acme SA", " beta ", ""})
	require.NoError(t, err)
	assert.Equal(t, []entity.Tenant{
		{ID: "acme", Name: "Acme SA"},
		{ID: "beta", Name: "beta"},
	}, tenants)

	_, err = parseTenantSeeds([]string{":sin id"})
	require.ErrorIs(t, err, entity.ErrInvalidParameter)

	_, err = parseTenantSeeds([]string{"acme", "acme:otra"})
	require.ErrorIs(t, err, entity.ErrInvalidParameter)
}

func testConfig() *config.Config {
	return &config.Config{
		HTTPRequestTimeout: time.Minute,
		CORSAllowedOrigins: []string{"*"},
		StorageDriver:      config.StorageDriverMemory,
		TenantCacheTTL:     time.Minute,
		EmbeddingConnectorCfg: config.EmbeddingConnectorConfig{
			Model:      entity.DefaultEmbeddingModel,
			BatchSize:  16,
			Dimensions: entity.EmbeddingDimensions,
		},
		LLMConnectorCfg: config.LLMConnectorConfig{
			GenerationTimeout: 5 * time.Second,
			HistoryLimit:      20,
		},
		RetrievalCfg: config.RetrievalConfig{
			Limit:               5,
			MaxLimit:            50,
			MinScore:            0.5,
			CandidateMultiplier: 20,
			MaxCandidates:       1000,
		},
		ChunkingCfg:   config.ChunkingConfig{MinSize: 300, MaxSize: 800, Overlap: 100},
		ChannelCfg:    config.ChannelConfig{MessageCost: 0.01, Model: "twilio-whatsapp", Source: "whatsapp", ReplyMaxChars: 1500},
		FileUploadCfg: config.FileUploadConfig{MaxFileSize: 1 << 20, MaxUploadSize: 2 << 20},
		EnableMocks:   true,
	}
}

type testServer struct {
	t       *testing.T
	handler http.Handler
}

func (s *testServer) do(req *http.Request, tenant string) *httptest.ResponseRecorder {
	if tenant != "" {
		req.Header.Set(middleware.TenantHeader, tenant)
		req.Header.Set(middleware.UserHeader, "user-1")
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) postJSON(path, body, tenant string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return s.do(req, tenant)
}

func (s *testServer) upload(filename, content, tenant string) *httptest.ResponseRecorder {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(s.t, err)
	_, err = part.Write([]byte(content))
	require.NoError(s.t, err)
	require.NoError(s.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/documents", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return s.do(req, tenant)
}

func TestMemoryStackEndToEnd(t *testing.T) {
	store, err := setupMemoryStorage(context.Background(), []string{"acme:Acme SA", "beta"}, entity.EmbeddingDimensions, zap.NewNop())
	require.NoError(t, err)
	s := &testServer{t: t, handler: buildHandler(testConfig(), store, zap.NewNop())}

	rec := s.do(httptest.NewRequest(http.MethodGet, "/health", nil), "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.upload("horarios.txt", "El horario de atención es de lunes a viernes de 9 a 18 horas.", "acme")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var processed entity.ProcessDocumentResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &processed))
	assert.Equal(t, 1, processed.ChunkCount)

	rec = s.postJSON("/search", `{"query":"horario de atención de lunes a viernes"}`, "acme")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var found entity.SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &found))
	require.Len(t, found.Results, 1)
	assert.Equal(t, "horarios.txt", found.Results[0].DocumentName)

	rec = s.postJSON("/search", `{"query":"horario de atención de lunes a viernes"}`, "beta")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"results":[]}`, rec.Body.String())

	rec = s.postJSON("/chat", `{"message":"¿Qué horario tienen?"}`, "acme")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var answer entity.ChatAnswer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &answer))
	assert.Equal(t, "Respuesta simulada a: ¿Qué horario tienen?", answer.Text)
	assert.Equal(t, answer.ConversationID, rec.Header().Get("X-Conversation-Id"))

	rec = s.do(httptest.NewRequest(http.MethodGet, "/conversations/"+answer.ConversationID, nil), "acme")
	require.Equal(t, http.StatusOK, rec.Code)
	var detail entity.ConversationDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Len(t, detail.Messages, 2)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/documents/"+processed.DocumentID+"/export?format=pdf", nil), "acme")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))

	rec = s.do(httptest.NewRequest(http.MethodGet, "/documents/"+processed.DocumentID+"/export?format=docx", nil), "acme")
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodDelete, "/documents/"+processed.DocumentID, nil), "acme")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(httptest.NewRequest(http.MethodGet, "/documents/"+processed.DocumentID, nil), "acme")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMemoryStackIdentityErrors(t *testing.T) {
	store, err := setupMemoryStorage(context.Background(), []string{"acme"}, entity.EmbeddingDimensions, zap.NewNop())
	require.NoError(t, err)
	s := &testServer{t: t, handler: buildHandler(testConfig(), store, zap.NewNop())}

	rec := s.postJSON("/search", `{"query":"x"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.postJSON("/search", `{"query":"x"}`, "ghost")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSetupLicenses_WithoutKey(t *testing.T) {
	cfg := testConfig()
	cfg.UnidocLicenseKey = ""

	require.NoError(t, setupLicenses(cfg, zap.NewNop()))
	assert.Empty(t, formatterOptions(cfg))

	cfg.UnidocLicenseKey = "key"
	assert.Len(t, formatterOptions(cfg), 1)
}
