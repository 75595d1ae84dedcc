package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmcopilot/internal/domain"
	"farmcopilot/internal/httpapi"
	"farmcopilot/internal/service"
)

type stubPipeline struct {
	ingestErr error
	upload    service.Upload
}

func (s *stubPipeline) Ingest(ctx context.Context, up service.Upload) (service.UploadSummary, error) {
	s.upload = up
	if s.ingestErr != nil {
		return service.UploadSummary{}, s.ingestErr
	}
	return service.UploadSummary{Filename: up.Filename, ChunkCount: 2, Message: "ok"}, nil
}

func (s *stubPipeline) Answer(ctx context.Context, q string) (service.Answer, error) {
	return service.Answer{Text: "echo " + q}, nil
}

func (s *stubPipeline) Status() service.Status { return service.Status{State: "ready"} }

func newServer(t *testing.T, p httpapi.Pipeline) *Client {
	t.Helper()
	gin.SetMode(gin.TestMode)
	srv := httptest.NewServer(httpapi.NewRouter(p, httpapi.Options{}, slog.New(slog.NewTextHandler(io.Discard, nil))))
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", 5*time.Second)
}

func TestClientRoundTrips(t *testing.T) {
	p := &stubPipeline{}
	c := newServer(t, p)
	ctx := context.Background()

	require.NoError(t, c.Health(ctx))

	st, err := c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ready", st.State)

	resp, err := c.Chat(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, "echo hello", resp.Response)

	path := filepath.Join(t.TempDir(), "guide.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))
	sum, err := c.Upload(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "guide.pdf", sum.Filename)
	assert.Equal(t, []byte("%PDF-1.4"), p.upload.Data)
}

func TestClientDecodesAPIError(t *testing.T) {
	c := newServer(t, &stubPipeline{ingestErr: domain.ErrExtraction})
	path := filepath.Join(t.TempDir(), "bad.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-"), 0o644))

	_, err := c.Upload(context.Background(), path)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Equal(t, httpapi.KindExtraction, apiErr.Kind)
}

func TestClientUploadMissingFile(t *testing.T) {
	c := New("http://127.0.0.1:1", time.Second)
	_, err := c.Upload(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
}
