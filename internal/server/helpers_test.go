package server

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MeKo-Tech/cutout/internal/pipeline"
	"github.com/MeKo-Tech/cutout/internal/testutil"
	"github.com/stretchr/testify/require"
)

// newTestServer builds a server around a real pipeline.
func newTestServer(t *testing.T, mutate func(*Config)) *Server {
	t.Helper()
	cfg := Config{
		CORSOrigin:    "*",
		MaxUploadMB:   10,
		TimeoutSec:    30,
		MaxIterations: 10,
		Pipeline:      pipeline.DefaultConfig(),
	}
	cfg.Pipeline.Iterations = 3
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := NewServer(cfg)
	require.NoError(t, err)
	return s
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// sceneUpload returns the default test scene as PNG bytes and its truth mask.
func sceneUpload(t *testing.T) ([]byte, *image.Gray) {
	t.Helper()
	img, truth := testutil.GenerateScene(testutil.DefaultSceneConfig())
	return encodePNG(t, img), truth
}

// createMultipartRequest builds a POST /segment request.
func createMultipartRequest(t *testing.T, fields map[string]string, files map[string][]byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for name, data := range files {
		part, err := writer.CreateFormFile(name, name+".png")
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/segment", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// stubSegmenter fails every job with err.
type stubSegmenter struct {
	err error
}

func (s stubSegmenter) Segment(context.Context, pipeline.Job) (*pipeline.Output, error) {
	return nil, s.err
}

func (s stubSegmenter) Config() pipeline.Config { return pipeline.DefaultConfig() }
