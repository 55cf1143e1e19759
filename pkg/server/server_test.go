package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/stampforge/pkg/jobs"
	"github.com/matzehuels/stampforge/pkg/pipeline"
	"github.com/matzehuels/stampforge/pkg/sample"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := log.New(io.Discard)
	runner := pipeline.NewRunner(nil, nil, logger)
	q := jobs.NewQueue(jobs.NewMemoryStore(), runner, jobs.QueueConfig{Dir: t.TempDir()})
	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)

	srv := httptest.NewServer(New(q, logger, Config{MaxUpload: 1 << 20}).Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		q.Stop()
	})
	return srv
}

func upload(t *testing.T, url, filename string, data []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(url+"/api/convert", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func waitForJob(t *testing.T, url, id string) map[string]any {
	t.Helper()
	var job map[string]any
	require.Eventually(t, func() bool {
		resp, err := http.Get(url + "/api/jobs/" + id)
		if err != nil || resp.StatusCode != http.StatusOK {
			return false
		}
		job = decode[map[string]any](t, resp)
		return jobs.Status(job["status"].(string)).Done()
	}, 30*time.Second, 25*time.Millisecond)
	return job
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, "ok", body["status"])
}

func TestConvertAndDownload(t *testing.T) {
	srv := newTestServer(t)
	var png bytes.Buffer
	require.NoError(t, sample.WritePNG(&png, sample.ShapeCircle, 120))

	resp := upload(t, srv.URL, "logo.png", png.Bytes())
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Location"))
	job := decode[map[string]any](t, resp)
	id := job["id"].(string)

	done := waitForJob(t, srv.URL, id)
	assert.Equal(t, "succeeded", done["status"])

	resp, err := http.Get(srv.URL + "/api/jobs/" + id + "/download")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "logo.stl")
	stl, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 84+50*int(done["triangles"].(float64)), len(stl))
}

func TestFailedConversionDeliversOriginal(t *testing.T) {
	srv := newTestServer(t)
	data := []byte("this is not an image")

	resp := upload(t, srv.URL, "broken.jpg", data)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	id := decode[map[string]any](t, resp)["id"].(string)

	done := waitForJob(t, srv.URL, id)
	assert.Equal(t, "failed", done["status"])
	assert.Equal(t, "INVALID_IMAGE", done["error_code"])

	resp, err := http.Get(srv.URL + "/api/jobs/" + id + "/download")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "broken.jpg")
	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestConvertRejectsBadUploads(t *testing.T) {
	srv := newTestServer(t)
	tests := []struct {
		name     string
		filename string
		data     []byte
	}{
		{"unsupported type", "logo.gif", []byte("GIF89a")},
		{"hidden file", ".logo.png", []byte("x")},
		{"too large", "big.png", make([]byte, 1<<20+4096)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := upload(t, srv.URL, tt.filename, tt.data)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			body := decode[map[string]string](t, resp)
			assert.NotEmpty(t, body["code"])
		})
	}

	resp, err := http.Post(srv.URL+"/api/convert", "text/plain", bytes.NewReader([]byte("x")))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestJobLookupErrors(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/jobs/not-a-uuid")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/jobs/00000000-0000-4000-8000-000000000000/download")
	require.NoError(t, err)
	body := decode[map[string]string](t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "JOB_NOT_FOUND", body["code"])
}

func TestListJobs(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/jobs")
	require.NoError(t, err)
	list := decode[map[string][]map[string]any](t, resp)
	assert.Empty(t, list["jobs"])

	upload(t, srv.URL, "a.png", []byte("x")).Body.Close()
	upload(t, srv.URL, "b.png", []byte("y")).Body.Close()

	resp, err = http.Get(srv.URL + "/api/jobs?limit=1")
	require.NoError(t, err)
	list = decode[map[string][]map[string]any](t, resp)
	assert.Len(t, list["jobs"], 1)

	resp, err = http.Get(srv.URL + "/api/jobs?limit=zero")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor("JOB_NOT_FOUND"))
	assert.Equal(t, http.StatusBadRequest, statusFor("INVALID_PATH"))
	assert.Equal(t, http.StatusInternalServerError, statusFor("STORAGE_ERROR"))
}
