package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsetai/askdocs/internal/models"
	"github.com/docsetai/askdocs/pkg/index"
	"github.com/docsetai/askdocs/pkg/ingest"
	"github.com/docsetai/askdocs/pkg/service"
)

type fakeLifecycle struct {
	rebuilds int
	prunes   int
	failures []ingest.Failure
}

func (f *fakeLifecycle) Rebuild(context.Context) (*index.BuildReport, error) {
	f.rebuilds++
	return &index.BuildReport{Failures: f.failures}, nil
}

func (f *fakeLifecycle) Prune(context.Context) (int, error) {
	f.prunes++
	return 0, nil
}

func (f *fakeLifecycle) Ready() bool          { return true }
func (f *fakeLifecycle) Status() index.Status { return index.StatusReady }
func (f *fakeLifecycle) Sources() []string    { return []string{"manual.pdf"} }

type fakeAnswerer struct {
	result *models.AnswerResult
	err    error
}

func (f *fakeAnswerer) Ask(context.Context, string) (*models.AnswerResult, error) {
	return f.result, f.err
}

type fixedLister struct{ docs []string }

func (f fixedLister) ListDocuments() ([]string, error) { return f.docs, nil }

func newTestServer(t *testing.T, answers *fakeAnswerer) (*httptest.Server, *fakeLifecycle) {
	t.Helper()
	mgr := &fakeLifecycle{}
	svc := service.NewWithConfig(service.ServiceConfig{Dir: t.TempDir()}, mgr, answers, fixedLister{docs: []string{"manual.pdf"}})
	srv := NewWithConfig(Config{}, svc)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, mgr
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t, &fakeAnswerer{})

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ready", body["index"])
}

func TestAsk_ReturnsAnswerWithSources(t *testing.T) {
	ts, _ := newTestServer(t, &fakeAnswerer{
		result: &models.AnswerResult{
			Text:         "Two years from purchase.",
			CitedSources: []string{"manual.pdf"},
			SourceStatus: models.SourcesCited,
		},
	})

	resp, err := http.Post(ts.URL+"/ask", "application/json",
		strings.NewReader(`{"question":"how long is the warranty?"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body askResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Two years from purchase.", body.Answer)
	assert.Equal(t, []string{"manual.pdf"}, body.Sources)
	assert.Equal(t, "cited", body.SourceStatus)
}

func TestAsk_EmptyQuestionRejected(t *testing.T) {
	ts, _ := newTestServer(t, &fakeAnswerer{})

	resp, err := http.Post(ts.URL+"/ask", "application/json", strings.NewReader(`{"question":"  "}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAsk_GenerationFailureIsFriendly(t *testing.T) {
	ts, _ := newTestServer(t, &fakeAnswerer{err: models.ErrGenerationFailed})

	resp, err := http.Post(ts.URL+"/ask", "application/json", strings.NewReader(`{"question":"hi"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotContains(t, body["error"], "generation failed")
	assert.NotEmpty(t, body["error"])
}

func multipartUpload(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUpload_AcceptsPDFAndRebuilds(t *testing.T) {
	ts, mgr := newTestServer(t, &fakeAnswerer{})

	buf, contentType := multipartUpload(t, "manual.pdf", "%PDF-1.4 test")
	resp, err := http.Post(ts.URL+"/upload", contentType, buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, 1, mgr.rebuilds)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "manual.pdf", body["document"])
	assert.Equal(t, "indexed", body["status"])
	assert.NotContains(t, body, "skipped")
}

func TestUpload_RejectsNonPDF(t *testing.T) {
	ts, mgr := newTestServer(t, &fakeAnswerer{})

	buf, contentType := multipartUpload(t, "notes.txt", "plain text")
	resp, err := http.Post(ts.URL+"/upload", contentType, buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, 0, mgr.rebuilds)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body["error"], "only PDF files are accepted")
}

func TestUpload_UnreadablePDFIsNotReportedAsIndexed(t *testing.T) {
	ts, mgr := newTestServer(t, &fakeAnswerer{})
	mgr.failures = []ingest.Failure{{Path: "broken.pdf", Err: models.ErrUnreadableDocument}}

	buf, contentType := multipartUpload(t, "broken.pdf", "not really a pdf")
	resp, err := http.Post(ts.URL+"/upload", contentType, buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "the document could not be read as a PDF", body["error"])
}

func TestUpload_ListsOtherSkippedDocuments(t *testing.T) {
	ts, mgr := newTestServer(t, &fakeAnswerer{})
	mgr.failures = []ingest.Failure{{Path: "old-corrupt.pdf", Err: models.ErrUnreadableDocument}}

	buf, contentType := multipartUpload(t, "manual.pdf", "%PDF-1.4 test")
	resp, err := http.Post(ts.URL+"/upload", contentType, buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var body struct {
		Document string   `json:"document"`
		Status   string   `json:"status"`
		Skipped  []string `json:"skipped"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "manual.pdf", body.Document)
	assert.Equal(t, []string{"old-corrupt.pdf"}, body.Skipped)
}

func TestUpload_InternalFailureStaysGeneric(t *testing.T) {
	// a corpus "directory" that is actually a file makes storage fail
	// with an os-level error
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	svc := service.NewWithConfig(service.ServiceConfig{Dir: blocker}, &fakeLifecycle{}, &fakeAnswerer{}, fixedLister{})
	ts := httptest.NewServer(NewWithConfig(Config{}, svc).Handler())
	t.Cleanup(ts.Close)

	buf, contentType := multipartUpload(t, "manual.pdf", "%PDF-1.4 test")
	resp, err := http.Post(ts.URL+"/upload", contentType, buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotContains(t, body["error"], blocker)
	assert.NotContains(t, body["error"], "mkdir")
	assert.NotEmpty(t, body["error"])
}

func TestDocuments_ListAndDelete(t *testing.T) {
	ts, mgr := newTestServer(t, &fakeAnswerer{})

	resp, err := http.Get(ts.URL + "/documents")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Documents []string `json:"documents"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, []string{"manual.pdf"}, body.Documents)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/documents?name=manual.pdf", nil)
	require.NoError(t, err)
	del, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer del.Body.Close()
	assert.Equal(t, http.StatusOK, del.StatusCode)
	assert.Equal(t, 1, mgr.prunes)
}

func TestCORSPreflight(t *testing.T) {
	ts, _ := newTestServer(t, &fakeAnswerer{})

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/ask", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRenderAnswer(t *testing.T) {
	withSources := RenderAnswer(&models.AnswerResult{
		Text:         "answer",
		CitedSources: []string{"a.pdf", "b.pdf"},
	})
	assert.Equal(t, "answer\n\nSources: a.pdf, b.pdf", withSources)

	bare := RenderAnswer(&models.AnswerResult{Text: "answer"})
	assert.Equal(t, "answer", bare)
}
