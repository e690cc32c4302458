package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dhalloran/pagesense/internal/capability"
	"github.com/dhalloran/pagesense/internal/config"
)

func testConfig() config.Config {
	return config.Config{
		Backend:        "fake",
		MaxUploadBytes: 1 << 20,
		RunTTL:         time.Minute,
		DocTTL:         time.Minute,

		LabelDelay:           5 * time.Millisecond,
		SummaryDelay:         5 * time.Millisecond,
		MinSectionChars:      50,
		MinDocumentChars:     200,
		MaxLabelWords:        8,
		SummaryProgressEvery: 5,
		LabelProgressEvery:   10,

		AnnounceSetDelay:   time.Millisecond,
		AnnounceClearDelay: 50 * time.Millisecond,
	}
}

func newTestServer(t *testing.T, fake *capability.Fake, cfg config.Config) *Server {
	t.Helper()
	log := slog.New(slog.DiscardHandler)
	return NewServer(fake, capability.NewCallStats(time.Hour), log, cfg)
}

func testPage() string {
	return fmt.Sprintf(`<html><body>
<h2>Intro</h2><p>%s</p>
<h2>Details</h2><p>%s</p>
</body></html>`, strings.Repeat("a", 150), strings.Repeat("b", 150))
}

func uploadDocument(t *testing.T, srv *Server, name, body string) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/documents?name="+name, strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		DocID string `json:"doc_id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	if resp.DocID == "" {
		t.Fatalf("missing doc_id")
	}
	return resp.DocID
}

func postCommand(t *testing.T, srv *Server, docID, command string) *httptest.ResponseRecorder {
	t.Helper()
	body := fmt.Sprintf(`{"command":%q}`, command)
	req := httptest.NewRequest(http.MethodPost, "/api/documents/"+docID+"/commands", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func waitForRun(t *testing.T, srv *Server, runID string) string {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		req := httptest.NewRequest(http.MethodGet, "/api/runs/"+runID, nil)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("run status = %d: %s", rec.Code, rec.Body.String())
		}
		var snap struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
			t.Fatalf("decode run snapshot: %v", err)
		}
		switch snap.Status {
		case "completed", "aborted", "unavailable":
			return snap.Status
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("run %s did not finish", runID)
	return ""
}

func TestUploadCommandPollDownload(t *testing.T) {
	fake := capability.NewFake()
	srv := newTestServer(t, fake, testConfig())

	docID := uploadDocument(t, srv, "page.html", testPage())

	rec := postCommand(t, srv, docID, "generate-section-summaries")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("command status = %d: %s", rec.Code, rec.Body.String())
	}
	var ack struct {
		Status string `json:"status"`
		RunID  string `json:"run_id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if ack.Status != "started" || ack.RunID == "" {
		t.Fatalf("unexpected ack: %+v", ack)
	}

	if status := waitForRun(t, srv, ack.RunID); status != "completed" {
		t.Fatalf("run finished as %s", status)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/documents/"+docID, nil)
	docRec := httptest.NewRecorder()
	srv.ServeHTTP(docRec, req)
	if docRec.Code != http.StatusOK {
		t.Fatalf("download status = %d", docRec.Code)
	}
	out := docRec.Body.String()
	if !strings.Contains(out, "pagesense-note") {
		t.Errorf("enriched document missing summary notes")
	}
	if !strings.Contains(out, "data-pagesense-processed") {
		t.Errorf("enriched document missing section markers")
	}
}

func TestCommandConflictWhileRunActive(t *testing.T) {
	fake := capability.NewFake()
	fake.Reply = func(string) (string, error) {
		time.Sleep(200 * time.Millisecond)
		return "summary", nil
	}
	srv := newTestServer(t, fake, testConfig())

	docID := uploadDocument(t, srv, "page.html", testPage())

	first := postCommand(t, srv, docID, "generate-section-summaries")
	if first.Code != http.StatusAccepted {
		t.Fatalf("first command status = %d", first.Code)
	}
	second := postCommand(t, srv, docID, "generate-overview")
	if second.Code != http.StatusConflict {
		t.Errorf("second command status = %d, want 409", second.Code)
	}

	var ack struct {
		RunID string `json:"run_id"`
	}
	if err := json.NewDecoder(first.Body).Decode(&ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	waitForRun(t, srv, ack.RunID)
}

func TestHealthCheckCommandAnsweredInline(t *testing.T) {
	fake := capability.NewFake()
	srv := newTestServer(t, fake, testConfig())

	docID := uploadDocument(t, srv, "page.html", testPage())
	rec := postCommand(t, srv, docID, "health-check")
	if rec.Code != http.StatusOK {
		t.Fatalf("health-check status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"available"`) {
		t.Errorf("unexpected health-check body: %s", rec.Body.String())
	}
	if got := fake.Sessions(); got != 0 {
		t.Errorf("health-check must not create a session, got %d", got)
	}
}

func TestUnknownCommandRejected(t *testing.T) {
	srv := newTestServer(t, capability.NewFake(), testConfig())
	docID := uploadDocument(t, srv, "page.html", testPage())

	rec := postCommand(t, srv, docID, "do-something-else")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestUploadUnsupportedType(t *testing.T) {
	srv := newTestServer(t, capability.NewFake(), testConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/documents?name=report.pdf", strings.NewReader("%PDF-1.4"))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestDocumentNotFound(t *testing.T) {
	srv := newTestServer(t, capability.NewFake(), testConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/documents/nope", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestAnnouncementsTranscript(t *testing.T) {
	fake := capability.NewFake()
	srv := newTestServer(t, fake, testConfig())

	docID := uploadDocument(t, srv, "page.html", testPage())
	rec := postCommand(t, srv, docID, "generate-section-summaries")
	var ack struct {
		RunID string `json:"run_id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	waitForRun(t, srv, ack.RunID)

	req := httptest.NewRequest(http.MethodGet, "/api/documents/"+docID+"/announcements", nil)
	annRec := httptest.NewRecorder()
	srv.ServeHTTP(annRec, req)
	if annRec.Code != http.StatusOK {
		t.Fatalf("announcements status = %d", annRec.Code)
	}
	var resp struct {
		Announcements []struct {
			Text string `json:"text"`
		} `json:"announcements"`
	}
	if err := json.NewDecoder(annRec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode announcements: %v", err)
	}
	if len(resp.Announcements) == 0 {
		t.Fatalf("expected at least one announcement")
	}
	last := resp.Announcements[len(resp.Announcements)-1].Text
	if !strings.Contains(last, "summaries finished") {
		t.Errorf("unexpected completion announcement: %q", last)
	}
}

func TestAuthRequiredWhenKeyConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.APIKey = "secret"
	srv := newTestServer(t, capability.NewFake(), cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/documents/some-id", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/documents/some-id", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/documents/some-id", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("authenticated status = %d, want 404", rec.Code)
	}

	// Health stays public.
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", rec.Code)
	}
}

func TestCapabilityStatsEndpoint(t *testing.T) {
	srv := newTestServer(t, capability.NewFake(), testConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/stats/capability", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"count"`) {
		t.Errorf("unexpected stats body: %s", rec.Body.String())
	}
}
