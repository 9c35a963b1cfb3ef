package web

import (
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/voxanet/adwin/internal/config"
	"github.com/voxanet/adwin/internal/pipeline"
	"github.com/voxanet/adwin/internal/store"
)

type fakeEnqueuer struct {
	jobs []pipeline.Job
	err  error
}

func (f *fakeEnqueuer) Enqueue(job pipeline.Job) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, *store.Store, *fakeEnqueuer) {
	t.Helper()

	cfg := config.Default()
	cfg.Server.DataDir = t.TempDir()
	cfg.Server.AccessCode = "secret"
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}

	st, err := store.New(cfg.DataPath("adwin.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	enq := &fakeEnqueuer{}
	srv, err := NewServer(cfg, st, enq)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, st, enq
}

// loggedInClient returns an http.Client holding a valid session cookie.
func loggedInClient(t *testing.T, ts *httptest.Server) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	client := &http.Client{Jar: jar}

	resp, err := client.PostForm(ts.URL+"/login", url.Values{"access_code": {"secret"}})
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	return client
}

func seedClient(t *testing.T, st *store.Store) int64 {
	t.Helper()
	id, err := st.CreateClient(&store.Client{Name: "Acme", AccessToken: "tok", AdAccountID: "act_1"})
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func TestUnauthenticatedRedirectsToLogin(t *testing.T) {
	ts, _, _ := newTestServer(t)

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Errorf("status = %d, want 303", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/login" {
		t.Errorf("redirect to %q, want /login", loc)
	}
}

func TestLoginRejectsWrongCode(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.PostForm(ts.URL+"/login", url.Values{"access_code": {"wrong"}})
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestAnalyzeWithoutAPIKeyRefuses(t *testing.T) {
	ts, st, enq := newTestServer(t)
	client := loggedInClient(t, ts)
	clientID := seedClient(t, st)

	resp, err := client.PostForm(ts.URL+"/clients/"+itoa(clientID)+"/analyze", url.Values{"media_type": {"video"}})
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", resp.StatusCode)
	}
	if len(enq.jobs) != 0 {
		t.Error("job enqueued despite missing API key")
	}

	reports, err := st.ListReportsForClient(clientID)
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 0 {
		t.Error("report row created despite missing API key")
	}
}

func TestAnalyzeEnqueuesPendingReport(t *testing.T) {
	ts, st, enq := newTestServer(t)
	client := loggedInClient(t, ts)
	clientID := seedClient(t, st)
	if err := st.SetSetting("gemini_api_key", "k"); err != nil {
		t.Fatal(err)
	}

	resp, err := client.PostForm(ts.URL+"/clients/"+itoa(clientID)+"/analyze", url.Values{"media_type": {"video"}})
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	if len(enq.jobs) != 1 {
		t.Fatalf("enqueued %d jobs, want 1", len(enq.jobs))
	}
	job := enq.jobs[0]
	if job.MediaType != "video" || job.Client.ID != clientID {
		t.Errorf("job = %+v", job)
	}

	rep, err := st.GetReport(job.ReportID)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Status != store.StatusPending {
		t.Errorf("report status = %s, want PENDING", rep.Status)
	}
}

func TestAnalyzeTopPassesCount(t *testing.T) {
	ts, st, enq := newTestServer(t)
	client := loggedInClient(t, ts)
	clientID := seedClient(t, st)
	if err := st.SetSetting("gemini_api_key", "k"); err != nil {
		t.Fatal(err)
	}

	resp, err := client.PostForm(ts.URL+"/clients/"+itoa(clientID)+"/analyze-top", url.Values{"count": {"5"}})
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if len(enq.jobs) != 1 || enq.jobs[0].MediaType != "top" || enq.jobs[0].TopN != 5 {
		t.Errorf("jobs = %+v", enq.jobs)
	}
}

func TestReportStatusPolling(t *testing.T) {
	ts, st, _ := newTestServer(t)
	client := loggedInClient(t, ts)
	clientID := seedClient(t, st)

	reportID, err := st.CreateReport(clientID, "video")
	if err != nil {
		t.Fatal(err)
	}

	resp, err := client.Get(ts.URL + "/reports/" + itoa(reportID) + "/status")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("pending status = %d, want 204", resp.StatusCode)
	}

	if err := st.TransitionReport(reportID, store.StatusPending, store.StatusRunning); err != nil {
		t.Fatal(err)
	}
	if err := st.CompleteReport(reportID, store.ReportResult{AnalysisHTML: "<p>done</p>"}); err != nil {
		t.Fatal(err)
	}

	resp, err = client.Get(ts.URL + "/reports/" + itoa(reportID) + "/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("completed status = %d, want 200", resp.StatusCode)
	}
	if resp.Header.Get("HX-Trigger") != "reportComplete" {
		t.Error("HX-Trigger header missing on terminal report")
	}
}

func TestEditScript(t *testing.T) {
	ts, st, _ := newTestServer(t)
	client := loggedInClient(t, ts)
	clientID := seedClient(t, st)

	reportID, err := st.CreateReport(clientID, "video")
	if err != nil {
		t.Fatal(err)
	}
	if err := st.SaveAdScript(reportID, "a1", "<p>original</p>"); err != nil {
		t.Fatal(err)
	}
	scripts, err := st.ListAdScripts(reportID)
	if err != nil {
		t.Fatal(err)
	}

	req, err := http.NewRequest(http.MethodPatch,
		ts.URL+"/scripts/"+itoa(scripts[0].ID),
		strings.NewReader(`{"edited_html":"<p>mejorado</p>"}`))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}

	got, err := st.GetAdScript(scripts[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.EditedHTML != "<p>mejorado</p>" {
		t.Errorf("edited html = %q", got.EditedHTML)
	}
}

func TestDeleteClient(t *testing.T) {
	ts, st, _ := newTestServer(t)
	client := loggedInClient(t, ts)
	clientID := seedClient(t, st)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/clients/"+itoa(clientID), nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	if _, err := st.GetClient(clientID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("client still present: %v", err)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
