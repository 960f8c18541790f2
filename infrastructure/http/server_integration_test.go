package http

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/uptrace/bun"

	"kpidashboard/infrastructure/actions"
	"kpidashboard/infrastructure/audit"
	"kpidashboard/infrastructure/cache"
	"kpidashboard/infrastructure/dataset"
	"kpidashboard/infrastructure/filter"
	"kpidashboard/infrastructure/pipeline"
	sessioncookie "kpidashboard/infrastructure/session"
	"kpidashboard/infrastructure/sqlite"
)

const productionTSV = "Date\tShift\tPlanned_Quantity\tProduced_Quantity\tOEE\tPerformance\tAvailability\tQuality\tDowntime_Minutes\tAvailable_Time_Minutes\n" +
	"2024-01-05\tA\t100\t90\t0.82\t0.9\t0.93\t0.98\t25\t480\n" +
	"2024-01-18\tB\t50\t40\t0.78\t0.88\t0.91\t0.97\t40\t480\n" +
	"2024-02-02\tA\t120\t118\t0.9\t0.95\t0.96\t0.99\t10\t480\n"

const occurrencesTSV = "id\tdate\tstatus\tseverity\ttype_nonconformity\tproduct\tcustomer\n" +
	"NC-001\t2024-01-07\tOpen\tHigh\tScratch\tValve\tPortugal\n" +
	"NC-002\t2024-01-21\tClosed\tlow\tDent\tPump\tSpain\n" +
	"NC-003\t2024-02-03\tOpen\tMedium\tScratch\tValve\tFrance\n"

type integrationEnv struct {
	server   *httptest.Server
	db       *sqlite.DB
	sessions *cache.DashboardSessionCache
}

func setupIntegrationServer(t *testing.T) (*integrationEnv, *http.Client) {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "production_data.csv"), []byte(productionTSV), 0o644); err != nil {
		t.Fatalf("write production data: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "occurences_data.csv"), []byte(occurrencesTSV), 0o644); err != nil {
		t.Fatalf("write occurrences data: %v", err)
	}
	data, err := dataset.Load(dir, "production_data.csv", "occurences_data.csv")
	if err != nil {
		t.Fatalf("load datasets: %v", err)
	}

	db, err := sqlite.OpenDB(filepath.Join(dir, "server-integration.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("runtime caller unavailable")
	}
	migrationsDir := filepath.Join(filepath.Dir(file), "..", "sqlite", "migrations")
	if err := sqlite.ApplyMigrations(context.Background(), db, migrationsDir); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	sessions := cache.NewDashboardSessionCache(time.Hour)
	p := pipeline.New(data, filter.New(filter.FacetModeParity), nil)
	s := NewServer("127.0.0.1:0", db, p, sessions, audit.NewService(), actions.ModeKeyed, time.Hour)
	ts := httptest.NewServer(s.router)
	env := &integrationEnv{server: ts, db: db, sessions: sessions}
	t.Cleanup(func() {
		env.server.Close()
		_ = env.db.Close()
	})

	return env, newHTTPClient(t)
}

func newHTTPClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func postForm(t *testing.T, client *http.Client, baseURL, path string, data url.Values) *http.Response {
	t.Helper()
	if data == nil {
		data = url.Values{}
	}
	if token := csrfToken(t, client, baseURL); token != "" {
		data.Set("_csrf", token)
	}
	resp, err := client.PostForm(baseURL+path, data)
	if err != nil {
		t.Fatalf("POST %s failed: %v", path, err)
	}
	return resp
}

func get(t *testing.T, client *http.Client, baseURL, path string) *http.Response {
	t.Helper()
	resp, err := client.Get(baseURL + path)
	if err != nil {
		t.Fatalf("GET %s failed: %v", path, err)
	}
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}

func cookieValue(t *testing.T, client *http.Client, baseURL, name string) string {
	t.Helper()
	u, err := url.Parse(baseURL)
	if err != nil {
		t.Fatalf("parse base url: %v", err)
	}
	for _, c := range client.Jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func csrfToken(t *testing.T, client *http.Client, baseURL string) string {
	t.Helper()
	return cookieValue(t, client, baseURL, "X-CSRF-Token")
}

func openDashboard(t *testing.T, client *http.Client, baseURL string) {
	t.Helper()
	resp := get(t, client, baseURL, "/dashboard")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected dashboard 200, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()
}

func countAuditRows(t *testing.T, db *sqlite.DB, entityID string) int64 {
	t.Helper()
	var count int64
	err := db.WithReadTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`SELECT COUNT(*) FROM audit_logs WHERE entity_id = ?`, entityID).Scan(ctx, &count)
	})
	if err != nil {
		t.Fatalf("count audit rows: %v", err)
	}
	return count
}

func countExportRunsForSessionType(t *testing.T, db *sqlite.DB, sessionID, exportType string) int64 {
	t.Helper()
	var count int64
	err := db.WithReadTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`SELECT COUNT(*) FROM export_runs WHERE session_id = ? AND export_type = ?`, sessionID, exportType).Scan(ctx, &count)
	})
	if err != nil {
		t.Fatalf("count export runs: %v", err)
	}
	return count
}

func TestRootRedirectsAndHealth(t *testing.T) {
	env, client := setupIntegrationServer(t)

	resp := get(t, client, env.server.URL, "/")
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/dashboard" {
		t.Fatalf("expected redirect to /dashboard, got %d %s", resp.StatusCode, resp.Header.Get("Location"))
	}

	resp = get(t, client, env.server.URL, "/health")
	if body := readBody(t, resp); resp.StatusCode != http.StatusOK || body != "ok" {
		t.Fatalf("unexpected health response %d %q", resp.StatusCode, body)
	}
	if resp.Header.Get("X-Frame-Options") != "DENY" {
		t.Fatalf("secure headers missing")
	}
}

func TestAssetsServed(t *testing.T) {
	env, client := setupIntegrationServer(t)
	for _, path := range []string{"/assets/app.css", "/assets/dashboard.js"} {
		resp := get(t, client, env.server.URL, path)
		body := readBody(t, resp)
		if resp.StatusCode != http.StatusOK || body == "" {
			t.Fatalf("asset %s: status %d", path, resp.StatusCode)
		}
	}
}

func TestDashboardStartsSession(t *testing.T) {
	env, client := setupIntegrationServer(t)
	openDashboard(t, client, env.server.URL)

	token := cookieValue(t, client, env.server.URL, sessioncookie.CookieName)
	if token == "" {
		t.Fatalf("expected session cookie")
	}
	if env.sessions.Len() != 1 {
		t.Fatalf("expected one cached session, got %d", env.sessions.Len())
	}

	openDashboard(t, client, env.server.URL)
	if got := cookieValue(t, client, env.server.URL, sessioncookie.CookieName); got != token || env.sessions.Len() != 1 {
		t.Fatalf("session not reused: %s vs %s (%d sessions)", got, token, env.sessions.Len())
	}
}

func TestCSRFPostWithoutTokenRejected(t *testing.T) {
	env, client := setupIntegrationServer(t)

	// No GET first: no CSRF token available in cookie or form.
	resp, err := client.PostForm(env.server.URL+"/dashboard/kpi", url.Values{"kpi": {"Quality"}})
	if err != nil {
		t.Fatalf("post kpi: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for missing csrf, got %d", resp.StatusCode)
	}
}

func TestCSRFPostWithTokenAccepted(t *testing.T) {
	env, client := setupIntegrationServer(t)
	openDashboard(t, client, env.server.URL)

	resp := postForm(t, client, env.server.URL, "/dashboard/kpi", url.Values{"kpi": {"Quality"}})
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", resp.StatusCode)
	}
}

func TestCSRFPostWithoutToken_SameOriginRefererAccepted(t *testing.T) {
	env, client := setupIntegrationServer(t)
	openDashboard(t, client, env.server.URL)

	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/dashboard/kpi", strings.NewReader("kpi=Availability"))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", env.server.URL+"/dashboard")

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("post kpi without csrf token: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected same-origin csrf fallback 303, got %d", resp.StatusCode)
	}
}

func TestCSRFPostWithoutToken_CrossOriginRejected(t *testing.T) {
	env, client := setupIntegrationServer(t)
	openDashboard(t, client, env.server.URL)

	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/dashboard/actions", strings.NewReader("id=NC-001&text=x"))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Referer", "https://evil.example/attack")

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("post cross-origin request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for cross-origin missing csrf token, got %d", resp.StatusCode)
	}
	if n := countAuditRows(t, env.db, "NC-001"); n != 0 {
		t.Fatalf("rejected request must not be journaled, got %d rows", n)
	}
}

func TestInvalidDateRangeShowsStatus(t *testing.T) {
	env, client := setupIntegrationServer(t)
	openDashboard(t, client, env.server.URL)

	resp := postForm(t, client, env.server.URL, "/dashboard/filters", url.Values{"start": {"2024-02-01"}, "end": {"2024-01-01"}})
	_ = resp.Body.Close()
	location := resp.Header.Get("Location")
	if resp.StatusCode != http.StatusSeeOther || !strings.Contains(location, "Invalid+date+range") {
		t.Fatalf("expected invalid range redirect, got %d %s", resp.StatusCode, location)
	}

	body := readBody(t, get(t, client, env.server.URL, location))
	if !strings.Contains(body, "Invalid date range") {
		t.Fatalf("status message not rendered")
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	env, alice := setupIntegrationServer(t)
	bob := newHTTPClient(t)
	openDashboard(t, alice, env.server.URL)
	openDashboard(t, bob, env.server.URL)

	resp := postForm(t, alice, env.server.URL, "/dashboard/actions", url.Values{"id": {"NC-001"}, "text": {"Alice only"}})
	_ = resp.Body.Close()

	body := readBody(t, get(t, bob, env.server.URL, "/dashboard?tab=quality&id=NC-001"))
	if strings.Contains(body, "Alice only") {
		t.Fatalf("corrective action leaked across sessions")
	}
	body = readBody(t, get(t, alice, env.server.URL, "/dashboard?tab=quality&id=NC-001"))
	if !strings.Contains(body, "Alice only") {
		t.Fatalf("corrective action missing in owning session")
	}
}

func TestServerEndToEndCoreFlow(t *testing.T) {
	env, client := setupIntegrationServer(t)
	openDashboard(t, client, env.server.URL)
	sessionID := cookieValue(t, client, env.server.URL, sessioncookie.CookieName)

	// Narrow to January, then annotate a January nonconformity.
	resp := postForm(t, client, env.server.URL, "/dashboard/filters", url.Values{
		"tab":   {"quality"},
		"start": {"2024-01-01"},
		"end":   {"2024-01-31"},
	})
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther || !strings.Contains(resp.Header.Get("Location"), "Filters+applied") {
		t.Fatalf("unexpected filters response %d %s", resp.StatusCode, resp.Header.Get("Location"))
	}

	resp = postForm(t, client, env.server.URL, "/dashboard/actions", url.Values{"id": {"NC-002"}, "text": {"Re-inspect pump batch"}})
	_ = resp.Body.Close()
	location := resp.Header.Get("Location")
	if resp.StatusCode != http.StatusSeeOther || !strings.Contains(location, "Successfully+saved") {
		t.Fatalf("unexpected action response %d %s", resp.StatusCode, location)
	}
	if n := countAuditRows(t, env.db, "NC-002"); n != 1 {
		t.Fatalf("expected one journal row, got %d", n)
	}

	// February's row is outside the view.
	resp = postForm(t, client, env.server.URL, "/dashboard/actions", url.Values{"id": {"NC-003"}, "text": {"x"}})
	_ = resp.Body.Close()
	if !strings.Contains(resp.Header.Get("Location"), "not+in+the+current+selection") {
		t.Fatalf("expected out-of-view rejection, got %s", resp.Header.Get("Location"))
	}

	body := readBody(t, get(t, client, env.server.URL, location))
	if !strings.Contains(body, "Successfully saved!") || !strings.Contains(body, "Re-inspect pump batch") {
		t.Fatalf("saved action not rendered")
	}

	resp = get(t, client, env.server.URL, "/api/dashboard")
	body = readBody(t, resp)
	if resp.Header.Get("Content-Type") != "application/json" || !strings.Contains(body, `"corrective_action":"Re-inspect pump batch"`) {
		t.Fatalf("api missing annotation: %s", body)
	}

	resp = get(t, client, env.server.URL, "/exports/nonconformities.csv")
	body = readBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("csv export status %d", resp.StatusCode)
	}
	if !strings.Contains(body, "corrective_action") || !strings.Contains(body, "NC-002,2024-01-21,Closed,Low,Dent,Pump,Spain,Re-inspect pump batch") {
		t.Fatalf("csv export missing annotated row:\n%s", body)
	}
	if strings.Contains(body, "NC-003") {
		t.Fatalf("csv export ignores filters")
	}
	if n := countExportRunsForSessionType(t, env.db, sessionID, "nonconformities_csv"); n != 1 {
		t.Fatalf("expected export run logged, got %d", n)
	}

	resp = get(t, client, env.server.URL, "/exports/nonconformities/NC-002/tag.pdf")
	body = readBody(t, resp)
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(body, "%PDF") {
		t.Fatalf("hold tag export failed: %d", resp.StatusCode)
	}

	// Reset brings February back and the keyed annotation stays on NC-002.
	resp = postForm(t, client, env.server.URL, "/dashboard/filters", url.Values{"reset": {"1"}})
	_ = resp.Body.Close()
	body = readBody(t, get(t, client, env.server.URL, "/exports/nonconformities.csv"))
	if !strings.Contains(body, "NC-003") || !strings.Contains(body, "Re-inspect pump batch") {
		t.Fatalf("reset lost rows or annotation:\n%s", body)
	}
}
