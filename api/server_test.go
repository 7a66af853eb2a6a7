package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Ouadii-Zine/financify/internal/config"
	"github.com/Ouadii-Zine/financify/internal/engine"
	"github.com/Ouadii-Zine/financify/internal/logging"
	"github.com/Ouadii-Zine/financify/internal/rates"
	"github.com/Ouadii-Zine/financify/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Test Helpers
// ════════════════════════════════════════════════════════════════════

func testServer(t *testing.T, rs *rates.Service) *Server {
	t.Helper()
	now := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	eng := engine.New(models.DefaultCalculationParameters(),
		engine.WithWorkers(2),
		engine.WithClock(func() time.Time { return now }),
		engine.WithLogger(logging.Nop()),
	)
	cfg := &config.Config{}
	cfg.Rates.APIKey = "secret-rates-key"
	return NewServer(cfg, eng, rs, logging.Nop())
}

func do(t *testing.T, srv *Server, method, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

// decodeData re-decodes the envelope data into v.
func decodeData(t *testing.T, resp APIResponse, v any) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
}

const bookJSON = `{
  "name": "test",
  "loans": [{
    "id": "L1",
    "startDate": "2024-01-01",
    "endDate": "2029-01-01",
    "originalAmount": 1000000,
    "drawnAmount": 1000000,
    "pd": 0.01,
    "lgd": 0.45,
    "margin": 0.02,
    "referenceRate": 0.03,
    "internalRating": "BBB",
    "repaymentFrequency": "annual"
  }]
}`

const bookYAML = `
loans:
  - id: L1
    startDate: "2024-01-01"
    endDate: "2029-01-01"
    originalAmount: 1000000
    drawnAmount: 1000000
    pd: 0.01
    lgd: 0.45
    internalRating: BBB
`

// ════════════════════════════════════════════════════════════════════
// Health
// ════════════════════════════════════════════════════════════════════

func TestHandleHealth(t *testing.T) {
	srv := testServer(t, nil)
	for _, path := range []string{"/health", "/api/v1/health"} {
		rec := do(t, srv, http.MethodGet, path, "", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status: got %d, want %d", path, rec.Code, http.StatusOK)
		}
		resp := decodeResponse(t, rec)
		var h HealthResponse
		decodeData(t, resp, &h)
		if !resp.Success || h.Status != "ok" {
			t.Errorf("%s: got %+v", path, resp)
		}
		if h.Rates {
			t.Errorf("%s: rates should be false without a service", path)
		}
	}
}

// ════════════════════════════════════════════════════════════════════
// Loans and portfolio
// ════════════════════════════════════════════════════════════════════

func TestHandleLoanMetrics(t *testing.T) {
	srv := testServer(t, nil)
	rec := do(t, srv, http.MethodPost, "/api/v1/loans/metrics", "application/json", bookJSON)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body)
	}
	var loans []models.Loan
	decodeData(t, decodeResponse(t, rec), &loans)
	if len(loans) != 1 || loans[0].Metrics == nil {
		t.Fatalf("got %+v", loans)
	}
	// EL = 0.01 * 0.45 * 1M
	if el := loans[0].Metrics.ExpectedLoss; el < 4499.99 || el > 4500.01 {
		t.Errorf("ExpectedLoss: got %f, want 4500", el)
	}
}

func TestHandleLoanMetrics_BadRequests(t *testing.T) {
	srv := testServer(t, nil)
	tests := []struct {
		name string
		body string
	}{
		{"invalid JSON", "{invalid"},
		{"pd above one", `{"loans":[{"id":"L1","startDate":"2024-01-01","endDate":"2025-01-01","originalAmount":1,"pd":2}]}`},
		{"missing id", `{"loans":[{"startDate":"2024-01-01","endDate":"2025-01-01","originalAmount":1}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/api/v1/loans/metrics", "application/json", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status: got %d, want %d", rec.Code, http.StatusBadRequest)
			}
			resp := decodeResponse(t, rec)
			if resp.Success || resp.Error == "" {
				t.Errorf("got %+v, want an error", resp)
			}
		})
	}
}

func TestHandlePortfolioMetrics_YAML(t *testing.T) {
	srv := testServer(t, nil)
	rec := do(t, srv, http.MethodPost, "/api/v1/portfolio/metrics", "application/yaml", bookYAML)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body)
	}
	var pm models.PortfolioMetrics
	decodeData(t, decodeResponse(t, rec), &pm)
	if pm.LoanCount != 1 {
		t.Errorf("LoanCount: got %d, want 1", pm.LoanCount)
	}
	if pm.TotalExposure != 1_000_000 {
		t.Errorf("TotalExposure: got %f, want 1000000", pm.TotalExposure)
	}
}

func TestHandleSimulate(t *testing.T) {
	srv := testServer(t, nil)
	body := strings.Replace(bookJSON, `"name": "test",`, `"name": "test", "shock": {"pdMultiplier": 2, "lgdMultiplier": 1},`, 1)
	rec := do(t, srv, http.MethodPost, "/api/v1/portfolio/simulate", "application/json", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body)
	}
	var res engine.SimulationResult
	decodeData(t, decodeResponse(t, rec), &res)
	if res.Shock.PDMultiplier != 2 {
		t.Errorf("shock: got %+v", res.Shock)
	}
	base, sim := res.Base.TotalExpectedLoss, res.Simulated.TotalExpectedLoss
	if sim < 2*base-0.01 || sim > 2*base+0.01 {
		t.Errorf("simulated EL: got %f, want %f", sim, 2*base)
	}
}

func TestHandleStress(t *testing.T) {
	srv := testServer(t, nil)
	rec := do(t, srv, http.MethodPost, "/api/v1/portfolio/stress", "application/json", bookJSON)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body)
	}
	var results []models.ScenarioResult
	decodeData(t, decodeResponse(t, rec), &results)
	want := models.DefaultCalculationParameters().StressScenarios
	if len(results) != len(want) {
		t.Fatalf("results: got %d, want %d", len(results), len(want))
	}
	for i, r := range results {
		if r.Scenario.Name != want[i].Name {
			t.Errorf("results[%d]: got %q, want %q", i, r.Scenario.Name, want[i].Name)
		}
	}
}

// ════════════════════════════════════════════════════════════════════
// Cash flows
// ════════════════════════════════════════════════════════════════════

const cashFlowLoan = `{"id":"L1","startDate":"2024-01-01","endDate":"2026-01-01","originalAmount":1000,"drawnAmount":1000,"margin":0.02,"referenceRate":0.03,"repaymentFrequency":"annual"}`

func TestHandleCashFlows(t *testing.T) {
	srv := testServer(t, nil)

	rec := do(t, srv, http.MethodPost, "/api/v1/loans/cashflows", "application/json",
		`{"loan":`+cashFlowLoan+`,"kind":"contractual"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body)
	}
	var flows []models.CashFlow
	decodeData(t, decodeResponse(t, rec), &flows)
	// drawdown, two interest payments, final repayment
	if len(flows) != 4 {
		t.Errorf("flows: got %d, want 4: %+v", len(flows), flows)
	}
}

func TestHandleCashFlows_ErrorSchedule(t *testing.T) {
	srv := testServer(t, nil)
	bad := strings.Replace(cashFlowLoan, "2026-01-01", "not-a-date", 1)

	rec := do(t, srv, http.MethodPost, "/api/v1/loans/cashflows", "application/json", `{"loan":`+bad+`}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
	resp := decodeResponse(t, rec)
	var flows []models.CashFlow
	decodeData(t, resp, &flows)
	if len(flows) != 1 || !flows[0].IsError() {
		t.Fatalf("got %+v, want one error flow", flows)
	}
	if !strings.HasPrefix(resp.Error, "Cash flow generation failed") {
		t.Errorf("error: got %q", resp.Error)
	}
}

func TestHandleCashFlows_UnknownKind(t *testing.T) {
	srv := testServer(t, nil)
	rec := do(t, srv, http.MethodPost, "/api/v1/loans/cashflows", "application/json",
		`{"loan":`+cashFlowLoan+`,"kind":"weekly"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleCashFlows_Stress(t *testing.T) {
	srv := testServer(t, nil)
	rec := do(t, srv, http.MethodPost, "/api/v1/loans/cashflows", "application/json",
		`{"loan":`+cashFlowLoan+`,"kind":"stress","stress":{"scenario":"DEFAULT"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body)
	}
	var flows []models.CashFlow
	decodeData(t, decodeResponse(t, rec), &flows)
	var sawDefault bool
	for _, f := range flows {
		if f.Type == models.FlowDefault {
			sawDefault = true
		}
	}
	if !sawDefault {
		t.Errorf("no default flow in %+v", flows)
	}
}

// ════════════════════════════════════════════════════════════════════
// Collateral and LGD
// ════════════════════════════════════════════════════════════════════

func TestHandleAnalyzeCollateral(t *testing.T) {
	srv := testServer(t, nil)
	body := `{"id":"P1","items":[
		{"id":"C1","category":"real_estate","value":300000,"volatility":0.1},
		{"id":"C2","category":"cash","value":100000}
	]}`
	rec := do(t, srv, http.MethodPost, "/api/v1/collateral/analyze", "application/json", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body)
	}
	var p models.CollateralPortfolio
	decodeData(t, decodeResponse(t, rec), &p)
	if p.TotalValue != 400_000 {
		t.Errorf("TotalValue: got %f, want 400000", p.TotalValue)
	}

	rec = do(t, srv, http.MethodPost, "/api/v1/collateral/analyze", "application/json", `{"items":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing id: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleLGDCurve(t *testing.T) {
	srv := testServer(t, nil)
	rec := do(t, srv, http.MethodPost, "/api/v1/lgd/curve", "application/json",
		`{"loan":`+cashFlowLoan+`,"stepMonths":6}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body)
	}
	var points []models.LGDPoint
	decodeData(t, decodeResponse(t, rec), &points)
	if len(points) == 0 || points[0].TimeInYears != 0 {
		t.Errorf("got %+v", points)
	}

	rec = do(t, srv, http.MethodPost, "/api/v1/lgd/curve", "application/json", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing loan: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

// ════════════════════════════════════════════════════════════════════
// Parameters, rates, metrics
// ════════════════════════════════════════════════════════════════════

func TestHandleGetParameters(t *testing.T) {
	srv := testServer(t, nil)
	rec := do(t, srv, http.MethodGet, "/api/v1/parameters", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var pr ParametersResponse
	decodeData(t, decodeResponse(t, rec), &pr)
	if pr.Parameters.TargetROE != 0.12 {
		t.Errorf("TargetROE: got %f, want 0.12", pr.Parameters.TargetROE)
	}
	if pr.Parameters.PDCurve["BBB"] != 0.002 {
		t.Errorf("PD curve BBB: got %f, want 0.002", pr.Parameters.PDCurve["BBB"])
	}
}

func TestHandleGetKeys(t *testing.T) {
	srv := testServer(t, nil)
	rec := do(t, srv, http.MethodGet, "/api/v1/parameters/keys", "", "")
	var keys []config.KeyStatus
	decodeData(t, decodeResponse(t, rec), &keys)
	if len(keys) != 1 || !keys[0].IsSet {
		t.Fatalf("got %+v", keys)
	}
	if strings.Contains(rec.Body.String(), "secret-rates-key") {
		t.Error("response leaks the unmasked key")
	}
}

type stubSource struct {
	rates []models.ReferenceRate
	err   error
}

func (s stubSource) Name() string { return "stub" }

func (s stubSource) Fetch(ctx context.Context) ([]models.ReferenceRate, error) {
	return s.rates, s.err
}

func TestHandleRates(t *testing.T) {
	asOf := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		svc    *rates.Service
		status int
	}{
		{"not configured", nil, http.StatusServiceUnavailable},
		{
			"ok",
			rates.NewService([]rates.Source{stubSource{rates: []models.ReferenceRate{{Index: "SOFR", Rate: 0.0533, AsOf: asOf}}}}, time.Minute, logging.Nop()),
			http.StatusOK,
		},
		{
			"all sources fail",
			rates.NewService([]rates.Source{stubSource{err: errors.New("boom")}}, time.Minute, logging.Nop()),
			http.StatusBadGateway,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testServer(t, tt.svc)
			rec := do(t, srv, http.MethodGet, "/api/v1/rates", "", "")
			if rec.Code != tt.status {
				t.Fatalf("status: got %d, want %d (%s)", rec.Code, tt.status, rec.Body)
			}
			if tt.status != http.StatusOK {
				return
			}
			var got []models.ReferenceRate
			decodeData(t, decodeResponse(t, rec), &got)
			if len(got) != 1 || got[0].Rate != 0.0533 {
				t.Errorf("got %+v", got)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := testServer(t, nil)
	do(t, srv, http.MethodGet, "/api/v1/health", "", "")

	rec := do(t, srv, http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `financify_http_requests_total{code="200",method="GET",route="/api/v1/health"} 1`) {
		t.Errorf("request counter missing from:\n%s", body)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := testServer(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/parameters", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got == "" {
		t.Error("missing Access-Control-Allow-Origin")
	}
}

func TestHandleReport(t *testing.T) {
	srv := testServer(t, nil)

	rec := do(t, srv, http.MethodPost, "/api/v1/portfolio/report?currency=EUR", "application/json", bookJSON)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "Portfolio Risk Report: test") {
		t.Error("missing report title")
	}

	rec = do(t, srv, http.MethodPost, "/api/v1/portfolio/report?format=text", "application/json", bookJSON)
	if !strings.Contains(rec.Body.String(), "PORTFOLIO SUMMARY") {
		t.Errorf("text report: got %s", rec.Body)
	}

	rec = do(t, srv, http.MethodPost, "/api/v1/portfolio/report?format=pdf", "application/json", bookJSON)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("pdf: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
