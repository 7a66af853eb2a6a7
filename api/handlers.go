package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/Ouadii-Zine/financify/internal/analysis/cashflow"
	"github.com/Ouadii-Zine/financify/internal/analysis/portfolio"
	"github.com/Ouadii-Zine/financify/internal/engine"
	"github.com/Ouadii-Zine/financify/internal/loanbook"
	"github.com/Ouadii-Zine/financify/internal/rates"
	"github.com/Ouadii-Zine/financify/internal/report"
	"github.com/Ouadii-Zine/financify/pkg/models"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// SimulateRequest is the body for POST /api/v1/portfolio/simulate: a loan
// book plus the shock to apply.
type SimulateRequest struct {
	loanbook.Book
	Shock portfolio.Shock `json:"shock"`
}

// CashFlowRequest is the body for POST /api/v1/loans/cashflows. The loan is
// not validated up front: a loan that cannot be scheduled yields the error
// schedule.
type CashFlowRequest struct {
	Loan   *models.Loan           `json:"loan"           validate:"-"`
	Kind   engine.ScheduleKind    `json:"kind,omitempty" validate:"omitempty,oneof=contractual forecast stress"`
	Stress cashflow.StressOptions `json:"stress"`
}

// CurveRequest is the body for POST /api/v1/lgd/curve.
type CurveRequest struct {
	Loan       *models.Loan `json:"loan"                 validate:"required"`
	StepMonths int          `json:"stepMonths,omitempty" validate:"gte=0,lte=120"`
}

// ParametersResponse is returned by GET /api/v1/parameters.
type ParametersResponse struct {
	Parameters models.CalculationParameters `json:"parameters"`
	Workers    int                          `json:"workers"`
}

func (s *Server) handleLoanMetrics(w http.ResponseWriter, r *http.Request) {
	book, ok := decodeBook(w, r)
	if !ok {
		return
	}
	loans, err := s.engine.LoanMetrics(r.Context(), book)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: loans})
}

func (s *Server) handlePortfolioMetrics(w http.ResponseWriter, r *http.Request) {
	book, ok := decodeBook(w, r)
	if !ok {
		return
	}
	pm, err := s.engine.Portfolio(r.Context(), book)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: pm})
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "read body: "+err.Error())
		return
	}
	var req SimulateRequest
	if err := json.Unmarshal(data, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	// The book goes through the loan book parser so that its parameters
	// section is read the same way as on every other route.
	book, err := loanbook.Parse(data, loanbook.FormatJSON)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid loan book: "+err.Error())
		return
	}
	req.Book = *book
	res, err := s.engine.Simulate(r.Context(), &req.Book, req.Shock)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: res})
}

func (s *Server) handleStress(w http.ResponseWriter, r *http.Request) {
	book, ok := decodeBook(w, r)
	if !ok {
		return
	}
	results, err := s.engine.Stress(r.Context(), book)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: results})
}

// handleCashFlows returns 422 with the error schedule as data when the loan
// cannot be scheduled, so clients see the sentinel flow either way.
func (s *Server) handleCashFlows(w http.ResponseWriter, r *http.Request) {
	var req CashFlowRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	flows, err := s.engine.CashFlows(req.Loan, req.Kind, req.Stress)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if cashflow.IsErrorSchedule(flows) {
		writeJSON(w, http.StatusUnprocessableEntity, APIResponse{
			Success: false,
			Data:    flows,
			Error:   flows[0].Description,
		})
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: flows})
}

func (s *Server) handleAnalyzeCollateral(w http.ResponseWriter, r *http.Request) {
	var p models.CollateralPortfolio
	if !decodeJSON(w, r, &p) {
		return
	}
	if err := validate.Struct(p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: s.engine.AnalyzeCollateral(p)})
}

func (s *Server) handleLGDCurve(w http.ResponseWriter, r *http.Request) {
	var req CurveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	points, err := s.engine.Curve(req.Loan, req.StepMonths)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid loan dates: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: points})
}

func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	if s.rates == nil {
		writeError(w, http.StatusServiceUnavailable, "no reference rate feeds configured")
		return
	}
	fetched, err := s.rates.Fetch(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, rates.ErrNoRates) {
			status = http.StatusBadGateway
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: fetched})
}

// handleReport renders the risk report of the posted book. The format query
// parameter selects html (default) or text.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	rc := report.DefaultConfig()
	if f := r.URL.Query().Get("format"); f != "" {
		rc.Format = report.Format(f)
	}
	if rc.Format != report.FormatHTML && rc.Format != report.FormatText {
		writeError(w, http.StatusBadRequest, "format must be html or text")
		return
	}
	rc.Title = r.URL.Query().Get("title")
	rc.Currency = r.URL.Query().Get("currency")

	book, ok := decodeBook(w, r)
	if !ok {
		return
	}
	in, err := s.engine.Report(r.Context(), book)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out, err := report.Render(in, rc)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	contentType := "text/html; charset=utf-8"
	if rc.Format == report.FormatText {
		contentType = "text/plain; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, out); err != nil {
		s.logger.Warn("failed to write report", "error", err)
	}
}
