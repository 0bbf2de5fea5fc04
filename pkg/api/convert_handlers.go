package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vincentventalon/docuprocess/pkg/async"
	"github.com/vincentventalon/docuprocess/pkg/convert"
	"github.com/vincentventalon/docuprocess/pkg/fetch"
	"github.com/vincentventalon/docuprocess/pkg/httputil"
	"github.com/vincentventalon/docuprocess/pkg/middleware"
	"github.com/vincentventalon/docuprocess/pkg/observability"
)

const conversionCost = 1

// conversionTimeout bounds the fetch+convert work once a credit has been
// charged. The work runs on a context that survives client disconnects:
// after the debit the operation must finish (or fail and refund) whether
// or not anyone is still waiting for the response.
const conversionTimeout = 2 * time.Minute

type convertRequest struct {
	URL       string `json:"url,omitempty"`
	PDFBase64 string `json:"pdf_base64,omitempty"`
}

type convertResponse struct {
	Success          bool   `json:"success"`
	Markdown         string `json:"markdown"`
	PageCount        int    `json:"page_count"`
	CreditsUsed      int    `json:"credits_used"`
	RemainingCredits int    `json:"remaining_credits"`
}

// convertPDFToMarkdown charges one credit, acquires the document, converts
// it, and reverses the charge when anything downstream fails. The rate
// limit headers were already set at the gate.
func (s *Server) convertPDFToMarkdown(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := middleware.GetPrincipal(ctx)
	logger := observability.FromContext(ctx)

	var req convertRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteConversionError(w, http.StatusBadRequest, "Invalid request body", "INVALID_REQUEST")
		return
	}
	if req.URL != "" && req.PDFBase64 != "" {
		httputil.WriteConversionError(w, http.StatusBadRequest,
			"Provide either 'url' or 'pdf_base64', not both", "INVALID_REQUEST")
		return
	}
	if req.URL == "" && req.PDFBase64 == "" {
		httputil.WriteConversionError(w, http.StatusBadRequest,
			"Must provide either 'url' or 'pdf_base64'", "INVALID_REQUEST")
		return
	}

	source := "url"
	if req.URL == "" {
		source = "base64"
	}

	start := time.Now()
	resourceID := uuid.New().String()
	teamID := principal.Team.TeamID

	logger.WithFields(map[string]interface{}{
		"team_id":     teamID,
		"resource_id": resourceID,
		"source":      source,
	}).Infof("conversion request")

	// Charge before doing any work. The debit is the concurrency gate: two
	// requests racing on the last credit cannot both pass it.
	debit, err := s.ledger.Debit(ctx, teamID, principal.UserID, conversionCost, resourceID, principal.APIKeyID)
	if err != nil {
		s.countDebit("error")
		logger.WithError(err).Errorf("credit debit failed")
		httputil.WriteConversionError(w, http.StatusPaymentRequired,
			"Insufficient credits. Please purchase more credits.", "INSUFFICIENT_CREDITS")
		return
	}
	if !debit.Success {
		s.countDebit("insufficient")
		logger.WithField("team_id", teamID).Warnf("credit deduction rejected")
		httputil.WriteConversionError(w, http.StatusPaymentRequired,
			"Insufficient credits. Please purchase more credits.", "INSUFFICIENT_CREDITS")
		return
	}
	s.countDebit("success")
	remaining := debit.RemainingCredits

	opCtx, opCancel := context.WithTimeout(context.WithoutCancel(ctx), conversionTimeout)
	defer opCancel()

	result, err := s.acquireAndConvert(opCtx, req)
	if err != nil {
		s.refund(ctx, teamID, principal.UserID, resourceID)
		remaining++

		if code, message, ok := clientErrorCode(err); ok {
			s.countConversion(source, "error")
			logger.WithFields(map[string]interface{}{
				"team_id": teamID,
				"code":    code,
			}).Warnf("conversion failed: %v", err)
			httputil.WriteConversionError(w, http.StatusBadRequest, message, code)
			return
		}

		s.countConversion(source, "error")
		logger.WithError(err).Errorf("unexpected error during conversion")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "Internal server error during conversion")
		return
	}

	execTimeMS := time.Since(start).Milliseconds()
	s.countConversion(source, "success")
	if s.metrics != nil {
		s.metrics.ConversionDuration.Observe(time.Since(start).Seconds())
		s.metrics.ConversionPages.Observe(float64(result.PageCount))
	}

	// Usage metadata is best effort and must not delay the response.
	async.SafeGoDetached(ctx, s.logger, 10*time.Second, "record_execution_time", func(taskCtx context.Context) error {
		return s.ledger.UpdateExecutionTime(taskCtx, resourceID, execTimeMS)
	})

	logger.WithFields(map[string]interface{}{
		"team_id":    teamID,
		"page_count": result.PageCount,
		"exec_tm":    execTimeMS,
	}).Infof("conversion successful")

	httputil.WriteJSON(w, http.StatusOK, convertResponse{
		Success:          true,
		Markdown:         result.Markdown,
		PageCount:        result.PageCount,
		CreditsUsed:      conversionCost,
		RemainingCredits: remaining,
	})
}

func (s *Server) acquireAndConvert(ctx context.Context, req convertRequest) (*convert.Result, error) {
	var pdf []byte
	var err error
	if req.URL != "" {
		pdf, err = s.fetcher.FetchPDF(ctx, req.URL)
	} else {
		pdf, err = fetch.DecodePDF(req.PDFBase64, s.opts.MaxPDFSize)
	}
	if err != nil {
		return nil, err
	}
	return s.converter.Convert(ctx, pdf)
}

// refund reverses a debit after a failed conversion. It runs on a context
// that survives client disconnects: the charge must be reversed even when
// nobody is waiting for the response. Failures are loud, they represent
// real money.
func (s *Server) refund(ctx context.Context, teamID, userID, resourceID string) {
	refundCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	result, err := s.ledger.Refund(refundCtx, teamID, userID, conversionCost, resourceID)
	if err == nil && !result.Success {
		// Refund rejected by the ledger function (team row gone) with no
		// transport error. Just as inconsistent as a failed call.
		err = errors.New("refund rejected by ledger")
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.RefundFailuresTotal.Inc()
			s.metrics.CreditRefundsTotal.WithLabelValues("error").Inc()
		}
		s.logger.WithFields(map[string]interface{}{
			"team_id":     teamID,
			"user_id":     userID,
			"resource_id": resourceID,
		}).WithError(err).Errorf("credit refund failed, ledger is inconsistent")
		return
	}
	if s.metrics != nil {
		s.metrics.CreditRefundsTotal.WithLabelValues("success").Inc()
	}
}

func (s *Server) countDebit(status string) {
	if s.metrics != nil {
		s.metrics.CreditDebitsTotal.WithLabelValues(status).Inc()
	}
}

func (s *Server) countConversion(source, status string) {
	if s.metrics != nil {
		s.metrics.ConversionsTotal.WithLabelValues(source, status).Inc()
	}
}

// clientErrorCode extracts the machine code from acquisition and conversion
// failures. Anything else is an internal error.
func clientErrorCode(err error) (code, message string, ok bool) {
	var fe *fetch.Error
	if errors.As(err, &fe) {
		return fe.Code, fe.Message, true
	}
	var ce *convert.Error
	if errors.As(err, &ce) {
		return convert.CodeConversionFailed, ce.Message, true
	}
	return "", "", false
}
