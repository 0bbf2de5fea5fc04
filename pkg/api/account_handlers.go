package api

import (
	"errors"
	"net/http"

	"github.com/vincentventalon/docuprocess/pkg/credits"
	"github.com/vincentventalon/docuprocess/pkg/httputil"
	"github.com/vincentventalon/docuprocess/pkg/middleware"
	"github.com/vincentventalon/docuprocess/pkg/observability"
)

// Transaction pagination bounds.
const (
	transactionsDefaultLimit = 300
	transactionsMaxLimit     = 1000
)

type accountResponse struct {
	Credits int    `json:"credits"`
	Email   string `json:"email,omitempty"`
}

type transactionsResponse struct {
	Transactions []credits.Transaction `json:"transactions"`
	Total        int                   `json:"total"`
	Limit        int                   `json:"limit"`
	Offset       int                   `json:"offset"`
}

// getAccount reports the team's credit balance. Read-only, never charged.
func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := middleware.GetPrincipal(ctx)
	logger := observability.FromContext(ctx)

	balance, err := s.ledger.Balance(ctx, principal.Team.TeamID)
	if err != nil {
		if errors.Is(err, credits.ErrTeamNotFound) {
			httputil.WriteNotFoundError(w, "Team not found")
			return
		}
		logger.WithError(err).Errorf("balance lookup failed")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "Failed to load account info")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, accountResponse{
		Credits: balance,
		Email:   principal.Email,
	})
}

// listTransactions pages through the team's ledger history, newest first.
func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := middleware.GetPrincipal(ctx)
	logger := observability.FromContext(ctx)

	limit, err := httputil.ParseQueryInt(r, "limit", transactionsDefaultLimit)
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}
	offset, err := httputil.ParseQueryInt(r, "offset", 0)
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}
	limit = httputil.ClampInt(limit, 1, transactionsMaxLimit)
	if offset < 0 {
		offset = 0
	}

	transactions, total, err := s.ledger.ListTransactions(ctx, principal.Team.TeamID, limit, offset)
	if err != nil {
		logger.WithError(err).Errorf("transaction listing failed")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}
	if transactions == nil {
		transactions = []credits.Transaction{}
	}

	httputil.WriteJSON(w, http.StatusOK, transactionsResponse{
		Transactions: transactions,
		Total:        total,
		Limit:        limit,
		Offset:       offset,
	})
}
