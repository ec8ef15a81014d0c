package http

import (
	"log/slog"
	"net/http"

	"saldo/internal/middleware/trace"
)

type settleRequest struct {
	Passkey string `json:"passkey"`
}

type settlementResponse struct {
	SettledCount int64        `json:"settled_count"`
	Total        string       `json:"total"`
	Balances     []balanceDTO `json:"balances"`
}

// handleSettle runs the settlement transition. The passkey is checked before
// anything is touched; a wrong one yields 403 and an unchanged ledger.
func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	report, err := s.settlements.Settle(r.Context(), req.Passkey)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	trace.RecordSettlement()
	slog.InfoContext(r.Context(), "Settlement completed",
		"settled_count", report.SettledCount,
		"total_cents", report.TotalCents)

	writeJSON(w, http.StatusOK, settlementResponse{
		SettledCount: report.SettledCount,
		Total:        centsToAmount(report.TotalCents),
		Balances:     toBalanceDTOs(report.Balances),
	})
}
