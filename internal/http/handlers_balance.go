package http

import (
	"net/http"

	"saldo/internal/core"
)

type lineItemDTO struct {
	Description string `json:"description"`
	Amount      string `json:"amount"`
}

type balanceDTO struct {
	UserID            string        `json:"user_id"`
	Name              string        `json:"name"`
	Email             string        `json:"email"`
	Paid              string        `json:"paid"`
	Share             string        `json:"share"`
	Balance           string        `json:"balance"`
	SimplifiedBalance string        `json:"simplified_balance"`
	Expenses          []lineItemDTO `json:"expenses,omitempty"`
}

func toBalanceDTO(b core.Balance) balanceDTO {
	dto := balanceDTO{
		UserID:            b.UserID,
		Name:              b.Name,
		Email:             b.Email,
		Paid:              b.Paid.Decimal().StringFixed(2),
		Share:             b.Share.StringFixed(2),
		Balance:           b.Balance.StringFixed(2),
		SimplifiedBalance: b.SimplifiedBalance.StringFixed(2),
	}
	for _, item := range b.Expenses {
		dto.Expenses = append(dto.Expenses, lineItemDTO{
			Description: item.Description,
			Amount:      item.Amount.Decimal().StringFixed(2),
		})
	}
	return dto
}

func toBalanceDTOs(balances []core.Balance) []balanceDTO {
	out := make([]balanceDTO, 0, len(balances))
	for _, b := range balances {
		out = append(out, toBalanceDTO(b))
	}
	return out
}

// handleLiveBalances returns the current balance per verified user over the
// unsettled expenses, highest payer first.
func (s *Server) handleLiveBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := s.settlements.LiveView(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTOs(balances))
}
