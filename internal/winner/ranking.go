package winner

import (
	"sort"

	"compras/models"
)

type Ranked struct {
	Position int             `json:"position"`
	Proposal models.Proposal `json:"proposal"`
}

// Rank упорядочивает активные предложения: сначала меньшая сумма, затем меньший срок поставки.
// Только для отображения - DefineWinner не сверяет решение с рейтингом.
func Rank(proposals []models.Proposal) []Ranked {
	active := make([]models.Proposal, 0, len(proposals))
	for i := range proposals {
		if proposals[i].IsActive() {
			active = append(active, proposals[i])
		}
	}

	sort.SliceStable(active, func(i, j int) bool {
		a, b := active[i], active[j]
		if c := a.TotalValue.Cmp(b.TotalValue); c != 0 {
			return c < 0
		}
		if a.DeliveryDays != b.DeliveryDays {
			return a.DeliveryDays < b.DeliveryDays
		}
		return a.SupplierName < b.SupplierName
	})

	out := make([]Ranked, 0, len(active))
	for i, p := range active {
		out = append(out, Ranked{Position: i + 1, Proposal: p})
	}
	return out
}
