// Package matcher подбирает поставщиков для деманды по группам позиций.
package matcher

import (
	"compras/models"
)

// DemandGroups - объединение групп всех позиций деманды.
func DemandGroups(items []models.Item) map[string]struct{} {
	groups := make(map[string]struct{}, len(items))
	for _, it := range items {
		if it.GroupID != "" {
			groups[it.GroupID] = struct{}{}
		}
	}
	return groups
}

// Eligible возвращает активных поставщиков, у которых есть хотя бы одна группа позиций деманды.
// Порядок поставщиков сохраняется.
func Eligible(items []models.Item, suppliers []models.Supplier) []models.Supplier {
	groups := DemandGroups(items)
	if len(groups) == 0 {
		return nil
	}

	var out []models.Supplier
	for _, s := range suppliers {
		if s.Status != models.SupplierActive {
			continue
		}
		for _, g := range s.Groups {
			if _, ok := groups[g]; ok {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// Responded - поставщики с активным (не отклонённым) предложением по деманде.
func Responded(proposals []models.Proposal) map[string]struct{} {
	ids := make(map[string]struct{}, len(proposals))
	for i := range proposals {
		if proposals[i].IsActive() {
			ids[proposals[i].SupplierID] = struct{}{}
		}
	}
	return ids
}

// Pending - подходящие поставщики, которые ещё не прислали активное предложение.
func Pending(d *models.Demand, suppliers []models.Supplier) []models.Supplier {
	responded := Responded(d.Proposals)

	var out []models.Supplier
	for _, s := range Eligible(d.Items, suppliers) {
		if _, ok := responded[s.ID]; !ok {
			out = append(out, s)
		}
	}
	return out
}
