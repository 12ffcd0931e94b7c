// Package winner вычисляет итог гомологации: запись победителя, победителей и участников
// без присуждения, итоговую сумму.
package winner

import (
	"fmt"
	"sort"
	"time"

	"compras/models"

	"github.com/shopspring/decimal"
)

// Row - строка отчёта по одному победившему поставщику.
type Row struct {
	SupplierName string          `json:"supplierName"`
	ItemIDs      []string        `json:"itemIds"`
	TotalValue   decimal.Decimal `json:"totalValue"`
}

type Result struct {
	Winner           models.Winner   `json:"winner"`
	Rows             []Row           `json:"rows"`
	Winners          []string        `json:"winners"`
	Losers           []string        `json:"losers"`
	TotalAdjudicated decimal.Decimal `json:"totalValueAdjudicated"`
}

// Resolve применяет решение к деманде. В режиме item присуждения должны покрывать
// каждую позицию ровно один раз, иначе возвращается ErrCoverage.
func Resolve(d *models.Demand, dec Decision, decidedAt time.Time) (*Result, error) {
	var res *Result
	var err error

	switch v := dec.(type) {
	case Global:
		if err := v.validate(); err != nil {
			return nil, err
		}
		res = resolveGlobal(d, v)
	case PerItem:
		if err := v.validate(); err != nil {
			return nil, err
		}
		res, err = resolvePerItem(d, v)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unsupported decision %T", ErrInvalidDecision, dec)
	}

	res.Winner.DecidedAt = decidedAt
	res.Losers = losers(d.Proposals, res.Winners)
	res.TotalAdjudicated = decimal.Zero
	for _, r := range res.Rows {
		res.TotalAdjudicated = res.TotalAdjudicated.Add(r.TotalValue)
	}
	return res, nil
}

func resolveGlobal(d *models.Demand, g Global) *Result {
	prices := map[string]decimal.Decimal{}
	for _, p := range d.Proposals {
		if p.SupplierName == g.SupplierName && p.IsActive() {
			for _, pr := range p.Prices {
				prices[pr.ItemID] = pr.UnitPrice
			}
		}
	}

	w := models.Winner{
		Mode:         models.ModeGlobal,
		SupplierName: g.SupplierName,
		TotalValue:   g.TotalValue,
		Items:        make([]models.WinnerItem, 0, len(d.Items)),
	}
	for _, it := range d.Items {
		unit := prices[it.ID]
		w.Items = append(w.Items, models.WinnerItem{
			ItemID:       it.ID,
			SupplierName: g.SupplierName,
			UnitPrice:    unit,
			TotalValue:   unit.Mul(it.Quantity),
		})
	}

	return &Result{
		Winner:  w,
		Rows:    []Row{{SupplierName: g.SupplierName, ItemIDs: d.ItemIDs(), TotalValue: g.TotalValue}},
		Winners: []string{g.SupplierName},
	}
}

func resolvePerItem(d *models.Demand, p PerItem) (*Result, error) {
	known := make(map[string]bool, len(d.Items))
	for _, it := range d.Items {
		known[it.ID] = false
	}

	awarded := make(map[string]ItemAward, len(p.Awards))
	for _, a := range p.Awards {
		covered, ok := known[a.ItemID]
		if !ok {
			return nil, fmt.Errorf("%w: item %s does not belong to demand", ErrCoverage, a.ItemID)
		}
		if covered {
			return nil, fmt.Errorf("%w: item %s awarded more than once", ErrCoverage, a.ItemID)
		}
		known[a.ItemID] = true
		awarded[a.ItemID] = a
	}
	for _, it := range d.Items {
		if !known[it.ID] {
			return nil, fmt.Errorf("%w: item %s has no award", ErrCoverage, it.ID)
		}
	}

	w := models.Winner{Mode: models.ModeItem, TotalValue: decimal.Zero}
	res := &Result{}
	rowIdx := map[string]int{}

	// строки идут в порядке позиций деманды, а не в порядке присланного решения
	for _, it := range d.Items {
		a := awarded[it.ID]
		w.Items = append(w.Items, models.WinnerItem{
			ItemID:       it.ID,
			SupplierName: a.SupplierName,
			UnitPrice:    a.UnitPrice,
			TotalValue:   a.TotalValue,
		})
		w.TotalValue = w.TotalValue.Add(a.TotalValue)

		i, ok := rowIdx[a.SupplierName]
		if !ok {
			i = len(res.Rows)
			rowIdx[a.SupplierName] = i
			res.Rows = append(res.Rows, Row{SupplierName: a.SupplierName, TotalValue: decimal.Zero})
			res.Winners = append(res.Winners, a.SupplierName)
		}
		res.Rows[i].ItemIDs = append(res.Rows[i].ItemIDs, it.ID)
		res.Rows[i].TotalValue = res.Rows[i].TotalValue.Add(a.TotalValue)
	}

	res.Winner = w
	return res, nil
}

// losers - поставщики с активным предложением, не попавшие в победители. Отсортированы по имени.
func losers(proposals []models.Proposal, winners []string) []string {
	won := make(map[string]struct{}, len(winners))
	for _, w := range winners {
		won[w] = struct{}{}
	}

	seen := map[string]struct{}{}
	out := []string{}
	for i := range proposals {
		p := &proposals[i]
		if !p.IsActive() {
			continue
		}
		if _, ok := won[p.SupplierName]; ok {
			continue
		}
		if _, ok := seen[p.SupplierName]; ok {
			continue
		}
		seen[p.SupplierName] = struct{}{}
		out = append(out, p.SupplierName)
	}
	sort.Strings(out)
	return out
}
