package winner

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"compras/models"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidDecision = errors.New("invalid winner decision")
	ErrCoverage        = errors.New("item awards do not cover the demand items")
)

// Decision - решение о гомологации: Global или PerItem.
type Decision interface {
	Mode() models.WinnerMode
}

// Global - один поставщик выигрывает всю деманду.
type Global struct {
	SupplierName string
	TotalValue   decimal.Decimal
}

func (Global) Mode() models.WinnerMode { return models.ModeGlobal }

// PerItem - каждая позиция присуждается отдельно.
type PerItem struct {
	Awards []ItemAward
}

func (PerItem) Mode() models.WinnerMode { return models.ModeItem }

type ItemAward struct {
	ItemID       string          `json:"itemId"`
	SupplierName string          `json:"supplierName"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	TotalValue   decimal.Decimal `json:"totalValue"`
}

// payload - форма решения в JSON, как её присылает клиент.
type payload struct {
	Mode         string           `json:"mode"`
	SupplierName string           `json:"supplierName"`
	TotalValue   *decimal.Decimal `json:"totalValue"`
	Items        []ItemAward      `json:"items"`
}

// DecodeDecision разбирает JSON-решение и проверяет наличие полей, обязательных для режима.
func DecodeDecision(data []byte) (Decision, error) {
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDecision, err)
	}

	switch models.WinnerMode(p.Mode) {
	case models.ModeGlobal:
		if p.TotalValue == nil {
			return nil, fmt.Errorf("%w: totalValue is required in global mode", ErrInvalidDecision)
		}
		g := Global{SupplierName: strings.TrimSpace(p.SupplierName), TotalValue: *p.TotalValue}
		return g, g.validate()
	case models.ModeItem:
		pi := PerItem{Awards: p.Items}
		for i := range pi.Awards {
			pi.Awards[i].SupplierName = strings.TrimSpace(pi.Awards[i].SupplierName)
		}
		return pi, pi.validate()
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidDecision, p.Mode)
	}
}

func (g Global) validate() error {
	if g.SupplierName == "" {
		return fmt.Errorf("%w: supplierName is required in global mode", ErrInvalidDecision)
	}
	if g.TotalValue.IsNegative() {
		return fmt.Errorf("%w: totalValue must not be negative", ErrInvalidDecision)
	}
	return nil
}

func (p PerItem) validate() error {
	if len(p.Awards) == 0 {
		return fmt.Errorf("%w: items are required in item mode", ErrInvalidDecision)
	}
	for i, a := range p.Awards {
		if a.ItemID == "" || a.SupplierName == "" {
			return fmt.Errorf("%w: items[%d] needs itemId and supplierName", ErrInvalidDecision, i)
		}
		if a.UnitPrice.IsNegative() || a.TotalValue.IsNegative() {
			return fmt.Errorf("%w: items[%d] has negative value", ErrInvalidDecision, i)
		}
	}
	return nil
}
