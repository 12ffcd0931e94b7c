package lifecycle

import (
	"context"
	"errors"
	"strings"

	"compras/db"
	"compras/internal/audit"
	"compras/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProposalInput - предложение поставщика. SupplierID обязателен только для администратора.
type ProposalInput struct {
	SupplierID   string             `json:"supplierId"`
	Prices       []models.ItemPrice `json:"prices"`
	DeliveryDays int                `json:"deliveryDays"`
	Observations string             `json:"observations"`
}

// resolveSupplier определяет, от имени какого поставщика действует пользователь.
func (e *Engine) resolveSupplier(ctx context.Context, u models.User, requested string) (*models.Supplier, error) {
	id := requested
	if u.Role == models.RoleSupplier {
		if u.SupplierID == nil {
			return nil, validationf("user %s is not linked to a supplier", u.Username)
		}
		if requested != "" && requested != *u.SupplierID {
			return nil, validationf("supplier users act only for their own supplier")
		}
		id = *u.SupplierID
	}
	if id == "" {
		return nil, validationf("supplierId is required")
	}

	s, err := e.store.GetSupplier(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, validationf("supplier %s does not exist", id)
	}
	if err != nil {
		return nil, storeErr("load supplier", err)
	}
	if s.Status != models.SupplierActive {
		return nil, validationf("supplier %s is %s", s.Name, s.Status)
	}
	return s, nil
}

// proposalTotal проверяет цены и считает сумму: цена за единицу * количество позиции.
func proposalTotal(d *models.Demand, prices []models.ItemPrice) (decimal.Decimal, error) {
	if len(prices) == 0 {
		return decimal.Zero, validationf("prices are required")
	}
	qty := make(map[string]decimal.Decimal, len(d.Items))
	for _, it := range d.Items {
		qty[it.ID] = it.Quantity
	}

	total := decimal.Zero
	seen := make(map[string]bool, len(prices))
	for _, p := range prices {
		q, ok := qty[p.ItemID]
		if !ok {
			return decimal.Zero, validationf("item %s does not belong to demand", p.ItemID)
		}
		if seen[p.ItemID] {
			return decimal.Zero, validationf("item %s priced more than once", p.ItemID)
		}
		if p.UnitPrice.IsNegative() {
			return decimal.Zero, validationf("item %s: unit price must not be negative", p.ItemID)
		}
		seen[p.ItemID] = true
		total = total.Add(p.UnitPrice.Mul(q))
	}
	return total, nil
}

// SubmitProposal сохраняет предложение. Повторная отправка тем же поставщиком заменяет прежнюю.
func (e *Engine) SubmitProposal(ctx context.Context, demandID string, in ProposalInput) (*models.Proposal, error) {
	u, err := currentUser(ctx, models.RoleSupplier, models.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if in.DeliveryDays < 0 {
		return nil, validationf("deliveryDays must not be negative")
	}
	s, err := e.resolveSupplier(ctx, u, in.SupplierID)
	if err != nil {
		return nil, err
	}
	defer e.locks.Lock(demandID)()

	d, err := e.load(ctx, demandID)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(d, models.StatusOpen); err != nil {
		return nil, err
	}
	total, err := proposalTotal(d, in.Prices)
	if err != nil {
		return nil, err
	}

	p := &models.Proposal{
		ID:           uuid.NewString(),
		DemandID:     d.ID,
		SupplierID:   s.ID,
		SupplierName: s.Name,
		TotalValue:   total,
		DeliveryDays: in.DeliveryDays,
		Observations: in.Observations,
		Declined:     strings.HasPrefix(strings.TrimSpace(in.Observations), models.DeclinedMarker),
		Prices:       append([]models.ItemPrice{}, in.Prices...),
	}
	if err := e.store.SaveProposal(ctx, p); err != nil {
		return nil, storeErr("save proposal", err)
	}
	e.audit.Record(ctx, ActionSubmitProposal, audit.ResourceProposal, p.ID, map[string]interface{}{
		"demand":   d.ID,
		"supplier": s.Name,
		"total":    total.StringFixed(2),
	})
	return p, nil
}

// Decline фиксирует отказ поставщика от участия. Отказ заменяет ранее отправленное предложение.
func (e *Engine) Decline(ctx context.Context, demandID, supplierID, reason string) (*models.Proposal, error) {
	u, err := currentUser(ctx, models.RoleSupplier, models.RoleAdmin)
	if err != nil {
		return nil, err
	}
	s, err := e.resolveSupplier(ctx, u, supplierID)
	if err != nil {
		return nil, err
	}
	defer e.locks.Lock(demandID)()

	d, err := e.load(ctx, demandID)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(d, models.StatusOpen); err != nil {
		return nil, err
	}

	obs := models.DeclinedMarker
	if r := strings.TrimSpace(reason); r != "" {
		obs += " " + r
	}
	p := &models.Proposal{
		ID:           uuid.NewString(),
		DemandID:     d.ID,
		SupplierID:   s.ID,
		SupplierName: s.Name,
		TotalValue:   decimal.Zero,
		Observations: obs,
		Declined:     true,
		Prices:       []models.ItemPrice{},
	}
	if err := e.store.SaveProposal(ctx, p); err != nil {
		return nil, storeErr("save proposal", err)
	}
	e.audit.Record(ctx, ActionDecline, audit.ResourceProposal, p.ID, map[string]interface{}{
		"demand":   d.ID,
		"supplier": s.Name,
	})
	return p, nil
}
