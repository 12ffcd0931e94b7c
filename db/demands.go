package db

import (
	"context"
	"errors"

	"compras/models"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// Demand (Деманда)

const demandColumns = `id, protocol, title, description, department_id, status, proposal_deadline,
    decided_at, notes, version, created_at, updated_at, winner_mode, winner_supplier, winner_total`

type demandRow struct {
	models.Demand
	WinnerMode     string              `db:"winner_mode"`
	WinnerSupplier string              `db:"winner_supplier"`
	WinnerTotal    decimal.NullDecimal `db:"winner_total"`
}

type DemandFilter struct {
	Status        models.DemandStatus
	ExcludeStatus models.DemandStatus
	DepartmentID  string
	Limit        int
	Offset       int
}

// CreateDemand сохраняет деманду вместе с позициями; версия начинается с 1.
func (s *Storage) CreateDemand(ctx context.Context, d *models.Demand) error {
	now := s.now()
	d.CreatedAt, d.UpdatedAt, d.Version = now, now, 1

	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := exec(ctx, tx, `
            INSERT INTO demands
                (id, protocol, title, description, department_id, status, proposal_deadline, notes, version, created_at, updated_at)
            VALUES
                (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID, d.Protocol, d.Title, d.Description, d.DepartmentID, d.Status, d.ProposalDeadline,
			d.Notes, d.Version, d.CreatedAt, d.UpdatedAt)
		if err != nil {
			return err
		}
		return insertItems(ctx, tx, d.ID, d.Items)
	})
}

func insertItems(ctx context.Context, tx *sqlx.Tx, demandID string, items []models.Item) error {
	for i := range items {
		it := &items[i]
		it.DemandID = demandID
		it.Position = i + 1
		_, err := exec(ctx, tx, `
            INSERT INTO demand_items (id, demand_id, position, description, quantity, unit, target_price, group_id)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			it.ID, it.DemandID, it.Position, it.Description, it.Quantity, it.Unit, it.TargetPrice, it.GroupID)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetDemand загружает деманду целиком: позиции, предложения, вопросы и победителя.
func (s *Storage) GetDemand(ctx context.Context, id string) (*models.Demand, error) {
	var row demandRow
	if err := get(ctx, s.db, &row, `SELECT `+demandColumns+` FROM demands WHERE id = ?`, id); err != nil {
		return nil, err
	}
	d := row.Demand

	d.Items = []models.Item{}
	if err := selectAll(ctx, s.db, &d.Items, `
        SELECT id, demand_id, position, description, quantity, unit, target_price, group_id
        FROM demand_items WHERE demand_id = ? ORDER BY position ASC`, id); err != nil {
		return nil, err
	}

	proposals, err := s.ListProposals(ctx, id)
	if err != nil {
		return nil, err
	}
	d.Proposals = proposals

	d.Questions = []models.Question{}
	if err := selectAll(ctx, s.db, &d.Questions, `SELECT `+questionColumns+`
        FROM questions WHERE demand_id = ? ORDER BY asked_at ASC`, id); err != nil {
		return nil, err
	}

	if row.WinnerMode != "" {
		w := &models.Winner{
			Mode:         models.WinnerMode(row.WinnerMode),
			SupplierName: row.WinnerSupplier,
			TotalValue:   row.WinnerTotal.Decimal,
			Items:        []models.WinnerItem{},
		}
		if d.DecidedAt != nil {
			w.DecidedAt = *d.DecidedAt
		}
		if err := selectAll(ctx, s.db, &w.Items, `
            SELECT w.demand_id, w.item_id, w.supplier_name, w.unit_price, w.total_value
            FROM winner_items w JOIN demand_items i ON i.id = w.item_id
            WHERE w.demand_id = ? ORDER BY i.position ASC`, id); err != nil {
			return nil, err
		}
		d.Winner = w
	}
	return &d, nil
}

// ListDemands возвращает деманды без вложенных коллекций.
func (s *Storage) ListDemands(ctx context.Context, f DemandFilter) ([]models.Demand, error) {
	query := `SELECT ` + demandColumns + ` FROM demands WHERE 1 = 1`
	var args []interface{}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.ExcludeStatus != "" {
		query += ` AND status <> ?`
		args = append(args, f.ExcludeStatus)
	}
	if f.DepartmentID != "" {
		query += ` AND department_id = ?`
		args = append(args, f.DepartmentID)
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, f.Limit, f.Offset)

	rows := []demandRow{}
	if err := selectAll(ctx, s.db, &rows, query, args...); err != nil {
		return nil, err
	}
	demands := make([]models.Demand, 0, len(rows))
	for _, r := range rows {
		demands = append(demands, r.Demand)
	}
	return demands, nil
}

// updateDemandRow пишет изменяемые поля деманды при условии, что версия не изменилась.
// При успехе версия в d увеличивается.
func (s *Storage) updateDemandRow(ctx context.Context, e sqlx.ExecerContext, d *models.Demand) error {
	now := s.now()
	res, err := exec(ctx, e, `
        UPDATE demands
        SET title = ?, description = ?, status = ?, proposal_deadline = ?, decided_at = ?, notes = ?,
            version = version + 1, updated_at = ?
        WHERE id = ? AND version = ?`,
		d.Title, d.Description, d.Status, d.ProposalDeadline, d.DecidedAt, d.Notes, now, d.ID, d.Version)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrVersionConflict
	}
	d.Version++
	d.UpdatedAt = now
	return nil
}

// UpdateDemand сохраняет статус и атрибуты деманды с оптимистичной проверкой версии.
func (s *Storage) UpdateDemand(ctx context.Context, d *models.Demand) error {
	return s.updateDemandRow(ctx, s.db, d)
}

// ReplaceItems заменяет позиции черновика.
func (s *Storage) ReplaceItems(ctx context.Context, d *models.Demand) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.updateDemandRow(ctx, tx, d); err != nil {
			return err
		}
		if _, err := exec(ctx, tx, `DELETE FROM demand_items WHERE demand_id = ?`, d.ID); err != nil {
			return err
		}
		return insertItems(ctx, tx, d.ID, d.Items)
	})
}

// SaveWinner атомарно записывает статус, дату решения и строки победителя.
// Повторный вызов перезаписывает предыдущего победителя.
func (s *Storage) SaveWinner(ctx context.Context, d *models.Demand) error {
	w := d.Winner
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.updateDemandRow(ctx, tx, d); err != nil {
			return err
		}
		_, err := exec(ctx, tx, `UPDATE demands SET winner_mode = ?, winner_supplier = ?, winner_total = ? WHERE id = ?`,
			w.Mode, w.SupplierName, w.TotalValue, d.ID)
		if err != nil {
			return err
		}
		if _, err := exec(ctx, tx, `DELETE FROM winner_items WHERE demand_id = ?`, d.ID); err != nil {
			return err
		}
		for i := range w.Items {
			wi := &w.Items[i]
			wi.DemandID = d.ID
			_, err := exec(ctx, tx, `
                INSERT INTO winner_items (demand_id, item_id, supplier_name, unit_price, total_value)
                VALUES (?, ?, ?, ?, ?)`,
				wi.DemandID, wi.ItemID, wi.SupplierName, wi.UnitPrice, wi.TotalValue)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteDemand удаляет деманду и всё, что к ней относится, одной транзакцией.
func (s *Storage) DeleteDemand(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		steps := []string{
			`DELETE FROM question_reads WHERE question_id IN (SELECT id FROM questions WHERE demand_id = ?)`,
			`DELETE FROM questions WHERE demand_id = ?`,
			`DELETE FROM proposal_prices WHERE proposal_id IN (SELECT id FROM proposals WHERE demand_id = ?)`,
			`DELETE FROM proposals WHERE demand_id = ?`,
			`DELETE FROM winner_items WHERE demand_id = ?`,
			`DELETE FROM demand_items WHERE demand_id = ?`,
		}
		for _, q := range steps {
			if _, err := exec(ctx, tx, q, id); err != nil {
				return err
			}
		}
		res, err := exec(ctx, tx, `DELETE FROM demands WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// Proposal (Предложение)

const proposalColumns = `id, demand_id, supplier_id, supplier_name, total_value, delivery_days,
    observations, declined, submitted_at`

// SaveProposal создаёт или перезаписывает предложение поставщика по деманде.
func (s *Storage) SaveProposal(ctx context.Context, p *models.Proposal) error {
	p.SubmittedAt = s.now()
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		var existingID string
		err := get(ctx, tx, &existingID, `SELECT id FROM proposals WHERE demand_id = ? AND supplier_id = ?`,
			p.DemandID, p.SupplierID)
		switch {
		case err == nil:
			p.ID = existingID
			_, err = exec(ctx, tx, `
                UPDATE proposals
                SET supplier_name = ?, total_value = ?, delivery_days = ?, observations = ?, declined = ?, submitted_at = ?
                WHERE id = ?`,
				p.SupplierName, p.TotalValue, p.DeliveryDays, p.Observations, p.Declined, p.SubmittedAt, p.ID)
		case errors.Is(err, ErrNotFound):
			_, err = exec(ctx, tx, `
                INSERT INTO proposals (`+proposalColumns+`)
                VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				p.ID, p.DemandID, p.SupplierID, p.SupplierName, p.TotalValue, p.DeliveryDays,
				p.Observations, p.Declined, p.SubmittedAt)
		}
		if err != nil {
			return err
		}

		if _, err := exec(ctx, tx, `DELETE FROM proposal_prices WHERE proposal_id = ?`, p.ID); err != nil {
			return err
		}
		for i := range p.Prices {
			p.Prices[i].ProposalID = p.ID
			if _, err := exec(ctx, tx, `INSERT INTO proposal_prices (proposal_id, item_id, unit_price) VALUES (?, ?, ?)`,
				p.ID, p.Prices[i].ItemID, p.Prices[i].UnitPrice); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Storage) ListProposals(ctx context.Context, demandID string) ([]models.Proposal, error) {
	proposals := []models.Proposal{}
	if err := selectAll(ctx, s.db, &proposals, `SELECT `+proposalColumns+`
        FROM proposals WHERE demand_id = ? ORDER BY submitted_at ASC, supplier_name ASC`, demandID); err != nil {
		return nil, err
	}

	prices := []models.ItemPrice{}
	if err := selectAll(ctx, s.db, &prices, `
        SELECT pp.proposal_id, pp.item_id, pp.unit_price
        FROM proposal_prices pp JOIN proposals p ON p.id = pp.proposal_id
        WHERE p.demand_id = ?`, demandID); err != nil {
		return nil, err
	}
	byProposal := make(map[string][]models.ItemPrice, len(proposals))
	for _, pr := range prices {
		byProposal[pr.ProposalID] = append(byProposal[pr.ProposalID], pr)
	}
	for i := range proposals {
		proposals[i].Prices = byProposal[proposals[i].ID]
		if proposals[i].Prices == nil {
			proposals[i].Prices = []models.ItemPrice{}
		}
	}
	return proposals, nil
}
