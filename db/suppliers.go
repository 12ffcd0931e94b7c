package db

import (
	"context"

	"compras/models"

	"github.com/jmoiron/sqlx"
)

// Group (Группа товаров)

func (s *Storage) CreateGroup(ctx context.Context, g *models.Group) error {
	g.CreatedAt = s.now()
	_, err := exec(ctx, s.db, `INSERT INTO product_groups (id, name, created_at) VALUES (?, ?, ?)`,
		g.ID, g.Name, g.CreatedAt)
	return err
}

func (s *Storage) ListGroups(ctx context.Context) ([]models.Group, error) {
	groups := []models.Group{}
	err := selectAll(ctx, s.db, &groups, `SELECT id, name, created_at FROM product_groups ORDER BY name ASC`)
	return groups, err
}

// Supplier (Поставщик)

const supplierColumns = `id, name, email, status, created_at`

func (s *Storage) CreateSupplier(ctx context.Context, sp *models.Supplier) error {
	sp.CreatedAt = s.now()
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := exec(ctx, tx, `
            INSERT INTO suppliers (id, name, email, status, created_at)
            VALUES (?, ?, ?, ?, ?)`,
			sp.ID, sp.Name, sp.Email, sp.Status, sp.CreatedAt)
		if err != nil {
			return err
		}
		return insertSupplierGroups(ctx, tx, sp.ID, sp.Groups)
	})
}

func insertSupplierGroups(ctx context.Context, tx *sqlx.Tx, supplierID string, groups []string) error {
	for _, g := range groups {
		if _, err := exec(ctx, tx, `INSERT INTO supplier_group_links (supplier_id, group_id) VALUES (?, ?)`,
			supplierID, g); err != nil {
			return err
		}
	}
	return nil
}

// SetSupplierGroups заменяет категории поставщика целиком.
func (s *Storage) SetSupplierGroups(ctx context.Context, supplierID string, groups []string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := exec(ctx, tx, `DELETE FROM supplier_group_links WHERE supplier_id = ?`, supplierID); err != nil {
			return err
		}
		return insertSupplierGroups(ctx, tx, supplierID, groups)
	})
}

func (s *Storage) UpdateSupplierStatus(ctx context.Context, supplierID string, status models.SupplierStatus) error {
	res, err := exec(ctx, s.db, `UPDATE suppliers SET status = ? WHERE id = ?`, status, supplierID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Storage) AddSupplierDocument(ctx context.Context, doc *models.SupplierDocument) error {
	_, err := exec(ctx, s.db, `
        INSERT INTO supplier_documents (id, supplier_id, name, valid_until)
        VALUES (?, ?, ?, ?)`,
		doc.ID, doc.SupplierID, doc.Name, doc.ValidUntil)
	return err
}

func (s *Storage) GetSupplier(ctx context.Context, id string) (*models.Supplier, error) {
	sp := &models.Supplier{}
	if err := get(ctx, s.db, sp, `SELECT `+supplierColumns+` FROM suppliers WHERE id = ?`, id); err != nil {
		return nil, err
	}
	if err := s.loadSupplierDetails(ctx, sp); err != nil {
		return nil, err
	}
	return sp, nil
}

func (s *Storage) GetSupplierByName(ctx context.Context, name string) (*models.Supplier, error) {
	sp := &models.Supplier{}
	if err := get(ctx, s.db, sp, `SELECT `+supplierColumns+` FROM suppliers WHERE name = ?`, name); err != nil {
		return nil, err
	}
	if err := s.loadSupplierDetails(ctx, sp); err != nil {
		return nil, err
	}
	return sp, nil
}

func (s *Storage) loadSupplierDetails(ctx context.Context, sp *models.Supplier) error {
	sp.Groups = []string{}
	if err := selectAll(ctx, s.db, &sp.Groups,
		`SELECT group_id FROM supplier_group_links WHERE supplier_id = ? ORDER BY group_id`, sp.ID); err != nil {
		return err
	}
	sp.Documents = []models.SupplierDocument{}
	return selectAll(ctx, s.db, &sp.Documents, `
        SELECT id, supplier_id, name, valid_until FROM supplier_documents
        WHERE supplier_id = ? ORDER BY valid_until ASC`, sp.ID)
}

// ListSuppliers возвращает справочник поставщиков с их группами; пустой status - все.
func (s *Storage) ListSuppliers(ctx context.Context, status models.SupplierStatus) ([]models.Supplier, error) {
	suppliers := []models.Supplier{}
	query := `SELECT ` + supplierColumns + ` FROM suppliers`
	var args []interface{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY name ASC`
	if err := selectAll(ctx, s.db, &suppliers, query, args...); err != nil {
		return nil, err
	}

	var links []struct {
		SupplierID string `db:"supplier_id"`
		GroupID    string `db:"group_id"`
	}
	if err := selectAll(ctx, s.db, &links,
		`SELECT supplier_id, group_id FROM supplier_group_links ORDER BY group_id`); err != nil {
		return nil, err
	}
	byID := make(map[string][]string, len(suppliers))
	for _, l := range links {
		byID[l.SupplierID] = append(byID[l.SupplierID], l.GroupID)
	}
	for i := range suppliers {
		suppliers[i].Groups = byID[suppliers[i].ID]
		if suppliers[i].Groups == nil {
			suppliers[i].Groups = []string{}
		}
	}
	return suppliers, nil
}
