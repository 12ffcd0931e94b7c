package handlers

import (
	"context"

	"compras/models"
)

// StorageInterface - чтения и справочники, которые обработчики ведут мимо движка.
type StorageInterface interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) error
	ListAudit(ctx context.Context, resourceType, resourceID string, limit, offset int) ([]models.AuditEntry, error)

	CreateDepartment(ctx context.Context, d *models.Department) error
	CreateGroup(ctx context.Context, g *models.Group) error
	ListGroups(ctx context.Context) ([]models.Group, error)

	CreateSupplier(ctx context.Context, sp *models.Supplier) error
	GetSupplier(ctx context.Context, id string) (*models.Supplier, error)
	ListSuppliers(ctx context.Context, status models.SupplierStatus) ([]models.Supplier, error)
	UpdateSupplierStatus(ctx context.Context, supplierID string, status models.SupplierStatus) error
	SetSupplierGroups(ctx context.Context, supplierID string, groups []string) error
	AddSupplierDocument(ctx context.Context, doc *models.SupplierDocument) error
}
