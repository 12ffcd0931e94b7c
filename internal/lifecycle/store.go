package lifecycle

import (
	"context"

	"compras/db"
	"compras/models"
)

// Store - то, что движку нужно от хранилища. Реализуется *db.Storage.
type Store interface {
	GetDepartment(ctx context.Context, id string) (*models.Department, error)
	GetSupplier(ctx context.Context, id string) (*models.Supplier, error)
	GetSupplierByName(ctx context.Context, name string) (*models.Supplier, error)
	ListSuppliers(ctx context.Context, status models.SupplierStatus) ([]models.Supplier, error)

	CreateDemand(ctx context.Context, d *models.Demand) error
	GetDemand(ctx context.Context, id string) (*models.Demand, error)
	ListDemands(ctx context.Context, f db.DemandFilter) ([]models.Demand, error)
	UpdateDemand(ctx context.Context, d *models.Demand) error
	ReplaceItems(ctx context.Context, d *models.Demand) error
	SaveWinner(ctx context.Context, d *models.Demand) error
	DeleteDemand(ctx context.Context, id string) error

	SaveProposal(ctx context.Context, p *models.Proposal) error

	CreateQuestion(ctx context.Context, q *models.Question) error
	GetQuestion(ctx context.Context, id string) (*models.Question, error)
	AnswerQuestion(ctx context.Context, q *models.Question) error
	MarkQuestionRead(ctx context.Context, questionID, userID string) error
	ListUnreadAnswers(ctx context.Context, supplierID, userID string) ([]models.Question, error)

	AppendAudit(ctx context.Context, e *models.AuditEntry) error
}
