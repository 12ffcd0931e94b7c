package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type (
	DemandStatus   string // Статус деманды
	SupplierStatus string // Статус поставщика
	Role           string // Роль пользователя
	WinnerMode     string // Режим определения победителя
)

// Значения статусов хранятся в БД в исходном (португальском) виде.
const (
	StatusDraft           DemandStatus = "RASCUNHO"
	StatusOpen            DemandStatus = "AGUARDANDO_PROPOSTA"
	StatusClosed          DemandStatus = "FECHADA"
	StatusUnderReview     DemandStatus = "EM_ANALISE"
	StatusWarehouseReview DemandStatus = "AGUARDANDO_ANALISE_ALMOXARIFADO"
	StatusWinnerDefined   DemandStatus = "VENCEDOR_DEFINIDO"
	StatusCompleted       DemandStatus = "CONCLUIDA"
	StatusRejected        DemandStatus = "REPROVADA"
	StatusCancelled       DemandStatus = "CANCELADA"
)

// IsTerminal сообщает, что из статуса больше нет переходов.
func (s DemandStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

func (s DemandStatus) IsReview() bool {
	return s == StatusUnderReview || s == StatusWarehouseReview
}

func (s DemandStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusOpen, StatusClosed, StatusUnderReview, StatusWarehouseReview,
		StatusWinnerDefined, StatusCompleted, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

const (
	SupplierPending  SupplierStatus = "PENDENTE"
	SupplierActive   SupplierStatus = "ATIVO"
	SupplierRejected SupplierStatus = "REPROVADO"
	SupplierInactive SupplierStatus = "INATIVO"
)

const (
	RoleAdmin      Role = "ADMIN"
	RoleDepartment Role = "SECRETARIA"
	RoleWarehouse  Role = "ALMOXARIFADO"
	RoleSupplier   Role = "FORNECEDOR"
)

const (
	ModeGlobal WinnerMode = "global"
	ModeItem   WinnerMode = "item"
)

// DeclinedMarker - префикс в observations, которым поставщик отказывается от участия.
const DeclinedMarker = "[DECLINADO]"

// Сущность Секретарии (подразделения-заказчика)
type Department struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Сущность Группы (категории) товаров
type Group struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Сущность Поставщика
type Supplier struct {
	ID        string             `db:"id" json:"id"`
	Name      string             `db:"name" json:"name"`
	Email     string             `db:"email" json:"email"`
	Status    SupplierStatus     `db:"status" json:"status"`
	Groups    []string           `db:"-" json:"groups"`
	Documents []SupplierDocument `db:"-" json:"documents,omitempty"`
	CreatedAt time.Time          `db:"created_at" json:"createdAt"`
}

type SupplierDocument struct {
	ID         string    `db:"id" json:"id"`
	SupplierID string    `db:"supplier_id" json:"supplierId"`
	Name       string    `db:"name" json:"name"`
	ValidUntil time.Time `db:"valid_until" json:"validUntil"`
}

// Сущность Пользователя
type User struct {
	ID           string    `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	FullName     string    `db:"full_name" json:"fullName"`
	Email        string    `db:"email" json:"email"`
	Role         Role      `db:"role" json:"role"`
	DepartmentID *string   `db:"department_id" json:"departmentId,omitempty"`
	SupplierID   *string   `db:"supplier_id" json:"supplierId,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// Сущность Деманды (заявки на закупку)
type Demand struct {
	ID               string       `db:"id" json:"id"`
	Protocol         string       `db:"protocol" json:"protocol"`
	Title            string       `db:"title" json:"title"`
	Description      string       `db:"description" json:"description"`
	DepartmentID     string       `db:"department_id" json:"departmentId"`
	Status           DemandStatus `db:"status" json:"status"`
	ProposalDeadline *time.Time   `db:"proposal_deadline" json:"proposalDeadline,omitempty"`
	DecidedAt        *time.Time   `db:"decided_at" json:"decidedAt,omitempty"`
	Notes            string       `db:"notes" json:"notes,omitempty"`
	Version          int          `db:"version" json:"version"`
	CreatedAt        time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time    `db:"updated_at" json:"-"`

	Items     []Item     `db:"-" json:"items"`
	Proposals []Proposal `db:"-" json:"proposals,omitempty"`
	Questions []Question `db:"-" json:"questions,omitempty"`
	Winner    *Winner    `db:"-" json:"winner,omitempty"`
}

// ItemIDs возвращает идентификаторы позиций в порядке их следования.
func (d *Demand) ItemIDs() []string {
	ids := make([]string, 0, len(d.Items))
	for _, it := range d.Items {
		ids = append(ids, it.ID)
	}
	return ids
}

// Item позиция деманды
type Item struct {
	ID          string          `db:"id" json:"id"`
	DemandID    string          `db:"demand_id" json:"demandId"`
	Position    int             `db:"position" json:"position"`
	Description string          `db:"description" json:"description"`
	Quantity    decimal.Decimal `db:"quantity" json:"quantity"`
	Unit        string          `db:"unit" json:"unit"`
	TargetPrice decimal.Decimal `db:"target_price" json:"targetPrice"`
	GroupID     string          `db:"group_id" json:"groupId"`
}

// Сущность Предложения поставщика
type Proposal struct {
	ID           string          `db:"id" json:"id"`
	DemandID     string          `db:"demand_id" json:"demandId"`
	SupplierID   string          `db:"supplier_id" json:"supplierId"`
	SupplierName string          `db:"supplier_name" json:"supplierName"`
	TotalValue   decimal.Decimal `db:"total_value" json:"totalValue"`
	DeliveryDays int             `db:"delivery_days" json:"deliveryDays"`
	Observations string          `db:"observations" json:"observations"`
	Declined     bool            `db:"declined" json:"declined"`
	SubmittedAt  time.Time       `db:"submitted_at" json:"submittedAt"`
	Prices       []ItemPrice     `db:"-" json:"prices"`
}

// IsActive - предложение не отклонено поставщиком.
func (p *Proposal) IsActive() bool {
	return !p.Declined && !strings.HasPrefix(strings.TrimSpace(p.Observations), DeclinedMarker)
}

type ItemPrice struct {
	ProposalID string          `db:"proposal_id" json:"-"`
	ItemID     string          `db:"item_id" json:"itemId"`
	UnitPrice  decimal.Decimal `db:"unit_price" json:"unitPrice"`
}

// Сущность Вопроса поставщика
type Question struct {
	ID         string     `db:"id" json:"id"`
	DemandID   string     `db:"demand_id" json:"demandId"`
	SupplierID string     `db:"supplier_id" json:"supplierId"`
	Body       string     `db:"body" json:"question"`
	AskedAt    time.Time  `db:"asked_at" json:"askedAt"`
	Answer     string     `db:"answer" json:"answer,omitempty"`
	AnsweredBy string     `db:"answered_by" json:"answeredBy,omitempty"`
	AnsweredAt *time.Time `db:"answered_at" json:"answeredAt,omitempty"`
}

func (q *Question) Answered() bool { return q.AnsweredAt != nil }

// Winner итог гомологации
type Winner struct {
	Mode         WinnerMode      `json:"mode"`
	SupplierName string          `json:"supplierName,omitempty"`
	TotalValue   decimal.Decimal `json:"totalValue"`
	Items        []WinnerItem    `json:"items"`
	DecidedAt    time.Time       `json:"decidedAt"`
}

type WinnerItem struct {
	DemandID     string          `db:"demand_id" json:"-"`
	ItemID       string          `db:"item_id" json:"itemId"`
	SupplierName string          `db:"supplier_name" json:"supplierName"`
	UnitPrice    decimal.Decimal `db:"unit_price" json:"unitPrice"`
	TotalValue   decimal.Decimal `db:"total_value" json:"totalValue"`
}

// Запись журнала аудита
type AuditEntry struct {
	ID           string    `db:"id" json:"id"`
	Username     string    `db:"username" json:"user"`
	Action       string    `db:"action" json:"action"`
	ResourceType string    `db:"resource_type" json:"resourceType"`
	ResourceID   string    `db:"resource_id" json:"resourceId"`
	Details      string    `db:"details" json:"details"`
	CreatedAt    time.Time `db:"created_at" json:"timestamp"`
}
