// Package lifecycle - движок жизненного цикла деманды: проверяет статус и роль,
// сохраняет изменение, пишет аудит и запускает рассылку.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"compras/db"
	"compras/internal/audit"
	"compras/internal/identity"
	"compras/internal/matcher"
	"compras/internal/notify"
	"compras/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/unicode/norm"
)

// Действия в журнале аудита.
const (
	ActionCreate         = "CREATE_DEMAND"
	ActionUpdateItems    = "UPDATE_ITEMS"
	ActionPublish        = "PUBLISH_DEMAND"
	ActionSubmitProposal = "SUBMIT_PROPOSAL"
	ActionDecline        = "DECLINE_DEMAND"
	ActionAskQuestion    = "ASK_QUESTION"
	ActionAnswerQuestion = "ANSWER_QUESTION"
	ActionClose          = "CLOSE_PROPOSALS"
	ActionMoveToReview   = "MOVE_TO_REVIEW"
	ActionDefineWinner   = "DEFINE_WINNER"
	ActionReject         = "REJECT_DEMAND"
	ActionCancel         = "CANCEL_DEMAND"
	ActionComplete       = "COMPLETE_DEMAND"
	ActionDelete         = "DELETE_DEMAND"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, msgs []notify.Message) notify.Report
}

type Engine struct {
	store    Store
	dispatch Dispatcher
	audit    *audit.Recorder
	log      logrus.FieldLogger
	locks    keyedMutex
	now      func() time.Time
}

func New(store Store, dispatch Dispatcher, log logrus.FieldLogger) *Engine {
	return &Engine{
		store:    store,
		dispatch: dispatch,
		audit:    audit.NewRecorder(store, log),
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// currentUser достаёт пользователя из контекста и проверяет его роль.
func currentUser(ctx context.Context, roles ...models.Role) (models.User, error) {
	u, ok := identity.FromContext(ctx)
	if !ok {
		return models.User{}, fmt.Errorf("%w: no acting user", ErrForbidden)
	}
	if len(roles) > 0 && !identity.HasRole(u, roles...) {
		return models.User{}, fmt.Errorf("%w: role %s is not allowed", ErrForbidden, u.Role)
	}
	return u, nil
}

// canManage - сотрудник секретарии работает только с демандами своего подразделения.
func canManage(u models.User, d *models.Demand) error {
	if u.Role == models.RoleDepartment && u.DepartmentID != nil && *u.DepartmentID != d.DepartmentID {
		return fmt.Errorf("%w: demand belongs to another department", ErrForbidden)
	}
	return nil
}

func (e *Engine) load(ctx context.Context, id string) (*models.Demand, error) {
	d, err := e.store.GetDemand(ctx, id)
	if err != nil {
		return nil, storeErr("load demand "+id, err)
	}
	return d, nil
}

// notify рассылает письма уже после фиксации изменения: отмена запроса рассылку не прерывает.
func (e *Engine) notify(ctx context.Context, msgs []notify.Message) notify.Report {
	if len(msgs) == 0 {
		return notify.Report{}
	}
	return e.dispatch.Dispatch(context.WithoutCancel(ctx), msgs)
}

// newProtocol - человекочитаемый номер вида 2026-1A2B3C4D.
func newProtocol(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("%d-%s", at.Year(), suffix)
}

func validateItems(items []models.Item) error {
	for i, it := range items {
		if strings.TrimSpace(it.Description) == "" {
			return validationf("items[%d]: description is required", i)
		}
		if !it.Quantity.IsPositive() {
			return validationf("items[%d]: quantity must be positive", i)
		}
		if it.TargetPrice.IsNegative() {
			return validationf("items[%d]: targetPrice must not be negative", i)
		}
		if it.GroupID == "" {
			return validationf("items[%d]: groupId is required", i)
		}
	}
	return nil
}

func assignItemIDs(items []models.Item) {
	for i := range items {
		items[i].ID = uuid.NewString()
	}
}

// Create заводит деманду в статусе RASCUNHO.
func (e *Engine) Create(ctx context.Context, in *models.Demand) (*models.Demand, error) {
	u, err := currentUser(ctx, models.RoleAdmin, models.RoleDepartment)
	if err != nil {
		return nil, err
	}

	d := &models.Demand{
		Title:            norm.NFC.String(strings.TrimSpace(in.Title)),
		Description:      in.Description,
		DepartmentID:     in.DepartmentID,
		ProposalDeadline: in.ProposalDeadline,
		Items:            append([]models.Item{}, in.Items...),
	}
	if d.DepartmentID == "" && u.DepartmentID != nil {
		d.DepartmentID = *u.DepartmentID
	}
	if d.Title == "" || len(d.Title) > 200 {
		return nil, validationf("title is required and max length 200")
	}
	// заголовок попадает в тему письма
	if strings.ContainsAny(d.Title, "\r\n") {
		return nil, validationf("title must be a single line")
	}
	if d.DepartmentID == "" {
		return nil, validationf("departmentId is required")
	}
	if err := canManage(u, d); err != nil {
		return nil, err
	}
	if _, err := e.store.GetDepartment(ctx, d.DepartmentID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, validationf("department %s does not exist", d.DepartmentID)
		}
		return nil, storeErr("load department", err)
	}
	if err := validateItems(d.Items); err != nil {
		return nil, err
	}

	d.ID = uuid.NewString()
	d.Protocol = newProtocol(e.now())
	d.Status = models.StatusDraft
	assignItemIDs(d.Items)

	if err := e.store.CreateDemand(ctx, d); err != nil {
		return nil, storeErr("create demand", err)
	}
	e.audit.Record(ctx, ActionCreate, audit.ResourceDemand, d.ID, map[string]interface{}{
		"protocol": d.Protocol,
		"items":    len(d.Items),
	})
	return d, nil
}

// UpdateItems заменяет позиции черновика.
func (e *Engine) UpdateItems(ctx context.Context, id string, items []models.Item) (*models.Demand, error) {
	u, err := currentUser(ctx, models.RoleAdmin, models.RoleDepartment)
	if err != nil {
		return nil, err
	}
	defer e.locks.Lock(id)()

	d, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := canManage(u, d); err != nil {
		return nil, err
	}
	if err := requireStatus(d, models.StatusDraft); err != nil {
		return nil, err
	}
	if err := validateItems(items); err != nil {
		return nil, err
	}

	d.Items = append([]models.Item{}, items...)
	assignItemIDs(d.Items)
	if err := e.store.ReplaceItems(ctx, d); err != nil {
		return nil, storeErr("replace items", err)
	}
	e.audit.Record(ctx, ActionUpdateItems, audit.ResourceDemand, d.ID, map[string]interface{}{"items": len(d.Items)})
	return d, nil
}

// Publish открывает приём предложений и оповещает всех подходящих поставщиков.
// deadline может быть nil, если срок уже задан в деманде.
func (e *Engine) Publish(ctx context.Context, id string, deadline *time.Time) (*models.Demand, notify.Report, error) {
	u, err := currentUser(ctx, models.RoleAdmin, models.RoleDepartment)
	if err != nil {
		return nil, notify.Report{}, err
	}

	d, err := e.publish(ctx, u, id, deadline)
	if err != nil {
		return nil, notify.Report{}, err
	}

	suppliers, err := e.store.ListSuppliers(ctx, models.SupplierActive)
	if err != nil {
		// деманда уже опубликована, рассылка best-effort
		e.log.WithError(err).WithField("demand", d.ID).Error("cannot list suppliers for publication")
		return d, notify.Report{}, nil
	}

	eligible := matcher.Eligible(d.Items, suppliers)
	msgs := make([]notify.Message, 0, len(eligible))
	for _, s := range eligible {
		msgs = append(msgs, notify.Message{
			To:       s.Email,
			Template: notify.TemplateNewOpportunity,
			Data: map[string]string{
				"SupplierName": s.Name,
				"Title":        d.Title,
				"Protocol":     d.Protocol,
				"Deadline":     notify.FormatDeadline(d.ProposalDeadline),
			},
		})
	}
	return d, e.notify(ctx, msgs), nil
}

func (e *Engine) publish(ctx context.Context, u models.User, id string, deadline *time.Time) (*models.Demand, error) {
	defer e.locks.Lock(id)()

	d, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := canManage(u, d); err != nil {
		return nil, err
	}
	if err := requireStatus(d, models.StatusDraft); err != nil {
		return nil, err
	}
	if len(d.Items) == 0 {
		return nil, validationf("demand has no items")
	}
	if deadline != nil {
		t := deadline.UTC()
		d.ProposalDeadline = &t
	}
	if d.ProposalDeadline == nil {
		return nil, validationf("proposal deadline is required")
	}
	if !d.ProposalDeadline.After(e.now()) {
		return nil, validationf("proposal deadline must be in the future")
	}

	from := d.Status
	if err := moveTo(d, models.StatusOpen); err != nil {
		return nil, err
	}
	if err := e.store.UpdateDemand(ctx, d); err != nil {
		return nil, storeErr("publish demand", err)
	}
	e.audit.Record(ctx, ActionPublish, audit.ResourceDemand, d.ID, map[string]interface{}{
		"from":     from,
		"to":       d.Status,
		"deadline": d.ProposalDeadline.Format(time.RFC3339),
	})
	return d, nil
}

// transition - общий путь для переходов без побочных эффектов, кроме аудита.
func (e *Engine) transition(ctx context.Context, u models.User, id, action string, to models.DemandStatus,
	prepare func(d *models.Demand) error) (*models.Demand, error) {
	defer e.locks.Lock(id)()

	d, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := canManage(u, d); err != nil {
		return nil, err
	}
	if prepare != nil {
		if err := prepare(d); err != nil {
			return nil, err
		}
	}

	from := d.Status
	if err := moveTo(d, to); err != nil {
		return nil, err
	}
	if err := e.store.UpdateDemand(ctx, d); err != nil {
		return nil, storeErr("update demand", err)
	}

	details := map[string]interface{}{"from": from, "to": to}
	if d.Notes != "" && (to == models.StatusRejected || to == models.StatusCancelled || to == models.StatusCompleted) {
		details["reason"] = d.Notes
	}
	e.audit.Record(ctx, action, audit.ResourceDemand, d.ID, details)
	return d, nil
}

// CloseProposals завершает приём предложений.
func (e *Engine) CloseProposals(ctx context.Context, id string) (*models.Demand, error) {
	u, err := currentUser(ctx, models.RoleAdmin, models.RoleDepartment)
	if err != nil {
		return nil, err
	}
	return e.transition(ctx, u, id, ActionClose, models.StatusClosed, nil)
}

// MoveToReview переводит деманду на анализ секретарии или склада.
func (e *Engine) MoveToReview(ctx context.Context, id string, target models.DemandStatus) (*models.Demand, error) {
	u, err := currentUser(ctx, models.RoleAdmin, models.RoleDepartment, models.RoleWarehouse)
	if err != nil {
		return nil, err
	}
	if !target.IsReview() {
		return nil, validationf("review target must be %s or %s", models.StatusUnderReview, models.StatusWarehouseReview)
	}
	return e.transition(ctx, u, id, ActionMoveToReview, target, func(d *models.Demand) error {
		return requireStatus(d, models.StatusOpen, models.StatusClosed, models.StatusUnderReview, models.StatusWarehouseReview)
	})
}

func withReason(reason string) func(d *models.Demand) error {
	return func(d *models.Demand) error {
		if strings.TrimSpace(reason) == "" {
			return validationf("reason is required")
		}
		if err := requireActive(d); err != nil {
			return err
		}
		d.Notes = reason
		return nil
	}
}

// Reject отклоняет деманду с обязательной причиной.
func (e *Engine) Reject(ctx context.Context, id, reason string) (*models.Demand, error) {
	u, err := currentUser(ctx, models.RoleAdmin, models.RoleDepartment, models.RoleWarehouse)
	if err != nil {
		return nil, err
	}
	return e.transition(ctx, u, id, ActionReject, models.StatusRejected, withReason(reason))
}

// Cancel отменяет деманду с обязательной причиной.
func (e *Engine) Cancel(ctx context.Context, id, reason string) (*models.Demand, error) {
	u, err := currentUser(ctx, models.RoleAdmin, models.RoleDepartment)
	if err != nil {
		return nil, err
	}
	return e.transition(ctx, u, id, ActionCancel, models.StatusCancelled, withReason(reason))
}

// Complete закрывает деманду с определённым победителем. notes необязательны.
func (e *Engine) Complete(ctx context.Context, id, notes string) (*models.Demand, error) {
	u, err := currentUser(ctx, models.RoleAdmin)
	if err != nil {
		return nil, err
	}
	return e.transition(ctx, u, id, ActionComplete, models.StatusCompleted, func(d *models.Demand) error {
		if strings.TrimSpace(notes) != "" {
			d.Notes = notes
		}
		return nil
	})
}

// Delete удаляет деманду со всеми позициями, предложениями, вопросами и победителем.
func (e *Engine) Delete(ctx context.Context, id string) error {
	if _, err := currentUser(ctx, models.RoleAdmin); err != nil {
		return err
	}
	defer e.locks.Lock(id)()

	d, err := e.load(ctx, id)
	if err != nil {
		return err
	}
	if err := e.store.DeleteDemand(ctx, id); err != nil {
		return storeErr("delete demand", err)
	}
	e.audit.Record(ctx, ActionDelete, audit.ResourceDemand, id, map[string]interface{}{
		"protocol": d.Protocol,
		"status":   d.Status,
	})
	return nil
}

// Get возвращает деманду. Поставщик не видит черновиков, а из предложений и вопросов
// видит только собственные.
func (e *Engine) Get(ctx context.Context, id string) (*models.Demand, error) {
	u, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	d, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Role != models.RoleSupplier {
		return d, nil
	}

	if d.Status == models.StatusDraft {
		return nil, fmt.Errorf("load demand %s: %w", id, ErrNotFound)
	}
	supplierID := ""
	if u.SupplierID != nil {
		supplierID = *u.SupplierID
	}
	proposals := []models.Proposal{}
	for _, p := range d.Proposals {
		if supplierID != "" && p.SupplierID == supplierID {
			proposals = append(proposals, p)
		}
	}
	questions := []models.Question{}
	for _, q := range d.Questions {
		if supplierID != "" && q.SupplierID == supplierID {
			questions = append(questions, q)
		}
	}
	d.Proposals, d.Questions = proposals, questions
	return d, nil
}

func (e *Engine) List(ctx context.Context, f db.DemandFilter) ([]models.Demand, error) {
	u, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, validationf("unknown status %q", f.Status)
	}
	if u.Role == models.RoleSupplier {
		if f.Status == models.StatusDraft {
			return []models.Demand{}, nil
		}
		f.ExcludeStatus = models.StatusDraft
	}
	demands, err := e.store.ListDemands(ctx, f)
	return demands, storeErr("list demands", err)
}

// PendingSuppliers - подходящие поставщики, ещё не приславшие активное предложение.
func (e *Engine) PendingSuppliers(ctx context.Context, id string) ([]models.Supplier, error) {
	if _, err := currentUser(ctx, models.RoleAdmin, models.RoleDepartment, models.RoleWarehouse); err != nil {
		return nil, err
	}
	d, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	suppliers, err := e.store.ListSuppliers(ctx, models.SupplierActive)
	if err != nil {
		return nil, storeErr("list suppliers", err)
	}
	pending := matcher.Pending(d, suppliers)
	if pending == nil {
		pending = []models.Supplier{}
	}
	return pending, nil
}
