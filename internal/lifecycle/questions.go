package lifecycle

import (
	"context"
	"strings"

	"compras/internal/audit"
	"compras/internal/notify"
	"compras/models"

	"github.com/google/uuid"
)

// AskQuestion регистрирует вопрос поставщика по деманде.
func (e *Engine) AskQuestion(ctx context.Context, demandID, supplierID, body string) (*models.Question, error) {
	u, err := currentUser(ctx, models.RoleSupplier, models.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(body) == "" {
		return nil, validationf("question is required")
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
	if err := requireActive(d); err != nil {
		return nil, err
	}

	q := &models.Question{ID: uuid.NewString(), DemandID: d.ID, SupplierID: s.ID, Body: body}
	if err := e.store.CreateQuestion(ctx, q); err != nil {
		return nil, storeErr("create question", err)
	}
	e.audit.Record(ctx, ActionAskQuestion, audit.ResourceQuestion, q.ID, map[string]interface{}{
		"demand":   d.ID,
		"supplier": s.Name,
	})
	return q, nil
}

// AnswerQuestion отвечает на вопрос и оповещает спросившего поставщика.
func (e *Engine) AnswerQuestion(ctx context.Context, questionID, answer string) (*models.Question, notify.Report, error) {
	u, err := currentUser(ctx, models.RoleAdmin, models.RoleDepartment)
	if err != nil {
		return nil, notify.Report{}, err
	}
	if strings.TrimSpace(answer) == "" {
		return nil, notify.Report{}, validationf("answer is required")
	}

	q, d, err := e.answer(ctx, u, questionID, answer)
	if err != nil {
		return nil, notify.Report{}, err
	}

	msg := notify.Message{
		Template: notify.TemplateQuestionAnswered,
		Data: map[string]string{
			"Protocol": d.Protocol,
			"Question": q.Body,
			"Answer":   q.Answer,
		},
	}
	s, err := e.store.GetSupplier(ctx, q.SupplierID)
	if err != nil {
		e.log.WithError(err).WithField("supplier", q.SupplierID).Warn("cannot resolve question author")
		msg.Data["SupplierName"] = q.SupplierID
	} else {
		msg.To = s.Email
		msg.Data["SupplierName"] = s.Name
	}
	return q, e.notify(ctx, []notify.Message{msg}), nil
}

func (e *Engine) answer(ctx context.Context, u models.User, questionID, answer string) (*models.Question, *models.Demand, error) {
	q, err := e.store.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, nil, storeErr("load question "+questionID, err)
	}
	defer e.locks.Lock(q.DemandID)()

	d, err := e.load(ctx, q.DemandID)
	if err != nil {
		return nil, nil, err
	}
	if err := canManage(u, d); err != nil {
		return nil, nil, err
	}
	if err := requireActive(d); err != nil {
		return nil, nil, err
	}

	at := e.now()
	q.Answer = answer
	q.AnsweredBy = u.Username
	q.AnsweredAt = &at
	if err := e.store.AnswerQuestion(ctx, q); err != nil {
		return nil, nil, storeErr("answer question", err)
	}
	e.audit.Record(ctx, ActionAnswerQuestion, audit.ResourceQuestion, q.ID, map[string]interface{}{"demand": d.ID})
	return q, d, nil
}

// MarkQuestionRead отмечает ответ прочитанным текущим пользователем.
func (e *Engine) MarkQuestionRead(ctx context.Context, questionID string) error {
	u, err := currentUser(ctx)
	if err != nil {
		return err
	}
	if _, err := e.store.GetQuestion(ctx, questionID); err != nil {
		return storeErr("load question "+questionID, err)
	}
	return storeErr("mark question read", e.store.MarkQuestionRead(ctx, questionID, u.ID))
}

// UnreadAnswers - ответы на вопросы поставщика текущего пользователя, которые он ещё не открыл.
func (e *Engine) UnreadAnswers(ctx context.Context) ([]models.Question, error) {
	u, err := currentUser(ctx, models.RoleSupplier)
	if err != nil {
		return nil, err
	}
	if u.SupplierID == nil {
		return nil, validationf("user %s is not linked to a supplier", u.Username)
	}
	questions, err := e.store.ListUnreadAnswers(ctx, *u.SupplierID, u.ID)
	if err != nil {
		return nil, storeErr("list unread answers", err)
	}
	return questions, nil
}
