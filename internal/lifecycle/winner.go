package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"compras/internal/audit"
	"compras/internal/notify"
	"compras/internal/winner"
	"compras/models"

	"github.com/sirupsen/logrus"
)

// DefineWinner применяет решение о победителе, сохраняет его вместе с датой решения
// и оповещает победителей, остальных участников и секретарию.
// Повторный вызов для VENCEDOR_DEFINIDO перезаписывает победителя и повторяет рассылку.
func (e *Engine) DefineWinner(ctx context.Context, id string, dec winner.Decision) (*winner.Result, notify.Report, error) {
	if _, err := currentUser(ctx, models.RoleAdmin); err != nil {
		return nil, notify.Report{}, err
	}
	if dec == nil {
		return nil, notify.Report{}, validationf("decision is required")
	}

	d, res, err := e.defineWinner(ctx, id, dec)
	if err != nil {
		return nil, notify.Report{}, err
	}
	return res, e.notify(ctx, e.winnerMessages(ctx, d, res)), nil
}

func (e *Engine) defineWinner(ctx context.Context, id string, dec winner.Decision) (*models.Demand, *winner.Result, error) {
	defer e.locks.Lock(id)()

	d, err := e.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := requireStatus(d, models.StatusUnderReview, models.StatusWarehouseReview, models.StatusWinnerDefined); err != nil {
		return nil, nil, err
	}

	at := e.now()
	res, err := winner.Resolve(d, dec, at)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	from := d.Status
	redefinition := from == models.StatusWinnerDefined
	if redefinition {
		e.log.WithFields(logrus.Fields{
			"demand":   d.ID,
			"previous": d.Winner,
		}).Warn("winner redefined, notifications will be sent again")
	}
	if err := moveTo(d, models.StatusWinnerDefined); err != nil {
		return nil, nil, err
	}
	d.DecidedAt = &at
	d.Winner = &res.Winner

	if err := e.store.SaveWinner(ctx, d); err != nil {
		return nil, nil, storeErr("save winner", err)
	}
	e.audit.Record(ctx, ActionDefineWinner, audit.ResourceDemand, d.ID, map[string]interface{}{
		"from":         from,
		"mode":         dec.Mode(),
		"winners":      strings.Join(res.Winners, ","),
		"total":        res.TotalAdjudicated.StringFixed(2),
		"redefinition": redefinition,
	})
	return d, res, nil
}

// winnerMessages строит три вида писем: победителям, остальным участникам и секретарии.
// Адресат, которого не удалось найти, попадает в рассылку без адреса и учитывается как неудача.
func (e *Engine) winnerMessages(ctx context.Context, d *models.Demand, res *winner.Result) []notify.Message {
	msgs := make([]notify.Message, 0, len(res.Winners)+len(res.Losers)+1)

	for _, row := range res.Rows {
		msgs = append(msgs, notify.Message{
			To:       e.supplierEmail(ctx, row.SupplierName),
			Template: notify.TemplateWinner,
			Data: map[string]string{
				"SupplierName": row.SupplierName,
				"Title":        d.Title,
				"Protocol":     d.Protocol,
				"Conditions":   conditions(d, res.Winner.Mode, row),
			},
		})
	}
	for _, name := range res.Losers {
		msgs = append(msgs, notify.Message{
			To:       e.supplierEmail(ctx, name),
			Template: notify.TemplateParticipantThank,
			Data: map[string]string{
				"SupplierName": name,
				"Title":        d.Title,
				"Protocol":     d.Protocol,
			},
		})
	}

	dept := notify.Message{
		Template: notify.TemplateWinnerDepartment,
		Data: map[string]string{
			"DepartmentName": d.DepartmentID,
			"Title":          d.Title,
			"Protocol":       d.Protocol,
			"Winners":        strings.Join(res.Winners, ", "),
			"TotalValue":     notify.FormatBRL(res.TotalAdjudicated),
		},
	}
	if dep, err := e.store.GetDepartment(ctx, d.DepartmentID); err != nil {
		e.log.WithError(err).WithField("department", d.DepartmentID).Warn("cannot resolve department")
	} else {
		dept.To = dep.Email
		dept.Data["DepartmentName"] = dep.Name
	}
	return append(msgs, dept)
}

func (e *Engine) supplierEmail(ctx context.Context, name string) string {
	s, err := e.store.GetSupplierByName(ctx, name)
	if err != nil {
		e.log.WithError(err).WithField("supplier", name).Warn("cannot resolve supplier")
		return ""
	}
	return s.Email
}

// conditions - текст условий для письма победителю. При глобальном присуждении сообщаем об
// оформлении empenho, при поэлементном отправляем смотреть позиции в портале.
func conditions(d *models.Demand, mode models.WinnerMode, row winner.Row) string {
	if mode == models.ModeGlobal {
		return fmt.Sprintf("Todos os itens foram adjudicados a sua empresa. Valor total: %s. "+
			"O empenho referente à contratação está em processamento.", notify.FormatBRL(row.TotalValue))
	}

	desc := make(map[string]string, len(d.Items))
	for _, it := range d.Items {
		desc[it.ID] = it.Description
	}
	names := make([]string, 0, len(row.ItemIDs))
	for _, id := range row.ItemIDs {
		names = append(names, desc[id])
	}
	return fmt.Sprintf("Itens adjudicados: %s. Valor total: %s. "+
		"Consulte no portal os itens adjudicados à sua empresa.", strings.Join(names, ", "), notify.FormatBRL(row.TotalValue))
}

// Ranking - справочный рейтинг активных предложений.
func (e *Engine) Ranking(ctx context.Context, id string) ([]winner.Ranked, error) {
	if _, err := currentUser(ctx, models.RoleAdmin, models.RoleDepartment, models.RoleWarehouse); err != nil {
		return nil, err
	}
	d, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return winner.Rank(d.Proposals), nil
}
