package lifecycle

import (
	"fmt"

	"compras/models"
)

// Граф статусов деманды. Терминальные статусы исходящих рёбер не имеют.
var transitions = map[models.DemandStatus][]models.DemandStatus{
	models.StatusDraft: {
		models.StatusOpen, models.StatusRejected, models.StatusCancelled,
	},
	models.StatusOpen: {
		models.StatusClosed, models.StatusUnderReview, models.StatusWarehouseReview,
		models.StatusRejected, models.StatusCancelled,
	},
	models.StatusClosed: {
		models.StatusUnderReview, models.StatusWarehouseReview,
		models.StatusRejected, models.StatusCancelled,
	},
	models.StatusUnderReview: {
		models.StatusWarehouseReview, models.StatusWinnerDefined,
		models.StatusRejected, models.StatusCancelled,
	},
	models.StatusWarehouseReview: {
		models.StatusUnderReview, models.StatusWinnerDefined,
		models.StatusRejected, models.StatusCancelled,
	},
	models.StatusWinnerDefined: {
		// повторное определение победителя перезаписывает предыдущее
		models.StatusWinnerDefined,
		models.StatusCompleted, models.StatusRejected, models.StatusCancelled,
	},
}

// CanTransition сообщает, есть ли ребро from -> to.
func CanTransition(from, to models.DemandStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func moveTo(d *models.Demand, to models.DemandStatus) error {
	if !CanTransition(d.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, d.Status, to)
	}
	d.Status = to
	return nil
}

func requireStatus(d *models.Demand, allowed ...models.DemandStatus) error {
	for _, s := range allowed {
		if d.Status == s {
			return nil
		}
	}
	return fmt.Errorf("%w: operation not allowed in status %s", ErrInvalidTransition, d.Status)
}

func requireActive(d *models.Demand) error {
	if d.Status.IsTerminal() {
		return fmt.Errorf("%w: demand is %s", ErrInvalidTransition, d.Status)
	}
	return nil
}
