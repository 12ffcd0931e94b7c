package db

import (
	"context"

	"compras/models"
)

// Question (Вопрос)

const questionColumns = `id, demand_id, supplier_id, body, asked_at, answer, answered_by, answered_at`

func (s *Storage) CreateQuestion(ctx context.Context, q *models.Question) error {
	q.AskedAt = s.now()
	_, err := exec(ctx, s.db, `INSERT INTO questions (`+questionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.DemandID, q.SupplierID, q.Body, q.AskedAt, q.Answer, q.AnsweredBy, q.AnsweredAt)
	return err
}

func (s *Storage) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	q := &models.Question{}
	if err := get(ctx, s.db, q, `SELECT `+questionColumns+` FROM questions WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return q, nil
}

// AnswerQuestion записывает ответ; повторный ответ перезаписывает предыдущий.
func (s *Storage) AnswerQuestion(ctx context.Context, q *models.Question) error {
	res, err := exec(ctx, s.db, `UPDATE questions SET answer = ?, answered_by = ?, answered_at = ? WHERE id = ?`,
		q.Answer, q.AnsweredBy, q.AnsweredAt, q.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkQuestionRead отмечает ответ прочитанным пользователем; повторная отметка ничего не меняет.
func (s *Storage) MarkQuestionRead(ctx context.Context, questionID, userID string) error {
	_, err := exec(ctx, s.db, `
        INSERT INTO question_reads (question_id, user_id, read_at) VALUES (?, ?, ?)
        ON CONFLICT (question_id, user_id) DO NOTHING`,
		questionID, userID, s.now())
	return err
}

// ListUnreadAnswers возвращает отвеченные вопросы поставщика, которые пользователь ещё не видел.
func (s *Storage) ListUnreadAnswers(ctx context.Context, supplierID, userID string) ([]models.Question, error) {
	questions := []models.Question{}
	err := selectAll(ctx, s.db, &questions, `
        SELECT `+questionColumns+` FROM questions q
        WHERE q.supplier_id = ? AND q.answered_at IS NOT NULL
          AND NOT EXISTS (SELECT 1 FROM question_reads r WHERE r.question_id = q.id AND r.user_id = ?)
        ORDER BY q.answered_at ASC`,
		supplierID, userID)
	return questions, err
}
