package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pro804501/evaluateai-ai-backend/internal/models"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int32
	MaxIdleConns int32
	MaxLifetime  time.Duration
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	} else {
		poolConfig.MaxConns = 25 // default
	}

	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	} else {
		poolConfig.MinConns = 5 // default
	}

	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	} else {
		poolConfig.MaxConnLifetime = 30 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// --- Users ---

const userColumns = `id, name, email, password_hash, role, api_token, created_at`

// GetUser retrieves a user by ID
func (r *PostgresRepository) GetUser(ctx context.Context, id string) (*models.User, error) {
	return r.getUser(ctx, "id", id)
}

// GetUserByToken retrieves a user by its API token
func (r *PostgresRepository) GetUserByToken(ctx context.Context, token string) (*models.User, error) {
	return r.getUser(ctx, "api_token", token)
}

func (r *PostgresRepository) getUser(ctx context.Context, field, value string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s = $1`, userColumns, field)

	var u models.User
	var roleStr string

	err := r.pool.QueryRow(ctx, query, value).Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&roleStr,
		&u.ApiToken,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	u.Role = models.UserRole(roleStr)
	return &u, nil
}

// CreateUser creates a new user record
func (r *PostgresRepository) CreateUser(ctx context.Context, u *models.User) error {
	query := `
		INSERT INTO users (id, name, email, password_hash, role, api_token, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		u.ID,
		u.Name,
		u.Email,
		u.PasswordHash,
		string(u.Role),
		u.ApiToken,
		u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// --- Limits ---

// limitColumn maps a quota kind to its column. Kinds are a closed set, so
// interpolating the column name into SQL is safe.
func limitColumn(kind models.LimitKind) (string, error) {
	switch kind {
	case models.LimitEvaluator:
		return "evaluator_limit", nil
	case models.LimitEvaluation:
		return "evaluation_limit", nil
	}
	return "", fmt.Errorf("unknown limit kind: %s", kind)
}

// GetLimits retrieves the quota counters for a user
func (r *PostgresRepository) GetLimits(ctx context.Context, userID string) (*models.Limits, error) {
	query := `
		SELECT user_id, evaluator_limit, evaluation_limit, updated_at
		FROM limits
		WHERE user_id = $1
	`

	var l models.Limits
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&l.UserID,
		&l.EvaluatorLimit,
		&l.EvaluationLimit,
		&l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get limits: %w", err)
	}

	return &l, nil
}

// CreateLimits creates the quota record for a user
func (r *PostgresRepository) CreateLimits(ctx context.Context, l *models.Limits) error {
	query := `
		INSERT INTO limits (user_id, evaluator_limit, evaluation_limit, updated_at)
		VALUES ($1, $2, $3, NOW())
	`

	_, err := r.pool.Exec(ctx, query, l.UserID, l.EvaluatorLimit, l.EvaluationLimit)
	if err != nil {
		return fmt.Errorf("failed to create limits: %w", err)
	}

	return nil
}

// ConsumeLimit decrements a counter only when the balance covers the
// amount. The conditional UPDATE closes the check-then-act race: two
// concurrent consumers can never drive the counter negative.
func (r *PostgresRepository) ConsumeLimit(ctx context.Context, userID string, kind models.LimitKind, amount int) (bool, error) {
	column, err := limitColumn(kind)
	if err != nil {
		return false, err
	}

	query := fmt.Sprintf(`
		UPDATE limits
		SET %s = %s - $2, updated_at = NOW()
		WHERE user_id = $1 AND %s >= $2
	`, column, column, column)

	result, err := r.pool.Exec(ctx, query, userID, amount)
	if err != nil {
		return false, fmt.Errorf("failed to consume limit: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// AddLimit increments a counter (refunds and grants)
func (r *PostgresRepository) AddLimit(ctx context.Context, userID string, kind models.LimitKind, amount int) error {
	column, err := limitColumn(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UPDATE limits
		SET %s = %s + $2, updated_at = NOW()
		WHERE user_id = $1
	`, column, column)

	result, err := r.pool.Exec(ctx, query, userID, amount)
	if err != nil {
		return fmt.Errorf("failed to add limit: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("limits not found for user: %s", userID)
	}

	return nil
}

// GrantLimits applies a purchased package to both counters, creating the
// limits row if the user has none yet
func (r *PostgresRepository) GrantLimits(ctx context.Context, userID string, evaluatorDelta, evaluationDelta int) error {
	query := `
		INSERT INTO limits (user_id, evaluator_limit, evaluation_limit, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET evaluator_limit = limits.evaluator_limit + EXCLUDED.evaluator_limit,
		    evaluation_limit = limits.evaluation_limit + EXCLUDED.evaluation_limit,
		    updated_at = NOW()
	`

	_, err := r.pool.Exec(ctx, query, userID, evaluatorDelta, evaluationDelta)
	if err != nil {
		return fmt.Errorf("failed to grant limits: %w", err)
	}

	return nil
}

// --- Classes ---

// CreateClass creates a new class record
func (r *PostgresRepository) CreateClass(ctx context.Context, c *models.Class) error {
	studentsJSON, err := json.Marshal(c.Students)
	if err != nil {
		return fmt.Errorf("failed to marshal students: %w", err)
	}

	query := `
		INSERT INTO classes (id, name, section, subject, students, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.pool.Exec(ctx, query,
		c.ID,
		c.Name,
		c.Section,
		c.Subject,
		studentsJSON,
		c.CreatedBy,
		c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create class: %w", err)
	}

	return nil
}

// GetClass retrieves a class by ID
func (r *PostgresRepository) GetClass(ctx context.Context, id string) (*models.Class, error) {
	query := `
		SELECT id, name, section, subject, students, created_by, created_at
		FROM classes
		WHERE id = $1
	`

	var c models.Class
	var studentsJSON []byte

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID,
		&c.Name,
		&c.Section,
		&c.Subject,
		&studentsJSON,
		&c.CreatedBy,
		&c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get class: %w", err)
	}

	if err := json.Unmarshal(studentsJSON, &c.Students); err != nil {
		return nil, fmt.Errorf("failed to unmarshal students: %w", err)
	}

	return &c, nil
}

// UpdateClass updates class metadata and the student list
func (r *PostgresRepository) UpdateClass(ctx context.Context, c *models.Class) error {
	studentsJSON, err := json.Marshal(c.Students)
	if err != nil {
		return fmt.Errorf("failed to marshal students: %w", err)
	}

	query := `
		UPDATE classes
		SET name = $2, section = $3, subject = $4, students = $5
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, c.ID, c.Name, c.Section, c.Subject, studentsJSON)
	if err != nil {
		return fmt.Errorf("failed to update class: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("class not found: %s", c.ID)
	}

	return nil
}

// DeleteClass deletes a class by ID
func (r *PostgresRepository) DeleteClass(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM classes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete class: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("class not found: %s", id)
	}

	return nil
}

// ListClassesByUser returns the classes created by a user, newest first
func (r *PostgresRepository) ListClassesByUser(ctx context.Context, userID string) ([]*models.Class, error) {
	query := `
		SELECT id, name, section, subject, students, created_by, created_at
		FROM classes
		WHERE created_by = $1
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list classes: %w", err)
	}
	defer rows.Close()

	var classes []*models.Class

	for rows.Next() {
		var c models.Class
		var studentsJSON []byte

		err := rows.Scan(
			&c.ID,
			&c.Name,
			&c.Section,
			&c.Subject,
			&studentsJSON,
			&c.CreatedBy,
			&c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan class: %w", err)
		}

		if err := json.Unmarshal(studentsJSON, &c.Students); err != nil {
			return nil, fmt.Errorf("failed to unmarshal students: %w", err)
		}

		classes = append(classes, &c)
	}

	return classes, rows.Err()
}

// --- Evaluators ---

// CreateEvaluator creates a new evaluator record
func (r *PostgresRepository) CreateEvaluator(ctx context.Context, e *models.Evaluator) error {
	questionPapersJSON, err := json.Marshal(e.QuestionPapers)
	if err != nil {
		return fmt.Errorf("failed to marshal question papers: %w", err)
	}

	answerKeysJSON, err := json.Marshal(e.AnswerKeys)
	if err != nil {
		return fmt.Errorf("failed to marshal answer keys: %w", err)
	}

	query := `
		INSERT INTO evaluators (id, user_id, class_id, title, question_papers, answer_keys, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.pool.Exec(ctx, query,
		e.ID,
		e.UserID,
		e.ClassID,
		e.Title,
		questionPapersJSON,
		answerKeysJSON,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create evaluator: %w", err)
	}

	return nil
}

// GetEvaluator retrieves an evaluator by ID
func (r *PostgresRepository) GetEvaluator(ctx context.Context, id string) (*models.Evaluator, error) {
	query := `
		SELECT id, user_id, class_id, title, question_papers, answer_keys, created_at
		FROM evaluators
		WHERE id = $1
	`

	e, err := scanEvaluator(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get evaluator: %w", err)
	}

	return e, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvaluator(row rowScanner) (*models.Evaluator, error) {
	var e models.Evaluator
	var questionPapersJSON, answerKeysJSON []byte

	err := row.Scan(
		&e.ID,
		&e.UserID,
		&e.ClassID,
		&e.Title,
		&questionPapersJSON,
		&answerKeysJSON,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(questionPapersJSON, &e.QuestionPapers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal question papers: %w", err)
	}

	if err := json.Unmarshal(answerKeysJSON, &e.AnswerKeys); err != nil {
		return nil, fmt.Errorf("failed to unmarshal answer keys: %w", err)
	}

	return &e, nil
}

// UpdateEvaluator updates an evaluator's title and linked class
func (r *PostgresRepository) UpdateEvaluator(ctx context.Context, e *models.Evaluator) error {
	query := `
		UPDATE evaluators
		SET title = $2, class_id = $3
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, e.ID, e.Title, e.ClassID)
	if err != nil {
		return fmt.Errorf("failed to update evaluator: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("evaluator not found: %s", e.ID)
	}

	return nil
}

// DeleteEvaluator deletes an evaluator by ID
func (r *PostgresRepository) DeleteEvaluator(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM evaluators WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete evaluator: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("evaluator not found: %s", id)
	}

	return nil
}

// ListEvaluatorsByUser returns a user's evaluators, newest first
func (r *PostgresRepository) ListEvaluatorsByUser(ctx context.Context, userID string) ([]*models.Evaluator, error) {
	query := `
		SELECT id, user_id, class_id, title, question_papers, answer_keys, created_at
		FROM evaluators
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluators: %w", err)
	}
	defer rows.Close()

	var evaluators []*models.Evaluator

	for rows.Next() {
		e, err := scanEvaluator(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan evaluator: %w", err)
		}
		evaluators = append(evaluators, e)
	}

	return evaluators, rows.Err()
}

// --- Evaluations ---

// GetEvaluation retrieves the grading state for an evaluator
func (r *PostgresRepository) GetEvaluation(ctx context.Context, evaluatorID string) (*models.Evaluation, error) {
	query := `
		SELECT evaluator_id, answer_sheets, data, updated_at
		FROM evaluations
		WHERE evaluator_id = $1
	`

	var e models.Evaluation
	var sheetsJSON, dataJSON []byte

	err := r.pool.QueryRow(ctx, query, evaluatorID).Scan(
		&e.EvaluatorID,
		&sheetsJSON,
		&dataJSON,
		&e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get evaluation: %w", err)
	}

	if err := json.Unmarshal(sheetsJSON, &e.AnswerSheets); err != nil {
		return nil, fmt.Errorf("failed to unmarshal answer sheets: %w", err)
	}

	if err := json.Unmarshal(dataJSON, &e.Data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal grading data: %w", err)
	}

	return &e, nil
}

// UpsertEvaluation creates or wholesale-replaces an evaluation record
func (r *PostgresRepository) UpsertEvaluation(ctx context.Context, e *models.Evaluation) error {
	sheetsJSON, err := json.Marshal(e.AnswerSheets)
	if err != nil {
		return fmt.Errorf("failed to marshal answer sheets: %w", err)
	}

	dataJSON, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal grading data: %w", err)
	}

	query := `
		INSERT INTO evaluations (evaluator_id, answer_sheets, data, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (evaluator_id) DO UPDATE
		SET answer_sheets = EXCLUDED.answer_sheets, data = EXCLUDED.data, updated_at = NOW()
	`

	_, err = r.pool.Exec(ctx, query, e.EvaluatorID, sheetsJSON, dataJSON)
	if err != nil {
		return fmt.Errorf("failed to upsert evaluation: %w", err)
	}

	return nil
}

// SaveGradingResult commits a grading result and its quota spend together.
// The conditional decrement runs inside the same transaction as the data
// write, so a lost quota race rolls the result back too.
func (r *PostgresRepository) SaveGradingResult(ctx context.Context, evaluatorID string, rollNo int, result *models.GradingResult, spend LimitSpend) (bool, error) {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return false, fmt.Errorf("failed to marshal grading result: %w", err)
	}

	column, err := limitColumn(spend.Kind)
	if err != nil {
		return false, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	dataQuery := `
		UPDATE evaluations
		SET data = jsonb_set(COALESCE(data, '{}'::jsonb), $2::text[], $3::jsonb, true),
		    updated_at = NOW()
		WHERE evaluator_id = $1
	`

	dataResult, err := tx.Exec(ctx, dataQuery, evaluatorID, fmt.Sprintf("{%d}", rollNo), resultJSON)
	if err != nil {
		return false, fmt.Errorf("failed to write grading result: %w", err)
	}

	if dataResult.RowsAffected() == 0 {
		return false, fmt.Errorf("evaluation not found: %s", evaluatorID)
	}

	spendQuery := fmt.Sprintf(`
		UPDATE limits
		SET %s = %s - $2, updated_at = NOW()
		WHERE user_id = $1 AND %s >= $2
	`, column, column, column)

	spendResult, err := tx.Exec(ctx, spendQuery, spend.UserID, spend.Amount)
	if err != nil {
		return false, fmt.Errorf("failed to spend limit: %w", err)
	}

	if spendResult.RowsAffected() == 0 {
		return false, nil // quota guard failed, rollback
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit grading result: %w", err)
	}

	return true, nil
}

// SaveAnswers replaces data[rollNo].answers with manually edited results
func (r *PostgresRepository) SaveAnswers(ctx context.Context, evaluatorID string, rollNo int, answers []models.Answer) error {
	answersJSON, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("failed to marshal answers: %w", err)
	}

	query := `
		UPDATE evaluations
		SET data = jsonb_set(COALESCE(data, '{}'::jsonb), $2::text[], $3::jsonb, true),
		    updated_at = NOW()
		WHERE evaluator_id = $1
	`

	result, err := r.pool.Exec(ctx, query, evaluatorID, fmt.Sprintf("{%d,answers}", rollNo), answersJSON)
	if err != nil {
		return fmt.Errorf("failed to save answers: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("evaluation not found: %s", evaluatorID)
	}

	return nil
}

// DeleteEvaluation deletes the evaluation for an evaluator. Absence is not
// an error: cascade deletes are best-effort.
func (r *PostgresRepository) DeleteEvaluation(ctx context.Context, evaluatorID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM evaluations WHERE evaluator_id = $1`, evaluatorID)
	if err != nil {
		return fmt.Errorf("failed to delete evaluation: %w", err)
	}

	return nil
}

// ListEvaluations returns all evaluations (janitor sweep)
func (r *PostgresRepository) ListEvaluations(ctx context.Context) ([]*models.Evaluation, error) {
	query := `
		SELECT evaluator_id, answer_sheets, data, updated_at
		FROM evaluations
		ORDER BY updated_at ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluations: %w", err)
	}
	defer rows.Close()

	var evaluations []*models.Evaluation

	for rows.Next() {
		var e models.Evaluation
		var sheetsJSON, dataJSON []byte

		if err := rows.Scan(&e.EvaluatorID, &sheetsJSON, &dataJSON, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}

		if err := json.Unmarshal(sheetsJSON, &e.AnswerSheets); err != nil {
			return nil, fmt.Errorf("failed to unmarshal answer sheets: %w", err)
		}

		if err := json.Unmarshal(dataJSON, &e.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal grading data: %w", err)
		}

		evaluations = append(evaluations, &e)
	}

	return evaluations, rows.Err()
}

// --- Shop ---

// ListShopItems returns limits packages, optionally only enabled ones
func (r *PostgresRepository) ListShopItems(ctx context.Context, onlyEnabled bool) ([]*models.ShopItem, error) {
	query := `
		SELECT id, enabled, title, evaluator_limit, evaluation_limit, price, created_at
		FROM shop_items
	`
	if onlyEnabled {
		query += ` WHERE enabled`
	}
	query += ` ORDER BY price ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list shop items: %w", err)
	}
	defer rows.Close()

	var items []*models.ShopItem

	for rows.Next() {
		var item models.ShopItem
		err := rows.Scan(
			&item.ID,
			&item.Enabled,
			&item.Title,
			&item.EvaluatorLimit,
			&item.EvaluationLimit,
			&item.Price,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shop item: %w", err)
		}
		items = append(items, &item)
	}

	return items, rows.Err()
}

// GetShopItem retrieves a limits package by ID
func (r *PostgresRepository) GetShopItem(ctx context.Context, id string) (*models.ShopItem, error) {
	query := `
		SELECT id, enabled, title, evaluator_limit, evaluation_limit, price, created_at
		FROM shop_items
		WHERE id = $1
	`

	var item models.ShopItem
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&item.ID,
		&item.Enabled,
		&item.Title,
		&item.EvaluatorLimit,
		&item.EvaluationLimit,
		&item.Price,
		&item.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get shop item: %w", err)
	}

	return &item, nil
}

// CreatePurchase records a fulfilled purchase
func (r *PostgresRepository) CreatePurchase(ctx context.Context, p *models.Purchase) error {
	query := `
		INSERT INTO purchases (id, user_id, item_id, order_ref, amount, payment_method, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		p.ID,
		p.UserID,
		p.ItemID,
		p.OrderRef,
		p.Amount,
		p.PaymentMethod,
		p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create purchase: %w", err)
	}

	return nil
}

// ListPurchasesByUser returns a user's purchases, newest first
func (r *PostgresRepository) ListPurchasesByUser(ctx context.Context, userID string) ([]*models.Purchase, error) {
	query := `
		SELECT id, user_id, item_id, order_ref, amount, payment_method, created_at
		FROM purchases
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}
	defer rows.Close()

	var purchases []*models.Purchase

	for rows.Next() {
		var p models.Purchase
		err := rows.Scan(
			&p.ID,
			&p.UserID,
			&p.ItemID,
			&p.OrderRef,
			&p.Amount,
			&p.PaymentMethod,
			&p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}
		purchases = append(purchases, &p)
	}

	return purchases, rows.Err()
}
