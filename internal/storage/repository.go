package storage

import (
	"context"

	"github.com/pro804501/evaluateai-ai-backend/internal/models"
)

// LimitSpend describes the quota unit committed together with a grading
// result. The write and the decrement succeed or fail as one transaction.
type LimitSpend struct {
	UserID string
	Kind   models.LimitKind
	Amount int
}

// Repository defines the interface for persistence. Get methods return
// (nil, nil) when the record does not exist.
type Repository interface {
	// Users
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByToken(ctx context.Context, token string) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) error

	// Limits
	GetLimits(ctx context.Context, userID string) (*models.Limits, error)
	CreateLimits(ctx context.Context, l *models.Limits) error
	// ConsumeLimit atomically decrements a counter, failing (false, nil)
	// when the remaining balance is below amount.
	ConsumeLimit(ctx context.Context, userID string, kind models.LimitKind, amount int) (bool, error)
	AddLimit(ctx context.Context, userID string, kind models.LimitKind, amount int) error
	GrantLimits(ctx context.Context, userID string, evaluatorDelta, evaluationDelta int) error

	// Classes
	CreateClass(ctx context.Context, c *models.Class) error
	GetClass(ctx context.Context, id string) (*models.Class, error)
	UpdateClass(ctx context.Context, c *models.Class) error
	DeleteClass(ctx context.Context, id string) error
	ListClassesByUser(ctx context.Context, userID string) ([]*models.Class, error)

	// Evaluators
	CreateEvaluator(ctx context.Context, e *models.Evaluator) error
	GetEvaluator(ctx context.Context, id string) (*models.Evaluator, error)
	UpdateEvaluator(ctx context.Context, e *models.Evaluator) error
	DeleteEvaluator(ctx context.Context, id string) error
	ListEvaluatorsByUser(ctx context.Context, userID string) ([]*models.Evaluator, error)

	// Evaluations
	GetEvaluation(ctx context.Context, evaluatorID string) (*models.Evaluation, error)
	UpsertEvaluation(ctx context.Context, e *models.Evaluation) error
	// SaveGradingResult writes data[rollNo] and applies the quota spend in
	// one transaction; (false, nil) means the quota guard failed and
	// nothing was written.
	SaveGradingResult(ctx context.Context, evaluatorID string, rollNo int, result *models.GradingResult, spend LimitSpend) (bool, error)
	SaveAnswers(ctx context.Context, evaluatorID string, rollNo int, answers []models.Answer) error
	DeleteEvaluation(ctx context.Context, evaluatorID string) error
	ListEvaluations(ctx context.Context) ([]*models.Evaluation, error)

	// Shop
	ListShopItems(ctx context.Context, onlyEnabled bool) ([]*models.ShopItem, error)
	GetShopItem(ctx context.Context, id string) (*models.ShopItem, error)
	CreatePurchase(ctx context.Context, p *models.Purchase) error
	ListPurchasesByUser(ctx context.Context, userID string) ([]*models.Purchase, error)

	// Health
	Ping(ctx context.Context) error
	Close() error
}
