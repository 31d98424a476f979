package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/pro804501/evaluateai-ai-backend/internal/models"
)

// MemoryRepository is a mutex-guarded in-memory Repository used by tests
// and local development. Values are deep-copied across the boundary so
// callers never alias stored state.
type MemoryRepository struct {
	mu          sync.Mutex
	users       map[string]*models.User
	limits      map[string]*models.Limits
	classes     map[string]*models.Class
	evaluators  map[string]*models.Evaluator
	evaluations map[string]*models.Evaluation
	shopItems   map[string]*models.ShopItem
	purchases   []*models.Purchase
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:       make(map[string]*models.User),
		limits:      make(map[string]*models.Limits),
		classes:     make(map[string]*models.Class),
		evaluators:  make(map[string]*models.Evaluator),
		evaluations: make(map[string]*models.Evaluation),
		shopItems:   make(map[string]*models.ShopItem),
	}
}

func deepCopy[T any](src *T) *T {
	if src == nil {
		return nil
	}
	raw, err := json.Marshal(src)
	if err != nil {
		panic(fmt.Sprintf("memory repository copy: %v", err))
	}
	dst := new(T)
	if err := json.Unmarshal(raw, dst); err != nil {
		panic(fmt.Sprintf("memory repository copy: %v", err))
	}
	return dst
}

// copyUser preserves fields hidden from JSON serialization
func copyUser(u *models.User) *models.User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

// --- Users ---

func (r *MemoryRepository) GetUser(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyUser(r.users[id]), nil
}

func (r *MemoryRepository) GetUserByToken(_ context.Context, token string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ApiToken == token {
			return copyUser(u), nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) CreateUser(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.users[u.ID]; exists {
		return fmt.Errorf("user already exists: %s", u.ID)
	}
	r.users[u.ID] = copyUser(u)
	return nil
}

// --- Limits ---

func (r *MemoryRepository) GetLimits(_ context.Context, userID string) (*models.Limits, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, exists := r.limits[userID]
	if !exists {
		return nil, nil
	}
	clone := *l
	return &clone, nil
}

func (r *MemoryRepository) CreateLimits(_ context.Context, l *models.Limits) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *l
	r.limits[l.UserID] = &clone
	return nil
}

func (r *MemoryRepository) ConsumeLimit(_ context.Context, userID string, kind models.LimitKind, amount int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.consumeLocked(userID, kind, amount)
}

func (r *MemoryRepository) consumeLocked(userID string, kind models.LimitKind, amount int) (bool, error) {
	l, exists := r.limits[userID]
	if !exists {
		return false, nil
	}
	switch kind {
	case models.LimitEvaluator:
		if l.EvaluatorLimit < amount {
			return false, nil
		}
		l.EvaluatorLimit -= amount
	case models.LimitEvaluation:
		if l.EvaluationLimit < amount {
			return false, nil
		}
		l.EvaluationLimit -= amount
	default:
		return false, fmt.Errorf("unknown limit kind: %s", kind)
	}
	return true, nil
}

func (r *MemoryRepository) AddLimit(_ context.Context, userID string, kind models.LimitKind, amount int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, exists := r.limits[userID]
	if !exists {
		return fmt.Errorf("limits not found for user: %s", userID)
	}
	if kind == models.LimitEvaluator {
		l.EvaluatorLimit += amount
	} else {
		l.EvaluationLimit += amount
	}
	return nil
}

func (r *MemoryRepository) GrantLimits(_ context.Context, userID string, evaluatorDelta, evaluationDelta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, exists := r.limits[userID]
	if !exists {
		l = &models.Limits{UserID: userID}
		r.limits[userID] = l
	}
	l.EvaluatorLimit += evaluatorDelta
	l.EvaluationLimit += evaluationDelta
	return nil
}

// --- Classes ---

func (r *MemoryRepository) CreateClass(_ context.Context, c *models.Class) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classes[c.ID] = deepCopy(c)
	return nil
}

func (r *MemoryRepository) GetClass(_ context.Context, id string) (*models.Class, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return deepCopy(r.classes[id]), nil
}

func (r *MemoryRepository) UpdateClass(_ context.Context, c *models.Class) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.classes[c.ID]; !exists {
		return fmt.Errorf("class not found: %s", c.ID)
	}
	r.classes[c.ID] = deepCopy(c)
	return nil
}

func (r *MemoryRepository) DeleteClass(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.classes[id]; !exists {
		return fmt.Errorf("class not found: %s", id)
	}
	delete(r.classes, id)
	return nil
}

func (r *MemoryRepository) ListClassesByUser(_ context.Context, userID string) ([]*models.Class, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var classes []*models.Class
	for _, c := range r.classes {
		if c.CreatedBy == userID {
			classes = append(classes, deepCopy(c))
		}
	}
	sort.Slice(classes, func(i, j int) bool {
		return classes[i].CreatedAt.After(classes[j].CreatedAt)
	})
	return classes, nil
}

// --- Evaluators ---

func (r *MemoryRepository) CreateEvaluator(_ context.Context, e *models.Evaluator) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evaluators[e.ID] = deepCopy(e)
	return nil
}

func (r *MemoryRepository) GetEvaluator(_ context.Context, id string) (*models.Evaluator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return deepCopy(r.evaluators[id]), nil
}

func (r *MemoryRepository) UpdateEvaluator(_ context.Context, e *models.Evaluator) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, exists := r.evaluators[e.ID]
	if !exists {
		return fmt.Errorf("evaluator not found: %s", e.ID)
	}
	stored.Title = e.Title
	stored.ClassID = e.ClassID
	return nil
}

func (r *MemoryRepository) DeleteEvaluator(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.evaluators[id]; !exists {
		return fmt.Errorf("evaluator not found: %s", id)
	}
	delete(r.evaluators, id)
	return nil
}

func (r *MemoryRepository) ListEvaluatorsByUser(_ context.Context, userID string) ([]*models.Evaluator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var evaluators []*models.Evaluator
	for _, e := range r.evaluators {
		if e.UserID == userID {
			evaluators = append(evaluators, deepCopy(e))
		}
	}
	sort.Slice(evaluators, func(i, j int) bool {
		return evaluators[i].CreatedAt.After(evaluators[j].CreatedAt)
	})
	return evaluators, nil
}

// --- Evaluations ---

func (r *MemoryRepository) GetEvaluation(_ context.Context, evaluatorID string) (*models.Evaluation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return deepCopy(r.evaluations[evaluatorID]), nil
}

func (r *MemoryRepository) UpsertEvaluation(_ context.Context, e *models.Evaluation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evaluations[e.EvaluatorID] = deepCopy(e)
	return nil
}

func (r *MemoryRepository) SaveGradingResult(_ context.Context, evaluatorID string, rollNo int, result *models.GradingResult, spend LimitSpend) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.evaluations[evaluatorID]
	if !exists {
		return false, fmt.Errorf("evaluation not found: %s", evaluatorID)
	}

	applied, err := r.consumeLocked(spend.UserID, spend.Kind, spend.Amount)
	if err != nil || !applied {
		return false, err
	}

	if e.Data == nil {
		e.Data = make(map[int]*models.GradingResult)
	}
	e.Data[rollNo] = deepCopy(result)
	return true, nil
}

func (r *MemoryRepository) SaveAnswers(_ context.Context, evaluatorID string, rollNo int, answers []models.Answer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.evaluations[evaluatorID]
	if !exists {
		return fmt.Errorf("evaluation not found: %s", evaluatorID)
	}
	if e.Data == nil {
		e.Data = make(map[int]*models.GradingResult)
	}
	entry := e.Data[rollNo]
	if entry == nil {
		entry = &models.GradingResult{}
		e.Data[rollNo] = entry
	}
	entry.Answers = *deepCopy(&answers)
	return nil
}

func (r *MemoryRepository) DeleteEvaluation(_ context.Context, evaluatorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.evaluations, evaluatorID)
	return nil
}

func (r *MemoryRepository) ListEvaluations(_ context.Context) ([]*models.Evaluation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var evaluations []*models.Evaluation
	for _, e := range r.evaluations {
		evaluations = append(evaluations, deepCopy(e))
	}
	return evaluations, nil
}

// --- Shop ---

func (r *MemoryRepository) ListShopItems(_ context.Context, onlyEnabled bool) ([]*models.ShopItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []*models.ShopItem
	for _, item := range r.shopItems {
		if onlyEnabled && !item.Enabled {
			continue
		}
		clone := *item
		items = append(items, &clone)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Price < items[j].Price })
	return items, nil
}

func (r *MemoryRepository) GetShopItem(_ context.Context, id string) (*models.ShopItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, exists := r.shopItems[id]
	if !exists {
		return nil, nil
	}
	clone := *item
	return &clone, nil
}

// AddShopItem seeds a limits package (test helper)
func (r *MemoryRepository) AddShopItem(item *models.ShopItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *item
	r.shopItems[item.ID] = &clone
}

func (r *MemoryRepository) CreatePurchase(_ context.Context, p *models.Purchase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *p
	r.purchases = append(r.purchases, &clone)
	return nil
}

func (r *MemoryRepository) ListPurchasesByUser(_ context.Context, userID string) ([]*models.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var purchases []*models.Purchase
	for i := len(r.purchases) - 1; i >= 0; i-- {
		if r.purchases[i].UserID == userID {
			clone := *r.purchases[i]
			purchases = append(purchases, &clone)
		}
	}
	return purchases, nil
}

// --- Health ---

func (r *MemoryRepository) Ping(_ context.Context) error { return nil }

func (r *MemoryRepository) Close() error { return nil }
