package shop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pro804501/evaluateai-ai-backend/internal/models"
	"github.com/pro804501/evaluateai-ai-backend/internal/quota"
	"github.com/pro804501/evaluateai-ai-backend/internal/storage"
)

// ErrItemNotFound is returned when a purchase references an unknown or
// disabled item
var ErrItemNotFound = errors.New("shop item not found")

// Service handles the limits-package shop: listing what is for sale,
// applying confirmed payments and reporting purchase history.
type Service struct {
	repo   storage.Repository
	ledger *quota.Ledger
}

// NewService creates a shop service
func NewService(repo storage.Repository, ledger *quota.Ledger) *Service {
	return &Service{repo: repo, ledger: ledger}
}

// ListItems returns the packages currently for sale
func (s *Service) ListItems(ctx context.Context) ([]*models.ShopItem, error) {
	items, err := s.repo.ListShopItems(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list shop items: %w", err)
	}
	return items, nil
}

// Fulfill applies a confirmed payment: records the purchase and grants the
// item's limits to the buyer. Payment verification happens upstream.
func (s *Service) Fulfill(ctx context.Context, req *models.FulfillRequest) (*models.Purchase, error) {
	item, err := s.repo.GetShopItem(ctx, req.ItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to get shop item: %w", err)
	}
	if item == nil || !item.Enabled {
		return nil, ErrItemNotFound
	}

	purchase := &models.Purchase{
		ID:            uuid.New().String(),
		UserID:        req.UserID,
		ItemID:        item.ID,
		OrderRef:      req.OrderRef,
		Amount:        item.Price,
		PaymentMethod: req.PaymentMethod,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.repo.CreatePurchase(ctx, purchase); err != nil {
		return nil, fmt.Errorf("failed to record purchase: %w", err)
	}

	if err := s.ledger.Grant(ctx, req.UserID, item.EvaluatorLimit, item.EvaluationLimit); err != nil {
		return nil, fmt.Errorf("failed to grant purchased limits: %w", err)
	}

	slog.Info("purchase fulfilled",
		"user", req.UserID,
		"item", item.Title,
		"order_ref", req.OrderRef,
	)
	return purchase, nil
}

// ListPurchases returns a user's purchase history newest first, joined
// with item titles
func (s *Service) ListPurchases(ctx context.Context, userID string) ([]*models.PurchaseView, error) {
	purchases, err := s.repo.ListPurchasesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}

	titles := make(map[string]string)
	views := make([]*models.PurchaseView, 0, len(purchases))
	for _, p := range purchases {
		title, cached := titles[p.ItemID]
		if !cached {
			item, err := s.repo.GetShopItem(ctx, p.ItemID)
			if err != nil {
				return nil, fmt.Errorf("failed to get shop item: %w", err)
			}
			if item != nil {
				title = item.Title
			}
			titles[p.ItemID] = title
		}

		views = append(views, &models.PurchaseView{
			ID:            p.ID,
			Item:          title,
			Amount:        p.Amount,
			PaymentMethod: p.PaymentMethod,
			Date:          p.CreatedAt.Format(time.RFC3339),
		})
	}

	return views, nil
}
