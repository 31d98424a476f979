package models

import (
	"time"
)

// ShopItem is a purchasable limits package
type ShopItem struct {
	ID              string    `json:"id"`
	Enabled         bool      `json:"enabled"`
	Title           string    `json:"title"`
	EvaluatorLimit  int       `json:"evaluator_limit"`
	EvaluationLimit int       `json:"evaluation_limit"`
	Price           int       `json:"price"`
	CreatedAt       time.Time `json:"created_at"`
}

// Purchase records a fulfilled limits-package order. Payment-provider order
// creation and signature verification happen upstream; this service only
// sees the confirmed fulfillment.
type Purchase struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	ItemID        string    `json:"item_id"`
	OrderRef      string    `json:"order_ref"`
	Amount        int       `json:"amount"`
	PaymentMethod string    `json:"payment_method"`
	CreatedAt     time.Time `json:"created_at"`
}

// PurchaseView is a purchase joined with its item title for listings
type PurchaseView struct {
	ID            string `json:"id"`
	Item          string `json:"item"`
	Amount        int    `json:"amount"`
	PaymentMethod string `json:"payment_method"`
	Date          string `json:"date"`
}

// FulfillRequest represents a confirmed payment to apply to a user's limits
type FulfillRequest struct {
	UserID        string `json:"user_id"`
	ItemID        string `json:"item_id"`
	OrderRef      string `json:"order_ref"`
	PaymentMethod string `json:"payment_method"`
}
