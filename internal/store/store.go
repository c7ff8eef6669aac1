package store

import (
	"context"
	"errors"
	"time"

	"scanpos/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateBarcode  = errors.New("duplicate barcode")
	ErrOutOfStock        = errors.New("out of stock")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrSessionClosed     = errors.New("session closed")
	ErrInvalidInput      = errors.New("invalid input")
)

type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	// AdjustQuantity applies delta to the product's quantity in one atomic
	// step and reports the quantity before and after. With floorAtZero the
	// result is clamped at zero instead of going negative.
	AdjustQuantity(ctx context.Context, id string, delta int, floorAtZero bool) (*domain.StockAdjustment, error)

	AppendLedger(ctx context.Context, entry domain.LedgerEntry) (*domain.LedgerEntry, error)
	ListLedger(ctx context.Context, filter domain.LedgerFilter) ([]domain.LedgerEntry, error)
	AggregateSession(ctx context.Context, sessionID string) (*domain.SessionTotals, error)
	AggregateSales(ctx context.Context, from time.Time, to time.Time) (*domain.SessionTotals, []domain.ProductStat, error)

	CreateSession(ctx context.Context, id string, startedAt time.Time) (*domain.Session, error)
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	ListSessions(ctx context.Context, onlyOpen bool) ([]domain.Session, error)
	CloseSession(ctx context.Context, id string, totals domain.SessionTotals, closedAt time.Time) (*domain.Session, error)
	DeleteSession(ctx context.Context, id string) error

	UpsertCartItem(ctx context.Context, item domain.CartItem) (*domain.CartItem, bool, error)
	GetCartItem(ctx context.Context, sessionID string, productID string) (*domain.CartItem, error)
	SetCartItemQuantity(ctx context.Context, sessionID string, productID string, quantity int) (*domain.CartItem, error)
	DeleteCartItem(ctx context.Context, sessionID string, productID string) error
	ListCartItems(ctx context.Context, sessionID string) ([]domain.CartItem, error)
	ClearCartItems(ctx context.Context, sessionID string) error

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
}
