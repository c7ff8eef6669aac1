package domain

import "time"

type Product struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Barcode    string    `json:"barcode"`
	Quantity   int       `json:"quantity"`
	PriceCents int64     `json:"price_cents"`
	CostCents  int64     `json:"cost_cents"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type ProductCreateRequest struct {
	Name       string `json:"name"`
	Barcode    string `json:"barcode"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"price_cents"`
	CostCents  int64  `json:"cost_cents"`
}

type ProductUpdateRequest struct {
	Name       *string `json:"name,omitempty"`
	Barcode    *string `json:"barcode,omitempty"`
	Quantity   *int    `json:"quantity,omitempty"`
	PriceCents *int64  `json:"price_cents,omitempty"`
	CostCents  *int64  `json:"cost_cents,omitempty"`
}

// StockAdjustment is the outcome of one atomic quantity change.
type StockAdjustment struct {
	Before  int     `json:"quantity_before"`
	After   int     `json:"quantity_after"`
	Product Product `json:"product"`
}

type LedgerEntry struct {
	ID             int64     `json:"id"`
	ProductID      string    `json:"product_id"`
	ProductName    string    `json:"product_name"`
	ProductBarcode string    `json:"product_barcode"`
	Operation      string    `json:"operation"`
	Delta          int       `json:"delta"`
	QuantityBefore int       `json:"quantity_before"`
	QuantityAfter  int       `json:"quantity_after"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	UnitCostCents  int64     `json:"unit_cost_cents"`
	TotalCents     int64     `json:"total_cents"`
	ProfitCents    int64     `json:"profit_cents"`
	SessionID      string    `json:"session_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type LedgerFilter struct {
	ProductID string
	SessionID string
	Operation string
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

type LedgerListResponse struct {
	Entries []LedgerEntry `json:"entries"`
	Limit   int           `json:"limit"`
	Offset  int           `json:"offset"`
}

type Session struct {
	ID              string     `json:"id"`
	SessionNumber   int64      `json:"session_number"`
	Status          string     `json:"status"`
	StartedAt       time.Time  `json:"started_at"`
	ClosedAt        *time.Time `json:"closed_at,omitempty"`
	SalesCount      int64      `json:"sales_count"`
	TotalSalesCents int64      `json:"total_sales_cents"`
	ProfitCents     int64      `json:"profit_cents"`
}

type CartItem struct {
	SessionID      string    `json:"session_id"`
	ProductID      string    `json:"product_id"`
	ProductName    string    `json:"product_name"`
	ProductBarcode string    `json:"product_barcode"`
	Quantity       int       `json:"quantity"`
	PriceCents     int64     `json:"price_cents"`
	CostCents      int64     `json:"cost_cents"`
	AddedAt        time.Time `json:"added_at"`
}

type CartAddRequest struct {
	ProductID string `json:"product_id,omitempty"`
	Barcode   string `json:"barcode,omitempty"`
	Quantity  int    `json:"quantity,omitempty"`
}

type CartAddResponse struct {
	Item          CartItem `json:"item"`
	AlreadyInCart bool     `json:"already_in_cart"`
	StockOnHand   int      `json:"stock_on_hand"`
}

type CartSetQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type CartListResponse struct {
	Items []CartItem `json:"items"`
}

// SessionTotals is the aggregate of a session's sale entries in the ledger.
type SessionTotals struct {
	SalesCount  int64 `json:"sales_count"`
	TotalCents  int64 `json:"total_cents"`
	ProfitCents int64 `json:"profit_cents"`
}

type CheckoutLine struct {
	ProductID      string `json:"product_id"`
	ProductName    string `json:"product_name"`
	ProductBarcode string `json:"product_barcode"`
	Requested      int    `json:"requested"`
	Sold           int    `json:"sold"`
	Short          int    `json:"short"`
	TotalCents     int64  `json:"total_cents"`
	ProfitCents    int64  `json:"profit_cents"`
	Error          string `json:"error,omitempty"`
}

type CheckoutResponse struct {
	SessionID   string         `json:"session_id"`
	SoldCount   int            `json:"sold_count"`
	TotalCents  int64          `json:"total_cents"`
	ProfitCents int64          `json:"profit_cents"`
	Lines       []CheckoutLine `json:"lines"`
}

type SellRequest struct {
	SessionID string `json:"session_id,omitempty"`
}

type ReceiveRequest struct {
	Quantity int `json:"quantity"`
}

type MutationResponse struct {
	Product     Product     `json:"product"`
	LedgerEntry LedgerEntry `json:"ledger_entry"`
}

type ProductStat struct {
	ProductID    string `json:"product_id"`
	Name         string `json:"name"`
	Barcode      string `json:"barcode"`
	QuantitySold int    `json:"quantity_sold"`
	TotalCents   int64  `json:"total_cents"`
	ProfitCents  int64  `json:"profit_cents"`
}

type StatsResponse struct {
	Period        string        `json:"period"`
	From          time.Time     `json:"from"`
	To            time.Time     `json:"to"`
	SalesCount    int64         `json:"sales_count"`
	TotalCents    int64         `json:"total_cents"`
	ProfitCents   int64         `json:"profit_cents"`
	TopByQuantity []ProductStat `json:"top_by_quantity"`
	TopByProfit   []ProductStat `json:"top_by_profit"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

const (
	OperationSale    = "sale"
	OperationReceive = "receive"
)

const (
	SessionStatusOpen   = "open"
	SessionStatusClosed = "closed"
)

const (
	StatsPeriodDay   = "day"
	StatsPeriodWeek  = "week"
	StatsPeriodMonth = "month"
)
