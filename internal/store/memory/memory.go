package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"scanpos/backend/internal/domain"
	"scanpos/backend/internal/store"
	"scanpos/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	productsByID    map[string]domain.Product
	productIDByCode map[string]string
	ledger          []domain.LedgerEntry
	ledgerNextID    int64
	sessionsByID    map[string]domain.Session
	nextSessionNum  int64
	cartBySession   map[string]map[string]domain.CartItem
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_CLERK_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	clerkPwd := envOr("SEED_CLERK_PASSWORD", "clerk123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CLERK_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CLERK_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"clerk", clerkPwd, "clerk"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func New() *Store {
	return &Store{
		productsByID:    map[string]domain.Product{},
		productIDByCode: map[string]string{},
		ledger:          []domain.LedgerEntry{},
		sessionsByID:    map[string]domain.Session{},
		cartBySession:   map[string]map[string]domain.CartItem{},
		usersByUsername: seedUsers(),
	}
}

func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()
	products := []domain.Product{
		{Name: "Mie Goreng Instan", Barcode: "8992388112233", Quantity: 48, PriceCents: 3500, CostCents: 2700},
		{Name: "Telur 10 Butir", Barcode: "8992388223344", Quantity: 20, PriceCents: 26500, CostCents: 23000},
		{Name: "Susu UHT 1L", Barcode: "8992388334455", Quantity: 15, PriceCents: 18900, CostCents: 13600},
		{Name: "Roti Tawar", Barcode: "8992388445566", Quantity: 12, PriceCents: 17800, CostCents: 12400},
		{Name: "Kopi Sachet", Barcode: "8992388556677", Quantity: 90, PriceCents: 2600, CostCents: 1700},
		{Name: "Gula 1kg", Barcode: "8992388667788", Quantity: 25, PriceCents: 17400, CostCents: 15300},
		{Name: "Teh Celup", Barcode: "8992388778899", Quantity: 30, PriceCents: 9800, CostCents: 7200},
		{Name: "Air Mineral 600ml", Barcode: "8992388889900", Quantity: 120, PriceCents: 3900, CostCents: 3200},
	}
	for _, p := range products {
		p.ID = xid.New("prod")
		p.CreatedAt = now
		p.UpdatedAt = now
		s.productsByID[p.ID] = p
		s.productIDByCode[p.Barcode] = p.ID
	}
	return s
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.productsByID))
	for _, p := range s.productsByID {
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Name == b.Name {
			return cmpString(a.ID, b.ID)
		}
		return cmpString(a.Name, b.Name)
	})

	return products, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.Name == "" || product.Barcode == "" || product.Quantity < 0 || product.PriceCents < 0 || product.CostCents < 0 {
		return nil, store.ErrInvalidInput
	}
	if _, exists := s.productIDByCode[product.Barcode]; exists {
		return nil, store.ErrDuplicateBarcode
	}

	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now
	s.productsByID[product.ID] = product
	s.productIDByCode[product.Barcode] = product.ID
	created := product
	return &created, nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.productsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) GetProductByBarcode(_ context.Context, barcode string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.productIDByCode[barcode]
	if !exists {
		return nil, store.ErrNotFound
	}
	product := s.productsByID[id]
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.Name == "" || product.Barcode == "" || product.Quantity < 0 || product.PriceCents < 0 || product.CostCents < 0 {
		return nil, store.ErrInvalidInput
	}
	current, exists := s.productsByID[product.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if product.Barcode != current.Barcode {
		if _, taken := s.productIDByCode[product.Barcode]; taken {
			return nil, store.ErrDuplicateBarcode
		}
		delete(s.productIDByCode, current.Barcode)
		s.productIDByCode[product.Barcode] = product.ID
	}

	product.CreatedAt = current.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	s.productsByID[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.productsByID[id]
	if !exists {
		return store.ErrNotFound
	}
	delete(s.productsByID, id)
	delete(s.productIDByCode, product.Barcode)

	// Cascade: ledger rows and cart rows referencing the product go with it.
	kept := s.ledger[:0]
	for _, entry := range s.ledger {
		if entry.ProductID != id {
			kept = append(kept, entry)
		}
	}
	s.ledger = kept
	for _, cart := range s.cartBySession {
		delete(cart, id)
	}
	return nil
}

func (s *Store) AdjustQuantity(_ context.Context, id string, delta int, floorAtZero bool) (*domain.StockAdjustment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.productsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}

	before := product.Quantity
	after := before + delta
	if floorAtZero && after < 0 {
		after = 0
	}
	if after < 0 {
		return nil, store.ErrInsufficientStock
	}

	product.Quantity = after
	product.UpdatedAt = time.Now().UTC()
	s.productsByID[id] = product

	return &domain.StockAdjustment{Before: before, After: after, Product: product}, nil
}

func (s *Store) AppendLedger(_ context.Context, entry domain.LedgerEntry) (*domain.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ProductID == "" || entry.Operation == "" {
		return nil, store.ErrInvalidInput
	}
	s.ledgerNextID++
	entry.ID = s.ledgerNextID
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.ledger = append(s.ledger, entry)
	created := entry
	return &created, nil
}

func (s *Store) ListLedger(_ context.Context, filter domain.LedgerFilter) ([]domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.LedgerEntry, 0, len(s.ledger))
	for _, entry := range s.ledger {
		if filter.ProductID != "" && entry.ProductID != filter.ProductID {
			continue
		}
		if filter.SessionID != "" && entry.SessionID != filter.SessionID {
			continue
		}
		if filter.Operation != "" && entry.Operation != filter.Operation {
			continue
		}
		if filter.From != nil && entry.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !entry.CreatedAt.Before(*filter.To) {
			continue
		}
		result = append(result, entry)
	}

	slices.SortFunc(result, func(a, b domain.LedgerEntry) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return int(b.ID - a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []domain.LedgerEntry{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *Store) AggregateSession(_ context.Context, sessionID string) (*domain.SessionTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := domain.SessionTotals{}
	for _, entry := range s.ledger {
		if entry.SessionID != sessionID || entry.Operation != domain.OperationSale {
			continue
		}
		totals.SalesCount += int64(-entry.Delta)
		totals.TotalCents += entry.TotalCents
		totals.ProfitCents += entry.ProfitCents
	}
	return &totals, nil
}

func (s *Store) AggregateSales(_ context.Context, from time.Time, to time.Time) (*domain.SessionTotals, []domain.ProductStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := domain.SessionTotals{}
	byProduct := map[string]*domain.ProductStat{}
	for _, entry := range s.ledger {
		if entry.Operation != domain.OperationSale {
			continue
		}
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		sold := -entry.Delta
		totals.SalesCount += int64(sold)
		totals.TotalCents += entry.TotalCents
		totals.ProfitCents += entry.ProfitCents

		stat, ok := byProduct[entry.ProductID]
		if !ok {
			stat = &domain.ProductStat{
				ProductID: entry.ProductID,
				Name:      entry.ProductName,
				Barcode:   entry.ProductBarcode,
			}
			byProduct[entry.ProductID] = stat
		}
		stat.QuantitySold += sold
		stat.TotalCents += entry.TotalCents
		stat.ProfitCents += entry.ProfitCents
	}

	stats := make([]domain.ProductStat, 0, len(byProduct))
	for _, stat := range byProduct {
		stats = append(stats, *stat)
	}
	slices.SortFunc(stats, func(a, b domain.ProductStat) int {
		return cmpString(a.ProductID, b.ProductID)
	})
	return &totals, stats, nil
}

func (s *Store) CreateSession(_ context.Context, id string, startedAt time.Time) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		id = xid.New("sess")
	}
	s.nextSessionNum++
	session := domain.Session{
		ID:            id,
		SessionNumber: s.nextSessionNum,
		Status:        domain.SessionStatusOpen,
		StartedAt:     startedAt,
	}
	s.sessionsByID[id] = session
	created := session
	return &created, nil
}

func (s *Store) GetSession(_ context.Context, id string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessionsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copySession := session
	return &copySession, nil
}

func (s *Store) ListSessions(_ context.Context, onlyOpen bool) ([]domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]domain.Session, 0, len(s.sessionsByID))
	for _, sess := range s.sessionsByID {
		if onlyOpen && sess.Status != domain.SessionStatusOpen {
			continue
		}
		sessions = append(sessions, sess)
	}
	slices.SortFunc(sessions, func(a, b domain.Session) int {
		return int(b.SessionNumber - a.SessionNumber)
	})
	return sessions, nil
}

func (s *Store) CloseSession(_ context.Context, id string, totals domain.SessionTotals, closedAt time.Time) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessionsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	if session.Status == domain.SessionStatusClosed {
		return nil, store.ErrSessionClosed
	}

	session.Status = domain.SessionStatusClosed
	session.ClosedAt = &closedAt
	session.SalesCount = totals.SalesCount
	session.TotalSalesCents = totals.TotalCents
	session.ProfitCents = totals.ProfitCents
	s.sessionsByID[id] = session
	delete(s.cartBySession, id)
	closed := session
	return &closed, nil
}

func (s *Store) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessionsByID[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.sessionsByID, id)
	delete(s.cartBySession, id)
	// Ledger entries keep their session id even after the session is gone.
	return nil
}

func (s *Store) UpsertCartItem(_ context.Context, item domain.CartItem) (*domain.CartItem, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.SessionID == "" || item.ProductID == "" || item.Quantity < 1 {
		return nil, false, store.ErrInvalidInput
	}
	if _, exists := s.sessionsByID[item.SessionID]; !exists {
		return nil, false, store.ErrNotFound
	}

	cart, ok := s.cartBySession[item.SessionID]
	if !ok {
		cart = map[string]domain.CartItem{}
		s.cartBySession[item.SessionID] = cart
	}
	if existing, ok := cart[item.ProductID]; ok {
		copyItem := existing
		return &copyItem, true, nil
	}

	if item.AddedAt.IsZero() {
		item.AddedAt = time.Now().UTC()
	}
	cart[item.ProductID] = item
	created := item
	return &created, false, nil
}

func (s *Store) GetCartItem(_ context.Context, sessionID string, productID string) (*domain.CartItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.cartBySession[sessionID][productID]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyItem := item
	return &copyItem, nil
}

func (s *Store) SetCartItemQuantity(_ context.Context, sessionID string, productID string, quantity int) (*domain.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.cartBySession[sessionID][productID]
	if !exists {
		return nil, store.ErrNotFound
	}
	item.Quantity = quantity
	s.cartBySession[sessionID][productID] = item
	updated := item
	return &updated, nil
}

func (s *Store) DeleteCartItem(_ context.Context, sessionID string, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.cartBySession[sessionID][productID]; !exists {
		return store.ErrNotFound
	}
	delete(s.cartBySession[sessionID], productID)
	return nil
}

func (s *Store) ListCartItems(_ context.Context, sessionID string) ([]domain.CartItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.sessionsByID[sessionID]; !exists {
		return nil, store.ErrNotFound
	}
	items := make([]domain.CartItem, 0, len(s.cartBySession[sessionID]))
	for _, item := range s.cartBySession[sessionID] {
		items = append(items, item)
	}
	slices.SortFunc(items, func(a, b domain.CartItem) int {
		if a.AddedAt.Equal(b.AddedAt) {
			return cmpString(a.ProductID, b.ProductID)
		}
		if a.AddedAt.Before(b.AddedAt) {
			return -1
		}
		return 1
	})
	return items, nil
}

func (s *Store) ClearCartItems(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessionsByID[sessionID]; !exists {
		return store.ErrNotFound
	}
	delete(s.cartBySession, sessionID)
	return nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.usersByUsername[user.Username]; exists {
		return store.ErrInvalidInput
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, u := range s.usersByUsername {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func cmpString(a string, b string) int {
	return strings.Compare(a, b)
}
