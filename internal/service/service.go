package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"scanpos/backend/internal/domain"
	"scanpos/backend/internal/store"
	"scanpos/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo store.Repository
}

func New(repo store.Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.repo.GetProductByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) GetProductByBarcode(ctx context.Context, barcode string) (domain.Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return domain.Product{}, store.ErrInvalidInput
	}
	product, err := s.repo.GetProductByBarcode(ctx, barcode)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Barcode = strings.TrimSpace(req.Barcode)
	if req.Name == "" || req.Barcode == "" {
		return domain.Product{}, store.ErrInvalidInput
	}
	if req.Quantity < 0 || req.PriceCents < 0 || req.CostCents < 0 {
		return domain.Product{}, store.ErrInvalidInput
	}

	product := domain.Product{
		ID:         xid.New("prod"),
		Name:       req.Name,
		Barcode:    req.Barcode,
		Quantity:   req.Quantity,
		PriceCents: req.PriceCents,
		CostCents:  req.CostCents,
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAction(ctx, "product_create", created.ID, fmt.Sprintf("barcode=%s qty=%d price=%d", created.Barcode, created.Quantity, created.PriceCents))
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Product{}, store.ErrInvalidInput
	}

	existing, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	product := *existing
	if req.Name != nil {
		product.Name = strings.TrimSpace(*req.Name)
	}
	if req.Barcode != nil {
		product.Barcode = strings.TrimSpace(*req.Barcode)
	}
	if req.Quantity != nil {
		product.Quantity = *req.Quantity
	}
	if req.PriceCents != nil {
		product.PriceCents = *req.PriceCents
	}
	if req.CostCents != nil {
		product.CostCents = *req.CostCents
	}

	saved, err := s.repo.UpdateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAction(ctx, "product_update", saved.ID, fmt.Sprintf("barcode=%s qty=%d price=%d", saved.Barcode, saved.Quantity, saved.PriceCents))
	return *saved, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return fmt.Errorf("admin role required")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return store.ErrInvalidInput
	}
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.logAction(ctx, "product_delete", id, "")
	return nil
}

// Sell records the sale of a single unit, the scan-and-go path. The stock
// decrement commits first; the ledger entry follows and is best effort.
func (s *Service) Sell(ctx context.Context, productID string, sessionID string) (domain.MutationResponse, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.MutationResponse{}, store.ErrInvalidInput
	}

	adj, err := s.repo.AdjustQuantity(ctx, productID, -1, true)
	if err != nil {
		return domain.MutationResponse{}, err
	}
	if adj.Before == 0 {
		return domain.MutationResponse{}, store.ErrOutOfStock
	}

	entry := s.appendLedger(ctx, adj, domain.OperationSale, -1, strings.TrimSpace(sessionID))
	return domain.MutationResponse{Product: adj.Product, LedgerEntry: entry}, nil
}

// Receive records incoming stock for a product.
func (s *Service) Receive(ctx context.Context, productID string, quantity int) (domain.MutationResponse, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" || quantity < 1 {
		return domain.MutationResponse{}, store.ErrInvalidInput
	}

	adj, err := s.repo.AdjustQuantity(ctx, productID, quantity, false)
	if err != nil {
		return domain.MutationResponse{}, err
	}

	entry := s.appendLedger(ctx, adj, domain.OperationReceive, quantity, "")
	return domain.MutationResponse{Product: adj.Product, LedgerEntry: entry}, nil
}

// appendLedger writes the audit entry for a committed stock mutation. The
// mutation is never rolled back when the append fails; the failure is logged
// and the computed entry returned without an id.
func (s *Service) appendLedger(ctx context.Context, adj *domain.StockAdjustment, operation string, delta int, sessionID string) domain.LedgerEntry {
	units := delta
	if units < 0 {
		units = -units
	}
	entry := domain.LedgerEntry{
		ProductID:      adj.Product.ID,
		ProductName:    adj.Product.Name,
		ProductBarcode: adj.Product.Barcode,
		Operation:      operation,
		Delta:          delta,
		QuantityBefore: adj.Before,
		QuantityAfter:  adj.After,
		UnitPriceCents: adj.Product.PriceCents,
		UnitCostCents:  adj.Product.CostCents,
		TotalCents:     adj.Product.PriceCents * int64(units),
		SessionID:      sessionID,
		CreatedAt:      time.Now().UTC(),
	}
	if operation == domain.OperationSale {
		entry.ProfitCents = (adj.Product.PriceCents - adj.Product.CostCents) * int64(units)
	}

	created, err := s.repo.AppendLedger(ctx, entry)
	if err != nil {
		log.Printf("[service] WARN: ledger append failed product=%s op=%s delta=%d: %v", adj.Product.ID, operation, delta, err)
		return entry
	}
	return *created
}

func (s *Service) ListLedger(ctx context.Context, filter domain.LedgerFilter) (domain.LedgerListResponse, error) {
	if filter.Limit < 1 || filter.Limit > 500 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	entries, err := s.repo.ListLedger(ctx, filter)
	if err != nil {
		return domain.LedgerListResponse{}, err
	}
	return domain.LedgerListResponse{Entries: entries, Limit: filter.Limit, Offset: filter.Offset}, nil
}

func (s *Service) StartSession(ctx context.Context) (domain.Session, error) {
	session, err := s.repo.CreateSession(ctx, xid.New("sess"), time.Now().UTC())
	if err != nil {
		return domain.Session{}, err
	}
	s.logAction(ctx, "session_start", session.ID, fmt.Sprintf("number=%d", session.SessionNumber))
	return *session, nil
}

func (s *Service) GetSession(ctx context.Context, id string) (domain.Session, error) {
	session, err := s.repo.GetSession(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Session{}, err
	}
	return *session, nil
}

func (s *Service) ListSessions(ctx context.Context, onlyOpen bool) ([]domain.Session, error) {
	return s.repo.ListSessions(ctx, onlyOpen)
}

// CloseSession freezes the session totals from the ledger and marks it
// closed. Remaining cart items are discarded. Closed is terminal.
func (s *Service) CloseSession(ctx context.Context, id string) (domain.Session, error) {
	id = strings.TrimSpace(id)
	session, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return domain.Session{}, err
	}
	if session.Status != domain.SessionStatusOpen {
		return domain.Session{}, store.ErrSessionClosed
	}

	totals, err := s.repo.AggregateSession(ctx, id)
	if err != nil {
		return domain.Session{}, err
	}
	closed, err := s.repo.CloseSession(ctx, id, *totals, time.Now().UTC())
	if err != nil {
		return domain.Session{}, err
	}
	s.logAction(ctx, "session_close", id, fmt.Sprintf("sales=%d total=%d", closed.SalesCount, closed.TotalSalesCents))
	return *closed, nil
}

func (s *Service) DeleteSession(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return store.ErrInvalidInput
	}
	if err := s.repo.DeleteSession(ctx, id); err != nil {
		return err
	}
	s.logAction(ctx, "session_delete", id, "")
	return nil
}

// AddCartItem stages a product in a session's cart. A re-scan of a product
// already in the cart changes nothing and reports the existing line back.
func (s *Service) AddCartItem(ctx context.Context, sessionID string, req domain.CartAddRequest) (domain.CartAddResponse, error) {
	session, err := s.repo.GetSession(ctx, strings.TrimSpace(sessionID))
	if err != nil {
		return domain.CartAddResponse{}, err
	}
	if session.Status != domain.SessionStatusOpen {
		return domain.CartAddResponse{}, store.ErrSessionClosed
	}

	var product *domain.Product
	switch {
	case strings.TrimSpace(req.ProductID) != "":
		product, err = s.repo.GetProductByID(ctx, strings.TrimSpace(req.ProductID))
	case strings.TrimSpace(req.Barcode) != "":
		product, err = s.repo.GetProductByBarcode(ctx, strings.TrimSpace(req.Barcode))
	default:
		return domain.CartAddResponse{}, store.ErrInvalidInput
	}
	if err != nil {
		return domain.CartAddResponse{}, err
	}
	if product.Quantity == 0 {
		return domain.CartAddResponse{}, store.ErrOutOfStock
	}

	quantity := req.Quantity
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 1 {
		return domain.CartAddResponse{}, store.ErrInvalidInput
	}
	if quantity > product.Quantity {
		return domain.CartAddResponse{}, store.ErrInsufficientStock
	}

	item := domain.CartItem{
		SessionID:      session.ID,
		ProductID:      product.ID,
		ProductName:    product.Name,
		ProductBarcode: product.Barcode,
		Quantity:       quantity,
		PriceCents:     product.PriceCents,
		CostCents:      product.CostCents,
		AddedAt:        time.Now().UTC(),
	}
	saved, existed, err := s.repo.UpsertCartItem(ctx, item)
	if err != nil {
		return domain.CartAddResponse{}, err
	}
	return domain.CartAddResponse{Item: *saved, AlreadyInCart: existed, StockOnHand: product.Quantity}, nil
}

// SetCartItemQuantity edits a staged line. The requested quantity is checked
// against the product's current stock, not the snapshot taken at add time.
// A quantity of zero or less removes the line.
func (s *Service) SetCartItemQuantity(ctx context.Context, sessionID string, productID string, quantity int) (*domain.CartItem, error) {
	sessionID = strings.TrimSpace(sessionID)
	productID = strings.TrimSpace(productID)

	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != domain.SessionStatusOpen {
		return nil, store.ErrSessionClosed
	}

	if quantity <= 0 {
		if err := s.repo.DeleteCartItem(ctx, sessionID, productID); err != nil {
			return nil, err
		}
		return nil, nil
	}

	product, err := s.repo.GetProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if quantity > product.Quantity {
		return nil, store.ErrInsufficientStock
	}

	return s.repo.SetCartItemQuantity(ctx, sessionID, productID, quantity)
}

func (s *Service) RemoveCartItem(ctx context.Context, sessionID string, productID string) error {
	return s.repo.DeleteCartItem(ctx, strings.TrimSpace(sessionID), strings.TrimSpace(productID))
}

func (s *Service) ListCartItems(ctx context.Context, sessionID string) (domain.CartListResponse, error) {
	items, err := s.repo.ListCartItems(ctx, strings.TrimSpace(sessionID))
	if err != nil {
		return domain.CartListResponse{}, err
	}
	return domain.CartListResponse{Items: items}, nil
}

func (s *Service) ClearCartItems(ctx context.Context, sessionID string) error {
	return s.repo.ClearCartItems(ctx, strings.TrimSpace(sessionID))
}

// Checkout commits the session's cart against stock, one line at a time.
// Lines are independent: a shortfall or a vanished product on one line is
// reported in the response and never blocks the others.
func (s *Service) Checkout(ctx context.Context, sessionID string) (domain.CheckoutResponse, error) {
	sessionID = strings.TrimSpace(sessionID)
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}
	if session.Status != domain.SessionStatusOpen {
		return domain.CheckoutResponse{}, store.ErrSessionClosed
	}

	items, err := s.repo.ListCartItems(ctx, sessionID)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	resp := domain.CheckoutResponse{SessionID: sessionID, Lines: make([]domain.CheckoutLine, 0, len(items))}
	for _, item := range items {
		line := domain.CheckoutLine{
			ProductID:      item.ProductID,
			ProductName:    item.ProductName,
			ProductBarcode: item.ProductBarcode,
			Requested:      item.Quantity,
		}

		adj, err := s.repo.AdjustQuantity(ctx, item.ProductID, -item.Quantity, true)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				line.Error = "product no longer exists"
			} else {
				line.Error = "stock adjustment failed"
				log.Printf("[service] WARN: checkout adjust failed session=%s product=%s: %v", sessionID, item.ProductID, err)
			}
			line.Short = item.Quantity
			resp.Lines = append(resp.Lines, line)
			continue
		}

		sold := adj.Before - adj.After
		line.Sold = sold
		line.Short = item.Quantity - sold
		if sold > 0 {
			entry := s.appendLedger(ctx, adj, domain.OperationSale, -sold, sessionID)
			line.TotalCents = entry.TotalCents
			line.ProfitCents = entry.ProfitCents
			resp.SoldCount += sold
			resp.TotalCents += entry.TotalCents
			resp.ProfitCents += entry.ProfitCents
		}
		resp.Lines = append(resp.Lines, line)
	}

	if err := s.repo.ClearCartItems(ctx, sessionID); err != nil {
		log.Printf("[service] WARN: failed to clear cart after checkout session=%s: %v", sessionID, err)
	}

	s.logAction(ctx, "session_checkout", sessionID, fmt.Sprintf("sold=%d total=%d", resp.SoldCount, resp.TotalCents))
	return resp, nil
}

func (s *Service) logAction(ctx context.Context, action string, entityID string, detail string) {
	actor, _ := ActorFromContext(ctx)
	if detail != "" {
		log.Printf("[audit] %s entity=%s actor=%s %s", action, entityID, actor.Username, detail)
		return
	}
	log.Printf("[audit] %s entity=%s actor=%s", action, entityID, actor.Username)
}
