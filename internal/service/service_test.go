package service

import (
	"context"
	"errors"
	"testing"

	"scanpos/backend/internal/domain"
	"scanpos/backend/internal/store"
	"scanpos/backend/internal/store/memory"
)

func newTestService() *Service {
	return New(memory.NewSeeded())
}

func adminContext() context.Context {
	return WithActor(context.Background(), domain.Actor{
		Username: "admin",
		Role:     "admin",
	})
}

func createProduct(t *testing.T, svc *Service, name, barcode string, qty int, price, cost int64) domain.Product {
	t.Helper()
	product, err := svc.CreateProduct(adminContext(), domain.ProductCreateRequest{
		Name:       name,
		Barcode:    barcode,
		Quantity:   qty,
		PriceCents: price,
		CostCents:  cost,
	})
	if err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	return product
}

func TestSellDecrementsStockAndComputesProfit(t *testing.T) {
	svc := newTestService()
	product := createProduct(t, svc, "Minyak Goreng 1L", "8992388990011", 5, 1000, 600)

	resp, err := svc.Sell(context.Background(), product.ID, "")
	if err != nil {
		t.Fatalf("sell failed: %v", err)
	}
	if resp.Product.Quantity != 4 {
		t.Fatalf("expected quantity 4 after sale, got %d", resp.Product.Quantity)
	}

	entry := resp.LedgerEntry
	if entry.Delta != -1 {
		t.Fatalf("expected delta -1, got %d", entry.Delta)
	}
	if entry.QuantityBefore != 5 || entry.QuantityAfter != 4 {
		t.Fatalf("expected before/after 5/4, got %d/%d", entry.QuantityBefore, entry.QuantityAfter)
	}
	if entry.TotalCents != 1000 {
		t.Fatalf("expected total 1000, got %d", entry.TotalCents)
	}
	if entry.ProfitCents != 400 {
		t.Fatalf("expected profit 400, got %d", entry.ProfitCents)
	}
}

func TestSellRejectsOutOfStockWithoutLedgerEntry(t *testing.T) {
	svc := newTestService()
	product := createProduct(t, svc, "Sabun Batang", "8992388990022", 1, 4500, 3100)

	if _, err := svc.Sell(context.Background(), product.ID, ""); err != nil {
		t.Fatalf("first sell failed: %v", err)
	}

	_, err := svc.Sell(context.Background(), product.ID, "")
	if !errors.Is(err, store.ErrOutOfStock) {
		t.Fatalf("expected ErrOutOfStock, got %v", err)
	}

	current, err := svc.GetProduct(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if current.Quantity != 0 {
		t.Fatalf("expected quantity 0, got %d", current.Quantity)
	}

	history, err := svc.ListLedger(context.Background(), domain.LedgerFilter{ProductID: product.ID})
	if err != nil {
		t.Fatalf("list ledger failed: %v", err)
	}
	if len(history.Entries) != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", len(history.Entries))
	}
}

func TestReceiveIncrementsStockWithZeroProfit(t *testing.T) {
	svc := newTestService()
	product := createProduct(t, svc, "Beras 5kg", "8992388990033", 4, 78000, 71000)

	resp, err := svc.Receive(context.Background(), product.ID, 3)
	if err != nil {
		t.Fatalf("receive failed: %v", err)
	}
	if resp.Product.Quantity != 7 {
		t.Fatalf("expected quantity 7, got %d", resp.Product.Quantity)
	}
	if resp.LedgerEntry.Delta != 3 {
		t.Fatalf("expected delta 3, got %d", resp.LedgerEntry.Delta)
	}
	if resp.LedgerEntry.TotalCents != 3*78000 {
		t.Fatalf("expected total %d, got %d", 3*78000, resp.LedgerEntry.TotalCents)
	}
	if resp.LedgerEntry.ProfitCents != 0 {
		t.Fatalf("expected profit 0 for receive, got %d", resp.LedgerEntry.ProfitCents)
	}
}

func TestReceiveRejectsNonPositiveQuantity(t *testing.T) {
	svc := newTestService()
	product := createProduct(t, svc, "Kecap Manis", "8992388990044", 10, 12500, 9000)

	_, err := svc.Receive(context.Background(), product.ID, 0)
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCreateProductRequiresAdmin(t *testing.T) {
	svc := newTestService()
	ctx := WithActor(context.Background(), domain.Actor{
		Username: "clerk",
		Role:     "clerk",
	})

	_, err := svc.CreateProduct(ctx, domain.ProductCreateRequest{
		Name:       "Sikat Gigi",
		Barcode:    "8992388990055",
		Quantity:   10,
		PriceCents: 9900,
		CostCents:  6500,
	})
	if err == nil {
		t.Fatalf("expected non-admin create product to fail")
	}
}

func TestCreateProductRejectsDuplicateBarcode(t *testing.T) {
	svc := newTestService()
	createProduct(t, svc, "Pasta Gigi", "8992388990066", 10, 14000, 9800)

	_, err := svc.CreateProduct(adminContext(), domain.ProductCreateRequest{
		Name:       "Pasta Gigi Duplikat",
		Barcode:    "8992388990066",
		Quantity:   5,
		PriceCents: 14000,
		CostCents:  9800,
	})
	if !errors.Is(err, store.ErrDuplicateBarcode) {
		t.Fatalf("expected ErrDuplicateBarcode, got %v", err)
	}
}

func TestAddCartItemByBarcodeAndReScanIsNoOp(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	session, err := svc.StartSession(ctx)
	if err != nil {
		t.Fatalf("start session failed: %v", err)
	}

	first, err := svc.AddCartItem(ctx, session.ID, domain.CartAddRequest{
		Barcode:  "8992388112233",
		Quantity: 2,
	})
	if err != nil {
		t.Fatalf("add cart item failed: %v", err)
	}
	if first.AlreadyInCart {
		t.Fatalf("expected first scan to create the line")
	}
	if first.Item.Quantity != 2 {
		t.Fatalf("expected quantity 2, got %d", first.Item.Quantity)
	}

	second, err := svc.AddCartItem(ctx, session.ID, domain.CartAddRequest{
		Barcode:  "8992388112233",
		Quantity: 5,
	})
	if err != nil {
		t.Fatalf("re-scan failed: %v", err)
	}
	if !second.AlreadyInCart {
		t.Fatalf("expected re-scan to report existing line")
	}
	if second.Item.Quantity != 2 {
		t.Fatalf("expected re-scan to keep quantity 2, got %d", second.Item.Quantity)
	}

	list, err := svc.ListCartItems(ctx, session.ID)
	if err != nil {
		t.Fatalf("list cart items failed: %v", err)
	}
	if len(list.Items) != 1 {
		t.Fatalf("expected 1 cart line, got %d", len(list.Items))
	}
}

func TestAddCartItemRejectsOverStockAndZeroStock(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	product := createProduct(t, svc, "Sarden Kaleng", "8992388990077", 3, 16500, 12800)
	empty := createProduct(t, svc, "Keju Slice", "8992388990088", 0, 21500, 17000)

	session, err := svc.StartSession(ctx)
	if err != nil {
		t.Fatalf("start session failed: %v", err)
	}

	_, err = svc.AddCartItem(ctx, session.ID, domain.CartAddRequest{ProductID: product.ID, Quantity: 4})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	_, err = svc.AddCartItem(ctx, session.ID, domain.CartAddRequest{ProductID: empty.ID, Quantity: 1})
	if !errors.Is(err, store.ErrOutOfStock) {
		t.Fatalf("expected ErrOutOfStock, got %v", err)
	}
}

func TestSetCartItemQuantityZeroRemovesLine(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	product := createProduct(t, svc, "Deterjen 800g", "8992388990099", 8, 23500, 18900)

	session, err := svc.StartSession(ctx)
	if err != nil {
		t.Fatalf("start session failed: %v", err)
	}
	if _, err := svc.AddCartItem(ctx, session.ID, domain.CartAddRequest{ProductID: product.ID, Quantity: 2}); err != nil {
		t.Fatalf("add cart item failed: %v", err)
	}

	item, err := svc.SetCartItemQuantity(ctx, session.ID, product.ID, 0)
	if err != nil {
		t.Fatalf("set quantity failed: %v", err)
	}
	if item != nil {
		t.Fatalf("expected removed line, got %+v", item)
	}

	list, err := svc.ListCartItems(ctx, session.ID)
	if err != nil {
		t.Fatalf("list cart items failed: %v", err)
	}
	if len(list.Items) != 0 {
		t.Fatalf("expected empty cart, got %d lines", len(list.Items))
	}
}

func TestCheckoutClampsShortfallPerLine(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	product := createProduct(t, svc, "Snack Kentang", "8992388991100", 5, 8500, 5600)

	session, err := svc.StartSession(ctx)
	if err != nil {
		t.Fatalf("start session failed: %v", err)
	}
	if _, err := svc.AddCartItem(ctx, session.ID, domain.CartAddRequest{ProductID: product.ID, Quantity: 5}); err != nil {
		t.Fatalf("add cart item failed: %v", err)
	}

	// A walk-up sale drains one unit between staging and checkout.
	if _, err := svc.Sell(ctx, product.ID, ""); err != nil {
		t.Fatalf("interleaved sell failed: %v", err)
	}

	resp, err := svc.Checkout(ctx, session.ID)
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if len(resp.Lines) != 1 {
		t.Fatalf("expected 1 checkout line, got %d", len(resp.Lines))
	}
	line := resp.Lines[0]
	if line.Sold != 4 || line.Short != 1 {
		t.Fatalf("expected sold 4 short 1, got sold %d short %d", line.Sold, line.Short)
	}
	if line.TotalCents != 4*8500 {
		t.Fatalf("expected line total %d, got %d", 4*8500, line.TotalCents)
	}
	if resp.SoldCount != 4 {
		t.Fatalf("expected sold count 4, got %d", resp.SoldCount)
	}

	current, err := svc.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if current.Quantity != 0 {
		t.Fatalf("expected quantity 0 after checkout, got %d", current.Quantity)
	}

	list, err := svc.ListCartItems(ctx, session.ID)
	if err != nil {
		t.Fatalf("list cart items failed: %v", err)
	}
	if len(list.Items) != 0 {
		t.Fatalf("expected cart cleared after checkout, got %d lines", len(list.Items))
	}
}

func TestDeleteProductDropsStagedCartLines(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	keep := createProduct(t, svc, "Saus Sambal", "8992388991111", 10, 11000, 8200)
	gone := createProduct(t, svc, "Produk Ditarik", "8992388991122", 10, 5000, 4100)

	session, err := svc.StartSession(ctx)
	if err != nil {
		t.Fatalf("start session failed: %v", err)
	}
	if _, err := svc.AddCartItem(ctx, session.ID, domain.CartAddRequest{ProductID: keep.ID, Quantity: 2}); err != nil {
		t.Fatalf("add keep failed: %v", err)
	}
	if _, err := svc.AddCartItem(ctx, session.ID, domain.CartAddRequest{ProductID: gone.ID, Quantity: 1}); err != nil {
		t.Fatalf("add gone failed: %v", err)
	}

	if err := svc.DeleteProduct(adminContext(), gone.ID); err != nil {
		t.Fatalf("delete product failed: %v", err)
	}

	list, err := svc.ListCartItems(ctx, session.ID)
	if err != nil {
		t.Fatalf("list cart items failed: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].ProductID != keep.ID {
		t.Fatalf("expected only the surviving product in the cart, got %+v", list.Items)
	}

	resp, err := svc.Checkout(ctx, session.ID)
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if len(resp.Lines) != 1 || resp.SoldCount != 2 {
		t.Fatalf("expected 1 line with 2 units sold, got %d lines sold %d", len(resp.Lines), resp.SoldCount)
	}
}

func TestCloseSessionFreezesLedgerTotals(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	product := createProduct(t, svc, "Yogurt Botol", "8992388991133", 10, 7500, 5000)

	session, err := svc.StartSession(ctx)
	if err != nil {
		t.Fatalf("start session failed: %v", err)
	}
	if _, err := svc.AddCartItem(ctx, session.ID, domain.CartAddRequest{ProductID: product.ID, Quantity: 3}); err != nil {
		t.Fatalf("add cart item failed: %v", err)
	}
	if _, err := svc.Checkout(ctx, session.ID); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	closed, err := svc.CloseSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("close session failed: %v", err)
	}
	if closed.Status != domain.SessionStatusClosed {
		t.Fatalf("expected closed status, got %s", closed.Status)
	}
	if closed.ClosedAt == nil {
		t.Fatalf("expected closed_at to be set")
	}
	if closed.SalesCount != 3 {
		t.Fatalf("expected sales count 3, got %d", closed.SalesCount)
	}
	if closed.TotalSalesCents != 3*7500 {
		t.Fatalf("expected total %d, got %d", 3*7500, closed.TotalSalesCents)
	}
	if closed.ProfitCents != 3*2500 {
		t.Fatalf("expected profit %d, got %d", 3*2500, closed.ProfitCents)
	}

	if _, err := svc.CloseSession(ctx, session.ID); !errors.Is(err, store.ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed on second close, got %v", err)
	}
	if _, err := svc.AddCartItem(ctx, session.ID, domain.CartAddRequest{ProductID: product.ID, Quantity: 1}); !errors.Is(err, store.ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed on add to closed session, got %v", err)
	}
	if _, err := svc.Checkout(ctx, session.ID); !errors.Is(err, store.ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed on checkout of closed session, got %v", err)
	}
}

func TestDeleteSessionKeepsLedgerEntries(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	product := createProduct(t, svc, "Es Krim Cup", "8992388991144", 6, 12000, 8900)

	session, err := svc.StartSession(ctx)
	if err != nil {
		t.Fatalf("start session failed: %v", err)
	}
	if _, err := svc.AddCartItem(ctx, session.ID, domain.CartAddRequest{ProductID: product.ID, Quantity: 2}); err != nil {
		t.Fatalf("add cart item failed: %v", err)
	}
	if _, err := svc.Checkout(ctx, session.ID); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	if err := svc.DeleteSession(ctx, session.ID); err != nil {
		t.Fatalf("delete session failed: %v", err)
	}
	if _, err := svc.GetSession(ctx, session.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	history, err := svc.ListLedger(ctx, domain.LedgerFilter{SessionID: session.ID})
	if err != nil {
		t.Fatalf("list ledger failed: %v", err)
	}
	if len(history.Entries) != 1 {
		t.Fatalf("expected ledger entry to survive session delete, got %d", len(history.Entries))
	}
}

func TestSessionNumbersAreSequential(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	first, err := svc.StartSession(ctx)
	if err != nil {
		t.Fatalf("start first session failed: %v", err)
	}
	second, err := svc.StartSession(ctx)
	if err != nil {
		t.Fatalf("start second session failed: %v", err)
	}
	if second.SessionNumber != first.SessionNumber+1 {
		t.Fatalf("expected sequential session numbers, got %d then %d", first.SessionNumber, second.SessionNumber)
	}

	open, err := svc.ListSessions(ctx, true)
	if err != nil {
		t.Fatalf("list open sessions failed: %v", err)
	}
	if len(open) != 2 {
		t.Fatalf("expected 2 open sessions, got %d", len(open))
	}
}

// faultyRepository wraps a real store and fails selected operations so the
// service's degraded paths can be exercised.
type faultyRepository struct {
	store.Repository
	ledgerErr    error
	adjustFailID string
}

func (r *faultyRepository) AppendLedger(ctx context.Context, entry domain.LedgerEntry) (*domain.LedgerEntry, error) {
	if r.ledgerErr != nil {
		return nil, r.ledgerErr
	}
	return r.Repository.AppendLedger(ctx, entry)
}

func (r *faultyRepository) AdjustQuantity(ctx context.Context, productID string, delta int, floorAtZero bool) (*domain.StockAdjustment, error) {
	if r.adjustFailID != "" && productID == r.adjustFailID {
		return nil, errors.New("simulated storage failure")
	}
	return r.Repository.AdjustQuantity(ctx, productID, delta, floorAtZero)
}

func TestSellSurvivesLedgerAppendFailure(t *testing.T) {
	repo := &faultyRepository{Repository: memory.NewSeeded(), ledgerErr: errors.New("ledger storage unavailable")}
	svc := New(repo)
	product := createProduct(t, svc, "Teh Botol", "8992388991155", 6, 5000, 3500)

	resp, err := svc.Sell(context.Background(), product.ID, "")
	if err != nil {
		t.Fatalf("sell failed despite committed stock mutation: %v", err)
	}
	if resp.Product.Quantity != 5 {
		t.Fatalf("expected quantity 5 after sale, got %d", resp.Product.Quantity)
	}

	entry := resp.LedgerEntry
	if entry.Delta != -1 || entry.QuantityBefore != 6 || entry.QuantityAfter != 5 {
		t.Fatalf("expected computed entry -1 6/5, got %d %d/%d", entry.Delta, entry.QuantityBefore, entry.QuantityAfter)
	}
	if entry.TotalCents != 5000 || entry.ProfitCents != 1500 {
		t.Fatalf("expected total 5000 profit 1500, got %d/%d", entry.TotalCents, entry.ProfitCents)
	}
	if entry.ID != 0 {
		t.Fatalf("expected unpersisted entry without id, got %d", entry.ID)
	}

	current, err := svc.GetProduct(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if current.Quantity != 5 {
		t.Fatalf("expected stock mutation to stand at 5, got %d", current.Quantity)
	}

	history, err := svc.ListLedger(context.Background(), domain.LedgerFilter{ProductID: product.ID})
	if err != nil {
		t.Fatalf("list ledger failed: %v", err)
	}
	if len(history.Entries) != 0 {
		t.Fatalf("expected no persisted ledger entries, got %d", len(history.Entries))
	}
}

func TestReceiveSurvivesLedgerAppendFailure(t *testing.T) {
	repo := &faultyRepository{Repository: memory.NewSeeded(), ledgerErr: errors.New("ledger storage unavailable")}
	svc := New(repo)
	product := createProduct(t, svc, "Gula Pasir 1kg", "8992388991166", 2, 16000, 14000)

	resp, err := svc.Receive(adminContext(), product.ID, 4)
	if err != nil {
		t.Fatalf("receive failed despite committed stock mutation: %v", err)
	}
	if resp.Product.Quantity != 6 {
		t.Fatalf("expected quantity 6 after receive, got %d", resp.Product.Quantity)
	}
	if resp.LedgerEntry.ProfitCents != 0 {
		t.Fatalf("expected zero profit on receive, got %d", resp.LedgerEntry.ProfitCents)
	}
}

func TestCheckoutReportsFailedAdjustAndSellsOtherLines(t *testing.T) {
	base := memory.NewSeeded()
	repo := &faultyRepository{Repository: base}
	svc := New(repo)
	ctx := context.Background()
	healthy := createProduct(t, svc, "Kopi Sachet", "8992388991177", 10, 2000, 1400)
	broken := createProduct(t, svc, "Susu Kaleng", "8992388991188", 10, 12000, 9500)

	session, err := svc.StartSession(ctx)
	if err != nil {
		t.Fatalf("start session failed: %v", err)
	}
	if _, err := svc.AddCartItem(ctx, session.ID, domain.CartAddRequest{ProductID: healthy.ID, Quantity: 3}); err != nil {
		t.Fatalf("add healthy cart item failed: %v", err)
	}
	if _, err := svc.AddCartItem(ctx, session.ID, domain.CartAddRequest{ProductID: broken.ID, Quantity: 2}); err != nil {
		t.Fatalf("add broken cart item failed: %v", err)
	}

	repo.adjustFailID = broken.ID
	resp, err := svc.Checkout(ctx, session.ID)
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if len(resp.Lines) != 2 {
		t.Fatalf("expected 2 checkout lines, got %d", len(resp.Lines))
	}

	var failed, sold domain.CheckoutLine
	for _, line := range resp.Lines {
		if line.ProductID == broken.ID {
			failed = line
		} else {
			sold = line
		}
	}
	if failed.Error != "stock adjustment failed" {
		t.Fatalf("expected stock adjustment failure on line, got %q", failed.Error)
	}
	if failed.Sold != 0 || failed.Short != 2 {
		t.Fatalf("expected failed line sold 0 short 2, got sold %d short %d", failed.Sold, failed.Short)
	}
	if sold.Sold != 3 || sold.Short != 0 {
		t.Fatalf("expected healthy line sold 3 short 0, got sold %d short %d", sold.Sold, sold.Short)
	}
	if resp.SoldCount != 3 || resp.TotalCents != 3*2000 {
		t.Fatalf("expected sold count 3 total %d, got %d total %d", 3*2000, resp.SoldCount, resp.TotalCents)
	}

	repo.adjustFailID = ""
	current, err := svc.GetProduct(ctx, broken.ID)
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if current.Quantity != 10 {
		t.Fatalf("expected broken line stock untouched at 10, got %d", current.Quantity)
	}
}
