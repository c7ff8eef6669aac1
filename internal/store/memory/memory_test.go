package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"scanpos/backend/internal/domain"
	"scanpos/backend/internal/store"
)

func seedProduct(t *testing.T, s *Store, qty int) *domain.Product {
	t.Helper()
	product, err := s.CreateProduct(context.Background(), domain.Product{
		Name:       "Air Galon 19L",
		Barcode:    "8992388550001",
		Quantity:   qty,
		PriceCents: 22000,
		CostCents:  17500,
	})
	if err != nil {
		t.Fatalf("seed product failed: %v", err)
	}
	return product
}

func TestAdjustQuantityClampsAtZero(t *testing.T) {
	s := New()
	product := seedProduct(t, s, 3)

	adj, err := s.AdjustQuantity(context.Background(), product.ID, -10, true)
	if err != nil {
		t.Fatalf("adjust failed: %v", err)
	}
	if adj.Before != 3 || adj.After != 0 {
		t.Fatalf("expected before/after 3/0, got %d/%d", adj.Before, adj.After)
	}

	_, err = s.AdjustQuantity(context.Background(), product.ID, -1, false)
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock without floor, got %v", err)
	}
}

func TestAdjustQuantityConcurrentSalesNeverOversell(t *testing.T) {
	s := New()
	const stock = 7
	const clerks = 20
	product := seedProduct(t, s, stock)

	var wg sync.WaitGroup
	befores := make(chan int, clerks)
	for i := 0; i < clerks; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			adj, err := s.AdjustQuantity(context.Background(), product.ID, -1, true)
			if err != nil {
				t.Errorf("adjust failed: %v", err)
				return
			}
			if adj.Before > 0 {
				befores <- adj.Before
			}
		}()
	}
	wg.Wait()
	close(befores)

	seen := map[int]bool{}
	sold := 0
	for before := range befores {
		if seen[before] {
			t.Fatalf("duplicate before value %d, lost update", before)
		}
		seen[before] = true
		sold++
	}
	if sold != stock {
		t.Fatalf("expected exactly %d effective sales, got %d", stock, sold)
	}

	final, err := s.GetProductByID(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if final.Quantity != 0 {
		t.Fatalf("expected final quantity 0, got %d", final.Quantity)
	}
}

func TestConcurrentCreateDuplicateBarcode(t *testing.T) {
	s := New()
	const attempts = 10

	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CreateProduct(context.Background(), domain.Product{
				Name:       "Permen Mint",
				Barcode:    "8992388550002",
				Quantity:   10,
				PriceCents: 1500,
				CostCents:  900,
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	created := 0
	for err := range results {
		if err == nil {
			created++
			continue
		}
		if !errors.Is(err, store.ErrDuplicateBarcode) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if created != 1 {
		t.Fatalf("expected exactly 1 successful create, got %d", created)
	}
}

func TestConcurrentSessionNumbersAreContiguous(t *testing.T) {
	s := New()
	const sessions = 12

	var wg sync.WaitGroup
	numbers := make(chan int64, sessions)
	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := s.CreateSession(context.Background(), "", time.Now().UTC())
			if err != nil {
				t.Errorf("create session failed: %v", err)
				return
			}
			numbers <- created.SessionNumber
		}()
	}
	wg.Wait()
	close(numbers)

	seen := map[int64]bool{}
	for n := range numbers {
		if seen[n] {
			t.Fatalf("duplicate session number %d", n)
		}
		seen[n] = true
	}
	for n := int64(1); n <= sessions; n++ {
		if !seen[n] {
			t.Fatalf("missing session number %d", n)
		}
	}
}

func TestDeleteProductCascadesCartAndLedger(t *testing.T) {
	s := New()
	ctx := context.Background()
	product := seedProduct(t, s, 5)

	session, err := s.CreateSession(ctx, "", time.Now().UTC())
	if err != nil {
		t.Fatalf("create session failed: %v", err)
	}
	if _, _, err := s.UpsertCartItem(ctx, domain.CartItem{
		SessionID:  session.ID,
		ProductID:  product.ID,
		Quantity:   1,
		PriceCents: product.PriceCents,
	}); err != nil {
		t.Fatalf("upsert cart item failed: %v", err)
	}
	if _, err := s.AppendLedger(ctx, domain.LedgerEntry{
		ProductID: product.ID,
		Operation: domain.OperationSale,
		Delta:     -1,
	}); err != nil {
		t.Fatalf("append ledger failed: %v", err)
	}

	if err := s.DeleteProduct(ctx, product.ID); err != nil {
		t.Fatalf("delete product failed: %v", err)
	}

	entries, err := s.ListLedger(ctx, domain.LedgerFilter{ProductID: product.ID})
	if err != nil {
		t.Fatalf("list ledger failed: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected ledger entries removed with product, got %d", len(entries))
	}

	items, err := s.ListCartItems(ctx, session.ID)
	if err != nil {
		t.Fatalf("list cart items failed: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected cart line removed with product, got %d", len(items))
	}
}

func TestUpsertCartItemReturnsExistingLine(t *testing.T) {
	s := New()
	ctx := context.Background()
	product := seedProduct(t, s, 5)

	session, err := s.CreateSession(ctx, "", time.Now().UTC())
	if err != nil {
		t.Fatalf("create session failed: %v", err)
	}

	first, existed, err := s.UpsertCartItem(ctx, domain.CartItem{
		SessionID: session.ID,
		ProductID: product.ID,
		Quantity:  2,
	})
	if err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	if existed {
		t.Fatalf("expected first upsert to insert")
	}

	second, existed, err := s.UpsertCartItem(ctx, domain.CartItem{
		SessionID: session.ID,
		ProductID: product.ID,
		Quantity:  9,
	})
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	if !existed {
		t.Fatalf("expected second upsert to report existing line")
	}
	if second.Quantity != first.Quantity {
		t.Fatalf("expected existing quantity %d, got %d", first.Quantity, second.Quantity)
	}
}
