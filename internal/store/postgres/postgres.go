package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"scanpos/backend/internal/domain"
	"scanpos/backend/internal/store"
	"scanpos/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the schema if it does not exist yet. Safe to run at every
// boot.
func (s *Store) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			barcode TEXT NOT NULL UNIQUE,
			quantity INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
			price_cents BIGINT NOT NULL DEFAULT 0,
			cost_cents BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS ledger_entries (
			id BIGSERIAL PRIMARY KEY,
			product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
			product_name TEXT NOT NULL,
			product_barcode TEXT NOT NULL,
			operation TEXT NOT NULL,
			delta INTEGER NOT NULL,
			quantity_before INTEGER NOT NULL,
			quantity_after INTEGER NOT NULL,
			unit_price_cents BIGINT NOT NULL DEFAULT 0,
			unit_cost_cents BIGINT NOT NULL DEFAULT 0,
			total_cents BIGINT NOT NULL DEFAULT 0,
			profit_cents BIGINT NOT NULL DEFAULT 0,
			session_id TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_created_at ON ledger_entries (created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_product_id ON ledger_entries (product_id)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_barcode ON ledger_entries (product_barcode)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_session_id ON ledger_entries (session_id)`,
		`CREATE TABLE IF NOT EXISTS sale_sessions (
			id TEXT PRIMARY KEY,
			session_number BIGINT NOT NULL UNIQUE,
			status TEXT NOT NULL DEFAULT 'open',
			started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			closed_at TIMESTAMPTZ,
			sales_count BIGINT NOT NULL DEFAULT 0,
			total_sales_cents BIGINT NOT NULL DEFAULT 0,
			profit_cents BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS cart_items (
			session_id TEXT NOT NULL REFERENCES sale_sessions(id) ON DELETE CASCADE,
			product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
			product_name TEXT NOT NULL,
			product_barcode TEXT NOT NULL,
			quantity INTEGER NOT NULL CHECK (quantity >= 1),
			price_cents BIGINT NOT NULL DEFAULT 0,
			cost_cents BIGINT NOT NULL DEFAULT 0,
			added_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (session_id, product_id)
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			username TEXT PRIMARY KEY,
			password TEXT NOT NULL,
			role TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, barcode, quantity, price_cents, cost_cents, created_at, updated_at
		FROM products
		ORDER BY name, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Barcode, &p.Quantity, &p.PriceCents, &p.CostCents, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.Barcode == "" || product.Quantity < 0 || product.PriceCents < 0 || product.CostCents < 0 {
		return nil, store.ErrInvalidInput
	}

	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO products (id, name, barcode, quantity, price_cents, cost_cents, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,now(),now())
		RETURNING created_at, updated_at
	`, product.ID, product.Name, product.Barcode, product.Quantity, product.PriceCents, product.CostCents).
		Scan(&product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateBarcode
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	return s.getProduct(ctx, "id", id)
}

func (s *Store) GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	return s.getProduct(ctx, "barcode", barcode)
}

func (s *Store) getProduct(ctx context.Context, column string, value string) (*domain.Product, error) {
	var product domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, barcode, quantity, price_cents, cost_cents, created_at, updated_at
		FROM products
		WHERE `+column+` = $1
	`, value).Scan(&product.ID, &product.Name, &product.Barcode, &product.Quantity, &product.PriceCents, &product.CostCents, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.Barcode == "" || product.Quantity < 0 || product.PriceCents < 0 || product.CostCents < 0 {
		return nil, store.ErrInvalidInput
	}

	err := s.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = $2, barcode = $3, quantity = $4, price_cents = $5, cost_cents = $6, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at
	`, product.ID, product.Name, product.Barcode, product.Quantity, product.PriceCents, product.CostCents).
		Scan(&product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateBarcode
		}
		return nil, err
	}

	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) AdjustQuantity(ctx context.Context, id string, delta int, floorAtZero bool) (*domain.StockAdjustment, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var product domain.Product
	err = tx.QueryRowContext(ctx, `
		SELECT id, name, barcode, quantity, price_cents, cost_cents, created_at, updated_at
		FROM products
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&product.ID, &product.Name, &product.Barcode, &product.Quantity, &product.PriceCents, &product.CostCents, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	before := product.Quantity
	after := before + delta
	if floorAtZero && after < 0 {
		after = 0
	}
	if after < 0 {
		return nil, store.ErrInsufficientStock
	}

	err = tx.QueryRowContext(ctx, `
		UPDATE products SET quantity = $2, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, id, after).Scan(&product.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	product.Quantity = after
	return &domain.StockAdjustment{Before: before, After: after, Product: product}, nil
}

func (s *Store) AppendLedger(ctx context.Context, entry domain.LedgerEntry) (*domain.LedgerEntry, error) {
	if entry.ProductID == "" || entry.Operation == "" {
		return nil, store.ErrInvalidInput
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO ledger_entries
			(product_id, product_name, product_barcode, operation, delta, quantity_before, quantity_after,
			 unit_price_cents, unit_cost_cents, total_cents, profit_cents, session_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING id
	`, entry.ProductID, entry.ProductName, entry.ProductBarcode, entry.Operation, entry.Delta,
		entry.QuantityBefore, entry.QuantityAfter, entry.UnitPriceCents, entry.UnitCostCents,
		entry.TotalCents, entry.ProfitCents, nullIfEmpty(entry.SessionID), entry.CreatedAt).
		Scan(&entry.ID)
	if err != nil {
		return nil, err
	}

	created := entry
	return &created, nil
}

func (s *Store) ListLedger(ctx context.Context, filter domain.LedgerFilter) ([]domain.LedgerEntry, error) {
	query := `
		SELECT id, product_id, product_name, product_barcode, operation, delta, quantity_before, quantity_after,
		       unit_price_cents, unit_cost_cents, total_cents, profit_cents, COALESCE(session_id, ''), created_at
		FROM ledger_entries
		WHERE 1=1`
	args := []any{}
	if filter.ProductID != "" {
		args = append(args, filter.ProductID)
		query += ` AND product_id = $` + strconv.Itoa(len(args))
	}
	if filter.SessionID != "" {
		args = append(args, filter.SessionID)
		query += ` AND session_id = $` + strconv.Itoa(len(args))
	}
	if filter.Operation != "" {
		args = append(args, filter.Operation)
		query += ` AND operation = $` + strconv.Itoa(len(args))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		query += ` AND created_at >= $` + strconv.Itoa(len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		query += ` AND created_at < $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.LedgerEntry, 0, 64)
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(&e.ID, &e.ProductID, &e.ProductName, &e.ProductBarcode, &e.Operation, &e.Delta,
			&e.QuantityBefore, &e.QuantityAfter, &e.UnitPriceCents, &e.UnitCostCents,
			&e.TotalCents, &e.ProfitCents, &e.SessionID, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) AggregateSession(ctx context.Context, sessionID string) (*domain.SessionTotals, error) {
	var totals domain.SessionTotals
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(-delta), 0), COALESCE(SUM(total_cents), 0), COALESCE(SUM(profit_cents), 0)
		FROM ledger_entries
		WHERE session_id = $1 AND operation = 'sale'
	`, sessionID).Scan(&totals.SalesCount, &totals.TotalCents, &totals.ProfitCents)
	if err != nil {
		return nil, err
	}
	return &totals, nil
}

func (s *Store) AggregateSales(ctx context.Context, from time.Time, to time.Time) (*domain.SessionTotals, []domain.ProductStat, error) {
	var totals domain.SessionTotals
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(-delta), 0), COALESCE(SUM(total_cents), 0), COALESCE(SUM(profit_cents), 0)
		FROM ledger_entries
		WHERE operation = 'sale' AND created_at >= $1 AND created_at < $2
	`, from, to).Scan(&totals.SalesCount, &totals.TotalCents, &totals.ProfitCents)
	if err != nil {
		return nil, nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, MAX(product_name), MAX(product_barcode),
		       COALESCE(SUM(-delta), 0), COALESCE(SUM(total_cents), 0), COALESCE(SUM(profit_cents), 0)
		FROM ledger_entries
		WHERE operation = 'sale' AND created_at >= $1 AND created_at < $2
		GROUP BY product_id
	`, from, to)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	stats := make([]domain.ProductStat, 0, 32)
	for rows.Next() {
		var st domain.ProductStat
		if err := rows.Scan(&st.ProductID, &st.Name, &st.Barcode, &st.QuantitySold, &st.TotalCents, &st.ProfitCents); err != nil {
			return nil, nil, err
		}
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return &totals, stats, nil
}

func (s *Store) CreateSession(ctx context.Context, id string, startedAt time.Time) (*domain.Session, error) {
	if id == "" {
		id = xid.New("sess")
	}

	// session_number is assigned inside the insert; a concurrent insert can
	// race to the same number, which the unique constraint rejects, so retry.
	var lastErr error
	for attempt := 0; attempt < 5; attempt++ {
		session := domain.Session{ID: id, Status: domain.SessionStatusOpen, StartedAt: startedAt}
		err := s.db.QueryRowContext(ctx, `
			INSERT INTO sale_sessions (id, session_number, status, started_at)
			SELECT $1, COALESCE(MAX(session_number), 0) + 1, 'open', $2 FROM sale_sessions
			RETURNING session_number, started_at
		`, id, startedAt).Scan(&session.SessionNumber, &session.StartedAt)
		if err == nil {
			return &session, nil
		}
		if !isUniqueViolation(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (s *Store) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	var session domain.Session
	var closedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, session_number, status, started_at, closed_at, sales_count, total_sales_cents, profit_cents
		FROM sale_sessions
		WHERE id = $1
	`, id).Scan(&session.ID, &session.SessionNumber, &session.Status, &session.StartedAt, &closedAt,
		&session.SalesCount, &session.TotalSalesCents, &session.ProfitCents)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if closedAt.Valid {
		t := closedAt.Time
		session.ClosedAt = &t
	}
	return &session, nil
}

func (s *Store) ListSessions(ctx context.Context, onlyOpen bool) ([]domain.Session, error) {
	query := `
		SELECT id, session_number, status, started_at, closed_at, sales_count, total_sales_cents, profit_cents
		FROM sale_sessions`
	if onlyOpen {
		query += ` WHERE status = 'open'`
	}
	query += ` ORDER BY session_number DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]domain.Session, 0, 16)
	for rows.Next() {
		var session domain.Session
		var closedAt sql.NullTime
		if err := rows.Scan(&session.ID, &session.SessionNumber, &session.Status, &session.StartedAt, &closedAt,
			&session.SalesCount, &session.TotalSalesCents, &session.ProfitCents); err != nil {
			return nil, err
		}
		if closedAt.Valid {
			t := closedAt.Time
			session.ClosedAt = &t
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (s *Store) CloseSession(ctx context.Context, id string, totals domain.SessionTotals, closedAt time.Time) (*domain.Session, error) {
	var session domain.Session
	err := s.db.QueryRowContext(ctx, `
		UPDATE sale_sessions
		SET status = 'closed', closed_at = $2, sales_count = $3, total_sales_cents = $4, profit_cents = $5
		WHERE id = $1 AND status = 'open'
		RETURNING id, session_number, status, started_at, sales_count, total_sales_cents, profit_cents
	`, id, closedAt, totals.SalesCount, totals.TotalCents, totals.ProfitCents).
		Scan(&session.ID, &session.SessionNumber, &session.Status, &session.StartedAt,
			&session.SalesCount, &session.TotalSalesCents, &session.ProfitCents)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, getErr := s.GetSession(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, store.ErrSessionClosed
		}
		return nil, err
	}
	session.ClosedAt = &closedAt

	if _, err := s.db.ExecContext(ctx, `DELETE FROM cart_items WHERE session_id = $1`, id); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	// Cart rows cascade; ledger rows keep their session id.
	res, err := s.db.ExecContext(ctx, `DELETE FROM sale_sessions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) UpsertCartItem(ctx context.Context, item domain.CartItem) (*domain.CartItem, bool, error) {
	if item.SessionID == "" || item.ProductID == "" || item.Quantity < 1 {
		return nil, false, store.ErrInvalidInput
	}
	if item.AddedAt.IsZero() {
		item.AddedAt = time.Now().UTC()
	}

	var inserted domain.CartItem
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO cart_items (session_id, product_id, product_name, product_barcode, quantity, price_cents, cost_cents, added_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (session_id, product_id) DO NOTHING
		RETURNING session_id, product_id, product_name, product_barcode, quantity, price_cents, cost_cents, added_at
	`, item.SessionID, item.ProductID, item.ProductName, item.ProductBarcode, item.Quantity, item.PriceCents, item.CostCents, item.AddedAt).
		Scan(&inserted.SessionID, &inserted.ProductID, &inserted.ProductName, &inserted.ProductBarcode,
			&inserted.Quantity, &inserted.PriceCents, &inserted.CostCents, &inserted.AddedAt)
	if err == nil {
		return &inserted, false, nil
	}
	if isForeignKeyViolation(err) {
		return nil, false, store.ErrNotFound
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}

	// Conflict path: the item is already in the cart, return it unchanged.
	existing, err := s.GetCartItem(ctx, item.SessionID, item.ProductID)
	if err != nil {
		return nil, false, err
	}
	return existing, true, nil
}

func (s *Store) GetCartItem(ctx context.Context, sessionID string, productID string) (*domain.CartItem, error) {
	var item domain.CartItem
	err := s.db.QueryRowContext(ctx, `
		SELECT session_id, product_id, product_name, product_barcode, quantity, price_cents, cost_cents, added_at
		FROM cart_items
		WHERE session_id = $1 AND product_id = $2
	`, sessionID, productID).Scan(&item.SessionID, &item.ProductID, &item.ProductName, &item.ProductBarcode,
		&item.Quantity, &item.PriceCents, &item.CostCents, &item.AddedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (s *Store) SetCartItemQuantity(ctx context.Context, sessionID string, productID string, quantity int) (*domain.CartItem, error) {
	var item domain.CartItem
	err := s.db.QueryRowContext(ctx, `
		UPDATE cart_items SET quantity = $3
		WHERE session_id = $1 AND product_id = $2
		RETURNING session_id, product_id, product_name, product_barcode, quantity, price_cents, cost_cents, added_at
	`, sessionID, productID, quantity).Scan(&item.SessionID, &item.ProductID, &item.ProductName, &item.ProductBarcode,
		&item.Quantity, &item.PriceCents, &item.CostCents, &item.AddedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (s *Store) DeleteCartItem(ctx context.Context, sessionID string, productID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM cart_items WHERE session_id = $1 AND product_id = $2
	`, sessionID, productID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListCartItems(ctx context.Context, sessionID string) ([]domain.CartItem, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, product_id, product_name, product_barcode, quantity, price_cents, cost_cents, added_at
		FROM cart_items
		WHERE session_id = $1
		ORDER BY added_at, product_id
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.CartItem, 0, 16)
	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.SessionID, &item.ProductID, &item.ProductName, &item.ProductBarcode,
			&item.Quantity, &item.PriceCents, &item.CostCents, &item.AddedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ClearCartItems(ctx context.Context, sessionID string) error {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM cart_items WHERE session_id = $1`, sessionID)
	return err
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidInput
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidInput
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

