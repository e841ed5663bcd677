// Package sourcetest provides a small Olist-shaped SQLite database for tests.
package sourcetest

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/config"
	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/source"
)

// Schema creates the subset of the Olist tables the queries and oracles touch.
const Schema = `
CREATE TABLE customers (
	customer_id TEXT PRIMARY KEY,
	customer_unique_id TEXT NOT NULL,
	customer_city TEXT,
	customer_state TEXT
);
CREATE TABLE orders (
	order_id TEXT PRIMARY KEY,
	customer_id TEXT NOT NULL,
	order_status TEXT,
	order_purchase_timestamp TEXT
);
CREATE TABLE order_items (
	order_id TEXT NOT NULL,
	order_item_id INTEGER NOT NULL,
	product_id TEXT NOT NULL,
	seller_id TEXT NOT NULL,
	price REAL,
	freight_value REAL
);
CREATE TABLE order_payments (
	order_id TEXT NOT NULL,
	payment_sequential INTEGER,
	payment_type TEXT,
	payment_installments INTEGER,
	payment_value REAL
);
CREATE TABLE products (
	product_id TEXT PRIMARY KEY,
	product_category_name TEXT
);
CREATE TABLE sellers (
	seller_id TEXT PRIMARY KEY,
	seller_state TEXT
);
`

// Fixture rows. Customer c4 never ordered.
const Data = `
INSERT INTO customers VALUES
	('c1', 'u1', 'sao paulo', 'SP'),
	('c2', 'u2', 'rio de janeiro', 'RJ'),
	('c3', 'u3', 'campinas', 'SP'),
	('c4', 'u4', 'belo horizonte', 'MG');
INSERT INTO orders VALUES
	('o1', 'c1', 'delivered', '2018-01-01 00:00:00'),
	('o2', 'c1', 'delivered', '2018-01-11 00:00:00'),
	('o3', 'c2', 'delivered', '2018-01-21 00:00:00'),
	('o4', 'c3', 'shipped',   '2018-01-31 00:00:00');
INSERT INTO order_items VALUES
	('o1', 1, 'p1', 's1', 100.00, 10.00),
	('o1', 2, 'p2', 's1',  50.00,  5.00),
	('o2', 1, 'p1', 's2', 100.00, 12.00),
	('o3', 1, 'p3', 's2',  30.50,  4.00),
	('o4', 1, 'p2', 's1',  50.00,  6.00);
INSERT INTO order_payments VALUES
	('o1', 1, 'credit_card', 3, 165.00),
	('o2', 1, 'boleto',      1, 112.00),
	('o3', 1, 'credit_card', 2,  34.50),
	('o4', 1, 'voucher',     1,  56.00);
INSERT INTO products VALUES
	('p1', 'bed_bath_table'),
	('p2', 'toys'),
	('p3', 'toys');
INSERT INTO sellers VALUES
	('s1', 'SP'),
	('s2', 'RJ');
`

// Aggregates of the fixture, for assertions.
const (
	TotalRevenue          = 330.5
	TotalPaymentValue     = 367.5
	TotalCustomers        = 4
	TotalActiveCustomers  = 3
	TotalInactiveCustomer = 1
	TotalOrders           = 4
	TotalOrderItems       = 5
	TotalPayments         = 4
	TotalProducts         = 3
	TotalSellers          = 2
	TotalStates           = 3
	TotalCategories       = 2
	DatasetSpanDays       = 30
)

// Open returns a source backed by a fresh SQLite file holding the fixture.
func Open(t testing.TB) *source.Source {
	t.Helper()
	src, err := source.Open(context.Background(), Config(t))
	if err != nil {
		t.Fatalf("open sqlite source: %v", err)
	}
	t.Cleanup(func() { _ = src.Close() })
	return src
}

// Config seeds a fresh SQLite file with the fixture and returns the source
// configuration pointing at it.
func Config(t testing.TB) config.SourceConfig {
	t.Helper()
	cfg := config.SourceConfig{
		Driver:   "sqlite",
		Database: filepath.Join(t.TempDir(), "olist.db"),
	}
	db, err := sql.Open("sqlite", cfg.ConnectionString())
	if err != nil {
		t.Fatalf("open sqlite fixture: %v", err)
	}
	defer db.Close()

	for _, stmt := range []string{Schema, Data} {
		if _, err := db.ExecContext(context.Background(), stmt); err != nil {
			t.Fatalf("seed fixture: %v", err)
		}
	}
	return cfg
}

// Exec runs a write against a source opened by Open, lifting SQLite's
// query_only guard on one pinned connection for the duration.
func Exec(t testing.TB, src *source.Source, stmt string) {
	t.Helper()
	ctx := context.Background()
	conn, err := src.DB.Conn(ctx)
	if err != nil {
		t.Fatalf("pin connection: %v", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "PRAGMA query_only(0)"); err != nil {
		t.Fatalf("lift query_only: %v", err)
	}
	defer conn.ExecContext(ctx, "PRAGMA query_only(1)")
	if _, err := conn.ExecContext(ctx, stmt); err != nil {
		t.Fatalf("exec %q: %v", stmt, err)
	}
}
