package oracle

// Standard holds the aggregates the KPI query artifacts are checked against.
func Standard() Battery {
	return Battery{
		Profile: ProfileStandard,
		Metrics: []Metric{
			Scalar("total_revenue", `SELECT SUM(price) FROM order_items`),
			Scalar("total_customers", `SELECT COUNT(DISTINCT customer_id) FROM customers`),
			Scalar("total_orders", `SELECT COUNT(*) FROM orders`),
			Scalar("total_products", `SELECT COUNT(*) FROM products`),
			Scalar("total_active_customers", `
				SELECT COUNT(DISTINCT o.customer_id)
				FROM orders o
				JOIN order_items oi ON o.order_id = oi.order_id`),
			Scalar("total_payments", `SELECT COUNT(*) FROM order_payments`),
			Scalar("total_inactive_customers", `
				SELECT COUNT(DISTINCT c.customer_id)
				FROM customers c
				LEFT JOIN orders o ON c.customer_id = o.customer_id
				LEFT JOIN order_items oi ON o.order_id = oi.order_id
				WHERE o.order_id IS NULL OR oi.order_item_id IS NULL`),
			Scalar("total_states", `SELECT COUNT(DISTINCT customer_state) FROM customers`),
			Scalar("total_categories", `SELECT COUNT(DISTINCT product_category_name) FROM products`),
		},
	}
}

// Curated column sets.
var (
	CustomerFeatureColumns = []string{
		"customer_unique_id", "total_orders", "first_purchase_ts", "last_purchase_ts",
		"tenure_days", "avg_order_value", "total_spent", "avg_items_per_order",
		"avg_days_between_orders", "preferred_payment_type", "avg_installments",
		"customer_city", "customer_state",
	}
	OrderFeatureColumns = []string{
		"order_id", "customer_id", "hours_to_approval", "days_to_carrier",
		"days_carrier_to_customer", "days_est_vs_actual", "order_items_value",
		"freight_value", "freight_ratio", "distinct_sellers",
		"distinct_products", "total_items", "max_installments",
		"primary_payment_type",
	}
	ProductSellerFeatureColumns = []string{
		"product_id", "category", "avg_price", "avg_freight",
		"orders_per_product", "avg_review_score",
		"seller_id", "orders_fulfilled", "avg_ship_days", "avg_seller_review",
	}
)

// Curated holds the aggregates the curated feature tables are checked against.
func Curated() Battery {
	return Battery{
		Profile: ProfileCurated,
		Metrics: []Metric{
			Scalar("total_customers", `SELECT COUNT(DISTINCT customer_unique_id) FROM customers`),
			Scalar("total_gross_revenue", `SELECT SUM(oi.price) FROM order_items oi`),
			Scalar("total_orders", `SELECT COUNT(*) FROM orders`),
			Scalar("total_revenue", `SELECT SUM(payment_value) FROM order_payments`),
			Scalar("total_products", `SELECT COUNT(DISTINCT product_id) FROM products`),
			Scalar("total_sellers", `SELECT COUNT(DISTINCT seller_id) FROM sellers`),
			Scalar("total_order_items", `SELECT COUNT(*) FROM order_items`),
			{
				Name: "dataset_span_days",
				SQL: `SELECT EXTRACT(EPOCH FROM (
					MAX(order_purchase_timestamp) - MIN(order_purchase_timestamp)
				)) / 86400 FROM orders`,
				Dialects: map[string]string{
					"sqlite": `SELECT julianday(MAX(order_purchase_timestamp)) - julianday(MIN(order_purchase_timestamp)) FROM orders`,
				},
			},
			Fixed("expected_customer_cols", CustomerFeatureColumns),
			Fixed("expected_order_cols", OrderFeatureColumns),
			Fixed("expected_product_seller_cols", ProductSellerFeatureColumns),
			Fixed("max_orders_95pct", 50),
			Fixed("max_spent_95pct", 20000),
			Fixed("max_ship_days_95pct", 60),
		},
	}
}
