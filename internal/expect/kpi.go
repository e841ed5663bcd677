package expect

import (
	"math"

	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/artifact"
	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/oracle"
)

// kpiChains covers the KPI query artifacts, checked against the standard battery.
func kpiChains() map[string]Chain {
	std := func(rules ...Rule) Chain { return Chain{Profile: oracle.ProfileStandard, Rules: rules} }

	return map[string]Chain{
		// customers
		"customers_all": std(
			RowCount("customer_count", "customers", "total_customers", 0),
		),
		"customers_per_state": std(
			DistinctCount("state_count", "state", "states", "total_states"),
			ColumnSum("customer_total", "num_customers", "Number of customers", "total_customers"),
		),
		"customers_who_orders_per_state": std(
			DistinctCount("state_count", "state", "states", "total_states"),
			ColumnSum("active_customer_total", "total_customers", "Number of customers", "total_active_customers"),
		),
		"customers_no_orders": std(
			RowCount("inactive_customer_count", "customers", "total_inactive_customers", 0),
		),
		"customers_orders_with_items": std(
			RowCount("active_customer_count", "customers", "total_active_customers", 0),
		),
		"customers_aov": std(averageOrderValue()),
		"customers_order_frequency": std(
			ColumnSum("order_total", "order_count", "Total orders", "total_orders"),
			RowCount("customer_count", "customers", "total_customers", 0),
		),
		"customers_geo_location": std(
			RowCount("customer_count", "customers", "total_customers", 0),
		),

		// products
		"products_all": std(
			RowCount("product_count", "products", "total_products", 0),
		),
		"products_orders_per": std(
			RowCount("product_count", "products", "total_products", 0),
		),
		// One extra row carries the products without a category.
		"products_top_categories": std(
			RowCount("category_count", "categories", "total_categories", 1),
			MoneySum("sales_total", "total_sales", "Total sales", "total_revenue"),
		),

		// revenue
		"revenue_by_customer": std(
			MoneySum("revenue_total", "total_revenue", "Total revenue", "total_revenue"),
		),
		"revenue_total": std(
			MoneySum("revenue_total", "total_revenue", "Total revenue", "total_revenue"),
		),
		"revenue_by_state": std(
			MoneySum("revenue_total", "total_revenue", "Total revenue", "total_revenue"),
			DistinctCount("state_count", "state", "states", "total_states"),
		),

		// orders
		"orders_all": std(
			RowCount("order_count", "orders", "total_orders", 0),
		),
		"orders_per_month": std(
			ColumnSum("order_total", "num_orders", "Total orders", "total_orders"),
		),
		"geo_location": std(
			RowCount("order_count", "orders", "total_orders", 0),
		),

		// payments
		"payments_distribution": std(
			ColumnSum("payment_total", "num_payments", "Total payments", "total_payments"),
		),
	}
}

// averageOrderValue compares the artifact's summed AOV with revenue per active customer.
func averageOrderValue() Rule {
	return Define("average_order_value", func(a *artifact.Artifact, ref oracle.Snapshot) ([]string, error) {
		c, err := column(a, "aov")
		if err != nil {
			return nil, err
		}
		revenue, err := ref.Float("total_revenue")
		if err != nil {
			return nil, err
		}
		active, err := ref.Float("total_active_customers")
		if err != nil {
			return nil, err
		}
		var want float64
		if active > 0 {
			want = round2(round2(revenue) / active)
		}
		got := round2(c.Sum())
		if math.Abs(got-want) > moneyTolerance {
			return []string{mismatch("AOV", got, want)}, nil
		}
		return nil, nil
	})
}
