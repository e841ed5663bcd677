package expect

import (
	"fmt"
	"regexp"

	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/artifact"
	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/oracle"
)

var stateCode = regexp.MustCompile(`^[A-Z]{2}$`)

// featureChains covers the curated feature tables and the churn model input.
func featureChains() map[string]Chain {
	return map[string]Chain{
		"customers_curated": {Profile: oracle.ProfileCurated, Rules: customerFeatureRules()},
		"orders_curated":    {Profile: oracle.ProfileCurated, Rules: orderFeatureRules()},
		"products_curated":  {Profile: oracle.ProfileCurated, Rules: productFeatureRules()},
		"ML_churn_features": {Profile: oracle.ProfileStandard, Rules: churnFeatureRules()},
	}
}

func customerFeatureRules() []Rule {
	return []Rule{
		ColumnsPresent("columns_present", "expected_customer_cols"),
		RowCount("customer_count", "customers", "total_customers", 0),
		ColumnSum("order_total", "total_orders", "Total orders", "total_orders"),
		MoneySumWithin("spent_total", "total_spent", "Total spent", "total_revenue", 1e-4),
		RatioSummary("avg_order_value_consistency", "avg_order_value", "total_spent", "total_orders", "customer_unique_id"),
		tenureWithinSpan(),
		CountAbove("numeric_non_negative",
			[]string{"total_orders", "total_spent", "avg_order_value", "avg_items_per_order", "avg_installments", "tenure_days"},
			func(v float64) bool { return v < 0 }, "negative values", 0, true),
	}
}

func orderFeatureRules() []Rule {
	return []Rule{
		ColumnsPresent("columns_present", "expected_order_cols"),
		RowCount("order_count", "orders", "total_orders", 0),
		// Item values exclude freight, so they only approximate gross revenue.
		SumWithin("order_items_value_sum", "order_items_value", "total_gross_revenue", 0.1),
		WithinRange("freight_ratio_bounds", "freight_ratio", 0, 2, 500),
		NonNegative("timing_non_negative", 1500, "hours_to_approval", "days_to_carrier", "days_carrier_to_customer"),
	}
}

func productFeatureRules() []Rule {
	return []Rule{
		ColumnsPresent("columns_present", "expected_product_seller_cols"),
		NonNegative("product_non_negative", 1000,
			"avg_price", "avg_freight", "orders_per_product", "avg_review_score", "orders_fulfilled", "avg_ship_days"),
		WithinRange("avg_review_bounds", "avg_review_score", 1, 5, 0),
		shipDaysReasonable(999),
		freightToPrice(999),
	}
}

func churnFeatureRules() []Rule {
	return []Rule{
		NonNegative("total_spent_non_negative", 0, "total_spent"),
		MoneySumAtMost("total_spent_consistent", "total_spent", "total_revenue"),
		RatioPerRow("avg_order_value_valid", "avg_order_value", "total_spent", "total_orders"),
		NonNegative("recency_non_negative", 0, "recency"),
		NonNegative("frequency_non_negative", 0, "frequency"),
		NonNegative("distinct_products_non_negative", 0, "distinct_products"),
		Matches("state_codes_valid", "customer_state", stateCode),
		Binary("churned_binary", "churned"),
		BothClasses("churned_both_classes", "churned"),
		NoNulls("non_null"),
	}
}

func tenureWithinSpan() Rule {
	return Define("tenure_within_span", func(a *artifact.Artifact, ref oracle.Snapshot) ([]string, error) {
		c, err := column(a, "tenure_days")
		if err != nil {
			return nil, err
		}
		span, err := ref.Float("dataset_span_days")
		if err != nil {
			return nil, err
		}
		if n := c.CountWhere(func(v float64) bool { return v > span+1e-6 }); n > 0 {
			return []string{fmt.Sprintf("%d rows have tenure_days > dataset span %s", n, num(span))}, nil
		}
		return nil, nil
	})
}

// shipDaysReasonable bounds avg_ship_days by the 95th percentile heuristic.
func shipDaysReasonable(threshold int) Rule {
	return Define("ship_days_reasonable", func(a *artifact.Artifact, ref oracle.Snapshot) ([]string, error) {
		c, err := column(a, "avg_ship_days")
		if err != nil {
			return nil, err
		}
		limit, err := ref.Float("max_ship_days_95pct")
		if err != nil {
			return nil, err
		}
		if n := c.CountWhere(func(v float64) bool { return v < 0 || v > limit }); n > threshold {
			return []string{fmt.Sprintf("%d avg_ship_days outside [0,%s]", n, num(limit))}, nil
		}
		return nil, nil
	})
}

// freightToPrice flags products whose freight exceeds twice their price.
func freightToPrice(threshold int) Rule {
	return Define("freight_price_ratio", func(a *artifact.Artifact, _ oracle.Snapshot) ([]string, error) {
		cols, err := columns(a, "avg_price", "avg_freight")
		if err != nil {
			return nil, err
		}
		price, freight := cols[0], cols[1]
		n := 0
		for i, p := range price.Numbers() {
			if p <= 0 {
				continue
			}
			if f, ok := freight.Float(i); ok && f/p > 2 {
				n++
			}
		}
		if n > threshold {
			return []string{fmt.Sprintf("%d products with freight/price ratio > 2", n)}, nil
		}
		return nil, nil
	})
}
