package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/sig-0/p2prates/market/types"
)

var oneHundred = decimal.NewFromInt(100)

// offerCandidates generates the offer-side rule targets, most specific
// first: CUR:COUNTRY:SIDE, CUR:SIDE, SIDE
func offerCandidates(
	fiat types.Currency,
	country string,
	side types.Side,
) []string {
	out := make([]string, 0, 3)

	if fiat != "" {
		if country != "" {
			out = append(out, fmt.Sprintf("%s:%s:%s", fiat, country, side))
		}

		out = append(out, fmt.Sprintf("%s:%s", fiat, side))
	}

	out = append(out, side.String())

	return out
}

// crossCandidates generates the cross rule targets, most specific
// first: cross:FROM:TO, cross:FROM, cross
func crossCandidates(from, to types.Currency) []string {
	out := make([]string, 0, 3)

	if from != "" && to != "" {
		out = append(out, fmt.Sprintf("cross:%s:%s", from, to))
	}

	if from != "" {
		out = append(out, fmt.Sprintf("cross:%s", from))
	}

	out = append(out, "cross")

	return out
}

// applyAdjustment applies the most specific matching rule to the price.
// Exactly one rule wins; less specific candidates are never stacked.
// The configured sign means "more favorable to the operator", so it is
// flipped for BUY before applying
func applyAdjustment(
	price decimal.Decimal,
	active map[string]types.Adjustment,
	fiat types.Currency,
	country string,
	side types.Side,
) decimal.Decimal {
	for _, target := range offerCandidates(fiat, country, side) {
		rule, ok := active[target]
		if !ok {
			continue
		}

		value := rule.Value
		if side == types.SideBUY {
			value = value.Neg()
		}

		if rule.Mode == types.ModePercent {
			return price.Mul(decimal.New(1, 0).Add(value.Div(oneHundred)))
		}

		return price.Add(value)
	}

	return price
}

// applyCrossAdjustment applies the most specific matching cross rule to
// both leg prices independently. No sign flip: the rule author specifies
// the buy and sell values explicitly per leg
func applyCrossAdjustment(
	buy, sell decimal.Decimal,
	active map[string]types.CrossAdjustment,
	from, to types.Currency,
) (decimal.Decimal, decimal.Decimal) {
	for _, target := range crossCandidates(from, to) {
		rule, ok := active[target]
		if !ok {
			continue
		}

		if rule.Mode == types.ModePercent {
			buy = buy.Mul(decimal.New(1, 0).Add(rule.ValueBuy.Div(oneHundred)))
			sell = sell.Mul(decimal.New(1, 0).Add(rule.ValueSell.Div(oneHundred)))
		} else {
			buy = buy.Add(rule.ValueBuy)
			sell = sell.Add(rule.ValueSell)
		}

		break
	}

	return buy, sell
}

// adjustmentsByTarget indexes active rules for single-pass resolution,
// so one aggregation call sees a consistent rule snapshot
func adjustmentsByTarget(rules []types.Adjustment) map[string]types.Adjustment {
	out := make(map[string]types.Adjustment, len(rules))

	for _, rule := range rules {
		if rule.Active {
			out[rule.Target] = rule
		}
	}

	return out
}

func crossAdjustmentsByTarget(rules []types.CrossAdjustment) map[string]types.CrossAdjustment {
	out := make(map[string]types.CrossAdjustment, len(rules))

	for _, rule := range rules {
		if rule.Active {
			out[rule.Target] = rule
		}
	}

	return out
}
