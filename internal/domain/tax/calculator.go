package tax

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"hotelpms/internal/pkg/money"
)

// Compute applies rules to max(0, original-discount). Each line is taxed on
// that same net base; lines do not compound.
func Compute(original, discount decimal.Decimal, rules []Rule) Breakdown {
	net := money.NonNegative(original.Sub(money.NonNegative(discount)))

	ordered := make([]Rule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Position != ordered[j].Position {
			return ordered[i].Position < ordered[j].Position
		}
		return ordered[i].ID < ordered[j].ID
	})

	b := Breakdown{
		BaseAmount:     net,
		Lines:          make([]Line, 0, len(ordered)),
		TotalTaxAmount: decimal.Zero,
	}
	for _, r := range ordered {
		amount := money.Percent(net, r.Percentage)
		b.Lines = append(b.Lines, Line{Name: r.Name, Percentage: r.Percentage, Amount: amount})
		b.TotalTaxAmount = b.TotalTaxAmount.Add(amount)
	}
	b.TotalAmount = net.Add(b.TotalTaxAmount)
	return b
}

// RuleSource supplies the active rules in application order.
type RuleSource interface {
	ActiveRules(ctx context.Context) ([]Rule, error)
}

// Fallback is the single line used when no usable rule set is available.
type Fallback struct {
	Name       string
	Percentage decimal.Decimal
}

type Calculator struct {
	source   RuleSource
	fallback Fallback
	loggerf  func(format string, args ...interface{})
}

func NewCalculator(source RuleSource, fallback Fallback, loggerf func(format string, args ...interface{})) *Calculator {
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	return &Calculator{source: source, fallback: fallback, loggerf: loggerf}
}

// Rules returns the rules to apply and, when the fallback was used, why.
func (c *Calculator) Rules(ctx context.Context) ([]Rule, string) {
	rules, err := c.source.ActiveRules(ctx)
	if err != nil {
		c.loggerf("level=warn msg=\"tax rule source unavailable, applying fallback\" fallback=%s rate=%s err=%v", c.fallback.Name, c.fallback.Percentage, err)
		return c.fallbackRules(), FallbackSourceUnavailable
	}
	if len(rules) == 0 {
		c.loggerf("level=warn msg=\"no tax rules configured, applying fallback\" fallback=%s rate=%s", c.fallback.Name, c.fallback.Percentage)
		return c.fallbackRules(), FallbackNoRules
	}
	return rules, ""
}

func (c *Calculator) Quote(ctx context.Context, original, discount decimal.Decimal) Breakdown {
	rules, reason := c.Rules(ctx)
	b := Compute(original, discount, rules)
	if reason != "" {
		b.Fallback = true
		b.FallbackReason = reason
	}
	return b
}

func (c *Calculator) fallbackRules() []Rule {
	return []Rule{{Name: c.fallback.Name, Percentage: c.fallback.Percentage, Active: true}}
}
