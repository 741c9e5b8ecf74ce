package parser

import (
	"regexp"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/broker-activity-import/internal/models"
)

var isinPattern = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{9}[0-9]$`)

// priceTolerance is the rounding slack allowed between price*shares and the
// extracted amount (one cent).
var priceTolerance = decimal.NewFromFloat(0.01)

// activityCandidate accumulates extracted fragments while a handler works
// through a document. Partially-built state never leaves this package; the
// only way out is build(), which validates and produces an immutable
// models.Activity or nothing.
type activityCandidate struct {
	broker   string
	typ      models.ActivityType
	date     string
	datetime string
	isin     string
	wkn      string
	company  string

	shares decimal.Decimal
	price  decimal.Decimal
	amount decimal.Decimal
	fee    decimal.Decimal
	tax    decimal.Decimal

	hasShares bool
	hasAmount bool

	foreignCurrency string
	fxRate          decimal.Decimal
	hasFxRate       bool
}

func (c *activityCandidate) setShares(d decimal.Decimal) {
	c.shares = d
	c.hasShares = true
}

func (c *activityCandidate) setAmount(d decimal.Decimal) {
	c.amount = d
	c.hasAmount = true
}

func (c *activityCandidate) setFxRate(rate decimal.Decimal, currency string) {
	c.fxRate = rate
	c.foreignCurrency = currency
	c.hasFxRate = true
}

// derivePrice computes price = amount / shares. Legacy fund-valuation
// documents round to 4 decimal places; see the fondsdepotbank handler.
func (c *activityCandidate) derivePrice(roundPlaces int32) {
	if !c.hasAmount || !c.hasShares || c.shares.IsZero() {
		return
	}
	c.price = c.amount.Div(c.shares)
	if roundPlaces >= 0 {
		c.price = c.price.Round(roundPlaces)
	}
}

// build validates the candidate against the output-record invariants and
// returns the finished record, or nil when any invariant fails. It never
// repairs: one bad field discards the whole candidate.
func (c *activityCandidate) build() *models.Activity {
	if c.broker == "" || c.date == "" || c.datetime == "" || !c.hasAmount {
		return nil
	}
	switch c.typ {
	case models.ActivityBuy, models.ActivitySell, models.ActivityDividend:
	default:
		return nil
	}
	if c.isin == "" && c.wkn == "" && c.company == "" {
		return nil
	}
	if c.isin != "" && !isinPattern.MatchString(c.isin) {
		return nil
	}
	if c.amount.IsNegative() || c.fee.IsNegative() || c.tax.IsNegative() {
		return nil
	}
	if c.hasShares && !c.shares.IsPositive() {
		return nil
	}
	if c.hasShares && !c.price.IsZero() {
		if c.price.Mul(c.shares).Sub(c.amount).Abs().Cmp(priceTolerance) >= 0 {
			return nil
		}
	}
	if c.hasFxRate != (c.foreignCurrency != "") {
		return nil
	}

	activity := &models.Activity{
		Broker:   c.broker,
		Type:     c.typ,
		Date:     c.date,
		DateTime: c.datetime,
		ISIN:     c.isin,
		WKN:      c.wkn,
		Company:  c.company,
		Amount:   c.amount.InexactFloat64(),
		Fee:      c.fee.InexactFloat64(),
		Tax:      c.tax.InexactFloat64(),
	}
	if c.hasShares {
		activity.Shares = c.shares.InexactFloat64()
		activity.Price = c.price.InexactFloat64()
	}
	if c.hasFxRate {
		activity.ForeignCurrency = c.foreignCurrency
		activity.FxRate = c.fxRate.InexactFloat64()
	}
	return activity
}
