package models

// Page is the token content of one physical document page: trimmed,
// non-empty text fragments in the order they appeared in the source.
type Page []string

// ParsedFile is the materialized form of an uploaded statement file.
type ParsedFile struct {
	Pages     []Page `json:"pages"`
	Extension string `json:"extension"`
}

// ActivityType classifies what a statement document settles.
type ActivityType string

const (
	ActivityBuy      ActivityType = "Buy"
	ActivitySell     ActivityType = "Sell"
	ActivityDividend ActivityType = "Dividend"
	// ActivityTaxDividend is a dividend tax-information sheet. It is only a
	// classification result; records built from it are reported as Dividend.
	ActivityTaxDividend ActivityType = "TaxDividend"
	// ActivityIgnored marks document kinds we recognize but deliberately
	// do not import (e.g. cost information sheets).
	ActivityIgnored ActivityType = "Ignored"
	ActivityUnknown ActivityType = ""
)

// ParserStatus is the outcome code attached to every parse attempt.
// The numeric values are part of the public contract and must not change.
type ParserStatus int

const (
	StatusSuccess                 ParserStatus = 0
	StatusUnknownImplementation   ParserStatus = 1
	StatusAmbiguousImplementation ParserStatus = 2
	StatusFatalError              ParserStatus = 3
	StatusUnsupportedFiletype     ParserStatus = 4
	StatusNoActivities            ParserStatus = 5
	StatusInvalidActivities       ParserStatus = 6
	StatusIgnoredDocument         ParserStatus = 7
)

// Activity is one normalized, validated financial activity record.
// Amount, Fee and Tax are non-negative magnitudes in the settlement
// currency; Price is derived from Amount and Shares.
type Activity struct {
	Broker   string       `json:"broker"`
	Type     ActivityType `json:"type"`
	Date     string       `json:"date"`     // calendar date, YYYY-MM-DD
	DateTime string       `json:"datetime"` // RFC 3339, midnight when no time was printed
	ISIN     string       `json:"isin,omitempty"`
	WKN      string       `json:"wkn,omitempty"`
	Company  string       `json:"company,omitempty"`
	Shares   float64      `json:"shares,omitempty"`
	Price    float64      `json:"price,omitempty"`
	Amount   float64      `json:"amount"`
	Fee      float64      `json:"fee"`
	Tax      float64      `json:"tax"`
	// ForeignCurrency and FxRate are set together when the trade was
	// executed off the settlement currency.
	ForeignCurrency string  `json:"foreignCurrency,omitempty"`
	FxRate          float64 `json:"fxRate,omitempty"`
}

// ParserResult is what a handler (and the dispatcher) returns for one
// document. Activities is nil unless the whole document parsed; entries are
// nil for candidates that failed validation until the result filter runs.
type ParserResult struct {
	Activities []*Activity  `json:"activities"`
	Status     ParserStatus `json:"status"`
}

// ParsedDocument is the top-level result for one input file.
type ParsedDocument struct {
	File       string       `json:"file"`
	Activities []*Activity  `json:"activities"`
	Status     ParserStatus `json:"status"`
	Successful bool         `json:"successful"`
}
