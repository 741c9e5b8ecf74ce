package parser

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/broker-activity-import/internal/models"
)

// FondsdepotbankParser handles Fondsdepot Bank fund settlement statements
// ("Depotabrechnung").
//
// Every page repeats the same fund preamble (fund name, ISIN/WKN) followed
// by one or more transactions. Savings-plan statements list several buys
// per page that all share the preamble, so the buy path iterates every
// "Kauf" occurrence and slices a fixed token window after it.
type FondsdepotbankParser struct{}

func (p *FondsdepotbankParser) BrokerName() string {
	return "fondsdepotbank"
}

// fondsdepotbankBlockList are filler tokens (discount markers, footnote
// references, exchange labels) that shift the positional offsets when
// present. They carry no information and are dropped before extraction.
var fondsdepotbankBlockList = map[string]bool{
	"1)":         true,
	"2)":         true,
	"Rabatt":     true,
	"100 %":      true,
	"gesamt":     true,
	"für Tausch": true,
	"aus Tausch": true,
	"Ertrag":     true,
}

// fondsdepotbankBuyWindow is the token span of one buy transaction after
// its "Kauf" marker.
const fondsdepotbankBuyWindow = 10

func fondsdepotbankDocumentType(page []string) models.ActivityType {
	switch {
	case containsToken(page, "Anlagebetrag"):
		return models.ActivityBuy
	case containsToken(page, "Abrechnungsbetrag"):
		return models.ActivitySell
	case containsToken(page, "Ausschüttungsbetrag"):
		return models.ActivityDividend
	case anyTokenContains(page, "Kosteninformation"):
		return models.ActivityIgnored
	}
	return models.ActivityUnknown
}

func (p *FondsdepotbankParser) CanParseDocument(pages []models.Page, extension string) bool {
	if extension != "pdf" || len(pages) == 0 {
		return false
	}
	firstPage := pages[0]
	return anyTokenContains(firstPage, "Fondsdepot Bank GmbH") &&
		anyTokenContains(firstPage, "Depotabrechnung") &&
		fondsdepotbankDocumentType(firstPage) != models.ActivityUnknown
}

// fondsdepotbankFundInfo slices the fund preamble of a page: everything
// from the "Depotabrechnung" heading up to the first transaction block.
func fondsdepotbankFundInfo(page []string) []string {
	start := indexOfToken(page, "Depotabrechnung")
	if start < 0 {
		return nil
	}
	end := indexOfToken(page, "Transaktion")
	if end < 0 {
		end = indexContaining(page, "Ausschüttung per ")
	}
	if end < start {
		end = len(page)
	}
	return page[start:end]
}

func findFondsdepotbankCompany(fundInfo []string) string {
	return fundInfo[indexOfToken(fundInfo, "Fondsbezeichnung:")+1]
}

func findFondsdepotbankISINAndWKN(fundInfo []string) (string, string) {
	isin, wkn, _ := strings.Cut(fundInfo[indexOfToken(fundInfo, "ISIN/WKN:")+1], "/")
	return isin, wkn
}

// Positional reads inside one transaction window. The offsets are fixed per
// activity type; dividends are anchored on their labels instead.

func findFondsdepotbankDate(tx []string, typ models.ActivityType) string {
	var dateToken string
	switch typ {
	case models.ActivityBuy:
		dateToken = tx[4]
	case models.ActivitySell:
		dateToken = tx[2]
	case models.ActivityDividend:
		dateToken = splitFields(tx[indexContaining(tx, "Ausschüttung per ")])[2]
	}
	return findGermanDate(dateToken)
}

func findFondsdepotbankAmount(tx []string, typ models.ActivityType) (decimal.Decimal, bool) {
	switch typ {
	case models.ActivityBuy, models.ActivitySell:
		return parseGermanNum(tx[1])
	case models.ActivityDividend:
		return parseGermanNum(tx[indexOfToken(tx, "Ausschüttungsbetrag")+2])
	}
	return decimal.Zero, false
}

func findFondsdepotbankShares(tx []string, typ models.ActivityType) (decimal.Decimal, bool) {
	var d decimal.Decimal
	var ok bool
	switch typ {
	case models.ActivityBuy:
		d, ok = parseGermanNum(tx[7])
	case models.ActivitySell:
		d, ok = parseGermanNum(tx[4])
	case models.ActivityDividend:
		d, ok = parseGermanNum(splitFields(tx[indexContaining(tx, "Anteile ")])[1])
	}
	return d.Abs(), ok
}

func findFondsdepotbankFee(tx []string, typ models.ActivityType) decimal.Decimal {
	if typ == models.ActivityBuy {
		return germanNum(tx[6])
	}
	return decimal.Zero
}

// findFondsdepotbankTaxes sums capital gains tax, solidarity surcharge and
// the optional church tax printed on sells and dividends.
func findFondsdepotbankTaxes(tx []string, typ models.ActivityType) decimal.Decimal {
	if typ != models.ActivitySell && typ != models.ActivityDividend {
		return decimal.Zero
	}
	total := decimal.Zero
	if idx := indexOfToken(tx, "Kapitalertragsteuer"); idx >= 0 {
		total = total.Add(germanNum(tx[idx+1]))
	}
	if idx := indexOfToken(tx, "Solidaritätszuschlag"); idx >= 0 {
		total = total.Add(germanNum(tx[idx+1]))
	}
	if idx := indexContaining(tx, "Kirchensteuer "); idx >= 0 {
		total = total.Add(germanNum(tx[idx+1]))
	}
	return total.Abs()
}

// parseFondsdepotbankTransaction assembles one activity from the shared
// fund preamble and one transaction window. The printed settlement amount
// includes the fee, so the net amount is printed minus fee; the unit price
// follows the legacy fund-valuation convention of 4 decimal places.
func parseFondsdepotbankTransaction(fundInfo, tx []string, typ models.ActivityType) *models.Activity {
	candidate := &activityCandidate{
		broker: "fondsdepotbank",
		typ:    typ,
	}

	candidate.company = findFondsdepotbankCompany(fundInfo)
	candidate.isin, candidate.wkn = findFondsdepotbankISINAndWKN(fundInfo)

	var ok bool
	candidate.date, candidate.datetime, ok = createActivityDateTime(findFondsdepotbankDate(tx, typ), "")
	if !ok {
		return nil
	}

	if shares, ok := findFondsdepotbankShares(tx, typ); ok {
		candidate.setShares(shares)
	}
	candidate.fee = findFondsdepotbankFee(tx, typ)
	if printed, ok := findFondsdepotbankAmount(tx, typ); ok {
		candidate.setAmount(printed.Sub(candidate.fee))
		candidate.derivePrice(4)
	}
	candidate.tax = findFondsdepotbankTaxes(tx, typ)

	return candidate.build()
}

func (p *FondsdepotbankParser) ParsePages(pages []models.Page) models.ParserResult {
	typ := fondsdepotbankDocumentType(pages[0])

	if typ == models.ActivityIgnored {
		// We know this kind and deliberately do not import it.
		return models.ParserResult{
			Activities: []*models.Activity{},
			Status:     models.StatusIgnoredDocument,
		}
	}

	// Every page repeats the fund preamble, so pages are processed
	// independently and each contributes its own transactions.
	activities := []*models.Activity{}
	for _, page := range pages {
		fundInfo := fondsdepotbankFundInfo(page)
		if fundInfo == nil {
			continue
		}

		var window []string
		switch typ {
		case models.ActivityBuy:
			// Mixed statements list reinvestments next to buys; both are
			// imported as buys, so the marker is unified first.
			for _, t := range page {
				window = append(window, strings.Replace(t, "Wiederanlage", "Kauf", 1))
			}
			window = sliceBetweenTokens(window, "Kauf", "Konto-")
		case models.ActivitySell:
			window = sliceBetweenTokens(page, "Verkauf", "Konto-")
		case models.ActivityDividend:
			start := indexContaining(page, "Ausschüttung per ")
			if start < 0 {
				continue
			}
			end := indexOfToken(page, "Konto-")
			if end < start {
				end = len(page)
			}
			window = page[start:end]
		}

		if len(window) == 0 {
			continue
		}
		filtered := make([]string, 0, len(window))
		for _, t := range window {
			if !fondsdepotbankBlockList[t] {
				filtered = append(filtered, t)
			}
		}

		if typ == models.ActivityBuy {
			// Several buys can share one page; each "Kauf" marker starts a
			// fixed-size transaction window over the shared preamble.
			idx := indexOfToken(filtered, "Kauf")
			first := idx
			for idx >= 0 {
				end := idx + fondsdepotbankBuyWindow
				if end > len(filtered) {
					end = len(filtered)
				}
				tx := append(append([]string{}, filtered[:first]...), filtered[idx:end]...)
				activities = append(activities, parseFondsdepotbankTransaction(fundInfo, tx, typ))
				idx = nextIndexOfToken(filtered, "Kauf", idx+1)
			}
		} else {
			activities = append(activities, parseFondsdepotbankTransaction(fundInfo, filtered, typ))
		}
	}

	return models.ParserResult{
		Activities: activities,
		Status:     models.StatusSuccess,
	}
}

// sliceBetweenTokens returns the tokens from the first occurrence of start
// up to (not including) the first occurrence of end, or nil when start is
// absent.
func sliceBetweenTokens(tokens []string, start, end string) []string {
	from := indexOfToken(tokens, start)
	if from < 0 {
		return nil
	}
	to := indexOfToken(tokens, end)
	if to < from {
		to = len(tokens)
	}
	return tokens[from:to]
}
