package parser

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/broker-activity-import/internal/models"
)

// onvistaIdentificationString marks onvista webtrading documents. onvista is
// a whitelabel platform whose PDFs share boilerplate with comdirect, so a
// document carrying this marker is never claimed as comdirect.
const onvistaIdentificationString = "BELEGDRUCK=J"

// ComdirectParser handles comdirect settlement notes and tax sheets.
//
// comdirect has emitted three structurally incompatible layouts over time:
//
// Format 0 (label-prefixed): the security header line reads
// "Wertpapier-Bezeichnung        WPKNR/ISIN" with the identifiers on the
// following lines.
//
// Format 1 (terse): "Wertpapier-Bezeichnung" stands on its own line and the
// identifier offsets shift.
//
// Format 2 (tax information): dividend tax sheets starting with
// "Steuerliche Behandlung: ..."; shares, company, WKN and ISIN are packed
// into the single identifier line.
type ComdirectParser struct{}

func (p *ComdirectParser) BrokerName() string {
	return "comdirect"
}

const (
	comdirectFormatLabeled = 0
	comdirectFormatTerse   = 1
	comdirectFormatTaxInfo = 2
	comdirectFormatUnknown = -1
)

// comdirectFormatID decides the layout variant from the document tokens.
// The markers are checked in a fixed order; the terse marker is a subset of
// the labeled one, so the labeled check must come first.
func comdirectFormatID(doc []string) int {
	if anyTokenContains(doc, "Wertpapier-Bezeichnung ") {
		return comdirectFormatLabeled
	}
	if containsToken(doc, "Wertpapier-Bezeichnung") {
		return comdirectFormatTerse
	}
	for _, t := range doc {
		if strings.HasPrefix(t, "Steuerliche Behandlung: ") {
			return comdirectFormatTaxInfo
		}
	}
	return comdirectFormatUnknown
}

func comdirectDocumentType(page []string) models.ActivityType {
	switch {
	case containsToken(page, "Wertpapierkauf") || containsToken(page, "Wertpapierbezug"):
		return models.ActivityBuy
	case containsToken(page, "Wertpapierverkauf"):
		return models.ActivitySell
	case containsToken(page, "Ertragsgutschrift") || containsToken(page, "Dividendengutschrift"):
		return models.ActivityDividend
	}
	// Tax sheets outrank the cost-information marker: a sheet may carry a
	// cost disclosure footer and must still be imported.
	for _, t := range page {
		if strings.Contains(t, "Steuerliche Behandlung:") &&
			(strings.Contains(t, "Dividende") || strings.Contains(t, "Investment-Ausschüttung")) {
			return models.ActivityTaxDividend
		}
	}
	if anyTokenContains(page, "Kosteninformation") {
		return models.ActivityIgnored
	}
	return models.ActivityUnknown
}

func (p *ComdirectParser) CanParseDocument(pages []models.Page, extension string) bool {
	if extension != "pdf" || len(pages) == 0 {
		return false
	}
	firstPage := pages[0]
	return anyTokenContains(firstPage, "comdirect") &&
		!anyTokenContains(firstPage, onvistaIdentificationString) &&
		comdirectDocumentType(firstPage) != models.ActivityUnknown
}

// findComdirectISINAndWKN reads the identifiers at fixed offsets below the
// line containing "/ISIN" (or "/ ISIN"). The offsets differ per document
// type and format.
func findComdirectISINAndWKN(doc []string, spanISIN, spanWKN int) (string, string) {
	idx := comdirectISINLineIndex(doc)
	isinFields := splitFields(doc[idx+spanISIN])
	wknFields := splitFields(doc[idx+spanWKN])
	return isinFields[len(isinFields)-1], wknFields[len(wknFields)-1]
}

// findComdirectTaxInfoIdentity handles the tax-information sheets where one
// line packs shares, company, WKN and ISIN together, e.g.
//
//	"Stk.  8,544 PROCTER GAMBLE , WKN / ISIN: 852062 / US7427181091"
func findComdirectTaxInfoIdentity(doc []string) (isin, wkn, company string, shares decimal.Decimal) {
	fields := splitFields(doc[comdirectISINLineIndex(doc)])
	shares = germanNum(fields[1])
	isin = fields[len(fields)-1]
	wkn = fields[len(fields)-3]
	company = strings.Join(fields[2:len(fields)-7], " ")
	return isin, wkn, company, shares
}

func comdirectISINLineIndex(doc []string) int {
	for i, t := range doc {
		if strings.Contains(t, "/ISIN") || strings.Contains(t, "/ ISIN") {
			return i
		}
	}
	return -1
}

func findComdirectCompany(doc []string, typ models.ActivityType, formatID int) string {
	idx := indexContaining(doc, "/ISIN")
	switch typ {
	case models.ActivityBuy:
		fields := splitFields(doc[idx+1])
		return strings.Join(fields[:len(fields)-1], " ")
	case models.ActivitySell:
		line := strings.TrimSpace(doc[idx+1])
		if formatID == comdirectFormatLabeled {
			// The name shares the line with the WKN, separated by a run of
			// spaces: "Arcimoto Inc.            A2JN1H"
			name, _, _ := strings.Cut(line, "  ")
			return strings.TrimSpace(name)
		}
		return line
	case models.ActivityDividend:
		return strings.TrimSpace(doc[idx+2])
	}
	return ""
}

func findComdirectDateBuySell(doc []string) string {
	idx := indexContaining(doc, "Geschäftstag")
	if idx < 0 {
		return ""
	}
	return findGermanDate(doc[idx])
}

func findComdirectDateDividend(doc []string, formatID int) string {
	valutaIdx := indexContaining(doc, "Valuta")
	if formatID == comdirectFormatTaxInfo {
		return splitFields(doc[valutaIdx])[5]
	}
	fields := splitFields(doc[valutaIdx+1])
	return fields[len(fields)-3]
}

// findComdirectOrderTime extracts the HH:MM order time. Some documents have
// it on the "Handelszeit" line itself:
//
//	"Handelszeit       : 15:30 Uhr (MEZ/MESZ)"
//
// and some two lines below it.
func findComdirectOrderTime(doc []string) string {
	idx := indexContaining(doc, "Handelszeit")
	if idx < 0 {
		return ""
	}
	if hasTimeOfDay(doc[idx]) {
		parts := strings.Split(doc[idx], ":")
		if len(parts) >= 3 {
			minute := strings.TrimSpace(parts[2])
			if len(minute) >= 2 {
				return strings.TrimSpace(parts[1]) + ":" + minute[:2]
			}
		}
	}
	if idx+2 < len(doc) && hasTimeOfDay(doc[idx+2]) {
		return splitFields(doc[idx+2])[0]
	}
	return ""
}

func findComdirectShares(doc []string, formatID int) (decimal.Decimal, bool) {
	// Sells split into multiple partial executions list a rounded total
	// above the "(ggf. gerundet)" marker.
	splitSellIdx := indexOfToken(doc, "(ggf. gerundet)")
	if splitSellIdx >= 0 {
		if formatID == comdirectFormatLabeled {
			return parseGermanNum(splitFields(doc[splitSellIdx-1])[2])
		}
		fields := splitFields(doc[splitSellIdx-3])
		return parseGermanNum(fields[len(fields)-1])
	}

	// Otherwise the share count follows the first "St." after "Nennwert".
	sharesLine := doc[indexContaining(doc, "Nennwert")+1]
	seenPiece := false
	for _, field := range splitFields(sharesLine) {
		if strings.Contains(field, "St.") {
			seenPiece = true
			continue
		}
		if seenPiece {
			return parseGermanNum(field)
		}
	}
	return decimal.Zero, false
}

func findComdirectDividendShares(doc []string) (decimal.Decimal, bool) {
	return parseGermanNum(splitFields(doc[indexContaining(doc, "STK")])[1])
}

// findComdirectAmount reads the net amount from the "Kurswert" line (or the
// split-sell block) and converts foreign-currency quotes into the
// settlement currency via the FX rate.
func findComdirectAmount(doc []string, fxRate decimal.Decimal, hasFx bool, foreignCurrency string, formatID int) (decimal.Decimal, bool) {
	inForeignCurrency := false
	var amount decimal.Decimal
	found := false

	splitSellIdx := indexOfToken(doc, "(ggf. gerundet)")
	amountIdx := indexContaining(doc, "Kurswert")

	if splitSellIdx > 0 {
		if formatID == comdirectFormatLabeled {
			fields := splitFields(doc[splitSellIdx-1])
			amount = germanNum(fields[len(fields)-1])
			if foreignCurrency != "" && fields[len(fields)-2] == foreignCurrency {
				inForeignCurrency = true
			}
		} else {
			amount = germanNum(doc[splitSellIdx-1])
		}
		found = true
	} else if amountIdx > 0 {
		fields := splitFields(doc[amountIdx])
		amount = germanNum(fields[len(fields)-1])
		found = true

		if foreignCurrency != "" && fields[len(fields)-2] == foreignCurrency {
			inForeignCurrency = true
		}

		// Buy only: a currency rate inside the price line means the
		// purchase-cost reduction has not been factored in yet.
		for _, f := range fields {
			if f == "Devisenkurs" {
				return amount.Add(findComdirectPurchaseReduction(doc)), true
			}
		}
	}

	if !found {
		return decimal.Zero, false
	}
	if inForeignCurrency && hasFx {
		amount = amount.Div(fxRate)
	}
	return amount, true
}

// findComdirectPayout reads a dividend payout. Simple dividend notes print
// a "Bruttobetrag"; tax sheets instead print the pre-tax credit, from which
// the withheld tax can be implied against the tax base before loss offset.
func findComdirectPayout(doc []string, fxRate decimal.Decimal, hasFx bool) (amount decimal.Decimal, found bool, includedWithholding decimal.Decimal, hasIncluded bool) {
	grossIdx := indexContaining(doc, "Bruttobetrag")
	if grossIdx >= 0 {
		amount = germanNum(splitFields(doc[grossIdx])[2])
		if hasFx {
			amount = amount.Div(fxRate)
		}
		return amount, true, decimal.Zero, false
	}

	preTaxIdx := indexOfToken(doc, "Zu Ihren Gunsten vor Steuern:")
	if preTaxIdx >= 0 {
		amount = germanNum(splitFields(doc[preTaxIdx+1])[1])
		found = true
	}

	taxBaseIdx := indexOfToken(doc, "Steuerbemessungsgrundlage vor Verlustverrechnung")
	if taxBaseIdx >= 0 {
		taxBase := germanNum(splitFields(doc[taxBaseIdx+1])[1])
		includedWithholding = taxBase.Sub(amount)
		hasIncluded = true
	}
	return amount, found, includedWithholding, hasIncluded
}

// findComdirectFee derives the fee differentially: the distance between the
// gross "vor Steuern" line and the already-extracted net amount. Purchases
// pay the fee on top, disposals lose it from the proceeds.
func findComdirectFee(doc []string, amount decimal.Decimal, isSell bool, formatID int) decimal.Decimal {
	// The gross value sits a fixed number of tokens after the label; the
	// terse layout spreads the block over eight tokens.
	span := 1
	if formatID == comdirectFormatTerse || formatID == comdirectFormatUnknown {
		span = 8
	}

	grossIdx := indexContaining(doc, "vor Steuern")
	valutaIdx := indexContaining(doc, "Verrechnung über Konto") + 1
	if grossIdx >= 0 {
		fields := splitFields(doc[grossIdx+span])
		preTax := germanNum(fields[len(fields)-1])
		if isSell {
			return amount.Sub(preTax)
		}
		return preTax.Sub(amount)
	}
	if valutaIdx > 0 {
		fields := splitFields(doc[valutaIdx])
		return germanNum(fields[len(fields)-1]).Sub(amount)
	}
	return decimal.Zero
}

// findComdirectTax sums foreign withholding tax (converted at the FX rate)
// and locally assessed taxes. Returns the total and the withholding part.
func findComdirectTax(doc []string, fxRate decimal.Decimal, hasFx bool, formatID int) (decimal.Decimal, decimal.Decimal) {
	withholding := decimal.Zero
	if formatID == comdirectFormatLabeled || formatID == comdirectFormatTaxInfo {
		for i, t := range doc {
			if strings.Contains(t, " Quellensteuer") && !strings.Contains(t, "Bei einbehaltener ") {
				if i > 0 {
					withholding = germanNum(splitFields(t)[4])
					if hasFx && fxRate.IsPositive() {
						withholding = withholding.Div(fxRate)
					}
				}
				break
			}
		}
	}

	// Relevant for sells and tax-information dividends.
	localTax := decimal.Zero
	paidTaxIdx := indexOfToken(doc, "abgeführte Steuern")
	if paidTaxIdx >= 0 {
		var taxToken string
		if formatID == comdirectFormatTerse {
			taxToken = doc[paidTaxIdx+2]
		} else {
			taxToken = splitFields(doc[paidTaxIdx+1])[1]
		}
		localTax = germanNum(taxToken).Abs()
	}

	return withholding.Add(localTax), withholding
}

// findComdirectPurchaseReduction reads the "Reduktion Kaufaufschlag" line.
// The value may carry a trailing minus and is applied as a positive add-on
// to the purchase amount.
func findComdirectPurchaseReduction(doc []string) decimal.Decimal {
	idx := indexContaining(doc, "Reduktion Kaufaufschlag")
	if idx < 0 {
		return decimal.Zero
	}
	fields := splitFields(doc[idx])
	return germanNum(fields[len(fields)-1]).Abs()
}

// findComdirectPayoutFxRate reads the dividend FX line, e.g.
//
//	"zum Devisenkurs: EUR/USD 1,134800"
func findComdirectPayoutFxRate(doc []string) (decimal.Decimal, string, bool) {
	idx := indexContaining(doc, "zum Devisenkurs:")
	if idx <= 0 {
		return decimal.Zero, "", false
	}
	fields := splitFields(doc[idx])
	rate := germanNum(fields[3])
	pair := strings.Split(fields[2], "/")
	return rate, pair[len(pair)-1], true
}

// findComdirectBuyFxRate reads the order FX rate; two label revisions
// exist, with the foreign currency printed at different spots.
func findComdirectBuyFxRate(doc []string) (decimal.Decimal, string, bool) {
	idxV1 := indexContaining(doc, "Umrechnung zum Devisenkurs ")
	idxV2 := indexContaining(doc, "Umrechn. zum Dev. kurs ")

	if idxV1 > 0 {
		rate := germanNum(splitFields(doc[idxV1])[3])
		currency := splitFields(doc[idxV1-3])[2]
		return rate, currency, true
	}
	if idxV2 > 0 {
		rate := germanNum(splitFields(doc[idxV2])[4])
		currency := ""
		if sharesIdx := indexContaining(doc, "St."); sharesIdx > 0 {
			_, after, _ := strings.Cut(doc[sharesIdx], "St.")
			fields := splitFields(strings.TrimSpace(after))
			if len(fields) > 1 {
				currency = fields[1]
			}
		}
		return rate, currency, true
	}
	return decimal.Zero, "", false
}

// parseComdirectDocument assembles one activity from the flattened document
// tokens. Extraction order is type specific: buys and sells need the FX
// rate before the amount, tax sheets reconcile withheld tax last.
func parseComdirectDocument(doc []string, typ models.ActivityType) *models.Activity {
	candidate := &activityCandidate{
		broker: "comdirect",
		typ:    typ,
	}

	var date, timeOfDay, foreignCurrency string
	var fxRate decimal.Decimal
	hasFx := false

	formatID := comdirectFormatID(doc)

	switch typ {
	case models.ActivityBuy:
		date = findComdirectDateBuySell(doc)
		timeOfDay = findComdirectOrderTime(doc)
		fxRate, foreignCurrency, hasFx = findComdirectBuyFxRate(doc)
		candidate.isin, candidate.wkn = findComdirectISINAndWKN(doc, 2, 1)
		candidate.company = findComdirectCompany(doc, typ, formatID)
		if amount, ok := findComdirectAmount(doc, fxRate, hasFx, foreignCurrency, formatID); ok {
			candidate.setAmount(amount)
			if shares, ok := findComdirectShares(doc, formatID); ok {
				candidate.setShares(shares)
				candidate.derivePrice(-1)
			}
			candidate.fee = findComdirectFee(doc, amount, false, formatID)
		}

	case models.ActivitySell:
		spanISIN, spanWKN := 2, 1
		if formatID == comdirectFormatTerse {
			spanISIN, spanWKN = 4, 2
		}
		candidate.isin, candidate.wkn = findComdirectISINAndWKN(doc, spanISIN, spanWKN)
		candidate.company = findComdirectCompany(doc, typ, formatID)
		date = findComdirectDateBuySell(doc)
		timeOfDay = findComdirectOrderTime(doc)
		fxRate, foreignCurrency, hasFx = findComdirectBuyFxRate(doc)
		if shares, ok := findComdirectShares(doc, formatID); ok {
			candidate.setShares(shares)
		}
		if amount, ok := findComdirectAmount(doc, fxRate, hasFx, foreignCurrency, formatID); ok {
			candidate.setAmount(amount)
			candidate.derivePrice(-1)
			candidate.fee = findComdirectFee(doc, amount, true, formatID)
		}
		candidate.tax, _ = findComdirectTax(doc, fxRate, hasFx, formatID)

	case models.ActivityDividend:
		fxRate, foreignCurrency, hasFx = findComdirectPayoutFxRate(doc)
		candidate.isin, candidate.wkn = findComdirectISINAndWKN(doc, 3, 1)
		candidate.company = findComdirectCompany(doc, typ, formatID)
		date = findComdirectDateDividend(doc, comdirectFormatUnknown)
		if shares, ok := findComdirectDividendShares(doc); ok {
			candidate.setShares(shares)
		}
		if amount, ok, _, _ := findComdirectPayout(doc, fxRate, hasFx); ok {
			candidate.setAmount(amount)
			candidate.derivePrice(-1)
		}
		candidate.tax, _ = findComdirectTax(doc, fxRate, hasFx, formatID)

	case models.ActivityTaxDividend:
		// Tax sheets describe a dividend; the record type is Dividend.
		candidate.typ = models.ActivityDividend
		var shares decimal.Decimal
		candidate.isin, candidate.wkn, candidate.company, shares = findComdirectTaxInfoIdentity(doc)
		candidate.setShares(shares)
		date = findComdirectDateDividend(doc, formatID)

		tax, withholding := findComdirectTax(doc, decimal.Zero, false, formatID)
		payout, ok, includedWithholding, hasIncluded := findComdirectPayout(doc, decimal.Zero, false)
		// When the tax base implies more withheld tax than was printed,
		// the implied figure wins and grosses up both tax and amount.
		if hasIncluded && includedWithholding.Cmp(withholding) > 0 {
			withholding = includedWithholding
			tax = tax.Add(includedWithholding)
		}
		candidate.tax = tax
		if ok {
			candidate.setAmount(payout.Add(withholding))
			candidate.derivePrice(-1)
		}
	}

	var ok bool
	candidate.date, candidate.datetime, ok = createActivityDateTime(date, timeOfDay)
	if !ok {
		return nil
	}

	if hasFx {
		candidate.setFxRate(fxRate, foreignCurrency)
	}
	return candidate.build()
}

func (p *ComdirectParser) ParsePages(pages []models.Page) models.ParserResult {
	typ := comdirectDocumentType(pages[0])

	if typ == models.ActivityIgnored {
		// We know this kind and deliberately do not import it.
		return models.ParserResult{
			Activities: []*models.Activity{},
			Status:     models.StatusIgnoredDocument,
		}
	}

	// Information about a single transaction (e.g. the tax block of a sell)
	// can spread across pages, so the whole document is flattened.
	var doc []string
	for _, page := range pages {
		doc = append(doc, page...)
	}

	return models.ParserResult{
		Activities: []*models.Activity{parseComdirectDocument(doc, typ)},
		Status:     models.StatusSuccess,
	}
}
