package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdelivered/broker-activity-import/internal/models"
)

var comdirectBuy = []models.Page{
	{
		"comdirect bank AG",
		"Wertpapierkauf",
		"Wertpapier-Bezeichnung                                   WPKNR/ISIN",
		"Arcimoto Inc.                                  A2JN1H",
		"Registered Shares o.N.                 US03965L1008",
		"Geschäftstag       : 04.01.2021        Geschäftsart      : Kauf",
		"Handelszeit       : 15:30 Uhr (MEZ/MESZ)",
		"Nennwert                          Kurs",
		"St. 100                EUR 23,80",
		"Kurswert                        : EUR              2.380,00",
		"Zu Ihren Lasten vor Steuern",
		"EUR 2.389,90",
	},
}

var comdirectBuyForeignCurrency = []models.Page{
	{
		"comdirect bank AG",
		"Wertpapierkauf",
		"Wertpapier-Bezeichnung                                   WPKNR/ISIN",
		"Arcimoto Inc.                                  A2JN1H",
		"Registered Shares o.N.                 US03965L1008",
		"Geschäftstag       : 04.01.2021        Geschäftsart      : Kauf",
		"Nennwert                          Kurs",
		"St. 80                USD 28,37",
		"Kurswert                        : USD              2.269,60",
		"Börse: Nasdaq",
		"Umrechnung zum Devisenkurs 1,134800      : EUR           2.000,00",
		"Zu Ihren Lasten vor Steuern",
		"EUR 2.012,40",
	},
}

// Fund purchase where the front load was partially refunded; the reduction
// has to be added back onto the quoted amount.
var comdirectBuyReducedFrontLoad = []models.Page{
	{
		"comdirect bank AG",
		"Wertpapierkauf",
		"Wertpapier-Bezeichnung                                   WPKNR/ISIN",
		"FondsName Klasse A                             ABC123",
		"Inhaber-Anteile                        LU0123456789",
		"Geschäftstag       : 04.01.2021        Geschäftsart      : Kauf",
		"Nennwert",
		"St. 5",
		"Kurswert                 Devisenkurs     EUR      100,00",
		"Reduktion Kaufaufschlag                  EUR        2,50-",
		"Zu Ihren Lasten vor Steuern",
		"EUR 102,50",
	},
}

var comdirectSellTerse = []models.Page{
	{
		"comdirect bank AG",
		"Wertpapierverkauf",
		"Wertpapier-Bezeichnung",
		"WPKNR/ISIN",
		"Arcimoto Inc.",
		"A2JN1H",
		"Registered Shares o.N.",
		"US03965L1008",
		"Geschäftstag : 04.01.2021",
		"Handelszeit",
		"Uhrzeit",
		"16:30 Uhr (MEZ/MESZ)",
		"Nennwert",
		"St. 60               EUR 23,80",
		"Kurswert                    : EUR 1.428,00",
		"Zu Ihren Gunsten vor Steuern",
		"Zur Verrechnung",
		"Konto-Nr.",
		"0123456789",
		"Valuta",
		"08.01.2021",
		"IBAN",
		"DE58 1234 5678 9012 3456 78",
		"EUR 1.415,60",
		"abgeführte Steuern",
		"EUR",
		"27,34-",
	},
}

// A sell filled in several partial executions lists the rounded totals
// above the "(ggf. gerundet)" marker.
var comdirectSellPartialExecutions = []models.Page{
	{
		"comdirect bank AG",
		"Wertpapierverkauf",
		"Wertpapier-Bezeichnung                                   WPKNR/ISIN",
		"Arcimoto Inc.                                  A2JN1H",
		"Registered Shares o.N.                 US03965L1008",
		"Geschäftstag       : 04.01.2021",
		"Summe        St. 150              EUR 3.570,00",
		"(ggf. gerundet)",
		"Zu Ihren Gunsten vor Steuern",
		"EUR 3.561,23",
		"abgeführte Steuern",
		"EUR 94,71-",
	},
}

var comdirectDividendForeignCurrency = []models.Page{
	{
		"comdirect bank AG",
		"Ertragsgutschrift",
		"Wertpapier-Bezeichnung                                   WPKNR/ISIN",
		"per 15.11.2018                                 852062",
		"Procter & Gamble Co.",
		"US7427181091",
		"STK 10,000",
		"Bruttobetrag:                    USD              20,08",
		"zum Devisenkurs: EUR/USD 1,134800",
		"15,000 % Quellensteuer             USD               3,01 -",
		"Valuta",
		"Verrechnung über Konto 0123456789 15.11.2018 EUR 14,93",
	},
}

var comdirectTaxSheetDividend = []models.Page{
	{
		"comdirect Bank AG",
		"Steuerliche Behandlung: Ausländische Dividende",
		"Stk.               8,544 PROCTER GAMBLE            , WKN / ISIN: 852062  / US7427181091",
		"Zu Ihren Gunsten vor Steuern:",
		"EUR 7,26",
		"Steuerbemessungsgrundlage vor Verlustverrechnung",
		"EUR 8,54",
		"15,000 % Quellensteuer EUR 1,28 -",
		"abgeführte Steuern",
		"EUR 0,00",
		"Die Gutschrift erfolgt mit Valuta 17.02.2021",
	},
}

// Same sheet, but the tax base implies more withheld tax than the printed
// Quellensteuer line shows.
var comdirectTaxSheetImpliedWithholding = []models.Page{
	{
		"comdirect Bank AG",
		"Steuerliche Behandlung: Ausländische Dividende",
		"Stk.               8,544 PROCTER GAMBLE            , WKN / ISIN: 852062  / US7427181091",
		"Zu Ihren Gunsten vor Steuern:",
		"EUR 7,26",
		"Steuerbemessungsgrundlage vor Verlustverrechnung",
		"EUR 10,54",
		"15,000 % Quellensteuer EUR 1,28 -",
		"abgeführte Steuern",
		"EUR 0,00",
		"Die Gutschrift erfolgt mit Valuta 17.02.2021",
	},
}

// A tax sheet carrying a cost disclosure footer is still a tax sheet.
var comdirectTaxSheetWithCostFooter = []models.Page{
	{
		"comdirect Bank AG",
		"Steuerliche Behandlung: Ausländische Dividende",
		"Stk.               8,544 PROCTER GAMBLE            , WKN / ISIN: 852062  / US7427181091",
		"Zu Ihren Gunsten vor Steuern:",
		"EUR 7,26",
		"Steuerbemessungsgrundlage vor Verlustverrechnung",
		"EUR 8,54",
		"15,000 % Quellensteuer EUR 1,28 -",
		"abgeführte Steuern",
		"EUR 0,00",
		"Die Gutschrift erfolgt mit Valuta 17.02.2021",
		"Kosteninformation gemäß § 63 Abs. 7 WpHG",
	},
}

var comdirectCostInformation = []models.Page{
	{
		"comdirect bank AG",
		"Kosteninformation zum Wertpapiergeschäft",
	},
}

func TestComdirectCanParseDocument(t *testing.T) {
	p := &ComdirectParser{}

	samples := [][]models.Page{
		comdirectBuy,
		comdirectBuyForeignCurrency,
		comdirectBuyReducedFrontLoad,
		comdirectSellTerse,
		comdirectSellPartialExecutions,
		comdirectDividendForeignCurrency,
		comdirectTaxSheetDividend,
		comdirectTaxSheetImpliedWithholding,
		comdirectTaxSheetWithCostFooter,
		comdirectCostInformation,
	}
	for _, pages := range samples {
		assert.True(t, p.CanParseDocument(pages, "pdf"))
		assert.False(t, p.CanParseDocument(pages, "csv"))
	}

	// onvista whitelabel documents share the comdirect boilerplate and must
	// not be claimed.
	onvista := []models.Page{{
		"comdirect bank AG",
		"Wertpapierkauf",
		"BELEGDRUCK=J",
	}}
	assert.False(t, p.CanParseDocument(onvista, "pdf"))

	unknown := []models.Page{{
		"comdirect bank AG",
		"Depotentgelt",
	}}
	assert.False(t, p.CanParseDocument(unknown, "pdf"))
}

func TestComdirectBuy(t *testing.T) {
	p := &ComdirectParser{}
	result := p.ParsePages(comdirectBuy)

	require.Equal(t, models.StatusSuccess, result.Status)
	require.Len(t, result.Activities, 1)
	assert.Equal(t, &models.Activity{
		Broker:   "comdirect",
		Type:     models.ActivityBuy,
		Date:     "2021-01-04",
		DateTime: "2021-01-04T15:30:00Z",
		ISIN:     "US03965L1008",
		WKN:      "A2JN1H",
		Company:  "Arcimoto Inc.",
		Shares:   100,
		Price:    23.8,
		Amount:   2380,
		Fee:      9.9,
		Tax:      0,
	}, result.Activities[0])
}

func TestComdirectBuyForeignCurrency(t *testing.T) {
	p := &ComdirectParser{}
	result := p.ParsePages(comdirectBuyForeignCurrency)

	require.Equal(t, models.StatusSuccess, result.Status)
	require.Len(t, result.Activities, 1)
	activity := result.Activities[0]
	require.NotNil(t, activity)
	assert.Equal(t, models.ActivityBuy, activity.Type)
	assert.Equal(t, 80.0, activity.Shares)
	assert.Equal(t, 2000.0, activity.Amount)
	assert.Equal(t, 25.0, activity.Price)
	assert.Equal(t, 12.4, activity.Fee)
	assert.Equal(t, "USD", activity.ForeignCurrency)
	assert.Equal(t, 1.1348, activity.FxRate)
}

func TestComdirectBuyReducedFrontLoad(t *testing.T) {
	p := &ComdirectParser{}
	result := p.ParsePages(comdirectBuyReducedFrontLoad)

	require.Equal(t, models.StatusSuccess, result.Status)
	require.Len(t, result.Activities, 1)
	activity := result.Activities[0]
	require.NotNil(t, activity)
	assert.Equal(t, "LU0123456789", activity.ISIN)
	assert.Equal(t, "FondsName Klasse A", activity.Company)
	assert.Equal(t, 5.0, activity.Shares)
	assert.Equal(t, 102.5, activity.Amount)
	assert.Equal(t, 20.5, activity.Price)
	assert.Equal(t, 0.0, activity.Fee)
}

func TestComdirectSellTerseLayout(t *testing.T) {
	p := &ComdirectParser{}
	result := p.ParsePages(comdirectSellTerse)

	require.Equal(t, models.StatusSuccess, result.Status)
	require.Len(t, result.Activities, 1)
	assert.Equal(t, &models.Activity{
		Broker:   "comdirect",
		Type:     models.ActivitySell,
		Date:     "2021-01-04",
		DateTime: "2021-01-04T16:30:00Z",
		ISIN:     "US03965L1008",
		WKN:      "A2JN1H",
		Company:  "Arcimoto Inc.",
		Shares:   60,
		Price:    23.8,
		Amount:   1428,
		Fee:      12.4,
		Tax:      27.34,
	}, result.Activities[0])
}

func TestComdirectSellPartialExecutions(t *testing.T) {
	p := &ComdirectParser{}
	result := p.ParsePages(comdirectSellPartialExecutions)

	require.Equal(t, models.StatusSuccess, result.Status)
	require.Len(t, result.Activities, 1)
	activity := result.Activities[0]
	require.NotNil(t, activity)
	assert.Equal(t, models.ActivitySell, activity.Type)
	assert.Equal(t, 150.0, activity.Shares)
	assert.Equal(t, 3570.0, activity.Amount)
	assert.Equal(t, 23.8, activity.Price)
	assert.Equal(t, 8.77, activity.Fee)
	assert.Equal(t, 94.71, activity.Tax)
}

func TestComdirectDividendForeignCurrency(t *testing.T) {
	p := &ComdirectParser{}
	result := p.ParsePages(comdirectDividendForeignCurrency)

	require.Equal(t, models.StatusSuccess, result.Status)
	require.Len(t, result.Activities, 1)
	activity := result.Activities[0]
	require.NotNil(t, activity)
	assert.Equal(t, models.ActivityDividend, activity.Type)
	assert.Equal(t, "2018-11-15", activity.Date)
	assert.Equal(t, "2018-11-15T00:00:00Z", activity.DateTime)
	assert.Equal(t, "US7427181091", activity.ISIN)
	assert.Equal(t, "852062", activity.WKN)
	assert.Equal(t, "Procter & Gamble Co.", activity.Company)
	assert.Equal(t, 10.0, activity.Shares)
	assert.InDelta(t, 17.6947, activity.Amount, 0.0001)
	assert.InDelta(t, 1.76947, activity.Price, 0.0001)
	assert.InDelta(t, 2.6524, activity.Tax, 0.001)
	assert.Equal(t, "USD", activity.ForeignCurrency)
	assert.Equal(t, 1.1348, activity.FxRate)
}

func TestComdirectTaxSheetDividend(t *testing.T) {
	p := &ComdirectParser{}
	result := p.ParsePages(comdirectTaxSheetDividend)

	require.Equal(t, models.StatusSuccess, result.Status)
	require.Len(t, result.Activities, 1)
	activity := result.Activities[0]
	require.NotNil(t, activity)

	// Tax sheets come out as plain dividends with the withheld tax added
	// back onto the payout.
	assert.Equal(t, models.ActivityDividend, activity.Type)
	assert.Equal(t, "2021-02-17", activity.Date)
	assert.Equal(t, "US7427181091", activity.ISIN)
	assert.Equal(t, "852062", activity.WKN)
	assert.Equal(t, "PROCTER GAMBLE", activity.Company)
	assert.Equal(t, 8.544, activity.Shares)
	assert.Equal(t, 8.54, activity.Amount)
	assert.Equal(t, 1.28, activity.Tax)
	assert.InDelta(t, 0.99953, activity.Price, 0.0001)
}

func TestComdirectTaxSheetImpliedWithholding(t *testing.T) {
	p := &ComdirectParser{}
	result := p.ParsePages(comdirectTaxSheetImpliedWithholding)

	require.Equal(t, models.StatusSuccess, result.Status)
	require.Len(t, result.Activities, 1)
	activity := result.Activities[0]
	require.NotNil(t, activity)

	// The tax base implies 3.28 withheld against the printed 1.28; the
	// larger figure wins and grosses up both tax and amount.
	assert.Equal(t, models.ActivityDividend, activity.Type)
	assert.Equal(t, 10.54, activity.Amount)
	assert.Equal(t, 4.56, activity.Tax)
	assert.Equal(t, 8.544, activity.Shares)
}

func TestComdirectTaxSheetWithCostFooter(t *testing.T) {
	p := &ComdirectParser{}

	require.Equal(t, models.ActivityTaxDividend,
		comdirectDocumentType(comdirectTaxSheetWithCostFooter[0]))

	result := p.ParsePages(comdirectTaxSheetWithCostFooter)
	require.Equal(t, models.StatusSuccess, result.Status)
	require.Len(t, result.Activities, 1)
	activity := result.Activities[0]
	require.NotNil(t, activity)
	assert.Equal(t, models.ActivityDividend, activity.Type)
	assert.Equal(t, 8.54, activity.Amount)
	assert.Equal(t, 1.28, activity.Tax)
}

func TestComdirectCostInformation(t *testing.T) {
	p := &ComdirectParser{}
	result := p.ParsePages(comdirectCostInformation)

	assert.Equal(t, models.StatusIgnoredDocument, result.Status)
	assert.Empty(t, result.Activities)
}
