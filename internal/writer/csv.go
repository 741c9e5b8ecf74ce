package writer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/insightdelivered/broker-activity-import/internal/models"
)

// CSVWriter writes parsed activities to CSV format.
type CSVWriter struct {
	IncludeHeader bool
}

// WriteToFile writes activities to a CSV file at the given path.
func (w *CSVWriter) WriteToFile(path string, activities []*models.Activity) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	defer f.Close()

	return w.Write(f, activities)
}

// Write writes activities in CSV format to the given writer.
func (w *CSVWriter) Write(out io.Writer, activities []*models.Activity) error {
	writer := csv.NewWriter(out)
	defer writer.Flush()

	if w.IncludeHeader {
		header := []string{
			"Broker", "Type", "Date", "Datetime", "ISIN", "WKN", "Company",
			"Shares", "Price", "Amount", "Fee", "Tax", "Currency", "FxRate",
		}
		if err := writer.Write(header); err != nil {
			return fmt.Errorf("failed to write CSV header: %w", err)
		}
	}

	for _, activity := range activities {
		if activity == nil {
			continue
		}
		row := []string{
			activity.Broker,
			string(activity.Type),
			activity.Date,
			activity.DateTime,
			activity.ISIN,
			activity.WKN,
			activity.Company,
			formatNumber(activity.Shares, 6),
			formatNumber(activity.Price, 6),
			formatNumber(activity.Amount, 2),
			formatNumber(activity.Fee, 2),
			formatNumber(activity.Tax, 2),
			activity.ForeignCurrency,
			formatNumber(activity.FxRate, 6),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	return nil
}

func formatNumber(v float64, places int) string {
	if v == 0 {
		return ""
	}
	s := strconv.FormatFloat(v, 'f', places, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
