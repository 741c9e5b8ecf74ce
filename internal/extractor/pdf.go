package extractor

import (
	"fmt"
	"math"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"

	"github.com/insightdelivered/broker-activity-import/internal/models"
)

// ExtractPages reads a PDF file and returns one token slice per page:
// trimmed, non-empty text rows in reading order. If the structured PDF
// library fails, falls back to the external pdftotext command
// (poppler-utils).
func ExtractPages(filePath string) ([]models.Page, error) {
	pages, libErr := extractWithLibrary(filePath)
	if libErr == nil && isReadableText(pages) {
		return pages, nil
	}

	popplerPages, popplerErr := extractWithPdftotext(filePath)
	if popplerErr == nil && isReadableText(popplerPages) {
		return popplerPages, nil
	}

	// All methods failed — never hand garbage tokens to the parsers.
	if libErr != nil {
		return nil, fmt.Errorf("PDF text extraction failed: %v. The PDF may use custom fonts or be image-based/scanned", libErr)
	}
	return nil, fmt.Errorf("no readable text could be extracted from PDF. The file may be image-based/scanned, or uses custom font encodings that cannot be decoded")
}

// extractWithLibrary uses the ledongthuc/pdf library.
func extractWithLibrary(filePath string) (pages []models.Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("PDF library crashed: %v", r)
		}
	}()

	f, r, openErr := pdf.Open(filePath)
	if openErr != nil {
		return nil, openErr
	}
	defer f.Close()

	numPages := r.NumPage()
	if numPages == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}

	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pages = append(pages, tokensFromContent(page.Content()))
	}
	return pages, nil
}

// tokensFromContent reconstructs text rows from positioned text objects.
// Pieces are grouped by Y coordinate, ordered left to right, and joined
// into one token per row; larger horizontal gaps keep a column separator so
// positional field extraction can split on runs of spaces.
func tokensFromContent(content pdf.Content) models.Page {
	type textItem struct {
		x float64
		s string
	}
	rowMap := make(map[int][]textItem)
	for _, t := range content.Text {
		if strings.TrimSpace(t.S) == "" {
			continue
		}
		// Round Y to the nearest integer to group into rows
		yKey := int(math.Round(t.Y))
		rowMap[yKey] = append(rowMap[yKey], textItem{x: t.X, s: t.S})
	}

	// PDF Y grows bottom-to-top, so rows sort descending
	yKeys := make([]int, 0, len(rowMap))
	for y := range rowMap {
		yKeys = append(yKeys, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(yKeys)))

	var tokens models.Page
	for _, y := range yKeys {
		items := rowMap[y]
		sort.Slice(items, func(a, b int) bool {
			return items[a].x < items[b].x
		})

		var parts []string
		var prevX float64
		for j, item := range items {
			if j > 0 && item.x-prevX > 15 {
				parts = append(parts, "   ")
			}
			parts = append(parts, item.s)
			prevX = item.x
		}
		token := strings.TrimSpace(strings.Join(parts, ""))
		if token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

// extractWithPdftotext uses the external pdftotext command from
// poppler-utils as a fallback for PDFs the Go library cannot handle.
func extractWithPdftotext(filePath string) ([]models.Page, error) {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return nil, fmt.Errorf("pdftotext not available: %v", err)
	}

	numPages := 1
	if out, err := exec.Command("pdfinfo", filePath).Output(); err == nil {
		for _, line := range strings.Split(string(out), "\n") {
			if strings.HasPrefix(line, "Pages:") {
				if n, parseErr := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Pages:"))); parseErr == nil && n > 0 {
					numPages = n
				}
			}
		}
	}

	// Extract each page separately to preserve page boundaries
	var pages []models.Page
	for i := 1; i <= numPages; i++ {
		pageStr := strconv.Itoa(i)
		out, err := exec.Command("pdftotext", "-layout", "-f", pageStr, "-l", pageStr, filePath, "-").Output()
		if err != nil {
			continue
		}
		page := tokenizeLines(string(out))
		if len(page) > 0 {
			pages = append(pages, page)
		}
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("pdftotext produced no output")
	}
	return pages, nil
}

// tokenizeLines turns raw text into the token shape the parsers consume:
// one trimmed, non-empty line per token.
func tokenizeLines(text string) models.Page {
	var tokens models.Page
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			tokens = append(tokens, line)
		}
	}
	return tokens
}

// commonWords that appear in virtually all German brokerage statements.
// If the extracted text contains none of these, it's likely garbage.
var commonWords = []string{
	"bank", "depot", "konto", "datum", "seite", "betrag", "steuer",
	"abrechnung", "wertpapier", "isin", "wkn", "kurs", "valuta",
	"gutschrift", "verkauf", "kauf",
}

func containsCommonWords(pages []models.Page) bool {
	var sb strings.Builder
	for _, page := range pages {
		for _, token := range page {
			sb.WriteString(strings.ToLower(token))
			sb.WriteByte('\n')
		}
	}
	combined := sb.String()
	for _, word := range commonWords {
		if strings.Contains(combined, word) {
			return true
		}
	}
	return false
}

// textQuality returns the ratio of readable characters (letters, digits,
// common punctuation, whitespace) to total characters. Garbage from
// identity-encoded fonts scores low.
func textQuality(pages []models.Page) float64 {
	total := 0
	readable := 0
	for _, page := range pages {
		for _, token := range page {
			for _, r := range token {
				total++
				if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) ||
					strings.ContainsRune(`.,-/:;()'"%&@#!?+=*€$`, r) {
					readable++
				}
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(readable) / float64(total)
}

func isReadableText(pages []models.Page) bool {
	if len(pages) == 0 {
		return false
	}
	if textQuality(pages) <= 0.6 {
		return false
	}
	// Final check: the text must contain at least one recognizable word
	return containsCommonWords(pages)
}
