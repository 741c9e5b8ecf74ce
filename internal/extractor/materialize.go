package extractor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/insightdelivered/broker-activity-import/internal/models"
)

// MaterializeFile turns a raw statement file into token pages plus its
// extension, the only two things the dispatcher consumes. PDFs yield one
// token slice per physical page; text-based files (CSV) yield a single
// page of row tokens. Unknown extensions are materialized as-is and left
// for the dispatcher to reject.
func MaterializeFile(filePath string) (models.ParsedFile, error) {
	extension := strings.TrimPrefix(strings.ToLower(filepath.Ext(filePath)), ".")

	if extension == "pdf" {
		pages, err := ExtractPages(filePath)
		if err != nil {
			return models.ParsedFile{}, err
		}
		return models.ParsedFile{Pages: pages, Extension: extension}, nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return models.ParsedFile{}, fmt.Errorf("failed to read %q: %w", filePath, err)
	}
	return MaterializeText(string(data), extension), nil
}

// MaterializeText tokenizes already-loaded text content (e.g. an uploaded
// CSV body) into the single-page document shape.
func MaterializeText(text, extension string) models.ParsedFile {
	return models.ParsedFile{
		Pages:     []models.Page{tokenizeLines(text)},
		Extension: extension,
	}
}
