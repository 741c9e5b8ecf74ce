package parser

import (
	"log/slog"

	"github.com/insightdelivered/broker-activity-import/internal/models"
)

// Parser is one institution's document handler. CanParseDocument inspects
// only the first page; ParsePages may consume the whole document.
type Parser interface {
	// BrokerName returns the broker identifier written into records.
	BrokerName() string
	// CanParseDocument reports whether this handler recognizes the document.
	CanParseDocument(pages []models.Page, extension string) bool
	// ParsePages extracts all activity candidates from the document.
	ParsePages(pages []models.Page) models.ParserResult
}

// Registry holds the handlers dispatch iterates over. Registration order is
// deterministic; it matters only for diagnostics, never for resolution —
// two handlers claiming the same document is always reported as ambiguous.
type Registry struct {
	parsers []Parser
}

func NewRegistry(parsers ...Parser) *Registry {
	return &Registry{parsers: parsers}
}

// defaultRegistry lists every supported institution, alphabetically.
var defaultRegistry = NewRegistry(
	&ComdirectParser{},
	&FondsdepotbankParser{},
)

// Default returns the registry of all built-in handlers.
func Default() *Registry {
	return defaultRegistry
}

// supportedExtensions are the file kinds the materialization layer can turn
// into token pages. Anything else fails before recognition is attempted.
var supportedExtensions = map[string]bool{
	"pdf": true,
	"csv": true,
}

// Find returns every handler that recognizes the document, in registration
// order.
func (r *Registry) Find(pages []models.Page, extension string) []Parser {
	var matches []Parser
	for _, p := range r.parsers {
		if p.CanParseDocument(pages, extension) {
			matches = append(matches, p)
		}
	}
	return matches
}

// Parse dispatches a document to the unique matching handler and filters
// the result. It is a pure function of its inputs: identical pages yield an
// identical result.
func (r *Registry) Parse(pages []models.Page, extension string) (result models.ParserResult) {
	if len(pages) == 0 {
		return models.ParserResult{Status: models.StatusNoActivities}
	}
	if !supportedExtensions[extension] {
		return models.ParserResult{Status: models.StatusUnsupportedFiletype}
	}

	matches := r.Find(pages, extension)
	switch {
	case len(matches) == 0:
		return models.ParserResult{Status: models.StatusUnknownImplementation}
	case len(matches) > 1:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = m.BrokerName()
		}
		slog.Warn("document recognized by more than one handler", "handlers", names)
		return models.ParserResult{Status: models.StatusAmbiguousImplementation}
	}

	// Extraction code never recovers on its own; any structural fault
	// surfaces here and becomes a reportable status.
	defer func() {
		if rec := recover(); rec != nil {
			slog.Warn("extraction fault", "handler", matches[0].BrokerName(), "fault", rec)
			result = models.ParserResult{Status: models.StatusFatalError}
		}
	}()

	return filterResultActivities(matches[0].ParsePages(pages))
}

// filterResultActivities enforces the all-or-nothing output contract: any
// unvalidatable candidate discards the whole batch, and a structurally
// successful parse with zero records is downgraded to "no activities".
func filterResultActivities(result models.ParserResult) models.ParserResult {
	if result.Activities == nil {
		return result
	}
	for _, activity := range result.Activities {
		if activity == nil {
			return models.ParserResult{Status: models.StatusInvalidActivities}
		}
	}
	if len(result.Activities) == 0 {
		result.Activities = nil
		if result.Status == models.StatusSuccess {
			result.Status = models.StatusNoActivities
		}
	}
	return result
}

// FindImplementation returns all registered handlers recognizing the
// document.
func FindImplementation(pages []models.Page, extension string) []Parser {
	return Default().Find(pages, extension)
}

// ParseActivitiesFromPages is the dispatch entry point over the default
// registry.
func ParseActivitiesFromPages(pages []models.Page, extension string) models.ParserResult {
	return Default().Parse(pages, extension)
}
