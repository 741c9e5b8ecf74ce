package api

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/insightdelivered/broker-activity-import/internal/extractor"
	"github.com/insightdelivered/broker-activity-import/internal/models"
	"github.com/insightdelivered/broker-activity-import/internal/parser"
)

const version = "1.0.0"

// ParseResponse is the JSON response from the /api/parse endpoint.
type ParseResponse struct {
	File       string              `json:"file"`
	Activities []*models.Activity  `json:"activities"`
	Status     models.ParserStatus `json:"status"`
	Successful bool                `json:"successful"`
	Error      string              `json:"error,omitempty"`
}

// NewApp builds the fiber application with all routes registered.
func NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit: 32 << 20,
	})
	app.Get("/api/health", HandleHealth)
	app.Post("/api/parse", HandleParse)
	return app
}

func HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"engine":  "fiber",
		"version": version,
	})
}

// HandleParse accepts a statement upload (multipart field "file") and
// returns the parsed activities together with the parser status.
func HandleParse(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, "No file uploaded. Use form field 'file'.")
	}

	extension := strings.TrimPrefix(strings.ToLower(filepath.Ext(fileHeader.Filename)), ".")

	var parsed models.ParsedFile
	switch extension {
	case "pdf":
		upload, err := fileHeader.Open()
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "Failed to open uploaded file.")
		}
		defer upload.Close()

		tmpPath, cleanup, err := saveUpload(upload)
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "Failed to save uploaded file.")
		}
		defer cleanup()

		pages, err := extractor.ExtractPages(tmpPath)
		if err != nil {
			return writeError(c, fiber.StatusUnprocessableEntity, fmt.Sprintf("PDF extraction failed: %v", err))
		}
		parsed = models.ParsedFile{Pages: pages, Extension: extension}
	default:
		upload, err := fileHeader.Open()
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "Failed to open uploaded file.")
		}
		defer upload.Close()

		data, err := io.ReadAll(upload)
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "Failed to read uploaded file.")
		}
		parsed = extractor.MaterializeText(string(data), extension)
	}

	result := parser.ParseActivitiesFromPages(parsed.Pages, parsed.Extension)

	return c.JSON(ParseResponse{
		File:       fileHeader.Filename,
		Activities: result.Activities,
		Status:     result.Status,
		Successful: result.Activities != nil && result.Status == models.StatusSuccess,
	})
}

// saveUpload spools an uploaded file to a temp path so the PDF extractor
// can open it by name. The returned cleanup removes the file.
func saveUpload(upload io.Reader) (string, func(), error) {
	tmpFile, err := os.CreateTemp("", "statement-*.pdf")
	if err != nil {
		return "", nil, err
	}
	if _, err := io.Copy(tmpFile, upload); err != nil {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
		return "", nil, err
	}
	tmpFile.Close()
	return tmpFile.Name(), func() { os.Remove(tmpFile.Name()) }, nil
}

func writeError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(ParseResponse{Error: msg})
}
