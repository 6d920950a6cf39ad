// Package export serializes crawled menu items for download or archival.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"menucrawler/crawler/internal/config"
	"menucrawler/crawler/internal/domain"

	log "github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatExcel    Format = "excel"
	FormatMarkdown Format = "markdown"
)

const timestampLayout = "2006-01-02 15:04:05"

// Column headers shared by the tabular formats
var columns = []string{"Ürün Adı", "Açıklama", "Fiyat", "Resim URL", "Kategori", "Kaynak URL"}

// utf8BOM lets spreadsheet applications detect the CSV encoding.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseFormat accepts a format name or a file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "excel", "xlsx":
		return FormatExcel, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, s)
	}
}

// Extension returns the file extension for the format, without a dot.
func (f Format) Extension() string {
	switch f {
	case FormatExcel:
		return "xlsx"
	case FormatMarkdown:
		return "md"
	default:
		return string(f)
	}
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatExcel:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

// Exporter renders items and writes export files.
type Exporter struct {
	directory string
	prefix    string
	now       func() time.Time
}

func NewExporter(cfg config.ExportConfig) *Exporter {
	return &Exporter{
		directory: cfg.Directory,
		prefix:    cfg.FilenamePrefix,
		now:       time.Now,
	}
}

// Filename builds a timestamped file name such as menu_data_2024-05-01_13-45-00.csv.
func (e *Exporter) Filename(format Format, at time.Time) string {
	return e.prefix + at.Format("2006-01-02_15-04-05") + "." + format.Extension()
}

// Render serializes items in the given format.
func (e *Exporter) Render(items []domain.MenuItem, reports []domain.CategoryReport, format Format) (domain.ExportResult, error) {
	at := e.now()

	var (
		content []byte
		err     error
	)
	switch format {
	case FormatJSON:
		content, err = ToJSON(items, at)
	case FormatCSV:
		content, err = ToCSV(items)
	case FormatExcel:
		content, err = ToExcel(items)
	case FormatMarkdown:
		content, err = ToMarkdown(items, reports, at)
	default:
		err = fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, format)
	}
	if err != nil {
		return domain.ExportResult{}, err
	}

	return domain.ExportResult{
		Success:  true,
		Filename: e.Filename(format, at),
		Content:  content,
		Size:     len(content),
	}, nil
}

// Save writes a rendered export into the export directory, creating it if needed.
func (e *Exporter) Save(result domain.ExportResult) (domain.ExportResult, error) {
	if err := os.MkdirAll(e.directory, 0755); err != nil {
		return result, fmt.Errorf("failed to create export directory: %w", err)
	}

	path := filepath.Join(e.directory, result.Filename)
	if err := os.WriteFile(path, result.Content, 0644); err != nil {
		return result, fmt.Errorf("failed to write export file: %w", err)
	}

	result.Filepath = path
	log.Infof("💾 Saved %s (%d bytes)", path, result.Size)
	return result, nil
}

type jsonExport struct {
	ExportInfo jsonExportInfo    `json:"export_info"`
	MenuItems  []domain.MenuItem `json:"menu_items"`
}

type jsonExportInfo struct {
	Timestamp  string `json:"timestamp"`
	TotalItems int    `json:"total_items"`
	Format     string `json:"format"`
}

// ToJSON renders items with an export_info header block.
func ToJSON(items []domain.MenuItem, at time.Time) ([]byte, error) {
	if items == nil {
		items = []domain.MenuItem{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")

	err := enc.Encode(jsonExport{
		ExportInfo: jsonExportInfo{
			Timestamp:  at.Format(timestampLayout),
			TotalItems: len(items),
			Format:     "JSON",
		},
		MenuItems: items,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode JSON export: %w", err)
	}
	return buf.Bytes(), nil
}

// ToCSV renders items as a BOM-prefixed CSV with a header row.
func ToCSV(items []domain.MenuItem) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(utf8BOM)

	w := csv.NewWriter(&buf)
	if err := w.Write(columns); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, item := range items {
		if err := w.Write(row(item)); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}

	return buf.Bytes(), nil
}

// ToExcel renders items into a single-sheet workbook with a styled header row.
func ToExcel(items []domain.MenuItem) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			log.Warnf("⚠️ Failed to close workbook: %v", err)
		}
	}()

	const sheet = "Menu"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header row: %w", err)
	}

	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"E2E8F0"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", "F1", style); err != nil {
		return nil, fmt.Errorf("failed to style header row: %w", err)
	}

	for i, item := range items {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		values := row(item)
		rowValues := make([]interface{}, len(values))
		for j, v := range values {
			rowValues[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &rowValues); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(sheet, "A", "F", 30); err != nil {
		return nil, fmt.Errorf("failed to size columns: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func row(item domain.MenuItem) []string {
	return []string{item.Name, item.Description, item.Price, item.Image, item.Category, item.SourceURL}
}
