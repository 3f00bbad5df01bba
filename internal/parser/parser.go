package parser

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	gtext "github.com/yuin/goldmark/text"

	"document-chat/internal/config"
	"document-chat/internal/errs"
	"document-chat/internal/models"
)

// unit is one page-level piece of document text before chunking. For
// spreadsheets the page is the sheet index, for presentations the slide.
type unit struct {
	text string
	page int
}

// ParseDocument loads the file at filePath, extracts its text units and
// splits them into overlapping chunks per cfg.
func ParseDocument(filePath string, cfg *config.RAGConfig) ([]models.Chunk, error) {
	if _, err := os.Stat(filePath); err != nil {
		return nil, fmt.Errorf("%w: %s", errs.ErrDocumentNotFound, filePath)
	}

	units, err := parseUnits(filePath)
	if err != nil {
		if errors.Is(err, errs.ErrParseFailure) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", errs.ErrParseFailure, err)
	}

	source := filepath.Base(filePath)
	var chunks []models.Chunk
	for _, u := range units {
		for i, s := range splitText(u.text, cfg.ChunkSize, cfg.ChunkOverlap) {
			chunks = append(chunks, models.Chunk{
				Content:    s,
				Source:     source,
				PageNumber: u.page,
				ChunkID:    i + 1,
			})
		}
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no text content in %s", errs.ErrParseFailure, source)
	}

	log.Debug().Str("source", source).Int("units", len(units)).Int("chunks", len(chunks)).Msg("parsed document")
	return chunks, nil
}

func parseUnits(filePath string) ([]unit, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".pdf":
		return parsePDF(filePath)
	case ".docx":
		return parseDOCX(filePath)
	case ".pptx":
		return parsePPTX(filePath)
	case ".xlsx":
		return parseXLSX(filePath)
	case ".ods":
		return parseODS(filePath)
	case ".md":
		return parseMarkdown(filePath)
	case ".txt":
		return parseText(filePath)
	default:
		return nil, fmt.Errorf("%w: unsupported file format %q", errs.ErrParseFailure, ext)
	}
}

func parsePDF(filePath string) ([]unit, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, err
	}

	var units []unit
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		units = append(units, unit{text: pageText, page: i})
	}
	return units, nil
}

func parseDOCX(filePath string) ([]unit, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	content := r.Editable().GetContent()
	var text strings.Builder
	for _, p := range strings.Split(content, "\n") {
		if strings.TrimSpace(p) == "" {
			continue
		}
		text.WriteString(p)
		text.WriteString("\n\n")
	}
	return []unit{{text: text.String(), page: 1}}, nil
}

func parsePPTX(filePath string) ([]unit, error) {
	f, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var units []unit
	slideNum := 0
	for _, file := range f.File {
		if !strings.HasPrefix(file.Name, "ppt/slides/slide") {
			continue
		}
		slideNum++
		rc, err := file.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		slideText := extractTextFromXML(string(data))
		if strings.TrimSpace(slideText) == "" {
			continue
		}
		units = append(units, unit{text: slideText, page: slideNum})
	}
	return units, nil
}

func parseXLSX(filePath string) ([]unit, error) {
	f, err := xlsx.OpenFile(filePath)
	if err != nil {
		return nil, err
	}

	var units []unit
	for sheetNum, sheet := range f.Sheets {
		var text strings.Builder
		text.WriteString(fmt.Sprintf("Sheet: %s\n", sheet.Name))
		for _, row := range sheet.Rows {
			for _, cell := range row.Cells {
				text.WriteString(cell.String() + "\t")
			}
			text.WriteString("\n")
		}
		units = append(units, unit{text: text.String(), page: sheetNum + 1})
	}
	return units, nil
}

func parseODS(filePath string) ([]unit, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var units []unit
	for sheetNum, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}
		var text strings.Builder
		text.WriteString(fmt.Sprintf("Sheet: %s\n", sheetName))
		for _, row := range rows {
			for _, cell := range row {
				text.WriteString(cell + "\t")
			}
			text.WriteString("\n")
		}
		units = append(units, unit{text: text.String(), page: sheetNum + 1})
	}
	return units, nil
}

// parseMarkdown extracts plain text from a markdown file by walking the
// parsed AST, so markup never leaks into the index.
func parseMarkdown(filePath string) ([]unit, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	root := md.Parser().Parse(gtext.NewReader(data))

	var text strings.Builder
	err = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch t := n.(type) {
		case *ast.Text:
			if entering {
				text.Write(t.Segment.Value(data))
				if t.SoftLineBreak() || t.HardLineBreak() {
					text.WriteByte('\n')
				}
			}
		case *ast.Paragraph, *ast.Heading, *ast.ListItem:
			if !entering {
				text.WriteString("\n\n")
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}
	return []unit{{text: text.String(), page: 1}}, nil
}

func parseText(filePath string) ([]unit, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return []unit{{text: string(data), page: 1}}, nil
}

func extractTextFromXML(xmlContent string) string {
	var text strings.Builder
	parts := strings.Split(xmlContent, "<a:t>")
	for i, part := range parts {
		if i == 0 {
			continue
		}
		endIdx := strings.Index(part, "</a:t>")
		if endIdx >= 0 {
			text.WriteString(part[:endIdx] + " ")
		}
	}
	return text.String()
}
