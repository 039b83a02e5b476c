package parser

import (
	"archive/zip"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ParagraphSeparator joins extracted paragraphs so the chunker can split them again
const ParagraphSeparator = "\n\n"

var (
	xmlTagPattern    = regexp.MustCompile(`<[^>]+>`)
	slideNamePattern = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
	blankRunPattern  = regexp.MustCompile(`[ \t]+`)
)

// ExtractText reads a document and returns its text with paragraphs
// separated by blank lines. The format is chosen by file extension.
func ExtractText(filePath string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	var (
		paragraphs []string
		err        error
	)
	switch ext {
	case ".pdf":
		paragraphs, err = parsePDF(filePath)
	case ".docx":
		paragraphs, err = parseDOCX(filePath)
	case ".pptx":
		paragraphs, err = parsePPTX(filePath)
	case ".xlsx":
		paragraphs, err = parseXLSX(filePath)
	case ".md", ".markdown":
		paragraphs, err = parseMarkdown(filePath)
	case ".txt":
		paragraphs, err = parseText(filePath)
	default:
		return "", fmt.Errorf("unsupported file format: %s", ext)
	}
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", filepath.Base(filePath), err)
	}

	log.Debug().Str("file", filePath).Int("paragraphs", len(paragraphs)).Msg("Extracted text")
	return joinParagraphs(paragraphs), nil
}

func parsePDF(filePath string) ([]string, error) {
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

	var pages []string
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, pageText)
	}
	return pages, nil
}

func parseDOCX(filePath string) ([]string, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return docxParagraphs(r.Editable().GetContent()), nil
}

// docxParagraphs turns WordprocessingML into plain paragraphs, one per <w:p>
func docxParagraphs(content string) []string {
	content = strings.ReplaceAll(content, "</w:p>", ParagraphSeparator)
	content = strings.ReplaceAll(content, "<w:tab/>", " ")
	content = xmlTagPattern.ReplaceAllString(content, "")
	return strings.Split(html.UnescapeString(content), ParagraphSeparator)
}

type slide struct {
	number int
	file   *zip.File
}

func parsePPTX(filePath string) ([]string, error) {
	f, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var slides []slide
	for _, file := range f.File {
		m := slideNamePattern.FindStringSubmatch(file.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{number: n, file: file})
	}
	// zip entries are not guaranteed to be in slide order
	sort.Slice(slides, func(i, j int) bool { return slides[i].number < slides[j].number })

	var paragraphs []string
	for _, s := range slides {
		rc, err := s.file.Open()
		if err != nil {
			log.Warn().Err(err).Int("slide", s.number).Msg("Skipping unreadable slide")
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			log.Warn().Err(err).Int("slide", s.number).Msg("Skipping unreadable slide")
			continue
		}
		paragraphs = append(paragraphs, extractTextFromXML(string(data)))
	}
	return paragraphs, nil
}

func parseXLSX(filePath string) ([]string, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var paragraphs []string
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			log.Warn().Err(err).Str("sheet", sheetName).Msg("Skipping unreadable sheet")
			continue
		}
		for _, row := range rows {
			paragraphs = append(paragraphs, strings.Join(row, " "))
		}
	}
	return paragraphs, nil
}

func parseMarkdown(filePath string) ([]string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return markdownParagraphs(data), nil
}

// markdownParagraphs returns the text of each block of a markdown document
// with the markup removed
func markdownParagraphs(src []byte) []string {
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var paragraphs []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindParagraph, ast.KindHeading, ast.KindTextBlock:
			paragraphs = append(paragraphs, inlineText(n, src))
			return ast.WalkSkipChildren, nil
		case ast.KindFencedCodeBlock, ast.KindCodeBlock:
			var b strings.Builder
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				b.Write(seg.Value(src))
			}
			paragraphs = append(paragraphs, b.String())
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return paragraphs
}

func inlineText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

func parseText(filePath string) ([]string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	return []string{content}, nil
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
			text.WriteString(html.UnescapeString(part[:endIdx]) + " ")
		}
	}
	return text.String()
}

// joinParagraphs drops blank paragraphs and separates the rest with a blank line
func joinParagraphs(paragraphs []string) string {
	kept := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		p = strings.TrimSpace(blankRunPattern.ReplaceAllString(p, " "))
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ParagraphSeparator)
}
