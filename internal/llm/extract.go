package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	openai "github.com/sashabaranov/go-openai"
)

// ExtractFile uploads a document for provider-side extraction and
// returns the extracted text. Providers exposing the file-extract
// purpose (Moonshot, Zhipu and compatible gateways) parse scanned PDFs
// server-side.
func (c *Client) ExtractFile(ctx context.Context, path string) (string, error) {
	file, err := c.api.CreateFile(ctx, openai.FileRequest{
		FileName: filepath.Base(path),
		FilePath: path,
		Purpose:  "file-extract",
	})
	if err != nil {
		return "", fmt.Errorf("uploading file: %w", err)
	}
	defer func() {
		if err := c.api.DeleteFile(ctx, file.ID); err != nil {
			log.Printf("llm: deleting uploaded file %s: %v", file.ID, err)
		}
	}()

	content, err := c.api.GetFileContent(ctx, file.ID)
	if err != nil {
		return "", fmt.Errorf("fetching extracted content: %w", err)
	}
	defer content.Close()

	text, err := io.ReadAll(content)
	if err != nil {
		return "", fmt.Errorf("reading extracted content: %w", err)
	}
	return string(text), nil
}

// textExtensions are read directly from disk without any parser.
var textExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
}

// ExtractText extracts the text of a document. Plain-text files are read
// locally. PDFs go through the OCR slots in slot order, falling back to
// the embedded text layer when no slot succeeds. The result records
// which parser produced the text and carries a warning whenever the
// primary parser was not the one used.
func (g *Gateway) ExtractText(ctx context.Context, path string) (*ExtractResult, error) {
	ext := strings.ToLower(filepath.Ext(path))

	if textExtensions[ext] {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		return &ExtractResult{Text: string(data), ParseSource: "local"}, nil
	}

	if ext != ".pdf" {
		return nil, fmt.Errorf("unsupported file type %q", ext)
	}

	refs := g.reg.OCRSlots()
	var firstErr error
	for i, ref := range refs {
		text, err := g.clientFor(ref).ExtractFile(ctx, path)
		if err != nil {
			log.Printf("llm: ocr slot %d failed for %s: %v", ref.Number, filepath.Base(path), err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		res := &ExtractResult{
			Text:        text,
			ParseSource: fmt.Sprintf("slot_%d", ref.Number),
		}
		if i > 0 {
			res.Warning = fmt.Sprintf("primary parser failed, extracted with slot %d", ref.Number)
		}
		return res, nil
	}

	// No OCR slot produced text; use the PDF's embedded text layer.
	text, err := pdfPlainText(path)
	if err != nil {
		if firstErr != nil {
			return nil, fmt.Errorf("extracting %s: ocr failed (%v), text layer failed: %w", filepath.Base(path), firstErr, err)
		}
		return nil, fmt.Errorf("extracting %s: %w", filepath.Base(path), err)
	}
	res := &ExtractResult{Text: text, ParseSource: "local"}
	if len(refs) > 0 {
		res.Warning = "ocr parsers failed, extracted from embedded text layer"
	}
	return res, nil
}

// pdfPlainText reads the embedded text layer of a PDF.
func pdfPlainText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("reading pdf text layer: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", fmt.Errorf("reading pdf text layer: %w", err)
	}
	return buf.String(), nil
}
