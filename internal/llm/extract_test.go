package llm

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sagalabs/saga/internal/config"
)

func ocrConfig() *config.Config {
	cfg := chatConfig()
	cfg.OCR.Slot1 = config.ProviderSlot{
		Enabled: true, Provider: config.ProviderMoonshot,
		APIKey: "sk-test", ModelName: "ocr-a",
	}
	cfg.OCR.Slot2 = config.ProviderSlot{
		Enabled: true, Provider: config.ProviderZhipu,
		APIKey: "sk-test", ModelName: "ocr-b",
	}
	return cfg
}

func TestExtractTextLocal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.md")
	if err := os.WriteFile(path, []byte("# hello"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	g := testGateway(ocrConfig(), nil)
	res, err := g.ExtractText(context.Background(), path)
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if res.Text != "# hello" {
		t.Errorf("text = %q", res.Text)
	}
	if res.ParseSource != "local" {
		t.Errorf("parse source = %q, want local", res.ParseSource)
	}
	if res.Warning != "" {
		t.Errorf("unexpected warning %q", res.Warning)
	}
}

func TestExtractTextPDFPrimarySlot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.pdf")
	if err := os.WriteFile(path, []byte("%PDF-fake"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	mockA := newMockClient("moonshot")
	mockA.extractText = "extracted by primary"
	g := testGateway(ocrConfig(), map[string]*mockClient{"ocr-a": mockA})

	res, err := g.ExtractText(context.Background(), path)
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if res.Text != "extracted by primary" {
		t.Errorf("text = %q", res.Text)
	}
	if res.ParseSource != "slot_1" {
		t.Errorf("parse source = %q, want slot_1", res.ParseSource)
	}
	if res.Warning != "" {
		t.Errorf("unexpected warning %q", res.Warning)
	}
}

func TestExtractTextPDFFallbackSlot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.pdf")
	if err := os.WriteFile(path, []byte("%PDF-fake"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	mockA := newMockClient("moonshot")
	mockA.extractErr = fmt.Errorf("quota exceeded")
	mockB := newMockClient("zhipu")
	mockB.extractText = "extracted by fallback"
	g := testGateway(ocrConfig(), map[string]*mockClient{"ocr-a": mockA, "ocr-b": mockB})

	res, err := g.ExtractText(context.Background(), path)
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if res.ParseSource != "slot_2" {
		t.Errorf("parse source = %q, want slot_2", res.ParseSource)
	}
	if res.Warning == "" {
		t.Error("expected a warning when the fallback slot was used")
	}
}

func TestExtractTextUnsupported(t *testing.T) {
	g := testGateway(ocrConfig(), nil)
	if _, err := g.ExtractText(context.Background(), "image.png"); err == nil {
		t.Error("expected error for unsupported file type")
	}
}
