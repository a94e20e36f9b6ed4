package walker

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// docTree creates a directory of sample documents and returns its path.
func docTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	write := func(rel, content string) {
		t.Helper()
		path := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	write("readme.md", "# Notes")
	write("journal.txt", "day one")
	write("papers/attention.pdf", "%PDF-1.4 fake")
	write("papers/draft.markdown", "## Draft")
	write("code/main.go", "package main")
	write("photo.jpg", "\xff\xd8\xff")

	return dir
}

func TestWalk_SupportedDocumentsOnly(t *testing.T) {
	files, err := Walk(WalkerConfig{RootDir: docTree(t)})
	if err != nil {
		t.Fatalf("Walk() error: %v", err)
	}

	want := map[string]bool{
		"readme.md":             false,
		"journal.txt":           false,
		"papers/attention.pdf":  false,
		"papers/draft.markdown": false,
	}
	for _, f := range files {
		if _, ok := want[f.RelPath]; !ok {
			t.Errorf("unsupported file included: %s", f.RelPath)
			continue
		}
		want[f.RelPath] = true
	}
	for rel, found := range want {
		if !found {
			t.Errorf("expected document %q not found", rel)
		}
	}
}

func TestWalk_FileInfoFields(t *testing.T) {
	files, err := Walk(WalkerConfig{RootDir: docTree(t)})
	if err != nil {
		t.Fatalf("Walk() error: %v", err)
	}
	if len(files) == 0 {
		t.Fatal("Walk() returned no files")
	}

	for _, f := range files {
		if f.Path == "" {
			t.Error("FileInfo.Path is empty")
		}
		if f.RelPath == "" {
			t.Error("FileInfo.RelPath is empty")
		}
		if f.Size <= 0 {
			t.Errorf("FileInfo.Size for %s is %d, expected > 0", f.RelPath, f.Size)
		}
		if len(f.ContentHash) != 64 {
			t.Errorf("FileInfo.ContentHash for %s has length %d, expected 64", f.RelPath, len(f.ContentHash))
		}
	}
}

func TestWalk_IncludeFilter(t *testing.T) {
	files, err := Walk(WalkerConfig{
		RootDir: docTree(t),
		Include: []string{"**/*.pdf"},
	})
	if err != nil {
		t.Fatalf("Walk() error: %v", err)
	}

	if len(files) != 1 {
		t.Fatalf("expected 1 pdf, got %d", len(files))
	}
	if files[0].RelPath != "papers/attention.pdf" {
		t.Errorf("include filter **/*.pdf matched %s", files[0].RelPath)
	}
}

func TestWalk_ExcludeFilter(t *testing.T) {
	files, err := Walk(WalkerConfig{
		RootDir: docTree(t),
		Exclude: []string{"papers/**"},
	})
	if err != nil {
		t.Fatalf("Walk() error: %v", err)
	}

	for _, f := range files {
		if strings.HasPrefix(f.RelPath, "papers/") {
			t.Errorf("exclude filter papers/** let through: %s", f.RelPath)
		}
	}
}

func TestWalk_SkipsLargeFiles(t *testing.T) {
	tmpDir := t.TempDir()

	os.WriteFile(filepath.Join(tmpDir, "small.txt"), []byte("small"), 0644)

	big := make([]byte, 200)
	for i := range big {
		big[i] = 'A'
	}
	os.WriteFile(filepath.Join(tmpDir, "big.txt"), big, 0644)

	files, err := Walk(WalkerConfig{
		RootDir:     tmpDir,
		MaxFileSize: 100,
	})
	if err != nil {
		t.Fatalf("Walk() error: %v", err)
	}

	if len(files) != 1 || files[0].RelPath != "small.txt" {
		t.Errorf("expected only small.txt, got %v", files)
	}
}

func TestWalk_DefaultExcludeDirs(t *testing.T) {
	tmpDir := t.TempDir()

	for _, dir := range []string{"node_modules", ".git", ".saga"} {
		dirPath := filepath.Join(tmpDir, dir)
		os.MkdirAll(dirPath, 0755)
		os.WriteFile(filepath.Join(dirPath, "notes.md"), []byte("content"), 0644)
	}
	os.WriteFile(filepath.Join(tmpDir, "notes.md"), []byte("# notes"), 0644)

	files, err := Walk(WalkerConfig{RootDir: tmpDir})
	if err != nil {
		t.Fatalf("Walk() error: %v", err)
	}

	if len(files) != 1 || files[0].RelPath != "notes.md" {
		names := make([]string, len(files))
		for i, f := range files {
			names[i] = f.RelPath
		}
		t.Errorf("expected only notes.md, got %v", names)
	}
}

func TestWalk_Gitignore(t *testing.T) {
	tmpDir := t.TempDir()

	os.WriteFile(filepath.Join(tmpDir, ".gitignore"), []byte("*.txt\ndrafts/\n"), 0644)
	os.WriteFile(filepath.Join(tmpDir, "keep.md"), []byte("# keep"), 0644)
	os.WriteFile(filepath.Join(tmpDir, "secret.txt"), []byte("password"), 0644)

	files, err := Walk(WalkerConfig{RootDir: tmpDir})
	if err != nil {
		t.Fatalf("Walk() error: %v", err)
	}

	for _, f := range files {
		if f.RelPath == "secret.txt" {
			t.Error("secret.txt should be excluded by .gitignore")
		}
	}

	found := false
	for _, f := range files {
		if f.RelPath == "keep.md" {
			found = true
		}
	}
	if !found {
		t.Error("keep.md should not be excluded")
	}
}

func TestWalk_ContentHashConsistency(t *testing.T) {
	dir := docTree(t)

	files1, err := Walk(WalkerConfig{RootDir: dir})
	if err != nil {
		t.Fatalf("Walk() error: %v", err)
	}
	files2, err := Walk(WalkerConfig{RootDir: dir})
	if err != nil {
		t.Fatalf("Walk() error: %v", err)
	}

	hash1 := make(map[string]string)
	for _, f := range files1 {
		hash1[f.RelPath] = f.ContentHash
	}
	for _, f := range files2 {
		if h, ok := hash1[f.RelPath]; ok && h != f.ContentHash {
			t.Errorf("content hash mismatch for %s: %s vs %s", f.RelPath, h, f.ContentHash)
		}
	}
}

func TestIsSupported(t *testing.T) {
	tests := []struct {
		filename string
		want     bool
	}{
		{"notes.txt", true},
		{"README.md", true},
		{"draft.markdown", true},
		{"paper.PDF", true},
		{"main.go", false},
		{"photo.jpg", false},
		{"noextension", false},
	}

	for _, tc := range tests {
		t.Run(tc.filename, func(t *testing.T) {
			if got := IsSupported(tc.filename); got != tc.want {
				t.Errorf("IsSupported(%q) = %v, want %v", tc.filename, got, tc.want)
			}
		})
	}
}

func TestMatchesInclude_Empty(t *testing.T) {
	if !MatchesInclude("anything.md", nil) {
		t.Error("empty include patterns should include everything")
	}
}

func TestMatchesInclude_Pattern(t *testing.T) {
	if !MatchesInclude("notes.md", []string{"*.md"}) {
		t.Error("*.md should match notes.md")
	}
	if MatchesInclude("notes.txt", []string{"*.md"}) {
		t.Error("*.md should not match notes.txt")
	}
}

func TestMatchesExclude_Empty(t *testing.T) {
	if MatchesExclude("anything.md", nil) {
		t.Error("empty exclude patterns should exclude nothing")
	}
}

func TestMatchesExclude_Pattern(t *testing.T) {
	if !MatchesExclude("debug.log", []string{"*.log"}) {
		t.Error("*.log should match debug.log")
	}
	if MatchesExclude("notes.md", []string{"*.log"}) {
		t.Error("*.log should not match notes.md")
	}
}

func TestMatchesInclude_DoubleStarPattern(t *testing.T) {
	if !MatchesInclude("papers/2024/attention.pdf", []string{"**/*.pdf"}) {
		t.Error("**/*.pdf should match papers/2024/attention.pdf")
	}
}
