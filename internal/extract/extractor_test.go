package extract

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

func zipOf(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, body := range files {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newExtractor(t *testing.T, exts ...string) *Extractor {
	t.Helper()
	e, err := NewExtractor(exts...)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestNewExtractor_extensions(t *testing.T) {
	e := newExtractor(t, "MD", ".txt", ".md")
	if got := e.Extensions(); len(got) != 2 || got[0] != ".md" || got[1] != ".txt" {
		t.Errorf("Extensions() = %v", got)
	}
	if !e.Accepts("notes/Readme.MD") || e.Accepts("report.pdf") {
		t.Error("Accepts disagrees with configured extensions")
	}
	if _, err := NewExtractor(".exe"); err == nil {
		t.Error("expected error for unsupported extension")
	}
	if all := newExtractor(t); len(all.Extensions()) != len(SupportedExtensions()) {
		t.Error("no extensions should enable every format")
	}
}

func TestIsBinary(t *testing.T) {
	if IsBinary("a.md") || !IsBinary("b.PDF") || !IsBinary("c.ods") {
		t.Error("IsBinary misclassified")
	}
}

func TestExtractBytes_plain(t *testing.T) {
	e := newExtractor(t)
	tests := []struct {
		name, ext string
		in        []byte
		want      string
	}{
		{"text", ".txt", []byte("Hello world\nLine 2"), "Hello world\nLine 2"},
		{"utf8", ".md", []byte("caf\xc3\xa9"), "café"},
		{"invalid utf8", ".rst", []byte("hello\x80world"), "hello\uFFFDworld"},
		{"bom", ".md", []byte("\xEF\xBB\xBF# Title"), "# Title"},
		{"unknown extension", ".weird", []byte("raw"), "raw"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.ExtractBytes(tt.in, tt.ext)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtract_file(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.md")
	if err := os.WriteFile(path, []byte("The secret code is ZX-991."), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := newExtractor(t, ".md").Extract(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != "The secret code is ZX-991." {
		t.Errorf("got %q", got)
	}
}

func TestExtract_disabledExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := newExtractor(t, ".md").Extract(path); err == nil {
		t.Error("expected error for an extension that is not enabled")
	}
}

func TestExtract_nonexistent(t *testing.T) {
	if _, err := newExtractor(t).Extract(filepath.Join(t.TempDir(), "missing.md")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestExtractBytes_excel(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", "Title")
	f.SetCellValue("Sheet1", "A2", "Value 1")
	f.SetCellValue("Sheet1", "B2", "Value 2")
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	got, err := newExtractor(t).ExtractBytes(buf.Bytes(), ".xlsx")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Title\nValue 1\tValue 2" {
		t.Errorf("got %q", got)
	}
}

const wordBody = `<w:document><w:body><w:p w:rsidR="00A1"><w:r><w:t>Meeting</w:t></w:r><w:r><w:t xml:space="preserve"> notes </w:t></w:r></w:p></w:body></w:document>`

func TestExtractBytes_docx(t *testing.T) {
	content := zipOf(t, map[string]string{"word/document.xml": wordBody})
	got, err := newExtractor(t).ExtractBytes(content, ".docx")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Meeting notes" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_docxContentTypes(t *testing.T) {
	for name, override := range map[string]string{
		"part name first":    `<Override PartName="/word/document2.xml" ContentType="` + docxMainContentType + `"/>`,
		"content type first": `<Override ContentType="` + docxMainContentType + `" PartName="/word/document2.xml"/>`,
	} {
		t.Run(name, func(t *testing.T) {
			content := zipOf(t, map[string]string{
				"[Content_Types].xml": `<Types><Override PartName="/docProps/app.xml" ContentType="application/xml"/>` + override + `</Types>`,
				"word/document2.xml":  wordBody,
			})
			got, err := newExtractor(t).ExtractBytes(content, ".docx")
			if err != nil {
				t.Fatal(err)
			}
			if got != "Meeting notes" {
				t.Errorf("got %q", got)
			}
		})
	}
}

func TestExtractBytes_docxMissingDocument(t *testing.T) {
	content := zipOf(t, map[string]string{"other.xml": "<x/>"})
	if _, err := newExtractor(t).ExtractBytes(content, ".docx"); err == nil {
		t.Error("expected error when document.xml is missing")
	}
}

func TestExtractBytes_pptxSlideOrder(t *testing.T) {
	slide := func(text string) string {
		return `<p:sld><p:txBody><a:p><a:r><a:t>` + text + `</a:t></a:r></a:p></p:txBody></p:sld>`
	}
	content := zipOf(t, map[string]string{
		"ppt/slides/slide10.xml":           slide("Ten"),
		"ppt/slides/slide2.xml":            slide("Two"),
		"ppt/slides/slide1.xml":            slide("One"),
		"ppt/slides/_rels/slide1.xml.rels": `<Relationships/>`,
	})
	got, err := newExtractor(t).ExtractBytes(content, ".pptx")
	if err != nil {
		t.Fatal(err)
	}
	if got != "One Two Ten" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_pptxNotZip(t *testing.T) {
	if _, err := newExtractor(t).ExtractBytes([]byte("not a zip"), ".pptx"); err == nil {
		t.Error("expected error for non-zip content")
	}
}

func TestExtractBytes_openDocument(t *testing.T) {
	xml := `<office:document><office:body><text:h text:outline-level="1">Title</text:h>` +
		`<text:p>Body <text:span>Span text</text:span></text:p><text:p>Second</text:p>` +
		`<table:table-cell><text:p>Cell</text:p></table:table-cell></office:body></office:document>`
	content := zipOf(t, map[string]string{"content.xml": xml})
	for _, ext := range []string{".odt", ".odp", ".ods"} {
		got, err := newExtractor(t).ExtractBytes(content, ext)
		if err != nil {
			t.Fatalf("%s: %v", ext, err)
		}
		if got != "Title Span text Second Cell" {
			t.Errorf("%s: got %q", ext, got)
		}
	}
}

func TestExtractBytes_openDocumentMissingContent(t *testing.T) {
	content := zipOf(t, map[string]string{"meta.xml": "<x/>"})
	if _, err := newExtractor(t).ExtractBytes(content, ".odp"); err == nil {
		t.Error("expected error when content.xml is missing")
	}
}
