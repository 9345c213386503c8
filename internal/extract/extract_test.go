package extract_test

import (
	"archive/zip"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/fyrsmithlabs/docchat/internal/extract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRouter(t *testing.T) *extract.Router {
	t.Helper()
	return extract.NewRouter(extract.NewOCR(false, zap.NewNop()), zap.NewNop())
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// writeZip builds a minimal OOXML-style container with the given parts.
func writeZip(t *testing.T, name string, parts map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)

	w := zip.NewWriter(f)
	for partName, content := range parts {
		pw, err := w.Create(partName)
		require.NoError(t, err)
		_, err = pw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
	return path
}

func TestExtract_PlainText(t *testing.T) {
	r := newTestRouter(t)
	path := writeFile(t, "notes.txt", []byte("hello\nworld\n"))

	res := r.Extract(context.Background(), path, ".txt")
	require.NoError(t, res.Failure)
	assert.Equal(t, extract.ExtractorPlainText, res.Extractor)
	assert.Equal(t, "hello\nworld\n", res.Text)
}

func TestExtract_PlainTextLossyDecode(t *testing.T) {
	r := newTestRouter(t)
	// "caf" + invalid byte + "e" — the invalid byte is dropped, not an error.
	path := writeFile(t, "latin1.txt", []byte{'c', 'a', 'f', 0xe9, 'e'})

	res := r.Extract(context.Background(), path, ".txt")
	require.NoError(t, res.Failure)
	assert.Equal(t, "cafe", res.Text)
}

func TestExtract_UnknownExtensionFallsBackToText(t *testing.T) {
	r := newTestRouter(t)
	path := writeFile(t, "notes.log", []byte("plain content"))

	res := r.Extract(context.Background(), path, ".log")
	require.NoError(t, res.Failure)
	assert.Equal(t, extract.ExtractorPlainText, res.Extractor)
	assert.Equal(t, "plain content", res.Text)
}

func TestExtract_ExtensionNormalization(t *testing.T) {
	r := newTestRouter(t)
	path := writeFile(t, "notes.md", []byte("# heading"))

	// Uppercase and missing dot both resolve to the same extractor.
	for _, ext := range []string{".MD", "md", ".md"} {
		res := r.Extract(context.Background(), path, ext)
		require.NoError(t, res.Failure)
		assert.Equal(t, extract.ExtractorPlainText, res.Extractor)
		assert.Equal(t, "# heading", res.Text)
	}
}

func TestExtract_FailureYieldsEmptyResult(t *testing.T) {
	r := newTestRouter(t)

	// A docx that is not a zip archive raises inside the extractor;
	// the router recovers it as empty text with the failure attached.
	path := writeFile(t, "broken.docx", []byte("not a zip"))
	res := r.Extract(context.Background(), path, ".docx")

	assert.Error(t, res.Failure)
	assert.Empty(t, res.Text)
	assert.Equal(t, extract.ExtractorDocx, res.Extractor)
}

func TestExtract_Docx(t *testing.T) {
	r := newTestRouter(t)

	documentXML := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>
    <w:p><w:r><w:t> </w:t></w:r></w:p>
    <w:p><w:r><w:t>Second </w:t></w:r><w:r><w:t>paragraph.</w:t></w:r></w:p>
  </w:body>
</w:document>`
	path := writeZip(t, "doc.docx", map[string]string{
		"word/document.xml": documentXML,
		"[Content_Types].xml": `<?xml version="1.0"?><Types/>`,
	})

	res := r.Extract(context.Background(), path, ".docx")
	require.NoError(t, res.Failure)
	assert.Equal(t, "First paragraph.\nSecond paragraph.", res.Text)
}

func TestExtract_Pptx(t *testing.T) {
	r := newTestRouter(t)

	slide := func(text string) string {
		return `<?xml version="1.0"?>
<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"
       xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">
  <p:cSld><p:spTree><p:sp><p:txBody>
    <a:p><a:r><a:t>` + text + `</a:t></a:r></a:p>
  </p:txBody></p:sp></p:spTree></p:cSld>
</p:sld>`
	}
	path := writeZip(t, "deck.pptx", map[string]string{
		"ppt/slides/slide2.xml": slide("Slide two"),
		"ppt/slides/slide1.xml": slide("Slide one"),
	})

	res := r.Extract(context.Background(), path, ".pptx")
	require.NoError(t, res.Failure)
	// Slides in deck order regardless of archive order.
	assert.Equal(t, "Slide one\nSlide two", res.Text)
}

func TestExtract_XLSRoutesToBIFFReader(t *testing.T) {
	r := newTestRouter(t)

	// An OOXML workbook renamed .xls must NOT be parsed: the .xls route is
	// the BIFF reader, which rejects zip content, while a broken stream is
	// surfaced as a failure instead of an empty "processed" result.
	path := writeZip(t, "modern.xls", map[string]string{
		"xl/workbook.xml": "<workbook/>",
	})
	res := r.Extract(context.Background(), path, ".xls")
	assert.Error(t, res.Failure)
	assert.Equal(t, extract.ExtractorExcel, res.Extractor)
	assert.Empty(t, res.Text)

	path = writeFile(t, "legacy.xls", []byte("not a workbook"))
	res = r.Extract(context.Background(), path, ".xls")
	assert.Error(t, res.Failure)
	assert.Equal(t, extract.ExtractorExcel, res.Extractor)
}

func TestExtract_CSV(t *testing.T) {
	r := newTestRouter(t)
	path := writeFile(t, "table.csv", []byte("name,age\nalice,30\nbob,25\n"))

	res := r.Extract(context.Background(), path, ".csv")
	require.NoError(t, res.Failure)
	assert.Equal(t, extract.ExtractorCSV, res.Extractor)
	assert.Contains(t, res.Text, "name")
	assert.Contains(t, res.Text, "alice")

	lines := 1
	for _, c := range res.Text {
		if c == '\n' {
			lines++
		}
	}
	assert.Equal(t, 3, lines)
}

func TestExtract_HTML(t *testing.T) {
	r := newTestRouter(t)
	page := `<html><head><title>ignored</title><style>p{color:red}</style></head>
<body><script>alert("skip")</script>
<h1>Heading</h1>
<p>Some &amp; visible text.</p>
<!-- a comment -->
</body></html>`
	path := writeFile(t, "page.html", []byte(page))

	res := r.Extract(context.Background(), path, ".html")
	require.NoError(t, res.Failure)
	assert.Equal(t, extract.ExtractorHTML, res.Extractor)
	assert.Equal(t, "Heading\nSome & visible text.", res.Text)
}

func TestExtract_ImageWithoutOCR(t *testing.T) {
	r := newTestRouter(t)

	img := image.NewGray(image.Rect(0, 0, 8, 8))
	path := filepath.Join(t.TempDir(), "scan.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	res := r.Extract(context.Background(), path, ".png")
	require.NoError(t, res.Failure)
	assert.Equal(t, extract.ExtractorImageOCR, res.Extractor)
	assert.Empty(t, res.Text)
}

func TestOCR_UnavailableWhenDisabled(t *testing.T) {
	ocr := extract.NewOCR(false, zap.NewNop())
	assert.False(t, ocr.Available())
}
