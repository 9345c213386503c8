// Package extract converts uploaded files into plain text for indexing.
//
// A Router maps file extensions to format-specific extractors. Extraction
// never propagates an error to the caller: a failing extractor yields an
// empty-text Result carrying the failure reason, which the pipeline
// treats as "no indexable content".
package extract

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Extractor identifiers, stable across releases. They end up in the
// ingestion result and in document records.
const (
	ExtractorPDF       = "pdf"
	ExtractorDocx      = "docx"
	ExtractorPptx      = "pptx"
	ExtractorExcel     = "excel"
	ExtractorCSV       = "csv"
	ExtractorHTML      = "html"
	ExtractorPlainText = "plain_text"
	ExtractorImageOCR  = "image_ocr"
)

// Result is the outcome of one extraction. Failure is non-nil when the
// chosen extractor raised; Text is empty in that case. Callers decide
// how to treat the failure; they never receive it as a Go error.
type Result struct {
	// Text is the extracted plain text, empty when nothing was readable.
	Text string

	// Extractor identifies which extraction procedure ran.
	Extractor string

	// Failure is the recovered extractor error, nil on success.
	Failure error
}

// extractFunc reads a file and returns its text content.
type extractFunc func(ctx context.Context, path string) (string, error)

// Router dispatches files to format-specific extractors by extension.
// It is stateless apart from the OCR handle and safe for concurrent use.
type Router struct {
	ocr    *OCR
	logger *zap.Logger
	table  map[string]route
}

type route struct {
	name string
	fn   extractFunc
}

// NewRouter builds the extension dispatch table. The OCR handle may be
// nil; image extraction then returns empty text.
func NewRouter(ocr *OCR, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Router{ocr: ocr, logger: logger}

	image := route{ExtractorImageOCR, r.extractImage}
	table := map[string]route{
		".pdf":  {ExtractorPDF, extractPDF},
		".docx": {ExtractorDocx, extractDocx},
		".pptx": {ExtractorPptx, extractPptx},
		".xlsx": {ExtractorExcel, extractExcel},
		".xls":  {ExtractorExcel, extractXLS},
		".csv":  {ExtractorCSV, extractCSV},
		".html": {ExtractorHTML, extractHTML},
		".htm":  {ExtractorHTML, extractHTML},
		".txt":  {ExtractorPlainText, extractText},
		".md":   {ExtractorPlainText, extractText},
		".jpg":  image,
		".jpeg": image,
		".png":  image,
		".webp": image,
		".gif":  image,
		".tif":  image,
		".tiff": image,
	}
	r.table = table
	return r
}

// Extract selects and runs exactly one extractor for the file at path.
// The extension is lowercased before dispatch; unrecognized extensions
// fall back to a lossy plain-text read.
func (r *Router) Extract(ctx context.Context, path, ext string) Result {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	rt, ok := r.table[ext]
	if !ok {
		// Last resort: attempt as text.
		rt = route{ExtractorPlainText, extractText}
	}

	text, err := rt.fn(ctx, path)
	if err != nil {
		r.logger.Warn("extraction failed, treating as empty",
			zap.String("path", path),
			zap.String("extractor", rt.name),
			zap.Error(err),
		)
		return Result{Extractor: rt.name, Failure: err}
	}
	return Result{Text: text, Extractor: rt.name}
}
