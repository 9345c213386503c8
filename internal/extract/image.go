package extract

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

// OCR shells out to the tesseract binary, the same engine the usual
// Python bindings wrap. Availability is probed once at startup; when
// the binary is missing, image extraction yields empty text instead of
// failing.
type OCR struct {
	binary string
	logger *zap.Logger
}

// NewOCR probes for the tesseract binary. A disabled or missing OCR
// returns a handle whose Available() is false; callers keep working.
func NewOCR(enabled bool, logger *zap.Logger) *OCR {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &OCR{logger: logger}
	if !enabled {
		logger.Info("ocr disabled by configuration")
		return o
	}

	bin, err := exec.LookPath("tesseract")
	if err != nil {
		logger.Warn("tesseract not found, image extraction will return empty text")
		return o
	}
	o.binary = bin
	logger.Info("ocr available", zap.String("binary", bin))
	return o
}

// Available reports whether OCR can run.
func (o *OCR) Available() bool {
	return o != nil && o.binary != ""
}

// Recognize runs tesseract over the given image and returns the
// recognized text.
func (o *OCR) Recognize(ctx context.Context, img image.Image) (string, error) {
	tmp, err := os.CreateTemp("", "docchat_ocr_*.png")
	if err != nil {
		return "", fmt.Errorf("creating temp image: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		return "", fmt.Errorf("encoding temp image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	out, err := exec.CommandContext(ctx, o.binary, tmpPath, "stdout").Output()
	if err != nil {
		return "", fmt.Errorf("running tesseract: %w", err)
	}
	return string(out), nil
}

// extractImage decodes the raster image, converts it to grayscale to
// help recognition, and runs OCR. Without OCR the result is empty text.
func (r *Router) extractImage(ctx context.Context, path string) (string, error) {
	if !r.ocr.Available() {
		return "", nil
	}

	img, err := decodeImage(path)
	if err != nil {
		return "", err
	}

	return r.ocr.Recognize(ctx, toGrayscale(img))
}

// decodeImage picks a decoder by extension.
func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return png.Decode(f)
	case ".jpg", ".jpeg":
		return jpeg.Decode(f)
	case ".gif":
		return gif.Decode(f)
	case ".webp":
		return webp.Decode(f)
	case ".tif", ".tiff":
		return tiff.Decode(f)
	default:
		img, _, err := image.Decode(f)
		return img, err
	}
}

// toGrayscale renders the image onto a grayscale canvas.
func toGrayscale(img image.Image) image.Image {
	if _, ok := img.(*image.Gray); ok {
		return img
	}
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	draw.Draw(gray, bounds, img, bounds.Min, draw.Src)
	return gray
}
