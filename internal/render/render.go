// Package render converts payload bytes to frame images and back.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sort"
	"strings"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/multi"
	zxmulti "github.com/makiuchi-d/gozxing/multi/qrcode"
	zxqrcode "github.com/makiuchi-d/gozxing/qrcode"
	qrcode "github.com/skip2/go-qrcode"
)

// Renderer turns one payload into one frame image.
type Renderer interface {
	Render(data []byte) (image.Image, error)
}

// Scanner extracts every payload visible in a frame. A frame without a code
// yields an empty slice and no error.
type Scanner interface {
	Scan(img image.Image) ([][]byte, error)
}

// ParseRecoveryLevel maps a config name to a QR error correction level.
func ParseRecoveryLevel(name string) (qrcode.RecoveryLevel, error) {
	switch strings.ToLower(name) {
	case "low":
		return qrcode.Low, nil
	case "medium", "":
		return qrcode.Medium, nil
	case "high":
		return qrcode.High, nil
	case "highest":
		return qrcode.Highest, nil
	default:
		return qrcode.Medium, fmt.Errorf("unknown recovery level: %s", name)
	}
}

// QRRenderer draws a QR code centred on a white canvas of Width x Height.
type QRRenderer struct {
	Width    int
	Height   int
	Recovery qrcode.RecoveryLevel
}

// NewQRRenderer creates a renderer for frames of the given size.
func NewQRRenderer(width, height int, recovery qrcode.RecoveryLevel) *QRRenderer {
	return &QRRenderer{
		Width:    width,
		Height:   height,
		Recovery: recovery,
	}
}

// Render implements Renderer.
func (r *QRRenderer) Render(data []byte) (image.Image, error) {
	code, err := qrcode.New(string(data), r.Recovery)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}

	side := r.Width
	if r.Height < side {
		side = r.Height
	}
	qr := code.Image(side)

	canvas := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	qb := qr.Bounds()
	offset := image.Pt((r.Width-qb.Dx())/2, (r.Height-qb.Dy())/2)
	draw.Draw(canvas, qb.Sub(qb.Min).Add(offset), qr, qb.Min, draw.Src)

	return canvas, nil
}

// QRScanner decodes every QR code in a frame with ZXing. Codes are returned
// in reading order: top to bottom, and left to right within a row.
type QRScanner struct {
	multi  multi.MultipleBarcodeReader
	single gozxing.Reader
	hints  map[gozxing.DecodeHintType]interface{}
}

// NewQRScanner creates a scanner. tryHarder trades speed for accuracy on
// degraded frames.
func NewQRScanner(tryHarder bool) *QRScanner {
	hints := map[gozxing.DecodeHintType]interface{}{}
	if tryHarder {
		hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}
	return &QRScanner{
		multi:  zxmulti.NewQRCodeMultiReader(),
		single: zxqrcode.NewQRCodeReader(),
		hints:  hints,
	}
}

// Scan implements Scanner. The multi-code detector can miss a lone code the
// single-code detector finds, so an empty or failed multi pass falls back to it.
func (s *QRScanner) Scan(img image.Image) ([][]byte, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("failed to binarize frame: %w", err)
	}

	// A reader exception from the multi detector is retried below.
	results, err := s.multi.DecodeMultiple(bmp, s.hints)
	var readerErr gozxing.ReaderException
	if err != nil && !errors.As(err, &readerErr) {
		return nil, fmt.Errorf("failed to decode QR codes: %w", err)
	}

	if len(results) == 0 {
		result, err := s.single.Decode(bmp, s.hints)
		if err != nil {
			if isNotFound(err) {
				return [][]byte{}, nil
			}
			return nil, fmt.Errorf("failed to decode QR code: %w", err)
		}
		results = []*gozxing.Result{result}
	}

	sortReadingOrder(results)

	payloads := make([][]byte, 0, len(results))
	for _, r := range results {
		payloads = append(payloads, []byte(r.GetText()))
	}
	return payloads, nil
}

func isNotFound(err error) bool {
	var notFound gozxing.NotFoundException
	return errors.As(err, &notFound)
}

type box struct {
	minX, minY, maxX, maxY float64
}

func boundsOf(r *gozxing.Result) box {
	pts := r.GetResultPoints()
	if len(pts) == 0 {
		return box{}
	}
	b := box{minX: pts[0].GetX(), minY: pts[0].GetY(), maxX: pts[0].GetX(), maxY: pts[0].GetY()}
	for _, p := range pts[1:] {
		b.minX = min(b.minX, p.GetX())
		b.minY = min(b.minY, p.GetY())
		b.maxX = max(b.maxX, p.GetX())
		b.maxY = max(b.maxY, p.GetY())
	}
	return b
}

// sortReadingOrder orders results by row, then by column. Codes whose
// vertical extents overlap share a row.
func sortReadingOrder(results []*gozxing.Result) {
	boxes := make(map[*gozxing.Result]box, len(results))
	for _, r := range results {
		boxes[r] = boundsOf(r)
	}
	sort.SliceStable(results, func(i, j int) bool {
		a, b := boxes[results[i]], boxes[results[j]]
		if a.minY < b.maxY && b.minY < a.maxY {
			return a.minX < b.minX
		}
		return a.minY < b.minY
	})
}
