package paint

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/jung-kurt/gofpdf"
)

// WritePNG 把画布编码为 PNG
func WritePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// WritePDF 把画布快照放进一页 A4（等比缩放到页面宽度），title 为空时不写标题
func WritePDF(w io.Writer, img image.Image, title string) error {
	var buf bytes.Buffer
	if err := WritePNG(&buf, img); err != nil {
		return err
	}

	p := gofpdf.New("P", "mm", "A4", "")
	p.AddPage()
	pageW, _ := p.GetPageSize()
	left, top, right, _ := p.GetMargins()

	y := top
	if title != "" {
		p.SetFont("Helvetica", "B", 14)
		p.CellFormat(0, 10, title, "", 1, "L", false, 0, "")
		y = p.GetY() + 2
	}

	const name = "canvas"
	opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	p.RegisterImageOptionsReader(name, opts, &buf)

	b := img.Bounds()
	width := pageW - left - right
	height := 0.0
	if b.Dx() > 0 {
		height = width * float64(b.Dy()) / float64(b.Dx())
	}
	p.ImageOptions(name, left, y, width, height, false, opts, 0, "")

	if err := p.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
