package paint

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"doodlesync/logging"
	"doodlesync/protocol"
)

type segment struct {
	a, b protocol.Point
}

// Raster 内存位图画布，提供 canvas 风格的路径操作
// 线段以圆头圆角方式绘制（无抗锯齿），像素是唯一的绘图状态
type Raster struct {
	img *image.RGBA

	style     color.RGBA
	lineWidth float64

	cur     *protocol.Point
	pending []segment // 自上次 Stroke 以来新增的线段
}

// NewRaster 创建白底画布
func NewRaster(w, h int) *Raster {
	r := &Raster{
		img:       image.NewRGBA(image.Rect(0, 0, w, h)),
		style:     color.RGBA{A: 255},
		lineWidth: 1,
	}
	r.Clear()
	return r
}

func (r *Raster) Image() *image.RGBA { return r.img }

func (r *Raster) Size() (int, int) {
	b := r.img.Bounds()
	return b.Dx(), b.Dy()
}

// Clear 整张画布刷成白色并丢弃当前路径
func (r *Raster) Clear() {
	draw.Draw(r.img, r.img.Bounds(), &image.Uniform{C: White}, image.Point{}, draw.Src)
	r.BeginPath()
}

func (r *Raster) BeginPath() {
	r.cur = nil
	r.pending = r.pending[:0]
}

func (r *Raster) MoveTo(p protocol.Point) {
	r.cur = &p
}

// LineTo 没有当前点时等同 MoveTo
func (r *Raster) LineTo(p protocol.Point) {
	if r.cur == nil {
		r.MoveTo(p)
		return
	}
	r.pending = append(r.pending, segment{a: *r.cur, b: p})
	r.cur = &p
}

// Stroke 用当前样式绘制尚未落笔的线段
func (r *Raster) Stroke() {
	radius := math.Max(r.lineWidth/2, 0.71)
	for _, s := range r.pending {
		r.stampSegment(s, radius)
	}
	r.pending = r.pending[:0]
}

// ClosePath 结束当前路径，不额外绘制
func (r *Raster) ClosePath() {
	r.cur = nil
	r.pending = r.pending[:0]
}

func (r *Raster) SetStrokeStyle(hex string) {
	c, err := ParseHexColor(hex)
	if err != nil {
		logging.Log.Debugw("stroke style ignored", "color", hex, "err", err)
		return
	}
	r.style = c
}

func (r *Raster) SetLineWidth(w float64) {
	if w <= 0 {
		return
	}
	r.lineWidth = w
}

// Fill 在 p 处做洪水填充
func (r *Raster) Fill(p protocol.Point, hex string) {
	c, err := ParseHexColor(hex)
	if err != nil {
		logging.Log.Warnw("fill dropped", "color", hex, "err", err)
		return
	}
	FloodFill(r.img, p.X, p.Y, c)
}

// stampSegment 绘制到线段距离不超过 radius 的所有像素（以像素中心计）
func (r *Raster) stampSegment(s segment, radius float64) {
	b := r.img.Bounds()
	x0 := int(math.Floor(math.Min(s.a.X, s.b.X) - radius))
	x1 := int(math.Ceil(math.Max(s.a.X, s.b.X) + radius))
	y0 := int(math.Floor(math.Min(s.a.Y, s.b.Y) - radius))
	y1 := int(math.Ceil(math.Max(s.a.Y, s.b.Y) + radius))
	x0, y0 = max(x0, b.Min.X), max(y0, b.Min.Y)
	x1, y1 = min(x1, b.Max.X-1), min(y1, b.Max.Y-1)

	r2 := radius * radius
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			if distSq(float64(x)+0.5, float64(y)+0.5, s) <= r2 {
				r.img.SetRGBA(x, y, r.style)
			}
		}
	}
}

func distSq(px, py float64, s segment) float64 {
	dx, dy := s.b.X-s.a.X, s.b.Y-s.a.Y
	l2 := dx*dx + dy*dy
	t := 0.0
	if l2 > 0 {
		t = ((px-s.a.X)*dx + (py-s.a.Y)*dy) / l2
		t = math.Max(0, math.Min(1, t))
	}
	cx, cy := s.a.X+t*dx-px, s.a.Y+t*dy-py
	return cx*cx + cy*cy
}
