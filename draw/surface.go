package draw

import (
	"doodlesync/protocol"
)

// Surface 画布的路径操作；paint.Raster 是默认实现
type Surface interface {
	Clear()
	BeginPath()
	MoveTo(p protocol.Point)
	LineTo(p protocol.Point)
	Stroke()
	ClosePath()
	SetStrokeStyle(color string)
	SetLineWidth(w float64)
	Fill(p protocol.Point, color string)
}

// Rect 画布在屏幕上的显示区域
type Rect struct {
	Left, Top     float64
	Width, Height float64
}

// ToCanvas 屏幕坐标换算为画布像素坐标（按底层尺寸/显示尺寸缩放）
func ToCanvas(client protocol.Point, view Rect, bufW, bufH int) protocol.Point {
	sx, sy := 1.0, 1.0
	if view.Width > 0 {
		sx = float64(bufW) / view.Width
	}
	if view.Height > 0 {
		sy = float64(bufH) / view.Height
	}
	return protocol.Point{
		X: (client.X - view.Left) * sx,
		Y: (client.Y - view.Top) * sy,
	}
}
