package paint

import (
	"image"
	"image/color"
	"math"
)

// FloodFill 以 (x, y) 为种子做 4 连通填充，返回被重绘的像素数
// 种子坐标四舍五入；越界或种子颜色与目标色相同时不做任何事
func FloodFill(img *image.RGBA, x, y float64, c color.RGBA) int {
	b := img.Bounds()
	sx := int(math.Floor(x+0.5)) + b.Min.X
	sy := int(math.Floor(y+0.5)) + b.Min.Y
	if !image.Pt(sx, sy).In(b) {
		return 0
	}

	seed := img.RGBAAt(sx, sy)
	if seed == c {
		return 0
	}

	// 显式 FIFO 队列（BFS），出队时再比较颜色，同一像素可能入队多次
	queue := []image.Point{{X: sx, Y: sy}}
	head := 0
	filled := 0
	for head < len(queue) {
		p := queue[head]
		head++
		if img.RGBAAt(p.X, p.Y) != seed {
			continue
		}
		img.SetRGBA(p.X, p.Y, c)
		filled++

		if p.X+1 < b.Max.X {
			queue = append(queue, image.Point{X: p.X + 1, Y: p.Y})
		}
		if p.X-1 >= b.Min.X {
			queue = append(queue, image.Point{X: p.X - 1, Y: p.Y})
		}
		if p.Y+1 < b.Max.Y {
			queue = append(queue, image.Point{X: p.X, Y: p.Y + 1})
		}
		if p.Y-1 >= b.Min.Y {
			queue = append(queue, image.Point{X: p.X, Y: p.Y - 1})
		}
		// 已处理部分回收，避免大区域时队列无限增长
		if head > 4096 && head*2 > len(queue) {
			queue = append(queue[:0], queue[head:]...)
			head = 0
		}
	}
	return filled
}
