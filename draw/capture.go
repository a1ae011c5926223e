package draw

import (
	"github.com/google/uuid"

	"doodlesync/logging"
	"doodlesync/protocol"
)

// Capture 把本地指针输入变成笔画：立即本地渲染，交给 Pacer 发送
// 只有画手且选择了工具时才生效
type Capture struct {
	surface Surface
	pacer   *Pacer
	tools   *Toolbox

	enabled bool
	stroke  *Stroke
}

func NewCapture(surface Surface, pacer *Pacer, tools *Toolbox) *Capture {
	return &Capture{surface: surface, pacer: pacer, tools: tools}
}

func (c *Capture) Enable() { c.enabled = true }

// Disable 关闭输入并丢弃进行中的笔画
func (c *Capture) Disable() {
	c.enabled = false
	c.Reset()
}

func (c *Capture) Enabled() bool { return c.enabled }

// Drawing 是否有未结束的笔画
func (c *Capture) Drawing() bool { return c.stroke != nil }

func (c *Capture) Tools() *Toolbox { return c.tools }

func (c *Capture) PointerDown(p protocol.Point) {
	if !c.enabled || c.tools.Tool() == ToolNone {
		logging.Log.Debugw("pointer ignored", "enabled", c.enabled, "tool", c.tools.Tool())
		return
	}
	if c.tools.Tool() == ToolFill {
		color := c.tools.StrokeColor()
		c.surface.Fill(p, color)
		c.pacer.SendFill(p, color)
		return
	}
	if c.stroke != nil {
		c.PointerUp()
	}

	st := &Stroke{
		ID:        uuid.NewString(),
		Color:     c.tools.StrokeColor(),
		LineWidth: c.tools.LineWidth(),
		Points:    []protocol.Point{p},
	}
	c.stroke = st
	c.surface.SetStrokeStyle(st.Color)
	c.surface.SetLineWidth(st.LineWidth)
	c.surface.BeginPath()
	c.surface.MoveTo(p)
	c.pacer.Open(st)
}

func (c *Capture) PointerMove(p protocol.Point) {
	if c.stroke == nil {
		return
	}
	c.stroke.Points = append(c.stroke.Points, p)
	c.surface.LineTo(p)
	c.surface.Stroke()
}

func (c *Capture) PointerUp() {
	if c.stroke == nil {
		return
	}
	c.surface.ClosePath()
	c.pacer.Finish()
	c.stroke = nil
}

// Reset 丢弃进行中的笔画以及 Pacer 里未发送的点
func (c *Capture) Reset() {
	if c.stroke != nil {
		c.surface.ClosePath()
		c.stroke = nil
	}
	c.pacer.Reset()
}

// ClearCanvas 画手清空画布并立即通知所有人
func (c *Capture) ClearCanvas() {
	if !c.enabled {
		logging.Log.Debugw("clear ignored, not drawer")
		return
	}
	if c.stroke != nil {
		c.PointerUp()
	}
	c.surface.Clear()
	c.pacer.SendClear()
}
