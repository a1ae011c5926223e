package draw

import (
	"fmt"

	"doodlesync/paint"
)

// Tool 当前绘图工具
type Tool int

const (
	ToolNone Tool = iota
	ToolBrush
	ToolFill
	ToolEraser
)

func (t Tool) String() string {
	switch t {
	case ToolBrush:
		return "brush"
	case ToolFill:
		return "fill"
	case ToolEraser:
		return "eraser"
	}
	return "none"
}

// ParseTool 解析命令行 -tool 参数里的工具名
func ParseTool(s string) (Tool, error) {
	switch s {
	case "none", "":
		return ToolNone, nil
	case "brush":
		return ToolBrush, nil
	case "fill":
		return ToolFill, nil
	case "eraser":
		return ToolEraser, nil
	}
	return ToolNone, fmt.Errorf("unknown tool %q", s)
}

const (
	// EraserColor 橡皮擦使用背景色
	EraserColor      = "#ffffff"
	DefaultColor     = "#000000"
	DefaultLineWidth = 5.0
)

// Palette 可选画笔颜色
var Palette = []string{"#000000", "#ed7a70", "#FBBC04", "#fbee4e", "#b5fa61", "#78fadc", "#7cdcf1", "#bb7cf3"}

// Toolbox 工具与颜色选择；橡皮擦不会覆盖画笔颜色
type Toolbox struct {
	tool      Tool
	color     string
	lineWidth float64
}

func NewToolbox() *Toolbox {
	return &Toolbox{tool: ToolNone, color: DefaultColor, lineWidth: DefaultLineWidth}
}

func (tb *Toolbox) Tool() Tool { return tb.tool }

func (tb *Toolbox) Select(t Tool) { tb.tool = t }

// Color 画笔颜色（不受橡皮擦影响）
func (tb *Toolbox) Color() string { return tb.color }

// SetColor 选择画笔颜色；当前为橡皮擦时切回画笔
func (tb *Toolbox) SetColor(c string) error {
	if _, err := paint.ParseHexColor(c); err != nil {
		return err
	}
	tb.color = c
	if tb.tool == ToolEraser {
		tb.tool = ToolBrush
	}
	return nil
}

func (tb *Toolbox) LineWidth() float64 { return tb.lineWidth }

func (tb *Toolbox) SetLineWidth(w float64) {
	if w > 0 {
		tb.lineWidth = w
	}
}

// StrokeColor 实际落笔颜色
func (tb *Toolbox) StrokeColor() string {
	if tb.tool == ToolEraser {
		return EraserColor
	}
	return tb.color
}

// Reset 回到无工具状态，颜色与线宽保留
func (tb *Toolbox) Reset() { tb.tool = ToolNone }
