package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EventType 绘图事件类型（线上 type 字段）
type EventType string

const (
	EventPartialStroke EventType = "partial-stroke"
	EventStop          EventType = "stop"
	EventFill          EventType = "fill"
	EventClear         EventType = "clear"
)

var (
	ErrUnknownEventType = errors.New("unknown drawing event type")
	ErrMissingStrokeID  = errors.New("drawing event without strokeId")
	ErrMissingPosition  = errors.New("fill event without position")
)

// Point 画布坐标（已从屏幕坐标换算为像素坐标）
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DrawingEvent 线上传输单元，按 Type 区分变体
type DrawingEvent struct {
	Type      EventType `json:"type"`
	Sequence  int64     `json:"sequence,omitempty"`
	StrokeID  string    `json:"strokeId,omitempty"`
	Points    []Point   `json:"points,omitempty"`
	Color     string    `json:"color,omitempty"`
	LineWidth float64   `json:"lineWidth,omitempty"`
	Position  *Point    `json:"position,omitempty"`
}

// PartialStroke 构造增量笔画事件
func PartialStroke(seq int64, strokeID string, points []Point, color string, lineWidth float64) DrawingEvent {
	return DrawingEvent{
		Type:      EventPartialStroke,
		Sequence:  seq,
		StrokeID:  strokeID,
		Points:    points,
		Color:     color,
		LineWidth: lineWidth,
	}
}

// Stop 构造笔画结束事件
func Stop(strokeID string) DrawingEvent {
	return DrawingEvent{Type: EventStop, StrokeID: strokeID}
}

// Fill 构造填充事件；seq 为 0 表示未排序
func Fill(seq int64, pos Point, color string) DrawingEvent {
	return DrawingEvent{Type: EventFill, Sequence: seq, Position: &pos, Color: color}
}

// Clear 构造清屏事件
func Clear() DrawingEvent {
	return DrawingEvent{Type: EventClear}
}

// Ordered 报告事件是否参与按 sequence 的重排；其余事件作为屏障按到达顺序立即应用
func (e DrawingEvent) Ordered() bool {
	switch e.Type {
	case EventPartialStroke, EventFill:
		return e.Sequence > 0
	}
	return false
}

// Validate 检查结构是否完整；空 points 不算错误，由重放端按 no-op 处理
func (e DrawingEvent) Validate() error {
	switch e.Type {
	case EventPartialStroke, EventStop:
		if e.StrokeID == "" {
			return fmt.Errorf("%s: %w", e.Type, ErrMissingStrokeID)
		}
	case EventFill:
		if e.Position == nil {
			return ErrMissingPosition
		}
	case EventClear:
	default:
		return fmt.Errorf("%q: %w", e.Type, ErrUnknownEventType)
	}
	return nil
}

// DecodeBatch 解析一批绘图事件（JSON 数组）
func DecodeBatch(data []byte) ([]DrawingEvent, error) {
	var events []DrawingEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("decode drawing batch: %w", err)
	}
	return events, nil
}

// EncodeBatch 序列化一批绘图事件
func EncodeBatch(events []DrawingEvent) ([]byte, error) {
	return json.Marshal(events)
}
