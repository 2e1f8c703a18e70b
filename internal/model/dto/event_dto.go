package dto

import "time"

// EventPayload 客户端上报的单个交互事件
//
// 各事件类型允许的可选字段由 model.EventKind 约束，
// 结构化校验在写库之前完成。
type EventPayload struct {
	TS             time.Time `json:"ts" validate:"required"`
	Event          string    `json:"event" validate:"required,oneof=app_start slide_load cell_click zoom_step arrow_pan back_step reset label_select slide_next"`
	ZoomLevel      *float64  `json:"zoom_level" validate:"required,gt=0"`
	DZILevel       *int      `json:"dzi_level" validate:"required,gte=0"`
	ClickX0        *float64  `json:"click_x0,omitempty" validate:"omitempty,gte=0"`
	ClickY0        *float64  `json:"click_y0,omitempty" validate:"omitempty,gte=0"`
	I              *int      `json:"i,omitempty" validate:"omitempty,gte=0"`
	J              *int      `json:"j,omitempty" validate:"omitempty,gte=0"`
	CenterX0       *float64  `json:"center_x0,omitempty"`
	CenterY0       *float64  `json:"center_y0,omitempty"`
	VBX0           *float64  `json:"vbx0,omitempty"`
	VBY0           *float64  `json:"vby0,omitempty"`
	VTX0           *float64  `json:"vtx0,omitempty"`
	VTY0           *float64  `json:"vty0,omitempty"`
	ContainerW     *int      `json:"container_w,omitempty" validate:"omitempty,gt=0"`
	ContainerH     *int      `json:"container_h,omitempty" validate:"omitempty,gt=0"`
	DPR            *float64  `json:"dpr,omitempty" validate:"omitempty,gt=0"`
	AppVersion     string    `json:"app_version,omitempty" validate:"max=32"`
	Label          *string   `json:"label,omitempty"`
	Notes          *string   `json:"notes,omitempty" validate:"omitempty,max=4000"`
	ViewingAttempt *int      `json:"viewing_attempt,omitempty" validate:"omitempty,gte=1"`
}

// IngestRequest 批量上报请求
type IngestRequest struct {
	Events []EventPayload `json:"events"`
}

// IngestResponse 批量上报响应
type IngestResponse struct {
	InsertedCount int    `json:"inserted_count"`
	BatchID       string `json:"batch_id"`
}
