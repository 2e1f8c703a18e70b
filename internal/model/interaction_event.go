package model

import (
	"time"
)

// InteractionEvent 客户端上报的交互事件，批量写入后不再修改
type InteractionEvent struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID      string    `gorm:"size:36;not null;index:idx_session_attempt" json:"session_id"`
	BatchID        string    `gorm:"size:36;not null;index" json:"batch_id"`
	Seq            int       `gorm:"not null" json:"seq"` // 批内顺序
	ClientTS       time.Time `gorm:"column:client_ts;not null" json:"ts"`
	Event          string    `gorm:"size:20;not null" json:"event"`
	ZoomLevel      float64   `gorm:"not null" json:"zoom_level"`
	DZILevel       int       `gorm:"column:dzi_level;not null" json:"dzi_level"`
	ClickX0        *float64  `gorm:"column:click_x0" json:"click_x0,omitempty"`
	ClickY0        *float64  `gorm:"column:click_y0" json:"click_y0,omitempty"`
	CellI          *int      `json:"i,omitempty"`
	CellJ          *int      `json:"j,omitempty"`
	CenterX0       *float64  `gorm:"column:center_x0" json:"center_x0,omitempty"`
	CenterY0       *float64  `gorm:"column:center_y0" json:"center_y0,omitempty"`
	VBX0           *float64  `gorm:"column:vbx0" json:"vbx0,omitempty"`
	VBY0           *float64  `gorm:"column:vby0" json:"vby0,omitempty"`
	VTX0           *float64  `gorm:"column:vtx0" json:"vtx0,omitempty"`
	VTY0           *float64  `gorm:"column:vty0" json:"vty0,omitempty"`
	ContainerW     *int      `json:"container_w,omitempty"`
	ContainerH     *int      `json:"container_h,omitempty"`
	DPR            *float64  `gorm:"column:dpr" json:"dpr,omitempty"`
	AppVersion     string    `gorm:"size:32" json:"app_version"`
	Label          *string   `gorm:"size:32" json:"label,omitempty"`
	Notes          *string   `gorm:"type:text" json:"notes,omitempty"`
	ViewingAttempt int       `gorm:"not null;default:1;index:idx_session_attempt" json:"viewing_attempt"`
	ReceivedAt     time.Time `gorm:"not null" json:"received_at"`
}

func (InteractionEvent) TableName() string {
	return "interaction_events"
}
