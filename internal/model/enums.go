package model

// 分类标签（封闭集合）
const (
	LabelBenign        = "benign"
	LabelLowGrade      = "low-grade"
	LabelHighGrade     = "high-grade"
	LabelNonDiagnostic = "non-diagnostic"
)

var labels = map[string]struct{}{
	LabelBenign:        {},
	LabelLowGrade:      {},
	LabelHighGrade:     {},
	LabelNonDiagnostic: {},
}

// Labels 返回全部合法标签
func Labels() []string {
	return []string{LabelBenign, LabelLowGrade, LabelHighGrade, LabelNonDiagnostic}
}

func IsValidLabel(label string) bool {
	_, ok := labels[label]
	return ok
}

// 事件类型（封闭集合）
const (
	EventAppStart    = "app_start"
	EventSlideLoad   = "slide_load"
	EventCellClick   = "cell_click"
	EventZoomStep    = "zoom_step"
	EventArrowPan    = "arrow_pan"
	EventBackStep    = "back_step"
	EventReset       = "reset"
	EventLabelSelect = "label_select"
	EventSlideNext   = "slide_next"
)

// EventKind 描述每种事件允许携带的可选字段
type EventKind struct {
	Click    bool // 点击坐标必填
	Label    bool // 标签必填
	Terminal bool // 允许备注
}

var eventKinds = map[string]EventKind{
	EventAppStart:    {},
	EventSlideLoad:   {},
	EventCellClick:   {Click: true},
	EventZoomStep:    {},
	EventArrowPan:    {},
	EventBackStep:    {},
	EventReset:       {},
	EventLabelSelect: {Label: true, Terminal: true},
	EventSlideNext:   {Label: true, Terminal: true},
}

// LookupEventKind 查询事件类型，未知类型返回 false
func LookupEventKind(event string) (EventKind, bool) {
	k, ok := eventKinds[event]
	return k, ok
}

// EventTypes 返回全部事件类型，按会话中通常出现的顺序
func EventTypes() []string {
	return []string{
		EventAppStart, EventSlideLoad, EventCellClick, EventZoomStep, EventArrowPan,
		EventBackStep, EventReset, EventLabelSelect, EventSlideNext,
	}
}
