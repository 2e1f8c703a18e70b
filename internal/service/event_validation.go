package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/qs3c/slide_review_server/internal/model"
	"github.com/qs3c/slide_review_server/internal/model/dto"
)

// EventValidator 事件结构校验，不访问存储
type EventValidator struct {
	validate              *validator.Validate
	maxBatchSize          int
	requireViewingAttempt bool
}

func NewEventValidator(maxBatchSize int, requireViewingAttempt bool) *EventValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	// 错误信息使用 JSON 字段名
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &EventValidator{
		validate:              v,
		maxBatchSize:          maxBatchSize,
		requireViewingAttempt: requireViewingAttempt,
	}
}

// ValidateBatch 校验整批事件，返回第一个错误
func (v *EventValidator) ValidateBatch(events []dto.EventPayload) error {
	if len(events) == 0 {
		return newValidationError(-1, "events", "batch is empty")
	}
	if v.maxBatchSize > 0 && len(events) > v.maxBatchSize {
		return newValidationError(-1, "events", fmt.Sprintf("batch has %d events, limit is %d", len(events), v.maxBatchSize))
	}

	for i := range events {
		if err := v.ValidateEvent(i, &events[i]); err != nil {
			return err
		}
	}
	return nil
}

// ValidateEvent 校验单个事件的结构与该事件类型允许的字段
func (v *EventValidator) ValidateEvent(index int, e *dto.EventPayload) error {
	if err := v.validate.Struct(e); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return newValidationError(index, fe.Field(), describeTag(fe))
		}
		return newValidationError(index, "", err.Error())
	}

	kind, ok := model.LookupEventKind(e.Event)
	if !ok {
		return newValidationError(index, "event", "unknown event type")
	}

	if kind.Click {
		if e.ClickX0 == nil {
			return newValidationError(index, "click_x0", "required for "+e.Event)
		}
		if e.ClickY0 == nil {
			return newValidationError(index, "click_y0", "required for "+e.Event)
		}
		if (e.I == nil) != (e.J == nil) {
			return newValidationError(index, "i", "i and j must be given together")
		}
	} else {
		switch {
		case e.ClickX0 != nil:
			return newValidationError(index, "click_x0", "not allowed for "+e.Event)
		case e.ClickY0 != nil:
			return newValidationError(index, "click_y0", "not allowed for "+e.Event)
		case e.I != nil:
			return newValidationError(index, "i", "not allowed for "+e.Event)
		case e.J != nil:
			return newValidationError(index, "j", "not allowed for "+e.Event)
		}
	}

	if kind.Label {
		if e.Label == nil || *e.Label == "" {
			return newValidationError(index, "label", "required for "+e.Event)
		}
		if !model.IsValidLabel(*e.Label) {
			return newValidationError(index, "label", fmt.Sprintf("must be one of %s", strings.Join(model.Labels(), ", ")))
		}
	} else if e.Label != nil {
		return newValidationError(index, "label", "not allowed for "+e.Event)
	}

	if !kind.Terminal && e.Notes != nil {
		return newValidationError(index, "notes", "not allowed for "+e.Event)
	}

	if err := validateViewport(index, e); err != nil {
		return err
	}

	if e.ViewingAttempt == nil && v.requireViewingAttempt {
		return newValidationError(index, "viewing_attempt", "required")
	}

	return nil
}

// validateViewport 视口四个角要么全部给出，要么全部缺省，且左上角不超过右下角
func validateViewport(index int, e *dto.EventPayload) error {
	corners := []*float64{e.VBX0, e.VBY0, e.VTX0, e.VTY0}
	present := 0
	for _, c := range corners {
		if c != nil {
			present++
		}
	}
	if present == 0 {
		return nil
	}
	if present != len(corners) {
		return newValidationError(index, "vbx0", "viewport corners must be given together")
	}
	if *e.VTX0 < *e.VBX0 {
		return newValidationError(index, "vtx0", "must not be less than vbx0")
	}
	if *e.VTY0 < *e.VBY0 {
		return newValidationError(index, "vty0", "must not be less than vby0")
	}
	return nil
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "oneof":
		return "must be one of " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
