package verify

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Finding 单条校验结论
type Finding struct {
	Code      string `yaml:"code"`
	Message   string `yaml:"message"`
	SessionID string `yaml:"session_id,omitempty"`
	EventID   int64  `yaml:"event_id,omitempty"`
}

// Findings 错误导致校验失败，警告只做提示
type Findings struct {
	Errors   []Finding `yaml:"errors,omitempty"`
	Warnings []Finding `yaml:"warnings,omitempty"`
}

func (f *Findings) errorf(code, sessionID string, eventID int64, format string, args ...any) {
	f.Errors = append(f.Errors, Finding{Code: code, Message: fmt.Sprintf(format, args...), SessionID: sessionID, EventID: eventID})
}

func (f *Findings) warnf(code, sessionID string, eventID int64, format string, args ...any) {
	f.Warnings = append(f.Warnings, Finding{Code: code, Message: fmt.Sprintf(format, args...), SessionID: sessionID, EventID: eventID})
}

// OK 没有错误
func (f *Findings) OK() bool {
	return len(f.Errors) == 0
}

// WriteYAML 输出 YAML 报告
func WriteYAML(w io.Writer, report any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return err
	}
	return enc.Close()
}

// WriteYAMLFile 写入 YAML 报告文件
func WriteYAMLFile(path string, report any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteYAML(f, report); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
