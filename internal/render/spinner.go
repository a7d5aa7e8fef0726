package render

import (
	"fmt"
	"io"

	"github.com/pterm/pterm"
)

// Spinner 等待补全服务和数据库时的提示。
// 非交互输出时只打印一行文本，不启动动画
type Spinner struct {
	w        io.Writer
	animated bool
	printer  *pterm.SpinnerPrinter
}

// NewSpinner 创建等待提示，animated为false时用于管道或测试输出
func NewSpinner(w io.Writer, animated bool) *Spinner {
	return &Spinner{w: w, animated: animated}
}

// Start 显示等待文本
func (s *Spinner) Start(text string) {
	if !s.animated {
		fmt.Fprintln(s.w, text)
		return
	}
	printer, err := pterm.DefaultSpinner.
		WithWriter(s.w).
		WithRemoveWhenDone(true).
		Start(text)
	if err != nil {
		fmt.Fprintln(s.w, text)
		return
	}
	s.printer = printer
}

// Stop 结束等待提示
func (s *Spinner) Stop() {
	if s.printer == nil {
		return
	}
	_ = s.printer.Stop()
	s.printer = nil
}
