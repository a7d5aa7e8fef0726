package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/pterm/pterm"

	"cohort2sql-go/internal/catalog"
	"cohort2sql-go/internal/dashboard"
	"cohort2sql-go/internal/persona"
	"cohort2sql-go/internal/session"
)

var (
	userStyle    = pterm.NewStyle(pterm.FgLightCyan, pterm.Bold)
	queryStyle   = pterm.NewStyle(pterm.FgGray)
	errorStyle   = pterm.NewStyle(pterm.FgRed)
	noticeStyle  = pterm.NewStyle(pterm.FgYellow)
	fullStyle    = pterm.NewStyle(pterm.FgBlack, pterm.BgGreen)
	maskedStyle  = pterm.NewStyle(pterm.FgBlack, pterm.BgYellow)
	headingStyle = pterm.NewStyle(pterm.FgLightCyan, pterm.Bold)
)

// Turn 输出一个对话轮次。助手轮次依次输出文本、查询、错误、表格和图表
func Turn(w io.Writer, t *session.Turn) {
	if t == nil {
		return
	}
	if t.Role == session.RoleUser {
		fmt.Fprintln(w, userStyle.Sprint("> ")+t.Content)
		return
	}

	fmt.Fprintln(w, t.Content)
	if t.Query != "" {
		fmt.Fprintln(w, queryStyle.Sprint(t.Query))
	}
	if t.Error != nil {
		// 生成失败时正文已经包含错误文本
		if !strings.HasSuffix(t.Content, t.Error.Message) {
			fmt.Fprintln(w, errorStyle.Sprint("Error: "+t.Error.Message))
		}
		return
	}
	if t.Result != nil {
		Table(w, t.Result)
	}
	if t.Chart != nil {
		_ = Chart(w, t.Result, t.Chart)
	}
}

// Notice 输出提示信息，例如角色切换失败
func Notice(w io.Writer, text string) {
	if text == "" {
		return
	}
	fmt.Fprintln(w, noticeStyle.Sprint(text))
}

// Badge 角色徽章
func Badge(p persona.Profile) string {
	style := fullStyle
	if p.Masked() {
		style = maskedStyle
	}
	return style.Sprint(" "+p.Badge+" ") + " " + p.DisplayName
}

// Access 输出当前访问角色及脱敏探测结果
func Access(w io.Writer, a session.Access) {
	fmt.Fprintln(w, Badge(a.Persona))
	fmt.Fprintf(w, "%s. %s\n", a.Persona.AccessNote, a.Persona.Purpose)
	if a.MaskingNote != "" {
		fmt.Fprintln(w, a.MaskingNote)
	}
	if !a.RoleConfirmed {
		Notice(w, "Database role not confirmed for this session.")
	}
}

// Personas 输出可切换的角色列表，当前角色标记为*
func Personas(w io.Writer, current persona.ID) {
	for _, p := range persona.All() {
		marker := " "
		if p.ID == current {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %-20s %s\n", marker, p.ID, Badge(p))
	}
}

// Examples 输出示例问题，编号从1开始
func Examples(w io.Writer, examples []string) {
	for i, q := range examples {
		fmt.Fprintf(w, "%d. %s\n", i+1, q)
	}
}

// History 输出全部对话轮次
func History(w io.Writer, snapshot session.Snapshot) {
	if len(snapshot.Turns) == 0 {
		fmt.Fprintln(w, "(no questions yet)")
		return
	}
	for i := range snapshot.Turns {
		Turn(w, &snapshot.Turns[i])
	}
}

// Dashboard 输出看板视图，单个面板失败不影响其他面板
func Dashboard(w io.Writer, view *dashboard.View) {
	if view == nil {
		fmt.Fprintln(w, "(dashboard not loaded)")
		return
	}
	for _, p := range view.Panels {
		title := p.Panel.Title
		if p.Cached {
			title += " (cached)"
		}
		fmt.Fprintln(w, headingStyle.Sprint(title))
		if !p.OK() {
			fmt.Fprintln(w, errorStyle.Sprint("Error: "+p.Error))
			fmt.Fprintln(w)
			continue
		}
		Table(w, p.Result)
		if p.Chart != nil {
			_ = Chart(w, p.Result, p.Chart)
		}
		fmt.Fprintln(w)
	}
}

// Catalog 输出数据目录
func Catalog(w io.Writer, cat *catalog.Catalog) {
	Tables(w, cat.Describe())
}

// Tables 输出表及其列说明和编码值
func Tables(w io.Writer, tables []catalog.Table) {
	for _, t := range tables {
		fmt.Fprintln(w, headingStyle.Sprint(t.QualifiedName()))
		if t.Description != "" {
			fmt.Fprintln(w, t.Description)
		}
		for _, c := range t.Columns {
			line := fmt.Sprintf("  %-28s %s", c.Name, c.Meaning)
			if len(c.Values) > 0 {
				codes := make([]string, len(c.Values))
				for i, v := range c.Values {
					codes[i] = v.Code + "=" + v.Label
				}
				line += " [" + strings.Join(codes, ", ") + "]"
			}
			fmt.Fprintln(w, line)
		}
		fmt.Fprintln(w)
	}
}
