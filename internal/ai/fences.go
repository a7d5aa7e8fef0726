package ai

import (
	"regexp"
	"strings"
)

const fenceMarker = "```"

// 代码块标记，可带语言标签
var fencePattern = regexp.MustCompile("(?i)```[ \\t]*(?:postgresql|postgres|pgsql|sql)?")

// StripCodeFences 去掉模型输出中的代码块标记和首尾空白
func StripCodeFences(text string) string {
	out := fencePattern.ReplaceAllString(text, "")
	// 删除后相邻的反引号可能重新拼出标记
	for strings.Contains(out, fenceMarker) {
		out = strings.ReplaceAll(out, fenceMarker, "")
	}
	return strings.TrimSpace(out)
}
