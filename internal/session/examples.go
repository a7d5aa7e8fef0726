package session

import (
	"errors"
	"fmt"
)

// ErrExampleIndex 示例问题下标越界
var ErrExampleIndex = errors.New("example index out of range")

var examples = []string{
	"What is the survival rate by conditioning intensity?",
	"Compare CD34+ yields between 1-day and 2-day collections",
	"What are the GVHD rates by HLA-E genotype?",
	"Show average patient age by disease category",
}

// Examples 返回示例问题
func Examples() []string {
	return append([]string(nil), examples...)
}

// Example 返回第i个示例问题，下标从0开始
func Example(i int) (string, error) {
	if i < 0 || i >= len(examples) {
		return "", fmt.Errorf("%w: %d", ErrExampleIndex, i)
	}
	return examples[i], nil
}
