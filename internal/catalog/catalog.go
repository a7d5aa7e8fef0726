// Package catalog 描述助手可以查询的数据表、列及编码值含义。
// 目录在启动时加载一次，之后只读共享。
package catalog

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// ValueCode 编码值及其含义
type ValueCode struct {
	Code  string `yaml:"code" json:"code"`
	Label string `yaml:"label" json:"label"`
}

// Column 列定义
type Column struct {
	Name    string      `yaml:"name" json:"name"`
	Meaning string      `yaml:"meaning" json:"meaning"`
	Values  []ValueCode `yaml:"values,omitempty" json:"values,omitempty"`
}

// Table 表定义
type Table struct {
	Schema      string   `yaml:"schema" json:"schema"`
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Columns     []Column `yaml:"columns" json:"columns"`
}

// QualifiedName 返回 schema.table 形式的完整表名
func (t Table) QualifiedName() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

type document struct {
	Tables []Table `yaml:"tables"`
}

// Catalog 不可变的表目录
type Catalog struct {
	tables []Table
	index  map[string]int
}

// Load 解析YAML格式的目录
func Load(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(doc.Tables) == 0 {
		return nil, fmt.Errorf("catalog has no tables")
	}

	c := &Catalog{
		tables: doc.Tables,
		index:  make(map[string]int, len(doc.Tables)*2),
	}
	for i, t := range doc.Tables {
		if t.Name == "" {
			return nil, fmt.Errorf("table %d has no name", i)
		}
		if len(t.Columns) == 0 {
			return nil, fmt.Errorf("table %s has no columns", t.QualifiedName())
		}
		key := strings.ToLower(t.QualifiedName())
		if _, dup := c.index[key]; dup {
			return nil, fmt.Errorf("duplicate table %s", t.QualifiedName())
		}
		c.index[key] = i

		seen := make(map[string]struct{}, len(t.Columns))
		for _, col := range t.Columns {
			name := strings.ToLower(col.Name)
			if name == "" {
				return nil, fmt.Errorf("table %s has a column without name", t.QualifiedName())
			}
			if _, dup := seen[name]; dup {
				return nil, fmt.Errorf("duplicate column %s in table %s", col.Name, t.QualifiedName())
			}
			seen[name] = struct{}{}
		}
	}
	// 未限定schema的表名也可查找，重名时保留第一个
	for i, t := range doc.Tables {
		key := strings.ToLower(t.Name)
		if _, ok := c.index[key]; !ok {
			c.index[key] = i
		}
	}
	return c, nil
}

// Default 加载内置目录
func Default() (*Catalog, error) {
	return Load(defaultCatalog)
}

// MustDefault 同Default，失败时panic
func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic(err)
	}
	return c
}

// Describe 按声明顺序返回所有表的副本
func (c *Catalog) Describe() []Table {
	out := make([]Table, len(c.tables))
	for i, t := range c.tables {
		out[i] = copyTable(t)
	}
	return out
}

// Table 按完整表名或表名查找，大小写不敏感
func (c *Catalog) Table(name string) (Table, bool) {
	i, ok := c.index[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Table{}, false
	}
	return copyTable(c.tables[i]), true
}

// TableNames 返回完整表名列表
func (c *Catalog) TableNames() []string {
	names := make([]string, len(c.tables))
	for i, t := range c.tables {
		names[i] = t.QualifiedName()
	}
	return names
}

// Serialize 渲染提示词中的schema段落
// 每张表一行，随后每个有编码的列一行
func (c *Catalog) Serialize() string {
	var b strings.Builder
	b.WriteString("Available tables:\n")
	for _, t := range c.tables {
		names := make([]string, len(t.Columns))
		for i, col := range t.Columns {
			names[i] = col.Name
		}
		fmt.Fprintf(&b, "- %s (%s)", t.QualifiedName(), strings.Join(names, ", "))
		if t.Description != "" {
			fmt.Fprintf(&b, ": %s", t.Description)
		}
		b.WriteByte('\n')
	}

	var codes []string
	seen := make(map[string]struct{})
	for _, t := range c.tables {
		for _, col := range t.Columns {
			if len(col.Values) == 0 {
				continue
			}
			line := formatValues(col)
			if _, ok := seen[line]; ok {
				continue
			}
			seen[line] = struct{}{}
			codes = append(codes, line)
		}
	}
	if len(codes) > 0 {
		b.WriteString("\nCoded values:\n")
		for _, line := range codes {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func formatValues(col Column) string {
	parts := make([]string, len(col.Values))
	for i, v := range col.Values {
		parts[i] = v.Code + "=" + v.Label
	}
	return col.Name + ": " + strings.Join(parts, ", ")
}

func copyTable(t Table) Table {
	cols := make([]Column, len(t.Columns))
	for i, col := range t.Columns {
		cols[i] = col
		if col.Values != nil {
			cols[i].Values = append([]ValueCode(nil), col.Values...)
		}
	}
	t.Columns = cols
	return t
}
