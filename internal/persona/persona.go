// Package persona 定义固定的访问角色集合以及脱敏是否生效的启发式判断。
package persona

import (
	"errors"
	"fmt"
	"strings"
)

// AccessLevel 访问级别
type AccessLevel string

const (
	AccessFull   AccessLevel = "full"
	AccessMasked AccessLevel = "masked"
)

// ID 角色标识
type ID string

const (
	ClinicalResearcher ID = "CLINICAL_RESEARCHER"
	DataEngineer       ID = "DATA_ENGINEER"
)

// ErrUnknownPersona 角色不在固定集合内
var ErrUnknownPersona = errors.New("unknown persona")

// Profile 角色描述，供展示层渲染徽章
type Profile struct {
	ID          ID     `json:"id"`
	DisplayName string `json:"display_name"`
	// RoleName 数据库中的角色名
	RoleName   string      `json:"role_name"`
	Access     AccessLevel `json:"access"`
	Badge      string      `json:"badge"`
	AccessNote string      `json:"access_note"`
	Purpose    string      `json:"purpose"`
}

var profiles = []Profile{
	{
		ID:          ClinicalResearcher,
		DisplayName: "Clinical Researcher",
		RoleName:    "clinical_researcher",
		Access:      AccessFull,
		Badge:       "Full Data Access",
		AccessNote:  "Full PII visibility",
		Purpose:     "Healthcare research & analysis",
	},
	{
		ID:          DataEngineer,
		DisplayName: "Data Engineer",
		RoleName:    "data_engineer",
		Access:      AccessMasked,
		Badge:       "Masked Data Access",
		AccessNote:  "PII is masked",
		Purpose:     "Data pipeline maintenance",
	},
}

// All 返回全部角色，顺序固定
func All() []Profile {
	return append([]Profile(nil), profiles...)
}

// Lookup 按标识查找角色，大小写不敏感
func Lookup(id string) (Profile, error) {
	for _, p := range profiles {
		if strings.EqualFold(string(p.ID), strings.TrimSpace(id)) {
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("%w: %q", ErrUnknownPersona, id)
}

// Default 会话开始时的角色
func Default() Profile {
	return profiles[0]
}

// Masked 是否为脱敏访问
func (p Profile) Masked() bool {
	return p.Access == AccessMasked
}
