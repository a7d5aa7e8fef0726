package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cohort2sql-go/internal/catalog"
	"cohort2sql-go/internal/persona"
	"cohort2sql-go/internal/session"
)

// ReferenceHandler 只读参考数据：示例问题、角色和数据目录
type ReferenceHandler struct {
	catalog        *catalog.Catalog
	defaultPersona persona.ID
}

// NewReferenceHandler 创建参考数据处理器
func NewReferenceHandler(cat *catalog.Catalog, defaultPersona persona.ID) *ReferenceHandler {
	if defaultPersona == "" {
		defaultPersona = persona.Default().ID
	}
	return &ReferenceHandler{
		catalog:        cat,
		defaultPersona: defaultPersona,
	}
}

// ExampleItem 示例问题
type ExampleItem struct {
	Index    int    `json:"index" example:"0"`
	Question string `json:"question" example:"What is the survival rate by conditioning intensity?"`
}

// ListExamples 示例问题列表
// @Summary 示例问题
// @Tags 参考数据
// @Produce json
// @Router /api/v1/examples [get]
func (h *ReferenceHandler) ListExamples(c *gin.Context) {
	questions := session.Examples()
	items := make([]ExampleItem, len(questions))
	for i, q := range questions {
		items[i] = ExampleItem{Index: i, Question: q}
	}
	c.JSON(http.StatusOK, gin.H{"examples": items})
}

// ListPersonas 可切换的访问角色
// @Summary 访问角色
// @Tags 参考数据
// @Produce json
// @Router /api/v1/personas [get]
func (h *ReferenceHandler) ListPersonas(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"personas": persona.All(),
		"default":  h.defaultPersona,
	})
}

// GetCatalog 数据目录
// @Summary 数据目录
// @Tags 参考数据
// @Produce json
// @Router /api/v1/catalog [get]
func (h *ReferenceHandler) GetCatalog(c *gin.Context) {
	if h.catalog == nil {
		respondError(c, http.StatusServiceUnavailable, NewErrorResponse("CATALOG_UNAVAILABLE", "数据目录未加载"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"tables": h.catalog.Describe()})
}
