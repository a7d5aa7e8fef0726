package dashboard

import (
	"context"
	"time"

	"go.uber.org/zap"

	"cohort2sql-go/internal/apperrors"
	"cohort2sql-go/internal/cache"
	"cohort2sql-go/internal/database"
	"cohort2sql-go/internal/shaping"
)

// Runner 执行查询，通常是会话自己的 database.Executor
type Runner interface {
	Run(ctx context.Context, sql string) (*database.ResultSet, error)
}

// PanelResult 单个面板的加载结果，失败时只记录错误文本
type PanelResult struct {
	Panel  Panel                   `json:"panel"`
	Result *database.ResultSet     `json:"result,omitempty"`
	Chart  *shaping.ChartSelection `json:"chart,omitempty"`
	Cached bool                    `json:"cached"`
	Error  string                  `json:"error,omitempty"`
}

// OK 面板是否加载成功
func (r PanelResult) OK() bool {
	return r.Error == "" && r.Result != nil
}

// View 一次完整刷新得到的看板视图
type View struct {
	Panels      []PanelResult `json:"panels"`
	RefreshedAt time.Time     `json:"refreshed_at"`
	Duration    time.Duration `json:"duration"`
}

// Panel 按名称取视图中的面板
func (v *View) Panel(name string) (PanelResult, bool) {
	if v == nil {
		return PanelResult{}, false
	}
	for _, p := range v.Panels {
		if p.Panel.Name == name {
			return p, true
		}
	}
	return PanelResult{}, false
}

// Service 加载看板面板
type Service struct {
	cache  *cache.QueryCache
	panels []Panel
	logger *zap.Logger
}

// NewService 创建看板服务，queryCache为nil时所有面板都直接查询
func NewService(queryCache *cache.QueryCache, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cache:  queryCache,
		panels: Panels(),
		logger: logger,
	}
}

// Panels 返回服务加载的面板
func (s *Service) Panels() []Panel {
	return append([]Panel(nil), s.panels...)
}

// Load 加载单个面板。可缓存的面板经过共享缓存，其余面板直接在runner上执行
func (s *Service) Load(ctx context.Context, runner Runner, p Panel) PanelResult {
	out := PanelResult{Panel: p}

	var (
		rs  *database.ResultSet
		err error
	)
	if p.Cacheable && s.cache != nil {
		rs, out.Cached, err = s.cache.GetOrLoad(ctx, p.Query, func(ctx context.Context) (*database.ResultSet, error) {
			return runner.Run(ctx, p.Query)
		})
	} else {
		rs, err = runner.Run(ctx, p.Query)
	}
	if err != nil {
		out.Error = apperrors.MessageOf(err)
		s.logger.Warn("dashboard panel failed",
			zap.String("panel", p.Name),
			zap.Error(err))
		return out
	}

	out.Result = rs
	if p.Chart {
		out.Chart = shaping.Select(rs)
	}
	return out
}

// LoadAll 按顺序加载全部面板，单个面板失败不影响其他面板
func (s *Service) LoadAll(ctx context.Context, runner Runner) *View {
	start := time.Now()
	view := &View{Panels: make([]PanelResult, 0, len(s.panels))}
	for _, p := range s.panels {
		view.Panels = append(view.Panels, s.Load(ctx, runner, p))
	}
	view.RefreshedAt = time.Now()
	view.Duration = time.Since(start)

	s.logger.Debug("dashboard refreshed",
		zap.Int("panels", len(view.Panels)),
		zap.Duration("duration", view.Duration))
	return view
}
