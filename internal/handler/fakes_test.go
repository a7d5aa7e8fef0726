package handler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"cohort2sql-go/internal/ai"
	"cohort2sql-go/internal/apperrors"
	"cohort2sql-go/internal/catalog"
	"cohort2sql-go/internal/config"
	"cohort2sql-go/internal/database"
	"cohort2sql-go/internal/middleware"
	"cohort2sql-go/internal/session"
)

// blockingGenerator 生成固定查询。gate非nil时阻塞到gate关闭，用于构造进行中的请求
type blockingGenerator struct {
	started chan struct{}
	gate    chan struct{}
}

func (g *blockingGenerator) Generate(ctx context.Context, req ai.Request) (*ai.Generation, error) {
	if g.gate != nil {
		g.started <- struct{}{}
		select {
		case <-ctx.Done():
			return nil, apperrors.Generation(ctx.Err())
		case <-g.gate:
		}
	}
	if strings.Contains(req.Question, "unreachable") {
		return nil, apperrors.Generation(errors.New("connection refused"))
	}
	query := "SELECT disease, patients FROM cibmtr.counts"
	if strings.Contains(req.Question, "broken") {
		query = "SELECT * FROM missing_table"
	}
	return &ai.Generation{Query: query, Text: ai.AnswerText(req.Question), Model: "stub"}, nil
}

// fakeExecutor 会话连接的替身
type fakeExecutor struct {
	mu       sync.Mutex
	roleErr  error
	roles    []string
	released int
}

func (e *fakeExecutor) Run(_ context.Context, sql string) (*database.ResultSet, error) {
	if strings.Contains(sql, "missing_table") {
		return nil, apperrors.Execution(`relation "missing_table" does not exist`, errors.New("42P01"))
	}
	return &database.ResultSet{
		Columns: []database.Column{
			{Name: "disease", Type: database.ColumnText},
			{Name: "patients", Type: database.ColumnNumeric},
		},
		Rows: [][]any{{"AML", 10.0}, {"ALL", 8.0}, {"MDS", 6.0}},
	}, nil
}

func (e *fakeExecutor) SetRole(_ context.Context, role string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.roles = append(e.roles, role)
	if e.roleErr != nil {
		return apperrors.RoleSwitch(`role "`+role+`" does not exist`, e.roleErr)
	}
	return nil
}

type fakeBackend struct {
	mu        sync.Mutex
	executors []*fakeExecutor
	roleErr   error
}

func (b *fakeBackend) Open(context.Context) (session.Executor, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	exec := &fakeExecutor{roleErr: b.roleErr}
	b.executors = append(b.executors, exec)
	return exec, func() {
		exec.mu.Lock()
		exec.released++
		exec.mu.Unlock()
	}, nil
}

type testServer struct {
	router   *gin.Engine
	sessions *session.Manager
	backend  *fakeBackend
}

func newTestServer(t *testing.T, gen session.QueryGenerator, cfg *config.SessionConfig) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t)

	if gen == nil {
		gen = &blockingGenerator{}
	}
	if cfg == nil {
		cfg = config.DefaultSessionConfig()
	}
	backend := &fakeBackend{}
	manager, err := session.NewManager(backend, cfg, session.Options{Generator: gen, Logger: logger})
	require.NoError(t, err)

	cat, err := catalog.Default()
	require.NoError(t, err)

	mw := middleware.DefaultMiddlewareConfig(logger)
	mw.RateLimit.Burst = 1000

	router := gin.New()
	SetupRoutes(router, &RouterConfig{
		SessionHandler:   NewSessionHandler(manager, logger),
		ReferenceHandler: NewReferenceHandler(cat, manager.DefaultPersona().ID),
		Middleware:       mw,
	})
	return &testServer{router: router, sessions: manager, backend: backend}
}
