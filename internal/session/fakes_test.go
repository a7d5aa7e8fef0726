package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"cohort2sql-go/internal/ai"
	"cohort2sql-go/internal/apperrors"
	"cohort2sql-go/internal/dashboard"
	"cohort2sql-go/internal/database"
)

// stubGenerator 按顺序返回预设的查询
type stubGenerator struct {
	mu       sync.Mutex
	queries  []string
	err      error
	requests []ai.Request
	// started/release 非nil时在生成过程中阻塞，用于观察进行中的状态
	started chan struct{}
	release chan struct{}
}

func (g *stubGenerator) Generate(_ context.Context, req ai.Request) (*ai.Generation, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	idx := len(g.requests) - 1
	g.mu.Unlock()

	if g.started != nil {
		g.started <- struct{}{}
		<-g.release
	}
	if g.err != nil {
		return nil, apperrors.Generation(g.err)
	}
	query := "SELECT 1"
	if len(g.queries) > 0 {
		query = g.queries[idx%len(g.queries)]
	}
	return &ai.Generation{Query: query, Text: ai.AnswerText(req.Question), Model: "stub"}, nil
}

func (g *stubGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

func (g *stubGenerator) lastRequest() ai.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requests[len(g.requests)-1]
}

// stubExecutor 模拟会话连接：按当前角色返回患者样本，其余查询返回固定结果
type stubExecutor struct {
	mu       sync.Mutex
	role     string
	roles    []string
	roleErr  error
	failOn   map[string]error
	queries  []string
	result   *database.ResultSet
	released int
}

func newStubExecutor() *stubExecutor {
	return &stubExecutor{failOn: make(map[string]error), result: fiveRowResult()}
}

func (e *stubExecutor) Run(_ context.Context, sql string) (*database.ResultSet, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queries = append(e.queries, sql)
	if err, ok := e.failOn[sql]; ok {
		return nil, err
	}
	if sql == dashboard.PatientSampleQuery {
		return patientSample(e.role == "data_engineer"), nil
	}
	return e.result, nil
}

func (e *stubExecutor) SetRole(_ context.Context, role string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.roles = append(e.roles, role)
	if e.roleErr != nil {
		return apperrors.RoleSwitch(`[42704] role "`+role+`" does not exist`, e.roleErr)
	}
	e.role = role
	return nil
}

func (e *stubExecutor) Release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.released++
}

func (e *stubExecutor) count(sql string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, q := range e.queries {
		if q == sql {
			n++
		}
	}
	return n
}

func (e *stubExecutor) releasedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.released
}

func fiveRowResult() *database.ResultSet {
	return &database.ResultSet{
		Columns: []database.Column{
			{Name: "disease", Type: database.ColumnText},
			{Name: "patients", Type: database.ColumnNumeric},
		},
		Rows: [][]any{{"AML", 10.0}, {"ALL", 8.0}, {"MDS", 6.0}, {"CML", 3.0}, {"NHL", 2.0}},
	}
}

func patientSample(masked bool) *database.ResultSet {
	rs := &database.ResultSet{
		Columns: []database.Column{
			{Name: "person_id", Type: database.ColumnNumeric},
			{Name: "person_source_value", Type: database.ColumnText},
			{Name: "location_id", Type: database.ColumnNumeric},
		},
	}
	if masked {
		rs.Rows = [][]any{{1.0, "***REDACTED***", nil}, {2.0, "***REDACTED***", nil}}
	} else {
		rs.Rows = [][]any{{1.0, "P-0001", 17.0}, {2.0, "P-0002", nil}}
	}
	return rs
}

type recordingRefresher struct {
	mu    sync.Mutex
	count int
}

func (r *recordingRefresher) RefreshView(context.Context) {
	r.mu.Lock()
	r.count++
	r.mu.Unlock()
}

func (r *recordingRefresher) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

type recordingObserver struct {
	mu        sync.Mutex
	questions map[Source]int
	outcomes  map[string]int
	switches  map[bool]int
	refreshes int
	active    int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{
		questions: make(map[Source]int),
		outcomes:  make(map[string]int),
		switches:  make(map[bool]int),
	}
}

func (o *recordingObserver) ObserveQuestion(source Source) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.questions[source]++
}

func (o *recordingObserver) ObserveTurn(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes[outcome]++
}

func (o *recordingObserver) ObserveStage(string, time.Duration) {}

func (o *recordingObserver) ObserveRoleSwitch(_ string, ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.switches[ok]++
}

func (o *recordingObserver) ObserveViewRefresh(time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.refreshes++
}

func (o *recordingObserver) SetActiveSessions(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.active = n
}

var errUpstream = errors.New("upstream unavailable")
