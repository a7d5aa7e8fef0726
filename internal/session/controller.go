package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cohort2sql-go/internal/ai"
	"cohort2sql-go/internal/apperrors"
	"cohort2sql-go/internal/database"
	"cohort2sql-go/internal/shaping"
)

var (
	// ErrQuestionPending 已有问题在处理中
	ErrQuestionPending = errors.New("a question is already pending")
	// ErrEmptyQuestion 问题为空
	ErrEmptyQuestion = errors.New("question cannot be empty")
	// ErrNothingPending 没有待处理的问题
	ErrNothingPending = errors.New("no pending question")
)

// QueryGenerator 生成候选查询
type QueryGenerator interface {
	Generate(ctx context.Context, req ai.Request) (*ai.Generation, error)
}

// QueryRunner 执行候选查询
type QueryRunner interface {
	Run(ctx context.Context, sql string) (*database.ResultSet, error)
}

// Refresher 回答完成后重新计算视图
type Refresher interface {
	RefreshView(ctx context.Context)
}

// Controller 对话控制器，拥有轮次历史和唯一的待处理问题槽位。
// 状态流转：Idle → PendingSubmitted → Generating → Executing → Rendering → Idle
type Controller struct {
	mu      sync.Mutex
	state   State
	pending *PendingQuestion
	turns   []Turn

	generator QueryGenerator
	runner    QueryRunner
	refresher Refresher
	observer  Observer
	logger    *zap.Logger
}

// NewController 创建对话控制器，refresher和observer可以为nil
func NewController(generator QueryGenerator, runner QueryRunner, refresher Refresher, observer Observer, logger *zap.Logger) *Controller {
	if observer == nil {
		observer = nopObserver{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		state:     StateIdle,
		generator: generator,
		runner:    runner,
		refresher: refresher,
		observer:  observer,
		logger:    logger,
	}
}

// Submit 接受一个问题放入待处理槽位，只能在Idle状态下调用
func (c *Controller) Submit(text string, source Source) error {
	text = strings.TrimSpace(text)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle {
		return ErrQuestionPending
	}
	if text == "" {
		return ErrEmptyQuestion
	}
	if source == "" {
		source = SourceFreeText
	}

	c.pending = &PendingQuestion{Text: text, Source: source, AcceptedAt: time.Now()}
	c.state = StatePendingSubmitted
	c.observer.ObserveQuestion(source)
	return nil
}

// SubmitExample 提交第i个示例问题，与自由输入走同一路径
func (c *Controller) SubmitExample(i int) error {
	text, err := Example(i)
	if err != nil {
		return err
	}
	return c.Submit(text, SourceExample)
}

// Process 处理待处理的问题。
// 无论哪个阶段失败，都会追加且只追加一个助手轮次，最终回到Idle
func (c *Controller) Process(ctx context.Context) (*Turn, error) {
	c.mu.Lock()
	if c.state != StatePendingSubmitted || c.pending == nil {
		c.mu.Unlock()
		return nil, ErrNothingPending
	}
	question := c.pending.Text
	c.pending = nil
	c.state = StateGenerating
	history := historyMessages(c.turns)
	c.turns = append(c.turns, newTurn(RoleUser, question))
	c.mu.Unlock()

	start := time.Now()
	gen, err := c.generator.Generate(ctx, ai.Request{Question: question, History: history})
	c.observer.ObserveStage(StageGeneration, time.Since(start))
	if err != nil {
		msg := apperrors.MessageOf(err)
		turn := newTurn(RoleAssistant, "Error: "+msg)
		turn.Error = &TurnError{Kind: apperrors.KindGeneration, Message: msg}
		c.logger.Warn("query generation failed", zap.String("question", question), zap.Error(err))
		return c.finish(turn, OutcomeGenerationFailed), nil
	}

	c.setState(StateExecuting)
	start = time.Now()
	rs, err := c.runner.Run(ctx, gen.Query)
	c.observer.ObserveStage(StageExecution, time.Since(start))
	if err != nil {
		msg := apperrors.MessageOf(err)
		turn := newTurn(RoleAssistant, gen.Text)
		turn.Query = gen.Query
		turn.Error = &TurnError{Kind: apperrors.KindExecution, Message: msg}
		c.logger.Warn("query execution failed",
			zap.String("question", question),
			zap.String("query", gen.Query),
			zap.Error(err))
		return c.finish(turn, OutcomeExecutionFailed), nil
	}

	c.setState(StateRendering)
	turn := newTurn(RoleAssistant, gen.Text)
	turn.Query = gen.Query
	turn.Result = rs
	turn.Chart = shaping.Select(rs)

	c.mu.Lock()
	c.turns = append(c.turns, turn)
	c.mu.Unlock()

	if c.refresher != nil {
		c.refresher.RefreshView(ctx)
	}

	c.setState(StateIdle)
	c.observer.ObserveTurn(OutcomeAnswered)
	return &turn, nil
}

// Discard 丢弃尚未开始处理的问题并回到Idle，不追加轮次
func (c *Controller) Discard() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StatePendingSubmitted {
		c.pending = nil
		c.state = StateIdle
	}
}

// Ask 提交并立即处理一个问题
func (c *Controller) Ask(ctx context.Context, text string, source Source) (*Turn, error) {
	if err := c.Submit(text, source); err != nil {
		return nil, err
	}
	return c.Process(ctx)
}

// Snapshot 返回对话状态的副本
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		State: c.state,
		Turns: append([]Turn(nil), c.turns...),
	}
	if c.pending != nil {
		p := *c.pending
		snap.Pending = &p
	}
	return snap
}

// State 当前状态
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Idle 是否可以接受新问题
func (c *Controller) Idle() bool {
	return c.State() == StateIdle
}

func (c *Controller) finish(turn Turn, outcome string) *Turn {
	c.mu.Lock()
	c.turns = append(c.turns, turn)
	c.state = StateIdle
	c.mu.Unlock()

	c.observer.ObserveTurn(outcome)
	return &turn
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func newTurn(role Role, content string) Turn {
	return Turn{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// historyMessages 用户轮次携带问题原文，成功生成过查询的助手轮次携带查询
func historyMessages(turns []Turn) []ai.Message {
	var out []ai.Message
	for _, t := range turns {
		switch {
		case t.Role == RoleUser:
			out = append(out, ai.Message{Role: ai.RoleUser, Content: t.Content})
		case t.Query != "":
			out = append(out, ai.Message{Role: ai.RoleAssistant, Content: t.Query})
		}
	}
	return out
}
