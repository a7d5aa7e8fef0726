package session

import "time"

// 轮次结果
const (
	OutcomeAnswered         = "answered"
	OutcomeGenerationFailed = "generation_failure"
	OutcomeExecutionFailed  = "execution_failure"
)

// 处理阶段
const (
	StageGeneration = "generation"
	StageExecution  = "execution"
)

// Observer 接收会话事件，用于指标统计
type Observer interface {
	ObserveQuestion(source Source)
	ObserveTurn(outcome string)
	ObserveStage(stage string, d time.Duration)
	ObserveRoleSwitch(persona string, ok bool)
	ObserveViewRefresh(d time.Duration)
	SetActiveSessions(n int)
}

type nopObserver struct{}

func (nopObserver) ObserveQuestion(Source) {}
func (nopObserver) ObserveTurn(string) {}
func (nopObserver) ObserveStage(string, time.Duration) {}
func (nopObserver) ObserveRoleSwitch(string, bool) {}
func (nopObserver) ObserveViewRefresh(time.Duration) {}
func (nopObserver) SetActiveSessions(int) {}
