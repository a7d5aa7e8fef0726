// Package apperrors 定义问答流程中可恢复的错误类型。
// 这些错误在会话控制器或角色切换边界处被转换为可见的消息，不会继续向外传播。
package apperrors

import "errors"

// Kind 错误类别
type Kind string

const (
	KindGeneration Kind = "generation_failure"
	KindExecution  Kind = "execution_failure"
	KindRoleSwitch Kind = "role_switch_failure"
)

var (
	// ErrGeneration 补全服务不可达或返回空结果
	ErrGeneration = errors.New("generation failure")
	// ErrExecution 数据库拒绝或无法执行生成的查询
	ErrExecution = errors.New("execution failure")
	// ErrRoleSwitch 数据库拒绝角色切换命令
	ErrRoleSwitch = errors.New("role switch failure")
)

// Error 带类别的错误，Message为上游原始错误文本
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is 使 errors.Is(err, ErrGeneration) 等判断按类别匹配
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func (k Kind) sentinel() error {
	switch k {
	case KindGeneration:
		return ErrGeneration
	case KindExecution:
		return ErrExecution
	case KindRoleSwitch:
		return ErrRoleSwitch
	}
	return nil
}

// New 创建指定类别的错误
func New(kind Kind, message string, cause error) *Error {
	if message == "" && cause != nil {
		message = cause.Error()
	}
	return &Error{Kind: kind, Message: message, Err: cause}
}

// Generation 包装补全服务错误
func Generation(cause error) *Error {
	return New(KindGeneration, "", cause)
}

// Execution 包装查询执行错误，message为数据库返回的错误文本
func Execution(message string, cause error) *Error {
	return New(KindExecution, message, cause)
}

// RoleSwitch 包装角色切换错误
func RoleSwitch(message string, cause error) *Error {
	return New(KindRoleSwitch, message, cause)
}

// KindOf 返回错误链中第一个 *Error 的类别
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// MessageOf 返回错误链中第一个 *Error 的消息，没有时返回 err.Error()
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
