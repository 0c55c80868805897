package model

import (
	"errors"
	"fmt"
)

// ErrorKind 错误类别，同时决定进程退出码
type ErrorKind int

const (
	KindForbiddenFilter ErrorKind = iota + 1
	KindConfiguration
	KindAPI
	KindUnexpected
	KindUsage
)

func (k ErrorKind) String() string {
	switch k {
	case KindForbiddenFilter:
		return "forbidden-filter"
	case KindConfiguration:
		return "configuration"
	case KindAPI:
		return "api"
	case KindUnexpected:
		return "unexpected"
	case KindUsage:
		return "usage"
	default:
		return "unknown"
	}
}

// ExitCode 类别对应的退出码
func (k ErrorKind) ExitCode() int {
	switch k {
	case KindForbiddenFilter, KindUsage:
		return 2
	case KindConfiguration:
		return 3
	case KindAPI:
		return 4
	default:
		return 5
	}
}

// Error 带类别的错误
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	if e.Msg == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Msg, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// E 构造带类别的错误
func E(kind ErrorKind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf 取出错误类别，非 *Error 一律视为 KindUnexpected
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

// ExitCode nil 为 0，其余按类别映射
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return KindOf(err).ExitCode()
}
