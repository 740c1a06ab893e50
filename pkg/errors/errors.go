// Package errors 提供统一错误辅助，不依赖 internal
package errors

import (
	"errors"
	"fmt"
)

// 哨兵错误。API 层按 errors.Is 映射到 HTTP 状态码：
// ErrNotFound→404、ErrInvalidArg→400、ErrConflict→409。
var (
	// ErrNotFound 节点、匹配记录或待审项不存在
	ErrNotFound = errors.New("not found")
	// ErrInvalidArg 请求参数非法
	ErrInvalidArg = errors.New("invalid argument")
	// ErrConflict 状态冲突，如重复裁决同一待审项
	ErrConflict = errors.New("conflict")
)

// Wrap 包装错误并附加消息；err 为 nil 时返回 nil
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 带格式的 Wrap
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
