package types

import (
	"errors"
	"fmt"
)

// ErrIncomplete 模型不完备
var ErrIncomplete = errors.New("模型不完备")

// ConfigError 求解前的配置错误，出现时整个计算不会启动
type ConfigError struct {
	Field string // 出错的字段
	Msg   string // 错误描述
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "配置错误: " + e.Msg
	}
	return fmt.Sprintf("配置错误 [%s]: %s", e.Field, e.Msg)
}

// Unwrap 使 errors.Is(err, ErrIncomplete) 对所有配置错误成立
func (e *ConfigError) Unwrap() error { return ErrIncomplete }

// configErrorf 构造配置错误
func configErrorf(field, format string, args ...any) error {
	return &ConfigError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// IsConfigError 判断是否为配置错误
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
