package result

import (
	"errors"
	"fmt"
)

// ErrNotFound 结果不存在或格式错误
var ErrNotFound = errors.New("无法找到计算结果")

// NotFoundError 读取某一结果通道失败，不会以 0 代替
type NotFoundError struct {
	Name string // 地震动名，振型结果为空
	Path string // 文件路径
	Err  error  // 原因
}

func (e *NotFoundError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%v: %s: %v", ErrNotFound, e.Path, e.Err)
	}
	return fmt.Sprintf("%v(%s): %s: %v", ErrNotFound, e.Name, e.Path, e.Err)
}

// Is 使 errors.Is(err, ErrNotFound) 成立
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func (e *NotFoundError) Unwrap() error { return e.Err }

func notFound(name, path string, format string, args ...any) error {
	return &NotFoundError{Name: name, Path: path, Err: fmt.Errorf(format, args...)}
}
