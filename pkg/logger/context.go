package logger

import (
	"context"

	"go.uber.org/zap"
)

// ContextFieldExtractor 从 context 提取字段的函数类型
type ContextFieldExtractor func(ctx context.Context) []zap.Field

// DefaultContextExtractor 默认的 context 提取器（不提取任何字段）
// 通过提供默认实现，避免在每次调用时进行 nil 检查
func DefaultContextExtractor(ctx context.Context) []zap.Field {
	return nil
}

type runIDKey struct{}

// ContextWithRunID 把一次扫描的 run_id 放入 context
func ContextWithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunIDFromContext 读取 ContextWithRunID 放入的 run_id
func RunIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(runIDKey{}).(string)
	return id, ok && id != ""
}

// RunIDExtractor 把 context 中的 run_id 作为日志字段输出
func RunIDExtractor(ctx context.Context) []zap.Field {
	if id, ok := RunIDFromContext(ctx); ok {
		return []zap.Field{zap.String("run_id", id)}
	}
	return nil
}
