// Package contextx 在 context 中传递请求级资源：数据库事务句柄与请求 ID。
package contextx

import "context"

type (
	txKey        struct{}
	requestIDKey struct{}
)

// WithTx 将事务句柄放入 context，仓储通过 GetTx 加入调用方的事务
func WithTx(ctx context.Context, tx any) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// GetTx 取出 context 中的事务句柄，不存在时返回 nil
func GetTx(ctx context.Context) any {
	if ctx == nil {
		return nil
	}
	return ctx.Value(txKey{})
}

// WithRequestID 记录请求 ID
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID 读取请求 ID
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
