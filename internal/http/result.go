package httpapi

// Result 统一响应结构
// - code: 2000 成功，-1 失败
// - type: 'success' | 'error' | 'warning'
// - message: string
// - result: any
type Result[T any] struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Result  T      `json:"result"`
}

const (
	ResultSuccess = 2000
	ResultError   = -1
)

func Ok[T any](result T) Result[T] {
	return Result[T]{Code: ResultSuccess, Type: "success", Message: "ok", Result: result}
}

func Fail(message string) Result[any] {
	return Result[any]{Code: ResultError, Type: "error", Message: message, Result: nil}
}

// Partial 部分事件失败：已完成的写入不回滚，result 中携带失败的 event_id
func Partial(message string, result any) Result[any] {
	return Result[any]{Code: ResultError, Type: "warning", Message: message, Result: result}
}
