package retrieval

import "fmt"

// Kind 区分检索失败的原因。
type Kind string

const (
	KindTimeout   Kind = "timeout"
	KindTransport Kind = "transport"
	KindStatus    Kind = "status"
	KindShape     Kind = "shape"
	KindIndex     Kind = "index"
)

// Error 是检索客户端返回的统一错误类型。
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("retrieval %s error: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("retrieval %s error: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}
