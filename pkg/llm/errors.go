package llm

import "fmt"

// Kind 区分模型调用失败的原因。
type Kind string

const (
	KindCredential Kind = "credential"
	KindTimeout    Kind = "timeout"
	KindTransport  Kind = "transport"
	KindStatus     Kind = "status"
	KindEnvelope   Kind = "envelope"
)

// CallError 是模型调用的统一错误类型。
type CallError struct {
	Kind       Kind
	StatusCode int
	Msg        string
	Err        error
}

func (e *CallError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("llm %s error: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("llm %s error: %s", e.Kind, e.Msg)
}

func (e *CallError) Unwrap() error { return e.Err }
