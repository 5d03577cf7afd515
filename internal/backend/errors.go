package backend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/vinayprograms/loopscope/internal/replay"
)

// Kind classifies a backend failure.
type Kind string

const (
	KindNetwork Kind = "network"
	KindTimeout Kind = "timeout"
	KindHTTP    Kind = "http"
	KindDecode  Kind = "decode"
)

// Error is returned by every Client call that fails.
type Error struct {
	Kind      Kind
	Op        string
	Status    int
	Code      string
	Message   string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTP:
		msg := e.Message
		if msg == "" {
			msg = http.StatusText(e.Status)
		}
		if e.Code != "" {
			return fmt.Sprintf("%s: %d %s: %s", e.Op, e.Status, e.Code, msg)
		}
		return fmt.Sprintf("%s: %d: %s", e.Op, e.Status, msg)
	case KindTimeout:
		return fmt.Sprintf("%s: request timed out", e.Op)
	default:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error {
	if e.Kind == KindHTTP && e.Status == http.StatusNotFound {
		return replay.ErrNotFound
	}
	return e.Err
}

// IsRetryable reports whether err is a backend failure worth retrying.
func IsRetryable(err error) bool {
	var be *Error
	return errors.As(err, &be) && be.Retryable
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// decodeError extracts code and message from {"error":{...}} or
// {"detail":{"error":{...}}}. A bare string detail becomes the message.
func decodeError(op string, status int, body []byte) *Error {
	e := &Error{Kind: KindHTTP, Op: op, Status: status, Retryable: status >= 500}

	var envelope struct {
		Error  *errorBody      `json:"error"`
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		e.Message = string(bytes.TrimSpace(body))
		return e
	}
	if envelope.Error == nil && len(envelope.Detail) > 0 {
		var inner struct {
			Error *errorBody `json:"error"`
		}
		var text string
		switch {
		case json.Unmarshal(envelope.Detail, &inner) == nil && inner.Error != nil:
			envelope.Error = inner.Error
		case json.Unmarshal(envelope.Detail, &text) == nil:
			e.Message = text
		}
	}
	if envelope.Error != nil {
		e.Code = envelope.Error.Code
		e.Message = envelope.Error.Message
	}
	return e
}
