package rpc

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	qxerrors "quickex/core/errors"
)

// Transport-level codes. Contract failures use the positive QuickEx codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
)

type paramError struct {
	msg string
}

func (e *paramError) Error() string { return e.msg }

func invalidParams(format string, args ...interface{}) error {
	return &paramError{msg: fmt.Sprintf(format, args...)}
}

// statusForCode maps a QuickEx code band onto an HTTP status.
func statusForCode(code qxerrors.Code) int {
	switch code.Band() {
	case qxerrors.BandValidation:
		return http.StatusBadRequest
	case qxerrors.BandAuth:
		return http.StatusForbidden
	case qxerrors.BandState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// toRPCError converts a handler error into the wire error and HTTP status.
// The second return value is the QuickEx code recorded in metrics.
func toRPCError(err error) (*RPCError, int, uint32) {
	var pe *paramError
	if errors.As(err, &pe) {
		return &RPCError{Code: codeInvalidParams, Message: "invalid_params", Data: pe.msg}, http.StatusBadRequest, uint32(codeInvalidParams * -1)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &RPCError{Code: codeServerError, Message: "request_cancelled", Data: err.Error()}, http.StatusServiceUnavailable, uint32(qxerrors.CodeInternalError)
	}
	code := qxerrors.CodeOf(err)
	name := qxerrors.ErrInternal.Name()
	if qe, ok := qxerrors.As(err); ok {
		name = qe.Name()
	}
	return &RPCError{Code: int(code), Message: name, Data: err.Error()}, statusForCode(code), uint32(code)
}
