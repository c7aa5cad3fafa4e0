// Package rerrors defines the two disjoint error classes of the router
// planner: DeferredError for statements that are valid SQL but not routable
// through the single-shard path, and FatalError for catalog states that make
// further planning meaningless.
package rerrors

import (
	"errors"
	"fmt"
)

const (
	RouterUnexpected   = "RPLNU"
	RouterUnsupported  = "RPLNF"
	RouterCrossShard   = "RPLNX"
	RouterNoDatashard  = "RPLND"
	RouterNotPlannable = "RPLNS"
)

var existingErrorCodeMap = map[string]string{
	RouterUnsupported:  "FeatureNotSupported",
	RouterCrossShard:   "CrossShardQueryUnsupported",
	RouterNoDatashard:  "NoDatashardMatched",
	RouterNotPlannable: "NotRouterPlannable",
}

func GetMessageByCode(errorCode string) string {
	rep, ok := existingErrorCodeMap[errorCode]
	if ok {
		return rep
	}
	return "Unexpected error"
}

var _ error = &DeferredError{}

// DeferredError is a non-fatal planning diagnosis: the router declines the
// statement and the caller may retry with the general multi-shard planner or
// surface the message to the user. It is created once at the rejection point
// and propagated up unmodified.
type DeferredError struct {
	Code    string
	Message string
	Detail  string
	Hint    string
}

func Deferred(code string, message string) *DeferredError {
	return &DeferredError{
		Code:    code,
		Message: message,
	}
}

func Deferredf(code string, format string, args ...any) *DeferredError {
	return &DeferredError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

func (e *DeferredError) WithDetail(detail string) *DeferredError {
	e.Detail = detail
	return e
}

func (e *DeferredError) WithHint(hint string) *DeferredError {
	e.Hint = hint
	return e
}

func (e *DeferredError) Error() string {
	s := fmt.Sprintf("Code: %s. Name: %s. Description: %s.",
		e.Code, GetMessageByCode(e.Code), e.Message)
	if e.Detail != "" {
		s += " Detail: " + e.Detail
	}
	if e.Hint != "" {
		s += " Hint: " + e.Hint
	}
	return s
}

var _ error = &FatalError{}

// FatalError reports a state that is structurally impossible given a
// consistent catalog. It aborts statement processing; the router's own
// callers never recover from it.
type FatalError struct {
	Message string
	Hint    string
}

func Fatalf(format string, args ...any) *FatalError {
	return &FatalError{Message: fmt.Sprintf(format, args...)}
}

func (e *FatalError) WithHint(hint string) *FatalError {
	e.Hint = hint
	return e
}

func (e *FatalError) Error() string {
	if e.Hint != "" {
		return e.Message + ". Hint: " + e.Hint
	}
	return e.Message
}

// AsDeferred reports whether err carries a DeferredError and returns it.
func AsDeferred(err error) (*DeferredError, bool) {
	var de *DeferredError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// AsFatal reports whether err carries a FatalError and returns it.
func AsFatal(err error) (*FatalError, bool) {
	var fe *FatalError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
