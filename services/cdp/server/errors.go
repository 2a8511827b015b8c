package server

import (
	"errors"

	"github.com/covenantlabs/cdpcore/internal/cdp"
)

// Code classifies a service error for callers that cannot inspect Go error
// types directly (the websocket feed, HTTP status mapping, metrics labels).
type Code string

const (
	CodeNotFound        Code = "not_found"
	CodePaused          Code = "paused"
	CodeInvalidArgument Code = "invalid_argument"
	CodeInsolvent       Code = "insolvent"
	CodeCapExceeded     Code = "cap_exceeded"
	CodeBelowMinimum    Code = "below_minimum_debt"
	CodeInternal        Code = "internal"
)

// ServiceError wraps a domain error with a stable classification code.
type ServiceError struct {
	Code Code
	Err  error
}

func (e *ServiceError) Error() string { return string(e.Code) + ": " + e.Err.Error() }
func (e *ServiceError) Unwrap() error { return e.Err }

// translateEngineError classifies an error returned by the internal engine
// into a ServiceError, mapping engine error types to response codes without
// any wire encoding.
func translateEngineError(err error) *ServiceError {
	if err == nil {
		return nil
	}
	var nonExistent *cdp.NonExistentPositionError
	var insolvent *cdp.PositionInsolventError
	var belowMin *cdp.BelowMinimumDebtError
	var capExceeded *cdp.SupplyCapExceededError
	var invalidLTV *cdp.InvalidLTVError

	switch {
	case errors.As(err, &nonExistent):
		return &ServiceError{Code: CodeNotFound, Err: err}
	case errors.As(err, &insolvent):
		return &ServiceError{Code: CodeInsolvent, Err: err}
	case errors.As(err, &belowMin):
		return &ServiceError{Code: CodeBelowMinimum, Err: err}
	case errors.As(err, &capExceeded):
		return &ServiceError{Code: CodeCapExceeded, Err: err}
	case errors.As(err, &invalidLTV):
		return &ServiceError{Code: CodeInvalidArgument, Err: err}
	case errors.Is(err, cdp.ErrFrozen):
		return &ServiceError{Code: CodePaused, Err: err}
	case errors.Is(err, cdp.ErrMultiAssetCapExceeded):
		return &ServiceError{Code: CodeCapExceeded, Err: err}
	case errors.Is(err, cdp.ErrUnauthorized):
		return &ServiceError{Code: CodeInvalidArgument, Err: err}
	case errors.Is(err, cdp.ErrPositionSolvent),
		errors.Is(err, cdp.ErrNoCollateralAtPremium),
		errors.Is(err, cdp.ErrInvalidCollateral),
		errors.Is(err, cdp.ErrInvalidWithdrawal),
		errors.Is(err, cdp.ErrExcessRepayment),
		errors.Is(err, cdp.ErrInvalidCredit):
		return &ServiceError{Code: CodeInvalidArgument, Err: err}
	default:
		return &ServiceError{Code: CodeInternal, Err: err}
	}
}
