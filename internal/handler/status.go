package handler

import (
	"context"
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"automedic-booking/internal/apperr"
)

// ErrorDomain tags the ErrorInfo detail attached to every failed call.
const ErrorDomain = "booking.v1"

var kindCodes = map[apperr.Kind]codes.Code{
	apperr.KindValidation:       codes.InvalidArgument,
	apperr.KindConflict:         codes.AlreadyExists,
	apperr.KindNotAuthenticated: codes.Unauthenticated,
	apperr.KindNotAuthorized:    codes.PermissionDenied,
	apperr.KindNotFound:         codes.NotFound,
	apperr.KindInfrastructure:   codes.Unavailable,
}

// toStatus maps an application error to a gRPC status carrying the error
// code as ErrorInfo.Reason. Wrapped causes never reach the client.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	code, ok := kindCodes[apperr.KindOf(err)]
	if !ok {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return status.FromContextError(err).Err()
		}
		return status.Error(codes.Internal, "internal error")
	}
	st := status.New(code, apperr.MessageOf(err))
	if ds, derr := st.WithDetails(&errdetails.ErrorInfo{
		Reason: apperr.CodeOf(err),
		Domain: ErrorDomain,
	}); derr == nil {
		st = ds
	}
	return st.Err()
}

// Reason returns the ErrorInfo reason of a status error, "" if absent.
func Reason(err error) string {
	for _, d := range status.Convert(err).Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok {
			return info.Reason
		}
	}
	return ""
}
