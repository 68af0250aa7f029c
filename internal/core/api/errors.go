package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/waveplanner/internal/types"
)

// toStatus maps domain errors onto gRPC status codes.
// Validation errors map to INVALID_ARGUMENT.
// Unknown strategies map to NOT_FOUND.
// Lost optimistic version checks map to ABORTED so clients re-read and retry.
// Cancellation maps to CANCELLED, deadlines to DEADLINE_EXCEEDED.
// Anything else is INTERNAL.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var code codes.Code
	switch {
	case errors.Is(err, types.ErrInvalidCondition),
		errors.Is(err, types.ErrInvalidConfig),
		errors.Is(err, types.ErrDuplicateOrder),
		errors.Is(err, types.ErrEmptyName):
		code = codes.InvalidArgument
	case errors.Is(err, types.ErrStrategyNotFound):
		code = codes.NotFound
	case errors.Is(err, types.ErrVersionConflict):
		code = codes.Aborted
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, types.ErrCancelled), errors.Is(err, context.Canceled):
		code = codes.Canceled
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}

func invalidArgument(err error) error {
	return status.Error(codes.InvalidArgument, err.Error())
}
