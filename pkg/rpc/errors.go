package rpc

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrUnavailable marks a transport failure caused by the server being
// unreachable. Dialer implementations that do not produce gRPC status
// errors should wrap this sentinel instead.
var ErrUnavailable = errors.New("server unavailable")

// IsUnavailable reports whether err means the server cannot be reached.
// Both the ErrUnavailable sentinel and gRPC Unavailable status errors are
// recognized, so the connector can classify errors from stub-backed
// dialers without importing the stubs.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnavailable) {
		return true
	}
	if s, ok := status.FromError(err); ok {
		return s.Code() == codes.Unavailable
	}
	return false
}
