package dispatch

import (
	"errors"

	"github.com/virtrpcd/virtrpcd/internal/hypervisor"
	"github.com/virtrpcd/virtrpcd/internal/rpc"
)

// libraryError converts a hypervisor.Connection failure into the wire
// error record a handler returns.
func libraryError(err error) *rpc.ErrorRecord {
	if err == nil {
		return nil
	}
	if errors.Is(err, hypervisor.ErrNotFound) {
		return rpc.NewError(rpc.CodeLibraryError, rpc.DomainDom, "object not found")
	}
	var hvErr *hypervisor.Error
	if errors.As(err, &hvErr) {
		rec := rpc.NewError(rpc.CodeLibraryError, rpc.ErrorDomain(hvErr.Domain), hvErr.Message)
		rec.Int1 = hvErr.Code
		return rec
	}
	return rpc.NewError(rpc.CodeLibraryError, rpc.DomainDom, err.Error())
}

func malformed(err error) *rpc.ErrorRecord {
	return rpc.NewError(rpc.CodeMalformedMessage, rpc.DomainRPC, err.Error())
}

func dispatchError(message string) *rpc.ErrorRecord {
	return rpc.NewError(rpc.CodePreconditionFailed, rpc.DomainRPC, message)
}

func resourceExhausted(message string) *rpc.ErrorRecord {
	return rpc.NewError(rpc.CodeResourceExhausted, rpc.DomainRPC, message)
}

// boundExceeded reports which named constant a client-requested size
// exceeded, matching the "maxids > REMOTE_DOMAIN_ID_LIST_MAX" style of
// message a caller would see for the equivalent bound.
func boundExceeded(field string, constName string) *rpc.ErrorRecord {
	return resourceExhausted(field + " > " + constName)
}
