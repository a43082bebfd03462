package dispatch

import (
	"errors"
	"fmt"

	"github.com/muurk/signctl/internal/errcodes"
	"github.com/muurk/signctl/internal/protocol"
)

// Resolution errors
var (
	ErrTimeout        = errors.New("request timed out")
	ErrConnectionLost = errors.New("connection lost")
	ErrSlotBusy       = errors.New("a request for this reply is already pending")
	ErrNak            = errors.New("controller sent NAK")
)

// RejectError is a controller's refusal of a command.
type RejectError struct {
	MI                   protocol.MICode
	ApplicationErrorCode byte
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.MI, errcodes.Format(e.ApplicationErrorCode, errcodes.Application))
}

// Description is the readable meaning of the application error code.
func (e *RejectError) Description() string {
	return errcodes.Application(e.ApplicationErrorCode)
}

// IsReject reports whether err is (or wraps) a RejectError.
func IsReject(err error) bool {
	var re *RejectError
	return errors.As(err, &re)
}
