package xvid

import (
	"errors"
	"strconv"
)

// Error is an internal Xvid error, returned by most functions that call
// into xvidcore. Code is the native return code, unchanged.
type Error struct {
	Code int
}

func (e *Error) Error() string {
	switch e.Code {
	case codeFail:
		return "xvid: general fault"
	case codeMemory:
		return "xvid: memory allocation error"
	case codeFormat:
		return "xvid: file format error"
	case codeVersion:
		return "xvid: version not supported"
	case codeEnd:
		return "xvid: end of stream reached"
	default:
		return "xvid: unknown error: code " + strconv.Itoa(e.Code)
	}
}

// Is reports whether target is an *Error with the same native code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func xvidErr(code int32) *Error {
	return &Error{Code: int(code)}
}

// Native error codes, usable with errors.Is.
var (
	ErrFail    = &Error{Code: codeFail}
	ErrMemory  = &Error{Code: codeMemory}
	ErrFormat  = &Error{Code: codeFormat}
	ErrVersion = &Error{Code: codeVersion}
	ErrEnd     = &Error{Code: codeEnd}
)

// Binding errors
var (
	ErrNotAvailable            = errors.New("xvid: libxvidcore not available")
	ErrNilPluginHandler        = errors.New("xvid: plugin handler is nil")
	ErrPluginHandlerRegistered = errors.New("xvid: plugin handler already registered")
	ErrPluginHandlerInUse      = errors.New("xvid: plugin callback slot owned by a foreign handler")
	ErrEncoderClosed           = errors.New("xvid: encoder is closed")
	ErrNoInput                 = errors.New("xvid: Input Reader is nil, must be passed in DecoderInit")
)
