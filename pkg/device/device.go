package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Kind is a user-facing failure cause.
type Kind int

const (
	Unknown Kind = iota
	Locked
	OutdatedFirmware
	AppNotOpen
	UserRejected
	UnsafeSigningNotPermitted
	NotConnected
)

func (k Kind) String() string {
	switch k {
	case Locked:
		return "locked"
	case OutdatedFirmware:
		return "outdated-firmware"
	case AppNotOpen:
		return "app-not-open"
	case UserRejected:
		return "user-rejected"
	case UnsafeSigningNotPermitted:
		return "unsafe-signing-not-permitted"
	case NotConnected:
		return "not-connected"
	default:
		return "unknown"
	}
}

// Message is the user-facing explanation for k.
func (k Kind) Message() string {
	switch k {
	case Locked:
		return "Your device is locked. Unlock it and try again."
	case OutdatedFirmware:
		return "Your device firmware or app is outdated. Update it and try again."
	case AppNotOpen:
		return "Open the TON app on your device and try again."
	case UserRejected:
		return "The request was rejected on the device."
	case UnsafeSigningNotPermitted:
		return "Enable blind signing in the TON app settings and try again."
	case NotConnected:
		return "Your device is not connected."
	default:
		return "Something went wrong with your device. Please try again."
	}
}

// Error is a classified device failure.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "device: " + e.Kind.String()
	}
	return fmt.Sprintf("device: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrNotConnected is returned by transports with no device attached.
var ErrNotConnected = errors.New("device: not connected")

// ErrOutdated is returned by transports that detect an unsupported firmware
// or app version.
var ErrOutdated = errors.New("device: outdated firmware")

// StatusCoder is implemented by transport errors that carry the device's
// status word.
type StatusCoder interface {
	StatusCode() int
}

// Status words reported by the device.
const (
	statusLocked         = 0x5515
	statusDenied         = 0x6985
	statusRejected       = 0x5501
	statusAppNotOpen     = 0x6e00
	statusAppNotOpenAlt  = 0x6e01
	statusWrongApp       = 0x6d00
	statusAppClosed      = 0x6511
	statusUnsafeDisabled = 0xbd00
	statusBadVersion     = 0x6d02
)

// Classify maps err to a classified failure. Already classified errors are
// returned as is; nil yields nil.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var de *Error
	if errors.As(err, &de) {
		return de
	}

	return &Error{Kind: kindOf(err), Err: err}
}

func kindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrNotConnected):
		return NotConnected
	case errors.Is(err, ErrOutdated):
		return OutdatedFirmware
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		switch sc.StatusCode() {
		case statusLocked:
			return Locked
		case statusDenied, statusRejected:
			return UserRejected
		case statusAppNotOpen, statusAppNotOpenAlt, statusWrongApp, statusAppClosed:
			return AppNotOpen
		case statusUnsafeDisabled:
			return UnsafeSigningNotPermitted
		case statusBadVersion:
			return OutdatedFirmware
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "locked"):
		return Locked
	case strings.Contains(msg, "rejected"), strings.Contains(msg, "denied"):
		return UserRejected
	case strings.Contains(msg, "blind signing"), strings.Contains(msg, "unsafe"):
		return UnsafeSigningNotPermitted
	case strings.Contains(msg, "outdated"), strings.Contains(msg, "version"):
		return OutdatedFirmware
	case strings.Contains(msg, "not connected"), strings.Contains(msg, "disconnected"):
		return NotConnected
	}

	return Unknown
}

// Alerter shows a classified failure to the user.
type Alerter interface {
	Alert(ctx context.Context, e *Error)
}

// AlerterFunc adapts a function to Alerter.
type AlerterFunc func(ctx context.Context, e *Error)

// Alert calls f.
func (f AlerterFunc) Alert(ctx context.Context, e *Error) { f(ctx, e) }

// LogAlerter logs failures instead of showing them. Used when no UI is
// attached.
type LogAlerter struct {
	Logger *slog.Logger
}

// Alert logs e at warn level.
func (a LogAlerter) Alert(ctx context.Context, e *Error) {
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}

	logger.WarnContext(ctx, e.Kind.Message(), "kind", e.Kind.String(), "error", e.Err)
}

// Handle classifies err and surfaces it through alerter. It returns the
// classification so callers can record it.
func Handle(ctx context.Context, alerter Alerter, err error) *Error {
	de := Classify(err)
	if de != nil && alerter != nil {
		alerter.Alert(ctx, de)
	}

	return de
}
