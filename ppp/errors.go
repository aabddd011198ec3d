package ppp

import "errors"

// Error taxonomy for the option-negotiation core.
// Handlers never panic or throw: every receiver returns an explicit
// Verdict or error, and these sentinels let callers (and tests)
// distinguish the categories without string matching.
var (
	// ErrMalformed means a record's length was wrong, or its payload
	// didn't parse. It maps to VerdictReject for an inbound
	// Configure-Request, and to a fatal return for an Ack/Nak/Reject of
	// a request we sent.
	ErrMalformed = errors.New("ppp: malformed option record")

	// ErrPolicyIncompatible means the peer offered a configuration that
	// cannot satisfy local policy after every compromise has been tried.
	ErrPolicyIncompatible = errors.New("ppp: peer configuration incompatible with local policy")

	// ErrKernelUnsupported means an ioctl into the Net facade failed,
	// e.g. because MPPE was not compiled into the kernel.
	ErrKernelUnsupported = errors.New("ppp: kernel does not support requested option")

	// ErrMTUAdjustFailed means the interface MTU get/set ioctl failed
	// during MPPE bring-up.
	ErrMTUAdjustFailed = errors.New("ppp: failed to adjust interface MTU")

	// ErrAlreadyRegistered is returned by Registry.Register when a
	// handler is already registered for the given (Protocol, OptionCode)
	// pair.
	ErrAlreadyRegistered = errors.New("ppp: option handler already registered")

	// ErrUnknownOption is returned when dispatch cannot find a handler
	// for an inbound option record's code.
	ErrUnknownOption = errors.New("ppp: no handler registered for option")
)
