package ppp

import (
	"fmt"

	"github.com/go-kit/kit/log"
	"github.com/josharian/native"
)

// accmHandler is the process-wide, immutable LCP option handler for
// CI_ASYNCMAP (RFC1661 §6.2), grounded on accel-pppd/ppp/lcp_opt_accm.c.
type accmHandler struct{}

// NewACCMHandler returns the ACCM option handler. Register it against
// an LCP Registry.
func NewACCMHandler() OptionHandler {
	return accmHandler{}
}

func (accmHandler) Code() OptionCode { return CIAsyncmap }

func (accmHandler) Init(ctx InitContext) Instance {
	defaults := loadACCMDefaults(ctx.Config)

	a := &accmInstance{
		net:    ctx.Net,
		logger: withPrefix(ctx.Logger, "lcp:accm"),
		unitFD: ctx.UnitFD,
		chanFD: ctx.ChanFD,
		allow:  defaults.allow,
	}

	if ctx.Bus != nil {
		ctx.Bus.Subscribe(EventConfigReload, func(Event) {
			a.reload(ctx.Config)
		})
	}

	return a
}

// accmInstance is the mutable, per-session ACCM negotiation state,
// grounded on struct accm_option_t. This option is entirely peer-driven:
// this layer never offers an ACCM map of its own (accm_send_conf_req
// always contributes nothing), it only agrees to honor one the peer
// proposes, when local policy allows it.
type accmInstance struct {
	net    Net
	logger log.Logger

	unitFD int
	chanFD int

	allow   bool
	accm    uint32
	enabled bool
}

func (a *accmInstance) Code() OptionCode { return CIAsyncmap }

func (a *accmInstance) Free() {}

// SendConfReq never advertises this option, grounded on
// accm_send_conf_req's unconditional "return 0".
func (a *accmInstance) SendConfReq(buf []byte) []byte { return buf }

// SendConfNak is never invoked: RecvConfReq never returns VerdictNak for
// this option (it only Acks or Rejects), so there is no compromise to
// emit.
func (a *accmInstance) SendConfNak(buf []byte) []byte { return buf }

// RecvConfReq is grounded on accm_recv_conf_req: local policy must
// explicitly allow escape-character remapping, and the record must carry
// the full 4-byte bitmap, or the option is rejected outright - there is
// no retry or compromise path for ACCM.
func (a *accmInstance) RecvConfReq(value []byte) Verdict {
	if value == nil {
		return VerdictAck
	}

	bits, present, err := decodePayload(value)
	if err != nil || !present {
		return VerdictReject
	}
	if !a.allow {
		return VerdictReject
	}

	a.accm = bits
	a.enabled = true
	return VerdictAck
}

// RecvConfRej is grounded on accm_recv_conf_rej: since this layer never
// advertises the option itself, a reject response is not expected on the
// wire, but if one arrives it disables whatever the peer had enabled.
func (a *accmInstance) RecvConfRej(value []byte) error {
	a.enabled = false
	return nil
}

// RecvConfNak is grounded on accm_recv_conf_nak.
func (a *accmInstance) RecvConfNak(value []byte) error {
	bits, present, err := decodePayload(value)
	if err != nil || !present {
		return fmt.Errorf("%w: accm nak", ErrMalformed)
	}
	if !a.allow {
		return fmt.Errorf("%w: accm not permitted by local policy", ErrPolicyIncompatible)
	}
	a.accm = bits
	a.enabled = true
	return nil
}

// RecvConfAck is grounded on accm_recv_conf_ack.
func (a *accmInstance) RecvConfAck(value []byte) error {
	bits, present, err := decodePayload(value)
	if err != nil || !present {
		return fmt.Errorf("%w: accm ack", ErrMalformed)
	}
	if !a.allow {
		return fmt.Errorf("%w: accm not permitted by local policy", ErrPolicyIncompatible)
	}
	a.accm = bits
	a.enabled = true
	return nil
}

// ApplyUp installs the negotiated map into the kernel on both the unit
// and channel file descriptors, grounded on accm_apply_up/accm_apply.
// EIO/ENOTTY are tolerated: plenty of PPP channel types (e.g. PPPoE)
// don't implement these ioctls at all, and that's not a negotiation
// failure.
func (a *accmInstance) ApplyUp() error {
	if !a.enabled {
		logInfo(a.logger, "disabled")
		return nil
	}

	logInfo(a.logger, "use RX/TX map", "accm", fmt.Sprintf("%08x", a.accm))
	if a.accm != 0xffffffff && a.accm != 0 {
		logWarn(a.logger, "strange ACCM map", "accm", fmt.Sprintf("%08x", a.accm))
	}

	if err := a.apply(a.unitFD); err != nil {
		logError(a.logger, "failed to set ACCM", "err", err)
		return fmt.Errorf("%w: %v", ErrKernelUnsupported, err)
	}
	if err := a.apply(a.chanFD); err != nil {
		logError(a.logger, "failed to set ACCM", "err", err)
		return fmt.Errorf("%w: %v", ErrKernelUnsupported, err)
	}
	return nil
}

// PPPIOCSRASYNCMAP/PPPIOCSASYNCMAP take a plain host-order u_int32_t -
// the kernel just copies the pointed-to word in, it doesn't parse a wire
// format - so arg is filled in native byte order, not big-endian (which
// would byte-swap any asymmetric map on the little-endian hosts this
// almost always runs on).
func (a *accmInstance) apply(fd int) error {
	arg := make([]byte, 4)
	native.Endian.PutUint32(arg, a.accm)

	err := a.net.PPPIoctl(fd, unixPPPIOCSRASYNCMAP, arg)
	if err == nil {
		err = a.net.PPPIoctl(fd, unixPPPIOCSASYNCMAP, arg)
	}
	if err == nil {
		return nil
	}
	if isIgnorableIoctlErr(err) {
		return nil
	}
	return err
}

func (a *accmInstance) String() string {
	if a.enabled {
		return fmt.Sprintf("<accm %08x>", a.accm)
	}
	return "<accm>"
}

// reload logs the refreshed process-wide default; per the immutable
// per-instance snapshot rule this session already started under, it
// does not change a.allow - only sessions created after the reload see
// the new default.
func (a *accmInstance) reload(store ConfigStore) {
	defaults := loadACCMDefaults(store)
	logDebug(a.logger, "config reloaded", "allow", defaults.allow)
}
