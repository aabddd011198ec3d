package ppp

import (
	"encoding/binary"
	"fmt"

	"github.com/go-kit/kit/log"
)

// mppeHandler is the process-wide, immutable CCP option handler for
// CI_MPPE (RFC3078). It is grounded line-for-line on
// accel-pppd/ppp/ccp_mppe.c's mppe_opt_hnd and the functions wired into
// it.
type mppeHandler struct{}

// NewMPPEHandler returns the MPPE option handler. Register it against a
// CCP Registry.
func NewMPPEHandler() OptionHandler {
	return mppeHandler{}
}

func (mppeHandler) Code() OptionCode { return CIMPPE }

func (mppeHandler) Init(ctx InitContext) Instance {
	defaults := loadMPPEDefaults(ctx.Config)

	m := &mppeInstance{
		net:         ctx.Net,
		bus:         ctx.Bus,
		logger:      withPrefix(ctx.Logger, "mppe"),
		unitFD:      ctx.UnitFD,
		ifName:      ctx.IfName,
		policy:      defaults.policy,
		confPolicy:  defaults.policy,
		mppe40:      defaults.mppe40,
		mppe128:     defaults.mppe128,
		origMPPE40:  defaults.mppe40,
		origMPPE128: defaults.mppe128,
	}

	// mppe_init: policy==ALLOW collapses to the "allowed" bucket;
	// everything else (PREFER/REQUIRE/DENY) carries its own policy value
	// through to recv_conf_req.
	if defaults.policy == MPPEAllow {
		m.mppe = 1
	} else if defaults.policy == MPPEDeny {
		m.mppe = -1
	} else {
		m.mppe = 1
	}
	m.confMPPE = m.mppe

	if defaults.policy == MPPERequire || defaults.policy == MPPEPrefer {
		ctx.Layer.Passive = false
	}
	if defaults.policy == MPPERequire {
		ctx.Layer.Optional = false
	}

	if ctx.Bus != nil {
		ctx.Bus.Subscribe(EventMPPEKeys, m.onMPPEKeys)
		ctx.Bus.Subscribe(EventConfigReload, func(Event) {
			m.reload(ctx.Config)
		})
	}

	logDebug(m.logger, "init")
	m.logState()

	return m
}

// mppeInstance is the mutable, per-session MPPE negotiation state,
// grounded on struct mppe_option_t.
type mppeInstance struct {
	net    Net
	bus    Bus
	logger log.Logger

	unitFD int
	ifName string

	// mppe is the outbound stance: -1 means "do not offer the option at
	// all", 0 means "offer it with an explicit no-encryption value", 1
	// means "offer encryption".
	mppe    int
	enabled bool
	recvKey [16]byte
	sendKey [16]byte
	policy  MPPEPolicy
	mppe40  bool
	mppe128 bool
	retry   int

	// origMPPE40/origMPPE128 are the process-wide defaults captured at
	// Init, restored on the single compromise retry that RecvConfReq
	// allows under every policy except DENY (mppe_40/mppe_128 in the
	// original source).
	origMPPE40  bool
	origMPPE128 bool
	// confMPPE is the tri-state mppe stance Init originally computed from
	// the configured policy, frozen before any negotiation round can
	// mutate the live m.mppe field. The allow/prefer compromise check
	// must test this configured stance, not the runtime field, so a
	// later round that already cleared m.mppe to 0 still retries instead
	// of silently accepting an unencrypted request.
	confMPPE int
	// confPolicy is the process-wide policy this instance started with,
	// kept alongside the possibly-since-mutated policy field so
	// onMPPEKeys can consult the original configured stance the way
	// ev_mppe_keys consults its local "mppe" variable.
	confPolicy MPPEPolicy
}

func (m *mppeInstance) Code() OptionCode { return CIMPPE }

func (m *mppeInstance) Free() {}

func (m *mppeInstance) logState() {
	logDebug(m.logger, "state", "mppe", m.mppe, "enabled", m.enabled,
		"policy", int(m.policy), "mppe40", m.mppe40, "mppe128", m.mppe128, "retry", m.retry)
}

func (m *mppeInstance) bits() uint32 {
	bits := mppeH
	if m.mppe128 {
		bits |= mppeS
	} else if m.mppe40 {
		bits |= mppeL
	}
	return bits
}

// setupKey installs a single direction's session key via PPPIOCSCOMPRESS,
// grounded on setup_mppe_key. transmit selects the direction exactly as
// ppp_option_data.transmit does.
func (m *mppeInstance) setupKey(transmit bool, key [16]byte) error {
	logDebug(m.logger, "setup key", "transmit", transmit)
	m.logState()

	if !m.mppe128 && !m.mppe40 {
		logWarn(m.logger, "neither 40 nor 128 bit mode was selected")
		return fmt.Errorf("%w: no MPPE key length selected", ErrPolicyIncompatible)
	}

	if m.mppe128 {
		logInfo(m.logger, "using 128 bit stateless mode")
	} else {
		logInfo(m.logger, "using 40 bit stateless mode")
	}

	// ppp_option_data: a 6-byte option record header (re-stating the
	// negotiated bits) followed by up to 16 key bytes; 40-bit mode only
	// carries the low 8 bytes of the 16-byte MSCHAP key material.
	keyLen := 16
	if !m.mppe128 {
		keyLen = 8
	}
	buf := make([]byte, 6+keyLen)
	buf[0] = byte(CIMPPE)
	buf[1] = recordLen
	binary.BigEndian.PutUint32(buf[2:6], (func() uint32 {
		if m.mppe128 {
			return mppeS | mppeH
		}
		return mppeL | mppeH
	})())
	copy(buf[6:], key[:keyLen])

	if err := m.net.SetCompress(m.unitFD, buf, transmit); err != nil {
		logWarn(m.logger, "MPPE requested but not supported by kernel", "err", err)
		return fmt.Errorf("%w: %v", ErrKernelUnsupported, err)
	}
	return nil
}

// decreaseMTU subtracts mppePad from the session interface's MTU,
// grounded on decrease_mtu.
func (m *mppeInstance) decreaseMTU() error {
	mtu, err := m.net.GetMTU(m.ifName)
	if err != nil {
		logError(m.logger, "failed to get MTU", "err", err)
		return fmt.Errorf("%w: %v", ErrMTUAdjustFailed, err)
	}
	if err := m.net.SetMTU(m.ifName, mtu-mppePad); err != nil {
		logError(m.logger, "failed to set MTU", "err", err)
		return fmt.Errorf("%w: %v", ErrMTUAdjustFailed, err)
	}
	return nil
}

// sendConfReq is the common body of SendConfReq/SendConfNak, grounded on
// __mppe_send_conf_req. installKey selects whether this call also installs
// the receive-direction kernel key (true for ConfReq, false for ConfNak,
// matching the original's setup_key argument).
func (m *mppeInstance) sendConfReq(buf []byte, installKey bool) []byte {
	if m.mppe == -1 {
		return buf
	}

	var val uint32
	if m.mppe != 0 {
		val = m.bits()
	}

	if installKey && m.mppe != 0 {
		if err := m.setupKey(false, m.recvKey); err != nil {
			return buf
		}
	}

	return encodeRecord(buf, CIMPPE, val)
}

func (m *mppeInstance) SendConfReq(buf []byte) []byte {
	logDebug(m.logger, "sent ConfReq")
	m.logState()
	return m.sendConfReq(buf, true)
}

func (m *mppeInstance) SendConfNak(buf []byte) []byte {
	logDebug(m.logger, "sent ConfNak")
	m.logState()
	return m.sendConfReq(buf, false)
}

// RecvConfReq is grounded on mppe_recv_conf_req, the central
// compromise/retry policy of this option.
func (m *mppeInstance) RecvConfReq(value []byte) Verdict {
	logDebug(m.logger, "recv ConfReq")

	if value == nil {
		logDebug(m.logger, "no MPPE/MPPC option found")
		if m.policy == MPPERequire {
			return VerdictNak
		}
		return VerdictAck
	}

	bits, present, err := decodePayload(value)
	if err != nil || !present {
		return VerdictReject
	}

	m.logState()

	wantBits := mppeH
	if m.mppe40 {
		wantBits |= mppeL
	}
	if m.mppe128 {
		wantBits |= mppeS
	}
	changed := bits&(mppeH|mppeL|mppeM|mppeS|mppeC) != wantBits
	m.mppe40 = m.mppe40 && bits&mppeL != 0
	m.mppe128 = m.mppe128 && bits&mppeS != 0

	m.logState()
	if changed {
		logDebug(m.logger, "state changed")
	}

	switch m.policy {
	case MPPERequire:
		if (!m.mppe40 && !m.mppe128) || bits&mppeH == 0 {
			if m.retry == 0 {
				logDebug(m.logger, "retry to enable encryption")
				m.retry++
				m.mppe40 = m.origMPPE40
				m.mppe128 = m.origMPPE128
				return VerdictNak
			}
			logInfo(m.logger, "unencrypted connections are prohibited")
			return VerdictReject
		}
		if changed {
			logDebug(m.logger, "options changed, sent NAK")
			return VerdictNak
		}

	case MPPEAllow, MPPEPrefer:
		if bits&mppeH != 0 && (m.mppe40 || m.mppe128) {
			logDebug(m.logger, "encryption negotiated")
			m.mppe = 1
			if changed {
				logDebug(m.logger, "options changed, sent NAK")
				return VerdictNak
			}
		} else if bits != 0 || m.confMPPE != 0 {
			if m.retry == 0 {
				logDebug(m.logger, "invalid options, retry to enable")
				m.retry++
				m.mppe40 = m.origMPPE40
				m.mppe128 = m.origMPPE128
			} else {
				m.mppe = 0
				logDebug(m.logger, "allow unencrypted connection, sent NAK")
			}
			return VerdictNak
		} else {
			m.mppe = 0
			logDebug(m.logger, "allow unencrypted connection")
		}

	default:
		logDebug(m.logger, "reject connection")
		return VerdictReject
	}

	if bits&mppeC != 0 {
		logDebug(m.logger, "mppc requested, send NAK")
		return VerdictNak
	}

	if m.mppe != 0 {
		if err := m.setupKey(true, m.sendKey); err != nil {
			return VerdictReject
		}
		if !m.enabled {
			if err := m.decreaseMTU(); err != nil {
				return VerdictReject
			}
			m.enabled = true
		}
		logDebug(m.logger, "mppe enabled")
	}

	return VerdictAck
}

// RecvConfRej is grounded on mppe_recv_conf_rej.
func (m *mppeInstance) RecvConfRej(value []byte) error {
	logDebug(m.logger, "recv ConfRej")
	m.logState()

	bits, _, err := decodePayload(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if m.policy != MPPERequire {
		if (m.mppe40 && bits&mppeL != 0) || (m.mppe128 && bits&mppeS != 0) {
			logInfo(m.logger, "encryption rejected, proceed")
			m.mppe = -1
		}
		m.logState()
		if bits&mppeC != 0 {
			logInfo(m.logger, "mppc required, terminate")
			return ErrPolicyIncompatible
		}
		return nil
	}

	if (m.mppe40 && bits&mppeL != 0) || (m.mppe128 && bits&mppeS != 0) {
		logInfo(m.logger, "encryption required, but rejected, terminate")
		return ErrPolicyIncompatible
	}
	if bits&mppeC != 0 {
		logInfo(m.logger, "mppc required, terminate")
		return ErrPolicyIncompatible
	}
	return nil
}

// RecvConfAck is grounded on mppe_recv_conf_ack.
func (m *mppeInstance) RecvConfAck(value []byte) error {
	logDebug(m.logger, "recv ConfAck")
	m.logState()

	bits, _, err := decodePayload(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	m.mppe40 = m.mppe40 && bits&mppeL != 0
	m.mppe128 = m.mppe128 && bits&mppeS != 0
	hasMPPE := (m.mppe40 || m.mppe128) && bits&mppeH != 0

	m.logState()
	if hasMPPE {
		logDebug(m.logger, "mppe acknowledged")
	}

	if bits&mppeC != 0 {
		logInfo(m.logger, "mppc required, terminate")
		return ErrPolicyIncompatible
	}

	switch m.policy {
	case MPPERequire:
		if !hasMPPE {
			logInfo(m.logger, "encryption required, but rejected, terminate")
			return ErrPolicyIncompatible
		}
	case MPPEAllow, MPPEPrefer:
		logDebug(m.logger, "proceed with new state")
		if hasMPPE {
			m.mppe = 1
		} else {
			m.mppe = 0
		}
	default:
		if bits == 0 {
			logDebug(m.logger, "invalid options in ACK")
			return ErrMalformed
		}
	}
	return nil
}

// RecvConfNak is grounded on mppe_recv_conf_nak.
func (m *mppeInstance) RecvConfNak(value []byte) error {
	logDebug(m.logger, "recv ConfNak")
	m.logState()

	bits, _, err := decodePayload(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	m.mppe40 = m.mppe40 && bits&mppeL != 0
	m.mppe128 = m.mppe128 && bits&mppeS != 0
	hasMPPE := (m.mppe40 || m.mppe128) && bits&mppeH != 0

	m.logState()
	if hasMPPE {
		logDebug(m.logger, "mppe acknowledged")
	}

	if bits&mppeC != 0 {
		logInfo(m.logger, "mppc required, terminate")
		return ErrPolicyIncompatible
	}

	switch m.policy {
	case MPPERequire:
		if !hasMPPE {
			logInfo(m.logger, "encryption required, but rejected, terminate")
			return ErrPolicyIncompatible
		}
	case MPPEAllow, MPPEPrefer:
		logDebug(m.logger, "proceed with new state")
		if hasMPPE {
			m.mppe = 1
		} else {
			m.mppe = 0
		}
	default:
		if bits == 0 {
			logDebug(m.logger, "invalid options in NAK")
			return ErrMalformed
		}
	}
	return nil
}

// ApplyUp is a no-op for MPPE: unlike ACCM, the kernel state (key,
// compressor, MTU) is already installed as a side effect of
// RecvConfReq/SendConfReq succeeding, grounded on the original never
// registering an apply_up hook for this option.
func (m *mppeInstance) ApplyUp() error { return nil }

func (m *mppeInstance) String() string {
	bits := uint32(0)
	if m.mppe != 0 {
		bits = m.bits()
	}
	return fmt.Sprintf("<mppe %sH %sM %sS %sL %sD %sC>",
		sign(bits&mppeH != 0), sign(bits&mppeM != 0), sign(bits&mppeS != 0),
		sign(bits&mppeL != 0), sign(bits&mppeD != 0), sign(bits&mppeC != 0))
}

func sign(set bool) string {
	if set {
		return "+"
	}
	return "-"
}

// onMPPEKeys is grounded on ev_mppe_keys: session keys arrive
// out-of-band, typically once an MSCHAPv2/EAP authenticator completes.
func (m *mppeInstance) onMPPEKeys(ev Event) {
	payload, ok := ev.Payload.(MPPEKeysEvent)
	if !ok {
		return
	}
	m.recvKey = payload.RecvKey
	m.sendKey = payload.SendKey

	if payload.Policy == -1 {
		return
	}

	if payload.Type&0x04 == 0 {
		logWarn(m.logger, "128-bit session keys not allowed, disabling mppe")
		m.mppe = 0
		return
	}

	switch payload.Policy {
	case 2:
		m.policy = MPPERequire
		m.mppe = 1
	case 1:
		m.policy = MPPEAllow
		if m.confPolicy == MPPEAllow {
			m.mppe = 1
		} else {
			m.mppe = -1
		}
	}
}

// reload is grounded on load_config's re-invocation on EV_CONFIG_RELOAD:
// it re-reads and logs the process-wide defaults; per the per-instance
// snapshot rule this session already started under, it changes nothing
// on this instance - only sessions created after the reload see them.
func (m *mppeInstance) reload(store ConfigStore) {
	defaults := loadMPPEDefaults(store)
	logDebug(m.logger, "config reloaded", "policy", int(defaults.policy))
	_ = defaults
}
