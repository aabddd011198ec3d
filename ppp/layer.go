package ppp

import (
	"fmt"

	"github.com/go-kit/kit/log"
)

// LayerDescriptor is the pair of booleans exposed to every handler for
// its owning control protocol:
//
//	passive:  when true, the layer will not initiate negotiation of this
//	          option unless the peer mentions it.
//	optional: when true, rejection of this option is non-fatal to the
//	          layer.
//
// A handler's Init may flip either flag; once Init has run for every
// registered handler the values are fixed for the session - outbound
// options are then assembled in handler-registration order for its
// entire lifetime.
type LayerDescriptor struct {
	Passive  bool
	Optional bool
}

// InitContext is passed to OptionHandler.Init: everything a handler
// needs to create its per-session Instance and reach shared, injected
// collaborators.
type InitContext struct {
	Proto  Protocol
	Layer  *LayerDescriptor
	Net    Net
	Bus    Bus
	Config ConfigStore
	Logger log.Logger

	// UnitFD and ChanFD are the session's PPP generic-unit and specific-
	// channel file descriptors (ppp->unit_fd / ppp->chan_fd in the
	// original source). Handlers that touch the kernel (MPPE, ACCM) use
	// these with Net.PPPIoctl.
	UnitFD int
	ChanFD int
	// IfName is the session's ppp interface name, e.g. "ppp3", used with
	// Net.GetMTU/SetMTU for MTU adjustment.
	IfName string
}

// OptionHandler is the immutable, process-wide descriptor for one option
// code. Registration happens once per control protocol at startup.
type OptionHandler interface {
	// Code is the option's CI, unique within the protocol it is
	// registered against.
	Code() OptionCode
	// Init creates the mutable, per-session Instance. Implementations
	// must set any layer-wide passive/optional flags on ctx.Layer before
	// returning, since the driver fixes them immediately afterwards.
	Init(ctx InitContext) Instance
}

// Instance is the mutable, per-session state an OptionHandler creates.
// Its lifetime is strictly contained by its session's lifetime.
type Instance interface {
	Code() OptionCode

	// Free releases any resources held by the instance. It is called
	// exactly once, at session teardown, regardless of how that
	// teardown was triggered.
	Free()

	// SendConfReq appends this option's contribution to an outbound
	// Configure-Request to buf and returns the result. Appending nothing
	// means "do not advertise this option this time".
	SendConfReq(buf []byte) []byte

	// SendConfNak appends this option's counter-proposal after the
	// driver has asked RecvConfReq for a compromise; it is only called
	// when the prior RecvConfReq returned VerdictNak.
	SendConfNak(buf []byte) []byte

	// RecvConfReq inspects an inbound Configure-Request option value (or
	// nil if the peer didn't mention the option at all) and returns a
	// Verdict.
	RecvConfReq(value []byte) Verdict

	// RecvConfAck/RecvConfNak/RecvConfRej process the peer's response to
	// an option we advertised. A non-nil error is fatal to the layer.
	RecvConfAck(value []byte) error
	RecvConfNak(value []byte) error
	RecvConfRej(value []byte) error

	// ApplyUp commits negotiated state into the data plane. Called at
	// most once per session. Returning a non-nil error aborts bring-up.
	ApplyUp() error

	// String renders the instance's negotiated state for debug logging,
	// equivalent to the handler's print hook in the original source.
	String() string
}

// Registry is a control protocol's process-wide, globally registered
// list of option handlers. All handlers for a protocol must be
// registered before any session of that protocol is created; Registry
// itself does no locking, since registration only happens during
// single-actor process start-up.
type Registry struct {
	proto    Protocol
	handlers map[OptionCode]OptionHandler
	order    []OptionCode
}

// NewRegistry returns an empty registry for proto.
func NewRegistry(proto Protocol) *Registry {
	return &Registry{proto: proto, handlers: make(map[OptionCode]OptionHandler)}
}

// Register adds h to the registry. It is an error to register two
// handlers for the same option code within one protocol.
func (r *Registry) Register(h OptionHandler) error {
	if _, exists := r.handlers[h.Code()]; exists {
		return fmt.Errorf("%w: %s option %d", ErrAlreadyRegistered, r.proto, h.Code())
	}
	r.handlers[h.Code()] = h
	r.order = append(r.order, h.Code())
	return nil
}

// MustRegister is like Register but panics on error; intended for
// process start-up wiring, where a duplicate registration is a
// programming error rather than a runtime condition.
func (r *Registry) MustRegister(h OptionHandler) {
	if err := r.Register(h); err != nil {
		panic(err)
	}
}

// Layer is the per-session control-layer FSM driver's contract to
// option handlers. It owns one Instance per registered handler,
// assembles outbound option records in registration order, dispatches
// inbound ones in wire order, and gates the once-only ApplyUp step.
//
// The full LCP/CCP negotiation state machine (Opened/Closed/Req-Sent/...)
// is out of scope; Layer only implements the slice of that machine
// needed to exercise the handler contract: building requests,
// dispatching replies, and applying settings once on layer-up.
type Layer struct {
	proto      Protocol
	descriptor LayerDescriptor
	net        Net
	bus        Bus
	logger     log.Logger

	order     []OptionCode
	instances map[OptionCode]Instance
	rejected  map[OptionCode]bool

	fsm       *fsm
	appliedUp bool
	applyErr  error
}

// SessionInfo carries the per-session kernel handles a Layer's handlers
// need to reach the data plane: the generic PPP unit and channel file
// descriptors and the resulting network interface name.
type SessionInfo struct {
	UnitFD int
	ChanFD int
	IfName string
}

// NewLayer creates a Layer for proto, instantiating one Instance per
// handler in reg via Init, in registration order.
func NewLayer(proto Protocol, reg *Registry, sess SessionInfo, net Net, bus Bus, config ConfigStore, logger log.Logger) *Layer {
	if logger == nil {
		logger = nopLogger()
	}
	l := &Layer{
		proto:     proto,
		net:       net,
		bus:       bus,
		logger:    logger,
		instances: make(map[OptionCode]Instance, len(reg.order)),
		rejected:  make(map[OptionCode]bool),
	}
	l.fsm = newLayerFSM(
		func(args []interface{}) { l.applyErr = l.doApplyUp() },
		func(args []interface{}) {},
	)

	for _, code := range reg.order {
		h := reg.handlers[code]
		inst := h.Init(InitContext{
			Proto:  proto,
			Layer:  &l.descriptor,
			Net:    net,
			Bus:    bus,
			Config: config,
			Logger: logger,
			UnitFD: sess.UnitFD,
			ChanFD: sess.ChanFD,
			IfName: sess.IfName,
		})
		l.order = append(l.order, code)
		l.instances[code] = inst
	}
	return l
}

// Descriptor returns the layer's current passive/optional flags, fixed
// once every handler's Init has run.
func (l *Layer) Descriptor() LayerDescriptor {
	return l.descriptor
}

// BuildConfReq assembles an outbound Configure-Request by asking every
// non-rejected instance, in registration order, to contribute.
func (l *Layer) BuildConfReq(buf []byte) []byte {
	for _, code := range l.order {
		if l.rejected[code] {
			continue
		}
		buf = l.instances[code].SendConfReq(buf)
	}
	return buf
}

// BuildConfNak assembles the counter-proposal packet after a round of
// RecvConfReq verdicts contained at least one VerdictNak: it asks only
// those instances (identified by codes) to emit their compromise.
func (l *Layer) BuildConfNak(buf []byte, codes []OptionCode) []byte {
	for _, code := range codes {
		inst, ok := l.instances[code]
		if !ok {
			continue
		}
		buf = inst.SendConfNak(buf)
	}
	return buf
}

// ReqResult is the per-record outcome of dispatching an inbound
// Configure-Request.
type ReqResult struct {
	Code    OptionCode
	Verdict Verdict
}

// HandleConfReq decodes payload into option records and dispatches each
// to its instance's RecvConfReq, in wire order. A record whose code has
// no registered instance yields VerdictReject. A packet whose framing is
// malformed (a length field running past the buffer) is returned as an
// error and no record is dispatched. A VerdictReject result marks the
// option so it is never advertised again for this session.
func (l *Layer) HandleConfReq(payload []byte) ([]ReqResult, error) {
	records, err := decodeRecords(payload)
	if err != nil {
		return nil, err
	}

	results := make([]ReqResult, 0, len(records))
	for _, rec := range records {
		inst, ok := l.instances[rec.code]
		if !ok {
			results = append(results, ReqResult{Code: rec.code, Verdict: VerdictReject})
			continue
		}
		v := inst.RecvConfReq(rec.value)
		if v == VerdictReject {
			l.rejected[rec.code] = true
		}
		results = append(results, ReqResult{Code: rec.code, Verdict: v})
	}

	// Any instance that was offered nothing at all (the peer didn't
	// mention it in this packet) still gets a chance to object, since
	// e.g. MPPE's policy=require must NAK a request that omits it
	// entirely.
	for _, code := range l.order {
		if l.rejected[code] {
			continue
		}
		mentioned := false
		for _, rec := range records {
			if rec.code == code {
				mentioned = true
				break
			}
		}
		if mentioned {
			continue
		}
		v := l.instances[code].RecvConfReq(nil)
		if v != VerdictAck {
			if v == VerdictReject {
				l.rejected[code] = true
			}
			results = append(results, ReqResult{Code: code, Verdict: v})
		}
	}

	return results, nil
}

// dispatchReply is the common shape of HandleConfAck/Nak/Rej: decode,
// look up the instance per record, and call the kind-specific receiver.
// A non-nil error from any receiver, or an unrecognised option code, is
// fatal to the layer.
func (l *Layer) dispatchReply(payload []byte, recv func(Instance, []byte) error) error {
	records, err := decodeRecords(payload)
	if err != nil {
		return err
	}
	for _, rec := range records {
		inst, ok := l.instances[rec.code]
		if !ok {
			return fmt.Errorf("%w: option %d", ErrUnknownOption, rec.code)
		}
		if err := recv(inst, rec.value); err != nil {
			return err
		}
	}
	return nil
}

// HandleConfAck processes a Configure-Ack for a request this layer sent.
func (l *Layer) HandleConfAck(payload []byte) error {
	return l.dispatchReply(payload, Instance.RecvConfAck)
}

// HandleConfNak processes a Configure-Nak for a request this layer sent.
func (l *Layer) HandleConfNak(payload []byte) error {
	return l.dispatchReply(payload, Instance.RecvConfNak)
}

// HandleConfRej processes a Configure-Reject for a request this layer
// sent; rejected options are marked so they are never re-advertised.
func (l *Layer) HandleConfRej(payload []byte) error {
	records, err := decodeRecords(payload)
	if err != nil {
		return err
	}
	for _, rec := range records {
		inst, ok := l.instances[rec.code]
		if !ok {
			return fmt.Errorf("%w: option %d", ErrUnknownOption, rec.code)
		}
		if err := inst.RecvConfRej(rec.value); err != nil {
			return err
		}
		l.rejected[rec.code] = true
	}
	return nil
}

// Up transitions the layer to Opened, invoking ApplyUp on every instance
// at most once per session. Calling Up again while opened returns an
// error, since the fsm's "opened" state has no "up" edge. A non-nil
// ApplyUp error is returned to the caller, aborting bring-up.
func (l *Layer) Up() error {
	if err := l.fsm.handleEvent("up"); err != nil {
		return err
	}
	return l.applyErr
}

// Down transitions the layer back to Closed. ApplyUp side effects (MTU
// decrement, key install) are not rolled back: they are scoped to the
// kernel entity being destroyed along with the session.
func (l *Layer) Down() error {
	return l.fsm.handleEvent("down")
}

func (l *Layer) doApplyUp() error {
	if l.appliedUp {
		return nil
	}
	l.appliedUp = true
	for _, code := range l.order {
		inst := l.instances[code]
		if err := inst.ApplyUp(); err != nil {
			logError(l.logger, "apply_up failed", "proto", l.proto, "option", code, "err", err)
			return err
		}
	}
	return nil
}

// Close tears the layer down, calling Free on every instance exactly
// once, regardless of what fatal verdict (if any) triggered the
// teardown.
func (l *Layer) Close() {
	for _, code := range l.order {
		l.instances[code].Free()
	}
}
