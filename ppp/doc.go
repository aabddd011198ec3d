/*
Package ppp implements the option-negotiation core shared by the PPP
control protocols used by a broadband access concentrator: LCP (Link
Control Protocol) and CCP (Compression Control Protocol).

The package does not implement the control protocols themselves -
Opened/Closed/Req-Sent/... state machines, packet framing, or tunnel
carriers (PPTP/L2TP/PPPoE) are out of scope and are represented only by
the interfaces this package consumes. What it does implement is the
contract between a control-protocol FSM and its pluggable set of option
handlers:

  - how each option handler contributes to outgoing Configure-Request
    packets and reacts to incoming Configure-Request/-Ack/-Nak/-Reject
    packets,
  - the per-option retry and compromise policy that allows negotiation
    to converge,
  - the post-negotiation "apply" step that installs negotiated
    parameters into the data plane via an injected Net facade.

Two option handlers are built in: mppe (Microsoft Point-to-Point
Encryption) and accm (Async Control Character Map). Callers register
these - or their own handlers - against a Registry before creating any
session, then drive a Layer per session through the FSM driver contract
in layer.go.

Usage

	ccpReg := ppp.NewRegistry(ppp.CCP)
	ccpReg.MustRegister(ppp.NewMPPEHandler())
	lcpReg := ppp.NewRegistry(ppp.LCP)
	lcpReg.MustRegister(ppp.NewACCMHandler())

	sess := ppp.SessionInfo{UnitFD: unitFD, ChanFD: chanFD, IfName: "ppp0"}
	layer := ppp.NewLayer(ppp.CCP, ccpReg, sess, net, bus, cfg, logger)
	defer layer.Close()

	buf := make([]byte, 0, 64)
	buf = layer.BuildConfReq(buf)
	// ... send buf to the peer, and feed replies back via
	// layer.HandleConfReq/HandleConfAck/HandleConfNak/HandleConfRej ...
*/
package ppp
