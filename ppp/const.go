package ppp

// Protocol identifies a PPP control protocol that owns an option
// registry and negotiates options over it.
type Protocol int

const (
	// LCP is the Link Control Protocol.
	LCP Protocol = iota
	// CCP is the Compression Control Protocol.
	CCP
)

func (p Protocol) String() string {
	switch p {
	case LCP:
		return "lcp"
	case CCP:
		return "ccp"
	}
	return "unknown"
}

// OptionCode is the 8-bit Configuration Option identifier (CI) from the
// PPP option record header. It is unique within a single Protocol.
type OptionCode uint8

const (
	// CIAsyncmap is the LCP Async-Control-Character-Map option, RFC1661 §6.2.
	CIAsyncmap OptionCode = 2
	// CIMPPE is the CCP MPPE/MPPC option, RFC3078.
	CIMPPE OptionCode = 18
)

// Verdict is the outcome a handler reports after inspecting an inbound
// Configure-Request.
type Verdict int

const (
	// VerdictAck means the request is accepted unmodified.
	VerdictAck Verdict = iota
	// VerdictNak means the handler has mutated its instance to reflect a
	// counter-proposal and wants to emit it via SendConfNak.
	VerdictNak
	// VerdictReject means the option must not be offered again for the
	// life of the session.
	VerdictReject
)

func (v Verdict) String() string {
	switch v {
	case VerdictAck:
		return "ack"
	case VerdictNak:
		return "nak"
	case VerdictReject:
		return "rej"
	}
	return "unknown"
}

// recordLen is the wire length of every option record this core
// understands: a 1-byte code, a 1-byte length, and a 4-byte big-endian
// payload.
const recordLen = 6

// mppePad is the number of bytes MPPE adds to every frame, which must be
// subtracted from the interface MTU when encryption is enabled.
const mppePad = 4

// MPPE payload bits, RFC3078 §7 / the PPC wire format.
const (
	mppeH uint32 = 1 << 24 // stateless mode required
	mppeM uint32 = 1 << 7  // 56-bit (never advertised by this core)
	mppeS uint32 = 1 << 6  // 128-bit
	mppeL uint32 = 1 << 5  // 40-bit
	mppeD uint32 = 1 << 4  // obsolete
	mppeC uint32 = 1 << 0  // MPPC - not supported, always a hard fail
)
