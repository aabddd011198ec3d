package ppp

import (
	"errors"
	"testing"
)

// stubHandler/stubInstance are a minimal OptionHandler/Instance pair for
// exercising Registry/Layer plumbing without pulling in MPPE or ACCM's
// domain logic.
type stubHandler struct {
	code        OptionCode
	applyUpErr  error
	applyUpHits *int
	sendByte    byte
}

func (h stubHandler) Code() OptionCode { return h.code }

func (h stubHandler) Init(ctx InitContext) Instance {
	return &stubInstance{code: h.code, applyUpErr: h.applyUpErr, applyUpHits: h.applyUpHits, sendByte: h.sendByte}
}

type stubInstance struct {
	code        OptionCode
	applyUpErr  error
	applyUpHits *int
	sendByte    byte
	freed       bool
	lastRecv    []byte
	verdict     Verdict
}

func (s *stubInstance) Code() OptionCode { return s.code }
func (s *stubInstance) Free()            { s.freed = true }
func (s *stubInstance) SendConfReq(buf []byte) []byte {
	if s.sendByte == 0 {
		return buf
	}
	return append(buf, byte(s.code), 6, 0, 0, 0, s.sendByte)
}
func (s *stubInstance) SendConfNak(buf []byte) []byte { return s.SendConfReq(buf) }
func (s *stubInstance) RecvConfReq(value []byte) Verdict {
	s.lastRecv = value
	if s.verdict == 0 {
		return VerdictAck
	}
	return s.verdict
}
func (s *stubInstance) RecvConfAck(value []byte) error { return nil }
func (s *stubInstance) RecvConfNak(value []byte) error { return nil }
func (s *stubInstance) RecvConfRej(value []byte) error { return nil }
func (s *stubInstance) ApplyUp() error {
	if s.applyUpHits != nil {
		*s.applyUpHits++
	}
	return s.applyUpErr
}
func (s *stubInstance) String() string { return "<stub>" }

func TestRegistryRejectsDuplicateCode(t *testing.T) {
	r := NewRegistry(LCP)
	if err := r.Register(stubHandler{code: CIAsyncmap}); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}
	if err := r.Register(stubHandler{code: CIAsyncmap}); err == nil {
		t.Fatal("second Register() with the same code succeeded, want error")
	}
}

func TestRegistryMustRegisterPanicsOnDuplicate(t *testing.T) {
	r := NewRegistry(LCP)
	r.MustRegister(stubHandler{code: CIAsyncmap})

	defer func() {
		if recover() == nil {
			t.Fatal("MustRegister() with a duplicate code did not panic")
		}
	}()
	r.MustRegister(stubHandler{code: CIAsyncmap})
}

func TestLayerBuildConfReqOrdering(t *testing.T) {
	r := NewRegistry(CCP)
	r.MustRegister(stubHandler{code: CIMPPE, sendByte: 0xAA})
	r.MustRegister(stubHandler{code: CIAsyncmap, sendByte: 0xBB})

	l := NewLayer(CCP, r, SessionInfo{}, newFakeNet(), NewBus(), fakeConfig{}, nopLogger())

	buf := l.BuildConfReq(nil)
	want := []byte{byte(CIMPPE), 6, 0, 0, 0, 0xAA, byte(CIAsyncmap), 6, 0, 0, 0, 0xBB}
	if string(buf) != string(want) {
		t.Errorf("BuildConfReq() = % x, want % x (registration order)", buf, want)
	}
}

func TestLayerHandleConfReqTracksRejection(t *testing.T) {
	r := NewRegistry(CCP)
	r.MustRegister(stubHandler{code: CIMPPE, sendByte: 0xAA})

	l := NewLayer(CCP, r, SessionInfo{}, newFakeNet(), NewBus(), fakeConfig{}, nopLogger())
	l.instances[CIMPPE].(*stubInstance).verdict = VerdictReject

	payload := encodeRecord(nil, CIMPPE, 0)
	results, err := l.HandleConfReq(payload)
	if err != nil {
		t.Fatalf("HandleConfReq() error = %v", err)
	}
	if len(results) != 1 || results[0].Verdict != VerdictReject {
		t.Fatalf("results = %+v, want a single VerdictReject", results)
	}
	if !l.rejected[CIMPPE] {
		t.Error("rejected option was not tracked on the layer")
	}

	// A rejected option must not be advertised again.
	buf := l.BuildConfReq(nil)
	if len(buf) != 0 {
		t.Errorf("BuildConfReq() after rejection = % x, want empty", buf)
	}
}

func TestLayerHandleConfReqChecksUnmentionedOptions(t *testing.T) {
	r := NewRegistry(CCP)
	r.MustRegister(stubHandler{code: CIMPPE})

	l := NewLayer(CCP, r, SessionInfo{}, newFakeNet(), NewBus(), fakeConfig{}, nopLogger())
	l.instances[CIMPPE].(*stubInstance).verdict = VerdictNak

	results, err := l.HandleConfReq(nil)
	if err != nil {
		t.Fatalf("HandleConfReq() error = %v", err)
	}
	if len(results) != 1 || results[0].Code != CIMPPE || results[0].Verdict != VerdictNak {
		t.Fatalf("results = %+v, want a NAK for the unmentioned option", results)
	}
}

func TestLayerUnknownOptionRejected(t *testing.T) {
	r := NewRegistry(CCP)
	l := NewLayer(CCP, r, SessionInfo{}, newFakeNet(), NewBus(), fakeConfig{}, nopLogger())

	payload := encodeRecord(nil, CIMPPE, 0)
	results, err := l.HandleConfReq(payload)
	if err != nil {
		t.Fatalf("HandleConfReq() error = %v", err)
	}
	if len(results) != 1 || results[0].Verdict != VerdictReject {
		t.Fatalf("results = %+v, want VerdictReject for an unregistered option", results)
	}
}

func TestLayerUpAppliesOnce(t *testing.T) {
	r := NewRegistry(CCP)
	hits := 0
	r.MustRegister(stubHandler{code: CIMPPE, applyUpHits: &hits})

	l := NewLayer(CCP, r, SessionInfo{}, newFakeNet(), NewBus(), fakeConfig{}, nopLogger())

	if err := l.Up(); err != nil {
		t.Fatalf("Up() error = %v", err)
	}
	if hits != 1 {
		t.Fatalf("ApplyUp called %d times, want 1", hits)
	}

	if err := l.Down(); err != nil {
		t.Fatalf("Down() error = %v", err)
	}
	if err := l.Up(); err != nil {
		t.Fatalf("second Up() error = %v", err)
	}
	if hits != 1 {
		t.Fatalf("ApplyUp called %d times across two Up()s, want 1 (at-most-once per session)", hits)
	}
}

func TestLayerUpPropagatesApplyUpError(t *testing.T) {
	wantErr := errors.New("kernel rejected compression")
	r := NewRegistry(CCP)
	r.MustRegister(stubHandler{code: CIMPPE, applyUpErr: wantErr})

	l := NewLayer(CCP, r, SessionInfo{}, newFakeNet(), NewBus(), fakeConfig{}, nopLogger())

	if err := l.Up(); !errors.Is(err, wantErr) {
		t.Fatalf("Up() error = %v, want %v", err, wantErr)
	}
}

func TestLayerCloseFreesEveryInstance(t *testing.T) {
	r := NewRegistry(CCP)
	r.MustRegister(stubHandler{code: CIMPPE})
	r.MustRegister(stubHandler{code: CIAsyncmap})

	l := NewLayer(CCP, r, SessionInfo{}, newFakeNet(), NewBus(), fakeConfig{}, nopLogger())
	l.Close()

	if !l.instances[CIMPPE].(*stubInstance).freed {
		t.Error("CIMPPE instance was not freed")
	}
	if !l.instances[CIAsyncmap].(*stubInstance).freed {
		t.Error("CIAsyncmap instance was not freed")
	}
}
