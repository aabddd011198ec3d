//go:build linux

package ppp

import (
	"testing"

	"golang.org/x/sys/unix"
)

// S5 continued: a channel that doesn't implement the ASYNCMAP ioctls
// (PPPoE channels, for instance) returns ENOTTY; that must not fail
// bring-up.
func TestACCM_S5_ENOTTYIsNotFatal(t *testing.T) {
	net := newFakeNet()
	net.ioctlErr = unix.ENOTTY
	a := newACCMTestInstance(true, net)

	if got := a.RecvConfReq([]byte{0xff, 0xff, 0xff, 0xff}); got != VerdictAck {
		t.Fatalf("verdict = %v, want VerdictAck", got)
	}

	if err := a.ApplyUp(); err != nil {
		t.Fatalf("ApplyUp() error = %v, want nil (ENOTTY is tolerated)", err)
	}
}
