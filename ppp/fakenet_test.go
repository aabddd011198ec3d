package ppp

import "golang.org/x/sys/unix"

// fakeNet is a Net test double that records every kernel-facing call
// instead of issuing real syscalls, grounded on the same intent as
// ap_net: let handler logic be exercised without a real PPP unit.
type fakeNet struct {
	mtu int

	compressCalls []compressCall
	compressErr   error

	ioctlCalls []ioctlCall
	ioctlErr   error

	mtuErr error
}

type compressCall struct {
	fd       int
	record   []byte
	transmit bool
}

type ioctlCall struct {
	fd      int
	request uintptr
	arg     []byte
}

func newFakeNet() *fakeNet {
	return &fakeNet{mtu: 1500}
}

func (f *fakeNet) Socket(domain, typ, proto int) (int, error) { return 0, nil }
func (f *fakeNet) Bind(fd int, sa unix.Sockaddr) error         { return nil }
func (f *fakeNet) Connect(fd int, sa unix.Sockaddr) error      { return nil }
func (f *fakeNet) Listen(fd int, backlog int) error            { return nil }
func (f *fakeNet) Recv(fd int, p []byte, flags int) (int, error) {
	return 0, nil
}
func (f *fakeNet) RecvFrom(fd int, p []byte, flags int) (int, unix.Sockaddr, error) {
	return 0, nil, nil
}
func (f *fakeNet) Send(fd int, p []byte, flags int) (int, error) { return len(p), nil }
func (f *fakeNet) SendTo(fd int, p []byte, flags int, to unix.Sockaddr) error {
	return nil
}
func (f *fakeNet) SetNonblocking(fd int, nonblocking bool) error { return nil }
func (f *fakeNet) SetsockoptInt(fd, level, opt, value int) error { return nil }

func (f *fakeNet) PPPIoctl(fd int, request uintptr, arg []byte) error {
	cp := make([]byte, len(arg))
	copy(cp, arg)
	f.ioctlCalls = append(f.ioctlCalls, ioctlCall{fd: fd, request: request, arg: cp})
	return f.ioctlErr
}

func (f *fakeNet) SetCompress(fd int, record []byte, transmit bool) error {
	cp := make([]byte, len(record))
	copy(cp, record)
	f.compressCalls = append(f.compressCalls, compressCall{fd: fd, record: cp, transmit: transmit})
	return f.compressErr
}

func (f *fakeNet) GetMTU(ifName string) (int, error) {
	if f.mtuErr != nil {
		return 0, f.mtuErr
	}
	return f.mtu, nil
}

func (f *fakeNet) SetMTU(ifName string, mtu int) error {
	if f.mtuErr != nil {
		return f.mtuErr
	}
	f.mtu = mtu
	return nil
}
