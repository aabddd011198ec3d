//go:build linux

package ppp

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// linuxNet is the production Net implementation, backed directly by
// golang.org/x/sys/unix the same way l2tp/controlplane.go reaches the
// kernel for its control-plane socket. It carries no state of its own:
// every method is a thin, reentrant wrapper over a syscall.
type linuxNet struct{}

// NewLinuxNet returns the production Net facade for Linux hosts.
func NewLinuxNet() Net {
	return linuxNet{}
}

func (linuxNet) Socket(domain, typ, proto int) (int, error) {
	return unix.Socket(domain, typ, proto)
}

func (linuxNet) Bind(fd int, sa unix.Sockaddr) error {
	return unix.Bind(fd, sa)
}

func (linuxNet) Connect(fd int, sa unix.Sockaddr) error {
	return unix.Connect(fd, sa)
}

func (linuxNet) Listen(fd int, backlog int) error {
	return unix.Listen(fd, backlog)
}

func (linuxNet) Recv(fd int, p []byte, flags int) (int, error) {
	return unix.Read(fd, p)
}

func (linuxNet) RecvFrom(fd int, p []byte, flags int) (int, unix.Sockaddr, error) {
	return unix.Recvfrom(fd, p, flags)
}

func (linuxNet) Send(fd int, p []byte, flags int) (int, error) {
	return unix.Write(fd, p)
}

func (linuxNet) SendTo(fd int, p []byte, flags int, to unix.Sockaddr) error {
	return unix.Sendto(fd, p, flags, to)
}

func (linuxNet) SetNonblocking(fd int, nonblocking bool) error {
	return unix.SetNonblock(fd, nonblocking)
}

func (linuxNet) SetsockoptInt(fd, level, opt, value int) error {
	return unix.SetsockoptInt(fd, level, opt, value)
}

func (linuxNet) PPPIoctl(fd int, request uintptr, arg []byte) error {
	return ioctlPtr(fd, request, arg)
}

// pppOptionData mirrors struct ppp_option_data from linux/ppp-ioctl.h:
//
//	struct ppp_option_data {
//		__u8 *ptr;
//		__u32 length;
//		int transmit;
//	};
//
// Its first field is itself a pointer, so building it requires pinning
// the referenced buffer and taking its address - this is the one layout
// in this package that cannot be expressed as a flat byte buffer by the
// caller, hence its own Net method.
type pppOptionData struct {
	ptr      uintptr
	length   uint32
	transmit int32
}

func (linuxNet) SetCompress(fd int, record []byte, transmit bool) error {
	var ptr uintptr
	if len(record) > 0 {
		ptr = uintptr(unsafe.Pointer(&record[0]))
	}
	data := pppOptionData{
		ptr:    ptr,
		length: uint32(len(record)),
	}
	if transmit {
		data.transmit = 1
	}
	return ioctlPtr(fd, unix.PPPIOCSCOMPRESS, (*[unsafe.Sizeof(data)]byte)(unsafe.Pointer(&data))[:])
}

func (linuxNet) GetMTU(ifName string) (int, error) {
	ifr, err := unix.NewIfreq(ifName)
	if err != nil {
		return 0, err
	}
	if err := ioctlIfreq(unix.SIOCGIFMTU, ifr); err != nil {
		return 0, err
	}
	return int(ifr.Uint32()), nil
}

func (linuxNet) SetMTU(ifName string, mtu int) error {
	ifr, err := unix.NewIfreq(ifName)
	if err != nil {
		return err
	}
	ifr.SetUint32(uint32(mtu))
	return ioctlIfreq(unix.SIOCSIFMTU, ifr)
}

// Option codes that belong to Net's generic PPPIoctl, mirrored here
// because they're only defined on Linux; accm.go references these
// platform-independent package identifiers directly.
const (
	unixPPPIOCSRASYNCMAP = unix.PPPIOCSRASYNCMAP
	unixPPPIOCSASYNCMAP  = unix.PPPIOCSASYNCMAP
)

// isIgnorableIoctlErr reports whether err is one of the errnos
// accm_apply tolerates: plenty of channel types don't implement the
// async-map ioctls at all.
func isIgnorableIoctlErr(err error) bool {
	return err == unix.EIO || err == unix.ENOTTY
}

// ioctlIfreq issues request against a throwaway AF_INET socket with ifr
// as the argument, the same pattern net/sock_ioctl in the original
// source uses for interface-level ioctls that aren't tied to a PPP fd.
func ioctlIfreq(request uintptr, ifr *unix.Ifreq) error {
	s, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return err
	}
	defer unix.Close(s)
	return unix.IoctlIfreq(s, uint(request), ifr)
}

// ioctlPtr issues request against fd (or, for interface-level ioctls
// that don't need a PPP fd, a throwaway generic socket when fd < 0),
// passing arg as the ioctl's third argument. This is the one place raw
// syscall numbers meet the PPP/ifreq structures the rest of the package
// builds as plain byte buffers.
func ioctlPtr(fd int, request uintptr, arg []byte) error {
	if fd < 0 {
		s, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
		if err != nil {
			return err
		}
		defer unix.Close(s)
		fd = s
	}

	var argp uintptr
	if len(arg) > 0 {
		argp = uintptr(unsafe.Pointer(&arg[0]))
	}

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), request, argp)
	if errno != 0 {
		return errno
	}
	return nil
}
