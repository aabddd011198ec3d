package ppp

import "golang.org/x/sys/unix"

// Net is the injected facade through which every option handler reaches
// the kernel. It is a process-wide object shared by every session and
// every handler; no handler is permitted to call operating-system
// syscalls directly, so that test doubles can observe and constrain
// kernel interactions.
//
// Net is expected to be reentrant: sessions never contend over it, since
// the file descriptors and interface names they pass in belong to a
// single session each.
type Net interface {
	Socket(domain, typ, proto int) (fd int, err error)
	Bind(fd int, sa unix.Sockaddr) error
	Connect(fd int, sa unix.Sockaddr) error
	Listen(fd int, backlog int) error
	Recv(fd int, p []byte, flags int) (n int, err error)
	RecvFrom(fd int, p []byte, flags int) (n int, from unix.Sockaddr, err error)
	Send(fd int, p []byte, flags int) (n int, err error)
	SendTo(fd int, p []byte, flags int, to unix.Sockaddr) error
	SetNonblocking(fd int, nonblocking bool) error
	SetsockoptInt(fd, level, opt, value int) error

	// PPPIoctl issues an ioctl that takes a plain value argument on a PPP
	// channel or unit file descriptor, e.g. PPPIOCSRASYNCMAP,
	// PPPIOCSASYNCMAP.
	PPPIoctl(fd int, request uintptr, arg []byte) error

	// SetCompress issues PPPIOCSCOMPRESS on fd, installing record (the
	// 6-byte option header plus key material, exactly as laid out on the
	// wire) in the direction transmit selects. This is its own method,
	// rather than a PPPIoctl(record) call, because the kernel's
	// ppp_option_data struct embeds a pointer to record - arch-specific
	// layout that belongs in the implementation, not in a handler.
	SetCompress(fd int, record []byte, transmit bool) error

	// GetMTU/SetMTU read and adjust a PPP network interface's MTU by
	// name, via SIOCGIFMTU/SIOCSIFMTU.
	GetMTU(ifName string) (int, error)
	SetMTU(ifName string, mtu int) error
}
