//go:build !linux

package ppp

// NewLinuxNet is unavailable outside Linux: the ioctl numbers and
// ifreq/ppp_option_data layouts this package's handlers rely on are
// Linux-specific. Callers on other platforms must supply their own Net,
// typically a fake for tests.
func NewLinuxNet() Net {
	panic("ppp: NewLinuxNet is only available on linux")
}

// These placeholders let accm.go reference platform-independent
// identifiers; they are never dereferenced in a real ioctl outside
// Linux since NewLinuxNet panics before any Net method can be called.
const (
	unixPPPIOCSRASYNCMAP = 0
	unixPPPIOCSASYNCMAP  = 0
)

func isIgnorableIoctlErr(err error) bool { return false }
