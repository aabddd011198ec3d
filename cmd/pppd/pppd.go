/*
The pppd command runs the PPP option-negotiation engine against one or
more already-established PPP sessions: pairs of generic-unit and
channel file descriptors handed to it by whatever lower layer created
the link (PPPoE, L2TP, a direct serial/HDLC device). Opening those
descriptors and running the rest of the LCP/CCP state machine is
outside this engine's scope; pppd sets up the MPPE and ACCM option
state for each session and applies it to the kernel once the session's
layers come up. It does not exchange negotiation packets on those
descriptors itself.

pppd is configured using a simple TOML file. This example configuration
shows the parameters that are accepted:

	[ppp]
	mppe = "prefer"
	mppe-128 = "1"
	mppe-40 = "1"
	accm = "deny"

	[[session]]
	unit_fd = 3
	chan_fd = 4
	ifname = "ppp0"

Sending SIGHUP reloads the configuration file and publishes
EventConfigReload to every running session.
*/
package main

import (
	"context"
	"flag"
	"fmt"
	stdlog "log"
	"os"
	"os/signal"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/katalix/go-pppd/config"
	"github.com/katalix/go-pppd/ppp"
)

// sessionConfig names one pre-established PPP link this process should
// negotiate options over.
type sessionConfig struct {
	UnitFD int    `toml:"unit_fd"`
	ChanFD int    `toml:"chan_fd"`
	IfName string `toml:"ifname"`
}

func buildRegistries() (lcp *ppp.Registry, ccp *ppp.Registry) {
	lcp = ppp.NewRegistry(ppp.LCP)
	lcp.MustRegister(ppp.NewACCMHandler())

	ccp = ppp.NewRegistry(ppp.CCP)
	ccp.MustRegister(ppp.NewMPPEHandler())

	return lcp, ccp
}

// runSession drives one session's LCP and CCP layers to Up, logging the
// negotiated state. It stands in for the rest of the LCP/CCP automaton
// this package does not implement (spec Non-goal): in production that
// automaton calls Layer.BuildConfReq/HandleConfReq/Up/Down as packets
// arrive on the session's fds.
func runSession(ctx context.Context, logger log.Logger, lcpReg, ccpReg *ppp.Registry, net ppp.Net, bus ppp.Bus, store ppp.ConfigStore, sess sessionConfig) error {
	info := ppp.SessionInfo{UnitFD: sess.UnitFD, ChanFD: sess.ChanFD, IfName: sess.IfName}
	sessionLogger := log.With(logger, "ifname", sess.IfName)

	lcpLayer := ppp.NewLayer(ppp.LCP, lcpReg, info, net, bus, store, sessionLogger)
	defer lcpLayer.Close()

	ccpLayer := ppp.NewLayer(ppp.CCP, ccpReg, info, net, bus, store, sessionLogger)
	defer ccpLayer.Close()

	if err := lcpLayer.Up(); err != nil {
		return fmt.Errorf("lcp layer up on %s: %w", sess.IfName, err)
	}
	if err := ccpLayer.Up(); err != nil {
		return fmt.Errorf("ccp layer up on %s: %w", sess.IfName, err)
	}

	level.Info(sessionLogger).Log("msg", "session negotiated", "lcp", lcpLayer.Descriptor(), "ccp", ccpLayer.Descriptor())

	<-ctx.Done()

	_ = lcpLayer.Down()
	_ = ccpLayer.Down()
	return nil
}

func newLogger(verbose bool) log.Logger {
	logger := log.NewLogfmtLogger(os.Stderr)
	if verbose {
		return level.NewFilter(logger, level.AllowDebug())
	}
	return level.NewFilter(logger, level.AllowInfo())
}

func run(cfgPath string, verbose bool) error {
	logger := newLogger(verbose)

	store := config.NewStore()
	if err := store.LoadFile(cfgPath); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	sessions, err := parseSessions(store)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		return fmt.Errorf("no [[session]] entries found in %s", cfgPath)
	}

	bus := ppp.NewBus()
	watcher := config.NewWatcher(store, bus, cfgPath)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, unix.SIGHUP, unix.SIGINT, unix.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lcpReg, ccpReg := buildRegistries()
	net := ppp.NewLinuxNet()

	g, gctx := errgroup.WithContext(ctx)
	for _, sess := range sessions {
		sess := sess
		g.Go(func() error {
			return runSession(gctx, logger, lcpReg, ccpReg, net, bus, store, sess)
		})
	}

	go func() {
		for sig := range sigChan {
			switch sig {
			case unix.SIGHUP:
				if err := watcher.Reload(); err != nil {
					level.Error(logger).Log("msg", "config reload failed", "err", err)
				}
			default:
				level.Info(logger).Log("msg", "received signal, shutting down", "signal", sig)
				cancel()
				return
			}
		}
	}()

	return g.Wait()
}

// parseSessions reads the [[session]] table manually: config.Store
// exposes flattened scalar sections, so each session table is surfaced
// by name ("session.0", "session.1", ...), the name config.Store gives
// each array-of-tables element when it flattens the document.
func parseSessions(store *config.Store) ([]sessionConfig, error) {
	var sessions []sessionConfig
	for i := 0; ; i++ {
		name := fmt.Sprintf("session.%d", i)
		sec := store.Section(name)
		if sec == nil {
			break
		}
		unitFD, err := atoiField(sec, "unit_fd")
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		chanFD, err := atoiField(sec, "chan_fd")
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		sessions = append(sessions, sessionConfig{
			UnitFD: unitFD,
			ChanFD: chanFD,
			IfName: sec["ifname"],
		})
	}
	return sessions, nil
}

func atoiField(sec map[string]string, key string) (int, error) {
	v, ok := sec[key]
	if !ok {
		return 0, fmt.Errorf("missing %q", key)
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return 0, fmt.Errorf("%q is not an integer: %v", key, v)
	}
	return n, nil
}

func main() {
	cfgPathPtr := flag.String("config", "/etc/pppd/pppd.toml", "specify configuration file path")
	verbosePtr := flag.Bool("verbose", false, "toggle verbose log output")
	flag.Parse()

	if err := run(*cfgPathPtr, *verbosePtr); err != nil {
		stdlog.Fatal(err)
	}
}
