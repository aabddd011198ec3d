package ppp

import "fmt"

// fsmCallback is invoked on a matched transition. This tiny table-driven
// engine drives a layer-lifecycle table instead of a tunnel/session
// table, but the engine itself is unchanged in shape.
type fsmCallback func(args []interface{})

type eventDesc struct {
	from, to string
	events   []string
	cb       fsmCallback
}

type fsm struct {
	current string
	table   []eventDesc
}

func (f *fsm) handleEvent(e string, args ...interface{}) error {
	for _, t := range f.table {
		if f.current == t.from {
			for _, event := range t.events {
				if e == event {
					f.current = t.to
					if t.cb != nil {
						t.cb(args)
					}
					return nil
				}
			}
		}
	}
	return fmt.Errorf("ppp: no transition defined for event %v in state %v", e, f.current)
}

// Layer lifecycle states. The full LCP/CCP negotiation automaton
// (Req-Sent, Ack-Rcvd, Ack-Sent, ...) is out of scope; this table only
// tracks the two transitions the option-handler contract cares about:
// the single "opened" edge that gates ApplyUp, and the "closed" edge
// that a fatal verdict drives the layer back to.
const (
	layerStateClosed = "closed"
	layerStateOpened = "opened"
)

func newLayerFSM(onOpen, onClose fsmCallback) *fsm {
	return &fsm{
		current: layerStateClosed,
		table: []eventDesc{
			{from: layerStateClosed, to: layerStateOpened, events: []string{"up"}, cb: onOpen},
			{from: layerStateOpened, to: layerStateClosed, events: []string{"down"}, cb: onClose},
		},
	}
}
