package ppp

import "testing"

func TestLayerFSM(t *testing.T) {
	var opened, closed int
	f := newLayerFSM(
		func(args []interface{}) { opened++ },
		func(args []interface{}) { closed++ },
	)

	if f.current != layerStateClosed {
		t.Fatalf("initial state = %v, want %v", f.current, layerStateClosed)
	}

	if err := f.handleEvent("down"); err == nil {
		t.Error("handleEvent(down) from closed should fail, got nil error")
	}

	if err := f.handleEvent("up"); err != nil {
		t.Fatalf("handleEvent(up) error = %v", err)
	}
	if opened != 1 || f.current != layerStateOpened {
		t.Fatalf("after up: opened=%d state=%v", opened, f.current)
	}

	if err := f.handleEvent("up"); err == nil {
		t.Error("handleEvent(up) from opened should fail, got nil error")
	}
	if opened != 1 {
		t.Errorf("opened callback ran again, opened=%d", opened)
	}

	if err := f.handleEvent("down"); err != nil {
		t.Fatalf("handleEvent(down) error = %v", err)
	}
	if closed != 1 || f.current != layerStateClosed {
		t.Fatalf("after down: closed=%d state=%v", closed, f.current)
	}
}
