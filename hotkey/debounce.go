package hotkey

import "sync"

type Edge int

const (
	Press Edge = iota
	Release
)

func (e Edge) String() string {
	if e == Press {
		return "press"
	}
	return "release"
}

// Debounced turns a backend's two channels into one ordered stream of
// alternating edges. Repeated presses while held and releases without a
// press are dropped.
type Debounced struct {
	hk    Hotkey
	edges chan Edge
	stop  chan struct{}
	once  sync.Once
}

func Debounce(hk Hotkey) *Debounced {
	return &Debounced{
		hk:    hk,
		edges: make(chan Edge, 4),
		stop:  make(chan struct{}),
	}
}

func (d *Debounced) Register() error {
	if err := d.hk.Register(); err != nil {
		return err
	}
	go d.run()
	return nil
}

func (d *Debounced) Unregister() {
	d.once.Do(func() {
		close(d.stop)
		d.hk.Unregister()
	})
}

func (d *Debounced) Edges() <-chan Edge { return d.edges }

func (d *Debounced) run() {
	held := false
	for {
		select {
		case <-d.stop:
			return
		case <-d.hk.Keydown():
			if held {
				// Either autorepeat or a full release+press raced in
				// on the other channel.
				select {
				case <-d.hk.Keyup():
					d.emit(Release)
					d.emit(Press)
				default:
				}
				continue
			}
			held = true
			d.emit(Press)
		case <-d.hk.Keyup():
			if !held {
				// A quick tap can deliver keyup before keydown is read.
				select {
				case <-d.hk.Keydown():
					d.emit(Press)
				default:
					continue
				}
			}
			held = false
			d.emit(Release)
		}
	}
}

func (d *Debounced) emit(e Edge) {
	select {
	case d.edges <- e:
	case <-d.stop:
	}
}
