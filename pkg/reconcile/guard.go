package reconcile

// direction is which way a propagation step flows.
type direction int

const (
	idle direction = iota
	fromSource
	fromUI
)

func (d direction) String() string {
	switch d {
	case fromSource:
		return "source->ui"
	case fromUI:
		return "ui->source"
	}
	return "idle"
}

// guard is the single propagation flag shared by both directions. The loop is
// single-threaded, so this is a re-entrancy marker rather than a lock.
type guard struct {
	dir direction
}

func (g *guard) held() bool { return g.dir != idle }

// acquire marks the guard held for d. The returned release must be deferred;
// ok is false (and release a no-op) when the guard is already held.
func (g *guard) acquire(d direction) (release func(), ok bool) {
	if g.dir != idle {
		return func() {}, false
	}
	g.dir = d
	return func() { g.dir = idle }, true
}
