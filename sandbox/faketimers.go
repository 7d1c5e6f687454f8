package sandbox

import "sort"

type timerKind int

const (
	kindTimeout timerKind = iota
	kindInterval
	kindTick
	kindImmediate
)

type timer struct {
	id       int
	at       int64 // virtual milliseconds
	interval int64
	kind     timerKind
	fn       func()
	cleared  bool
}

// FakeTimers is a deterministic, virtual-clock timer facility: rather than
// a real time.Ticker driving a circular slot queue the way
// db/timewheel/timewheel.go's wheel does, every advance is an explicit
// call, so useFakeTimers/advanceTimersByTime/runAllTimers are exact instead
// of wall-clock dependent. The per-id lookup that wheel keeps for O(1)
// cancellation is kept here too, as the `timers` map.
type FakeTimers struct {
	installed bool
	now       int64
	nextID    int
	timers    map[int]*timer
	order     []int
}

func NewFakeTimers() *FakeTimers {
	return &FakeTimers{timers: map[int]*timer{}}
}

func (f *FakeTimers) Install()   { f.installed = true }
func (f *FakeTimers) Uninstall() { f.installed = false; f.Reset() }
func (f *FakeTimers) IsFake() bool { return f.installed }

func (f *FakeTimers) Reset() {
	f.now = 0
	f.nextID = 0
	f.timers = map[int]*timer{}
	f.order = nil
}

// Schedule registers fn to fire delayMS of virtual time from now. kind
// distinguishes setTimeout/setInterval-style timers from process.nextTick
// ("ticks") and setImmediate ("immediates"), which the run* operations
// below treat differently.
func (f *FakeTimers) Schedule(delayMS int64, kind timerKind, fn func()) int {
	f.nextID++
	id := f.nextID
	f.timers[id] = &timer{id: id, at: f.now + delayMS, interval: delayMS, kind: kind, fn: fn}
	f.order = append(f.order, id)
	return id
}

func (f *FakeTimers) Clear(id int) {
	if t, ok := f.timers[id]; ok {
		t.cleared = true
		delete(f.timers, id)
		f.removeFromOrder(id)
	}
}

func (f *FakeTimers) ClearAllTimers() {
	f.timers = map[int]*timer{}
	f.order = nil
}

func (f *FakeTimers) GetTimerCount() int { return len(f.timers) }

func (f *FakeTimers) removeFromOrder(id int) {
	for i, v := range f.order {
		if v == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			return
		}
	}
}

func (f *FakeTimers) liveDue(kind timerKind, until int64) []*timer {
	var due []*timer
	for _, id := range f.order {
		t, ok := f.timers[id]
		if !ok || t.cleared || t.kind != kind {
			continue
		}
		if t.at <= until {
			due = append(due, t)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].at < due[j].at })
	return due
}

func (f *FakeTimers) fire(t *timer) {
	delete(f.timers, t.id)
	f.removeFromOrder(t.id)
	f.now = t.at
	if t.kind == kindInterval {
		// Reschedule before running fn, so a Clear(id) issued from inside
		// the callback finds and cancels the next occurrence.
		f.timers[t.id] = &timer{id: t.id, at: f.now + t.interval, interval: t.interval, kind: kindInterval, fn: t.fn}
		f.order = append(f.order, t.id)
	}
	t.fn()
}

// AdvanceByTime moves the virtual clock forward by ms, firing every
// timeout/interval due along the way, in order.
func (f *FakeTimers) AdvanceByTime(ms int64) {
	target := f.now + ms
	for {
		due := append(f.liveDue(kindTimeout, target), f.liveDue(kindInterval, target)...)
		sort.Slice(due, func(i, j int) bool { return due[i].at < due[j].at })
		if len(due) == 0 {
			break
		}
		f.fire(due[0])
	}
	if f.now < target {
		f.now = target
	}
}

// RunAllTimers drains every pending timeout/interval, including ones
// newly scheduled by already-firing timers, capped to guard against an
// interval timer that reschedules forever.
func (f *FakeTimers) RunAllTimers() {
	for i := 0; i < 100000; i++ {
		due := append(f.liveDue(kindTimeout, maxVirtualTime), f.liveDue(kindInterval, maxVirtualTime)...)
		sort.Slice(due, func(i, j int) bool { return due[i].at < due[j].at })
		if len(due) == 0 {
			return
		}
		f.fire(due[0])
	}
}

// RunOnlyPendingTimers fires exactly the timers pending at call time —
// snapshotting their ids first, so timers scheduled by a firing timer
// don't also run this pass.
func (f *FakeTimers) RunOnlyPendingTimers() {
	snapshot := map[int]bool{}
	for _, id := range f.order {
		if t, ok := f.timers[id]; ok && !t.cleared && (t.kind == kindTimeout || t.kind == kindInterval) {
			snapshot[id] = true
		}
	}
	for {
		var due []*timer
		for _, id := range f.order {
			if !snapshot[id] {
				continue
			}
			if t, ok := f.timers[id]; ok && !t.cleared {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			return
		}
		sort.Slice(due, func(i, j int) bool { return due[i].at < due[j].at })
		delete(snapshot, due[0].id)
		f.fire(due[0])
	}
}

// AdvanceToNextTimer advances the clock to the next scheduled
// timeout/interval's fire time, steps times (default 1), firing each.
func (f *FakeTimers) AdvanceToNextTimer(steps int) {
	if steps <= 0 {
		steps = 1
	}
	for i := 0; i < steps; i++ {
		due := append(f.liveDue(kindTimeout, maxVirtualTime), f.liveDue(kindInterval, maxVirtualTime)...)
		sort.Slice(due, func(i, j int) bool { return due[i].at < due[j].at })
		if len(due) == 0 {
			return
		}
		f.fire(due[0])
	}
}

func (f *FakeTimers) RunAllTicks() {
	for {
		due := f.liveDue(kindTick, maxVirtualTime)
		if len(due) == 0 {
			return
		}
		f.fire(due[0])
	}
}

func (f *FakeTimers) RunAllImmediates() {
	for {
		due := f.liveDue(kindImmediate, maxVirtualTime)
		if len(due) == 0 {
			return
		}
		f.fire(due[0])
	}
}

const maxVirtualTime = int64(1) << 62
