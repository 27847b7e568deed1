package engine

import (
	"errors"
	"testing"

	"github.com/cbegin/oplstream-go/internal/tick"
)

type rampSynth struct {
	n int
}

func (s *rampSynth) Sample() (int16, int16) {
	s.n++
	return int16(s.n), int16(-s.n)
}

type countingUpdater struct {
	updates  int
	repeatAt int
}

func (u *countingUpdater) Update() bool {
	u.updates++
	return u.repeatAt > 0 && u.updates >= u.repeatAt
}

type fakeDevice struct {
	submitted []int
	failNext  bool
}

func (d *fakeDevice) Submit(b *Block) error {
	if d.failNext {
		d.failNext = false
		return errors.New("device gone")
	}
	d.submitted = append(d.submitted, b.Index())
	return nil
}
func (d *fakeDevice) Reset() error { return nil }
func (d *fakeDevice) Close() error { return nil }

func newTestEngine(t *testing.T, sampleRate, tickRate, blockFrames int) (*Engine, *countingUpdater, *fakeDevice) {
	t.Helper()
	sched, err := tick.New(sampleRate, tickRate)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	upd := &countingUpdater{}
	e := New(&rampSynth{}, upd, sched, blockFrames)
	dev := &fakeDevice{}
	e.Attach(dev)
	return e, upd, dev
}

func countPlaying(states [2]BlockState) int {
	n := 0
	for _, s := range states {
		if s == BlockPlaying {
			n++
		}
	}
	return n
}

func TestRefillBlockIssuesFourTicksPerBlockAt50Hz(t *testing.T) {
	sched, err := tick.New(44100, 50)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	if sched.Interval() != 882 {
		t.Fatalf("interval = %d, want 882", sched.Interval())
	}
	upd := &countingUpdater{}
	e := New(&rampSynth{}, upd, sched, 4096)
	e.RefillBlock(e.Block(0))
	if upd.updates != 4 {
		t.Fatalf("updates = %d, want 4", upd.updates)
	}
	if sched.Counter() != 568 {
		t.Fatalf("counter = %d, want 568", sched.Counter())
	}
	e.RefillBlock(e.Block(1))
	// 8192 frames / 882 = 9 updates in total.
	if upd.updates != 9 {
		t.Fatalf("updates after two blocks = %d, want 9", upd.updates)
	}
	if e.Ticks() != 9 {
		t.Fatalf("engine ticks = %d, want 9", e.Ticks())
	}
}

type orderRecorder struct {
	events []string
}

type recSynth struct{ rec *orderRecorder }

func (s recSynth) Sample() (int16, int16) {
	s.rec.events = append(s.rec.events, "s")
	return 0, 0
}

type recUpdater struct{ rec *orderRecorder }

func (u recUpdater) Update() bool {
	u.rec.events = append(u.rec.events, "u")
	return false
}

func TestRefillInterleavesTicksMidBlock(t *testing.T) {
	rec := &orderRecorder{}
	sched, err := tick.New(100, 25) // interval 4
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	e := New(recSynth{rec}, recUpdater{rec}, sched, 10)
	e.RefillBlock(e.Block(0))
	got := ""
	for _, ev := range rec.events {
		got += ev
	}
	want := "ssssussssuss"
	if got != want {
		t.Fatalf("event order = %q, want %q", got, want)
	}
}

func TestRefillWritesFramesInOrder(t *testing.T) {
	e, _, _ := newTestEngine(t, 44100, 50, 64)
	b := e.Block(0)
	e.RefillBlock(b)
	for i := 0; i < b.Frames(); i++ {
		l, r := b.Frame(i)
		if int(l) != i+1 || int(r) != -(i+1) {
			t.Fatalf("frame %d = (%d, %d), want (%d, %d)", i, l, r, i+1, -(i + 1))
		}
	}
}

func TestRefillIsDeterministic(t *testing.T) {
	render := func() ([]byte, int) {
		e, upd, _ := newTestEngine(t, 44100, 60, 1024)
		var out []byte
		for i := 0; i < 2; i++ {
			e.RefillBlock(e.Block(i))
			out = append(out, e.Block(i).Bytes()...)
		}
		return out, upd.updates
	}
	a, na := render()
	b, nb := render()
	if na != nb {
		t.Fatalf("update counts differ: %d vs %d", na, nb)
	}
	if string(a) != string(b) {
		t.Fatalf("rendered data differs between identical runs")
	}
}

func TestPrimeSubmitsBothBlocksInOrder(t *testing.T) {
	e, _, dev := newTestEngine(t, 44100, 50, 4096)
	if err := e.Prime(); err != nil {
		t.Fatalf("prime: %v", err)
	}
	if len(dev.submitted) != 2 || dev.submitted[0] != 0 || dev.submitted[1] != 1 {
		t.Fatalf("submitted = %v, want [0 1]", dev.submitted)
	}
	states := e.BlockStates()
	if states[0] != BlockPlaying || states[1] != BlockQueued {
		t.Fatalf("states after prime = %v", states)
	}
	if e.Stats().Refills != 2 {
		t.Fatalf("refills = %d, want 2", e.Stats().Refills)
	}
}

func TestPrimeWithoutDeviceFails(t *testing.T) {
	sched, _ := tick.New(44100, 50)
	e := New(&rampSynth{}, &countingUpdater{}, sched, 16)
	if err := e.Prime(); !errors.Is(err, ErrNotAttached) {
		t.Fatalf("expected ErrNotAttached, got %v", err)
	}
}

func TestDrainPingPongKeepsOneBlockPlaying(t *testing.T) {
	e, _, dev := newTestEngine(t, 44100, 50, 256)
	if err := e.Prime(); err != nil {
		t.Fatalf("prime: %v", err)
	}
	for i := 0; i < 50; i++ {
		finished := i % 2
		e.OnBlockDrained(finished)
		states := e.BlockStates()
		if countPlaying(states) != 1 {
			t.Fatalf("drain %d: states %v, want exactly one playing", i, states)
		}
		if states[finished] != BlockQueued {
			t.Fatalf("drain %d: drained block state = %v, want queued", i, states[finished])
		}
		if e.Playing() != finished^1 {
			t.Fatalf("drain %d: playing = %d, want %d", i, e.Playing(), finished^1)
		}
		if dev.submitted[len(dev.submitted)-1] != finished {
			t.Fatalf("drain %d: resubmitted %d, want %d", i, dev.submitted[len(dev.submitted)-1], finished)
		}
	}
	if got := e.Stats().Refills; got != 52 {
		t.Fatalf("refills = %d, want 52", got)
	}
}

func TestOutOfOrderDrainIsIgnored(t *testing.T) {
	e, _, dev := newTestEngine(t, 44100, 50, 128)
	if err := e.Prime(); err != nil {
		t.Fatalf("prime: %v", err)
	}
	e.OnBlockDrained(1)
	e.OnBlockDrained(7)
	if len(dev.submitted) != 2 {
		t.Fatalf("unexpected resubmission: %v", dev.submitted)
	}
	if got := e.Stats().OutOfOrder; got != 2 {
		t.Fatalf("out of order = %d, want 2", got)
	}
	if e.BlockStates()[0] != BlockPlaying {
		t.Fatalf("states = %v", e.BlockStates())
	}
}

func TestStopRequestedSuppressesRefill(t *testing.T) {
	e, upd, dev := newTestEngine(t, 44100, 50, 4096)
	if err := e.Prime(); err != nil {
		t.Fatalf("prime: %v", err)
	}
	before := upd.updates
	e.RequestStop()
	e.OnBlockDrained(0)
	if len(dev.submitted) != 2 {
		t.Fatalf("stopped engine resubmitted: %v", dev.submitted)
	}
	if upd.updates != before {
		t.Fatalf("stopped engine issued updates")
	}
	if e.BlockStates()[0] != BlockIdle {
		t.Fatalf("drained block after stop = %v, want idle", e.BlockStates()[0])
	}
}

// stopDuringRefill requests a stop from inside the first update it sees
// once armed, as a concurrent Stop would.
type stopDuringRefill struct {
	e     *Engine
	armed bool
}

func (u *stopDuringRefill) Update() bool {
	if u.armed {
		u.e.RequestStop()
		u.armed = false
	}
	return false
}

func TestStopDuringRefillSkipsSubmit(t *testing.T) {
	sched, err := tick.New(44100, 50)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	upd := &stopDuringRefill{}
	e := New(&rampSynth{}, upd, sched, 4096)
	upd.e = e
	dev := &fakeDevice{}
	e.Attach(dev)
	if err := e.Prime(); err != nil {
		t.Fatalf("prime: %v", err)
	}
	upd.armed = true
	e.OnBlockDrained(0)
	if len(dev.submitted) != 2 {
		t.Fatalf("block submitted after stop: %v", dev.submitted)
	}
	if st := e.Stats(); st.SubmitErrors != 0 {
		t.Fatalf("submit errors = %d, want 0", st.SubmitErrors)
	}
	if e.BlockStates()[0] != BlockIdle {
		t.Fatalf("block 0 = %v, want idle", e.BlockStates()[0])
	}
}

func TestSubmitFailureCounted(t *testing.T) {
	e, _, dev := newTestEngine(t, 44100, 50, 64)
	if err := e.Prime(); err != nil {
		t.Fatalf("prime: %v", err)
	}
	dev.failNext = true
	e.OnBlockDrained(0)
	if e.Stats().SubmitErrors != 1 {
		t.Fatalf("submit errors = %d", e.Stats().SubmitErrors)
	}
	if e.BlockStates()[0] != BlockIdle {
		t.Fatalf("failed block state = %v, want idle", e.BlockStates()[0])
	}
}

func TestRepeatIsLatchedUntilTaken(t *testing.T) {
	sched, _ := tick.New(1000, 100) // interval 10
	upd := &countingUpdater{repeatAt: 3}
	e := New(&rampSynth{}, upd, sched, 25)
	e.RefillBlock(e.Block(0))
	if e.Repeat() {
		t.Fatalf("repeat reported after two updates")
	}
	e.RefillBlock(e.Block(1))
	if !e.Repeat() || !e.LastUpdate() {
		t.Fatalf("repeat not reported after third update")
	}
	if !e.TakeRepeat() {
		t.Fatalf("TakeRepeat returned false")
	}
	if e.Repeat() {
		t.Fatalf("repeat still latched after take")
	}
}

func TestTwoSecondsNeedsTwentyTwoRefills(t *testing.T) {
	e, _, _ := newTestEngine(t, 44100, 50, 4096)
	if err := e.Prime(); err != nil {
		t.Fatalf("prime: %v", err)
	}
	for i := 0; e.Stats().Refills < 22; i++ {
		e.OnBlockDrained(i % 2)
	}
	elapsed := float64(e.Frames()) / 44100
	if elapsed < 2.0 {
		t.Fatalf("elapsed after 22 refills = %f, want >= 2.0", elapsed)
	}
	if float64(e.Frames()-4096)/44100 >= 2.0 {
		t.Fatalf("21 refills should not reach 2 seconds")
	}
}

func BenchmarkRefillBlock(b *testing.B) {
	sched, _ := tick.New(44100, 50)
	e := New(&rampSynth{}, &countingUpdater{}, sched, 4096)
	blk := e.Block(0)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.RefillBlock(blk)
	}
}
