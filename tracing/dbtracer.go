package tracing

import (
	"sync"

	"github.com/sarchlab/netsim/datarecording"
	"github.com/sarchlab/netsim/network/mobility"
	"github.com/sarchlab/netsim/network/netstack"
	"github.com/sarchlab/netsim/network/packet"
	"github.com/sarchlab/netsim/sim/hooking"
	"github.com/sarchlab/netsim/sim/timing"
	"github.com/tebeka/atexit"
)

// Table names written by DBTracer.
const (
	EventTimelineTable = "event_timeline"
	NodePositionsTable = "node_positions"
	MessageTraceTable  = "message_trace"
)

type eventEntry struct {
	ID   uint64
	Time float64
	What string
}

type positionEntry struct {
	Node int
	Time float64
	X    float64
	Y    float64
}

type messageEntry struct {
	Time   float64
	Node   int
	Action string
	MsgID  uint64
	Src    int
	Dst    int
	Size   int
	Hops   int
	Reason string
}

// DBTracer stores the event timeline, node positions and message activity
// through a DataRecorder. Register it on the engine, the mobility engine and
// the network.
type DBTracer struct {
	mu         sync.Mutex
	timeTeller timing.TimeTeller
	backend    datarecording.DataRecorder
	err        error
	terminated bool
}

// NewDBTracer creates the trace tables and returns the tracer.
func NewDBTracer(
	timeTeller timing.TimeTeller,
	dataRecorder datarecording.DataRecorder,
) (*DBTracer, error) {
	tables := []struct {
		name   string
		sample any
	}{
		{EventTimelineTable, eventEntry{}},
		{NodePositionsTable, positionEntry{}},
		{MessageTraceTable, messageEntry{}},
	}

	for _, tbl := range tables {
		if err := dataRecorder.CreateTable(tbl.name, tbl.sample); err != nil {
			return nil, err
		}
	}

	t := &DBTracer{
		timeTeller: timeTeller,
		backend:    dataRecorder,
	}

	atexit.Register(func() {
		_ = t.Terminate()
	})

	return t, nil
}

// Func implements hooking.Hook.
func (t *DBTracer) Func(ctx hooking.HookCtx) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.terminated {
		return
	}

	switch ctx.Pos {
	case timing.HookPosBeforeEvent:
		if rec, ok := eventRecordOf(ctx); ok {
			t.insert(EventTimelineTable, eventEntry(rec))
		}
	case mobility.HookPosPositionUpdate:
		u := ctx.Item.(mobility.PositionUpdate)
		t.insert(NodePositionsTable, positionEntry{
			Node: int(u.Node),
			Time: u.Time,
			X:    u.Position.X,
			Y:    u.Position.Y,
		})
	case netstack.HookPosSend, netstack.HookPosDeliver,
		netstack.HookPosForward, netstack.HookPosDrop:
		t.insert(MessageTraceTable, t.messageEntryOf(ctx))
	}
}

func (t *DBTracer) messageEntryOf(ctx hooking.HookCtx) messageEntry {
	msg := ctx.Item.(*packet.Message)
	entry := messageEntry{
		Time:   t.timeTeller.Now(),
		Action: ctx.Pos.Name,
		MsgID:  msg.ID,
		Src:    int(msg.Src),
		Dst:    int(msg.Dst),
		Size:   msg.Size,
		Hops:   msg.Hops,
	}

	if s, ok := ctx.Domain.(*netstack.Stack); ok {
		entry.Node = int(s.Node().ID())
	}

	if reason, ok := ctx.Detail.(netstack.DropReason); ok {
		entry.Reason = string(reason)
	}

	return entry
}

func (t *DBTracer) insert(table string, entry any) {
	if err := t.backend.InsertData(table, entry); err != nil && t.err == nil {
		t.err = err
	}
}

// Err returns the first error the backend reported.
func (t *DBTracer) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.err
}

// Terminate flushes the backend. Later hook invocations are ignored.
func (t *DBTracer) Terminate() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.terminated {
		return t.err
	}

	t.terminated = true

	if err := t.backend.Flush(); err != nil && t.err == nil {
		t.err = err
	}

	return t.err
}
