package bfm

import (
	"log"

	"github.com/sarchlab/flashverif/analysis"
	"github.com/sarchlab/flashverif/sched"
)

// Channel selects the stream of the BFM that a monitor republishes.
type Channel int

// The streams of the BFM.
const (
	DataChannel Channel = iota
	ResultChannel
)

func (c Channel) String() string {
	switch c {
	case DataChannel:
		return "data"
	case ResultChannel:
		return "result"
	default:
		return "unknown"
	}
}

type getFunc func(b *BFM, p *sched.Proc) (byte, error)

var channelSources = map[Channel]getFunc{
	DataChannel:   (*BFM).GetData,
	ResultChannel: (*BFM).GetResult,
}

// Monitor takes the bytes of one stream of the BFM and writes them into an
// analysis port, in the order they were observed.
type Monitor struct {
	name    string
	bfm     *BFM
	channel Channel
	get     getFunc
	port    *analysis.Port
}

// NewMonitor creates a monitor of a BFM stream.
func NewMonitor(name string, bfm *BFM, channel Channel) *Monitor {
	get, ok := channelSources[channel]
	if !ok {
		log.Panicf("monitor %s: unknown channel %d", name, channel)
	}

	return &Monitor{
		name:    name,
		bfm:     bfm,
		channel: channel,
		get:     get,
		port:    analysis.NewPort(name + ".Port"),
	}
}

// Name returns the name of the monitor.
func (m *Monitor) Name() string {
	return m.name
}

// Channel returns the stream that the monitor watches.
func (m *Monitor) Channel() Channel {
	return m.channel
}

// Port returns the port that the observed bytes are written into.
func (m *Monitor) Port() *analysis.Port {
	return m.port
}

// Start launches the monitor process.
func (m *Monitor) Start(k *sched.Kernel) *sched.Proc {
	return k.Start(m.name, m.run)
}

func (m *Monitor) run(p *sched.Proc) error {
	for {
		v, err := m.get(m.bfm, p)
		if err != nil {
			return err
		}

		m.port.Write(analysis.Item{Time: p.Now(), Value: v})
	}
}
