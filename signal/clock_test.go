package signal

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/flashverif/sim"
)

type edgeRecorder struct {
	engine sim.Engine
	rises  []sim.VTimeInSec
	falls  []sim.VTimeInSec
}

func (r *edgeRecorder) OnChange(c Change) {
	if c.New == 1 {
		r.rises = append(r.rises, r.engine.CurrentTime())
	} else {
		r.falls = append(r.falls, r.engine.CurrentTime())
	}
}

var _ = Describe("Clock", func() {
	var (
		engine *sim.SerialEngine
		clk    *Signal
		clock  *Clock
		rec    *edgeRecorder
	)

	BeforeEach(func() {
		engine = sim.NewSerialEngine()
		clk = New("clk", 1)
		clock = NewClock("Clock", engine, 100*sim.MHz, clk)
		rec = &edgeRecorder{engine: engine}
		clk.Listen(rec)
	})

	It("should toggle at the clock frequency", func() {
		clk.Listen(ListenerFunc(func(c Change) {
			if clock.Cycles() == 3 && c.New == 0 {
				clock.Stop()
			}
		}))

		clock.Start()
		Expect(engine.Run()).To(Succeed())

		Expect(rec.rises).To(HaveLen(3))
		Expect(rec.falls).To(HaveLen(3))
		Expect(float64(rec.rises[0])).To(BeNumerically("~", 0, 1e-15))
		Expect(float64(rec.falls[0])).To(BeNumerically("~", 5e-9, 1e-15))
		Expect(float64(rec.rises[2])).To(BeNumerically("~", 20e-9, 1e-15))
		Expect(clock.Running()).To(BeFalse())
	})

	It("should not double schedule when started twice", func() {
		clk.Listen(ListenerFunc(func(c Change) {
			if clock.Cycles() == 2 && c.New == 0 {
				clock.Stop()
			}
		}))

		clock.Start()
		clock.Start()
		Expect(engine.Run()).To(Succeed())

		Expect(rec.rises).To(HaveLen(2))
	})
})
