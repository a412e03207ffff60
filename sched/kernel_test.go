package sched

import (
	"bytes"
	"errors"
	"log"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/flashverif/signal"
	"github.com/sarchlab/flashverif/sim"
)

var _ = Describe("Kernel", func() {
	var (
		engine *sim.SerialEngine
		kernel *Kernel
		clk    *signal.Signal
		clock  *signal.Clock
	)

	BeforeEach(func() {
		engine = sim.NewSerialEngine()
		kernel = NewKernel(engine)
		clk = signal.New("clk", 1)
		clock = signal.NewClock("Clock", engine, 100*sim.MHz, clk)
	})

	AfterEach(func() {
		kernel.Shutdown()
	})

	It("should run a process to completion", func() {
		ran := false
		p := kernel.Start("p", func(p *Proc) error {
			ran = true
			return nil
		})

		Expect(engine.Run()).To(Succeed())

		Expect(ran).To(BeTrue())
		Expect(p.Finished()).To(BeTrue())
		Expect(p.Err()).To(BeNil())
	})

	It("should resume processes on clock edges", func() {
		var times []sim.VTimeInSec
		kernel.Start("p", func(p *Proc) error {
			for i := 0; i < 3; i++ {
				if err := p.Await(RisingEdge(clk)); err != nil {
					return err
				}
				times = append(times, p.Now())
			}
			clock.Stop()
			return nil
		})

		clock.Start()
		Expect(engine.Run()).To(Succeed())

		Expect(times).To(HaveLen(3))
		Expect(float64(times[1] - times[0])).To(
			BeNumerically("~", 10e-9, 1e-15))
	})

	It("should let modeled logic sample before processes drive", func() {
		in := signal.New("in", 8)
		var sampled []uint64
		clk.Listen(signal.ListenerFunc(func(c signal.Change) {
			if c.New == 1 {
				sampled = append(sampled, in.Value())
			}
		}))

		kernel.Start("driver", func(p *Proc) error {
			for i := 1; i <= 3; i++ {
				if err := p.Await(RisingEdge(clk)); err != nil {
					return err
				}
				in.Set(uint64(i))
			}
			if err := p.Await(RisingEdge(clk)); err != nil {
				return err
			}
			clock.Stop()
			return nil
		})

		clock.Start()
		Expect(engine.Run()).To(Succeed())

		Expect(sampled).To(Equal([]uint64{0, 0, 1, 2, 3}))
	})

	It("should count clock cycles", func() {
		var cycles uint64
		kernel.Start("p", func(p *Proc) error {
			if err := p.Await(RisingEdge(clk)); err != nil {
				return err
			}
			start := clock.Cycles()
			if err := p.Await(ClockCycles(clk, 5)); err != nil {
				return err
			}
			cycles = clock.Cycles() - start
			clock.Stop()
			return nil
		})

		clock.Start()
		Expect(engine.Run()).To(Succeed())

		Expect(cycles).To(Equal(uint64(5)))
	})

	It("should fire timers", func() {
		var at sim.VTimeInSec
		kernel.Start("p", func(p *Proc) error {
			if err := p.Await(Timer(3e-9)); err != nil {
				return err
			}
			at = p.Now()
			return nil
		})

		Expect(engine.Run()).To(Succeed())

		Expect(float64(at)).To(BeNumerically("~", 3e-9, 1e-18))
	})

	It("should report which trigger fired first", func() {
		never := NewEvent("never")
		index := -1
		kernel.Start("p", func(p *Proc) error {
			var err error
			index, err = p.AwaitFirst(never.Wait(), Timer(1e-9))
			return err
		})

		Expect(engine.Run()).To(Succeed())

		Expect(index).To(Equal(1))
	})

	It("should time out bounded waits", func() {
		never := signal.New("never", 1)
		var err error
		kernel.Start("p", func(p *Proc) error {
			err = p.AwaitWithin(RisingEdge(never), clk, 4)
			clock.Stop()
			return nil
		})

		clock.Start()
		Expect(engine.Run()).To(Succeed())

		Expect(errors.Is(err, ErrTimeout)).To(BeTrue())
	})

	It("should join processes and pass their errors", func() {
		failure := errors.New("child failed")
		var joined error
		kernel.Start("parent", func(p *Proc) error {
			child := p.Spawn("child", func(c *Proc) error {
				if err := c.Await(Timer(1e-9)); err != nil {
					return err
				}
				return failure
			})
			joined = p.Await(Join(child))
			return nil
		})

		Expect(engine.Run()).To(Succeed())

		Expect(joined).To(MatchError(failure))
		Expect(kernel.Errors()).To(ConsistOf(failure))
	})

	It("should turn panics into errors", func() {
		p := kernel.Start("p", func(p *Proc) error {
			panic("boom")
		})

		Expect(engine.Run()).To(Succeed())

		Expect(p.Err()).To(MatchError(ContainSubstring("boom")))
	})

	It("should kill suspended processes on shutdown", func() {
		never := NewEvent("never")
		reached := false
		p := kernel.Start("p", func(p *Proc) error {
			_ = p.Await(never.Wait())
			reached = true
			return nil
		})

		Expect(engine.Run()).To(Succeed())
		kernel.Shutdown()

		Expect(p.Finished()).To(BeTrue())
		Expect(reached).To(BeFalse())
		Expect(p.Err()).To(BeNil())
	})

	It("should panic when awaiting outside the process", func() {
		var proc *Proc
		kernel.Start("p", func(p *Proc) error {
			proc = p
			return nil
		})
		Expect(engine.Run()).To(Succeed())

		Expect(func() { _ = proc.Await(Timer(1)) }).To(Panic())
	})

	It("should log process start and end", func() {
		buf := new(bytes.Buffer)
		kernel.AcceptHook(NewProcLogger(log.New(buf, "", 0)))

		kernel.Start("worker", func(p *Proc) error { return nil })
		Expect(engine.Run()).To(Succeed())

		Expect(buf.String()).To(ContainSubstring("process worker started"))
		Expect(buf.String()).To(ContainSubstring("process worker finished"))
	})
})
