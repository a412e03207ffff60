package bfm

import (
	"bytes"
	"errors"
	"log"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/flashverif/analysis"
	"github.com/sarchlab/flashverif/dut"
	"github.com/sarchlab/flashverif/flash"
	"github.com/sarchlab/flashverif/sched"
	"github.com/sarchlab/flashverif/signal"
	"github.com/sarchlab/flashverif/sim"
	"github.com/sarchlab/flashverif/tracing"
)

var _ = Describe("BFM", func() {
	var (
		engine *sim.SerialEngine
		kernel *sched.Kernel
	)

	BeforeEach(func() {
		engine = sim.NewSerialEngine()
		kernel = sched.NewKernel(engine)
	})

	AfterEach(func() {
		kernel.Shutdown()
	})

	build := func(v dut.Variant) (*dut.Device, *BFM) {
		d := dut.MakeBuilder().
			WithEngine(engine).
			WithVariant(v).
			Build("DUT")
		b := MakeBuilder().
			WithKernel(kernel).
			WithPins(v, d.Pins()).
			Build("BFM")

		return d, b
	}

	run := func(clock *signal.Clock, b *BFM, body func(p *sched.Proc) error) {
		b.Start()

		p := kernel.Start("test", func(p *sched.Proc) error {
			defer clock.Stop()

			if err := b.Reset(p); err != nil {
				return err
			}

			return body(p)
		})

		clock.Start()
		Expect(engine.Run()).To(Succeed())
		Expect(p.Finished()).To(BeTrue())
		Expect(p.Err()).NotTo(HaveOccurred())
	}

	for _, v := range []dut.Variant{dut.StrobeBus, dut.AXIBus} {
		v := v

		Context("on the "+v.String()+" bus", func() {
			It("should program and read back through the streams", func() {
				d, b := build(v)
				ops := NewFlashOps(b)

				var got byte
				var polls int
				var data []byte

				run(d.Clock(), b, func(p *sched.Proc) error {
					if err := ops.ProgramPage(p, 0x21, 0x5a); err != nil {
						return err
					}

					var err error
					polls, err = ops.WaitReady(p)
					if err != nil {
						return err
					}

					got, err = ops.ReadData(p, 0x21)
					if err != nil {
						return err
					}

					v, err := b.GetData(p)
					data = append(data, v)

					return err
				})

				Expect(got).To(Equal(byte(0x5a)))
				Expect(d.Memory().Read(0x21)).To(Equal(byte(0x5a)))
				Expect(data).To(Equal([]byte{0x5a}))
				Expect(polls).To(BeNumerically(">=", 1))
				Expect(b.results.Len()).To(Equal(polls + 1))
				Expect(b.Timeouts()).To(BeZero())
			})

			It("should read registers back", func() {
				d, b := build(v)

				var got byte

				run(d.Clock(), b, func(p *sched.Proc) error {
					err := b.Write(p, flash.RegAddrMid, 0x42)
					if err != nil {
						return err
					}

					got, err = b.Read(p, flash.RegAddrMid)

					return err
				})

				Expect(got).To(Equal(byte(0x42)))
				Expect(b.Issued()).To(Equal(uint64(2)))
			})
		})
	}

	It("should carry one transaction at a time", func() {
		d, b := build(dut.StrobeBus)

		maxInFlight := 0
		d.Pins().Clk.Listen(signal.ListenerFunc(func(signal.Change) {
			if b.InFlight() > maxInFlight {
				maxInFlight = b.InFlight()
			}
		}))

		run(d.Clock(), b, func(p *sched.Proc) error {
			writers := make([]*sched.Proc, 0, 3)
			for i := 0; i < 3; i++ {
				reg := flash.AddressRegisters()[i]
				value := byte(i + 1)
				writers = append(writers, p.Spawn("writer",
					func(p *sched.Proc) error {
						return b.Write(p, reg, value)
					}))
			}

			for _, w := range writers {
				if err := p.Await(sched.Join(w)); err != nil {
					return err
				}
			}

			return nil
		})

		Expect(maxInFlight).To(Equal(1))
		Expect(b.Pending().PeakLen()).To(Equal(1))
		Expect(b.Issued()).To(Equal(uint64(3)))
	})

	It("should time out when nothing acknowledges", func() {
		pins := dut.NewPins(dut.StrobeBus)
		clock := signal.NewClock("Clock", engine, 100*sim.MHz, pins.Clk)
		b := MakeBuilder().
			WithKernel(kernel).
			WithPins(dut.StrobeBus, pins).
			WithDeadline(10).
			Build("BFM")

		var err error
		run(clock, b, func(p *sched.Proc) error {
			err = b.Write(p, flash.RegOpcode, byte(flash.WriteEnable))
			return nil
		})

		Expect(errors.Is(err, sched.ErrTimeout)).To(BeTrue())
		Expect(b.Timeouts()).To(Equal(uint64(1)))
		Expect(pins.Strobe.Stb.High()).To(BeFalse())
		Expect(b.InFlight()).To(BeZero())
	})

	It("should republish streams through monitors", func() {
		d, b := build(dut.StrobeBus)
		ops := NewFlashOps(b)

		dataMon := NewMonitor("DataMonitor", b, DataChannel)
		resultMon := NewMonitor("ResultMonitor", b, ResultChannel)
		dataFIFO := analysis.NewFIFO("data")
		resultFIFO := analysis.NewFIFO("result")
		dataMon.Port().Connect(dataFIFO)
		resultMon.Port().Connect(resultFIFO)
		dataMon.Start(kernel)
		resultMon.Start(kernel)

		run(d.Clock(), b, func(p *sched.Proc) error {
			if err := ops.ProgramBurst(p, 0x40, []byte{1, 2, 3}); err != nil {
				return err
			}

			if _, err := ops.WaitReady(p); err != nil {
				return err
			}

			_, err := ops.FastRead(p, 0x40, 3)

			return err
		})

		values := func(items []analysis.Item) []byte {
			out := make([]byte, 0, len(items))
			for _, item := range items {
				out = append(out, item.Value.(byte))
			}

			return out
		}

		Expect(values(dataFIFO.Drain())).To(Equal([]byte{1, 2, 3}))

		results := values(resultFIFO.Drain())
		Expect(results[len(results)-3:]).To(Equal([]byte{1, 2, 3}))
	})

	It("should log and trace transactions", func() {
		d, b := build(dut.StrobeBus)

		buf := new(bytes.Buffer)
		b.AcceptHook(NewTransactionLogger(log.New(buf, "", 0), engine))

		latency := tracing.NewLatencyTracer(engine,
			tracing.KindIs(TaskKindRead))
		tracing.CollectTrace(b, latency)

		run(d.Clock(), b, func(p *sched.Proc) error {
			if err := b.Write(p, flash.RegAddrLow, 7); err != nil {
				return err
			}

			_, err := b.Read(p, flash.RegAddrLow)

			return err
		})

		Expect(buf.String()).To(ContainSubstring("write ADDR_L=0x07"))
		Expect(buf.String()).To(ContainSubstring("read ADDR_L -> 0x07"))
		Expect(latency.TotalCount()).To(Equal(uint64(1)))
		Expect(latency.AverageTime()).To(BeNumerically(">", 0))
	})

	It("should refuse transactions before start", func() {
		_, b := build(dut.StrobeBus)

		p := kernel.Start("test", func(p *sched.Proc) error {
			return b.Write(p, flash.RegOpcode, 0)
		})

		Expect(engine.Run()).To(Succeed())
		Expect(p.Err()).To(HaveOccurred())
	})
})
