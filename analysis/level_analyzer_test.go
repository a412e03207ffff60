package analysis

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/flashverif/sim"
)

var _ = Describe("LevelAnalyzer", func() {
	var (
		mockCtrl   *gomock.Controller
		timeTeller *MockTimeTeller
		logger     *MockPerfLogger
		buffer     *MockBuffer
		analyzer   *LevelAnalyzer
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		timeTeller = NewMockTimeTeller(mockCtrl)
		logger = NewMockPerfLogger(mockCtrl)
		buffer = NewMockBuffer(mockCtrl)
		buffer.EXPECT().Name().Return("Buffer").AnyTimes()
		buffer.EXPECT().AcceptHook(gomock.Any())

		analyzer = MakeLevelAnalyzerBuilder().
			WithPerfLogger(logger).
			WithTimeTeller(timeTeller).
			WithPeriod(1).
			WithBuffer(buffer).
			Build()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should calculate average buffer level", func() {
		timeTeller.EXPECT().
			CurrentTime().
			Return(sim.VTimeInSec(0.1))
		buffer.EXPECT().Size().Return(1)

		analyzer.Func(sim.HookCtx{
			Domain: buffer,
			Pos:    sim.HookPosBufPush,
		})

		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(1.1)).AnyTimes()
		buffer.EXPECT().Size().Return(0)
		logger.EXPECT().AddDataEntry(PerfEntry{
			Start:     0.0,
			End:       1.0,
			Where:     "Buffer",
			What:      "Level",
			EntryType: "Buffer",
			Value:     0.9,
		})

		analyzer.Func(sim.HookCtx{
			Domain: buffer,
			Pos:    sim.HookPosBufPop,
		})

		Expect(analyzer.PeakLevel()).To(Equal(1))
	})

	It("should report multiple periods together", func() {
		timeTeller.EXPECT().
			CurrentTime().
			Return(sim.VTimeInSec(0.1))
		buffer.EXPECT().Size().Return(1)

		analyzer.Func(sim.HookCtx{
			Domain: buffer,
			Pos:    sim.HookPosBufPush,
		})

		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(2.1)).AnyTimes()
		buffer.EXPECT().Size().Return(1)
		logger.EXPECT().AddDataEntry(PerfEntry{
			Start:     0.0,
			End:       1.0,
			Where:     "Buffer",
			What:      "Level",
			EntryType: "Buffer",
			Value:     0.9,
		})
		logger.EXPECT().AddDataEntry(PerfEntry{
			Start:     1.0,
			End:       2.0,
			Where:     "Buffer",
			What:      "Level",
			EntryType: "Buffer",
			Value:     1,
		})

		analyzer.Func(sim.HookCtx{
			Domain: buffer,
			Pos:    sim.HookPosBufPush,
		})
	})

	It("should ignore other hook positions", func() {
		analyzer.Func(sim.HookCtx{
			Domain: buffer,
			Pos:    sim.HookPosBeforeEvent,
		})
	})
})

var _ = Describe("LevelAnalyzer on a real buffer", func() {
	It("should track the peak and average level", func() {
		engine := sim.NewSerialEngine()
		buf := sim.NewBuffer("Slot", 0)
		backend := &MemoryBackend{}
		analyzer := MakeLevelAnalyzerBuilder().
			WithPerfLogger(backend).
			WithTimeTeller(engine).
			WithBuffer(buf).
			Build()

		buf.Push(1)
		buf.Push(2)
		buf.Pop()

		Expect(analyzer.PeakLevel()).To(Equal(2))

		analyzer.Report()
		Expect(backend.Entries).To(ContainElement(PerfEntry{
			Start:     0,
			End:       0,
			Where:     "Slot",
			What:      "PeakLevel",
			EntryType: "Buffer",
			Value:     2,
		}))
	})
})
