package tracing

import (
	"github.com/sarchlab/flashverif/sim"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

var _ = Describe("BusyTimeTracer", func() {
	var (
		mockCtrl   *gomock.Controller
		timeTeller *MockTimeTeller
		t          *BusyTimeTracer
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		timeTeller = NewMockTimeTeller(mockCtrl)

		t = NewBusyTimeTracer(timeTeller, nil)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	at := func(time float64) {
		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(time))
	}

	It("should track busy time, one task", func() {
		at(1)
		t.StartTask(Task{ID: "1"})
		at(2)
		t.EndTask(Task{ID: "1"})

		Expect(t.BusyTime()).To(Equal(sim.VTimeInSec(1.0)))
	})

	It("should track busy time, two tasks", func() {
		at(1)
		t.StartTask(Task{ID: "1"})
		at(2)
		t.EndTask(Task{ID: "1"})
		at(3)
		t.StartTask(Task{ID: "2"})
		at(4)
		t.EndTask(Task{ID: "2"})

		Expect(t.BusyTime()).To(Equal(sim.VTimeInSec(2.0)))
	})

	It("should track busy time, two tasks adjacent", func() {
		at(1)
		t.StartTask(Task{ID: "1"})
		at(2)
		t.EndTask(Task{ID: "1"})
		at(2)
		t.StartTask(Task{ID: "2"})
		at(3)
		t.EndTask(Task{ID: "2"})

		Expect(t.BusyTime()).To(Equal(sim.VTimeInSec(2.0)))
	})

	It("should count overlapping time once", func() {
		at(1)
		t.StartTask(Task{ID: "1"})
		at(1.5)
		t.StartTask(Task{ID: "2"})
		at(2)
		t.EndTask(Task{ID: "1"})
		at(2.5)
		t.EndTask(Task{ID: "2"})

		Expect(t.BusyTime()).To(Equal(sim.VTimeInSec(1.5)))
	})

	It("should not count a task twice when queried while it overlaps", func() {
		at(1)
		t.StartTask(Task{ID: "1"})
		at(1.5)
		t.StartTask(Task{ID: "2"})
		at(2)
		t.EndTask(Task{ID: "1"})

		Expect(t.BusyTime()).To(Equal(sim.VTimeInSec(0)))

		at(2.5)
		t.StartTask(Task{ID: "3"})
		at(3)
		t.EndTask(Task{ID: "2"})
		at(3.5)
		t.EndTask(Task{ID: "3"})

		Expect(t.BusyTime()).To(Equal(sim.VTimeInSec(2.5)))
	})

	It("should track busy time, four tasks", func() {
		at(1)
		t.StartTask(Task{ID: "1"})
		at(1.1)
		t.StartTask(Task{ID: "2"})
		at(1.2)
		t.EndTask(Task{ID: "2"})
		at(1.9)
		t.StartTask(Task{ID: "3"})
		at(2)
		t.EndTask(Task{ID: "1"})
		at(2.1)
		t.EndTask(Task{ID: "3"})
		at(3.1)
		t.StartTask(Task{ID: "4"})
		at(3.2)
		t.EndTask(Task{ID: "4"})

		Expect(float64(t.BusyTime())).To(BeNumerically("~", 1.2, 1e-9))
	})

	It("should be able to terminate all the tasks", func() {
		at(1)
		t.StartTask(Task{ID: "1"})
		at(1.1)
		t.StartTask(Task{ID: "2"})
		at(1.9)
		t.StartTask(Task{ID: "3"})
		at(2.1)
		t.EndTask(Task{ID: "3"})

		t.TerminateAllTasks(3.5)

		Expect(float64(t.BusyTime())).To(BeNumerically("~", 2.5, 0.01))
	})

	It("should ignore tasks that the filter rejects", func() {
		t = NewBusyTimeTracer(timeTeller, KindIs("bus_write"))

		t.StartTask(Task{ID: "1", Kind: "bus_read"})
		t.EndTask(Task{ID: "1"})

		Expect(t.BusyTime()).To(Equal(sim.VTimeInSec(0)))
	})
})
