package tracing

import (
	"bytes"
	"encoding/json"

	"github.com/sarchlab/flashverif/sim"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

var _ = Describe("StepCountTracer", func() {
	It("should count steps and tasks with steps", func() {
		t := NewStepCountTracer(KindIs("bus_read"))

		t.StartTask(Task{ID: "1", Kind: "bus_read"})
		t.StartTask(Task{ID: "2", Kind: "bus_read"})
		t.StartTask(Task{ID: "3", Kind: "bus_write"})

		t.StepTask(Task{ID: "1", Steps: []TaskStep{{What: "retry"}}})
		t.StepTask(Task{ID: "1", Steps: []TaskStep{{What: "retry"}}})
		t.StepTask(Task{ID: "2", Steps: []TaskStep{{What: "retry"}}})
		t.StepTask(Task{ID: "2", Steps: []TaskStep{{What: "ack"}}})
		t.StepTask(Task{ID: "3", Steps: []TaskStep{{What: "ack"}}})

		Expect(t.GetStepNames()).To(Equal([]string{"retry", "ack"}))
		Expect(t.GetStepCount("retry")).To(Equal(uint64(3)))
		Expect(t.GetTaskCount("retry")).To(Equal(uint64(2)))
		Expect(t.GetStepCount("ack")).To(Equal(uint64(1)))
		Expect(t.GetTaskCount("ack")).To(Equal(uint64(1)))
	})
})

var _ = Describe("LatencyTracer", func() {
	var (
		mockCtrl   *gomock.Controller
		timeTeller *MockTimeTeller
		t          *LatencyTracer
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		timeTeller = NewMockTimeTeller(mockCtrl)
		t = NewLatencyTracer(timeTeller, nil)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should report zero without tasks", func() {
		Expect(t.AverageTime()).To(Equal(sim.VTimeInSec(0)))
		Expect(t.TotalCount()).To(Equal(uint64(0)))
	})

	It("should collect latency statistics", func() {
		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(1))
		t.StartTask(Task{ID: "1"})
		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(2))
		t.StartTask(Task{ID: "2"})

		Expect(t.InFlight()).To(Equal(2))

		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(3))
		t.EndTask(Task{ID: "1"})
		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(6))
		t.EndTask(Task{ID: "2"})

		Expect(t.TotalCount()).To(Equal(uint64(2)))
		Expect(t.TotalTime()).To(Equal(sim.VTimeInSec(6)))
		Expect(t.AverageTime()).To(Equal(sim.VTimeInSec(3)))
		Expect(t.MaxTime()).To(Equal(sim.VTimeInSec(4)))
		Expect(t.MaxInFlight()).To(Equal(2))
		Expect(t.InFlight()).To(Equal(0))
	})

	It("should ignore tasks that never started", func() {
		t.EndTask(Task{ID: "unknown"})

		Expect(t.TotalCount()).To(Equal(uint64(0)))
	})
})

var _ = Describe("JSONTracer", func() {
	var (
		mockCtrl   *gomock.Controller
		timeTeller *MockTimeTeller
		buf        *bytes.Buffer
		t          *JSONTracer
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		timeTeller = NewMockTimeTeller(mockCtrl)
		buf = new(bytes.Buffer)
		t = NewJSONTracer(buf, timeTeller)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should write an empty array", func() {
		Expect(t.Finish()).To(Succeed())

		var tasks []Task
		Expect(json.Unmarshal(buf.Bytes(), &tasks)).To(Succeed())
		Expect(tasks).To(BeEmpty())
	})

	It("should write finished tasks with their steps", func() {
		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(1))
		t.StartTask(Task{ID: "1", Kind: "bus_write", What: "reg0"})
		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(2))
		t.StepTask(Task{ID: "1", Steps: []TaskStep{{What: "ack"}}})
		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(3))
		t.EndTask(Task{ID: "1"})

		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(4))
		t.StartTask(Task{ID: "2", Kind: "bus_read", What: "reg5"})
		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(5))
		t.EndTask(Task{ID: "2"})

		Expect(t.Finish()).To(Succeed())

		var tasks []Task
		Expect(json.Unmarshal(buf.Bytes(), &tasks)).To(Succeed())
		Expect(tasks).To(HaveLen(2))
		Expect(tasks[0].ID).To(Equal("1"))
		Expect(tasks[0].StartTime).To(Equal(sim.VTimeInSec(1)))
		Expect(tasks[0].EndTime).To(Equal(sim.VTimeInSec(3)))
		Expect(tasks[0].Steps).To(HaveLen(1))
		Expect(tasks[0].Steps[0].Time).To(Equal(sim.VTimeInSec(2)))
		Expect(tasks[1].What).To(Equal("reg5"))
	})
})

var _ = Describe("DBTracer", func() {
	var (
		mockCtrl   *gomock.Controller
		timeTeller *MockTimeTeller
		recorder   *MockDataRecorder
		t          *DBTracer
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		timeTeller = NewMockTimeTeller(mockCtrl)
		recorder = NewMockDataRecorder(mockCtrl)

		recorder.EXPECT().CreateTable(TaskTable, TaskEntry{})
		t = NewDBTracer(timeTeller, recorder)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should write a finished task", func() {
		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(1))
		t.StartTask(Task{
			ID:       "1",
			Kind:     "bus_write",
			What:     "reg7",
			Location: "BFM",
		})
		t.StepTask(Task{ID: "1", Steps: []TaskStep{{What: "ack"}}})

		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(2))
		recorder.EXPECT().InsertData(TaskTable, TaskEntry{
			ID:        "1",
			Kind:      "bus_write",
			What:      "reg7",
			Location:  "BFM",
			StartTime: 1,
			EndTime:   2,
			Steps:     1,
		})
		t.EndTask(Task{ID: "1"})
	})

	It("should panic on incomplete tasks", func() {
		Expect(func() { t.StartTask(Task{ID: "1"}) }).To(Panic())
	})

	It("should flush on terminate", func() {
		recorder.EXPECT().Flush()
		t.Terminate()
	})
})
