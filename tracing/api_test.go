package tracing

import (
	"github.com/sarchlab/flashverif/sim"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

var _ = Describe("API", func() {
	var (
		mockCtrl *gomock.Controller
		domain   *MockNamedHookable
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		domain = NewMockNamedHookable(mockCtrl)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should not invoke hooks when nothing is attached", func() {
		domain.EXPECT().NumHooks().Return(0).Times(3)

		StartTask("1", "", domain, "bus_write", "reg0", nil)
		AddTaskStep("1", domain, "ack")
		EndTask("1", domain)
	})

	It("should start a task at the domain", func() {
		domain.EXPECT().NumHooks().Return(1)
		domain.EXPECT().Name().Return("BFM").AnyTimes()
		domain.EXPECT().InvokeHook(gomock.Any()).Do(func(ctx sim.HookCtx) {
			Expect(ctx.Pos).To(BeIdenticalTo(HookPosTaskStart))

			task := ctx.Item.(Task)
			Expect(task.ID).To(Equal("1"))
			Expect(task.ParentID).To(Equal("0"))
			Expect(task.Kind).To(Equal("bus_write"))
			Expect(task.What).To(Equal("reg0"))
			Expect(task.Location).To(Equal("BFM"))
		})

		StartTask("1", "0", domain, "bus_write", "reg0", nil)
	})

	It("should panic when a required field is missing", func() {
		domain.EXPECT().NumHooks().Return(1).AnyTimes()
		domain.EXPECT().Name().Return("BFM").AnyTimes()

		Expect(func() {
			StartTask("", "", domain, "bus_write", "reg0", nil)
		}).To(Panic())
		Expect(func() {
			StartTask("1", "", domain, "", "reg0", nil)
		}).To(Panic())
		Expect(func() {
			StartTask("1", "", domain, "bus_write", "", nil)
		}).To(Panic())
	})

	It("should report steps and ends", func() {
		domain.EXPECT().NumHooks().Return(1).Times(2)
		domain.EXPECT().InvokeHook(gomock.Any()).Do(func(ctx sim.HookCtx) {
			Expect(ctx.Pos).To(BeIdenticalTo(HookPosTaskStep))
			Expect(ctx.Item.(Task).Steps[0].What).To(Equal("ack"))
		})
		AddTaskStep("1", domain, "ack")

		domain.EXPECT().InvokeHook(gomock.Any()).Do(func(ctx sim.HookCtx) {
			Expect(ctx.Pos).To(BeIdenticalTo(HookPosTaskEnd))
			Expect(ctx.Item.(Task).ID).To(Equal("1"))
		})
		EndTask("1", domain)
	})

	It("should refuse to attach the same tracer twice", func() {
		var hooks []sim.Hook
		domain.EXPECT().Name().Return("BFM").AnyTimes()
		domain.EXPECT().Hooks().DoAndReturn(func() []sim.Hook {
			return hooks
		}).AnyTimes()
		domain.EXPECT().AcceptHook(gomock.Any()).Do(func(h sim.Hook) {
			hooks = append(hooks, h)
		})

		tracer := NewStepCountTracer(nil)
		CollectTrace(domain, tracer)

		Expect(func() { CollectTrace(domain, tracer) }).To(Panic())
	})
})
