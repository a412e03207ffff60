package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/flashverif/scenario"
	"github.com/sarchlab/flashverif/sim"
	"github.com/sarchlab/flashverif/stimulus"
)

type fakeSource struct {
	now      sim.VTimeInSec
	progress scenario.Progress
	env      *scenario.Env
}

func (s *fakeSource) CurrentTime() sim.VTimeInSec { return s.now }

func (s *fakeSource) Progress() scenario.Progress { return s.progress }

func (s *fakeSource) Current() *scenario.Env { return s.env }

var _ = Describe("Monitor", func() {
	var (
		m      *Monitor
		source *fakeSource
		env    *scenario.Env
	)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		m.Handler().ServeHTTP(rec, req)

		return rec
	}

	BeforeEach(func() {
		env = scenario.MakeEnvBuilder().
			WithDomain(stimulus.Domain{Name: "nibble", Size: 16}).
			Build("watched")
		source = &fakeSource{
			now: 1.5e-6,
			progress: scenario.Progress{
				Total: 4, Done: 1, Failed: 1, Current: "watched",
			},
			env: env,
		}

		m = NewMonitor().WithProfileDuration(50 * time.Millisecond)
		m.RegisterRunner(source)
	})

	It("should report the simulated time", func() {
		rec := get("/api/now")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(Equal(`{"now":0.0000015000}`))
	})

	It("should report the progress of the runner", func() {
		var bars []ProgressBar

		rec := get("/api/progress")
		Expect(json.Unmarshal(rec.Body.Bytes(), &bars)).To(Succeed())

		Expect(bars).To(HaveLen(1))
		Expect(bars[0].Name).To(Equal("watched"))
		Expect(bars[0].Total).To(Equal(uint64(4)))
		Expect(bars[0].Finished).To(Equal(uint64(1)))
		Expect(bars[0].InProgress).To(Equal(uint64(1)))
		Expect(bars[0].Failed).To(Equal(uint64(1)))
	})

	It("should list the components of the current run", func() {
		var names []string

		rec := get("/api/list_components")
		Expect(json.Unmarshal(rec.Body.Bytes(), &names)).To(Succeed())

		Expect(names).To(ContainElements(
			"watched.DUT", "watched.BFM", "watched.Scoreboard",
			"watched.Sequencer"))
	})

	It("should serialize a component", func() {
		rec := get("/api/component/watched.Scoreboard")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.Len()).To(BeNumerically(">", 0))
	})

	It("should serialize a field of a component", func() {
		req, err := json.Marshal(fieldReq{
			CompName:  "watched.Scoreboard",
			FieldName: "name",
		})
		Expect(err).NotTo(HaveOccurred())

		rec := get("/api/field/" + url.PathEscape(string(req)))

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.Len()).To(BeNumerically(">", 0))
	})

	It("should not find unknown components", func() {
		rec := get("/api/component/nothing")

		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})

	It("should report the coverage of the current run", func() {
		env.Coverage().Record(3)

		var rsp coverageRsp

		rec := get("/api/coverage")
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())

		Expect(rsp.Run).To(Equal("watched"))
		Expect(rsp.DomainSize).To(Equal(16))
		Expect(rsp.Covered).To(Equal(1))
		Expect(rsp.Missing).To(HaveLen(15))
	})

	It("should report no coverage between runs", func() {
		source.env = nil

		Expect(get("/api/coverage").Code).To(Equal(http.StatusNoContent))
	})

	It("should list the BFM queues", func() {
		var rsp []bufferRsp

		rec := get("/api/hangdetector/buffers?sort=level&limit=2")
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())

		Expect(rsp).To(HaveLen(2))
	})

	It("should reject unknown sort methods", func() {
		rec := get("/api/hangdetector/buffers?sort=name")

		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("should report the resources of the process", func() {
		var rsp resourceRsp

		rec := get("/api/resource")
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())

		Expect(rsp.MemorySize).To(BeNumerically(">", 0))
	})

	It("should collect a CPU profile", func() {
		rec := get("/api/profile")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("SampleType"))
	})

	It("should serve the dashboard", func() {
		rec := get("/")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(HavePrefix("<!DOCTYPE html>"))
	})

	It("should serve over HTTP until stopped", func() {
		addr, err := m.StartServer()
		Expect(err).NotTo(HaveOccurred())

		rsp, err := http.Get(addr + "/api/now")
		Expect(err).NotTo(HaveOccurred())
		Expect(rsp.StatusCode).To(Equal(http.StatusOK))
		Expect(rsp.Body.Close()).To(Succeed())

		Expect(m.StopServer()).To(Succeed())
	})
})

var _ = Describe("Buffer selection", func() {
	buffers := func() []sim.Buffer {
		small := sim.NewBuffer("small", 2)
		small.Push(1)

		large := sim.NewBuffer("large", 10)
		large.Push(1)
		large.Push(2)

		unbounded := sim.NewBuffer("unbounded", 0)
		unbounded.Push(1)
		unbounded.Push(2)
		unbounded.Push(3)

		return []sim.Buffer{large, unbounded, small}
	}

	names := func(bs []sim.Buffer) []string {
		out := []string{}
		for _, b := range bs {
			out = append(out, b.Name())
		}

		return out
	}

	It("should sort by fill ratio", func() {
		Expect(names(sortAndSelectBuffers(buffers(), "percent", 0, 0))).
			To(Equal([]string{"small", "large", "unbounded"}))
	})

	It("should sort by level", func() {
		Expect(names(sortAndSelectBuffers(buffers(), "level", 0, 0))).
			To(Equal([]string{"unbounded", "large", "small"}))
	})

	It("should page", func() {
		Expect(names(sortAndSelectBuffers(buffers(), "level", 1, 1))).
			To(Equal([]string{"large"}))
		Expect(sortAndSelectBuffers(buffers(), "level", 1, 5)).To(BeEmpty())
	})
})
