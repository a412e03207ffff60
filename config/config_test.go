package config_test

import (
	"bytes"
	"log"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/flashverif/config"
	"github.com/sarchlab/flashverif/datarecording"
	"github.com/sarchlab/flashverif/dut"
	"github.com/sarchlab/flashverif/flash"
)

func lookupIn(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, found := env[key]
		return v, found
	}
}

var _ = Describe("Config", func() {
	It("should run every scenario by default", func() {
		c := config.Default()

		Expect(c.Scenarios).To(HaveLen(9))
		Expect(c.Grades).To(Equal([]string{"33-75"}))
		Expect(c.Variants).To(Equal([]string{"strobe"}))
		Expect(c.Validate()).To(Succeed())
	})

	It("should apply environment variables", func() {
		c := config.Default()

		err := c.Apply(lookupIn(map[string]string{
			"FLASHVERIF_SCENARIOS":    "single_rw, status_reg",
			"FLASHVERIF_GRADES":       "33-75,20-25",
			"FLASHVERIF_VARIANTS":     "axi",
			"FLASHVERIF_REPETITIONS":  "single_rw=3,status_reg=2",
			"FLASHVERIF_SYS_FREQ_MHZ": "50",
			"FLASHVERIF_SEED":         "0x10",
			"FLASHVERIF_MAX_CYCLES":   "100000",
			"FLASHVERIF_DB_BACKEND":   "clickhouse",
			"FLASHVERIF_MONITOR_PORT": "8080",
		}))

		Expect(err).NotTo(HaveOccurred())
		Expect(c.Scenarios).To(Equal([]string{"single_rw", "status_reg"}))
		Expect(c.Grades).To(Equal([]string{"33-75", "20-25"}))
		Expect(c.Variants).To(Equal([]string{"axi"}))
		Expect(c.Repetitions).To(Equal(map[string]int{
			"single_rw": 3, "status_reg": 2,
		}))
		Expect(c.SysFreqMHz).To(Equal(50.0))
		Expect(c.Seed).To(Equal(int64(16)))
		Expect(c.MaxCycles).To(Equal(uint64(100000)))
		Expect(c.Recorder.Backend).To(Equal(datarecording.ClickHouseBackend))
		Expect(c.MonitorPort).To(Equal(8080))
		Expect(c.Validate()).To(Succeed())
	})

	It("should honor the coverage error switch", func() {
		c := config.Default()

		Expect(c.Apply(lookupIn(map[string]string{
			"DISABLE_COVERAGE_ERRORS": "1",
		}))).To(Succeed())
		Expect(c.DisableCoverage).To(BeTrue())
	})

	It("should report every malformed variable", func() {
		c := config.Default()

		err := c.Apply(lookupIn(map[string]string{
			"FLASHVERIF_SEED":        "one",
			"FLASHVERIF_TX_LOG":      "maybe",
			"FLASHVERIF_REPETITIONS": "single_rw",
		}))

		Expect(err).To(MatchError(config.ErrInvalid))
		Expect(err.Error()).To(ContainSubstring("FLASHVERIF_SEED"))
		Expect(err.Error()).To(ContainSubstring("FLASHVERIF_TX_LOG"))
		Expect(err.Error()).To(ContainSubstring("FLASHVERIF_REPETITIONS"))
	})

	It("should reject unknown names", func() {
		c := config.Default()
		c.Scenarios = []string{"single_rw", "chip_select"}
		c.Grades = []string{"40-80"}
		c.Variants = []string{"spi"}
		c.Repetitions = map[string]int{"single_rw": 0}
		c.Recorder.Backend = "postgres"

		err := c.Validate()

		Expect(err).To(MatchError(config.ErrInvalid))
		Expect(err.Error()).To(ContainSubstring("chip_select"))
		Expect(err.Error()).To(ContainSubstring("40-80"))
		Expect(err.Error()).To(ContainSubstring("spi"))
		Expect(err.Error()).To(ContainSubstring("single_rw must be positive"))
		Expect(err.Error()).To(ContainSubstring("postgres"))
	})

	It("should reject empty selections and bad timing", func() {
		c := config.Default()
		c.Scenarios = nil
		c.SysFreqMHz = 0
		c.Deadline = -1

		err := c.Validate()

		Expect(err.Error()).To(ContainSubstring("no scenario selected"))
		Expect(err.Error()).To(ContainSubstring("system frequency"))
		Expect(err.Error()).To(ContainSubstring("deadline"))
	})

	It("should resolve the selections", func() {
		c := config.Default()
		c.Grades = []string{"20-25", "25-50"}
		c.Variants = []string{"strobe", "axi"}
		c.Scenarios = []string{"status_reg"}

		grades, err := c.SpeedGrades()
		Expect(err).NotTo(HaveOccurred())
		Expect(grades).To(Equal([]flash.SpeedGrade{
			flash.Grade20x25, flash.Grade25x50,
		}))

		variants, err := c.BusVariants()
		Expect(err).NotTo(HaveOccurred())
		Expect(variants).To(Equal([]dut.Variant{dut.StrobeBus, dut.AXIBus}))

		scenarios, err := c.SelectedScenarios()
		Expect(err).NotTo(HaveOccurred())
		Expect(scenarios).To(HaveLen(1))
		Expect(scenarios[0].Name).To(Equal("status_reg"))
	})

	It("should build a runner that runs the selection", func() {
		out := new(bytes.Buffer)

		c := config.Default()
		c.Scenarios = []string{"status_reg"}
		c.Variants = []string{"axi"}
		c.Repetitions = map[string]int{"status_reg": 1}

		r, err := c.Runner(c.EnvBuilder(), log.New(out, "", 0))
		Expect(err).NotTo(HaveOccurred())

		results := r.Run()

		Expect(results).To(HaveLen(1))
		Expect(results[0].Passed()).To(BeTrue())
		Expect(results[0].Repetitions).To(Equal(1))
		Expect(out.String()).To(ContainSubstring("PASS status_reg[33-75,axi]"))
	})

	It("should not build a runner for an invalid config", func() {
		c := config.Default()
		c.Variants = []string{"spi"}

		_, err := c.Runner(c.EnvBuilder(), nil)

		Expect(err).To(MatchError(config.ErrInvalid))
	})

	Context("repetition lists", func() {
		It("should parse and format", func() {
			reps, err := config.ParseRepetitions(" single_rw=50, status_reg = 5 ,")

			Expect(err).NotTo(HaveOccurred())
			Expect(reps).To(Equal(map[string]int{
				"single_rw": 50, "status_reg": 5,
			}))
			Expect(config.FormatRepetitions(reps)).
				To(Equal("single_rw=50,status_reg=5"))
		})

		It("should reject bad counts", func() {
			_, err := config.ParseRepetitions("single_rw=many")
			Expect(err).To(MatchError(config.ErrInvalid))
		})
	})

	Context("when loading from files", func() {
		var dir string

		BeforeEach(func() {
			dir = GinkgoT().TempDir()

			for _, key := range []string{
				"FLASHVERIF_SEED", "FLASHVERIF_VARIANTS",
			} {
				if v, found := os.LookupEnv(key); found {
					DeferCleanup(os.Setenv, key, v)
				} else {
					DeferCleanup(os.Unsetenv, key)
				}
			}
		})

		It("should read the env file", func() {
			file := filepath.Join(dir, "flash.env")
			Expect(os.WriteFile(file,
				[]byte("FLASHVERIF_SEED=42\nFLASHVERIF_VARIANTS=axi,strobe\n"),
				0o600)).To(Succeed())

			c, err := config.Load(file)

			Expect(err).NotTo(HaveOccurred())
			Expect(c.Seed).To(Equal(int64(42)))
			Expect(c.Variants).To(Equal([]string{"axi", "strobe"}))
		})

		It("should not fail on a missing env file", func() {
			c, err := config.Load(filepath.Join(dir, "missing.env"))

			Expect(err).NotTo(HaveOccurred())
			Expect(c.Grades).To(Equal(config.Default().Grades))
		})
	})
})
