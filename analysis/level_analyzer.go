package analysis

import (
	"math"

	"github.com/sarchlab/flashverif/sim"
)

// LevelAnalyzer records the occupancy of a buffer over time. It reports the
// time-weighted average level, per period if a period is set, and the peak
// level.
type LevelAnalyzer struct {
	PerfLogger
	sim.TimeTeller

	buf       sim.Buffer
	usePeriod bool
	period    sim.VTimeInSec

	lastTime             sim.VTimeInSec
	lastLevel            int
	peakLevel            int
	levelToDuration      map[int]sim.VTimeInSec
	totalLevelToDuration map[int]sim.VTimeInSec
}

// Func is a function that records buffer level change.
func (b *LevelAnalyzer) Func(ctx sim.HookCtx) {
	if ctx.Pos != sim.HookPosBufPush && ctx.Pos != sim.HookPosBufPop {
		return
	}

	now := b.CurrentTime()
	buf := ctx.Domain.(sim.Buffer)
	currLevel := buf.Size()

	if b.usePeriod {
		lastPeriodEndTime := b.periodEndTime(b.lastTime)

		if now > lastPeriodEndTime {
			b.summarize()
			b.resetPeriod()
		}
	}

	b.levelToDuration[b.lastLevel] += now - b.lastTime
	b.totalLevelToDuration[b.lastLevel] += now - b.lastTime
	b.lastLevel = currLevel
	b.lastTime = now

	if currLevel > b.peakLevel {
		b.peakLevel = currLevel
	}
}

// PeakLevel returns the highest level ever seen.
func (b *LevelAnalyzer) PeakLevel() int {
	return b.peakLevel
}

// AverageLevel returns the time-weighted average level since time 0.
func (b *LevelAnalyzer) AverageLevel() float64 {
	now := b.CurrentTime()

	sumLevel := 0.0
	sumDuration := 0.0
	for level, duration := range b.totalLevelToDuration {
		sumLevel += float64(level) * float64(duration)
		sumDuration += float64(duration)
	}

	if now > b.lastTime {
		sumLevel += float64(b.lastLevel) * float64(now-b.lastTime)
		sumDuration += float64(now - b.lastTime)
	}

	if sumDuration == 0 {
		return 0
	}

	return sumLevel / sumDuration
}

// Report writes the final entries into the logger.
func (b *LevelAnalyzer) Report() {
	b.summarize()

	b.PerfLogger.AddDataEntry(PerfEntry{
		Start:     0,
		End:       b.CurrentTime(),
		Where:     b.buf.Name(),
		What:      "PeakLevel",
		EntryType: "Buffer",
		Value:     float64(b.peakLevel),
	})
}

func (b *LevelAnalyzer) summarize() {
	now := b.CurrentTime()

	if !b.usePeriod {
		b.summarizePeriod(now, 0, now)
		return
	}

	periodStartTime := b.periodStartTime(b.lastTime)
	periodEndTime := b.periodEndTime(b.lastTime)

	for periodEndTime < now {
		b.summarizePeriod(now, periodStartTime, periodEndTime)

		b.levelToDuration = make(map[int]sim.VTimeInSec)
		b.lastTime = periodEndTime
		periodStartTime = periodEndTime
		periodEndTime = periodStartTime + b.period
	}
}

func (b *LevelAnalyzer) summarizePeriod(
	now, periodStartTime, periodEndTime sim.VTimeInSec,
) {
	sumLevel := 0.0
	sumDuration := 0.0
	for level, duration := range b.levelToDuration {
		sumLevel += float64(level) * float64(duration)
		sumDuration += float64(duration)
	}

	summarizeEndTime := minTime(periodEndTime, now)
	if summarizeEndTime > b.lastTime {
		remainingTime := summarizeEndTime - b.lastTime
		sumLevel += float64(b.lastLevel) * float64(remainingTime)
		sumDuration += float64(remainingTime)
	}

	if sumDuration == 0 {
		return
	}

	avgLevel := sumLevel / sumDuration
	if avgLevel == 0 {
		return
	}

	b.PerfLogger.AddDataEntry(PerfEntry{
		Start:     periodStartTime,
		End:       periodEndTime,
		Where:     b.buf.Name(),
		What:      "Level",
		EntryType: "Buffer",
		Value:     avgLevel,
	})
}

func (b *LevelAnalyzer) resetPeriod() {
	now := b.CurrentTime()

	b.levelToDuration = make(map[int]sim.VTimeInSec)

	b.lastTime = b.periodStartTime(now)
}

func (b *LevelAnalyzer) periodStartTime(t sim.VTimeInSec) sim.VTimeInSec {
	return sim.VTimeInSec(math.Floor(float64(t/b.period))) * b.period
}

func (b *LevelAnalyzer) periodEndTime(t sim.VTimeInSec) sim.VTimeInSec {
	return b.periodStartTime(t) + b.period
}

func minTime(a, b sim.VTimeInSec) sim.VTimeInSec {
	if a < b {
		return a
	}

	return b
}

// LevelAnalyzerBuilder can build a LevelAnalyzer.
type LevelAnalyzerBuilder struct {
	perfLogger PerfLogger
	timeTeller sim.TimeTeller
	usePeriod  bool
	period     sim.VTimeInSec
	buffer     sim.Buffer
}

// MakeLevelAnalyzerBuilder creates a LevelAnalyzerBuilder.
func MakeLevelAnalyzerBuilder() LevelAnalyzerBuilder {
	return LevelAnalyzerBuilder{}
}

// WithPerfLogger sets the PerfLogger to use.
func (b LevelAnalyzerBuilder) WithPerfLogger(
	perfLogger PerfLogger,
) LevelAnalyzerBuilder {
	b.perfLogger = perfLogger
	return b
}

// WithTimeTeller sets the TimeTeller to use.
func (b LevelAnalyzerBuilder) WithTimeTeller(
	timeTeller sim.TimeTeller,
) LevelAnalyzerBuilder {
	b.timeTeller = timeTeller
	return b
}

// WithPeriod sets the period to use.
func (b LevelAnalyzerBuilder) WithPeriod(
	period sim.VTimeInSec,
) LevelAnalyzerBuilder {
	b.usePeriod = true
	b.period = period

	return b
}

// WithBuffer sets the buffer to watch.
func (b LevelAnalyzerBuilder) WithBuffer(
	buffer sim.Buffer,
) LevelAnalyzerBuilder {
	b.buffer = buffer
	return b
}

// Build creates a LevelAnalyzer and hooks it to the buffer.
func (b LevelAnalyzerBuilder) Build() *LevelAnalyzer {
	if b.perfLogger == nil {
		panic("perfLogger is not set")
	}

	if b.timeTeller == nil {
		panic("timeTeller is not set")
	}

	if b.buffer == nil {
		panic("buffer is not set")
	}

	analyzer := &LevelAnalyzer{
		PerfLogger:           b.perfLogger,
		TimeTeller:           b.timeTeller,
		buf:                  b.buffer,
		usePeriod:            b.usePeriod,
		period:               b.period,
		levelToDuration:      make(map[int]sim.VTimeInSec),
		totalLevelToDuration: make(map[int]sim.VTimeInSec),
	}

	b.buffer.AcceptHook(analyzer)

	return analyzer
}
