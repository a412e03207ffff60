package flash

import (
	"fmt"
	"strings"

	"github.com/sarchlab/flashverif/sim"
)

// SpeedGrade is the timing profile of a flash device. Reads use ReadFreq on
// the serial clock, every other command uses RestFreq.
type SpeedGrade struct {
	Name     string
	ReadFreq sim.Freq
	RestFreq sim.Freq
}

// The speed grades the controller supports.
var (
	Grade33x75 = SpeedGrade{Name: "33-75", ReadFreq: 33 * sim.MHz, RestFreq: 75 * sim.MHz}
	Grade25x50 = SpeedGrade{Name: "25-50", ReadFreq: 25 * sim.MHz, RestFreq: 50 * sim.MHz}
	Grade20x25 = SpeedGrade{Name: "20-25", ReadFreq: 20 * sim.MHz, RestFreq: 25 * sim.MHz}
)

// SpeedGrades returns all the supported speed grades.
func SpeedGrades() []SpeedGrade {
	return []SpeedGrade{Grade33x75, Grade25x50, Grade20x25}
}

// GradeByName finds a speed grade by its name.
func GradeByName(name string) (SpeedGrade, error) {
	for _, g := range SpeedGrades() {
		if strings.EqualFold(g.Name, name) {
			return g, nil
		}
	}

	return SpeedGrade{}, fmt.Errorf("unknown speed grade %q", name)
}

// SPIFreqFor returns the serial clock frequency used for the opcode.
func SPIFreqFor(op Opcode, g SpeedGrade) sim.Freq {
	if op == ReadData {
		return g.ReadFreq
	}

	return g.RestFreq
}

func (g SpeedGrade) String() string {
	return fmt.Sprintf("%s (read %.0f MHz, rest %.0f MHz)",
		g.Name, float64(g.ReadFreq/sim.MHz), float64(g.RestFreq/sim.MHz))
}
