package scenario

import (
	"github.com/sarchlab/flashverif/flash"
	"github.com/sarchlab/flashverif/sched"
	"github.com/sarchlab/flashverif/scoreboard"
	"github.com/sarchlab/flashverif/stimulus"
)

// Addresses used by the fixed scenarios.
const (
	// ConcreteAddress and ConcreteData are the values of the reference page
	// program scenario.
	ConcreteAddress flash.Address = 0x000001
	ConcreteData    byte          = 10

	// erasedSentinel is read after a sector erase. It is never programmed,
	// so it only reads as erased if the erase reached the whole sector.
	erasedSentinel flash.Address = 0x000010
)

// Catalog returns all the scenarios, sorted by name.
func Catalog() []Scenario {
	return []Scenario{
		{
			Name:        "bulk_erase",
			Description: "program random locations, bulk erase, read erased",
			Domain:      stimulus.ByteDomain,
			Addr:        stimulus.AddrDomain{Base: 0, Size: 4096},
			Repetitions: 5,
			Setup:       zeroFilled,
			Body:        bulkErase,
		},
		{
			Name:        "enable_disable",
			Description: "status writes are ignored after WRDI, kept after WREN",
			Domain:      stimulus.ByteDomain,
			Repetitions: 1,
			Body:        enableDisable,
		},
		{
			Name:        "fast_read",
			Description: "program a byte, read it back with FAST_READ",
			Domain:      stimulus.ByteDomain,
			Addr:        stimulus.AddrDomain{Base: 0, Size: 256},
			Repetitions: 50,
			Body:        fastRead,
		},
		{
			Name:        "page_program_read",
			Description: "program 10 at address 1, read it back",
			Domain:      stimulus.ByteDomain,
			Addr:        stimulus.AddrDomain{Base: 0, Size: 256},
			Repetitions: 1,
			Body:        pageProgramRead,
		},
		{
			Name:        "page_rw",
			Description: "program a whole page in one burst until every value is used",
			Domain:      stimulus.PageDomain,
			Addr:        stimulus.AddrDomain{Base: 0, Size: 16},
			Closure:     true,
			Body:        pageRW,
		},
		{
			Name:        "random_cover",
			Description: "program and read random bytes until every byte value is used",
			Domain:      stimulus.ByteDomain,
			Addr:        stimulus.AddrDomain{Base: 0x1000, Size: 256},
			Closure:     true,
			Body:        randomCover,
		},
		{
			Name:        "sector_erase",
			Description: "program a sector, erase it, read erased",
			Domain:      stimulus.ByteDomain,
			Addr:        stimulus.AddrDomain{Base: 165, Size: 91},
			Repetitions: 5,
			Setup:       zeroFilled,
			Body:        sectorErase,
		},
		{
			Name:        "single_rw",
			Description: "program a random byte, read it back with READ",
			Domain:      stimulus.ByteDomain,
			Addr:        stimulus.AddrDomain{Base: 0, Size: 256},
			Repetitions: 50,
			Body:        singleRW,
		},
		{
			Name:        "status_reg",
			Description: "write the status register, read it back",
			Domain:      stimulus.ByteDomain,
			Repetitions: 5,
			Body:        statusReg,
		},
	}
}

func zeroFilled(b EnvBuilder) EnvBuilder {
	return b.WithFill(0)
}

func enableDisable(e *Env, p *sched.Proc, reps int) error {
	e.Sequencer().WithConstraint(stimulus.ValidStatus)

	var status flash.Status

	ignored := true

	return e.Repeat(p, 2*reps, func(p *sched.Proc, tx stimulus.Transaction) error {
		s := flash.Status(tx.Data)

		if ignored {
			if err := e.WriteEnable(p); err != nil {
				return err
			}

			if err := e.WriteDisable(p); err != nil {
				return err
			}
		} else {
			if err := e.WriteEnable(p); err != nil {
				return err
			}

			status = s
		}

		if err := e.WriteStatus(p, s); err != nil {
			return err
		}

		e.Scoreboard().DiscardTransmitted()

		if _, err := e.ReadStatus(p, scoreboard.Equal(byte(status))); err != nil {
			return err
		}

		ignored = !ignored

		return nil
	})
}

func statusReg(e *Env, p *sched.Proc, reps int) error {
	e.Sequencer().WithConstraint(stimulus.ValidStatus)

	return e.Repeat(p, reps, func(p *sched.Proc, tx stimulus.Transaction) error {
		if err := e.WriteEnable(p); err != nil {
			return err
		}

		if err := e.WriteStatus(p, flash.Status(tx.Data)); err != nil {
			return err
		}

		if err := e.Scoreboard().ExpectTransmitted(1); err != nil {
			return err
		}

		_, err := e.ReadStatus(p)

		return err
	})
}

func pageProgramRead(e *Env, p *sched.Proc, reps int) error {
	if err := programAndRead(e, p, flash.ReadData,
		ConcreteAddress, ConcreteData); err != nil {
		return err
	}

	return e.Repeat(p, reps-1, func(p *sched.Proc, tx stimulus.Transaction) error {
		return programAndRead(e, p, flash.ReadData, tx.Address, tx.Data)
	})
}

func singleRW(e *Env, p *sched.Proc, reps int) error {
	return e.Repeat(p, reps, func(p *sched.Proc, tx stimulus.Transaction) error {
		return programAndRead(e, p, flash.ReadData, tx.Address, tx.Data)
	})
}

func fastRead(e *Env, p *sched.Proc, reps int) error {
	return e.Repeat(p, reps, func(p *sched.Proc, tx stimulus.Transaction) error {
		return programAndRead(e, p, flash.FastRead, tx.Address, tx.Data)
	})
}

func randomCover(e *Env, p *sched.Proc, _ int) error {
	return e.UntilCovered(p, func(p *sched.Proc, tx stimulus.Transaction) error {
		return programAndRead(e, p, flash.ReadData, tx.Address, tx.Data)
	})
}

func programAndRead(
	e *Env,
	p *sched.Proc,
	read flash.Opcode,
	a flash.Address,
	v byte,
) error {
	if err := e.Program(p, a, v); err != nil {
		return err
	}

	_, err := e.ReadBackTransmitted(p, read, a, 1)

	return err
}

func pageRW(e *Env, p *sched.Proc, _ int) error {
	base := e.Sequencer().Domain()

	if err := e.WriteEnable(p); err != nil {
		return err
	}

	if err := e.Command(p, flash.PageProgram); err != nil {
		return err
	}

	start := e.AddrDomain().Base
	if err := e.Address(p, start); err != nil {
		return err
	}

	err := e.UntilCovered(p, func(p *sched.Proc, tx stimulus.Transaction) error {
		return e.Transmit(p, tx.Data)
	})
	if err != nil {
		return err
	}

	if err := e.EndCommand(p); err != nil {
		return err
	}

	if err := e.AwaitCompletion(p); err != nil {
		return err
	}

	_, err = e.ReadBackTransmitted(p, flash.ReadData, start, base.Size)

	return err
}

func sectorErase(e *Env, p *sched.Proc, reps int) error {
	var programmed []flash.Address

	err := e.Repeat(p, reps, func(p *sched.Proc, tx stimulus.Transaction) error {
		programmed = append(programmed, tx.Address)
		return programAndRead(e, p, flash.ReadData, tx.Address, tx.Data)
	})
	if err != nil {
		return err
	}

	target := e.AddrDomain().Base
	if len(programmed) > 0 {
		target = programmed[len(programmed)-1]
	}

	if err := e.EraseSector(p, target); err != nil {
		return err
	}

	return readErased(e, p, append(programmed, erasedSentinel))
}

func bulkErase(e *Env, p *sched.Proc, reps int) error {
	var programmed []flash.Address

	err := e.Repeat(p, reps, func(p *sched.Proc, tx stimulus.Transaction) error {
		programmed = append(programmed, tx.Address)
		return programAndRead(e, p, flash.ReadData, tx.Address, tx.Data)
	})
	if err != nil {
		return err
	}

	if err := e.EraseBulk(p); err != nil {
		return err
	}

	return readErased(e, p, append(programmed, erasedSentinel))
}

func readErased(e *Env, p *sched.Proc, addrs []flash.Address) error {
	for _, a := range addrs {
		e.Scoreboard().Expect(scoreboard.Erased())

		if _, err := e.ReadBack(p, flash.ReadData, a, 1); err != nil {
			return err
		}
	}

	return nil
}
