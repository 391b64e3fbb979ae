package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"

	"bootvoid/kernel/kfmt"
	"bootvoid/kernel/kmain"
	"bootvoid/kernel/mem"
)

type bootParams struct {
	image    string
	config   string
	memory   string
	earlyLog string
	level    slog.Level
}

// bootImage boots the image described by params and prints a summary of
// the resulting address space.
func bootImage(out io.Writer, params bootParams) (err error) {
	machine, err := loadConfig(params.config)
	if err != nil {
		return err
	}

	level, err := machine.logLevel(params.level)
	if err != nil {
		return err
	}
	if level != params.level {
		kfmt.SetLogger(kfmt.NewConsoleLogger(os.Stderr, level, false))
	}

	bootCfg, err := machine.bootConfig(params.memory)
	if err != nil {
		return err
	}

	image, err := os.ReadFile(params.image)
	if err != nil {
		return errors.Wrap(err, "reading kernel image")
	}

	// Unrecoverable boot failures halt the simulated CPU
	defer func() {
		if r := recover(); r != nil {
			haltErr, ok := r.(error)
			if !ok {
				panic(r)
			}
			err = errors.Wrap(haltErr, "system halted")
		}
	}()

	handoff, kerr := kmain.Boot(image, bootCfg)
	if kerr != nil {
		return errors.Wrap(kerr, "boot failed")
	}
	defer handoff.Release()

	printHandoff(out, handoff, bootCfg)

	if params.earlyLog != "" {
		if err := writeEarlyLog(params.earlyLog); err != nil {
			return err
		}
	}

	return nil
}

func printHandoff(out io.Writer, handoff *kmain.Handoff, bootCfg kmain.Config) {
	stats := handoff.Stats
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Field", "Value"})
	table.AppendBulk([][]string{
		{"Entry", fmt.Sprintf("%#x", handoff.Entry)},
		{"Memory", humanize.IBytes(uint64(bootCfg.MemorySize))},
		{"Paging", handoff.Hierarchy.State().String()},
		{"Root table", fmt.Sprintf("%#x", handoff.Hierarchy.Root())},
		{"CR3", fmt.Sprintf("%#x", handoff.Hierarchy.RootFrame().Address())},
		{"Tables", fmt.Sprintf("%d (L4 %d, L3 %d, L2 %d, L1 %d)", stats.TableCount(), stats.Tables[0], stats.Tables[1], stats.Tables[2], stats.Tables[3])},
		{"Mappings", fmt.Sprintf("%d", stats.Mappings)},
		{"Page table memory", humanize.IBytes(stats.TableCount() * uint64(mem.PageSize))},
		{"Segments", fmt.Sprintf("%d", len(handoff.Segments))},
	})
	table.Render()
}

func writeEarlyLog(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating early log file")
	}
	defer f.Close()

	if _, err = kfmt.DrainEarlyLog(f); err != nil {
		return errors.Wrap(err, "writing early log")
	}
	return nil
}
