package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/alecthomas/kingpin.v2"

	"bootvoid/kernel/kfmt"
)

var cfg struct {
	verbose bool
	color   bool
	inspect struct {
		image string
	}
	boot bootParams
}

func main() {
	app := kingpin.New(filepath.Base(os.Args[0]), "Inspect ELF kernel images and boot them on a simulated amd64 machine.").UsageWriter(os.Stdout)
	app.HelpFlag.Short('h')
	app.Flag("verbose", "Enable verbose logging.").Short('v').Default("false").BoolVar(&cfg.verbose)
	app.Flag("color", "Colorize log output.").Default("false").BoolVar(&cfg.color)

	inspectCmd := app.Command("inspect", "Print the file header and loadable segments of a kernel image.")
	inspectCmd.Arg("image", "Path to the kernel image.").Required().ExistingFileVar(&cfg.inspect.image)

	bootCmd := app.Command("boot", "Build the boot address space for a kernel image and enable paging.")
	bootCmd.Arg("image", "Path to the kernel image.").Required().ExistingFileVar(&cfg.boot.image)
	bootCmd.Flag("config", "Path to a YAML machine description.").Short('c').ExistingFileVar(&cfg.boot.config)
	bootCmd.Flag("memory", "Override the amount of physical memory, e.g. 64MiB.").StringVar(&cfg.boot.memory)
	bootCmd.Flag("early-log", "Write the early boot log buffer to this file.").StringVar(&cfg.boot.earlyLog)

	parsedCmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	level := slog.LevelInfo
	if cfg.verbose {
		level = slog.LevelDebug
	}
	cfg.boot.level = level
	kfmt.SetLogger(kfmt.NewConsoleLogger(os.Stderr, level, cfg.color))

	switch parsedCmd {
	case inspectCmd.FullCommand():
		os.Exit(checkError(inspect(os.Stdout, cfg.inspect.image)))
	case bootCmd.FullCommand():
		os.Exit(checkError(bootImage(os.Stdout, cfg.boot)))
	}
}

func checkError(err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	return 1
}
