// Package main provides the CLI entry point for the Iridium virtual machine.
//
// Usage:
//
//	iridium repl                         # Interactive shell
//	iridium run 01 00 01 F4 00           # Execute hex bytes
//	iridium run -f program.hex           # Execute a hex listing
//	iridium disasm -f program.hex        # Disassemble a hex listing
//	iridium inspect state.cbor           # Show an exported machine state
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/retroenv/retrogolib/app"
	"github.com/retroenv/retrogolib/buildinfo"
	"github.com/retroenv/retrogolib/log"

	"github.com/akhildatla/iridium/internal/config"
	"github.com/akhildatla/iridium/pkg/embed"
	"github.com/akhildatla/iridium/pkg/export"
	"github.com/akhildatla/iridium/pkg/repl"
	"github.com/akhildatla/iridium/pkg/vm"
)

// Version info set by GoReleaser via ldflags
var (
	version = "dev"
	commit  = ""
	date    = ""
)

var errUsage = errors.New("usage")

func main() {
	ctx := app.Context()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	if len(args) < 1 {
		return printUsage(out)
	}

	cmd := args[0]

	switch cmd {
	case "repl":
		return replCommand(ctx, args[1:], in, out)
	case "run":
		return runCommand(ctx, args[1:], in, out)
	case "disasm":
		return disasmCommand(args[1:], in, out)
	case "inspect":
		return inspectCommand(ctx, args[1:], out)
	case "version":
		fmt.Fprintf(out, "iridium version: %s\n", buildinfo.Version(version, commit, date))
		return nil
	case "help", "-h", "--help":
		return printUsage(out)
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

// machineFlags are shared by the commands that create a machine.
type machineFlags struct {
	configPath string
	debug      bool
	quiet      bool
	heapSize   int
	strict     bool
	division   string
	maxSteps   int64
}

func (m *machineFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&m.configPath, "config", "", "configuration file (default: "+config.FileName+" if present)")
	fs.BoolVar(&m.debug, "debug", false, "enable debug logging")
	fs.BoolVar(&m.quiet, "q", false, "only log errors")
	fs.IntVar(&m.heapSize, "heap", 0, "heap size in bytes")
	fs.BoolVar(&m.strict, "strict", false, "fault on jumps outside the program")
	fs.StringVar(&m.division, "division", "", "division mode: compat or quotient")
	fs.Int64Var(&m.maxSteps, "max-steps", 0, "maximum number of instructions, 0 for unlimited")
}

// load reads the configuration file and applies the flags that were set
// explicitly on the command line.
func (m *machineFlags) load(fs *flag.FlagSet) (*config.Config, *log.Logger, error) {
	path := m.configPath
	if path == "" {
		if _, err := os.Stat(config.FileName); err == nil {
			path = config.FileName
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "heap":
			cfg.Machine.HeapSize = m.heapSize
		case "strict":
			cfg.Machine.StrictJumps = m.strict
		case "division":
			cfg.Machine.Division = m.division
		case "max-steps":
			cfg.Machine.MaxSteps = m.maxSteps
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	return cfg, cfg.Logger(m.debug, m.quiet), nil
}

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

func replCommand(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	fs := newFlagSet("repl", out)
	var mf machineFlags
	mf.register(fs)
	noBanner := fs.Bool("no-banner", false, "do not print the welcome message")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, err := mf.load(fs)
	if err != nil {
		return err
	}

	r := repl.New(
		repl.WithVM(cfg.NewVM(logger)),
		repl.WithPrompt(cfg.Shell.Prompt),
		repl.WithBanner(cfg.Shell.Banner && !*noBanner),
		repl.WithLogger(logger),
		repl.WithContext(ctx),
	)
	return r.Start(in, out)
}

func runCommand(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	fs := newFlagSet("run", out)
	var mf machineFlags
	mf.register(fs)
	file := fs.String("f", "", "hex listing file ('-' for stdin)")
	binary := fs.String("bin", "", "raw binary program file")
	timeout := fs.Duration("timeout", 0, "maximum run time, 0 for no limit")
	statePath := fs.String("state", "", "write the final state to a .cbor file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, err := mf.load(fs)
	if err != nil {
		return err
	}

	program, err := readProgram(fs.Args(), *file, *binary, in)
	if err != nil {
		return err
	}

	result, runErr := embed.ExecuteWithOptions(program,
		embed.WithContext(ctx),
		embed.WithTimeout(*timeout),
		embed.WithMaxInstructions(cfg.Machine.MaxSteps),
		embed.WithVMOptions(cfg.VMOptions(logger)...),
	)
	if result != nil {
		printResult(out, result)
		if *statePath != "" {
			if err := export.WriteFile(ctx, export.KindState, result.State, *statePath); err != nil {
				return err
			}
		}
	}
	return runErr
}

// readProgram collects program bytes from exactly one source: hex arguments,
// a hex listing file, a raw binary file or standard input.
func readProgram(args []string, hexFile, binFile string, in io.Reader) ([]byte, error) {
	switch {
	case binFile != "":
		data, err := os.ReadFile(binFile)
		if err != nil {
			return nil, fmt.Errorf("reading program: %w", err)
		}
		if len(data) == 0 {
			return nil, embed.ErrEmptyProgram
		}
		return data, nil

	case hexFile == "-":
		data, err := io.ReadAll(in)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return embed.ParseHexProgram(string(data))

	case hexFile != "":
		data, err := os.ReadFile(hexFile)
		if err != nil {
			return nil, fmt.Errorf("reading program: %w", err)
		}
		return embed.ParseHexProgram(string(data))

	case len(args) > 0:
		return embed.ParseHexProgram(strings.Join(args, " "))

	default:
		return nil, fmt.Errorf("%w: expected hex bytes, -f <file.hex> or -bin <file>", errUsage)
	}
}

func printResult(out io.Writer, result *embed.Result) {
	fmt.Fprintf(out, "status: %s\n", result.Status)
	fmt.Fprintf(out, "pc: %d\n", result.State.PC)
	fmt.Fprintf(out, "steps: %d\n", result.Steps)
	fmt.Fprintf(out, "remainder: %d\n", result.State.Remainder)
	fmt.Fprint(out, export.Table(export.RegistersFrame(result.State)))
}

func disasmCommand(args []string, in io.Reader, out io.Writer) error {
	fs := newFlagSet("disasm", out)
	file := fs.String("f", "", "hex listing file ('-' for stdin)")
	binary := fs.String("bin", "", "raw binary program file")
	output := fs.String("o", "", "output file (default: stdout)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	program, err := readProgram(fs.Args(), *file, *binary, in)
	if err != nil {
		return err
	}

	listing := vm.Disassemble(program)

	if *output != "" {
		if err := os.WriteFile(*output, []byte(listing), 0644); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
		fmt.Fprintf(out, "Disassembled to: %s\n", *output)
		return nil
	}
	fmt.Fprint(out, listing)
	return nil
}

func inspectCommand(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("inspect", out)
	heapStart := fs.Int("heap-start", 0, "first heap byte shown for state files")
	heapCount := fs.Int("heap-count", 64, "number of heap bytes shown for state files")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("%w: iridium inspect <file.cbor|file.csv|file.json|file.parquet>", errUsage)
	}
	path := fs.Arg(0)

	if strings.EqualFold(filepath.Ext(path), ".cbor") {
		snap, err := export.ReadStateFile(path)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "pc: %d of %d bytes\n", snap.PC, len(snap.Program))
		fmt.Fprintf(out, "remainder: %d\n", snap.Remainder)
		fmt.Fprint(out, export.Table(export.RegistersFrame(snap)))
		fmt.Fprint(out, export.Table(export.HeapFrame(snap, *heapStart, *heapCount)))
		fmt.Fprint(out, vm.Disassemble(snap.Program))
		return nil
	}

	df, err := export.ReadFrame(ctx, path)
	if err != nil {
		return err
	}
	fmt.Fprint(out, export.Table(df))
	return nil
}

func printUsage(out io.Writer) error {
	fmt.Fprintln(out, `Iridium - register based bytecode virtual machine

Usage:
  iridium <command> [arguments]

Commands:
  repl                  Start the interactive shell
  run <hex bytes>       Execute a program until it halts
  disasm <hex bytes>    Disassemble a program
  inspect <file>        Show an exported state or table
  version               Print version information
  help                  Show this help message

Machine Options (repl, run):
  -config <file>        Configuration file (default: iridium.toml if present)
  -heap <bytes>         Heap size in bytes
  -strict               Fault on jumps outside the program
  -division <mode>      Division mode: compat or quotient
  -max-steps <n>        Instruction limit, 0 for unlimited
  -debug                Enable debug logging
  -q                    Only log errors

REPL Options:
  -no-banner            Do not print the welcome message

Run Options:
  -f <file>             Hex listing file ('-' for stdin)
  -bin <file>           Raw binary program file
  -timeout <duration>   Maximum run time, e.g. 2s
  -state <file.cbor>    Write the final state to a file

Disasm Options:
  -f <file>             Hex listing file ('-' for stdin)
  -bin <file>           Raw binary program file
  -o <file>             Output file (default: stdout)

Inspect Options:
  -heap-start <n>       First heap byte shown for state files
  -heap-count <n>       Number of heap bytes shown for state files

Examples:
  iridium run 01 00 01 F4 00
  iridium run -f program.hex -state final.cbor
  iridium disasm -f program.hex
  iridium inspect final.cbor
  iridium repl -heap 4096`)
	return nil
}
