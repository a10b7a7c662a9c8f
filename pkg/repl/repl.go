// Package repl implements the interactive Iridium shell.
//
// Each input line is either a dot command such as .registers or a list of
// two character hex tokens. Hex lines are appended to the program and
// exactly one instruction is executed per accepted line.
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/k0kubun/pp/v3"
	"github.com/retroenv/retrogolib/log"

	"github.com/akhildatla/iridium/pkg/asm"
	"github.com/akhildatla/iridium/pkg/export"
	"github.com/akhildatla/iridium/pkg/vm"
)

const (
	defaultPrompt = ">>> "
	bannerText    = "Welcome to Iridium! Let's be productive!"

	defaultHeapWindow = 64
)

// REPL provides an interactive Read-Eval-Print Loop.
type REPL struct {
	vm      *vm.VM
	lexer   *asm.Lexer
	logger  *log.Logger
	printer *pp.PrettyPrinter
	ctx     context.Context

	prompt  string
	banner  bool
	history []string
}

// Option configures a REPL.
type Option func(*REPL)

// WithVM sets the machine driven by the shell.
func WithVM(m *vm.VM) Option {
	return func(r *REPL) {
		r.vm = m
	}
}

// WithPrompt sets the input prompt.
func WithPrompt(prompt string) Option {
	return func(r *REPL) {
		r.prompt = prompt
	}
}

// WithBanner enables or disables the welcome message.
func WithBanner(enabled bool) Option {
	return func(r *REPL) {
		r.banner = enabled
	}
}

// WithLogger sets the logger for session diagnostics.
func WithLogger(logger *log.Logger) Option {
	return func(r *REPL) {
		r.logger = logger
	}
}

// WithContext sets the context used by .run and .export.
func WithContext(ctx context.Context) Option {
	return func(r *REPL) {
		r.ctx = ctx
	}
}

// New creates a new REPL instance.
func New(opts ...Option) *REPL {
	printer := pp.New()
	printer.SetColoringEnabled(false)

	r := &REPL{
		vm:      vm.NewVM(),
		lexer:   asm.NewLexer(),
		printer: printer,
		ctx:     context.Background(),
		prompt:  defaultPrompt,
		banner:  true,
		history: []string{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// VM returns the machine driven by the shell.
func (r *REPL) VM() *vm.VM {
	return r.vm
}

// History returns the non-empty lines entered so far.
func (r *REPL) History() []string {
	out := make([]string, len(r.history))
	copy(out, r.history)
	return out
}

// Start runs the loop until .quit or the end of input.
func (r *REPL) Start(in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)

	if r.banner {
		fmt.Fprintln(out, bannerText)
		fmt.Fprintln(out, "Type .help for available commands, .quit to exit")
	}
	if r.logger != nil {
		r.logger.Info("Shell session started", log.Int("heap_size", r.vm.HeapSize()))
	}

	for {
		fmt.Fprint(out, r.prompt)

		if !scanner.Scan() {
			break
		}

		if quit := r.Exec(scanner.Text(), out); quit {
			return nil
		}
	}
	return scanner.Err()
}

// Exec processes one input line and reports whether the session should end.
func (r *REPL) Exec(line string, out io.Writer) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	r.history = append(r.history, line)

	if strings.HasPrefix(line, ".") {
		return r.handleCommand(line, out)
	}
	r.evalHex(line, out)
	return false
}

func (r *REPL) handleCommand(line string, out io.Writer) bool {
	parts := strings.Fields(line)

	switch parts[0] {
	case ".quit":
		fmt.Fprintln(out, "Farewell! Have a great day!")
		return true

	case ".help":
		r.printHelp(out)

	case ".history":
		for i, cmd := range r.history {
			fmt.Fprintf(out, "%3d: %s\n", i+1, cmd)
		}

	case ".program":
		fmt.Fprintln(out, "Listing instructions currently in VM's program vector:")
		fmt.Fprint(out, vm.Disassemble(r.vm.Program()))
		fmt.Fprintln(out, "End of Program Listing")

	case ".registers":
		fmt.Fprintln(out, "Listing registers and all contents:")
		fmt.Fprint(out, export.Table(export.RegistersFrame(r.vm.Snapshot())))
		fmt.Fprintf(out, "remainder: %d\n", r.vm.Remainder())
		fmt.Fprintln(out, "End of Register Listing")

	case ".heap":
		r.showHeap(parts[1:], out)

	case ".state":
		fmt.Fprintln(out, r.printer.Sprint(newStateView(r.vm.Snapshot())))

	case ".pc":
		fmt.Fprintf(out, "pc: %d of %d bytes\n", r.vm.PC(), r.vm.ProgramLen())

	case ".run":
		status, err := r.vm.RunContext(r.ctx)
		r.report(status, err, out)

	case ".reset":
		r.vm.Reset()
		fmt.Fprintln(out, "Machine reset")

	case ".check":
		r.check(strings.TrimSpace(strings.TrimPrefix(line, ".check")), out)

	case ".export":
		r.export(parts[1:], out)

	default:
		fmt.Fprintf(out, "Unknown command %s, type .help for a list of commands\n", parts[0])
	}
	return false
}

// evalHex appends a hex line to the program and executes one step. A line
// with any invalid token is rejected as a whole.
func (r *REPL) evalHex(line string, out io.Writer) {
	bytes, err := vm.ParseHex(line)
	if err != nil {
		r.debug("Hex input rejected", err)
		fmt.Fprintf(out, "Unable to parse hex string: %v\n", err)
		return
	}

	r.vm.AddProgramBytes(bytes...)
	status, err := r.vm.Step()
	r.report(status, err, out)
}

func (r *REPL) report(status vm.Status, err error, out io.Writer) {
	switch {
	case errors.Is(err, vm.ErrIncompleteInstruction):
		fmt.Fprintf(out, "Waiting for more bytes: %v\n", err)
	case err != nil:
		r.debug("Execution failed", err)
		fmt.Fprintf(out, "Error: %v\n", err)
	case status == vm.StatusContinue:
	default:
		fmt.Fprintf(out, "%s (pc %d)\n", status, r.vm.PC())
	}
}

func (r *REPL) showHeap(args []string, out io.Writer) {
	start, count := 0, defaultHeapWindow
	var err error
	if len(args) > 0 {
		if start, err = strconv.Atoi(args[0]); err != nil || start < 0 {
			fmt.Fprintln(out, "Usage: .heap [start [count]]")
			return
		}
	}
	if len(args) > 1 {
		if count, err = strconv.Atoi(args[1]); err != nil || count < 0 {
			fmt.Fprintln(out, "Usage: .heap [start [count]]")
			return
		}
	}

	if start >= r.vm.HeapSize() {
		fmt.Fprintf(out, "Heap has %d bytes\n", r.vm.HeapSize())
		return
	}
	fmt.Fprint(out, export.Table(export.HeapFrame(r.vm.Snapshot(), start, count)))
}

func (r *REPL) check(source string, out io.Writer) {
	if source == "" {
		fmt.Fprintln(out, "Usage: .check <instruction>")
		return
	}
	inst, err := r.lexer.Validate(source)
	if err != nil {
		r.debug("Assembly check failed", err)
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(out, "Valid instruction: %s\n", inst)
}

func (r *REPL) export(args []string, out io.Writer) {
	if len(args) != 2 {
		fmt.Fprintln(out, "Usage: .export <registers|heap|program|state> <path>")
		return
	}
	kind, err := export.ParseKind(args[0])
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	if err := export.WriteFile(r.ctx, kind, r.vm.Snapshot(), args[1]); err != nil {
		r.debug("Export failed", err)
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(out, "Exported %s to %s\n", kind, args[1])
}

func (r *REPL) debug(msg string, err error) {
	if r.logger != nil {
		r.logger.Debug(msg, log.Err(err))
	}
}

// stateView is the compact machine summary printed by .state.
type stateView struct {
	PC        int
	Remainder uint32
	Program   string
	Registers map[string]int32
	HeapUsed  int
}

func newStateView(snap *vm.Snapshot) stateView {
	view := stateView{
		PC:        snap.PC,
		Remainder: snap.Remainder,
		Program:   vm.FormatHex(snap.Program),
		Registers: map[string]int32{},
	}
	for i, v := range snap.Registers {
		if v != 0 {
			view.Registers["$"+strconv.Itoa(i)] = v
		}
	}
	for _, b := range snap.Heap {
		if b != 0 {
			view.HeapUsed++
		}
	}
	return view
}

func (r *REPL) printHelp(out io.Writer) {
	help := `
Iridium Shell Commands:
  .help                      Show this help message
  .quit                      Exit the shell
  .history                   Show entered lines
  .program                   Disassemble the program buffer
  .registers                 Show all registers and the remainder
  .heap [start [count]]      Show heap words (default 0 64)
  .state                     Show a summary of the machine state
  .pc                        Show the program counter
  .run                       Run until halt, illegal opcode or end of program
  .reset                     Clear program, registers and heap
  .check <instruction>       Validate an assembly instruction, e.g. .check load $1 #100
  .export <kind> <path>      Write registers, heap or program (.csv .json .parquet)
                             or state (.cbor) to a file

Any other line is hex bytes, e.g. 01 00 01 F4 (LOAD $0 #500).
The bytes are appended to the program and one instruction is executed.
`
	fmt.Fprint(out, help)
}
