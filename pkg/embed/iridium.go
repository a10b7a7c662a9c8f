// Package embed provides the Go embedding API for Iridium bytecode.
//
// Pass a program, get the final machine state.
//
// Basic usage:
//
//	result, err := embed.Execute([]byte{
//	    0x01, 0x00, 0x01, 0xF4, // LOAD $0 #500
//	    0x00,                   // HLT
//	})
//
// Hex text, as typed into the shell:
//
//	result, err := embed.ExecuteHex("01 00 01 F4\n00")
//
// With limits:
//
//	result, err := embed.ExecuteWithOptions(program,
//	    embed.WithTimeout(time.Second),
//	    embed.WithMaxInstructions(10000),
//	)
package embed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/akhildatla/iridium/pkg/vm"
	"github.com/retroenv/retrogolib/log"
)

// Common errors
var (
	ErrTimeout          = errors.New("execution timeout exceeded")
	ErrInstructionLimit = errors.New("instruction limit exceeded")
	ErrEmptyProgram     = errors.New("empty program")
)

// Result is the outcome of a batch run.
type Result struct {
	// Status is the status of the last step.
	Status vm.Status
	// Steps is the number of steps taken.
	Steps int64
	// State is the machine state after the run.
	State *vm.Snapshot
}

// Execute runs a byte program to completion with default settings.
func Execute(program []byte) (*Result, error) {
	return ExecuteWithOptions(program)
}

// ExecuteHex parses whitespace separated hex bytes and runs them. Text
// after a ';' on a line is a comment.
func ExecuteHex(text string, opts ...Option) (*Result, error) {
	program, err := ParseHexProgram(text)
	if err != nil {
		return nil, err
	}
	return ExecuteWithOptions(program, opts...)
}

// ExecuteFile reads a raw binary program file and executes it.
func ExecuteFile(path string, opts ...Option) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ExecuteWithOptions(data, opts...)
}

// ExecuteHexFile reads a hex text program file and executes it.
func ExecuteHexFile(path string, opts ...Option) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ExecuteHex(string(data), opts...)
}

// ParseHexProgram parses a multi-line hex listing into program bytes.
// Blank lines and ';' comments are skipped. The whole text is rejected if
// any token is invalid.
func ParseHexProgram(text string) ([]byte, error) {
	var program []byte
	for i, line := range strings.Split(text, "\n") {
		if idx := strings.IndexByte(line, ';'); idx >= 0 {
			line = line[:idx]
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		b, err := vm.ParseHex(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		program = append(program, b...)
	}
	if len(program) == 0 {
		return nil, ErrEmptyProgram
	}
	return program, nil
}

// Options configures execution behavior for ExecuteWithOptions.
type Options struct {
	// Timeout sets maximum execution time. Zero means no timeout.
	Timeout time.Duration

	// MaxInstructions limits the number of instructions executed.
	// Zero means unlimited.
	MaxInstructions int64

	// VMOptions are passed to the machine constructor.
	VMOptions []vm.Option

	// Logger receives machine log output. Nil disables logging.
	Logger *log.Logger

	// Context for cancellation. If nil, context.Background() is used.
	Context context.Context
}

// Option is a functional option for configuring execution.
type Option func(*Options)

// WithTimeout sets execution timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}

// WithMaxInstructions sets instruction limit.
func WithMaxInstructions(n int64) Option {
	return func(o *Options) {
		o.MaxInstructions = n
	}
}

// WithVMOptions adds machine options such as heap size or division mode.
func WithVMOptions(opts ...vm.Option) Option {
	return func(o *Options) {
		o.VMOptions = append(o.VMOptions, opts...)
	}
}

// WithLogger sets the machine logger.
func WithLogger(logger *log.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithContext sets the context for cancellation.
func WithContext(ctx context.Context) Option {
	return func(o *Options) {
		o.Context = ctx
	}
}

// ExecuteWithOptions runs a program with resource limits. On execution
// errors the returned result still holds the machine state at the fault.
//
// Example:
//
//	result, err := embed.ExecuteWithOptions(program,
//	    embed.WithTimeout(5*time.Second),
//	    embed.WithMaxInstructions(10000),
//	    embed.WithVMOptions(vm.WithStrictJumps(true)),
//	)
func ExecuteWithOptions(program []byte, opts ...Option) (*Result, error) {
	options := &Options{
		Context: context.Background(),
	}
	for _, opt := range opts {
		opt(options)
	}

	vmOpts := append([]vm.Option{vm.WithLogger(options.Logger)}, options.VMOptions...)
	machine := vm.NewVM(vmOpts...)
	machine.SetMaxSteps(options.MaxInstructions)
	machine.AddProgramBytes(program...)

	// Setup timeout context
	ctx := options.Context
	if options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, options.Timeout)
		defer cancel()
	}

	status, err := machine.RunContext(ctx)
	result := &Result{
		Status: status,
		Steps:  machine.Steps(),
		State:  machine.Snapshot(),
	}
	if err != nil {
		// Map VM errors to embed package errors
		switch {
		case errors.Is(err, vm.ErrInstructionLimit):
			return result, fmt.Errorf("%w: %w", ErrInstructionLimit, err)
		case errors.Is(err, context.DeadlineExceeded):
			return result, ErrTimeout
		}
		return result, err
	}

	return result, nil
}
