package embed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/akhildatla/iridium/internal/testutil"
	"github.com/akhildatla/iridium/pkg/vm"
	"github.com/retroenv/retrogolib/log"
)

func TestExecute_BasicProgram(t *testing.T) {
	result, err := Execute(testutil.SumProgram())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if result.Status != vm.StatusHalted {
		t.Errorf("expected halted, got %v", result.Status)
	}
	testutil.AssertRegister(t, result.State, 2, 42)
	if result.State.PC != 13 {
		t.Errorf("expected PC 13, got %d", result.State.PC)
	}
	if result.Steps != 4 {
		t.Errorf("expected 4 steps, got %d", result.Steps)
	}
}

func TestExecute_Countdown(t *testing.T) {
	result, err := Execute(testutil.CountdownProgram(5))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	testutil.AssertRegister(t, result.State, 0, 0)
	if result.Steps != 20 {
		t.Errorf("expected 20 steps, got %d", result.Steps)
	}
}

func TestExecute_EndWithoutHalt(t *testing.T) {
	result, err := Execute(vm.EncodeLoad(7, 1589))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if result.Status != vm.StatusEnd {
		t.Errorf("expected end of program, got %v", result.Status)
	}
	testutil.AssertRegister(t, result.State, 7, 1589)
}

func TestExecute_EmptyProgram(t *testing.T) {
	result, err := Execute(nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Status != vm.StatusEnd {
		t.Errorf("expected end of program, got %v", result.Status)
	}
}

func TestExecute_Illegal(t *testing.T) {
	program := testutil.NewBuilder().Load(0, 1).Raw(0xAA).Load(0, 2).Bytes()

	result, err := Execute(program)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Status != vm.StatusIllegal {
		t.Errorf("expected illegal opcode, got %v", result.Status)
	}
	testutil.AssertRegister(t, result.State, 0, 1)
	if result.State.PC != 5 {
		t.Errorf("expected PC 5, got %d", result.State.PC)
	}
}

func TestExecute_FaultKeepsState(t *testing.T) {
	program := testutil.NewBuilder().Load(0, 9).Op(vm.OpDIV, 0, 1, 2).Halt().Bytes()

	result, err := Execute(program)
	if !errors.Is(err, vm.ErrDivisionByZero) {
		t.Fatalf("expected ErrDivisionByZero, got %v", err)
	}
	if result == nil {
		t.Fatal("expected a result on fault")
	}
	testutil.AssertRegister(t, result.State, 0, 9)
	if result.Status != vm.StatusFault {
		t.Errorf("expected fault, got %v", result.Status)
	}
}

func TestExecuteHex(t *testing.T) {
	result, err := ExecuteHex(`
; LOAD $0 #500
01 00 01 F4
00 ; HLT
`)
	if err != nil {
		t.Fatalf("ExecuteHex failed: %v", err)
	}
	testutil.AssertRegister(t, result.State, 0, 500)
	if result.Status != vm.StatusHalted {
		t.Errorf("expected halted, got %v", result.Status)
	}
}

func TestExecuteHex_InvalidToken(t *testing.T) {
	_, err := ExecuteHex("01 00\n01 ZZ\n")
	if !errors.Is(err, vm.ErrInvalidHex) {
		t.Fatalf("expected ErrInvalidHex, got %v", err)
	}
	if err.Error()[:6] != "line 2" {
		t.Errorf("expected line number in error, got %v", err)
	}
}

func TestExecuteHex_Empty(t *testing.T) {
	_, err := ExecuteHex("; nothing here\n\n")
	if !errors.Is(err, ErrEmptyProgram) {
		t.Fatalf("expected ErrEmptyProgram, got %v", err)
	}
}

func TestExecuteFile(t *testing.T) {
	path := testutil.TempFile(t, testutil.SumProgram(), ".bin")

	result, err := ExecuteFile(path)
	if err != nil {
		t.Fatalf("ExecuteFile failed: %v", err)
	}
	testutil.AssertRegister(t, result.State, 2, 42)
}

func TestExecuteHexFile(t *testing.T) {
	path := testutil.TempHex(t, testutil.SumProgram())

	result, err := ExecuteHexFile(path)
	if err != nil {
		t.Fatalf("ExecuteHexFile failed: %v", err)
	}
	testutil.AssertRegister(t, result.State, 2, 42)
}

func TestExecuteFile_ReturnsErrorOnMissingFile(t *testing.T) {
	_, err := ExecuteFile("/nonexistent/program.bin")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestExecuteWithOptions_InstructionLimit(t *testing.T) {
	result, err := ExecuteWithOptions(testutil.InfiniteLoop(), WithMaxInstructions(100))
	if !errors.Is(err, ErrInstructionLimit) {
		t.Fatalf("expected ErrInstructionLimit, got %v", err)
	}
	if !errors.Is(err, vm.ErrInstructionLimit) {
		t.Errorf("expected wrapped vm.ErrInstructionLimit, got %v", err)
	}
	if result.Steps != 100 {
		t.Errorf("expected 100 steps, got %d", result.Steps)
	}
}

func TestExecuteWithOptions_Timeout(t *testing.T) {
	_, err := ExecuteWithOptions(testutil.InfiniteLoop(), WithTimeout(10*time.Millisecond))
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestExecuteWithOptions_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ExecuteWithOptions(testutil.InfiniteLoop(), WithContext(ctx))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestExecuteWithOptions_VMOptions(t *testing.T) {
	program := testutil.NewBuilder().
		Load(0, 17).
		Load(1, 5).
		Op(vm.OpDIV, 0, 1, 2).
		Halt().
		Bytes()

	result, err := ExecuteWithOptions(program,
		WithVMOptions(vm.WithDivisionMode(vm.DivisionQuotient)),
		WithLogger(log.NewTestLogger(t)),
	)
	if err != nil {
		t.Fatalf("ExecuteWithOptions failed: %v", err)
	}
	testutil.AssertRegister(t, result.State, 2, 3)
	if result.State.Remainder != 2 {
		t.Errorf("expected remainder 2, got %d", result.State.Remainder)
	}

	_, err = ExecuteWithOptions(testutil.NewBuilder().Op(vm.OpSW, 0, 1, 0).Bytes(),
		WithVMOptions(vm.WithHeapSize(2)),
	)
	if !errors.Is(err, vm.ErrMemoryOutOfBounds) {
		t.Errorf("expected ErrMemoryOutOfBounds, got %v", err)
	}
}
