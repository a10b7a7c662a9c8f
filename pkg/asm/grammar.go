package asm

import (
	"fmt"
	"math"
	"strings"

	"github.com/akhildatla/iridium/pkg/vm"
)

// Rule describes the argument shape of one instruction.
type Rule struct {
	Opcode vm.Opcode
	Args   []TokenType
	// Max is the largest accepted value per argument.
	Max []int64
}

// Match reports whether the instruction has the rule's opcode and exactly
// the rule's argument types.
func (r Rule) Match(inst Instruction) bool {
	if inst.Opcode.Type != TokenOpcode || inst.Opcode.Opcode != r.Opcode {
		return false
	}
	if len(inst.Args) != len(r.Args) {
		return false
	}
	for i, arg := range inst.Args {
		if arg.Type != r.Args[i] {
			return false
		}
	}
	return true
}

// Usage returns the rule in source form, e.g. "load $reg #int".
func (r Rule) Usage() string {
	parts := []string{strings.ToLower(r.Opcode.String())}
	for _, arg := range r.Args {
		if arg == TokenRegister {
			parts = append(parts, "$reg")
		} else {
			parts = append(parts, "#int")
		}
	}
	return strings.Join(parts, " ")
}

func (r Rule) checkRanges(inst Instruction) error {
	for i, arg := range inst.Args {
		if arg.Value > r.Max[i] {
			return fmt.Errorf("%w: argument %d %s exceeds %d", ErrOperandRange, i+1, arg, r.Max[i])
		}
	}
	return nil
}

// Grammar is the set of instruction rules known to a lexer.
type Grammar struct {
	rules []Rule
}

// NewGrammar creates an empty grammar.
func NewGrammar() *Grammar {
	return &Grammar{}
}

// AddRule registers an instruction rule. Max defaults to the register file
// size for registers and to the 16 bit immediate range for integers.
func (g *Grammar) AddRule(op vm.Opcode, args ...TokenType) {
	limits := make([]int64, len(args))
	for i, arg := range args {
		if arg == TokenRegister {
			limits[i] = vm.NumRegisters - 1
		} else {
			limits[i] = math.MaxUint16
		}
	}
	g.rules = append(g.rules, Rule{Opcode: op, Args: args, Max: limits})
}

// AddRuleWithLimits registers a rule with explicit argument limits.
func (g *Grammar) AddRuleWithLimits(op vm.Opcode, args []TokenType, limits []int64) {
	g.rules = append(g.rules, Rule{Opcode: op, Args: args, Max: limits})
}

// Rules returns the registered rules.
func (g *Grammar) Rules() []Rule {
	return g.rules
}

// Lookup returns the first rule matching the instruction.
func (g *Grammar) Lookup(inst Instruction) (Rule, bool) {
	for _, rule := range g.rules {
		if rule.Match(inst) {
			return rule, true
		}
	}
	return Rule{}, false
}

// Usage lists the accepted forms of an opcode.
func (g *Grammar) Usage(op vm.Opcode) string {
	var forms []string
	for _, rule := range g.rules {
		if rule.Opcode == op {
			forms = append(forms, "'"+rule.Usage()+"'")
		}
	}
	if len(forms) == 0 {
		return "a known mnemonic"
	}
	return strings.Join(forms, " or ")
}

// DefaultGrammar returns the rules for the full instruction set. Operand
// shapes follow the byte encoding: JEQ takes two registers because its
// third byte is padding, LW and SW take an 8 bit offset.
func DefaultGrammar() *Grammar {
	g := NewGrammar()
	reg := TokenRegister
	integer := TokenInteger

	g.AddRule(vm.OpHLT)
	g.AddRule(vm.OpLOAD, reg, integer)
	for _, op := range []vm.Opcode{vm.OpADD, vm.OpSUB, vm.OpMUL, vm.OpDIV} {
		g.AddRule(op, reg, reg, reg)
	}
	for _, op := range []vm.Opcode{vm.OpJMP, vm.OpJMPF, vm.OpJMPB} {
		g.AddRule(op, reg)
	}
	for _, op := range []vm.Opcode{vm.OpEQ, vm.OpNEQ, vm.OpGT, vm.OpLT, vm.OpGTQ, vm.OpLTQ} {
		g.AddRule(op, reg, reg, reg)
	}
	g.AddRule(vm.OpJEQ, reg, reg)

	memArgs := []TokenType{reg, reg, integer}
	memMax := []int64{vm.NumRegisters - 1, vm.NumRegisters - 1, math.MaxUint8}
	g.AddRuleWithLimits(vm.OpLW, memArgs, memMax)
	g.AddRuleWithLimits(vm.OpSW, memArgs, memMax)

	return g
}
