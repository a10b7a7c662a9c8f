// Package asm tokenizes single lines of Iridium assembly and checks them
// against the instruction shape grammar. It does not produce bytecode.
//
// Syntax:
//
//	load $1 #100
//	add $0 $1 $2
//	jeq $3 $4
//
// Mnemonics are lower case, registers are written $N and integer operands #N.
package asm

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/akhildatla/iridium/pkg/vm"
)

// Error definitions
var (
	ErrNoMatchingToken = errors.New("no matching token")
	ErrTooManyTokens   = errors.New("too many arguments")
	ErrEmptyLine       = errors.New("empty instruction")
	ErrNoMatchingRule  = errors.New("no matching instruction")
	ErrOperandRange    = errors.New("operand out of range")
)

// MaxTokens is the number of tokens an instruction line may hold: the
// mnemonic and up to three arguments.
const MaxTokens = 4

// TokenType represents the type of a token.
type TokenType uint8

const (
	TokenOpcode TokenType = iota
	TokenRegister
	TokenInteger
)

// String returns the string representation of a token type.
func (t TokenType) String() string {
	switch t {
	case TokenOpcode:
		return "OPCODE"
	case TokenRegister:
		return "REGISTER"
	case TokenInteger:
		return "INTEGER"
	default:
		return "UNKNOWN"
	}
}

// Token represents a lexical token. Opcode is set for opcode tokens and
// Value for register and integer tokens.
type Token struct {
	Type   TokenType
	Opcode vm.Opcode
	Value  int64
	Text   string
}

// String renders the token in source form.
func (t Token) String() string {
	switch t.Type {
	case TokenOpcode:
		if !t.Opcode.Valid() {
			return t.Text
		}
		return strings.ToLower(t.Opcode.String())
	case TokenRegister:
		return "$" + strconv.FormatInt(t.Value, 10)
	default:
		return "#" + strconv.FormatInt(t.Value, 10)
	}
}

// terminalRule maps a whole-token pattern to a token type. The first
// submatch holds the token payload.
type terminalRule struct {
	tokenType TokenType
	pattern   *regexp.Regexp
}

var terminalRules = []terminalRule{
	{TokenOpcode, regexp.MustCompile(`^([a-z]+)$`)},
	{TokenRegister, regexp.MustCompile(`^\$(\d{1,2})$`)},
	{TokenInteger, regexp.MustCompile(`^#(\d+)$`)},
}

// Lexer tokenizes assembly lines and matches them against a grammar.
type Lexer struct {
	grammar *Grammar
}

// NewLexer creates a lexer using the default instruction grammar.
func NewLexer() *Lexer {
	return &Lexer{grammar: DefaultGrammar()}
}

// NewLexerWithGrammar creates a lexer using a custom grammar.
func NewLexerWithGrammar(g *Grammar) *Lexer {
	return &Lexer{grammar: g}
}

// ParseToken classifies a single source token.
func (l *Lexer) ParseToken(src string) (Token, error) {
	for _, rule := range terminalRules {
		m := rule.pattern.FindStringSubmatch(src)
		if m == nil {
			continue
		}

		tok := Token{Type: rule.tokenType, Text: src}
		switch rule.tokenType {
		case TokenOpcode:
			tok.Opcode = vm.OpcodeFromMnemonic(m[1])
		default:
			n, err := strconv.ParseInt(m[1], 10, 32)
			if err != nil {
				return Token{}, fmt.Errorf("%w: '%s'", ErrOperandRange, src)
			}
			tok.Value = n
		}
		return tok, nil
	}
	return Token{}, fmt.Errorf("%w for '%s'", ErrNoMatchingToken, src)
}

// ParseInstruction splits a line on whitespace and tokenizes every part.
// The first token must be an opcode.
func (l *Lexer) ParseInstruction(line string) (Instruction, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Instruction{}, ErrEmptyLine
	}
	if len(fields) > MaxTokens {
		return Instruction{}, fmt.Errorf("invalid instruction, %w (for '%s')", ErrTooManyTokens, line)
	}

	tokens := make([]Token, 0, len(fields))
	for _, field := range fields {
		tok, err := l.ParseToken(field)
		if err != nil {
			return Instruction{}, fmt.Errorf("no matching instruction for '%s': %w", line, err)
		}
		tokens = append(tokens, tok)
	}

	if tokens[0].Type != TokenOpcode {
		return Instruction{}, fmt.Errorf("%w for '%s': expected opcode, got %s", ErrNoMatchingRule, line, tokens[0].Type)
	}

	return Instruction{Opcode: tokens[0], Args: tokens[1:]}, nil
}

// Match reports whether the instruction matches any grammar rule.
func (l *Lexer) Match(inst Instruction) bool {
	_, ok := l.grammar.Lookup(inst)
	return ok
}

// Validate parses a line, matches it against the grammar and checks operand
// ranges against the machine encoding.
func (l *Lexer) Validate(line string) (Instruction, error) {
	inst, err := l.ParseInstruction(line)
	if err != nil {
		return Instruction{}, err
	}

	rule, ok := l.grammar.Lookup(inst)
	if !ok {
		return Instruction{}, fmt.Errorf("%w for '%s', expected %s", ErrNoMatchingRule, line, l.grammar.Usage(inst.Opcode.Opcode))
	}
	if err := rule.checkRanges(inst); err != nil {
		return Instruction{}, fmt.Errorf("'%s': %w", line, err)
	}
	return inst, nil
}

// Instruction is a tokenized assembly line.
type Instruction struct {
	Opcode Token
	Args   []Token
}

// String renders the instruction in canonical source form.
func (i Instruction) String() string {
	parts := make([]string, 0, 1+len(i.Args))
	parts = append(parts, i.Opcode.String())
	for _, arg := range i.Args {
		parts = append(parts, arg.String())
	}
	return strings.Join(parts, " ")
}
