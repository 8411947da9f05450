package parser

import (
	"fmt"
	"strconv"
	"strings"
)

// Instruction is one JAS mnemonic line: an opcode name plus the raw operand
// tokens that follow it (0, 1, or 2 depending on the mnemonic). Operand
// resolution happens during Parse, once every block's local symbol table
// exists; only label addresses may be forward references, backpatched by
// assignBlockAddresses once every label in the block has an address.
type Instruction struct {
	Label    string
	Mnemonic string
	Operands []string
	Pos      Position
	Address  uint32 // absolute byte address of the opcode
	Length   uint32 // encoded length, including an auto-inserted WIDE prefix
	// ResolvedBytes is the instruction's complete encoding, filled in once
	// every label in its block has an address.
	ResolvedBytes []byte
}

// Block is a straight-line instruction body, optionally preceded by a .var
// section.
type Block struct {
	Vars         []string
	Instructions []*Instruction
	Locals       *SymbolTable
	BaseAddress  uint32
}

// Method is a .method ... .end-method body.
type Method struct {
	Name            string
	Params          []string
	Block           *Block
	Pos             Position
	PrologueAddress uint32
	// ConstIndex is this method's position in the combined constant pool
	// (method names are appended after user constants, in declaration
	// order).
	ConstIndex int
}

// ConstantDecl is one name/value pair from a .constant block.
type ConstantDecl struct {
	Name  string
	Value int32
	Pos   Position
}

// Program is the fully parsed and address-resolved form of a JAS source
// file, ready for the encoder to serialize into a constants/main_program
// image.
type Program struct {
	Constants    []ConstantDecl
	Main         *Block
	Methods      []*Method
	Symbols      *SymbolTable // global scope: constants + method names
	ProgramStart uint32
}

// Parser parses JAS source.
type Parser struct {
	tokens       []Token
	pos          int
	currentToken Token
	peekToken    Token
	errors       *ErrorList
	symbols      *SymbolTable
}

// NewParser creates a new parser for the given JAS source.
func NewParser(input, filename string) *Parser {
	lexer := NewLexer(input, filename)
	p := &Parser{
		errors:  &ErrorList{},
		symbols: NewSymbolTable(),
	}
	p.tokens = lexer.TokenizeAll()
	for _, err := range lexer.Errors().Errors {
		p.errors.AddError(err)
	}
	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) nextToken() {
	p.currentToken = p.peekToken
	for {
		if p.pos < len(p.tokens) {
			p.peekToken = p.tokens[p.pos]
			p.pos++
		} else {
			p.peekToken = Token{Type: TokenEOF, Pos: p.currentToken.Pos}
		}
		if p.peekToken.Type != TokenComment {
			break
		}
	}
}

func (p *Parser) fail(pos Position, kind ErrorKind, msg string) {
	p.errors.AddError(NewError(pos, kind, msg))
}

// Errors returns the accumulated error list.
func (p *Parser) Errors() *ErrorList {
	return p.errors
}

// Parse parses the whole source, resolving every address and symbol.
// programStart is the loader offset main_program will be placed at
// (conventionally 100); label and method addresses are baked in
// absolute, so it must match what the loader will actually use.
func (p *Parser) Parse(programStart uint32) (*Program, error) {
	// Skip any leading comments already handled by nextToken's filter.
	for p.currentToken.Type == TokenComment {
		p.nextToken()
	}

	prog := &Program{
		Symbols:      p.symbols,
		ProgramStart: programStart,
	}

	sawMain := false

	for p.currentToken.Type != TokenEOF {
		if p.currentToken.Type != TokenDirective {
			p.fail(p.currentToken.Pos, ErrorSyntax, fmt.Sprintf("expected a directive, got %q", p.currentToken.Literal))
			p.nextToken()
			continue
		}

		switch p.currentToken.Literal {
		case "constant":
			consts, err := p.parseConstantBlock()
			if err != nil {
				return nil, err
			}
			prog.Constants = consts

		case "main":
			if sawMain {
				p.fail(p.currentToken.Pos, ErrorInvalidDirective, "duplicate .main block")
				p.nextToken()
				continue
			}
			sawMain = true
			p.nextToken() // consume "main"
			block, err := p.parseBlockBody("end-main", nil)
			if err != nil {
				return nil, err
			}
			prog.Main = block

		case "method":
			method, err := p.parseMethod()
			if err != nil {
				return nil, err
			}
			prog.Methods = append(prog.Methods, method)

		default:
			p.fail(p.currentToken.Pos, ErrorInvalidDirective, fmt.Sprintf("unexpected directive %q at top level", p.currentToken.Literal))
			p.nextToken()
		}
	}

	if p.errors.HasErrors() {
		return nil, p.errors
	}
	if prog.Main == nil {
		return nil, fmt.Errorf("program has no .main block")
	}

	// Constant-pool indices: user constants first, then method names, both
	// in declaration order.
	for i, c := range prog.Constants {
		if err := p.symbols.Define(c.Name, SymbolConstant, c.Value, c.Pos); err != nil {
			return nil, err
		}
		sym, _ := p.symbols.Lookup(c.Name)
		sym.PoolIndex = int32(i)
	}
	for i, m := range prog.Methods {
		m.ConstIndex = len(prog.Constants) + i
		if err := p.symbols.Define(m.Name, SymbolMethod, int32(m.ConstIndex), m.Pos); err != nil {
			return nil, err
		}
	}

	// Address assignment: main's body starts at programStart; each method
	// follows in declaration order, each preceded by its 4-byte prologue.
	cursor := programStart
	if err := assignBlockAddresses(prog.Main, p.symbols, cursor); err != nil {
		return nil, err
	}
	cursor += blockByteLength(prog.Main)
	if len(prog.Methods) > 0 {
		// Reserve one byte between .main's last instruction and the first
		// method prologue: execution must never fall off the end of .main
		// into prologue bytes, so the encoder places a terminator (or a
		// NOP) in this slot.
		cursor++
	}

	for _, m := range prog.Methods {
		m.PrologueAddress = cursor
		cursor += 4
		if err := assignBlockAddresses(m.Block, p.symbols, cursor); err != nil {
			return nil, err
		}
		cursor += blockByteLength(m.Block)
	}

	if err := p.symbols.ResolveForwardReferences(); err != nil {
		return nil, err
	}
	if p.errors.HasErrors() {
		return nil, p.errors
	}

	return prog, nil
}

// parseConstantBlock parses `.constant name int ... .end-constant`.
func (p *Parser) parseConstantBlock() ([]ConstantDecl, error) {
	p.nextToken() // consume "constant"
	var decls []ConstantDecl

	for {
		if p.currentToken.Type == TokenDirective && p.currentToken.Literal == "end-constant" {
			p.nextToken()
			return decls, nil
		}
		if p.currentToken.Type == TokenEOF {
			return nil, fmt.Errorf("%s: unterminated .constant block", p.currentToken.Pos)
		}
		if p.currentToken.Type != TokenIdentifier {
			p.fail(p.currentToken.Pos, ErrorSyntax, fmt.Sprintf("expected a constant name, got %q", p.currentToken.Literal))
			p.nextToken()
			continue
		}
		name := p.currentToken.Literal
		pos := p.currentToken.Pos
		p.nextToken()

		val, err := p.parseSignedInt()
		if err != nil {
			p.fail(pos, ErrorSyntax, err.Error())
			continue
		}
		decls = append(decls, ConstantDecl{Name: name, Value: val, Pos: pos})
	}
}

// parseMethod parses `.method name(params...) [.var...end-var] body .end-method`.
func (p *Parser) parseMethod() (*Method, error) {
	pos := p.currentToken.Pos
	p.nextToken() // consume "method"

	if p.currentToken.Type != TokenIdentifier {
		return nil, fmt.Errorf("%s: expected method name", p.currentToken.Pos)
	}
	name := p.currentToken.Literal
	p.nextToken()

	var params []string
	if p.currentToken.Type == TokenLParen {
		p.nextToken()
		for p.currentToken.Type != TokenRParen {
			if p.currentToken.Type != TokenIdentifier {
				return nil, fmt.Errorf("%s: expected parameter name", p.currentToken.Pos)
			}
			params = append(params, p.currentToken.Literal)
			p.nextToken()
			if p.currentToken.Type == TokenComma {
				p.nextToken()
			}
		}
		p.nextToken() // consume ')'
	}
	if params == nil {
		// Non-nil marks a method frame for parseBlockBody.
		params = []string{}
	}
	if len(params) > MaxParams {
		return nil, fmt.Errorf("%s: method %q declares too many parameters (%d)", pos, name, len(params))
	}

	block, err := p.parseBlockBody("end-method", params)
	if err != nil {
		return nil, err
	}

	return &Method{Name: name, Params: params, Block: block, Pos: pos}, nil
}

// parseBlockBody parses an optional `.var ... .end-var` section followed by
// a straight-line instruction sequence, terminated by endDirective.
func (p *Parser) parseBlockBody(endDirective string, params []string) (*Block, error) {
	block := &Block{Locals: NewSymbolTable()}

	if p.currentToken.Type == TokenDirective && p.currentToken.Literal == "var" {
		p.nextToken()
		for !(p.currentToken.Type == TokenDirective && p.currentToken.Literal == "end-var") {
			if p.currentToken.Type == TokenEOF {
				return nil, fmt.Errorf("%s: unterminated .var block", p.currentToken.Pos)
			}
			if p.currentToken.Type != TokenIdentifier {
				return nil, fmt.Errorf("%s: expected a variable name", p.currentToken.Pos)
			}
			block.Vars = append(block.Vars, p.currentToken.Literal)
			p.nextToken()
		}
		p.nextToken() // consume "end-var"
	}

	// Register locals: params first (methods only, negative LV offsets from
	// paramOffset), then vars (offsets from varOffset), in declaration order.
	isMethodFrame := params != nil
	for j, name := range params {
		offset := paramOffset(j, len(params))
		if err := block.Locals.Define(name, SymbolParam, offset, Position{}); err != nil {
			return nil, err
		}
	}
	for k, name := range block.Vars {
		offset := varOffset(k, isMethodFrame)
		if err := block.Locals.Define(name, SymbolVar, offset, Position{}); err != nil {
			return nil, err
		}
	}

	for {
		if p.currentToken.Type == TokenDirective && p.currentToken.Literal == endDirective {
			p.nextToken()
			return block, nil
		}
		if p.currentToken.Type == TokenEOF {
			return nil, fmt.Errorf("%s: unterminated block, expected .%s", p.currentToken.Pos, endDirective)
		}

		inst, err := p.parseInstructionLine()
		if err != nil {
			return nil, err
		}
		block.Instructions = append(block.Instructions, inst)
	}
}

// parseInstructionLine parses an optional `label:` followed by a mnemonic
// and its operand tokens. Operand identifiers are resolved later, once
// address assignment gives every label in the block a value.
func (p *Parser) parseInstructionLine() (*Instruction, error) {
	inst := &Instruction{Pos: p.currentToken.Pos}

	if p.currentToken.Type == TokenIdentifier && p.peekToken.Type == TokenColon {
		inst.Label = p.currentToken.Literal
		p.nextToken() // identifier
		p.nextToken() // colon
	}

	if p.currentToken.Type != TokenIdentifier {
		return nil, fmt.Errorf("%s: expected an instruction mnemonic, got %q", p.currentToken.Pos, p.currentToken.Literal)
	}
	name := strings.ToUpper(p.currentToken.Literal)
	info, ok := mnemonics[name]
	if !ok {
		return nil, fmt.Errorf("%s: unknown mnemonic %q", p.currentToken.Pos, p.currentToken.Literal)
	}
	inst.Mnemonic = name
	p.nextToken()

	want := operandCount(info.Kind)
	for i := 0; i < want; i++ {
		if p.currentToken.Type != TokenIdentifier && p.currentToken.Type != TokenNumber {
			return nil, fmt.Errorf("%s: %s expects %d operand(s)", p.currentToken.Pos, name, want)
		}
		inst.Operands = append(inst.Operands, p.currentToken.Literal)
		p.nextToken()
	}

	return inst, nil
}

// parseSignedInt parses a decimal, 0x, 0b, octal, or '-'-prefixed literal.
func (p *Parser) parseSignedInt() (int32, error) {
	tok := p.currentToken
	if tok.Type != TokenNumber {
		return 0, fmt.Errorf("%s: expected a numeric literal, got %q", tok.Pos, tok.Literal)
	}
	p.nextToken()
	v, err := parseNumber(tok.Literal)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", tok.Pos, err)
	}
	return v, nil
}

// parseNumber parses decimal, 0x hex, 0b binary, or leading-zero octal
// literals, with an optional leading '-' (the lexer folds a sign into the
// number token).
func parseNumber(s string) (int32, error) {
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	var v uint64
	var err error
	switch {
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		v, err = strconv.ParseUint(s[2:], 16, 32)
	case strings.HasPrefix(s, "0b") || strings.HasPrefix(s, "0B"):
		v, err = strconv.ParseUint(s[2:], 2, 32)
	case len(s) > 1 && s[0] == '0':
		v, err = strconv.ParseUint(s, 8, 32)
	default:
		v, err = strconv.ParseUint(s, 10, 32)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid numeric literal %q: %w", s, err)
	}
	if neg {
		return -int32(v), nil
	}
	return int32(v), nil
}

// paramOffset is the LV-relative signed offset of the j-th declared
// parameter (0-based) out of paramCount declared parameters. The callee's
// frame reserves three metadata words at LV+0..2 (old LV, link, old SP)
// immediately above the arguments INVOKEVIRTUAL left on the stack, so
// declared parameters sit at negative offsets; objref (always popped as an
// implicit extra argument) occupies no named slot.
func paramOffset(j, paramCount int) int32 {
	total := int32(paramCount) + 1 // +1 for the implicit objref argument
	return 1 + int32(j) - total
}

// varOffset is the LV-relative offset of the k-th declared .var local
// (0-based). Inside a method frame, locals sit above the three reserved
// metadata words; main has no call frame, so its locals address the
// caller-visible stack slots directly (ISTORE 0x01 in .main writes the
// second word of the initial stack).
func varOffset(k int, isMethodFrame bool) int32 {
	if isMethodFrame {
		return 3 + int32(k)
	}
	return int32(k)
}
