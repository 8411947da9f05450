package parser

import "testing"

func parseSource(t *testing.T, src string) *Program {
	t.Helper()
	p := NewParser(src, "test.jas")
	prog, err := p.Parse(100)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	return prog
}

func TestParseSimpleMain(t *testing.T) {
	src := `
.main
BIPUSH 5
BIPUSH 3
IADD
POP
.end-main
`
	prog := parseSource(t, src)

	if prog.Main == nil {
		t.Fatal("expected a .main block")
	}
	if len(prog.Main.Instructions) != 4 {
		t.Fatalf("expected 4 instructions, got %d", len(prog.Main.Instructions))
	}
	if prog.Main.BaseAddress != 100 {
		t.Errorf("BaseAddress = %d, want 100", prog.Main.BaseAddress)
	}

	first := prog.Main.Instructions[0]
	if first.Mnemonic != "BIPUSH" || len(first.ResolvedBytes) != 2 {
		t.Fatalf("BIPUSH encoding wrong: %+v", first)
	}
	if first.ResolvedBytes[1] != 5 {
		t.Errorf("BIPUSH operand = %d, want 5", first.ResolvedBytes[1])
	}
}

func TestParseConstantsAndLDC_W(t *testing.T) {
	src := `
.constant
ZERO 0
FORTYTWO 42
.end-constant
.main
LDC_W FORTYTWO
POP
.end-main
`
	prog := parseSource(t, src)

	sym, ok := prog.Symbols.Lookup("FORTYTWO")
	if !ok {
		t.Fatal("FORTYTWO not defined")
	}
	if sym.PoolIndex != 1 {
		t.Errorf("FORTYTWO.PoolIndex = %d, want 1 (ZERO is 0)", sym.PoolIndex)
	}

	ldc := prog.Main.Instructions[0]
	if len(ldc.ResolvedBytes) != 3 {
		t.Fatalf("LDC_W should encode to 3 bytes, got %d", len(ldc.ResolvedBytes))
	}
	if ldc.ResolvedBytes[1] != 0 || ldc.ResolvedBytes[2] != 1 {
		t.Errorf("LDC_W operand bytes = %v, want [0 1]", ldc.ResolvedBytes[1:])
	}
}

func TestParseBackwardAndForwardBranch(t *testing.T) {
	src := `
.main
loop: BIPUSH 1
GOTO done
GOTO loop
done: POP
.end-main
`
	prog := parseSource(t, src)

	loopSym, ok := prog.Main.Locals.Lookup("loop")
	if !ok {
		t.Fatal("loop label not defined")
	}
	doneSym, ok := prog.Main.Locals.Lookup("done")
	if !ok {
		t.Fatal("done label not defined")
	}

	// Branch bytes carry the label's address minus one: the PC value the
	// dispatch loop pre-increments past to fetch the labelled instruction.
	gotoDone := prog.Main.Instructions[1]
	target := int32(gotoDone.ResolvedBytes[1])<<8 | int32(gotoDone.ResolvedBytes[2])
	if target != doneSym.Value-1 {
		t.Errorf("GOTO done target = %d, want %d", target, doneSym.Value-1)
	}

	gotoLoop := prog.Main.Instructions[2]
	target = int32(gotoLoop.ResolvedBytes[1])<<8 | int32(gotoLoop.ResolvedBytes[2])
	if target != loopSym.Value-1 {
		t.Errorf("GOTO loop target = %d, want %d", target, loopSym.Value-1)
	}
}

func TestParseMethodInvocation(t *testing.T) {
	src := `
.main
INVOKEVIRTUAL square
POP
.end-main
.method square(x)
ILOAD x
ILOAD x
IADD
IRETURN
.end-method
`
	prog := parseSource(t, src)

	if len(prog.Methods) != 1 {
		t.Fatalf("expected 1 method, got %d", len(prog.Methods))
	}
	method := prog.Methods[0]
	if method.ConstIndex != 0 {
		t.Errorf("square.ConstIndex = %d, want 0 (no user constants)", method.ConstIndex)
	}

	invoke := prog.Main.Instructions[0]
	if len(invoke.ResolvedBytes) != 3 {
		t.Fatalf("INVOKEVIRTUAL should encode to 3 bytes, got %d", len(invoke.ResolvedBytes))
	}
	if invoke.ResolvedBytes[1] != 0 {
		t.Errorf("INVOKEVIRTUAL high index byte = %d, want 0", invoke.ResolvedBytes[1])
	}
	if int32(invoke.ResolvedBytes[2]) != int32(method.ConstIndex) {
		t.Errorf("INVOKEVIRTUAL index byte = %d, want %d", invoke.ResolvedBytes[2], method.ConstIndex)
	}

	// x is the sole declared parameter: paramOffset(0, 1) = 1 + 0 - 2 = -1.
	iload := method.Block.Instructions[0]
	if int8(iload.ResolvedBytes[1]) != -1 {
		t.Errorf("ILOAD x offset = %d, want -1", int8(iload.ResolvedBytes[1]))
	}
}

func TestParseWideInsertedForLargeVarOffset(t *testing.T) {
	src := `
.main
.var
`
	for i := 0; i < 200; i++ {
		src += "v" + itoa(i) + " "
	}
	src += `
.end-var
ISTORE v199
.end-main
`
	prog := parseSource(t, src)

	store := prog.Main.Instructions[0]
	if len(store.ResolvedBytes) != 4 {
		t.Fatalf("expected a WIDE-prefixed 4-byte encoding, got %d bytes: %v", len(store.ResolvedBytes), store.ResolvedBytes)
	}
	if store.ResolvedBytes[0] != 0xC4 { // vm.OpWIDE
		t.Errorf("expected WIDE prefix 0xC4, got %#x", store.ResolvedBytes[0])
	}
}

func TestParseUndefinedLabelFails(t *testing.T) {
	src := `
.main
GOTO nowhere
.end-main
`
	p := NewParser(src, "test.jas")
	_, err := p.Parse(100)
	if err == nil {
		t.Fatal("expected an error for an undefined label")
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
