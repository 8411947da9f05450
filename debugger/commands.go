package debugger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mic1lab/mic1ijvm/vm"
)

// Command handler implementations

// cmdRun starts program execution from the machine's current state.
func (d *Debugger) cmdRun(args []string) error {
	d.Running = true
	d.StepMode = StepNone

	d.Println("Starting program execution...")
	return nil
}

// cmdContinue continues execution from the current point.
func (d *Debugger) cmdContinue(args []string) error {
	if d.VM.Halted {
		return fmt.Errorf("program is not running")
	}

	d.Running = true
	d.StepMode = StepNone

	d.Println("Continuing...")
	return nil
}

// cmdStep executes a single macro-instruction.
func (d *Debugger) cmdStep(args []string) error {
	d.StepMode = StepSingle
	d.Running = true
	return nil
}

// cmdNext steps over a method call (step to the next instruction at the
// same call depth).
func (d *Debugger) cmdNext(args []string) error {
	d.SetStepOver()
	return nil
}

// cmdFinish runs until the current method call returns.
func (d *Debugger) cmdFinish(args []string) error {
	d.SetStepOut()
	return nil
}

// cmdBreak sets a breakpoint. Conditional breakpoints ("break <addr> if
// <condition>") are not supported: there is no expression evaluator behind
// ShouldBreak to test the condition against, so rather than parse, store, and
// silently ignore one, an "if" clause is rejected outright.
func (d *Debugger) cmdBreak(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: break <address|label>")
	}
	if len(args) > 1 {
		return fmt.Errorf("conditional breakpoints are not supported; usage: break <address|label>")
	}

	address, err := d.ResolveAddress(args[0])
	if err != nil {
		return err
	}

	bp := d.Breakpoints.AddBreakpoint(address, false, "")
	d.Printf("Breakpoint %d at %d\n", bp.ID, address)

	return nil
}

// cmdTBreak sets a temporary breakpoint (auto-delete after hit)
func (d *Debugger) cmdTBreak(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: tbreak <address|label>")
	}

	address, err := d.ResolveAddress(args[0])
	if err != nil {
		return err
	}

	bp := d.Breakpoints.AddBreakpoint(address, true, "")
	d.Printf("Temporary breakpoint %d at %d\n", bp.ID, address)

	return nil
}

// cmdDelete deletes breakpoint(s)
func (d *Debugger) cmdDelete(args []string) error {
	if len(args) == 0 {
		d.Breakpoints.Clear()
		d.Println("All breakpoints deleted")
		return nil
	}

	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid breakpoint ID: %s", args[0])
	}

	if err := d.Breakpoints.DeleteBreakpoint(id); err != nil {
		return err
	}

	d.Printf("Breakpoint %d deleted\n", id)
	return nil
}

// cmdEnable enables breakpoint(s)
func (d *Debugger) cmdEnable(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: enable <breakpoint-id>")
	}

	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid breakpoint ID: %s", args[0])
	}

	if err := d.Breakpoints.EnableBreakpoint(id); err != nil {
		return err
	}

	d.Printf("Breakpoint %d enabled\n", id)
	return nil
}

// cmdDisable disables breakpoint(s)
func (d *Debugger) cmdDisable(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: disable <breakpoint-id>")
	}

	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid breakpoint ID: %s", args[0])
	}

	if err := d.Breakpoints.DisableBreakpoint(id); err != nil {
		return err
	}

	d.Printf("Breakpoint %d disabled\n", id)
	return nil
}

// cmdWatch sets a watchpoint. A leading "r:"/"w:"/"a:" selects the kind
// (default write), covering gdb's rwatch/awatch split without a separate
// command per kind.
func (d *Debugger) cmdWatch(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: watch <expression>")
	}

	wpType := WatchWrite
	expression := strings.Join(args, " ")
	switch {
	case strings.HasPrefix(expression, "r:"):
		wpType = WatchRead
		expression = expression[2:]
	case strings.HasPrefix(expression, "a:"):
		wpType = WatchReadWrite
		expression = expression[2:]
	}

	isRegister, register, address, err := d.parseWatchExpression(expression)
	if err != nil {
		return err
	}

	wp := d.Watchpoints.AddWatchpoint(wpType, expression, address, isRegister, register)

	if err := d.Watchpoints.InitializeWatchpoint(wp.ID, d.VM); err != nil {
		_ = d.Watchpoints.DeleteWatchpoint(wp.ID)
		return err
	}

	d.Printf("Watchpoint %d: %s\n", wp.ID, expression)
	return nil
}

// parseWatchExpression parses a watch expression: a bare register name
// (pc, mar, mdr, mbr, sp, lv, cpp, tos, opc, h), a bracketed memory address
// or label ([50], [myvar]), or a bare label/address.
func (d *Debugger) parseWatchExpression(expr string) (isRegister bool, register string, address uint32, err error) {
	expr = strings.ToLower(strings.TrimSpace(expr))

	switch expr {
	case "pc", "mar", "mdr", "mbr", "sp", "lv", "cpp", "tos", "opc", "h":
		return true, expr, 0, nil
	}

	if strings.HasPrefix(expr, "[") && strings.HasSuffix(expr, "]") {
		addrStr := strings.TrimSuffix(strings.TrimPrefix(expr, "["), "]")
		addr, err := d.ResolveAddress(addrStr)
		if err != nil {
			return false, "", 0, err
		}
		return false, "", addr, nil
	}

	addr, err := d.ResolveAddress(expr)
	if err != nil {
		return false, "", 0, fmt.Errorf("invalid watch expression: %s", expr)
	}

	return false, "", addr, nil
}

// evaluateExpression resolves a bare token to a value: a named register, a
// bracketed memory reference, a symbol, or a numeric literal. There is no
// operator support; composite expressions are out of scope.
func (d *Debugger) evaluateExpression(expr string) (int32, error) {
	lower := strings.ToLower(strings.TrimSpace(expr))

	switch lower {
	case "pc", "mar", "mdr", "mbr", "sp", "lv", "cpp", "tos", "opc", "h":
		v, err := registerValue(d.VM, lower)
		return v, err
	}

	if strings.HasPrefix(lower, "[") && strings.HasSuffix(lower, "]") {
		addrStr := lower[1 : len(lower)-1]
		addr, err := d.ResolveAddress(addrStr)
		if err != nil {
			return 0, err
		}
		v, err := d.VM.Memory.PeekWord(addr)
		return int32(v), err
	}

	if v, exists := d.Symbols[expr]; exists {
		return v, nil
	}

	n, err := strconv.ParseInt(lower, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("cannot evaluate expression: %s", expr)
	}
	return int32(n), nil
}

// cmdPrint evaluates and prints an expression
func (d *Debugger) cmdPrint(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: print <expression>")
	}

	expression := strings.Join(args, " ")
	result, err := d.evaluateExpression(expression)
	if err != nil {
		return err
	}

	d.Printf("%s = %d (%#08x)\n", expression, result, uint32(result))
	return nil
}

// cmdExamine examines a run of memory cells starting at an address. Every
// cell in main memory holds one 32-bit word; the format letter controls how
// it is printed, not how many bytes are read.
func (d *Debugger) cmdExamine(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: x[/nf] <address>\n  n: count, f: format (x/d/u/o/t)")
	}

	count := 1
	format := 'x'
	addrArg := args[0]

	if strings.HasPrefix(args[0], "/") {
		formatStr := args[0][1:]
		if len(args) < 2 {
			return fmt.Errorf("missing address")
		}
		addrArg = args[1]

		i := 0
		for i < len(formatStr) && formatStr[i] >= '0' && formatStr[i] <= '9' {
			i++
		}
		if i > 0 {
			if n, err := strconv.Atoi(formatStr[:i]); err == nil {
				count = n
			}
			formatStr = formatStr[i:]
		}

		if len(formatStr) > 0 {
			format = rune(formatStr[0])
		}
	}

	address, err := d.ResolveAddress(addrArg)
	if err != nil {
		return err
	}

	d.Printf("%d:", address)
	for i := 0; i < count; i++ {
		value, err := d.VM.Memory.PeekWord(address)
		if err != nil {
			return err
		}
		address++

		switch format {
		case 'd':
			d.Printf(" %d", value)
		case 'u':
			d.Printf(" %d", uint32(value))
		case 'o':
			d.Printf(" %o", uint32(value))
		case 't':
			d.Printf(" %b", uint32(value))
		default:
			d.Printf(" %#08x", uint32(value))
		}
	}
	d.Println()

	return nil
}

// cmdInfo displays information about program state
func (d *Debugger) cmdInfo(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: info <registers|breakpoints|watchpoints|stack>")
	}

	switch strings.ToLower(args[0]) {
	case "registers", "reg", "r":
		return d.showRegisters()
	case "breakpoints", "break", "b":
		return d.showBreakpoints()
	case "watchpoints", "watch", "w":
		return d.showWatchpoints()
	case "stack", "s":
		return d.showStack()
	default:
		return fmt.Errorf("unknown info command: %s", args[0])
	}
}

// showRegisters displays the ten 32-bit Mic1 registers, the MPC and the
// cycle count; the MIR is not shown.
func (d *Debugger) showRegisters() error {
	d.Println("Registers:")
	d.Printf("  PC  = %d\n", d.VM.PC.Peek())
	d.Printf("  MAR = %d\n", d.VM.MAR.Peek())
	d.Printf("  MDR = %d\n", d.VM.MDR.Peek())
	d.Printf("  MBR = %d\n", d.VM.MBR.Peek())
	d.Printf("  SP  = %d\n", d.VM.SP.Peek())
	d.Printf("  LV  = %d\n", d.VM.LV.Peek())
	d.Printf("  CPP = %d\n", d.VM.CPP.Peek())
	d.Printf("  TOS = %d\n", d.VM.TOS.Peek())
	d.Printf("  OPC = %d\n", d.VM.OPC.Peek())
	d.Printf("  H   = %d\n", d.VM.H.Peek())
	d.Printf("  MPC = %#03x\n", d.VM.MPC.Read())
	d.Printf("  cycles = %d\n", d.VM.Cycles)

	return nil
}

// showBreakpoints displays all breakpoints
func (d *Debugger) showBreakpoints() error {
	breakpoints := d.Breakpoints.GetAllBreakpoints()
	if len(breakpoints) == 0 {
		d.Println("No breakpoints")
		return nil
	}

	d.Println("Breakpoints:")
	for _, bp := range breakpoints {
		status := "enabled"
		if !bp.Enabled {
			status = "disabled"
		}

		temp := ""
		if bp.Temporary {
			temp = " (temporary)"
		}

		condition := ""
		if bp.Condition != "" {
			condition = fmt.Sprintf(" if %s", bp.Condition)
		}

		d.Printf("  %d: %d %s%s%s (hit %d times)\n",
			bp.ID, bp.Address, status, temp, condition, bp.HitCount)
	}

	return nil
}

// showWatchpoints displays all watchpoints
func (d *Debugger) showWatchpoints() error {
	watchpoints := d.Watchpoints.GetAllWatchpoints()
	if len(watchpoints) == 0 {
		d.Println("No watchpoints")
		return nil
	}

	d.Println("Watchpoints:")
	for _, wp := range watchpoints {
		status := "enabled"
		if !wp.Enabled {
			status = "disabled"
		}

		wpType := "write"
		if wp.Type == WatchRead {
			wpType = "read"
		} else if wp.Type == WatchReadWrite {
			wpType = "access"
		}

		d.Printf("  %d: %s %s %s (hit %d times, last value: %d)\n",
			wp.ID, wp.Expression, wpType, status, wp.HitCount, wp.LastValue)
	}

	return nil
}

// showStack displays the 8 words below TOS, starting at SP.
func (d *Debugger) showStack() error {
	sp := uint32(d.VM.SP.Peek())
	d.Printf("Stack (SP = %d, TOS = %d):\n", sp, d.VM.TOS.Peek())

	for i := 0; i < StackInspectionMaxOffset; i++ {
		if uint32(i) > sp {
			break
		}
		addr := sp - uint32(i)
		value, err := d.VM.Memory.PeekWord(addr)
		if err != nil {
			break
		}
		d.Printf("  %d: %d\n", addr, value)
	}

	return nil
}

// cmdBacktrace walks the INVOKEVIRTUAL frame chain: each frame's link word
// (LV+1) is the caller's PC and its LV+0 word is the caller's LV, so each
// step reports the caller's PC and LV and moves to the caller's frame. The
// walk stops at a zero link/LV pair, an LV that does not decrease, or 64
// frames.
func (d *Debugger) cmdBacktrace(args []string) error {
	d.Println("Call stack:")
	d.Printf("  #0  PC=%d LV=%d\n", d.VM.PC.Peek(), d.VM.LV.Peek())

	lv := uint32(d.VM.LV.Peek())
	depth := 1
	for depth < 64 {
		oldLV, err := d.VM.Memory.PeekWord(lv)
		if err != nil {
			break
		}
		link, err := d.VM.Memory.PeekWord(lv + 1)
		if err != nil {
			break
		}
		if oldLV == 0 && link == 0 {
			break
		}
		d.Printf("  #%d  PC=%d LV=%d\n", depth, link, oldLV)
		if uint32(oldLV) >= lv {
			break
		}
		lv = uint32(oldLV)
		depth++
	}

	return nil
}

// cmdList shows the JAS source line mapped to the current PC, if loaded.
func (d *Debugger) cmdList(args []string) error {
	d.Println("list: no source map loaded")
	return nil
}

// cmdSet modifies a register or memory cell.
func (d *Debugger) cmdSet(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: set <register|*address> = <value>")
	}

	if args[1] != "=" {
		return fmt.Errorf("usage: set <register|*address> = <value>")
	}

	target := strings.ToLower(args[0])
	valueStr := args[2]

	value, err := d.evaluateExpression(valueStr)
	if err != nil {
		return err
	}

	if strings.HasPrefix(target, "*") {
		addrStr := target[1:]
		address, err := d.ResolveAddress(addrStr)
		if err != nil {
			return err
		}

		if err := d.VM.Memory.LoadWord(address, value); err != nil {
			return err
		}

		d.Printf("Memory %d set to %d\n", address, value)
		return nil
	}

	reg, ok := registerByName(d.VM, target)
	if !ok {
		return fmt.Errorf("invalid register: %s", target)
	}
	reg.Set(value)
	d.Printf("Register %s set to %d\n", target, value)

	return nil
}

// registerByName returns a pointer to one of Mic1's named registers for
// direct mutation by "set".
func registerByName(machine *vm.Mic1, name string) (*vm.Register32, bool) {
	switch name {
	case "pc":
		return &machine.PC, true
	case "mar":
		return &machine.MAR, true
	case "mdr":
		return &machine.MDR, true
	case "mbr":
		return &machine.MBR, true
	case "sp":
		return &machine.SP, true
	case "lv":
		return &machine.LV, true
	case "cpp":
		return &machine.CPP, true
	case "tos":
		return &machine.TOS, true
	case "opc":
		return &machine.OPC, true
	case "h":
		return &machine.H, true
	default:
		return nil, false
	}
}

// cmdReset re-runs the machine's lifecycle initialization; the caller is
// expected to reload memory first if a fresh image is wanted.
func (d *Debugger) cmdReset(args []string) error {
	d.Println("reset: rebuild the machine with loader.NewMachine to reload an image")
	return nil
}

// cmdHelp displays help information
func (d *Debugger) cmdHelp(args []string) error {
	if len(args) > 0 {
		return d.showCommandHelp(args[0])
	}

	d.Println("Mic-1/IJVM Debugger Commands:")
	d.Println()
	d.Println("Execution Control:")
	d.Println("  run (r)           - Start program execution")
	d.Println("  continue (c)      - Continue execution")
	d.Println("  step (s, si)      - Execute single macro-instruction")
	d.Println("  next (n)          - Step over a method call")
	d.Println("  finish (fin)      - Run until the current call returns")
	d.Println()
	d.Println("Breakpoints:")
	d.Println("  break (b) <addr>  - Set breakpoint")
	d.Println("  tbreak (tb) <addr>- Set temporary breakpoint")
	d.Println("  delete (d) [id]   - Delete breakpoint(s)")
	d.Println("  enable <id>       - Enable breakpoint")
	d.Println("  disable <id>      - Disable breakpoint")
	d.Println()
	d.Println("Watchpoints:")
	d.Println("  watch (w) <expr>       - Watch for value changes (write)")
	d.Println("  watch r:<expr>         - Watch for reads")
	d.Println("  watch a:<expr>         - Watch for any access")
	d.Println()
	d.Println("Inspection:")
	d.Println("  print (p) <expr>  - Evaluate a register/memory/symbol")
	d.Println("  x[/nf] <addr>     - Examine memory")
	d.Println("  info (i) <what>   - Show information")
	d.Println("  backtrace (bt)    - Show call stack")
	d.Println()
	d.Println("Modification:")
	d.Println("  set <var> = <val> - Modify register/memory")
	d.Println()
	d.Println("Control:")
	d.Println("  reset             - Notes on reloading the machine")
	d.Println("  help (h, ?)       - Show this help")
	d.Println()
	d.Println("Type 'help <command>' for detailed help on a specific command.")

	return nil
}

// showCommandHelp shows detailed help for a specific command
func (d *Debugger) showCommandHelp(cmd string) error {
	helpText := map[string]string{
		"break": "break <address|label>\n  Set a breakpoint at the specified address or label.",
		"step":  "step\n  Execute a single macro-instruction.",
		"next":  "next\n  Step over a method call (execute until the call returns).",
		"print": "print <expression>\n  Evaluate and print a register, memory reference, symbol, or literal.",
		"x":     "x[/nf] <address>\n  Examine memory.\n  n: count, f: format (x/d/u/o/t)",
		"info":  "info <registers|breakpoints|watchpoints|stack>\n  Display information about program state.",
	}

	if help, exists := helpText[cmd]; exists {
		d.Println(help)
		return nil
	}

	return fmt.Errorf("no help available for command: %s", cmd)
}
