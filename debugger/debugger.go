package debugger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mic1lab/mic1ijvm/config"
	"github.com/mic1lab/mic1ijvm/vm"
)

// Debugger represents the debugger state and functionality
type Debugger struct {
	VM *vm.Mic1

	Breakpoints *BreakpointManager
	Watchpoints *WatchpointManager
	History     *CommandHistory

	Running    bool
	StepMode   StepMode
	StepOverLV int32 // LV to return to for step-over/step-out, per SetStepOver/SetStepOut

	// Symbols maps label/method/constant names to their resolved value,
	// loaded from a parser.Program's symbol table after assembly.
	Symbols map[string]int32

	// StopByte is the image terminator the run loops watch for at a Main1
	// boundary; config.Execution.StopByte when built from config.
	StopByte byte

	LastCommand string

	Output strings.Builder
}

// StepMode represents different stepping granularities. A "step" always
// advances one full IJVM macro-instruction (one Main1-to-Main1 cycle); the
// distinction below is only about what happens when the instruction being
// stepped is INVOKEVIRTUAL.
type StepMode int

const (
	StepNone   StepMode = iota // Not stepping
	StepSingle                 // Stop at the next macro-instruction boundary
	StepOver                   // Run through an entire call before stopping
	StepOut                    // Run until the current call returns
)

// NewDebugger creates a new debugger instance
func NewDebugger(machine *vm.Mic1) *Debugger {
	return &Debugger{
		VM:          machine,
		Breakpoints: NewBreakpointManager(),
		Watchpoints: NewWatchpointManager(),
		History:     NewCommandHistory(),
		Running:     false,
		StepMode:    StepNone,
		Symbols:     make(map[string]int32),
		StopByte:    DefaultStopByte,
	}
}

// NewDebuggerWithConfig builds a debugger whose tunables come from a loaded
// configuration: history depth, the stop byte the run loops watch for, and
// the cycle trace. When Execution.EnableTrace is set the machine's Trace
// writer is pointed at this debugger's output buffer, so trace lines show
// up interleaved with command output.
func NewDebuggerWithConfig(machine *vm.Mic1, cfg *config.Config) *Debugger {
	d := NewDebugger(machine)
	d.History = NewCommandHistoryWithSize(cfg.Debugger.HistorySize)
	d.StopByte = cfg.Execution.StopByte
	if cfg.Execution.EnableTrace {
		machine.Trace = &d.Output
	}
	return d
}

// LoadSymbols loads a symbol table for label/method/constant name resolution.
func (d *Debugger) LoadSymbols(symbols map[string]int32) {
	d.Symbols = symbols
}

// ResolveAddress resolves a label name to its address, or parses a numeric
// address (decimal or 0x-prefixed hex).
func (d *Debugger) ResolveAddress(addrStr string) (uint32, error) {
	if addr, exists := d.Symbols[addrStr]; exists {
		return uint32(addr), nil
	}

	if strings.HasPrefix(addrStr, "0x") || strings.HasPrefix(addrStr, "0X") {
		v, err := strconv.ParseUint(addrStr[2:], 16, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid address: %s", addrStr)
		}
		return uint32(v), nil
	}

	v, err := strconv.ParseInt(addrStr, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid address: %s", addrStr)
	}
	return uint32(v), nil
}

// ExecuteCommand processes and executes a debugger command line.
func (d *Debugger) ExecuteCommand(cmdLine string) error {
	cmdLine = strings.TrimSpace(cmdLine)

	if cmdLine == "" {
		cmdLine = d.LastCommand
	}
	if cmdLine != "" {
		d.History.Add(cmdLine)
		d.LastCommand = cmdLine
	}

	parts := strings.Fields(cmdLine)
	if len(parts) == 0 {
		return nil
	}

	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	return d.handleCommand(cmd, args)
}

// handleCommand dispatches commands to their handlers.
func (d *Debugger) handleCommand(cmd string, args []string) error {
	switch cmd {
	case "run", "r":
		return d.cmdRun(args)
	case "continue", "c":
		return d.cmdContinue(args)
	case "step", "s", "si":
		return d.cmdStep(args)
	case "next", "n":
		return d.cmdNext(args)
	case "finish", "fin":
		return d.cmdFinish(args)

	case "break", "b":
		return d.cmdBreak(args)
	case "tbreak", "tb":
		return d.cmdTBreak(args)
	case "delete", "d":
		return d.cmdDelete(args)
	case "enable":
		return d.cmdEnable(args)
	case "disable":
		return d.cmdDisable(args)

	case "watch", "w":
		return d.cmdWatch(args)

	case "print", "p":
		return d.cmdPrint(args)
	case "x":
		return d.cmdExamine(args)
	case "info", "i":
		return d.cmdInfo(args)
	case "backtrace", "bt", "where":
		return d.cmdBacktrace(args)
	case "list", "l":
		return d.cmdList(args)

	case "set":
		return d.cmdSet(args)

	case "reset":
		return d.cmdReset(args)

	case "help", "h", "?":
		return d.cmdHelp(args)

	default:
		return fmt.Errorf("unknown command: %s (type 'help' for available commands)", cmd)
	}
}

// ShouldBreak reports whether execution should pause. Every check happens
// at a Main1 dispatch boundary, between macro-instructions: step modes
// complete there, a breakpoint fires when the next instruction to dispatch
// (PC+1, since Main1 pre-increments before fetching) carries one, and
// watchpoints compare against the values they saw at the previous boundary.
// Resuming from a stopped breakpoint therefore does not immediately re-fire
// the same breakpoint.
func (d *Debugger) ShouldBreak() (bool, string) {
	if d.VM.MPC.Read() != vm.MainEntry {
		return false, ""
	}

	switch d.StepMode {
	case StepSingle:
		d.StepMode = StepNone
		return true, "single step"

	case StepOver, StepOut:
		if d.VM.LV.Peek() != d.StepOverLV {
			return false, ""
		}
		d.StepMode = StepNone
		return true, "step complete"
	}

	next := uint32(d.VM.PC.Peek()) + 1
	if bp := d.Breakpoints.GetBreakpoint(next); bp != nil && bp.Enabled {
		hit := d.Breakpoints.ProcessHit(next)
		return true, fmt.Sprintf("breakpoint %d", hit.ID)
	}

	if wp, changed := d.Watchpoints.CheckWatchpoints(d.VM); wp != nil && changed {
		return true, fmt.Sprintf("watchpoint %d: %s", wp.ID, wp.Expression)
	}

	return false, ""
}

// GetOutput returns and clears the output buffer.
func (d *Debugger) GetOutput() string {
	output := d.Output.String()
	d.Output.Reset()
	return output
}

func (d *Debugger) Printf(format string, args ...interface{}) {
	d.Output.WriteString(fmt.Sprintf(format, args...))
}

func (d *Debugger) Println(args ...interface{}) {
	d.Output.WriteString(fmt.Sprintln(args...))
}

// SetStepOver runs through an entire INVOKEVIRTUAL call without stopping
// inside it: since IRETURN restores LV to its pre-call value, the call has
// finished exactly when LV returns to what it was when dispatch saw the
// INVOKEVIRTUAL opcode in MBR.
func (d *Debugger) SetStepOver() {
	if byte(d.VM.MBR.Peek()) == vm.OpINVOKEVIRTUAL {
		d.StepOverLV = d.VM.LV.Peek()
		d.StepMode = StepOver
	} else {
		d.StepMode = StepSingle
	}
	d.Running = true
}

// SetStepOut runs until the current method returns. The caller's LV is the
// first metadata word of the current frame (mem[LV+0]), so the return has
// happened exactly when LV equals that saved value. Stepping "out" of
// .main, which has no enclosing frame, just runs until something else stops
// the machine.
func (d *Debugger) SetStepOut() {
	oldLV, err := d.VM.Memory.PeekWord(uint32(d.VM.LV.Peek()))
	if err != nil {
		d.StepMode = StepSingle
	} else {
		d.StepOverLV = oldLV
		d.StepMode = StepOut
	}
	d.Running = true
}
