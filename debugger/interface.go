package debugger

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/mic1lab/mic1ijvm/vm"
)

// DefaultStopByte is the encoder's image terminator (encoder.StopByte);
// duplicated here as a plain constant so the debugger package does not need
// to import encoder just for one byte value.
const DefaultStopByte = 0xFF

// RunCLI runs the command-line debugger interface
func RunCLI(dbg *Debugger) error {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("(mic1-dbg) ")

		if !scanner.Scan() {
			break
		}

		cmdLine := strings.TrimSpace(scanner.Text())

		if cmdLine == "quit" || cmdLine == "q" || cmdLine == "exit" {
			fmt.Println("Exiting debugger...")
			break
		}

		if err := dbg.ExecuteCommand(cmdLine); err != nil {
			fmt.Printf("Error: %v\n", err)
		}

		output := dbg.GetOutput()
		if output != "" {
			fmt.Print(output)
		}

		for dbg.Running {
			if err := dbg.VM.Step(); err != nil {
				fmt.Printf("Runtime error: %v\n", err)
				dbg.Running = false
				break
			}

			if dbg.VM.MPC.Read() == vm.MainEntry && byte(dbg.VM.MBR.Peek()) == dbg.StopByte {
				dbg.Running = false
				dbg.VM.Halted = true
				fmt.Printf("Program halted at stop byte, cycle %d\n", dbg.VM.Cycles)
				break
			}

			if shouldBreak, reason := dbg.ShouldBreak(); shouldBreak {
				dbg.Running = false
				fmt.Printf("Stopped: %s at PC=%d\n", reason, dbg.VM.PC.Peek())
				break
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("input error: %w", err)
	}

	return nil
}

// RunTUI runs the TUI (Text User Interface) debugger
func RunTUI(dbg *Debugger) error {
	tui := NewTUI(dbg)
	return tui.Run()
}
