// Hart CLI - loads a raw RV64I image and runs it on the hart VM
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/hart/manifest"
	"github.com/chazu/hart/store"
	"github.com/chazu/hart/userspace"
	"github.com/chazu/hart/vm"
	"github.com/chazu/hart/vm/trace"
)

var log = commonlog.GetLogger("hart")

func main() {
	verbose := flag.Bool("v", false, "Verbose output (log each step)")
	memSize := flag.Uint64("m", 0, "Memory size in bytes (overrides hart.toml)")
	loadAddr := flag.Uint64("l", 0, "Load address (overrides hart.toml)")
	maxSteps := flag.Uint64("max-steps", 0, "Stop after N instructions (0 = unlimited)")
	doTrace := flag.Bool("trace", false, "Record an execution trace")
	noStore := flag.Bool("no-store", false, "Skip recording the run in the history database")
	listRuns := flag.Int("runs", 0, "List the N most recent runs and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: hart [options] [image]\n\n")
		fmt.Fprintf(os.Stderr, "Runs a raw RV64I instruction image on the hart VM.\n")
		fmt.Fprintf(os.Stderr, "Configuration is read from hart.toml when present.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  hart prog.bin                 # Run prog.bin at the default load address\n")
		fmt.Fprintf(os.Stderr, "  hart -m 4194304 prog.bin      # Run with 4 MiB of guest memory\n")
		fmt.Fprintf(os.Stderr, "  hart -trace prog.bin          # Record a CBOR execution trace\n")
		fmt.Fprintf(os.Stderr, "  hart -runs 10                 # Show the last 10 recorded runs\n")
	}
	flag.Parse()

	verbosity := 0
	if *verbose {
		verbosity = 2
	}
	commonlog.Configure(verbosity, nil)

	m, err := manifest.FindAndLoad(".")
	if err != nil {
		fatalf("Error loading hart.toml: %v", err)
	}
	// Without a manifest, run history defaults on so -runs has something
	// to show; a manifest's [store] section decides otherwise.
	record := m == nil || m.Store.Enabled
	if m == nil {
		m = manifest.Default(".")
	}
	if *noStore {
		record = false
	}

	if *listRuns > 0 {
		showRuns(m, *listRuns)
		return
	}

	imagePath := m.ImagePath()
	if flag.NArg() > 0 {
		imagePath = flag.Arg(0)
	}
	if imagePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	if *memSize != 0 {
		m.Machine.MemorySize = *memSize
	}
	if *loadAddr != 0 {
		m.Machine.LoadAddress = *loadAddr
	}
	if *maxSteps != 0 {
		m.Program.MaxSteps = *maxSteps
	}
	if *doTrace {
		m.Trace.Enabled = true
	}

	exitCode := run(m, imagePath, record, *verbose)
	os.Exit(exitCode)
}

func run(m *manifest.Manifest, imagePath string, record bool, verbose bool) int {
	image, err := os.ReadFile(imagePath)
	if err != nil {
		fatalf("Error reading image: %v", err)
	}

	machine, err := vm.New(image, m.Machine.LoadAddress, vm.WithMemorySize(m.Machine.MemorySize))
	if err != nil {
		fatalf("Error creating VM: %v", err)
	}

	rt := userspace.New(machine.Memory())
	defer rt.Close()
	machine.SetEnvCallHandler(rt)

	var recorder *trace.Recorder
	if m.Trace.Enabled {
		f, err := os.Create(m.TracePath())
		if err != nil {
			fatalf("Error creating trace file: %v", err)
		}
		defer f.Close()
		recorder = trace.NewRecorder(f)
		log.Infof("tracing to %s", m.TracePath())
	}

	if err := machine.Start(); err != nil {
		fatalf("Error starting VM: %v", err)
	}

	startedAt := time.Now()
	exitCode := stepLoop(machine, recorder, m.Program.MaxSteps, verbose)

	report := machine.Diagnostics()
	renderReport(os.Stderr, report, machine.State())

	if record {
		recordRun(m, imagePath, startedAt, report, exitCode, machine.State())
	}
	return exitCode
}

// stepLoop drives the VM until guest exit, a fault, or the step limit.
func stepLoop(machine *vm.VM, recorder *trace.Recorder, maxSteps uint64, verbose bool) int {
	var steps uint64
	for {
		if maxSteps > 0 && steps >= maxSteps {
			log.Infof("step limit of %d reached", maxSteps)
			return 0
		}

		res, err := machine.Step()
		if err != nil {
			if vm.IsInvalidState(err) {
				return 0
			}
			fmt.Fprintf(os.Stderr, "fault: %v\n", err)
			return 1
		}
		steps++

		if verbose {
			if in, derr := vm.Decode(res.Word); derr == nil {
				log.Debugf("[%08x] %s", res.PC, vm.Disassemble(in))
			}
		}
		if recorder != nil {
			if terr := recorder.Step(res, machine.State()); terr != nil {
				log.Errorf("trace: %v", terr)
				recorder = nil
			}
		}
		if res.Breakpoint {
			log.Infof("ebreak at 0x%08x", res.PC)
		}
		if res.Exited {
			return int(res.ExitCode)
		}
	}
}

// renderReport is the external text sink for the VM's immutable
// diagnostics report.
func renderReport(w *os.File, r vm.Report, state vm.State) {
	fmt.Fprintf(w, "instructions executed: %d\n", r.InstructionsExecuted)
	fmt.Fprintf(w, "fault count:           %d\n", r.FaultCount)
	fmt.Fprintf(w, "logical cycles:        %d\n", r.Cycles)
	fmt.Fprintf(w, "final state:           %s\n", state)
}

func recordRun(m *manifest.Manifest, imagePath string, startedAt time.Time, report vm.Report, exitCode int, state vm.State) {
	s, err := store.Open(m.StorePath())
	if err != nil {
		log.Errorf("run store: %v", err)
		return
	}
	defer s.Close()
	if _, err := s.RecordRun(imagePath, startedAt, report, int64(exitCode), state); err != nil {
		log.Errorf("run store: %v", err)
	}
}

func showRuns(m *manifest.Manifest, limit int) {
	s, err := store.Open(m.StorePath())
	if err != nil {
		fatalf("Error opening run store: %v", err)
	}
	defer s.Close()

	runs, err := s.Runs(limit)
	if err != nil {
		fatalf("Error listing runs: %v", err)
	}
	for _, r := range runs {
		fmt.Printf("%s  %-30s  %10d instr  %3d faults  exit %d  %s\n",
			r.StartedAt.Local().Format(time.DateTime), r.Program,
			r.Instructions, r.Faults, r.ExitCode, r.FinalState)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
