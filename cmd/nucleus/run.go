package main

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"nucleus/internal/config"
	"nucleus/internal/kernel"
	"nucleus/internal/ksync"
	"nucleus/internal/observ"
	"nucleus/internal/prof"
	"nucleus/internal/trace"
	"nucleus/internal/ui"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the demo workload on a simulated machine",
	Long:  `Spawn contending locker tasks and sleepers on the cooperative scheduler and run them to completion`,
	RunE:  runDemo,
}

var (
	runHz        uint32
	runWorkers   int
	runIters     int
	runSleep     int
	runUI        bool
	runTrace     string
	runTraceOut  string
	runTraceFmt  string
	runTraceDump string
	runTimings   bool
	runCPUProf   string
	runMemProf   string
)

func init() {
	runCmd.Flags().Uint32Var(&runHz, "hz", 0, "timer interrupt rate (0 = config/default)")
	runCmd.Flags().IntVar(&runWorkers, "tasks", 0, "number of contending worker tasks (0 = config)")
	runCmd.Flags().IntVar(&runIters, "iters", 0, "acquire/release rounds per worker (0 = config)")
	runCmd.Flags().IntVar(&runSleep, "sleep-ticks", -1, "ticks slept between rounds (-1 = config)")
	runCmd.Flags().BoolVar(&runUI, "ui", false, "show a live monitor while running")
	runCmd.Flags().StringVar(&runTrace, "trace", "", "trace level (off|run|task|debug)")
	runCmd.Flags().StringVar(&runTraceOut, "trace-out", "", "stream trace output to a file (\"-\" for stderr)")
	runCmd.Flags().StringVar(&runTraceFmt, "trace-format", "text", "trace stream format (text|ndjson)")
	runCmd.Flags().StringVar(&runTraceDump, "trace-dump", "", "write a msgpack ring snapshot to this file after the run")
	runCmd.Flags().BoolVar(&runTimings, "timings", false, "report per-phase wall-clock timings")
	runCmd.Flags().StringVar(&runCPUProf, "cpuprofile", "", "write a CPU profile to this file")
	runCmd.Flags().StringVar(&runMemProf, "memprofile", "", "write a heap profile to this file after the run")
}

func runDemo(cmd *cobra.Command, args []string) error {
	cfg, cfgPath, err := config.LoadOrDefault(".")
	if err != nil {
		return err
	}
	if !quietFlag && cfgPath != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "using %s\n", cfgPath)
	}

	applyRunFlags(&cfg)

	if runCPUProf != "" {
		if err := prof.StartCPU(runCPUProf); err != nil {
			return fmt.Errorf("failed to start CPU profile: %w", err)
		}
		defer prof.StopCPU()
	}

	timer := observ.NewTimer()
	setupPhase := timer.Begin("setup")

	tracer, err := buildTracer(cfg.Trace)
	if err != nil {
		return err
	}

	k := kernel.New(kernel.Config{Hz: cfg.Machine.Hz, Tracer: tracer})
	if err := k.Start(cmd.Context()); err != nil {
		return err
	}
	defer k.Shutdown()

	shared := ksync.NewMutex(demoShared{})
	var acquired atomic.Uint64
	for i := 0; i < cfg.Demo.Workers; i++ {
		k.Spawn(newLockerWorker(k, shared, cfg.Demo.Iters, cfg.Demo.SleepTicks, &acquired))
	}

	timer.End(setupPhase, fmt.Sprintf("%d workers", cfg.Demo.Workers))
	runPhase := timer.Begin("run")

	start := time.Now()
	done := make(chan struct{})
	updates := make(chan ui.StatsMsg, 16)

	eg, ctx := errgroup.WithContext(cmd.Context())
	eg.Go(func() error {
		k.RunUntilIdle()
		close(done)
		return nil
	})

	useUI := runUI && isTerminal(os.Stdout)
	if useUI {
		eg.Go(func() error {
			defer close(updates)
			ticker := time.NewTicker(50 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return nil
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					updates <- ui.StatsMsg{
						Stats:   k.Executor().Stats(),
						Tick:    k.Ticker().Now(),
						Pending: k.Sleeper().Pending(),
					}
				}
			}
		})

		program := tea.NewProgram(ui.NewMonitorModel("nucleus", updates), tea.WithOutput(os.Stdout))
		if _, uiErr := program.Run(); uiErr != nil {
			return uiErr
		}
	}

	if err := eg.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)
	timer.End(runPhase, fmt.Sprintf("%d ticks", k.Ticker().Now()))

	if err := dumpTrace(tracer); err != nil {
		return err
	}
	if runMemProf != "" {
		if err := prof.WriteMem(runMemProf); err != nil {
			return fmt.Errorf("failed to write heap profile: %w", err)
		}
	}

	if !quietFlag {
		printSummary(cmd, k, acquired.Load(), elapsed)
		if runTimings {
			fmt.Fprint(cmd.OutOrStdout(), timer.Summary())
		}
	}
	return nil
}

func applyRunFlags(cfg *config.Config) {
	if runHz != 0 {
		cfg.Machine.Hz = runHz
	}
	if runWorkers > 0 {
		cfg.Demo.Workers = runWorkers
	}
	if runIters > 0 {
		cfg.Demo.Iters = runIters
	}
	if runSleep >= 0 {
		cfg.Demo.SleepTicks = runSleep
	}
	if runTrace != "" {
		cfg.Trace.Level = runTrace
	}
	if runTraceOut != "" {
		cfg.Trace.Output = runTraceOut
		cfg.Trace.Mode = "both"
	}
	if runTraceFmt != "" {
		cfg.Trace.Format = runTraceFmt
	}
}

func buildTracer(tc config.TraceConfig) (trace.Tracer, error) {
	level, err := trace.ParseLevel(tc.Level)
	if err != nil {
		return nil, err
	}
	if level == trace.LevelOff {
		return trace.Nop, nil
	}
	mode, err := trace.ParseMode(tc.Mode)
	if err != nil {
		return nil, err
	}
	format, err := trace.ParseFormat(tc.Format)
	if err != nil {
		return nil, err
	}
	return trace.New(trace.Config{
		Level:      level,
		Mode:       mode,
		Format:     format,
		OutputPath: tc.Output,
		RingSize:   tc.RingSize,
	})
}

// dumpTrace writes the ring snapshot when --trace-dump was given.
func dumpTrace(tracer trace.Tracer) error {
	if runTraceDump == "" {
		return nil
	}
	ring := ringOf(tracer)
	if ring == nil {
		return fmt.Errorf("--trace-dump requires a ring tracer (trace level off or mode stream?)")
	}
	data, err := ring.EncodeSnapshot()
	if err != nil {
		return fmt.Errorf("failed to encode trace snapshot: %w", err)
	}
	if err := os.WriteFile(runTraceDump, data, 0o644); err != nil {
		return fmt.Errorf("failed to write trace snapshot: %w", err)
	}
	return nil
}

func ringOf(tracer trace.Tracer) *trace.RingTracer {
	switch t := tracer.(type) {
	case *trace.RingTracer:
		return t
	case *trace.MultiTracer:
		if r, ok := t.Ring(); ok {
			return r
		}
	}
	return nil
}

func printSummary(cmd *cobra.Command, k *kernel.Kernel, acquired uint64, elapsed time.Duration) {
	stats := k.Executor().Stats()
	bold := color.New(color.Bold)
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "%s %d tasks, %d acquisitions, %d polls, %d stale wakes\n",
		bold.Sprint("done:"), stats.Completed, acquired, stats.Polls, stats.StaleWakes)
	fmt.Fprintf(out, "      %d ticks in %v (%d Hz)\n",
		k.Ticker().Now(), elapsed.Round(time.Millisecond), k.Machine().Hz())
}
