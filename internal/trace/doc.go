// Package trace provides the kernel's tracing subsystem.
//
// A freestanding kernel has no stderr to log to; events either stream to a
// configured sink (the serial-port analog) or accumulate in a ring buffer
// for post-mortem dumps. Both sit behind one Tracer interface so the hot
// paths pay nothing when tracing is off.
//
// # Tracers
//
//   - Nop: zero-overhead no-op when disabled
//   - StreamTracer: immediate write to an output (file/stderr)
//   - RingTracer: circular in-memory buffer, dumpable after a run
//   - MultiTracer: fan-out to several tracers
//
// # Levels
//
//   - LevelOff: no tracing
//   - LevelRun: kernel lifecycle and run-loop boundaries
//   - LevelTask: per-task events (spawn, complete, duplicate wakeups)
//   - LevelDebug: everything, including per-poll and per-wake detail
//
// Emit may be called from interrupt context; implementations must not
// suspend, though brief internal locking is acceptable in the simulated
// environment.
package trace
