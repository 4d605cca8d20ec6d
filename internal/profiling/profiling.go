// Package profiling starts and stops the profilers of a run.
package profiling

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"runtime/trace"

	"github.com/felixge/fgprof"
	"go.uber.org/multierr"
)

// Profiles selects the profiles to write.
type Profiles struct {
	CPU    bool
	Memory bool
	Trace  bool
	Fgprof bool
}

// File names of the profiles in the output directory.
const (
	CPUProfileFile    = "cpuprofile"
	MemProfileFile    = "memprofile"
	TraceFile         = "trace"
	FgprofProfileFile = "fgprofprofile"
)

// Start starts the selected profilers, writing their output to dir.
// The returned function stops the profilers and writes the memory profile.
func Start(dir string, profiles Profiles) (stop func() error, err error) {
	var stops []func() error
	stopAll := func() (err error) {
		// stop in reverse order of starting
		for i := len(stops) - 1; i >= 0; i-- {
			err = multierr.Append(err, stops[i]())
		}
		return err
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, stopAll())
		}
	}()

	if profiles.CPU {
		f, err := os.Create(filepath.Join(dir, CPUProfileFile))
		if err != nil {
			return nil, err
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			return nil, multierr.Append(err, f.Close())
		}
		stops = append(stops, func() error {
			pprof.StopCPUProfile()
			return f.Close()
		})
	}

	if profiles.Fgprof {
		f, err := os.Create(filepath.Join(dir, FgprofProfileFile))
		if err != nil {
			return nil, err
		}
		fgprofStop := fgprof.Start(f, fgprof.FormatPprof)
		stops = append(stops, func() error {
			return multierr.Append(fgprofStop(), f.Close())
		})
	}

	if profiles.Trace {
		f, err := os.Create(filepath.Join(dir, TraceFile))
		if err != nil {
			return nil, err
		}
		if err := trace.Start(f); err != nil {
			return nil, multierr.Append(err, f.Close())
		}
		stops = append(stops, func() error {
			trace.Stop()
			return f.Close()
		})
	}

	if profiles.Memory {
		path := filepath.Join(dir, MemProfileFile)
		stops = append(stops, func() error { return writeHeapProfile(path) })
	}

	return stopAll, nil
}

func writeHeapProfile(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, f.Close()) }()
	runtime.GC() // get up-to-date statistics
	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("failed to write memory profile: %w", err)
	}
	return nil
}
