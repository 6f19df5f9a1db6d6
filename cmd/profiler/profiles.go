package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"

	"github.com/felixge/fgprof"
)

// startProfiles starts every profile requested in cfg. The returned function
// stops them in reverse order and writes the heap profile last.
//
//nolint:gocritic // hugeParam acceptable for config struct in CLI tool
func startProfiles(cfg config) (func() error, error) {
	var stops []func() error
	stopStarted := func() []error {
		var errs []error
		for i := len(stops) - 1; i >= 0; i-- {
			errs = append(errs, stops[i]())
		}
		return errs
	}

	start := func(path string, begin func(f *os.File) (func() error, error)) error {
		if path == "" {
			return nil
		}
		f, err := os.Create(path) //nolint:gosec // user-chosen profile path
		if err != nil {
			return err
		}
		stop, err := begin(f)
		if err != nil {
			_ = f.Close()
			return fmt.Errorf("start profile %s: %w", path, err)
		}
		stops = append(stops, func() error {
			return errors.Join(stop(), f.Close())
		})
		return nil
	}

	err := errors.Join(
		start(cfg.fgProfile, func(f *os.File) (func() error, error) {
			return fgprof.Start(f, fgprof.FormatPprof), nil
		}),
		start(cfg.cpuProfile, func(f *os.File) (func() error, error) {
			if err := pprof.StartCPUProfile(f); err != nil {
				return nil, err
			}
			return func() error { pprof.StopCPUProfile(); return nil }, nil
		}),
		start(cfg.traceFile, func(f *os.File) (func() error, error) {
			if err := trace.Start(f); err != nil {
				return nil, err
			}
			return func() error { trace.Stop(); return nil }, nil
		}),
	)
	if err != nil {
		_ = stopStarted()
		return nil, err
	}
	return func() error {
		errs := stopStarted()
		if cfg.memProfile != "" {
			errs = append(errs, writeHeapProfile(cfg.memProfile))
		}
		return errors.Join(errs...)
	}, nil
}

func writeHeapProfile(path string) error {
	runtime.GC()
	f, err := os.Create(path) //nolint:gosec // user-chosen profile path
	if err != nil {
		return err
	}
	if err := pprof.WriteHeapProfile(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
