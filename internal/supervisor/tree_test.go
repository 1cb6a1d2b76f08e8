// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/artswap/internal/config"
	"github.com/tomtom215/artswap/internal/logging"
)

// flakyService fails the first fails runs, then blocks until canceled.
type flakyService struct {
	name   string
	fails  int32
	starts atomic.Int32
}

func (s *flakyService) Serve(ctx context.Context) error {
	if n := s.starts.Add(1); n <= s.fails {
		return errors.New("simulated failure")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *flakyService) String() string { return s.name }

func testLogger() *slog.Logger {
	return logging.NewSlogLogger("supervisor-test")
}

func TestNewTreeDefaults(t *testing.T) {
	tree := NewTree(testLogger(), config.SupervisorConfig{})
	want := config.SupervisorConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
	if tree.cfg != want {
		t.Errorf("cfg = %+v, want %+v", tree.cfg, want)
	}
}

func TestTreeRunsAndStopsServices(t *testing.T) {
	tree := NewTree(testLogger(), config.SupervisorConfig{
		FailureBackoff:  10 * time.Millisecond,
		ShutdownTimeout: time.Second,
	})

	engine := &flakyService{name: "engine-svc"}
	worker := &flakyService{name: "worker-svc", fails: 2}
	api := &flakyService{name: "api-svc"}
	tree.AddEngineService(engine)
	tree.AddWorkerService(worker)
	tree.AddAPIService(api)

	ctx, cancel := context.WithCancel(context.Background())
	done := tree.ServeBackground(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for worker.starts.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("tree did not stop")
	}

	if engine.starts.Load() != 1 || api.starts.Load() != 1 {
		t.Errorf("engine started %d, api started %d; want 1 each", engine.starts.Load(), api.starts.Load())
	}
	if worker.starts.Load() < 3 {
		t.Errorf("worker started %d times, want restarts after failures", worker.starts.Load())
	}
	if report, err := tree.UnstoppedServiceReport(); err != nil || len(report) != 0 {
		t.Errorf("UnstoppedServiceReport() = %v, %v", report, err)
	}
}
