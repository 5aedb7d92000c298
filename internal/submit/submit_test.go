package submit

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"qcbatch/internal/apperrors"
	"qcbatch/pkg/backoff"
	"qcbatch/pkg/circuitbreaker"
)

func testConfig() Config {
	return Config{
		Cores:    8,
		Attempts: 1,
		Backoff:  backoff.Config{Initial: time.Millisecond, Max: time.Millisecond},
		Breaker:  circuitbreaker.Config{Threshold: 100, Cooldown: time.Hour},
	}
}

// makeStructures creates structure folders under a temp root, writing a
// <name>.cell seed file for every name in seeded.
func makeStructures(t *testing.T, names []string, seeded map[string]bool) string {
	t.Helper()
	root := t.TempDir()
	for _, name := range names {
		dir := filepath.Join(root, name)
		if err := os.Mkdir(dir, 0o755); err != nil {
			t.Fatalf("Failed to create folder: %v", err)
		}
		if seeded[name] {
			cell := filepath.Join(dir, name+".cell")
			if err := os.WriteFile(cell, []byte("%block lattice_cart\n%endblock lattice_cart\n"), 0o644); err != nil {
				t.Fatalf("Failed to write seed file: %v", err)
			}
		}
	}
	return root
}

type call struct {
	dir  string
	name string
	args []string
}

func recordingStub(calls *[]call, err error) CommandFunc {
	return func(_ context.Context, dir, name string, args []string) error {
		*calls = append(*calls, call{dir: dir, name: name, args: args})
		return err
	}
}

func TestSubmitRange_SubmitsSeededFolders(t *testing.T) {
	names := []string{"MgO_k2", "NaCl_k1", "NaCl_k2"}
	root := makeStructures(t, names, map[string]bool{"MgO_k2": true, "NaCl_k1": true, "NaCl_k2": true})

	var calls []call
	s := New(testConfig(), recordingStub(&calls, nil))

	summary, err := s.SubmitRange(context.Background(), root, 0, 3)
	if err != nil {
		t.Fatalf("SubmitRange failed: %v", err)
	}
	if summary.Submitted != 3 {
		t.Errorf("Expected 3 submitted, got %+v", summary)
	}
	if len(calls) != 3 {
		t.Fatalf("Expected 3 scheduler calls, got %d", len(calls))
	}

	// Folders are visited in sorted order with the seed as final argument.
	first := calls[0]
	if filepath.Base(first.dir) != "MgO_k2" {
		t.Errorf("Expected MgO_k2 first, got %s", first.dir)
	}
	if first.name != "castepsub" {
		t.Errorf("Expected castepsub command, got %s", first.name)
	}
	want := []string{"-n", "8", "MgO_k2"}
	if len(first.args) != len(want) {
		t.Fatalf("Expected args %v, got %v", want, first.args)
	}
	for i := range want {
		if first.args[i] != want[i] {
			t.Errorf("Expected args %v, got %v", want, first.args)
			break
		}
	}
}

func TestSubmitRange_RangeSelectsSlice(t *testing.T) {
	names := []string{"s000", "s001", "s002", "s003"}
	seeded := map[string]bool{"s000": true, "s001": true, "s002": true, "s003": true}
	root := makeStructures(t, names, seeded)

	var calls []call
	s := New(testConfig(), recordingStub(&calls, nil))

	summary, err := s.SubmitRange(context.Background(), root, 1, 3)
	if err != nil {
		t.Fatalf("SubmitRange failed: %v", err)
	}
	if summary.Submitted != 2 {
		t.Errorf("Expected 2 submitted, got %+v", summary)
	}
	if len(calls) != 2 || filepath.Base(calls[0].dir) != "s001" || filepath.Base(calls[1].dir) != "s002" {
		t.Errorf("Expected s001 and s002, got %+v", calls)
	}
}

func TestSubmitRange_SkipsFolderWithoutSeed(t *testing.T) {
	names := []string{"good", "unseeded"}
	root := makeStructures(t, names, map[string]bool{"good": true})

	var calls []call
	s := New(testConfig(), recordingStub(&calls, nil))

	summary, err := s.SubmitRange(context.Background(), root, 0, 2)
	if err != nil {
		t.Fatalf("SubmitRange failed: %v", err)
	}
	if summary.Submitted != 1 || summary.Missing != 1 {
		t.Errorf("Expected 1 submitted and 1 missing, got %+v", summary)
	}
	if len(calls) != 1 {
		t.Errorf("Expected 1 scheduler call, got %d", len(calls))
	}
}

func TestSubmitRange_InvalidBounds(t *testing.T) {
	root := makeStructures(t, []string{"a", "b"}, map[string]bool{"a": true, "b": true})
	s := New(testConfig(), recordingStub(&[]call{}, nil))

	tests := []struct {
		name         string
		lower, upper int
	}{
		{"negative lower", -1, 1},
		{"upper beyond folders", 0, 3},
		{"empty range", 1, 1},
		{"inverted range", 2, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.SubmitRange(context.Background(), root, tt.lower, tt.upper)
			if !errors.Is(err, apperrors.ErrValidation) {
				t.Errorf("Expected validation error, got %v", err)
			}
		})
	}
}

func TestSubmitRange_FailureDoesNotStopSlice(t *testing.T) {
	names := []string{"a", "b", "c"}
	seeded := map[string]bool{"a": true, "b": true, "c": true}
	root := makeStructures(t, names, seeded)

	var calls []call
	stub := func(_ context.Context, dir, name string, args []string) error {
		calls = append(calls, call{dir: dir, name: name, args: args})
		if filepath.Base(dir) == "b" {
			return errors.New("queue limit exceeded")
		}
		return nil
	}
	s := New(testConfig(), stub)

	summary, err := s.SubmitRange(context.Background(), root, 0, 3)
	if err != nil {
		t.Fatalf("SubmitRange failed: %v", err)
	}
	if summary.Submitted != 2 || summary.Failed != 1 {
		t.Errorf("Expected 2 submitted and 1 failed, got %+v", summary)
	}
}

func TestSubmitRange_BreakerAbortsWhenSchedulerDown(t *testing.T) {
	names := []string{"a", "b", "c", "d"}
	seeded := map[string]bool{"a": true, "b": true, "c": true, "d": true}
	root := makeStructures(t, names, seeded)

	cfg := testConfig()
	cfg.Breaker = circuitbreaker.Config{Threshold: 2, Cooldown: time.Hour}

	var calls []call
	s := New(cfg, recordingStub(&calls, errors.New("connection refused")))

	summary, err := s.SubmitRange(context.Background(), root, 0, 4)
	if !errors.Is(err, apperrors.ErrInternal) {
		t.Fatalf("Expected internal error once circuit opens, got %v", err)
	}
	if summary.Failed != 2 {
		t.Errorf("Expected 2 failures before the circuit opened, got %+v", summary)
	}
	if len(calls) != 2 {
		t.Errorf("Expected no calls after the circuit opened, got %d", len(calls))
	}
}

func TestSubmitRange_RetriesTransientFailure(t *testing.T) {
	root := makeStructures(t, []string{"a"}, map[string]bool{"a": true})

	cfg := testConfig()
	cfg.Attempts = 3

	attempts := 0
	stub := func(_ context.Context, _, _ string, _ []string) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	}
	s := New(cfg, stub)

	summary, err := s.SubmitRange(context.Background(), root, 0, 1)
	if err != nil {
		t.Fatalf("SubmitRange failed: %v", err)
	}
	if summary.Submitted != 1 || summary.Failed != 0 {
		t.Errorf("Expected 1 submitted after retries, got %+v", summary)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestSubmitRange_DryRun(t *testing.T) {
	root := makeStructures(t, []string{"a"}, map[string]bool{"a": true})

	cfg := testConfig()
	cfg.DryRun = true

	var calls []call
	s := New(cfg, recordingStub(&calls, nil))

	summary, err := s.SubmitRange(context.Background(), root, 0, 1)
	if err != nil {
		t.Fatalf("SubmitRange failed: %v", err)
	}
	if summary.Submitted != 1 {
		t.Errorf("Expected dry run to count as submitted, got %+v", summary)
	}
	if len(calls) != 0 {
		t.Errorf("Expected no scheduler calls in dry run, got %d", len(calls))
	}
}

func TestSubmitRange_WalltimeFlag(t *testing.T) {
	root := makeStructures(t, []string{"a"}, map[string]bool{"a": true})

	cfg := testConfig()
	cfg.Walltime = "12:00:00"

	var calls []call
	s := New(cfg, recordingStub(&calls, nil))

	if _, err := s.SubmitRange(context.Background(), root, 0, 1); err != nil {
		t.Fatalf("SubmitRange failed: %v", err)
	}
	args := calls[0].args
	found := false
	for i, a := range args {
		if a == "-W" && i+1 < len(args) && args[i+1] == "12:00:00" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected -W 12:00:00 in args, got %v", args)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("QCBATCH_SUBMIT_COMMAND", "qsub")
	t.Setenv("QCBATCH_SUBMIT_CORES", "16")
	t.Setenv("QCBATCH_SUBMIT_WALLTIME", "24:00:00")
	t.Setenv("QCBATCH_SUBMIT_ATTEMPTS", "5")

	cfg := LoadConfigFromEnv()
	if cfg.Command != "qsub" {
		t.Errorf("Expected command qsub, got %s", cfg.Command)
	}
	if cfg.Cores != 16 {
		t.Errorf("Expected 16 cores, got %d", cfg.Cores)
	}
	if cfg.Walltime != "24:00:00" {
		t.Errorf("Expected walltime 24:00:00, got %s", cfg.Walltime)
	}
	if cfg.Attempts != 5 {
		t.Errorf("Expected 5 attempts, got %d", cfg.Attempts)
	}
}
