package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeMigrator struct {
	version  int64
	applied  int
	upSteps  []int
	down     []int
	statusFn func() error
	closed   bool
}

func (f *fakeMigrator) MigrateUp(_ context.Context, steps int) error {
	f.upSteps = append(f.upSteps, steps)
	f.version, f.applied = 2, 2
	return nil
}

func (f *fakeMigrator) MigrateDown(_ context.Context, steps int) error {
	f.down = append(f.down, steps)
	f.version, f.applied = 1, 1
	return nil
}

func (f *fakeMigrator) MigrationStatus(context.Context) (int64, int, error) {
	if f.statusFn != nil {
		if err := f.statusFn(); err != nil {
			return 0, 0, err
		}
	}
	return f.version, f.applied, nil
}

func (f *fakeMigrator) Close() error {
	f.closed = true
	return nil
}

func withFakeStore(t *testing.T, store *fakeMigrator) *string {
	t.Helper()

	var gotDSN string
	old := openStore
	openStore = func(_ context.Context, dsn string) (migrator, error) {
		gotDSN = dsn
		return store, nil
	}
	t.Cleanup(func() { openStore = old })
	return &gotDSN
}

func TestRun_UpDownStatus(t *testing.T) {
	store := &fakeMigrator{}
	dsn := withFakeStore(t, store)
	var out bytes.Buffer

	require.NoError(t, run(context.Background(), []string{"-direction=up", "-dsn=postgres://flag"}, "", &out))
	require.Equal(t, "postgres://flag", *dsn)
	require.Equal(t, []int{0}, store.upSteps)
	require.Contains(t, out.String(), "migrate up ok: version=2 applied=2")

	out.Reset()
	require.NoError(t, run(context.Background(), []string{"-direction=down"}, "postgres://env", &out))
	require.Equal(t, "postgres://env", *dsn)
	require.Equal(t, []int{1}, store.down)
	require.Contains(t, out.String(), "migrate down ok: version=1 applied=1")

	out.Reset()
	require.NoError(t, run(context.Background(), []string{"-direction=STATUS"}, "postgres://env", &out))
	require.Contains(t, out.String(), "migration status: version=1 applied=1")
	require.True(t, store.closed)
}

func TestRun_Errors(t *testing.T) {
	store := &fakeMigrator{statusFn: func() error { return errors.New("boom") }}
	withFakeStore(t, store)

	err := run(context.Background(), []string{"-direction=status"}, "", &bytes.Buffer{})
	require.ErrorContains(t, err, "is required")

	err = run(context.Background(), []string{"-direction=sideways"}, "postgres://env", &bytes.Buffer{})
	require.ErrorContains(t, err, "unsupported direction")

	err = run(context.Background(), []string{"-direction=status"}, "postgres://env", &bytes.Buffer{})
	require.ErrorContains(t, err, "migration status failed")

	err = run(context.Background(), []string{"-unknown-flag"}, "postgres://env", &bytes.Buffer{})
	require.Error(t, err)
}

func TestRun_OpenFailure(t *testing.T) {
	old := openStore
	openStore = func(context.Context, string) (migrator, error) {
		return nil, errors.New("connection refused")
	}
	t.Cleanup(func() { openStore = old })

	err := run(context.Background(), nil, "postgres://env", &bytes.Buffer{})
	require.ErrorContains(t, err, "open postgres store")
}

func TestFailExits(t *testing.T) {
	if os.Getenv("MIGRATE_TEST_FAIL_EXIT") == "1" {
		fail("forced failure %d", 42)
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestFailExits")
	cmd.Env = append(os.Environ(), "MIGRATE_TEST_FAIL_EXIT=1")
	err := cmd.Run()
	require.Error(t, err)
	var exitErr *exec.ExitError
	require.True(t, errors.As(err, &exitErr))
	require.NotZero(t, exitErr.ExitCode())
}
