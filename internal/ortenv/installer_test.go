package ortenv

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperjump/vecta/internal/embedding"
)

func hashBuild(calls *atomic.Int32) BuildFunc {
	return func() (embedding.Facility, error) {
		calls.Add(1)
		return embedding.NewHashFacility(4), nil
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestInstaller_NoLibraryInstallsImmediately(t *testing.T) {
	var calls atomic.Int32
	slot := embedding.NewFacilitySlot(nil)
	inst := NewInstaller(slot, "", hashBuild(&calls))
	if err := inst.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, ok := slot.Locate(); !ok || !inst.Installed() {
		t.Error("facility should be installed")
	}
	// Starting again is a no-op.
	if err := inst.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 1 {
		t.Errorf("build called %d times", calls.Load())
	}
}

func TestInstaller_ExistingLibrary(t *testing.T) {
	lib := filepath.Join(t.TempDir(), "libonnxruntime.so")
	if err := os.WriteFile(lib, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	var calls atomic.Int32
	slot := embedding.NewFacilitySlot(nil)
	if err := NewInstaller(slot, lib, hashBuild(&calls)).Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, ok := slot.Locate(); !ok {
		t.Error("facility should be installed")
	}
}

func TestInstaller_WaitsForLibrary(t *testing.T) {
	dir := t.TempDir()
	lib := filepath.Join(dir, "libonnxruntime.so")
	var calls atomic.Int32
	slot := embedding.NewFacilitySlot(nil)
	inst := NewInstaller(slot, lib, hashBuild(&calls), WithDebounce(20*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := inst.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer inst.Stop()

	if _, ok := slot.Locate(); ok {
		t.Fatal("facility installed before the library exists")
	}
	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(60 * time.Millisecond)
	if inst.Installed() {
		t.Fatal("unrelated file triggered install")
	}

	if err := os.WriteFile(lib, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, inst.Installed)
	if _, ok := slot.Locate(); !ok {
		t.Error("slot should hold the facility")
	}
	if calls.Load() != 1 {
		t.Errorf("build called %d times", calls.Load())
	}
}

func TestInstaller_BuildFailure(t *testing.T) {
	slot := embedding.NewFacilitySlot(nil)
	inst := NewInstaller(slot, "", func() (embedding.Facility, error) {
		return nil, errors.New("bad runtime")
	})
	if err := inst.Start(context.Background()); err == nil {
		t.Fatal("expected build error")
	}
	if _, ok := slot.Locate(); ok || inst.Installed() {
		t.Error("nothing should be installed")
	}
}

func TestInstaller_MissingDirectory(t *testing.T) {
	lib := filepath.Join(t.TempDir(), "missing", "lib.so")
	var calls atomic.Int32
	inst := NewInstaller(embedding.NewFacilitySlot(nil), lib, hashBuild(&calls))
	if err := inst.Start(context.Background()); err == nil {
		t.Error("expected error watching a missing directory")
	}
}

func TestInstaller_StopTwice(t *testing.T) {
	var calls atomic.Int32
	inst := NewInstaller(embedding.NewFacilitySlot(nil), filepath.Join(t.TempDir(), "lib.so"), hashBuild(&calls))
	if err := inst.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	inst.Stop()
	inst.Stop()
	if inst.Installed() {
		t.Error("should not be installed")
	}
}
