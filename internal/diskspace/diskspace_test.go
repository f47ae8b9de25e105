package diskspace

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"
)

func TestCheckAvailableSpace(t *testing.T) {
	target := filepath.Join(t.TempDir(), "Q1.pdf")

	t.Run("SmallFile", func(t *testing.T) {
		if err := CheckAvailableSpace(target, 1024, 0.15); err != nil {
			t.Errorf("Expected no error for small file, got: %v", err)
		}
	})

	t.Run("VeryLargeFile", func(t *testing.T) {
		// 100 PiB should exceed any test machine
		err := CheckAvailableSpace(target, 100<<50, 0.15)
		if err == nil {
			t.Log("Warning: 100 PiB check passed - system has extraordinary disk space")
		} else if !IsInsufficientSpaceError(err) {
			t.Errorf("Expected InsufficientSpaceError, got: %T", err)
		}
	})

	t.Run("BufferIncluded", func(t *testing.T) {
		available := GetAvailableSpace(target)
		if available == 0 {
			t.Skip("Could not determine available space")
		}
		err := CheckAvailableSpace(target, available, 0.15)
		if !IsInsufficientSpaceError(err) {
			t.Fatalf("requesting all free space plus a buffer should fail, got %v", err)
		}
		ise := err.(*InsufficientSpaceError)
		if ise.RequiredBytes <= available {
			t.Errorf("required %d should include the buffer over %d", ise.RequiredBytes, available)
		}
	})
}

func TestMissingDirectoryPasses(t *testing.T) {
	target := filepath.Join(t.TempDir(), "does", "not", "exist", "f.bin")
	if err := CheckAvailableSpace(target, 1<<40, 0.15); err != nil {
		t.Errorf("unknown free space should not block, got %v", err)
	}
	if n := GetAvailableSpace(target); n != 0 {
		t.Errorf("expected 0 for missing directory, got %d", n)
	}
}

func TestIsInsufficientSpaceError(t *testing.T) {
	err := &InsufficientSpaceError{
		Path:           "/tmp/test.txt",
		RequiredBytes:  2048,
		AvailableBytes: 1024,
	}

	if !IsInsufficientSpaceError(err) {
		t.Error("Expected IsInsufficientSpaceError to return true")
	}
	if !IsInsufficientSpaceError(fmt.Errorf("save: %w", err)) {
		t.Error("Expected wrapped error to match")
	}
	if IsInsufficientSpaceError(fmt.Errorf("other")) {
		t.Error("Expected false for unrelated error")
	}
	if !strings.Contains(err.Error(), "2.0 KB") {
		t.Errorf("unexpected message %q", err.Error())
	}
}
