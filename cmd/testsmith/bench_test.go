package main_test

import (
	"os/exec"
	"testing"
)

// BenchmarkBinaryStartup measures process launch to exit for
// "testsmith version". The binary is built once before the timer starts.
func BenchmarkBinaryStartup(b *testing.B) {
	binPath := buildBinary(b)

	b.ResetTimer()
	b.ReportAllocs()

	for b.Loop() {
		if err := exec.Command(binPath, "version").Run(); err != nil {
			b.Fatalf("testsmith version failed: %v", err)
		}
	}
}

// BenchmarkBinaryHelp measures startup for "testsmith --help", which also
// renders the help text.
func BenchmarkBinaryHelp(b *testing.B) {
	binPath := buildBinary(b)

	b.ResetTimer()
	b.ReportAllocs()

	for b.Loop() {
		// --help exits with code 0 in cobra; ignore the error.
		_ = exec.Command(binPath, "--help").Run()
	}
}
