//go:build mage

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const binary = "bin/leadtrack"

// Default target when running `mage` with no arguments.
var Default = Build

// Build compiles the leadtrack binary into bin/.
func Build() error {
	version := os.Getenv("VERSION")
	if version == "" {
		version = "dev"
	}
	ldflags := fmt.Sprintf("-s -w -X github.com/seuros/leadtrack/internal/cli.Version=%s", version)
	return sh.RunV("go", "build", "-trimpath", "-ldflags", ldflags, "-o", binary, "./cmd/leadtrack")
}

// Test runs the unit tests with the race detector.
func Test() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Integration runs the tests that need PostgreSQL. LEADTRACK_TEST_PG must
// point at a server pgtestdb can create databases on.
func Integration() error {
	if os.Getenv("LEADTRACK_TEST_PG") == "" {
		return fmt.Errorf("LEADTRACK_TEST_PG is not set")
	}
	return sh.RunV("go", "test", "-race", "-count=1", "./internal/database/...", "./internal/models/...")
}

// Lint runs go vet.
func Lint() error {
	return sh.RunV("go", "vet", "./...")
}

// Serve builds and runs the server.
func Serve() error {
	mg.Deps(Build)
	return sh.RunV(binary, "serve")
}

// Clean removes build output.
func Clean() error {
	return sh.Rm("bin")
}
