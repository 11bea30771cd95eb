package commands

import (
	"os"
	"testing"
)

func TestMain(m *testing.M) {
	// Pipelined builtins re-run the test binary.
	RunBuiltinChild()
	os.Exit(m.Run())
}
