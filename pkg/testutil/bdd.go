package testutil

import "testing"

// Given, When, and Then keep scenario tests readable without a BDD framework.
// Each step is a subtest so a failing step is named in the output.
func Given(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Given "+desc, fn)
}

func When(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("When "+desc, fn)
}

func Then(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Then "+desc, fn)
}

// Step runs fn inline and fails the enclosing test immediately if it reports an error.
// Use it for setup that later steps depend on, where a subtest failure should not continue.
func Step(t *testing.T, desc string, fn func() error) {
	t.Helper()
	if err := fn(); err != nil {
		t.Fatalf("%s: %v", desc, err)
	}
}
