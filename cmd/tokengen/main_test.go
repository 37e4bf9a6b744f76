package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registrar/internal/staffauth"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTokengen_JSONTokenValidates(t *testing.T) {
	out, err := run(t, "-s", "ops@school.example", "-r", "admin", "--json", "--signing-key", "k1", "--issuer", "registrar")
	require.NoError(t, err)

	var got tokenOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "admin", got.Role)

	claims, err := staffauth.NewTokenService("k1", "registrar").Validate(got.Token)
	require.NoError(t, err)
	assert.Equal(t, "ops@school.example", claims.Subject)
}

func TestTokengen_RequiresSubject(t *testing.T) {
	_, err := run(t, "-r", "staff")
	assert.Error(t, err)
}

func TestTokengen_RejectsUnknownRole(t *testing.T) {
	_, err := run(t, "-s", "ops", "-r", "root")
	assert.Error(t, err)
}

func TestTokengen_TextOutput(t *testing.T) {
	out, err := run(t, "-s", "desk", "-r", "staff")
	require.NoError(t, err)
	assert.Contains(t, out, "Role:        staff")
	assert.Contains(t, out, "Authorization: Bearer")
}
