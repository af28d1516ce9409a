package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProfile(t *testing.T, dir, code, body string) {
	t.Helper()
	path := filepath.Join(dir, "profile_"+code+".yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestLoadProfile(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "saas", `
name: SaaS procurement
schema_version: "1.2.0"
escalation:
  default_assignee_id: u-partner
  allowed_reasons:
    - liability_cap
    - indemnity
conflict:
  warn_after_seconds: 30
`)

	profile, err := LoadProfile(dir, "SaaS")
	require.NoError(t, err)
	assert.Equal(t, "SaaS procurement", profile.Name)
	assert.Equal(t, "saas", profile.Code, "code defaults from the filename")
	assert.Equal(t, "u-partner", profile.Escalation.DefaultAssigneeID)
	assert.Equal(t, 30, profile.Conflict.WarnAfterSeconds)

	assert.True(t, profile.ReasonAllowed("liability_cap"))
	assert.False(t, profile.ReasonAllowed("unapproved_reason"))
}

func TestLoadProfileSchemaVersionGate(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "old", "name: old\nschema_version: \"0.9.0\"\n")
	writeProfile(t, dir, "next", "name: next\nschema_version: \"2.0.0\"\n")
	writeProfile(t, dir, "none", "name: none\n")
	writeProfile(t, dir, "bad", "name: bad\nschema_version: \"not-a-version\"\n")

	for _, code := range []string{"old", "next", "none", "bad"} {
		_, err := LoadProfile(dir, code)
		assert.Error(t, err, "profile %s should be rejected", code)
	}
}

func TestLoadProfileMissingFile(t *testing.T) {
	_, err := LoadProfile(t.TempDir(), "absent")
	assert.Error(t, err)
}

func TestLoadAllProfiles(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "saas", "name: SaaS\nschema_version: \"1.0.0\"\n")
	writeProfile(t, dir, "nda", "name: NDA\nschema_version: \"1.1.0\"\n")

	profiles, err := LoadAllProfiles(dir)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "SaaS", profiles["saas"].Name)
	assert.Equal(t, "NDA", profiles["nda"].Name)

	// An empty allowlist permits any reason.
	assert.True(t, profiles["nda"].ReasonAllowed("anything"))
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "memory", cfg.StoreBackend)
	assert.Equal(t, float64(20), cfg.RateLimitRPS)
}

func TestLoadProfileApproverRoster(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "saas", `
name: SaaS procurement
schema_version: "1.0.0"
escalation:
  default_assignee_id: u-partner
  approvers:
    - user_id: u-partner
      name: partner
      can_approve: true
    - user_id: u-gc
      name: general_counsel
      admin: true
`)

	profile, err := LoadProfile(dir, "saas")
	require.NoError(t, err)
	require.Len(t, profile.Escalation.Approvers, 2)

	partner := profile.Escalation.Approvers[0]
	assert.Equal(t, "u-partner", partner.UserID)
	assert.True(t, partner.CanApprove)
	assert.False(t, partner.Admin)

	gc := profile.Escalation.Approvers[1]
	assert.Equal(t, "u-gc", gc.UserID)
	assert.True(t, gc.Admin)
}
