package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// profileSchemaConstraint is the range of profile schema versions this
// build can interpret.
const profileSchemaConstraint = "^1.0.0"

// ReviewProfile tunes review behavior per practice area or client. It is
// advisory configuration; the decision log semantics never vary by profile.
type ReviewProfile struct {
	Name          string           `yaml:"name" json:"name"`
	Code          string           `yaml:"code" json:"code"`
	SchemaVersion string           `yaml:"schema_version" json:"schema_version"`
	Escalation    EscalationConfig `yaml:"escalation" json:"escalation"`
	Conflict      ConflictConfig   `yaml:"conflict" json:"conflict"`
}

// EscalationConfig holds escalation routing defaults per profile.
type EscalationConfig struct {
	DefaultAssigneeID string           `yaml:"default_assignee_id,omitempty" json:"default_assignee_id,omitempty"`
	AllowedReasons    []string         `yaml:"allowed_reasons,omitempty" json:"allowed_reasons,omitempty"`
	Approvers         []ApproverConfig `yaml:"approvers,omitempty" json:"approvers,omitempty"`
}

// ApproverConfig names a user who may receive escalations, with the role
// the permission gate checks at ESCALATE time. In production deployments
// the external user service supersedes this roster.
type ApproverConfig struct {
	UserID     string `yaml:"user_id" json:"user_id"`
	Name       string `yaml:"name,omitempty" json:"name,omitempty"`
	Admin      bool   `yaml:"admin,omitempty" json:"admin,omitempty"`
	CanApprove bool   `yaml:"can_approve,omitempty" json:"can_approve,omitempty"`
}

// ConflictConfig tunes the concurrent-edit warning.
type ConflictConfig struct {
	// WarnAfterSeconds suppresses warnings for modifications older than
	// this window. Zero means warn on any stale snapshot.
	WarnAfterSeconds int `yaml:"warn_after_seconds,omitempty" json:"warn_after_seconds,omitempty"`
}

// ReasonAllowed reports whether an escalation reason is permitted by the
// profile. An empty allowlist permits everything.
func (p *ReviewProfile) ReasonAllowed(reason string) bool {
	if len(p.Escalation.AllowedReasons) == 0 {
		return true
	}
	for _, r := range p.Escalation.AllowedReasons {
		if r == reason {
			return true
		}
	}
	return false
}

// LoadProfile loads a review profile YAML by code. It searches the
// profiles directory for profile_<code>.yaml and rejects profiles whose
// schema_version this build cannot interpret.
func LoadProfile(profilesDir, code string) (*ReviewProfile, error) {
	code = strings.ToLower(code)
	path := filepath.Join(profilesDir, fmt.Sprintf("profile_%s.yaml", code))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", code, err)
	}

	profile, err := parseProfile(data)
	if err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", code, err)
	}
	if profile.Code == "" {
		profile.Code = code
	}
	return profile, nil
}

// LoadAllProfiles loads all profile_*.yaml files from the profiles
// directory.
func LoadAllProfiles(profilesDir string) (map[string]*ReviewProfile, error) {
	matches, err := filepath.Glob(filepath.Join(profilesDir, "profile_*.yaml"))
	if err != nil {
		return nil, err
	}

	profiles := make(map[string]*ReviewProfile, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		profile, err := parseProfile(data)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if profile.Code == "" {
			base := filepath.Base(path)
			profile.Code = strings.TrimSuffix(strings.TrimPrefix(base, "profile_"), ".yaml")
		}
		profiles[profile.Code] = profile
	}
	return profiles, nil
}

func parseProfile(data []byte) (*ReviewProfile, error) {
	var profile ReviewProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, err
	}
	if err := checkSchemaVersion(profile.SchemaVersion); err != nil {
		return nil, err
	}
	return &profile, nil
}

func checkSchemaVersion(version string) error {
	if version == "" {
		return fmt.Errorf("schema_version is required")
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("schema_version %q: %w", version, err)
	}
	constraint, err := semver.NewConstraint(profileSchemaConstraint)
	if err != nil {
		return err
	}
	if !constraint.Check(v) {
		return fmt.Errorf("schema_version %s is outside supported range %s", version, profileSchemaConstraint)
	}
	return nil
}
