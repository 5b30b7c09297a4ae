package domain

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

type Capability string

const (
	// CapabilityTransport marks a plugin that serves a remote folder tree.
	CapabilityTransport Capability = "transport"
	// CapabilityAudio marks a transport that also accepts audio blobs.
	CapabilityAudio Capability = "audio"
)

var (
	ErrPluginNotFound    = errors.New("plugin not found")
	ErrPluginDisabled    = errors.New("plugin is disabled")
	ErrChecksumMismatch  = errors.New("plugin checksum mismatch")
	ErrCapabilityMissing = errors.New("plugin capability missing")
	ErrPluginTimeout     = errors.New("plugin timeout")
)

var sha256Pattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

type Manifest struct {
	Name         string            `yaml:"name"`
	Version      string            `yaml:"version"`
	Binary       string            `yaml:"binary"`
	SHA256       string            `yaml:"sha256"`
	Enabled      bool              `yaml:"enabled"`
	Capabilities []Capability      `yaml:"capabilities"`
	Args         []string          `yaml:"args,omitempty"`
	Env          map[string]string `yaml:"env,omitempty"`
}

func (m Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("plugin name is required")
	}
	if m.Version == "" {
		return fmt.Errorf("plugin version is required")
	}
	if m.Binary == "" {
		return fmt.Errorf("plugin binary path is required")
	}
	if !sha256Pattern.MatchString(m.SHA256) {
		return fmt.Errorf("plugin sha256 must be lowercase 64-char hex")
	}
	if len(m.Capabilities) == 0 {
		return fmt.Errorf("plugin capabilities are required")
	}
	seen := map[Capability]struct{}{}
	for _, capability := range m.Capabilities {
		if err := capability.Validate(); err != nil {
			return err
		}
		if _, ok := seen[capability]; ok {
			return fmt.Errorf("duplicate capability: %s", capability)
		}
		seen[capability] = struct{}{}
	}
	return nil
}

func (c Capability) Validate() error {
	switch c {
	case CapabilityTransport, CapabilityAudio:
		return nil
	default:
		return fmt.Errorf("unknown capability: %s", c)
	}
}

func (m Manifest) HasCapability(capability Capability) bool {
	for _, c := range m.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

type Metadata struct {
	Name         string
	Version      string
	Capabilities []Capability
}

// Entry is a folder or file listed by a transport plugin.
type Entry struct {
	ID         string
	Name       string
	Size       int64
	ModifiedAt time.Time
}

const (
	ContentTypeJSON   = "application/json"
	ContentTypeBinary = "application/octet-stream"
)
