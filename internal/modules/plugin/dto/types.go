package dto

import "time"

type PluginInfo struct {
	Name         string
	Version      string
	Enabled      bool
	Binary       string
	Capabilities []string
}

type DoctorResult struct {
	Name            string
	ChecksumValid   bool
	BinaryReachable bool
	LifecycleOK     bool
	// ReportedVersion is what the running plugin says about itself.
	ReportedVersion string
	Error           string
}

type Entry struct {
	ID         string
	Name       string
	Size       int64
	ModifiedAt time.Time
}
