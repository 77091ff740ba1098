package core

import (
	"fmt"
)

// OutcomeKind tags the result of one update cycle.
type OutcomeKind int

const (
	OutcomeNoUpdate OutcomeKind = iota
	OutcomeCheckFailed
	OutcomeInstallSucceeded
	OutcomeInstallFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeNoUpdate:
		return "NoUpdate"
	case OutcomeCheckFailed:
		return "CheckFailed"
	case OutcomeInstallSucceeded:
		return "InstallSucceeded"
	case OutcomeInstallFailed:
		return "InstallFailed"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// InstallPath names the transfer path an install attempt used.
type InstallPath string

const (
	PathPrimary  InstallPath = "primary"
	PathRedirect InstallPath = "redirect"
)

// Outcome is the single value every cycle produces.
type Outcome struct {
	Kind OutcomeKind
	// Reason is set for CheckFailed and InstallFailed.
	Reason error
	// Release is the candidate involved, nil for NoUpdate and CheckFailed.
	Release *ReleaseInfo
	// Path is the transfer path of the last install attempt.
	Path InstallPath
	// Cycle correlates the outcome with the log lines and progress events of its cycle.
	Cycle string
}

func NoUpdate() Outcome {
	return Outcome{Kind: OutcomeNoUpdate}
}

func CheckFailed(reason error) Outcome {
	return Outcome{Kind: OutcomeCheckFailed, Reason: reason}
}

func InstallSucceeded(rel *ReleaseInfo, path InstallPath) Outcome {
	return Outcome{Kind: OutcomeInstallSucceeded, Release: rel, Path: path}
}

func InstallFailed(rel *ReleaseInfo, path InstallPath, reason error) Outcome {
	return Outcome{Kind: OutcomeInstallFailed, Release: rel, Path: path, Reason: reason}
}

// Committed reports whether the outcome requires a restart.
func (o Outcome) Committed() bool {
	return o.Kind == OutcomeInstallSucceeded
}

func (o Outcome) String() string {
	s := o.Kind.String()
	if o.Release != nil {
		s += " " + string(o.Release.Version)
	}
	if o.Path != "" {
		s += " via " + string(o.Path)
	}
	if o.Reason != nil {
		s += ": " + o.Reason.Error()
	}
	return s
}
