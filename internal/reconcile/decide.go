package reconcile

import (
	"fmt"
	"time"

	"shotsync/internal/project"
	"shotsync/internal/services"
)

// Action is the outcome of a per-project decision.
type Action string

const (
	ActionSkip    Action = "skip"
	ActionProceed Action = "proceed"
)

// Class names why a project was skipped, or flags a proceed that passed
// through a suspicious state.
type Class string

const (
	ClassNone        Class = ""
	ClassRemoteNewer Class = "RemoteNewer"
	ClassCorruption  Class = "CorruptionSuspected"
	ClassConflict    Class = "ConflictDetected"
)

// Marker returns the services sentinel for the class, or nil.
func (c Class) Marker() error {
	switch c {
	case ClassCorruption:
		return services.ErrCorruption
	case ClassConflict:
		return services.ErrConflict
	default:
		return nil
	}
}

// Decision is the result of Decide.
type Decision struct {
	Action         Action
	Class          Class
	Reason         string
	Diff           time.Duration
	ExpectedShots  int
	ActualShots    int
	RemoteShots    int
	RemoteExists   bool
	IntentionalCut bool
}

// Decide chooses between pushing local state and preserving the remote copy.
// remoteRec is nil when the project does not exist remotely. The result
// depends only on its inputs.
func Decide(summary project.Summary, local, remoteRec *project.Data, tolerance time.Duration) Decision {
	d := Decision{
		ExpectedShots: summary.ShotCount,
		ActualShots:   local.ShotCount(),
		RemoteExists:  remoteRec != nil,
		RemoteShots:   remoteRec.ShotCount(),
	}

	if d.RemoteExists {
		d.Diff = summary.LastModified.Sub(remoteRec.LastModified)
		if d.Diff < -tolerance {
			d.Action = ActionSkip
			d.Class = ClassRemoteNewer
			d.Reason = fmt.Sprintf("remote is newer by %s (tolerance %s)", (-d.Diff).Round(time.Second), tolerance)
			return d
		}
	}

	if d.ExpectedShots > 0 && d.ActualShots == 0 {
		if d.RemoteShots > 0 {
			d.Action = ActionSkip
			d.Class = ClassCorruption
			d.Reason = fmt.Sprintf("local index expects %d shots but payload has none; remote has %d", d.ExpectedShots, d.RemoteShots)
			return d
		}
		d.Action = ActionProceed
		d.Class = ClassCorruption
		d.Reason = fmt.Sprintf("local index expects %d shots but payload has none; remote has none to preserve", d.ExpectedShots)
		return d
	}

	if d.ActualShots*2 < d.ExpectedShots && d.RemoteShots > d.ActualShots {
		d.Action = ActionSkip
		d.Class = ClassConflict
		d.Reason = fmt.Sprintf("local payload has %d of %d expected shots and remote has %d", d.ActualShots, d.ExpectedShots, d.RemoteShots)
		return d
	}

	if d.RemoteShots > d.ActualShots {
		if d.Diff <= tolerance {
			d.Action = ActionSkip
			d.Class = ClassConflict
			d.Reason = fmt.Sprintf("remote has more shots (%d > %d) and local is not clearly newer (diff %s)", d.RemoteShots, d.ActualShots, d.Diff.Round(time.Second))
			return d
		}
		d.IntentionalCut = true
		d.Action = ActionProceed
		d.Reason = fmt.Sprintf("local is newer by %s; treating %d removed shots as deletions", d.Diff.Round(time.Second), d.RemoteShots-d.ActualShots)
		return d
	}

	d.Action = ActionProceed
	if d.RemoteExists {
		d.Reason = "local is current"
	} else {
		d.Reason = "no remote record"
	}
	return d
}
