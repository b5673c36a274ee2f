package auth

import (
	"fmt"

	"go.uber.org/zap"

	"supik-server/internal/logger"
	"supik-server/internal/metrics"
	"supik-server/internal/models"
)

// Capability is one of the four permission families carried by a Group.
type Capability string

const (
	CapabilityRouter     Capability = "router-access"
	CapabilityUser       Capability = "user-access"
	CapabilityDepartment Capability = "department-access"
	CapabilityMail       Capability = "mail-access"
)

// Capabilities lists every valid capability.
var Capabilities = []Capability{CapabilityRouter, CapabilityUser, CapabilityDepartment, CapabilityMail}

// ParseCapability validates a capability tag.
func ParseCapability(s string) (Capability, error) {
	for _, c := range Capabilities {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown capability %q", s)
}

// level returns the group's value for this capability column.
func (c Capability) level(g *models.Group) int {
	switch c {
	case CapabilityRouter:
		return g.AccessRouter
	case CapabilityUser:
		return g.AccessUser
	case CapabilityDepartment:
		return g.AccessDepartment
	case CapabilityMail:
		return g.AccessMail
	default:
		return models.AccessNone
	}
}

// Level is a privilege level within a capability or a resource ACL.
type Level int

const (
	Viewer Level = models.AccessViewer
	Editor Level = models.AccessEditor
)

func (l Level) String() string {
	switch l {
	case Viewer:
		return "viewer"
	case Editor:
		return "editor"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLevel validates a level tag.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "viewer":
		return Viewer, nil
	case "editor":
		return Editor, nil
	default:
		return 0, fmt.Errorf("unknown level %q", s)
	}
}

// Decision is the outcome of an authorization check.
type Decision int

const (
	Deny Decision = iota
	Allow
)

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// Reason explains a decision.
type Reason int

const (
	ReasonAdmin Reason = iota
	ReasonGranted
	ReasonNoGroups
	ReasonInsufficientLevel
	ReasonNotInACL
	ReasonResourceNotFound
)

func (r Reason) String() string {
	switch r {
	case ReasonAdmin:
		return "admin"
	case ReasonGranted:
		return "granted"
	case ReasonNoGroups:
		return "no groups"
	case ReasonInsufficientLevel:
		return "insufficient level"
	case ReasonNotInACL:
		return "not in acl"
	case ReasonResourceNotFound:
		return "resource not found"
	default:
		return "unknown"
	}
}

// Result is a decision plus the reason behind it.
type Result struct {
	Decision Decision
	Reason   Reason
}

func (r Result) Allowed() bool { return r.Decision == Allow }

// Err converts a deny into ErrForbidden or ErrResourceNotFound.
func (r Result) Err() error {
	switch {
	case r.Allowed():
		return nil
	case r.Reason == ReasonResourceNotFound:
		return ErrResourceNotFound
	default:
		return ErrForbidden
	}
}

// MaxLevel is the highest value of capability across the identity's groups.
func MaxLevel(id *Identity, capability Capability) int {
	highest := models.AccessNone
	for i := range id.Groups {
		if v := capability.level(&id.Groups[i]); v > highest {
			highest = v
		}
	}
	return highest
}

// Check decides whether id holds capability at level or above. Admins are
// always allowed; accounts without groups are always denied.
func Check(id *Identity, capability Capability, level Level) Result {
	var res Result
	switch {
	case id.Admin:
		res = Result{Decision: Allow, Reason: ReasonAdmin}
	case len(id.Groups) == 0:
		res = Result{Decision: Deny, Reason: ReasonNoGroups}
	case MaxLevel(id, capability) >= int(level):
		res = Result{Decision: Allow, Reason: ReasonGranted}
	default:
		res = Result{Decision: Deny, Reason: ReasonInsufficientLevel}
	}

	record("capability", res)
	logger.Debug("capability check",
		zap.Uint("account_id", id.AccountID),
		zap.String("capability", string(capability)),
		zap.Stringer("level", level),
		zap.Stringer("decision", res.Decision),
		zap.Stringer("reason", res.Reason),
	)
	return res
}

func record(check string, res Result) {
	metrics.AuthDecisions.WithLabelValues(check, res.Decision.String(), res.Reason.String()).Inc()
}
