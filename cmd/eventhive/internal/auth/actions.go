package auth

import "github.com/eventhive/eventhive/cmd/eventhive/internal/db/models"

// Action names a capability checked by the access gate. Every gated route
// declares exactly one action.
type Action string

// Event actions
const (
	// EventCreate allows creating events
	EventCreate Action = "event:create"

	// EventEdit allows editing events (own events only for organizers)
	EventEdit Action = "event:edit"

	// EventDelete allows deleting events (own events only for organizers)
	EventDelete Action = "event:delete"
)

// Registration and feedback actions
const (
	RegistrationCreate Action = "registration:create"
	RegistrationDelete Action = "registration:delete"
	FeedbackSubmit     Action = "feedback:submit"
	QRView             Action = "qr:view"
)

// Attendance actions
const (
	AttendanceScan   Action = "attendance:scan"
	AttendanceVerify Action = "attendance:verify"
)

// Dashboard and administration actions
const (
	DashboardAdmin     Action = "dashboard:admin"
	DashboardOrganizer Action = "dashboard:organizer"
	DashboardStudent   Action = "dashboard:student"
	UserDelete         Action = "user:delete"
)

// Scope qualifies an action with the requester's relation to the resource.
type Scope string

const (
	// ScopeAny grants the action regardless of ownership
	ScopeAny Scope = "any"
	// ScopeOwn is requested when the actor owns the resource
	ScopeOwn Scope = "own"
	// ScopeOther is requested when the actor does not own the resource
	ScopeOther Scope = "other"
)

// ScopeFor returns ScopeOwn when owned is true and ScopeOther otherwise.
func ScopeFor(owned bool) Scope {
	if owned {
		return ScopeOwn
	}
	return ScopeOther
}

// Policy is a single role grant.
type Policy struct {
	Role   models.Role
	Action Action
	Scope  Scope
}

// Rule returns the casbin policy values (sub, act, scope).
func (p Policy) Rule() []string {
	return []string{p.Role.Subject(), string(p.Action), string(p.Scope)}
}

// DefaultPolicies is the role matrix seeded by migrations.
func DefaultPolicies() []Policy {
	return []Policy{
		{models.RoleAdmin, EventCreate, ScopeAny},
		{models.RoleAdmin, EventEdit, ScopeAny},
		{models.RoleAdmin, EventDelete, ScopeAny},
		{models.RoleAdmin, DashboardAdmin, ScopeAny},
		{models.RoleAdmin, UserDelete, ScopeAny},

		{models.RoleOrganizer, EventCreate, ScopeAny},
		{models.RoleOrganizer, EventEdit, ScopeOwn},
		{models.RoleOrganizer, EventDelete, ScopeOwn},
		{models.RoleOrganizer, DashboardOrganizer, ScopeAny},
		{models.RoleOrganizer, AttendanceScan, ScopeAny},
		{models.RoleOrganizer, AttendanceVerify, ScopeAny},

		{models.RoleStudent, RegistrationCreate, ScopeAny},
		{models.RoleStudent, RegistrationDelete, ScopeAny},
		{models.RoleStudent, FeedbackSubmit, ScopeAny},
		{models.RoleStudent, DashboardStudent, ScopeAny},
		{models.RoleStudent, QRView, ScopeAny},
	}
}
