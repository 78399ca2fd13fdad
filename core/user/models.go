package user

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
)

// Roles
const (
	RoleStudent    = "student"
	RoleInstructor = "instructor"
	RoleAdmin      = "admin"
)

var AllRoles = []string{RoleStudent, RoleInstructor, RoleAdmin}

// User is the application-level profile: role and display data, distinct from
// the identity provider's bare authentication record.
type User struct {
	ID        string      `json:"id"`
	Email     string      `json:"email"`
	Name      string      `json:"name"`
	Role      string      `json:"role"`
	AvatarURL null.String `json:"avatar_url,omitempty"`
	Bio       null.String `json:"bio,omitempty"`
	IsActive  bool        `json:"is_active"`
	CreatedAt time.Time   `json:"created_at"` // UTC
	UpdatedAt time.Time   `json:"updated_at"` // UTC
	LastLogin time.Time   `json:"last_login"` // UTC
}

func (u *User) IsStudent() bool    { return u.Role == RoleStudent }
func (u *User) IsInstructor() bool { return u.Role == RoleInstructor }
func (u *User) IsAdmin() bool      { return u.Role == RoleAdmin }

// NewProfile contains information needed to create a new User profile.
// ID comes from the authenticating identity when the profile is created
// lazily on first login.
type NewProfile struct {
	ID    string `json:"id" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"required"`
	Role  string `json:"role" validate:"required,role"`
}

func (np *NewProfile) Validate() error {
	np.Email = core.CleanString(np.Email, true /* lower */)
	np.Name = core.CleanString(np.Name)
	return core.Validate.Struct(np)
}

// UpdateProfile defines what a user may change on their own profile.
// Email and Role are immutable post-creation.
type UpdateProfile struct {
	Name      string      `json:"name"`
	AvatarURL null.String `json:"avatar_url"`
	Bio       null.String `json:"bio"`
}

func (up *UpdateProfile) Validate(origUsr User) error {
	if name := core.CleanString(up.Name); name != "" {
		up.Name = name
	} else {
		up.Name = origUsr.Name
	}
	return core.Validate.Struct(up)
}

// QueryFilter filters the admin user listing; Search does a case-insensitive
// match on one of User.Name or User.Email.
type QueryFilter struct {
	Search      string    `query:"search"`
	Role        string    `query:"role"`
	IsActive    *bool     `query:"is_active"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Role == "" && qf.IsActive == nil && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Role = core.CleanString(qf.Role, true /* lower */)
}
