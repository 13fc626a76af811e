package auth

// Role labels come from the authentication boundary verbatim; the core only
// branches on them, it never issues them.
const (
	RoleUser             = "user"
	RoleVendor           = "vendor"
	RolePostOffice       = "post_office"
	RolePostOfficeMember = "post_office_member"
	RoleAdmin            = "admin"
)

// Principal is the authenticated caller as the middleware resolved it.
type Principal struct {
	ID   uint
	Role string
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// IsPostOffice reports whether the principal may operate the custody desk.
func (p Principal) IsPostOffice() bool {
	return p.Role == RolePostOffice || p.Role == RolePostOfficeMember
}
