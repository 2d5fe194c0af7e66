package domain

// User roles.
const (
	RoleEmployee = "employee"
	RoleManager  = "manager"
)

// User is an authenticated principal. Sub is the FGA subject
// identifier ("user:<name>").
type User struct {
	Sub        string `json:"sub"`
	Username   string `json:"username"`
	Role       string `json:"role"`
	Department string `json:"department,omitempty"`
}

// IsManager reports whether the user holds the manager role.
func (u *User) IsManager() bool { return u.Role == RoleManager }

// RoleSubject returns the FGA subject for the user's role ("role:<role>").
func (u *User) RoleSubject() string { return "role:" + u.Role }

// UserSettings holds per-user assistant preferences.
type UserSettings struct {
	City     string `json:"city"`
	Timezone string `json:"timezone,omitempty"`
	Theme    string `json:"theme,omitempty"`
}
