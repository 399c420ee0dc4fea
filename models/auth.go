package models

// AuthRecord is the user projection returned to clients after login.
// Extra fields the record store attaches to the record are dropped.
type AuthRecord struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	Created  string `json:"created"`
	Updated  string `json:"updated"`
}

// AuthResponse is the body of a successful POST /user/auth.
type AuthResponse struct {
	Token  string     `json:"token"`
	Record AuthRecord `json:"record"`
}

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the self-service sign-up request body.
type Registration struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Role            Role   `json:"role"`
}
