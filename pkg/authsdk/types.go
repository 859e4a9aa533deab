package authsdk

// TokenResponse is returned by login and refresh. Refresh echoes the
// presented refresh token back unchanged.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`

	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int `json:"expires_in"`
}

// SignupRequest creates a staff account. Role defaults to "employee".
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// Identity is the public view of an account.
type Identity struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Name     string   `json:"name,omitempty"`
	Roles    []string `json:"roles"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPasswordResponse carries the reset token directly. Delivering it
// out of band is left to the caller.
type ForgotPasswordResponse struct {
	Message    string `json:"msg"`
	ResetToken string `json:"reset_token"`
	ExpiresIn  int    `json:"expires_in"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// MessageResponse is the body of acknowledgement-only endpoints.
type MessageResponse struct {
	Message string `json:"msg"`
}

// AccessResponse is returned by the /v1/access/{role} probes.
type AccessResponse struct {
	Message  string   `json:"msg"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

// AuthorizeRequest asks whether the caller may perform action on resource.
type AuthorizeRequest struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

type HealthChecks struct {
	Database string `json:"database"`
}
