package model

// Role enumerates portal user roles.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// Profile is a portal user profile.
type Profile struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	FullName   string `json:"full_name"`
	Role       Role   `json:"role"`
	Gender     string `json:"gender,omitempty"`
	Department string `json:"department,omitempty"`
	RegNumber  string `json:"reg_number,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// LoginRequest is the credential payload for /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest is the payload for /api/auth/register.
type RegisterRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=6"`
	FullName   string `json:"full_name" validate:"required,min=2"`
	Role       Role   `json:"role" validate:"required,oneof=admin teacher student"`
	Gender     string `json:"gender" validate:"required,oneof=male female"`
	Department string `json:"department,omitempty"`
	RegNumber  string `json:"reg_number,omitempty"`
}

// LoginResponse is the portal's reply to a successful login.
type LoginResponse struct {
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	User        *Profile `json:"user"`
}
