package wire

// LoginRequest is the POST /auth/login body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest is the POST /auth/register body.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserRecord struct {
	ID       ID     `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
}

// AuthResponse answers login and register. User may be missing.
type AuthResponse struct {
	Token string      `json:"token"`
	User  *UserRecord `json:"user,omitempty"`
}

// ProfileRequest is the PATCH /auth/profile body.
type ProfileRequest struct {
	Username string `json:"username"`
}

type ProfileResponse struct {
	User *UserRecord `json:"user"`
}

// ErrorBody is any non-2xx body. Services use either field.
type ErrorBody struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// Text is the human message, preferring "error".
func (e ErrorBody) Text() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}
