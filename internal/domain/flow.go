package domain

// RegistrationState travels with a registration flow token.
// CodeVerified flips to true once the emailed code has been accepted.
type RegistrationState struct {
	Email        string `json:"email"`
	Username     string `json:"username"`
	CodeVerified bool   `json:"code_verified"`
}

// LoginState travels with a login flow token.
type LoginState struct {
	Email string `json:"email"`
}
