package handlers

const (
	maxBodyBytes = 1 << 20
	loginPath    = "/api/auth/login"

	ErrInvalidJSON         = "Invalid JSON body"
	ErrInvalidID           = "Invalid id"
	ErrUnauthorized        = "Unauthorized"
	ErrAdminOnly           = "Admin access required"
	ErrTooManyRequests     = "Too many requests, please try again later"
	ErrMaintenance         = "The site is down for maintenance, please try again later"
	ErrInternalServerError = "Internal server error"
)
