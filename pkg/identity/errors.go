package identity

// ProviderError carries the raw failure code reported by the identity
// service. Known codes translate to a fixed user-readable message;
// anything else falls back to a generic one.
type ProviderError struct {
	Code string
}

func (e *ProviderError) Error() string {
	return MessageForCode(e.Code)
}

var errorMessages = map[string]string{
	"EMAIL_EXISTS":          "This email is already in use.",
	"INVALID_EMAIL":         "The email address is not valid.",
	"OPERATION_NOT_ALLOWED": "Operation not allowed.",
	"WEAK_PASSWORD":         "The password is too weak.",
	"USER_DISABLED":         "This user account has been disabled.",
	"EMAIL_NOT_FOUND":       "No user found with this email.",
	"INVALID_PASSWORD":      "Incorrect password.",
}

// MessageForCode maps a provider failure code to its display message.
func MessageForCode(code string) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return "An unexpected error occurred. Please try again."
}
