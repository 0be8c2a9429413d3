package domain

// SessionResponse describes the session state handed to the rendering layer
// for the register and login forms.
type SessionResponse struct {
	Flashes []string      `json:"flashes"`         // Messages flashed by the previous request
	User    *UserResponse `json:"user"`            // Current user, nil when anonymous
	Error   string        `json:"error,omitempty"` // Failure of the current request, if any
}
