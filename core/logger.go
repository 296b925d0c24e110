package core

// Logger is implemented by the logging services.
// args may hold errors, maps of extra data and the acting Identity.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Identity is the acting user as carried by the authorization collaborator.
type Identity struct {
	ID       string
	SchoolID string
	Username string
	Email    string
}
