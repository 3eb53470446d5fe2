package service

// UserError carries a message meant for the subscriber. The API layer
// renders it as {"result": 0, "error": <message>} with HTTP 200; any
// other error becomes the generic failure message.
type UserError struct {
	Message string
}

func (e *UserError) Error() string { return e.Message }

func userErr(message string) error {
	return &UserError{Message: message}
}
