package handler

// response is the success envelope shared by every endpoint.
type response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ErrorResponse documents the error envelope rendered by the central error
// handler.
type ErrorResponse struct {
	Success bool   `json:"success" example:"false"`
	Message string `json:"message" example:"Invalid username or password"`
}

func ok(message string) response {
	return response{Success: true, Message: message}
}
