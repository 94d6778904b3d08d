package apiv1

// Pong is the ping response body.
type Pong struct {
	Ping string `json:"ping"`
}

// ConfirmRequest carries the payment reference from the checkout widget.
type ConfirmRequest struct {
	Reference string `json:"reference"`
}

// ErrorResponse is the uniform rejection body. Code mirrors the engine's
// rejection taxonomy.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
