// Package api defines the tagged response envelope every service returns.
// Failures carry a stable message key (e.g. "order.insufficient_stock")
// instead of a raw error string, so clients and the gateway can localize.
package api

// Response is the envelope for every service-layer result crossing the HTTP
// boundary.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func Success(data any) Response {
	return Response{Success: true, Data: data}
}

func SuccessMsg(messageKey string) Response {
	return Response{Success: true, Message: messageKey}
}

// Failure wraps an error whose Error() string is the message key. Service
// sentinel errors are declared with their key as the message for exactly this
// mapping.
func Failure(err error) Response {
	return Response{Success: false, Message: err.Error()}
}

func FailureMsg(messageKey string) Response {
	return Response{Success: false, Message: messageKey}
}
