package handler

// Context keys set by the hub's session middleware.
const (
	CtxUsername = "hub.username"
	CtxToken    = "hub.token"
)
