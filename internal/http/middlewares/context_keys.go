package middlewares

// Keys set on the gin context. Handlers read the actor from the request context instead.
const (
	CtxRequestID = "request_id"
	CtxUserID    = "auth.userID"
	CtxRole      = "auth.role"
)
