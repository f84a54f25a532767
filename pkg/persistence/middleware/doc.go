/*
Package middleware provides decorators for ports.Store.

Middlewares compose with Chain; the first one listed sees calls first.

	store := middleware.Chain(base,
		middleware.NewLoggingMiddleware(logger),
		encrypt,
	)

NewEncryptionMiddleware seals every row with AES-256-GCM and supports key
rotation through fallback keys. Primary keys and join links stay readable by
the wrapped store.
*/
package middleware
