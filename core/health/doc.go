// Package health provides liveness and readiness probe handlers.
// Readiness composes dependency checks, usually against the session
// store's backend, so orchestrators stop routing to an instance whose
// backend is gone.
package health
