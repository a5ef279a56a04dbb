// Package client contains client-side building blocks for gophauth.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic API contract (see the Client interface) for the
//     auth service: Ping, Login, Refresh, Logout, PublicKey, RegisterUser.
//  2. A concrete gRPC implementation (see GRPCClient) that manages a
//     connection, injects an access token via an interceptor, transparently
//     refreshes expired access tokens, and maps gRPC status codes to
//     sentinel errors.
//  3. Local session persistence (InitDatabase, RunMigrations) wiring an
//     SQLite database with embedded goose migrations.
//
// # Error Handling
//
// Common conditions are exposed as sentinel errors that callers can match
// with errors.Is: ErrUnavailable, ErrUnauthorized, ErrForbidden,
// ErrAlreadyExists, ErrNotLoggedIn.
package client
