// Package users implements a small user management core: registration,
// login, profile updates, and a soft-delete lifecycle (active, soft-deleted,
// restored, purged), backed by argon2id credential hashing and stateless
// JWT session tokens.
//
// The package is transport agnostic. HTTP integration lives in
// middleware/tokenguard, which gates protected routes and attaches verified
// claims to the request context.
package users
