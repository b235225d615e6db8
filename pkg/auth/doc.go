// Package auth provides pluggable authentication for the visto HTTP API.
//
// Authentication uses a chain-of-responsibility pattern with three-outcome
// voting: each authenticator returns Grant (identity found), Deny
// (credentials invalid), or Abstain (can't handle). A configurable default
// decides when all authenticators abstain.
//
// Auth is implemented as HTTP middleware, keeping it decoupled from search
// and storage logic.
package auth
