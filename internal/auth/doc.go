// Package auth provides bearer-token authentication for the courier API.
// Two verifier kinds are supported: a static pre-shared token and HS256 JWTs.
package auth
