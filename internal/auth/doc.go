// Package auth derives a normalized identity from verified token claims and
// answers role questions about it.
//
// This package implements:
//   - Identity derivation (subject, display fields, role set)
//   - Role membership checks
//
// It holds no session state. Authentication is the identity provider's job;
// this service only consumes verified bearer tokens.
package auth
