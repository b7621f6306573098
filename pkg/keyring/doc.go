// Package keyring manages override keys and time-boxed override sessions.
//
// Keys are stored hashed, never in plaintext, and carry explicit capability
// scopes. A key holding the wildcard scope "*" authorizes every operation.
// Successful validation can open an override session that expires on its
// own; every validation, grant, use, and revocation is reported through an
// audit hook.
package keyring
