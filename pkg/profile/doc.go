// Package profile manages the user profile envelope, a minimal persona
// stub for output shaping. A profile tailors reading level, format, and
// language; it never grants authority. Override keys live in the keyring
// and are deliberately out of this package's reach.
package profile
