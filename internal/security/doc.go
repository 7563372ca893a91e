// Package security summarises the security posture of an engine
// configuration.
//
// BuildReport is pure: it reads a flattened configuration and never touches
// a store or a key.
package security
