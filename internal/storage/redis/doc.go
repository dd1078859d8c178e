// Package redis serves configuration properties from a single Redis hash,
// where each field name is a property key.
package redis
