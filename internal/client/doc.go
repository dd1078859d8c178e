// Package client implements the config endpoint service: it holds the
// property resolved at startup and formats the plain-text response.
package client
