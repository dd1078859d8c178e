// Package mysql serves configuration properties from the config_properties
// table. It owns connection pooling and applies the embedded schema migrations
// from deploy/migrations before the first lookup.
package mysql
