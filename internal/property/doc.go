// Package property resolves named configuration keys through an ordered chain
// of sources (settings file, environment, Redis, MySQL). The first source that
// knows a key wins. Values may reference other keys with ${key} or
// ${key:default}; references are expanded recursively and cycles are rejected.
// A key that no source knows is handled by an explicit MissingPolicy.
package property
