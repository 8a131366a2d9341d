// Package resolve downloads, caches, and locates FFmpeg binaries.
//
// A Resolver checks the local cache first and touches the network only when
// the requested target is missing or fails validation. Installs are staged
// in temporary directories and published with a rename so a crashed download
// never leaves a half-written install behind; a file lock serializes
// concurrent resolvers pointed at the same cache. Completed installs are
// recorded in a small SQLite manifest for inspection.
package resolve
