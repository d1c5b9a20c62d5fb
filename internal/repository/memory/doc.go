// Package memory provides in-process implementations of the repository
// interfaces. They back the unit tests and the "memory" database driver
// used for local runs without MongoDB.
package memory
