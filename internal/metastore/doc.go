// Package metastore stores pipeline metadata as JSON files grouped in section
// directories. Writes are atomic renames so a concurrent reader sees either
// the old or the new file, never a partial one. Callers that read, modify and
// write a scene hold its flock-based write lock for the duration.
package metastore
