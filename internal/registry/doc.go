// Package registry records the containers (loaded assets) of the current
// scene. Each container is one JSON file under
// <workdir>/<metadata_dir>/<scene>/containers/, named after the container.
//
// Files written by older integrations may hold a list of records and may lack
// objectName; both are read transparently.
package registry
