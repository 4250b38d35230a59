// Package workdir resolves the work directory of a pipeline context and the
// metadata layout beneath it:
//
//	<workdir>/<metadata_dir>/current_file.txt
//	<workdir>/<metadata_dir>/<scene>/<section>/<name>.json
//
// The scene is the basename of the open workfile, or ".untitled" before the
// first save.
package workdir
