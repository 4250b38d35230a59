package preflight

import (
	"errors"
	"io/fs"
	"os"

	"golang.org/x/sys/unix"

	"zbridge/internal/deps"
)

// CheckDirectoryAccess passes when path is a directory the current user can
// list, enter and write to.
func CheckDirectoryAccess(name, path string) Result {
	r := Result{Name: name, Detail: path}
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		r.Detail += ": missing"
		return r
	case err != nil:
		r.Detail += ": " + err.Error()
		return r
	case !info.IsDir():
		r.Detail += ": not a directory"
		return r
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		r.Detail += ": " + err.Error()
		return r
	}
	r.Passed = true
	return r
}

func binaryResult(st deps.Status) Result {
	return Result{
		Name:     st.Name,
		Passed:   st.Available,
		Optional: st.Optional,
		Detail:   st.Detail,
	}
}
