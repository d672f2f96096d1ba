package output

import (
	"fmt"
	"os"
	"path/filepath"

	nwmerrors "github.com/saveenergy/nwm/pkg/errors"
)

// WriteFile stores data at path through a temporary file in the same
// directory and a rename. Either the complete file appears at path or, on
// any failure, nothing new is left in the directory.
func WriteFile(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nwmerrors.ErrWriteFailed(path, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return nwmerrors.ErrWriteFailed(path, err)
	}
	if err = tmp.Sync(); err != nil {
		return nwmerrors.ErrWriteFailed(path, err)
	}
	if err = tmp.Close(); err != nil {
		return nwmerrors.ErrWriteFailed(path, err)
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return nwmerrors.ErrWriteFailed(path, err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return nwmerrors.ErrWriteFailed(path, fmt.Errorf("rename: %w", err))
	}
	return nil
}
