// Package download saves a finished archive outside the exporter.
package download

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// ErrExists means the target file is already there and overwriting was not allowed.
var ErrExists = errors.New("file already exists")

// Error wraps any failure to save the archive.
type Error struct {
	Name string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("download %s: %v", e.Name, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ArchiveName is the file name offered for an export made on date (DD-MM-YYYY).
func ArchiveName(date string) string {
	return "printer_jobs_history_" + date + ".zip"
}

// Saver stores a blob under name and returns where it ended up.
type Saver interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
}

// FileSaver writes into Dir. The file appears atomically: a failed save
// leaves nothing behind. Without Overwrite an existing target is never
// replaced, even one created while the archive was being written.
type FileSaver struct {
	Dir       string
	Overwrite bool
}

func (s FileSaver) Save(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &Error{Name: name, Err: err}
	}
	if name == "" || filepath.Base(name) != name {
		return "", &Error{Name: name, Err: errors.New("invalid file name")}
	}

	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &Error{Name: name, Err: err}
	}

	target := filepath.Join(dir, name)
	pf, err := renameio.NewPendingFile(target, renameio.WithTempDir(dir), renameio.WithStaticPermissions(0o644))
	if err != nil {
		return "", &Error{Name: name, Err: err}
	}
	defer func() { _ = pf.Cleanup() }()

	if _, err := pf.Write(data); err != nil {
		return "", &Error{Name: name, Err: err}
	}

	if s.Overwrite {
		err = pf.CloseAtomicallyReplace()
	} else {
		err = linkNew(pf, target)
	}
	if err != nil {
		return "", &Error{Name: name, Err: err}
	}
	return target, nil
}

// linkNew publishes the pending file at target only if nothing is there yet.
// The temp name is removed by the caller's Cleanup.
func linkNew(pf *renameio.PendingFile, target string) error {
	if err := pf.Sync(); err != nil {
		return err
	}
	if err := os.Link(pf.Name(), target); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return ErrExists
		}
		return err
	}
	return nil
}
