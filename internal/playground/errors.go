package playground

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("a file or folder with that path already exists")
	ErrInvalidName     = errors.New("invalid name")
	ErrNotFolder       = errors.New("not a folder")
	ErrNotFile         = errors.New("not a file")
	ErrProjectNotFound = errors.New("project not found")
	ErrSetupInProgress = errors.New("sandbox setup already in progress")

	// ErrProcessDone is returned by Process.Kill when the process already exited.
	ErrProcessDone = errors.New("process already finished")
)
