package filestore

import "errors"

var (
	ErrDecode = errors.New("decode settings file")
	ErrWrite  = errors.New("write settings file")
)
