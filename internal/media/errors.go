package media

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported media format")
	ErrDownload          = errors.New("download failed")
	ErrMediaDecode       = errors.New("media decode failed")
	ErrTooLarge          = errors.New("media exceeds size limit")
)

// FormatError names the extension that was rejected
type FormatError struct {
	Ext string
}

func (e *FormatError) Error() string {
	if e.Ext == "" {
		return "unsupported media format: missing file extension"
	}
	return fmt.Sprintf("unsupported media format: %s", e.Ext)
}

func (e *FormatError) Unwrap() error {
	return ErrUnsupportedFormat
}
