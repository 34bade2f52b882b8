package pipeline

import (
	"errors"
)

// Run-level failure kinds. Use errors.Is to match them.
var (
	ErrFeedUnavailable        = errors.New("feed unavailable")
	ErrFeedMalformed          = errors.New("feed malformed")
	ErrItemDownloadFailed     = errors.New("item download failed")
	ErrWatermarkPersistFailed = errors.New("watermark persist failed")
	ErrWatermarkUnavailable   = errors.New("watermark unavailable")
	ErrRunLocked              = errors.New("run lock unavailable")
)
