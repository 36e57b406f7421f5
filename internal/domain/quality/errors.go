package quality

import (
	"fmt"
	"strings"

	"github.com/okian/skinmate/internal/domain/failure"
	"github.com/okian/skinmate/internal/domain/model"
)

// Sentinel validation failures raised while preparing an image.
var (
	ErrEmptyImage        = failure.New(failure.KindValidation, "No image was provided. Please upload a photo.")
	ErrUnsupportedFormat = failure.New(failure.KindValidation, "Unsupported image format. Please upload a JPEG, PNG, GIF, BMP or TIFF image.")
)

func errTooLarge(limit int) *failure.ClassifiedError {
	return failure.New(failure.KindValidation,
		fmt.Sprintf("The image is too large. Please upload a file under %d MB.", limit>>20))
}

func errTooManyPixels(width, height int, limit int64) *failure.ClassifiedError {
	return failure.New(failure.KindValidation,
		fmt.Sprintf("The image dimensions are too large (%dx%d). Please upload a photo under %d megapixels.",
			width, height, limit/1_000_000))
}

// RejectedError is returned when an image fails the gate and the caller did
// not ask to submit it anyway.
type RejectedError struct {
	Result model.ImageQualityResult
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("image rejected by quality gate: %s", strings.Join(e.Result.Reasons, "; "))
}
