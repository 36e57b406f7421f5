package failure

// Sentinel causes for failures raised inside this module. Wrap them with the
// kind they belong to so Classify never has to guess.
var (
	ErrEmptyJobID     = New(KindValidation, "A job id is required.")
	ErrMissingInput   = New(KindValidation, "Both a concern and a score are required.")
	ErrNonFiniteScore = New(KindValidation, "The score must be a finite number.")
)
