package s3m

import "fmt"

// FormatError is returned when the input does not start with an S3M header.
type FormatError struct {
	Magic [4]byte
}

func (err *FormatError) Error() string {
	return fmt.Sprintf("not a valid module: expected magic %q, got %q", scrmMagic, err.Magic[:])
}

// UnsupportedFeatureError is returned for content the decoder cannot
// represent, such as packed or stereo sample data.
type UnsupportedFeatureError struct {
	Instrument int
	Feature    string
}

func (err *UnsupportedFeatureError) Error() string {
	return fmt.Sprintf("instrument %d: %s samples are not supported", err.Instrument, err.Feature)
}
