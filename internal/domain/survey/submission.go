package survey

import (
	"math"
	"path/filepath"
	"strconv"
	"strings"
)

// SubmissionFields are the raw form values of an upload.
type SubmissionFields struct {
	FileName   string
	Lat        string
	Lng        string
	Accuracy   string
	Prediction string
	Confidence string
}

// Submission is a validated upload, ready for ingestion.
type Submission struct {
	OriginalName string
	Extension    string
	Lat          float64
	Lng          float64
	Accuracy     float64
	Prediction   string
	Confidence   *float64
}

// ParseSubmission validates raw upload fields. Missing coordinates, a missing
// image name or a malformed number are rejected before anything is written.
// Coordinate ranges are not checked.
func ParseSubmission(f SubmissionFields) (*Submission, error) {
	name := filepath.Base(strings.TrimSpace(strings.ReplaceAll(f.FileName, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		return nil, NewValidationError("image", "an image file is required")
	}
	ext := filepath.Ext(name)
	if ext == "" || ext == name || !cleanExtension(ext) {
		return nil, NewValidationError("image", "the image file name needs an extension")
	}

	lat, err := requiredFloat("lat", f.Lat)
	if err != nil {
		return nil, err
	}
	lng, err := requiredFloat("lng", f.Lng)
	if err != nil {
		return nil, err
	}

	sub := &Submission{
		OriginalName: name,
		Extension:    ext,
		Lat:          lat,
		Lng:          lng,
		Prediction:   strings.TrimSpace(f.Prediction),
	}

	if acc, ok, err := optionalFloat("accuracy", f.Accuracy); err != nil {
		return nil, err
	} else if ok {
		sub.Accuracy = acc
	}

	if conf, ok, err := optionalFloat("confidence", f.Confidence); err != nil {
		return nil, err
	} else if ok {
		sub.Confidence = &conf
	}

	return sub, nil
}

func requiredFloat(field, raw string) (float64, error) {
	v, ok, err := optionalFloat(field, raw)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, NewValidationError(field, "is required")
	}
	return v, nil
}

func optionalFloat(field, raw string) (float64, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, NewValidationError(field, "must be a number")
	}
	return v, true, nil
}

// cleanExtension accepts a dot followed by up to 10 ASCII letters or digits.
func cleanExtension(ext string) bool {
	if len(ext) < 2 || len(ext) > 11 || ext[0] != '.' {
		return false
	}
	for _, r := range ext[1:] {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
