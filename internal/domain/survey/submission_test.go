package survey

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSubmissionAcceptsFieldHardwareUpload(t *testing.T) {
	sub, err := ParseSubmission(SubmissionFields{
		FileName: "IMG_0001.jpg",
		Lat:      "19.0308",
		Lng:      "99.9263",
		Accuracy: "99.0",
	})
	require.NoError(t, err)
	assert.Equal(t, "IMG_0001.jpg", sub.OriginalName)
	assert.Equal(t, ".jpg", sub.Extension)
	assert.Equal(t, 19.0308, sub.Lat)
	assert.Equal(t, 99.9263, sub.Lng)
	assert.Equal(t, 99.0, sub.Accuracy)
	assert.Empty(t, sub.Prediction)
	assert.Nil(t, sub.Confidence)
}

func TestParseSubmissionOptionalFields(t *testing.T) {
	sub, err := ParseSubmission(SubmissionFields{
		FileName:   "leaf.PNG",
		Lat:        "-1.5",
		Lng:        "200",
		Prediction: " Zanthoxylum limonella ",
		Confidence: "87.25",
	})
	require.NoError(t, err)
	assert.Equal(t, ".PNG", sub.Extension)
	assert.Equal(t, 0.0, sub.Accuracy)
	assert.Equal(t, "Zanthoxylum limonella", sub.Prediction)
	require.NotNil(t, sub.Confidence)
	assert.Equal(t, 87.25, *sub.Confidence)
}

func TestParseSubmissionStripsClientDirectories(t *testing.T) {
	sub, err := ParseSubmission(SubmissionFields{FileName: `C:\photos\..\tree.jpeg`, Lat: "1", Lng: "2"})
	require.NoError(t, err)
	assert.Equal(t, "tree.jpeg", sub.OriginalName)
	assert.Equal(t, ".jpeg", sub.Extension)
}

func TestParseSubmissionRejects(t *testing.T) {
	cases := []struct {
		name   string
		fields SubmissionFields
		field  string
	}{
		{"no image", SubmissionFields{Lat: "1", Lng: "2"}, "image"},
		{"no extension", SubmissionFields{FileName: "photo", Lat: "1", Lng: "2"}, "image"},
		{"dotfile", SubmissionFields{FileName: ".jpg", Lat: "1", Lng: "2"}, "image"},
		{"odd extension", SubmissionFields{FileName: "a.j p", Lat: "1", Lng: "2"}, "image"},
		{"missing lat", SubmissionFields{FileName: "a.jpg", Lng: "2"}, "lat"},
		{"missing lng", SubmissionFields{FileName: "a.jpg", Lat: "1"}, "lng"},
		{"malformed lat", SubmissionFields{FileName: "a.jpg", Lat: "north", Lng: "2"}, "lat"},
		{"nan lng", SubmissionFields{FileName: "a.jpg", Lat: "1", Lng: "NaN"}, "lng"},
		{"malformed accuracy", SubmissionFields{FileName: "a.jpg", Lat: "1", Lng: "2", Accuracy: "high"}, "accuracy"},
		{"malformed confidence", SubmissionFields{FileName: "a.jpg", Lat: "1", Lng: "2", Confidence: "Inf"}, "confidence"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseSubmission(tc.fields)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}
