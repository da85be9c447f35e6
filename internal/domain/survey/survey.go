// Package survey defines the field-survey domain: survey records, operator
// accounts, visitor presence rows and the identity that travels with every
// request. Repositories declared here abstract the embedded store so the
// application layer never touches SQL directly.
package survey

import "time"

// StatusCompleted is the lifecycle value assigned to every new record.
const StatusCompleted = "completed"

// Record is one geotagged survey photograph.
type Record struct {
	ID         int64     `json:"id"`
	ImageName  string    `json:"imgName"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	Accuracy   float64   `json:"accuracy"`
	Surveyor   string    `json:"surveyor"`
	Prediction string    `json:"prediction,omitempty"`
	Confidence *float64  `json:"confidence,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Status     string    `json:"status"`
}

// PlacedRecord is a Record annotated with its distance from a target point.
type PlacedRecord struct {
	*Record
	DistanceMeters float64 `json:"distanceMeters"`
}

// Account is an operator login.
type Account struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Role         Role   `json:"role"`
}

// Stats is the aggregate shown on the landing view.
type Stats struct {
	TotalRecords int `json:"totalRecords"`
	TotalUsers   int `json:"totalUsers"`
}
