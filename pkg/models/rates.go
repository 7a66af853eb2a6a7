package models

import "time"

// ReferenceRate is a benchmark fixing such as SOFR or EURIBOR 3M, stored as
// a decimal fraction (0.0533 for 5.33%).
type ReferenceRate struct {
	Index  string    `json:"index"`
	Rate   float64   `json:"rate"`
	AsOf   time.Time `json:"asOf"`
	Source string    `json:"source,omitempty"`
}
