package models

import "time"

// BusinessStatusNew is the lifecycle tag given to every freshly scraped business.
const BusinessStatusNew = "new"

// Business is the validated, normalized output entity for one listing.
// It is never mutated once its job has completed.
type Business struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Website string `json:"website"`
	Phone   string `json:"phone"`

	// ReviewCount and AverageRating are nil when the field could not be read.
	ReviewCount   *float64 `json:"reviewCount,omitempty"`
	AverageRating *float64 `json:"averageRating,omitempty"`

	Introduction string `json:"introduction,omitempty"`
	StoreType    string `json:"storeType,omitempty"`
	OpeningHours string `json:"openingHours,omitempty"`

	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
