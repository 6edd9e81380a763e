package models

import "time"

// DataCategory names one of a ledger's append only data logs.
type DataCategory string

const (
	DataContributions DataCategory = "contributions"
	DataIoT           DataCategory = "iot"
	DataCollection    DataCategory = "collection"
	DataBackup        DataCategory = "backup"
	DataPrimary       DataCategory = "primary"
)

// DataCategories lists every category in display order.
var DataCategories = []DataCategory{
	DataContributions,
	DataIoT,
	DataCollection,
	DataBackup,
	DataPrimary,
}

// Valid reports whether c is a known category.
func (c DataCategory) Valid() bool {
	for _, known := range DataCategories {
		if c == known {
			return true
		}
	}
	return false
}

// DataEntry is one entry of a data log. Index is zero based within its
// category. For contributions Data holds a content identifier.
type DataEntry struct {
	Category  DataCategory `json:"category"`
	Index     int          `json:"index"`
	Data      string       `json:"data"`
	Timestamp time.Time    `json:"timestamp"`
	Sender    Identity     `json:"sender"`
}

// DataCounts maps every category to its number of entries.
type DataCounts map[DataCategory]int
