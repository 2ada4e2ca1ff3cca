package pkg

import "errors"

var (
	// Freshness errors 🗺️
	ErrIdmapStale = errors.New("❌ idmap out of date")
)
