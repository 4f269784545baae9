package models

import "leadflow/internal/normalize"

// Project is a catalog record from the projects table or index.
type Project struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Location     string `json:"location"`
	MinPrice     int64  `json:"min_price"`
	MaxPrice     int64  `json:"max_price"`
	MinBedrooms  int    `json:"min_bedrooms"`
	MaxBedrooms  int    `json:"max_bedrooms"`
	PropertyType string `json:"property_type"`
}

// CatalogQuery selects projects for a lead. Budget and Bedrooms are ignored
// when zero.
type CatalogQuery struct {
	Location     string `json:"location"`
	PropertyType string `json:"property_type"`
	Bedrooms     int    `json:"bedrooms"`
	Budget       int64  `json:"budget"`
	Tolerance    int64  `json:"tolerance"`
	Limit        int    `json:"limit"`
}

// PriceBounds is [budget-tolerance, budget+tolerance] clamped at zero.
func (q CatalogQuery) PriceBounds() (int64, int64) {
	low := q.Budget - q.Tolerance
	if low < 0 {
		low = 0
	}
	return low, q.Budget + q.Tolerance
}

// CatalogQueryFor derives the catalog filter for a lead.
func CatalogQueryFor(lead LeadInfo, tolerance int64, limit int) CatalogQuery {
	return CatalogQuery{
		Location:     lead.Location,
		PropertyType: lead.PropertyType,
		Bedrooms:     normalize.BedroomCount(lead.Bedrooms),
		Budget:       lead.Budget,
		Tolerance:    tolerance,
		Limit:        limit,
	}
}

func ProjectNames(projects []Project) []string {
	names := make([]string, 0, len(projects))
	for _, p := range projects {
		names = append(names, p.Name)
	}
	return names
}
