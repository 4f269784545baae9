// internal/models/query_types.go
package models

type QueryType string

const (
	QueryTypeProjectsByCriteria QueryType = "projects_by_criteria"
	QueryTypeProjectCount       QueryType = "project_count"
)
