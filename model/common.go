package model

// Pagination envelope, pages are 1-indexed
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// NewPagination godoc
func NewPagination(page, limit int, total int64) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
	}
}

// Offset of the first item of the page
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

// RequestError godoc
type RequestError struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
