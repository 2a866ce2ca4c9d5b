package data

import "fmt"

// QueryParams carries filter/sort/pagination inputs for a listing query.
// None of the List* repository methods in this package take it; their
// filters and ordering are fixed in their SQL.
type QueryParams struct {
	Page      int
	PageLimit int
	SortBy    SortField
	SortOrder SortOrder
	Filters   map[FilterKey]interface{}
}

type SortOrder string

const (
	SortOrderASC  SortOrder = "ASC"
	SortOrderDESC SortOrder = "DESC"
)

type SortField string

const (
	SortFieldCreatedAt SortField = "created_at"
	SortFieldUpdatedAt SortField = "updated_at"
	SortFieldPostedAt  SortField = "posted_at"
)

type FilterKey string

const (
	FilterKeyStatus        FilterKey = "status"
	FilterKeyCreatorWallet FilterKey = "creator_wallet"
	FilterKeyTaskID        FilterKey = "task_id"
	FilterKeyJobID         FilterKey = "job_id"
)

func (fk FilterKey) Equals() string {
	return fmt.Sprintf("%s = ?", fk)
}
