package data

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/agentmarket/coordinator/db"
)

// QueryBuilder is a helper struct for building SQL queries incrementally.
type QueryBuilder struct {
	baseQuery           string
	whereClause         string
	whereParams         []interface{}
	sortClause          string
	paginationClause    string
	paginationParams    []interface{}
	forUpdateSkipLocked bool
}

func NewQueryBuilder(query string) *QueryBuilder {
	return &QueryBuilder{
		baseQuery: query,
	}
}

// AddCondition adds an AND condition to the query. The condition should be a
// string with a placeholder for the value, e.g. "status = ?".
func (qb *QueryBuilder) AddCondition(condition string, value ...interface{}) *QueryBuilder {
	qb.whereClause = fmt.Sprintf("%s AND %s", qb.whereClause, condition)
	qb.whereParams = append(qb.whereParams, value...)
	return qb
}

// AddSorting adds a sorting clause to the query. prefix is the table alias,
// e.g. "t" for "t.created_at".
func (qb *QueryBuilder) AddSorting(sortField SortField, sortOrder SortOrder, prefix string) *QueryBuilder {
	if sortField != "" {
		qb.sortClause = fmt.Sprintf("ORDER BY %s.%s %s", prefix, sortField, sortOrder)
	}
	return qb
}

func (qb *QueryBuilder) AddPagination(page, pageLimit int) *QueryBuilder {
	if page > 0 && pageLimit > 0 {
		offset := (page - 1) * pageLimit
		qb.paginationClause = "LIMIT ? OFFSET ?"
		qb.paginationParams = append(qb.paginationParams, pageLimit, offset)
	}
	return qb
}

func (qb *QueryBuilder) ForUpdateSkipLocked() *QueryBuilder {
	qb.forUpdateSkipLocked = true
	return qb
}

// Build assembles all clauses in the correct order and returns the query and
// its positional parameters.
func (qb *QueryBuilder) Build() (string, []interface{}) {
	query := qb.baseQuery
	params := []interface{}{}
	if qb.whereClause != "" {
		query = fmt.Sprintf("%s WHERE 1=1%s", query, qb.whereClause)
		params = append(params, qb.whereParams...)
	}
	if qb.sortClause != "" {
		query = fmt.Sprintf("%s %s", query, qb.sortClause)
	}
	if qb.paginationClause != "" {
		query = fmt.Sprintf("%s %s", query, qb.paginationClause)
		params = append(params, qb.paginationParams...)
	}
	if qb.forUpdateSkipLocked {
		query = fmt.Sprintf("%s FOR UPDATE SKIP LOCKED", query)
	}
	return query, params
}

func (qb *QueryBuilder) BuildAndRebind(sqlExec db.SQLExecuter) (string, []interface{}) {
	query, params := qb.Build()
	query = sqlExec.Rebind(query)
	return query, params
}

// BuildSetClause builds a SET clause for an UPDATE query from a struct's
// non-zero fields and their "db" tags.
func BuildSetClause(u interface{}) (string, []interface{}) {
	v := reflect.ValueOf(u)
	t := reflect.TypeOf(u)

	if t.Kind() != reflect.Struct {
		return "", nil
	}

	var setClauses []string
	var params []interface{}

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)
		dbTag := strings.Split(fieldType.Tag.Get("db"), ",")[0]
		if dbTag == "" {
			continue
		}

		if !field.IsZero() {
			setClauses = append(setClauses, fmt.Sprintf("%s = ?", dbTag))
			params = append(params, field.Interface())
		}
	}

	return strings.Join(setClauses, ", "), params
}
