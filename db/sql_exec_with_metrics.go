package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/agentmarket/coordinator/internal/logging"
	"github.com/agentmarket/coordinator/internal/monitor"
)

type QueryType string

const (
	DeleteQueryType    QueryType = "DELETE"
	InsertQueryType    QueryType = "INSERT"
	SelectQueryType    QueryType = "SELECT"
	UndefinedQueryType QueryType = "UNDEFINED"
	UpdateQueryType    QueryType = "UPDATE"
)

func NewSQLExecuterWithMetrics(sqlExec SQLExecuter, monitorServiceInterface monitor.MonitorServiceInterface) (*SQLExecuterWithMetrics, error) {
	if sqlExec == nil {
		return nil, fmt.Errorf("sqlExec cannot be nil")
	}
	if monitorServiceInterface == nil {
		return nil, fmt.Errorf("monitorServiceInterface cannot be nil")
	}

	return &SQLExecuterWithMetrics{
		SQLExecuter:             sqlExec,
		monitorServiceInterface: monitorServiceInterface,
	}, nil
}

// SQLExecuterWithMetrics is a wrapper around SQLExecuter that records query duration metrics.
type SQLExecuterWithMetrics struct {
	SQLExecuter
	monitorServiceInterface monitor.MonitorServiceInterface
}

var _ SQLExecuter = (*SQLExecuterWithMetrics)(nil)

func (sqlExec *SQLExecuterWithMetrics) monitorDBQueryDuration(duration time.Duration, query string, err error) {
	labels := monitor.DBQueryLabels{
		QueryType: string(getQueryType(query)),
	}
	errMetric := sqlExec.monitorServiceInterface.MonitorDBQueryDuration(duration, getMetricTag(err), labels)
	if errMetric != nil {
		logging.Errorf("error trying to monitor db query duration: %s", errMetric)
	}
}

func (sqlExec *SQLExecuterWithMetrics) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	then := time.Now()
	err := sqlExec.SQLExecuter.GetContext(ctx, dest, query, args...)
	sqlExec.monitorDBQueryDuration(time.Since(then), query, err)
	return err
}

func (sqlExec *SQLExecuterWithMetrics) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	then := time.Now()
	err := sqlExec.SQLExecuter.SelectContext(ctx, dest, query, args...)
	sqlExec.monitorDBQueryDuration(time.Since(then), query, err)
	return err
}

func (sqlExec *SQLExecuterWithMetrics) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	then := time.Now()
	result, err := sqlExec.SQLExecuter.ExecContext(ctx, query, args...)
	sqlExec.monitorDBQueryDuration(time.Since(then), query, err)
	return result, err
}

func (sqlExec *SQLExecuterWithMetrics) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	then := time.Now()
	rows, err := sqlExec.SQLExecuter.QueryContext(ctx, query, args...)
	sqlExec.monitorDBQueryDuration(time.Since(then), query, err)
	return rows, err
}

func (sqlExec *SQLExecuterWithMetrics) QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error) {
	then := time.Now()
	rows, err := sqlExec.SQLExecuter.QueryxContext(ctx, query, args...)
	sqlExec.monitorDBQueryDuration(time.Since(then), query, err)
	return rows, err
}

func (sqlExec *SQLExecuterWithMetrics) QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row {
	then := time.Now()
	row := sqlExec.SQLExecuter.QueryRowxContext(ctx, query, args...)
	sqlExec.monitorDBQueryDuration(time.Since(then), query, row.Err())
	return row
}

func getMetricTag(err error) monitor.MetricTag {
	if err != nil {
		return monitor.FailureQueryDurationTag
	}
	return monitor.SuccessfulQueryDurationTag
}

func getQueryType(query string) QueryType {
	words := strings.Fields(strings.TrimSpace(query))
	if len(words) == 0 {
		return UndefinedQueryType
	}
	for _, word := range []string{"DELETE", "INSERT", "SELECT", "UPDATE"} {
		if word == words[0] {
			return QueryType(word)
		}
	}
	return UndefinedQueryType
}
