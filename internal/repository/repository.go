// Package repository provides sqlite persistence for the procurement
// domain. Write methods accept an optional *sql.Tx so callers can group
// them into one transaction; passing nil executes against the pool.
package repository

import "database/sql"

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// on returns tx when present, otherwise the pool.
func on(db *sql.DB, tx *sql.Tx) querier {
	if tx != nil {
		return tx
	}
	return db
}
