package store

import (
	"database/sql"
)

type PgBuzzRepository struct {
	conn *sql.DB
	// dsn is retained for the change-feed listener, which opens its own
	// connection.
	dsn string
}

func NewPgBuzzRepository(dsn string) (*PgBuzzRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PgBuzzRepository{conn: db, dsn: dsn}, nil
}

func (db *PgBuzzRepository) Ping() error {
	return db.conn.Ping()
}

func (db *PgBuzzRepository) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
