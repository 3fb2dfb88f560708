// Package pgstore implements carauth.CredentialStore on PostgreSQL through
// the pgx database/sql driver.
//
// Every operation is a single SQL statement. Email uniqueness is a unique
// index on lower(email); Save is an UPDATE guarded by the version column.
// Migrations are embedded and applied with goose.
package pgstore
