// Package postgres implements the refresh token store on PostgreSQL via pgx.
//
// It is a drop-in alternative to the default Redis store for deployments that
// want refresh credentials in the same durable database as their accounts.
// Wire it through Builder.WithRefreshStore.
//
// # Rotation
//
// Single-winner rotation uses one conditional UPDATE: the row flips to
// revoked only while it is still live, and exactly one of N concurrent
// rotations observes RowsAffected == 1. The loser path re-reads the row to
// classify the denial.
//
// # Schema
//
// [Schema] holds the expected DDL. Expired rows stay queryable until
// [Store.PurgeExpired] removes them; callers schedule that themselves.
package postgres
