// Package mysql persists settlement records. It ships a MySQL repository with
// embedded, versioned schema migrations and a file-backed repository for
// single-node development.
package mysql
