// Package db provides embedded database schemas and seed data.
package db

import _ "embed"

// Schema contains the PostgreSQL DDL for the cart state table.
//
//go:embed migrations/001_cart_state.sql
var Schema string

// MySQLSchema contains the MySQL DDL for the cart state table.
//
//go:embed migrations/mysql/001_cart_state.sql
var MySQLSchema string

// Inventory is the sample catalog served by the inventory stub.
//
//go:embed seed/inventory.json
var Inventory []byte
