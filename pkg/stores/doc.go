// Package stores persists the activation history of components in SQLite.
// Schema changes are applied with embedded golang-migrate migrations. Resolved
// property values are never stored, only the outcome of each activation.
package stores
