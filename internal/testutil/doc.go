// Package testutil contains helper builders used across tests to reduce
// boilerplate when constructing conversation histories and seeding session
// stores. They are not intended for production usage.
package testutil
