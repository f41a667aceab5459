// Package accounts implements local account storage: account rows,
// login credentials with bcrypt hashes, and bearer sessions.
//
// Credential rows are soft-deleted (removed_at) and uniqueness is
// enforced case-insensitively on the login name. Sessions are a pair
// of UUIDs (account id + token) serialized as "id|token" for cookies.
package accounts
