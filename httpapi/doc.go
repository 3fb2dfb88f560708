// Package httpapi is the REST surface of carauth: gorilla/mux routes for
// registration, login, logout, email verification, password reset and the
// profile, answering with the {"status": ..., "data": ...} envelope.
//
// Handlers depend only on [Service], which *carauth.Engine satisfies. They
// check the transport-only fields (confirmPassword, terms) and leave every
// other rule to the engine. Errors are mapped to status codes in one place,
// [StatusFor].
package httpapi
