// Package http implements the HTTP transport layer of the application.
//
// It exposes route wiring, request handlers, and middleware used by the
// REST dispatcher and the sync endpoints. Cross-cutting concerns such as
// authentication, request tracing, access logging, and request deadlines
// are handled in this package before requests are delegated to the
// resource, importer, and sync layers.
package http
