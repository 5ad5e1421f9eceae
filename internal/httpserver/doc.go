// Package httpserver owns the process's http.Server: address validation,
// connection timeouts and graceful shutdown. Routing lives elsewhere; any
// http.Handler, including a gin engine, can be served.
package httpserver
