// Package handler exposes the cat-facts HTTP surface on gin: the fact and
// image endpoints, the index page, health, and the middleware every route
// shares (request ids, access logging, metrics, panic recovery and CORS).
//
// Handlers never surface upstream failures as 5xx. The fact endpoint always
// answers with a fact; the image endpoint answers 204 when no image could be
// found.
package handler
