// Package translate wraps the unofficial Google translate_a endpoint.
//
// Translation is best effort: Translate never fails, it returns the input
// text unchanged whenever the endpoint cannot produce a usable result.
package translate
