// Package catimage resolves one cat picture per request by walking an
// ordered list of sources until one yields a valid image.
//
// A Plan builds the list for each request. The catalog plan turns every
// configured Wikimedia Commons category into a CategorySource, in a random
// order, and ends with a StaticSource for a fixed picture. The search plan
// has a single SearchSource backed by TheCatAPI. The Resolver tries each
// source once, validates what it returns and falls through on any failure.
package catimage
