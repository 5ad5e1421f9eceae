// Package fact fetches cat facts and optionally translates them into
// Russian. Service.Get never fails: when the provider is unavailable a fixed
// fallback sentence takes the place of the fact.
package fact
