// Package httpapi is the JSON/HTTP surface of a goTrust Engine, routed with
// chi.
//
// Every response uses the envelope {"status":"success","data":...} or
// {"status":"error","code":...,"message":...}. Token, credential and lookup
// failures collapse to a generic 401 so callers cannot probe which check
// failed; only expiry is reported separately so clients know to refresh.
package httpapi
