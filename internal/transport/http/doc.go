// Package http implements the REST surface of the bulk operation engine.
// Handlers stay thin: parse and validate the request, call the engine or the
// item service, and translate engine errors onto the API error envelope.
package http
