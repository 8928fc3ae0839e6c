// Package server hosts the Fiber gateway that exposes configured endpoints over
// HTTP. It owns the middleware chain (panic recovery, request IDs, access logs)
// and JSON error rendering; route handlers live in the routes subpackage and
// receive the catalog built at startup.
package server
