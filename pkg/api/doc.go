// Package api exposes the back-office HTTP surface: entity CRUD, the audit
// read endpoints and operational endpoints (health, metrics). Controllers
// register themselves on a shared gin engine; audit capture hangs off the
// write handlers and never fails a request.
package api
