// Package middleware exposes net/http adapters over the engine's request
// verification and guard evaluation.
//
// # Guards
//
//   - [Authenticate] reads the Authorization header, verifies the access
//     token, and injects the resulting [goidentity.RequestUser] into the
//     request context.
//   - [RequireGuard] layers a role/permission guard on top of an
//     authenticated request.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into engine calls. It makes no
// authentication or authorization decisions itself; everything is delegated
// to Engine.Verify and Engine.Authorize.
package middleware
