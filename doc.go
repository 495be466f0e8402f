// Package identity provides multi-provider identity resolution: credential
// verification, cross-provider account linking, role derivation, and session
// issuance, with HTTP adapters for request-time resolution.
//
// Provider claims:
//   - Every auth method (third-party JWTs, custodial wallet tokens, wallet
//     signatures, magic links) reduces to a ProviderClaim before touching
//     storage, so the linking logic never knows which provider it serves.
//   - The Resolver matches claims to users by email or wallet address,
//     merging additively: a claim only ever fills fields the user record is
//     missing, never overwrites them. A claim matching two different users
//     is rejected as a conflict with no mutation.
//
// Sessions and roles:
//   - TokenService issues signed HS256 session artifacts that carry identity
//     only. Roles are re-derived through the RoleResolver on every read, so
//     a role change takes effect on the subject's next request without
//     invalidating their session.
//   - RequestContext is the single per-request entry point: it tries session
//     cookies, the Authorization bearer header, and a provider fallback
//     cookie in order, yielding an AuthContext (possibly anonymous) that
//     handlers consult through HasAccess.
package identity
