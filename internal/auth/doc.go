// Package auth implements bearer-token authentication and the access
// control model of the admin API.
//
// A request goes through three stages:
//
//   - Resolver turns "Authorization: Bearer <token>" into an Identity: the
//     token is verified by TokenService and the account is loaded from the
//     Store together with its group memberships.
//   - Check evaluates a global capability (router, user, department, mail
//     access) at viewer or editor level. The effective level is the highest
//     value among the account's groups.
//   - CheckRouterAccess evaluates the per-router viewer and editor ACLs.
//
// Admin accounts pass every check. Non-admin accounts without groups fail
// every check. Nothing is cached between requests, so membership and ACL
// changes apply to the next request.
package auth
