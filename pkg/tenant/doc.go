// Package tenant implements the multi-tenant directory: user profiles,
// organizations, and per-organization usage ledgers.
//
// The package owns two invariants the rest of the system depends on:
//
//   - A principal owns at most one organization. The user profile's primary
//     key is the principal id, and onboarding commits the organization, the
//     owner profile, and a zeroed usage ledger in a single transaction keyed
//     on that id.
//
//   - The usage ledger never exceeds the organization's effective monthly
//     limit. The ledger is only ever advanced through a conditional increment
//     inside the same transaction that records the corresponding report (see
//     pkg/reports).
package tenant
