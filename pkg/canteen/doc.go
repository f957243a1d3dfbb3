// Package canteen is the canteen rental client. It configures one
// dualstore.Client per entity (stalls, tenants, contracts, payments) over a
// shared local cache and adds the operations that span them: settling a
// payment, generating a month's payments from the active contracts and the
// dashboard summary.
//
// Payment status (pending, overdue, paid) is derived on every read by
// PaymentStatus and never stored.
package canteen
