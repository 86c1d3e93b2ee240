package entity

// Target types known to the effect synchronizer.
const (
	TargetTypeCompany = "company"
)

// Decision values for ConsentRecord.
const (
	DecisionPending  = "PENDING"
	DecisionApproved = "APPROVED"
	DecisionRejected = "REJECTED"
)

// Status constants for Company.
const (
	CompanyStatusPending    = "PENDING_REGISTRATION"
	CompanyStatusActive     = "ACTIVE"
	CompanyStatusSuspended  = "SUSPENDED"
	CompanyStatusDissolving = "DISSOLVING"
	CompanyStatusDissolved  = "DISSOLVED"
)

// Status constants for RegistryApplication.
const (
	ApplicationStatusOpen      = "OPEN"
	ApplicationStatusApproved  = "APPROVED"
	ApplicationStatusRejected  = "REJECTED"
	ApplicationStatusWithdrawn = "WITHDRAWN"
)

// Well-known role keys. Platform services may pass additional roles; the
// engine compares them as opaque strings.
const (
	RoleRegistryAuthorityLegal   = "REGISTRY_AUTHORITY_LEGAL"
	RoleRegistryAuthorityFinance = "REGISTRY_AUTHORITY_FINANCE"
	RoleRegistryClerk            = "REGISTRY_CLERK"
	RoleNotary                   = "NOTARY"
)

// Approver kinds used by consent rules.
const (
	ApproverKindShareholder = "shareholder"
	ApproverKindNewOfficer  = "new_officer"
	ApproverKindManager     = "manager"
)
