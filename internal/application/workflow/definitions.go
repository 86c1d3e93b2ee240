package workflow

import (
	"context"

	"github.com/opencorp/regflow/internal/application/service"
	"github.com/opencorp/regflow/internal/domain/entity"
)

// Builtins returns the declarative graphs for the registry's business
// processes. All nine processes share the one engine; only these graphs
// differ.
func Builtins() []*entity.WorkflowDefinition {
	return []*entity.WorkflowDefinition{
		companyRegistration(),
		companyDeregistration(),
		companyRenaming(),
		companyCapitalChange(),
		companyOfficerChange(),
		companyManagementChange(),
		companyEquityTransfer(),
		companyAddressChange(),
		companyScopeChange(),
	}
}

// RegisterBuiltins upserts every built-in definition. Called once at startup.
func RegisterBuiltins(ctx context.Context, registry service.DefinitionRegistry) error {
	for _, def := range Builtins() {
		if _, err := registry.EnsureDefinition(ctx, def); err != nil {
			return err
		}
	}
	return nil
}

func companyRegistration() *entity.WorkflowDefinition {
	return &entity.WorkflowDefinition{
		Code:        "company.registration",
		Name:        "Company registration",
		Description: "Incorporation of a new company",
		Category:    "incorporation",
		States: []entity.State{
			{
				Key: "draft", Label: "Draft",
				Actions: []entity.Action{
					// No roles: only the applicant may submit, checked by the caller.
					{Key: "submit", Label: "Submit for review", To: "under_review"},
					{Key: "withdraw", Label: "Withdraw", To: "withdrawn"},
				},
			},
			{
				Key: "under_review", Label: "Under review",
				Actions: []entity.Action{
					{Key: "approve", Label: "Approve registration", To: "approved", Roles: []string{entity.RoleRegistryAuthorityLegal}},
					{Key: "reject", Label: "Reject registration", To: "rejected", Roles: []string{entity.RoleRegistryAuthorityLegal}},
					{Key: "request_changes", Label: "Request changes", To: "draft", Roles: []string{entity.RoleRegistryAuthorityLegal, entity.RoleRegistryClerk}},
				},
			},
			{
				Key: "approved", Label: "Approved", Final: true,
				Business: &entity.BusinessEffect{EntityStatus: entity.CompanyStatusActive, ApplicationStatus: entity.ApplicationStatusApproved},
			},
			{
				Key: "rejected", Label: "Rejected", Final: true,
				Business: &entity.BusinessEffect{ApplicationStatus: entity.ApplicationStatusRejected},
			},
			{
				Key: "withdrawn", Label: "Withdrawn", Final: true,
				Business: &entity.BusinessEffect{ApplicationStatus: entity.ApplicationStatusWithdrawn},
			},
		},
	}
}

func companyDeregistration() *entity.WorkflowDefinition {
	twoThirdsShareholders := &entity.ConsentRule{
		Mode:         entity.ConsentModeWeighted,
		ApproverKind: entity.ApproverKindShareholder,
		ThresholdNum: 2, ThresholdDen: 3,
	}
	return &entity.WorkflowDefinition{
		Code:        "company.deregistration",
		Name:        "Company deregistration",
		Description: "Voluntary dissolution of a company",
		Category:    "dissolution",
		States: []entity.State{
			{
				Key: "draft", Label: "Draft",
				Actions: []entity.Action{
					{Key: "submit", Label: "Submit for review", To: "under_review", RequiresConsent: twoThirdsShareholders},
					{Key: "withdraw", Label: "Withdraw", To: "withdrawn"},
				},
			},
			{
				Key: "under_review", Label: "Under review",
				Business: &entity.BusinessEffect{EntityStatus: entity.CompanyStatusDissolving},
				Actions: []entity.Action{
					{Key: "approve", Label: "Approve dissolution", To: "dissolved", Roles: []string{entity.RoleRegistryAuthorityLegal}},
					{Key: "reject", Label: "Reject dissolution", To: "rejected", Roles: []string{entity.RoleRegistryAuthorityLegal}},
				},
			},
			{
				Key: "dissolved", Label: "Dissolved", Final: true,
				Business: &entity.BusinessEffect{EntityStatus: entity.CompanyStatusDissolved, ApplicationStatus: entity.ApplicationStatusApproved},
			},
			{
				Key: "rejected", Label: "Rejected", Final: true,
				Business: &entity.BusinessEffect{EntityStatus: entity.CompanyStatusActive, ApplicationStatus: entity.ApplicationStatusRejected},
			},
			{
				Key: "withdrawn", Label: "Withdrawn", Final: true,
				Business: &entity.BusinessEffect{ApplicationStatus: entity.ApplicationStatusWithdrawn},
			},
		},
	}
}

func companyRenaming() *entity.WorkflowDefinition {
	return &entity.WorkflowDefinition{
		Code:        "company.renaming",
		Name:        "Company renaming",
		Description: "Change of registered company name",
		Category:    "amendment",
		States: []entity.State{
			{
				Key: "draft", Label: "Draft",
				Actions: []entity.Action{
					{Key: "submit", Label: "Submit for review", To: "name_check"},
					{Key: "withdraw", Label: "Withdraw", To: "withdrawn"},
				},
			},
			{
				Key: "name_check", Label: "Name availability check",
				Actions: []entity.Action{
					{Key: "clear", Label: "Name cleared", To: "under_review", Roles: []string{entity.RoleRegistryClerk}},
					{Key: "reject", Label: "Name unavailable", To: "rejected", Roles: []string{entity.RoleRegistryClerk}},
				},
			},
			{
				Key: "under_review", Label: "Under review",
				Actions: []entity.Action{
					{Key: "approve", Label: "Approve renaming", To: "approved", Roles: []string{entity.RoleRegistryAuthorityLegal}},
					{Key: "reject", Label: "Reject renaming", To: "rejected", Roles: []string{entity.RoleRegistryAuthorityLegal}},
				},
			},
			{
				Key: "approved", Label: "Approved", Final: true,
				Business: &entity.BusinessEffect{
					ApplicationStatus: entity.ApplicationStatusApproved,
					Fields:            map[string]string{"name_change": "confirmed"},
				},
			},
			{
				Key: "rejected", Label: "Rejected", Final: true,
				Business: &entity.BusinessEffect{ApplicationStatus: entity.ApplicationStatusRejected},
			},
			{
				Key: "withdrawn", Label: "Withdrawn", Final: true,
				Business: &entity.BusinessEffect{ApplicationStatus: entity.ApplicationStatusWithdrawn},
			},
		},
	}
}

func companyCapitalChange() *entity.WorkflowDefinition {
	twoThirdsShareholders := &entity.ConsentRule{
		Mode:         entity.ConsentModeWeighted,
		ApproverKind: entity.ApproverKindShareholder,
		ThresholdNum: 2, ThresholdDen: 3,
	}
	return &entity.WorkflowDefinition{
		Code:        "company.capital_change",
		Name:        "Capital change",
		Description: "Increase or reduction of registered capital",
		Category:    "amendment",
		States: []entity.State{
			{
				Key: "draft", Label: "Draft",
				Actions: []entity.Action{
					{Key: "submit", Label: "Submit for review", To: "under_review", RequiresConsent: twoThirdsShareholders},
					{Key: "withdraw", Label: "Withdraw", To: "withdrawn"},
				},
			},
			{
				Key: "under_review", Label: "Under review",
				Actions: []entity.Action{
					{Key: "approve", Label: "Approve capital change", To: "approved", Roles: []string{entity.RoleRegistryAuthorityFinance}},
					{Key: "reject", Label: "Reject capital change", To: "rejected", Roles: []string{entity.RoleRegistryAuthorityFinance}},
					{Key: "request_changes", Label: "Request changes", To: "draft", Roles: []string{entity.RoleRegistryAuthorityFinance}},
				},
			},
			{
				Key: "approved", Label: "Approved", Final: true,
				Business: &entity.BusinessEffect{ApplicationStatus: entity.ApplicationStatusApproved},
			},
			{
				Key: "rejected", Label: "Rejected", Final: true,
				Business: &entity.BusinessEffect{ApplicationStatus: entity.ApplicationStatusRejected},
			},
			{
				Key: "withdrawn", Label: "Withdrawn", Final: true,
				Business: &entity.BusinessEffect{ApplicationStatus: entity.ApplicationStatusWithdrawn},
			},
		},
	}
}

func companyOfficerChange() *entity.WorkflowDefinition {
	allNewOfficers := &entity.ConsentRule{
		Mode:         entity.ConsentModeUnanimous,
		ApproverKind: entity.ApproverKindNewOfficer,
	}
	return &entity.WorkflowDefinition{
		Code:        "company.officer_change",
		Name:        "Officer change",
		Description: "Appointment or removal of company officers",
		Category:    "amendment",
		States: []entity.State{
			{
				Key: "draft", Label: "Draft",
				Actions: []entity.Action{
					{Key: "submit", Label: "Submit for review", To: "under_review"},
					{Key: "withdraw", Label: "Withdraw", To: "withdrawn"},
				},
			},
			{
				Key: "under_review", Label: "Under review",
				Actions: []entity.Action{
					// Every incoming officer must accept the appointment.
					{Key: "approve", Label: "Approve officer change", To: "approved", Roles: []string{entity.RoleRegistryAuthorityLegal}, RequiresConsent: allNewOfficers},
					{Key: "reject", Label: "Reject officer change", To: "rejected", Roles: []string{entity.RoleRegistryAuthorityLegal}},
				},
			},
			{
				Key: "approved", Label: "Approved", Final: true,
				Business: &entity.BusinessEffect{ApplicationStatus: entity.ApplicationStatusApproved},
			},
			{
				Key: "rejected", Label: "Rejected", Final: true,
				Business: &entity.BusinessEffect{ApplicationStatus: entity.ApplicationStatusRejected},
			},
			{
				Key: "withdrawn", Label: "Withdrawn", Final: true,
				Business: &entity.BusinessEffect{ApplicationStatus: entity.ApplicationStatusWithdrawn},
			},
		},
	}
}

func companyManagementChange() *entity.WorkflowDefinition {
	allManagers := &entity.ConsentRule{
		Mode:         entity.ConsentModeUnanimous,
		ApproverKind: entity.ApproverKindManager,
	}
	return &entity.WorkflowDefinition{
		Code:        "company.management_change",
		Name:        "Management change",
		Description: "Change of the managing body",
		Category:    "amendment",
		States: []entity.State{
			{
				Key: "draft", Label: "Draft",
				Actions: []entity.Action{
					{Key: "submit", Label: "Submit for review", To: "under_review", RequiresConsent: allManagers},
					{Key: "withdraw", Label: "Withdraw", To: "withdrawn"},
				},
			},
			{
				Key: "under_review", Label: "Under review",
				Actions: []entity.Action{
					{Key: "approve", Label: "Approve management change", To: "approved", Roles: []string{entity.RoleRegistryAuthorityLegal}},
					{Key: "reject", Label: "Reject management change", To: "rejected", Roles: []string{entity.RoleRegistryAuthorityLegal}},
				},
			},
			{
				Key: "approved", Label: "Approved", Final: true,
				Business: &entity.BusinessEffect{ApplicationStatus: entity.ApplicationStatusApproved},
			},
			{
				Key: "rejected", Label: "Rejected", Final: true,
				Business: &entity.BusinessEffect{ApplicationStatus: entity.ApplicationStatusRejected},
			},
			{
				Key: "withdrawn", Label: "Withdrawn", Final: true,
				Business: &entity.BusinessEffect{ApplicationStatus: entity.ApplicationStatusWithdrawn},
			},
		},
	}
}

func companyEquityTransfer() *entity.WorkflowDefinition {
	// A transfer needs 2/3 of voting weight and any single shareholder
	// rejection vetoes it.
	shareholderQuorum := &entity.ConsentRule{
		Mode:         entity.ConsentModeWeighted,
		ApproverKind: entity.ApproverKindShareholder,
		ThresholdNum: 2, ThresholdDen: 3,
		Veto: true,
	}
	return &entity.WorkflowDefinition{
		Code:        "company.equity_transfer",
		Name:        "Equity transfer",
		Description: "Transfer of shares between parties",
		Category:    "equity",
		States: []entity.State{
			{
				Key: "draft", Label: "Draft",
				Actions: []entity.Action{
					{Key: "submit", Label: "Submit for certification", To: "certification"},
					{Key: "withdraw", Label: "Withdraw", To: "withdrawn"},
				},
			},
			{
				Key: "certification", Label: "Notarial certification",
				Actions: []entity.Action{
					{Key: "certify", Label: "Certify transfer deed", To: "under_review", Roles: []string{entity.RoleNotary}},
					{Key: "reject", Label: "Refuse certification", To: "rejected", Roles: []string{entity.RoleNotary}},
				},
			},
			{
				Key: "under_review", Label: "Under review",
				Actions: []entity.Action{
					{Key: "approve", Label: "Approve transfer", To: "approved", Roles: []string{entity.RoleRegistryAuthorityLegal}, RequiresConsent: shareholderQuorum},
					{Key: "reject", Label: "Reject transfer", To: "rejected", Roles: []string{entity.RoleRegistryAuthorityLegal}},
				},
			},
			{
				Key: "approved", Label: "Approved", Final: true,
				Business: &entity.BusinessEffect{ApplicationStatus: entity.ApplicationStatusApproved},
			},
			{
				Key: "rejected", Label: "Rejected", Final: true,
				Business: &entity.BusinessEffect{ApplicationStatus: entity.ApplicationStatusRejected},
			},
			{
				Key: "withdrawn", Label: "Withdrawn", Final: true,
				Business: &entity.BusinessEffect{ApplicationStatus: entity.ApplicationStatusWithdrawn},
			},
		},
	}
}

func companyAddressChange() *entity.WorkflowDefinition {
	return &entity.WorkflowDefinition{
		Code:        "company.address_change",
		Name:        "Address change",
		Description: "Change of registered office address",
		Category:    "amendment",
		States: []entity.State{
			{
				Key: "draft", Label: "Draft",
				Actions: []entity.Action{
					{Key: "submit", Label: "Submit for review", To: "under_review"},
					{Key: "withdraw", Label: "Withdraw", To: "withdrawn"},
				},
			},
			{
				Key: "under_review", Label: "Under review",
				Actions: []entity.Action{
					{Key: "approve", Label: "Approve address change", To: "approved", Roles: []string{entity.RoleRegistryClerk, entity.RoleRegistryAuthorityLegal}},
					{Key: "reject", Label: "Reject address change", To: "rejected", Roles: []string{entity.RoleRegistryClerk, entity.RoleRegistryAuthorityLegal}},
				},
			},
			{
				Key: "approved", Label: "Approved", Final: true,
				Business: &entity.BusinessEffect{ApplicationStatus: entity.ApplicationStatusApproved},
			},
			{
				Key: "rejected", Label: "Rejected", Final: true,
				Business: &entity.BusinessEffect{ApplicationStatus: entity.ApplicationStatusRejected},
			},
			{
				Key: "withdrawn", Label: "Withdrawn", Final: true,
				Business: &entity.BusinessEffect{ApplicationStatus: entity.ApplicationStatusWithdrawn},
			},
		},
	}
}

func companyScopeChange() *entity.WorkflowDefinition {
	return &entity.WorkflowDefinition{
		Code:        "company.scope_change",
		Name:        "Business scope change",
		Description: "Change of declared business activities",
		Category:    "amendment",
		States: []entity.State{
			{
				Key: "draft", Label: "Draft",
				Actions: []entity.Action{
					{Key: "submit", Label: "Submit for review", To: "under_review"},
					{Key: "withdraw", Label: "Withdraw", To: "withdrawn"},
				},
			},
			{
				Key: "under_review", Label: "Under review",
				Actions: []entity.Action{
					{Key: "approve", Label: "Approve scope change", To: "approved", Roles: []string{entity.RoleRegistryAuthorityLegal}},
					{Key: "reject", Label: "Reject scope change", To: "rejected", Roles: []string{entity.RoleRegistryAuthorityLegal}},
					{Key: "request_changes", Label: "Request changes", To: "draft", Roles: []string{entity.RoleRegistryAuthorityLegal}},
				},
			},
			{
				Key: "approved", Label: "Approved", Final: true,
				Business: &entity.BusinessEffect{ApplicationStatus: entity.ApplicationStatusApproved},
			},
			{
				Key: "rejected", Label: "Rejected", Final: true,
				Business: &entity.BusinessEffect{ApplicationStatus: entity.ApplicationStatusRejected},
			},
			{
				Key: "withdrawn", Label: "Withdrawn", Final: true,
				Business: &entity.BusinessEffect{ApplicationStatus: entity.ApplicationStatusWithdrawn},
			},
		},
	}
}
