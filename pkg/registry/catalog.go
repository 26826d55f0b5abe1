package registry

import (
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/scopeflow/scopeflow/pkg/domain"
)

// Stage IDs of the default scoping catalog. They double as the top-level
// payload keys each stage owns.
const (
	StageOrganization   = "organization"
	StageInfrastructure = "infrastructure"
	StageVendors        = "vendors"
	StageUseCases       = "use_cases"
	StageCompliance     = "compliance"
	StageReview         = "review"
)

// organizationData is the subtree owned by the organization stage.
type organizationData struct {
	Name     string `mapstructure:"name"`
	Industry string `mapstructure:"industry"`
	Size     string `mapstructure:"size"`
}

type infrastructureData struct {
	SiteCount     int      `mapstructure:"site_count"`
	WiredVendors  []string `mapstructure:"wired_vendors"`
	WirelessInUse bool     `mapstructure:"wireless_in_use"`
}

type vendorsData struct {
	Selected []string `mapstructure:"selected"`
}

type useCasesData struct {
	Selected []string `mapstructure:"selected"`
}

type reviewData struct {
	Confirmed bool `mapstructure:"confirmed"`
}

// decodeStage decodes the subtree owned by a stage into a typed struct.
// A missing subtree decodes into the zero value, which validators treat
// as "no data yet".
func decodeStage(payload domain.Payload, stageID string, out any) error {
	sub := payload.Stage(stageID)
	if sub == nil {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(sub)
}

// DefaultCatalog builds the standard scoping workflow registry: the
// ordered stages of a network-access-control scoping engagement with
// their dependency gates and validators.
func DefaultCatalog() (*Registry, error) {
	return New(defaultStages(), defaultValidators())
}

// DefaultCatalogWith builds the default catalog with a display overlay
// applied (titles, descriptions, required flags).
func DefaultCatalogWith(overlay Overlay) (*Registry, error) {
	stages, err := overlay.Apply(defaultStages())
	if err != nil {
		return nil, err
	}
	return New(stages, defaultValidators())
}

func defaultStages() []domain.StageDefinition {
	return []domain.StageDefinition{
		{
			ID:          StageOrganization,
			Title:       "Organization Profile",
			Description: "Who the engagement is for: organization name, industry, size.",
			Required:    true,
		},
		{
			ID:           StageInfrastructure,
			Title:        "Network Infrastructure",
			Description:  "Sites, switching and wireless landscape.",
			Required:     true,
			Dependencies: []string{StageOrganization},
		},
		{
			ID:           StageVendors,
			Title:        "Vendor Selection",
			Description:  "NAC vendors under evaluation.",
			Required:     true,
			Dependencies: []string{StageInfrastructure},
		},
		{
			ID:           StageUseCases,
			Title:        "Use Cases",
			Description:  "Access-control scenarios in scope.",
			Required:     true,
			Dependencies: []string{StageOrganization},
		},
		{
			ID:           StageCompliance,
			Title:        "Compliance",
			Description:  "Regulatory frameworks that apply, if any.",
			Required:     false,
			Dependencies: []string{StageOrganization},
		},
		{
			ID:           StageReview,
			Title:        "Review & Confirm",
			Description:  "Final review before handoff to analysis.",
			Required:     true,
			Dependencies: []string{StageInfrastructure, StageVendors, StageUseCases},
		},
	}
}

func defaultValidators() map[string]Validator {
	return map[string]Validator{
		StageOrganization:   validateOrganization,
		StageInfrastructure: validateInfrastructure,
		StageVendors:        validateVendors,
		StageUseCases:       validateUseCases,
		StageReview:         validateReview,
		// compliance is optional and has no validator: it never blocks
		// progress or completion.
	}
}

func validateOrganization(payload domain.Payload) domain.ValidationResult {
	var data organizationData
	if err := decodeStage(payload, StageOrganization, &data); err != nil {
		return domain.Invalid("organization data is malformed: " + err.Error())
	}
	if strings.TrimSpace(data.Name) == "" {
		return domain.Invalid("organization name is required")
	}
	if strings.TrimSpace(data.Industry) == "" {
		return domain.Invalid("industry is required")
	}
	return domain.ValidResult
}

func validateInfrastructure(payload domain.Payload) domain.ValidationResult {
	var data infrastructureData
	if err := decodeStage(payload, StageInfrastructure, &data); err != nil {
		return domain.Invalid("infrastructure data is malformed: " + err.Error())
	}
	if data.SiteCount <= 0 {
		return domain.Invalid("at least one site is required")
	}
	return domain.ValidResult
}

func validateVendors(payload domain.Payload) domain.ValidationResult {
	var data vendorsData
	if err := decodeStage(payload, StageVendors, &data); err != nil {
		return domain.Invalid("vendor data is malformed: " + err.Error())
	}
	if len(data.Selected) == 0 {
		return domain.Invalid("select at least one vendor")
	}
	return domain.ValidResult
}

func validateUseCases(payload domain.Payload) domain.ValidationResult {
	var data useCasesData
	if err := decodeStage(payload, StageUseCases, &data); err != nil {
		return domain.Invalid("use case data is malformed: " + err.Error())
	}
	if len(data.Selected) == 0 {
		return domain.Invalid("select at least one use case")
	}
	return domain.ValidResult
}

func validateReview(payload domain.Payload) domain.ValidationResult {
	var data reviewData
	if err := decodeStage(payload, StageReview, &data); err != nil {
		return domain.Invalid("review data is malformed: " + err.Error())
	}
	if !data.Confirmed {
		return domain.Invalid("review must be confirmed")
	}
	return domain.ValidResult
}
