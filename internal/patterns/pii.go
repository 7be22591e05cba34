package patterns

import "regexp"

// Canonical sensitive-data pattern identifiers.
const (
	PIISSN                 = "ssn"
	PIICreditCard          = "credit_card"
	PIIEmail               = "email"
	PIIPhone               = "phone"
	PIIIPv4                = "ipv4"
	PIIIPv6                = "ipv6"
	PIIAPIKey              = "api_key"
	PIIBitcoinAddress      = "bitcoin_address"
	PIIEthereumAddress     = "ethereum_address"
	PIIMACAddress          = "mac_address"
	PIIDriversLicense      = "drivers_license"
	PIIPassport            = "passport"
	PIIMedicalRecordNumber = "medical_record_number"
	PIIBankAccount         = "bank_account"
	PIIRoutingNumber       = "routing_number"
	PIIITIN                = "itin"
	PIIDateOfBirth         = "date_of_birth"
)

// PIIPattern is one sensitive-data pattern together with its handling policy.
// Regexp is nil until the registry compiles the definition.
type PIIPattern struct {
	ID                 string
	Name               string
	Expr               string
	Regexp             *regexp.Regexp
	Severity           Severity
	Strategy           RedactionStrategy
	RequiresValidation bool
	ContextKeywords    []string
	MinSet             Set
}

// piiDefinitions returns every known sensitive-data pattern in declaration
// order. MinSet is the smallest pattern set that enables the pattern.
func piiDefinitions() []PIIPattern {
	return []PIIPattern{
		{
			ID:                 PIISSN,
			Name:               "Social Security Number",
			Expr:               `\b\d{3}-?\d{2}-?\d{4}\b`,
			Severity:           SeverityCritical,
			Strategy:           RedactFull,
			RequiresValidation: true,
			ContextKeywords:    []string{"ssn", "social"},
			MinSet:             SetStrict,
		},
		{
			ID:                 PIICreditCard,
			Name:               "Credit Card",
			Expr:               `\b(?:4\d{3}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}|5[1-5]\d{2}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}|3[47]\d{2}[\s-]?\d{6}[\s-]?\d{5}|6(?:011|5\d{2})[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4})\b`,
			Severity:           SeverityCritical,
			Strategy:           RedactPartialMask,
			RequiresValidation: true,
			ContextKeywords:    []string{"card", "payment"},
			MinSet:             SetStrict,
		},
		{
			ID:              PIIEmail,
			Name:            "Email Address",
			Expr:            `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`,
			Severity:        SeverityMedium,
			Strategy:        RedactHash,
			ContextKeywords: []string{"email", "contact"},
			MinSet:          SetStandard,
		},
		{
			ID:              PIIPhone,
			Name:            "Phone Number",
			Expr:            `\b(?:\+?1[-.\s]?)?\(?([0-9]{3})\)?[-.\s]?([0-9]{3})[-.\s]?([0-9]{4})\b`,
			Severity:        SeverityMedium,
			Strategy:        RedactPartialMask,
			ContextKeywords: []string{"phone", "call"},
			MinSet:          SetStandard,
		},
		{
			ID:       PIIIPv4,
			Name:     "IPv4 Address",
			Expr:     `\b(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\b`,
			Severity: SeverityLow,
			Strategy: RedactHash,
			MinSet:   SetStandard,
		},
		{
			ID:       PIIIPv6,
			Name:     "IPv6 Address",
			Expr:     `\b(?:[0-9a-fA-F]{1,4}:){7}[0-9a-fA-F]{1,4}\b`,
			Severity: SeverityLow,
			Strategy: RedactHash,
			MinSet:   SetRelaxed,
		},
		{
			ID:       PIIAPIKey,
			Name:     "API Key",
			Expr:     `\b(?:AKIA[0-9A-Z]{16}|ghp_[a-zA-Z0-9]{36}|sk_live_[a-zA-Z0-9]{24})\b`,
			Severity: SeverityHigh,
			Strategy: RedactFull,
			MinSet:   SetStrict,
		},
		{
			ID:       PIIBitcoinAddress,
			Name:     "Bitcoin Address",
			Expr:     `\b(?:bc1|[13])[a-zA-HJ-NP-Z0-9]{25,62}\b`,
			Severity: SeverityHigh,
			Strategy: RedactHash,
			MinSet:   SetStandard,
		},
		{
			ID:       PIIEthereumAddress,
			Name:     "Ethereum Address",
			Expr:     `\b0x[a-fA-F0-9]{40}\b`,
			Severity: SeverityHigh,
			Strategy: RedactHash,
			MinSet:   SetStandard,
		},
		{
			ID:       PIIMACAddress,
			Name:     "MAC Address",
			Expr:     `\b(?:[0-9A-Fa-f]{2}[:-]){5}(?:[0-9A-Fa-f]{2})\b`,
			Severity: SeverityLow,
			Strategy: RedactHash,
			MinSet:   SetRelaxed,
		},
		{
			ID:       PIIDriversLicense,
			Name:     "Driver's License",
			Expr:     `\b[A-Z][0-9]{7}\b`,
			Severity: SeverityCritical,
			Strategy: RedactFull,
			MinSet:   SetStandard,
		},
		{
			ID:       PIIPassport,
			Name:     "Passport Number",
			Expr:     `\b[A-Z]{1,2}[0-9]{6,9}\b`,
			Severity: SeverityCritical,
			Strategy: RedactFull,
			MinSet:   SetStrict,
		},
		{
			ID:       PIIMedicalRecordNumber,
			Name:     "Medical Record Number",
			Expr:     `\bMRN[:-]?\s*[0-9]{6,10}\b`,
			Severity: SeverityCritical,
			Strategy: RedactFull,
			MinSet:   SetStrict,
		},
		{
			ID:       PIIBankAccount,
			Name:     "Bank Account",
			Expr:     `\b[0-9]{8,17}\b`,
			Severity: SeverityCritical,
			Strategy: RedactPartialMask,
			MinSet:   SetRelaxed,
		},
		{
			ID:       PIIRoutingNumber,
			Name:     "Routing Number",
			Expr:     `\b[0-9]{9}\b`,
			Severity: SeverityHigh,
			Strategy: RedactPartialMask,
			MinSet:   SetRelaxed,
		},
		{
			ID:       PIIITIN,
			Name:     "ITIN",
			Expr:     `\b9\d{2}-?\d{2}-?\d{4}\b`,
			Severity: SeverityCritical,
			Strategy: RedactFull,
			MinSet:   SetStandard,
		},
		{
			ID:       PIIDateOfBirth,
			Name:     "Date of Birth",
			Expr:     `\b(?:0[1-9]|1[0-2])[-/](?:0[1-9]|[12][0-9]|3[01])[-/](?:19|20)\d{2}\b`,
			Severity: SeverityHigh,
			Strategy: RedactFull,
			MinSet:   SetStandard,
		},
	}
}
