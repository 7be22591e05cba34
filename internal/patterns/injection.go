package patterns

import "regexp"

// Canonical injection technique identifiers.
const (
	InjIgnorePrevious     = "ignore_previous_instructions"
	InjNewInstruction     = "new_instruction_injection"
	InjSystemRole         = "system_role_manipulation"
	InjDirectExtraction   = "direct_prompt_extraction"
	InjIndirectExtraction = "indirect_prompt_extraction"
	InjRoleplayJailbreak  = "roleplay_jailbreak"
	InjDANVariant         = "dan_variant"
	InjDelimiterInjection = "delimiter_injection"
	InjNestedPrompt       = "nested_prompt"
	InjEncodedInstruction = "encoded_instruction"
	InjCommandInjection   = "command_injection"
	InjTemplateInjection  = "template_injection"
	InjDataExfiltration   = "data_exfiltration"
	InjMemoryStateAccess  = "memory_state_access"
)

// InjectionPattern is one injection technique signature. BaseConfidence is
// the starting score before context adjustment; Regexp is nil until the
// registry compiles the definition.
type InjectionPattern struct {
	ID             string
	Name           string
	Expr           string
	Regexp         *regexp.Regexp
	BaseConfidence float64
	MinSet         Set
}

// injectionDefinitions returns every known technique signature in
// declaration order. MinSet is the smallest pattern set that enables the
// signature.
func injectionDefinitions() []InjectionPattern {
	return []InjectionPattern{
		{
			ID:             InjIgnorePrevious,
			Name:           "Ignore Previous Instructions",
			Expr:           `(?i)(ignore|disregard|forget|override)\s+((all|everything|the|my|your)\s+)?(((previous|above|prior|earlier|below)(\s+(and|or)\s+(above|below|previous|earlier))?\s*(instructions?|prompts?|directions?|commands?|programming|guidelines?)?)|(instructions?|prompts?|directions?|commands?|programming|guidelines?))`,
			BaseConfidence: 0.9,
			MinSet:         SetStrict,
		},
		{
			ID:             InjNewInstruction,
			Name:           "New Instruction Injection",
			Expr:           `(?i)(now|from\s+now\s+on|henceforth|starting\s+now),?\s+(you\s+are|act\s+as|behave\s+like|your\s+role\s+is|your\s+task\s+is)`,
			BaseConfidence: 0.9,
			MinSet:         SetStrict,
		},
		{
			ID:             InjSystemRole,
			Name:           "System Role Manipulation",
			Expr:           `(?i)(pretend\s+you\s+are|act\s+as(\s+if\s+you're)?|simulate\s+being|imagine\s+you\s+are|you\s+are\s+now|you're\s+now)\s+(an?\s+)?(unrestricted|unfiltered|(unrestricted\s+)?(assistant|AI|bot|system|chatbot|agent|human|person))`,
			BaseConfidence: 0.9,
			MinSet:         SetStrict,
		},
		{
			ID:             InjDirectExtraction,
			Name:           "Direct Prompt Extraction",
			Expr:           `(?i)(show|reveal|display|print|output|tell\s+me|what\s+is|what's)\s+(me\s+)?(your|the)?\s*(initial\s+|system\s+)?(prompt|instructions?|directives?|configuration|guidelines?)`,
			BaseConfidence: 0.75,
			MinSet:         SetStandard,
		},
		{
			ID:             InjIndirectExtraction,
			Name:           "Indirect Prompt Extraction",
			Expr:           `(?i)(tell\s+me|explain|describe|what\s+are)\s+(what\s+you\s+were\s+told|your\s+programming|your\s+rules|your\s+guidelines|your\s+constraints|your\s+limitations|your\s+capabilities)`,
			BaseConfidence: 0.75,
			MinSet:         SetStandard,
		},
		{
			ID:             InjRoleplayJailbreak,
			Name:           "Role-Playing Jailbreak",
			Expr:           `(?i)(let's\s+play|imagine|hypothetically|in\s+a\s+hypothetical\s+scenario|for\s+(educational|research|academic)\s+purposes)\s+(a\s+)?(game|scenario|simulation|exercise)`,
			BaseConfidence: 0.6,
			MinSet:         SetRelaxed,
		},
		{
			ID:             InjDANVariant,
			Name:           "DAN Variant",
			Expr:           `(?:^|\s|\W)(DAN)(?:\s|\W|$)|(?i)do\s+anything\s+now|no\s+restrictions?|unrestricted\s+mode|jailbreak\s+mode|developer\s+mode|god\s+mode|admin\s+mode`,
			BaseConfidence: 0.9,
			MinSet:         SetStrict,
		},
		{
			ID:             InjDelimiterInjection,
			Name:           "Delimiter Injection",
			Expr:           `(?i)(</?system>|</?prompt>|</?context>|<!--\s*end|--!>|:::\s*end\s*:::|\[END\]|\{/?prompt\})`,
			BaseConfidence: 0.75,
			MinSet:         SetStandard,
		},
		{
			ID:             InjNestedPrompt,
			Name:           "Nested Prompt",
			Expr:           "(?i)(respond\\s+to|execute|process|evaluate):\\s*['\"`].*(?:ignore|override|bypass)",
			BaseConfidence: 0.6,
			MinSet:         SetRelaxed,
		},
		{
			ID:             InjEncodedInstruction,
			Name:           "Encoded Instruction",
			Expr:           `(?i)(decode|decrypt|deobfuscate|translate|convert)(\s+\w+)*\s+(and\s+)?(then\s+)?(execute|run|process|evaluate)`,
			BaseConfidence: 0.6,
			MinSet:         SetRelaxed,
		},
		{
			ID:             InjCommandInjection,
			Name:           "Command Injection",
			Expr:           "\\$\\([^)]*\\)|`.+`|&&|\\|\\||<\\(|>\\(|;\\s*(?:rm|curl|wget|nc|bash|sh|python)",
			BaseConfidence: 0.75,
			MinSet:         SetStandard,
		},
		{
			ID:             InjTemplateInjection,
			Name:           "Template Injection",
			Expr:           `\{\{[^}]*\}\}|\{%[^%]*%\}|\$\{[^}]+\}|<%[^%]*%>`,
			BaseConfidence: 0.75,
			MinSet:         SetStandard,
		},
		{
			ID:             InjDataExfiltration,
			Name:           "Data Exfiltration",
			Expr:           `(?i)(send|email|post|upload|transmit|export)\s+(all\s+)?(data|conversation|history|logs|messages)|(https?://|mailto:)`,
			BaseConfidence: 0.75,
			MinSet:         SetStandard,
		},
		{
			ID:             InjMemoryStateAccess,
			Name:           "Memory/State Access",
			Expr:           `(?i)(show|list|display|dump|access)\s+(all\s+)?(memory|cache|history|state|context|buffer|previous\s+conversations?)`,
			BaseConfidence: 0.6,
			MinSet:         SetRelaxed,
		},
	}
}
