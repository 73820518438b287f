package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Config Errors (E100-E109)
	// ============================================

	"E100": {
		Category:   CategoryConfig,
		Message:    "Config file not found",
		Detail:     "No pushserve.json was found at the given path.",
		Suggestion: "Pass --config with the path to pushserve.json, or run without --config to use defaults.",
	},
	"E101": {
		Category: CategoryConfig,
		Message:  "Invalid config file",
		Detail:   "pushserve.json could not be parsed as JSON.",
	},
	"E102": {
		Category:   CategoryConfig,
		Message:    "Invalid duration",
		Detail:     "Durations are Go duration strings.",
		Suggestion: `Use a value such as "1s", "250ms" or "2m".`,
	},
	"E103": {
		Category:   CategoryConfig,
		Message:    "Invalid storage configuration",
		Detail:     "Exactly one of storage.root and storage.s3.bucket must be set.",
		Suggestion: `Set "storage": {"root": "public"} to serve a local directory.`,
	},
	"E104": {
		Category:   CategoryConfig,
		Message:    "Incomplete TLS configuration",
		Detail:     "server.certFile and server.keyFile must be set together.",
		Suggestion: "Set both files, or neither and enable server.h2c for cleartext HTTP/2.",
	},
	"E105": {
		Category: CategoryConfig,
		Message:  "Invalid asset name",
		Detail:   "Asset names are relative paths inside the storage root without '..' segments.",
	},
	"E106": {
		Category:   CategoryConfig,
		Message:    "Invalid log setting",
		Suggestion: `log.level is one of "debug", "info", "warn", "error"; log.format is "text" or "json".`,
	},
	"E107": {
		Category:   CategoryConfig,
		Message:    "No transport configured",
		Detail:     "HTTP/2 push requires TLS unless cleartext h2c is enabled.",
		Suggestion: "Set server.certFile and server.keyFile, or pass --h2c.",
	},

	// ============================================
	// Storage Errors (E120-E129)
	// ============================================

	"E120": {
		Category: CategoryStorage,
		Message:  "Asset manifest unreadable",
		Detail:   "The manifest named by assets.manifest could not be read or parsed.",
	},
	"E121": {
		Category: CategoryStorage,
		Message:  "Storage backend unavailable",
		Detail:   "The S3 client could not be configured.",
	},

	// ============================================
	// Server Errors (E140-E149)
	// ============================================

	"E140": {
		Category:   CategoryServer,
		Message:    "Listen failed",
		Detail:     "The server could not bind its address.",
		Suggestion: "Check that the port is free and the process may bind it.",
	},
	"E141": {
		Category: CategoryServer,
		Message:  "Certificate load failed",
		Detail:   "The TLS certificate or key could not be loaded.",
	},
	"E142": {
		Category: CategoryServer,
		Message:  "Server error",
	},

	// ============================================
	// CLI Errors (E160-E169)
	// ============================================

	"E160": {
		Category: CategoryCLI,
		Message:  "Invalid flag value",
	},
}

// GetAllCodes returns all registered error codes.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
