package cmd

import "github.com/opmodel/strata/internal/cmdtypes"

// ExitCodeName returns the name of the exit code.
func ExitCodeName(code int) string {
	switch code {
	case cmdtypes.ExitSuccess:
		return "Success"
	case cmdtypes.ExitGeneralError:
		return "General Error"
	case cmdtypes.ExitSchemaError:
		return "Schema Error"
	case cmdtypes.ExitGraphError:
		return "Graph Error"
	case cmdtypes.ExitIntegrityError:
		return "Integrity Mismatch"
	case cmdtypes.ExitNotFound:
		return "Not Found"
	case cmdtypes.ExitBuildError:
		return "Build Failure"
	case cmdtypes.ExitCacheCorruption:
		return "Cache Corruption"
	default:
		return "Unknown"
	}
}
