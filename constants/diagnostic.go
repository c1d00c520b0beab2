package constants

// DiagnosticKind is the error taxonomy carried in a run record.
type DiagnosticKind string

const (
	KindRecognitionGap       DiagnosticKind = "RecognitionGap"
	KindExtractionIncomplete DiagnosticKind = "ExtractionIncomplete"
	KindResolutionAmbiguous  DiagnosticKind = "ResolutionAmbiguous"
	KindReconciliationFailed DiagnosticKind = "ReconciliationFailed"
	KindGenerationBlocked    DiagnosticKind = "GenerationBlocked"
)

// Severity of a diagnostic. Only the orchestrator turns an error into an abort.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// UnresolvedMarker fills attribution fields that could not be resolved.
const UnresolvedMarker = "UNRESOLVED"
