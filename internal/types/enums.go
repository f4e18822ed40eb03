package types

// ErrorCode is a stable build diagnostic code surfaced to build-engine loggers.
type ErrorCode string

const (
	CodeMissingFile          ErrorCode = "KRB1001"
	CodeMalformedFile        ErrorCode = "KRB1002"
	CodeUnknownPolicyType    ErrorCode = "KRB2001"
	CodePolicyFailed         ErrorCode = "KRB2002"
	CodeVersionConflict      ErrorCode = "KRB3001"
	CodeDisallowedVersion    ErrorCode = "KRB3002"
	CodeFloatingVersion      ErrorCode = "KRB3003"
	CodeMissingVersionsGroup ErrorCode = "KRB3004"
	CodeVariableNotInLineup  ErrorCode = "KRB3005"
	CodeReadOnlyVariable     ErrorCode = "KRB3006"
	CodeRepositoryCycle      ErrorCode = "KRB4001"
	CodePatchRuleMissing     ErrorCode = "KRB4002"
	CodeNetworkTimeout       ErrorCode = "KRB5001"
	CodeNetworkFailure       ErrorCode = "KRB5002"
)

// LineupPrecedence decides which lineup wins when several lineups declare the
// same package for the same framework.
type LineupPrecedence string

const (
	PrecedenceLastWins  LineupPrecedence = "last-wins"
	PrecedenceFirstWins LineupPrecedence = "first-wins"
	PrecedenceStrict    LineupPrecedence = "strict"
)

type ChangeKind string

const (
	ChangeUpdateAttribute ChangeKind = "update-attribute"
	ChangeUpdateElement   ChangeKind = "update-element"
	ChangeAddAttribute    ChangeKind = "add-attribute"
)

type ManifestEditKind string

const (
	ManifestEditPackageVersion    ManifestEditKind = "package-version"
	ManifestEditDependencyVersion ManifestEditKind = "dependency-version"
)
