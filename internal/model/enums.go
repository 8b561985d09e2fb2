package model

// Role names carried by identities.
const (
	RolePortalAdmin = "Customer Portal Admin"
	RolePortalUser  = "Customer Portal User"
)

// SuperuserID is the built-in identity that is always treated as an admin.
const SuperuserID = "Administrator"

type RecordKind string

const (
	RecordKindProfile RecordKind = "profile"
	RecordKindUser    RecordKind = "user"
)

type Operation string

const (
	OperationRead   Operation = "read"
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationToggle Operation = "toggle"
	OperationSeed   Operation = "seed"
)

type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
)
