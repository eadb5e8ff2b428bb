package metrics

const Namespace = "account_portal"

const (
	StoreTypeRedis    = "redis"
	StoreTypeMemory   = "memory"
	StoreTypeBolt     = "bolt"
	StoreTypePostgres = "postgres"
)

const (
	StoreOperationGet            = "get"
	StoreOperationSet            = "set"
	StoreOperationGetDel         = "get_del"
	StoreOperationCompareAndSwap = "compare_and_swap"
	StoreOperationDelete         = "delete"
	StoreOperationKeys           = "keys"
	StoreOperationSweep          = "sweep"
)

const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeRejected = "rejected"
	OutcomeConflict = "conflict"
	OutcomeReauth   = "reauth_required"
)

const (
	GrantAuthorizationCode = "authorization_code"
	GrantRefreshToken      = "refresh_token"
)
