package repository

import "context"

// トランザクション内で使う約束
type TxRepos interface {
	Carts() CartRepository
	CartLines() CartLineRepository
	CartUserFields() CartUserFieldRepository
	Orders() OrderRepository
	OrderLines() OrderLineRepository
	OrderUserFields() OrderUserFieldRepository
	OrderHistory() OrderHistoryRepository
	Categories() CategoryRepository
	UserFields() UserFieldRepository
	Products() ProductRepository
	Inventory() InventoryRepository
	Users() UserRepository
	AuditLogs() AuditLogRepository
}

// UsecaseからTxの開始/commit/rollbackを隠す。
type TransactionManager interface {
	WithinTx(ctx context.Context, fn func(r TxRepos) error) error
}
