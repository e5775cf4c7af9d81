package sqlstore

import "github.com/goliatone/go-tracking/core"

var (
	_ core.ShopStore     = (*ShopStore)(nil)
	_ core.OrderStore    = (*OrderStore)(nil)
	_ core.StoreProvider = (*RepositoryFactory)(nil)
)
