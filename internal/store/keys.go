package store

// Tenant-scoped key layout. Two tenants never share a key, so concurrent
// pipelines stay isolated without any locking above the store itself.

// TokenKey holds the bearer token for a tenant.
func TokenKey(tenant string) string {
	return "tenant:" + tenant + ":token"
}

// CategoriesKey holds the raw category payload from stage one.
func CategoriesKey(tenant string) string {
	return "tenant:" + tenant + ":catalog:categories"
}

// ProductListKey holds the flattened product summaries from stage two.
func ProductListKey(tenant string) string {
	return "tenant:" + tenant + ":catalog:products"
}

// ProductKey holds one product detail record from stage three, keyed by the
// product's sku or slug depending on tenant configuration.
func ProductKey(tenant, id string) string {
	return "tenant:" + tenant + ":catalog:product:" + id
}
