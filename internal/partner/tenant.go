package partner

import (
	"catalogsync/internal/config"
)

// Tenant is one partner-account credential set and its isolated cache
// namespace. Immutable after construction.
type Tenant struct {
	Name         string
	BaseURL      string
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	// DetailKey names the product field ("sku" or "slug") used to fetch and
	// cache detail records for this tenant.
	DetailKey string
}

// TenantFromConfig builds a Tenant from its configuration entry.
func TenantFromConfig(name string, tc config.TenantConfig) Tenant {
	return Tenant{
		Name:         name,
		BaseURL:      tc.BaseURL,
		ClientID:     tc.ClientID,
		ClientSecret: tc.ClientSecret,
		Username:     tc.Username,
		Password:     tc.Password,
		DetailKey:    tc.DetailKey,
	}
}

// Partner endpoint builders. The trailing slash on the categories listing is
// part of the signed URL and must not be normalized away.

// CategoriesURL lists the catalog's top-level categories.
func (t Tenant) CategoriesURL() string {
	return t.BaseURL + "/rest/v3/catalog/categories/"
}

// CategoryProductsURL lists the products of one category.
func (t Tenant) CategoryProductsURL(categoryID string) string {
	return t.BaseURL + "/rest/v3/catalog/categories/" + categoryID + "/products"
}

// ProductURL fetches one product's detail record.
func (t Tenant) ProductURL(id string) string {
	return t.BaseURL + "/rest/v3/catalog/products/" + id
}

func (t Tenant) verifyURL() string {
	return t.BaseURL + "/oauth2/verify"
}

func (t Tenant) tokenURL() string {
	return t.BaseURL + "/oauth2/token"
}

func (t Tenant) ordersURL() string {
	return t.BaseURL + "/rest/v3/orders"
}

func (t Tenant) reverseOrderURL() string {
	return t.BaseURL + "/rest/v3/orders/reverse"
}

func (t Tenant) orderURL(id string) string {
	return t.BaseURL + "/rest/v3/orders/" + id
}

func (t Tenant) orderStatusURL(refno string) string {
	return t.BaseURL + "/rest/v3/orders/" + refno + "/status"
}

func (t Tenant) orderCardsURL(id string) string {
	return t.BaseURL + "/rest/v3/order/" + id + "/cards/?offset=0&limit=10"
}
