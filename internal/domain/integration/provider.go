package integration

// ---------------------------------------------------------------------------
// Provider
// ---------------------------------------------------------------------------

// Provider identifies one of the external platforms the engine synchronizes
// with. The set is closed: adding a provider means adding an adapter and a
// case to every exhaustive switch, which the registry checks at startup.
type Provider string

const (
	// ProviderShopify is the storefront platform
	ProviderShopify Provider = "SHOPIFY"
	// ProviderAmazon is the marketplace fulfillment platform
	ProviderAmazon Provider = "AMAZON"
	// ProviderQuickBooks is the accounting platform
	ProviderQuickBooks Provider = "QUICKBOOKS"
)

// AllProviders returns every provider in the closed set
func AllProviders() []Provider {
	return []Provider{ProviderShopify, ProviderAmazon, ProviderQuickBooks}
}

// IsValid returns true if the provider is part of the closed set
func (p Provider) IsValid() bool {
	switch p {
	case ProviderShopify, ProviderAmazon, ProviderQuickBooks:
		return true
	default:
		return false
	}
}

// String returns the string representation of Provider
func (p Provider) String() string {
	return string(p)
}

// DisplayName returns a human-readable name for the provider
func (p Provider) DisplayName() string {
	switch p {
	case ProviderShopify:
		return "Shopify"
	case ProviderAmazon:
		return "Amazon Marketplace"
	case ProviderQuickBooks:
		return "QuickBooks Online"
	default:
		return string(p)
	}
}

// ---------------------------------------------------------------------------
// SyncKind
// ---------------------------------------------------------------------------

// SyncKind selects how much upstream data a sync pulls.
type SyncKind string

const (
	// SyncKindIncremental pulls only records modified since the last
	// successful sync cursor
	SyncKindIncremental SyncKind = "INCREMENTAL"
	// SyncKindFull ignores the cursor and re-pulls a bounded recent window
	SyncKindFull SyncKind = "FULL"
)

// IsValid returns true if the sync kind is valid
func (k SyncKind) IsValid() bool {
	switch k {
	case SyncKindIncremental, SyncKindFull:
		return true
	default:
		return false
	}
}

// String returns the string representation of SyncKind
func (k SyncKind) String() string {
	return string(k)
}

// ---------------------------------------------------------------------------
// DataCategory
// ---------------------------------------------------------------------------

// DataCategory names one class of records an integration can sync. Which
// categories apply is part of the per-integration config.
type DataCategory string

const (
	DataCategoryOrders    DataCategory = "orders"
	DataCategoryProducts  DataCategory = "products"
	DataCategoryInventory DataCategory = "inventory"
	DataCategoryInvoices  DataCategory = "invoices"
	DataCategoryCustomers DataCategory = "customers"
)

// IsValid returns true if the data category is known
func (c DataCategory) IsValid() bool {
	switch c {
	case DataCategoryOrders, DataCategoryProducts, DataCategoryInventory,
		DataCategoryInvoices, DataCategoryCustomers:
		return true
	default:
		return false
	}
}

// String returns the string representation of DataCategory
func (c DataCategory) String() string {
	return string(c)
}
