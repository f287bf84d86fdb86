package providers

import "time"

// QuickBooksCompanyInfoResponse is the envelope of the connectivity probe
type QuickBooksCompanyInfoResponse struct {
	CompanyInfo *struct {
		CompanyName string `json:"CompanyName"`
		Country     string `json:"Country"`
	} `json:"CompanyInfo"`
}

// QuickBooksQueryResponse is the envelope of GET /query
type QuickBooksQueryResponse struct {
	QueryResponse struct {
		Invoice       []QuickBooksInvoice  `json:"Invoice"`
		Customer      []QuickBooksCustomer `json:"Customer"`
		StartPosition int                  `json:"startPosition"`
		MaxResults    int                  `json:"maxResults"`
	} `json:"QueryResponse"`
}

// QuickBooksInvoice is one QBO invoice
type QuickBooksInvoice struct {
	ID          string         `json:"Id"`
	DocNumber   string         `json:"DocNumber"`
	TotalAmt    float64        `json:"TotalAmt"`
	CurrencyRef *QuickBooksRef `json:"CurrencyRef"`
	MetaData    QuickBooksMeta `json:"MetaData"`
}

// QuickBooksCustomer is one QBO customer
type QuickBooksCustomer struct {
	ID          string         `json:"Id"`
	DisplayName string         `json:"DisplayName"`
	MetaData    QuickBooksMeta `json:"MetaData"`
}

// QuickBooksRef is the QBO reference shape
type QuickBooksRef struct {
	Value string `json:"value"`
}

// QuickBooksMeta carries entity timestamps
type QuickBooksMeta struct {
	CreateTime      time.Time `json:"CreateTime"`
	LastUpdatedTime time.Time `json:"LastUpdatedTime"`
}

// QuickBooksTokenResponse is the envelope of the bearer token endpoint
type QuickBooksTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// QuickBooksWebhookPayload is the envelope of an Intuit webhook delivery
type QuickBooksWebhookPayload struct {
	EventNotifications []struct {
		RealmID         string `json:"realmId"`
		DataChangeEvent struct {
			Entities []QuickBooksChangedEntity `json:"entities"`
		} `json:"dataChangeEvent"`
	} `json:"eventNotifications"`
}

// QuickBooksChangedEntity is one changed entity in a webhook delivery
type QuickBooksChangedEntity struct {
	Name        string `json:"name"`
	ID          string `json:"id"`
	Operation   string `json:"operation"`
	LastUpdated string `json:"lastUpdated"`
}
