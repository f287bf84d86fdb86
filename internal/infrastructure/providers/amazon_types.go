package providers

import "time"

// AmazonOrdersResponse is the envelope of GET /orders/v0/orders
type AmazonOrdersResponse struct {
	Payload *AmazonOrdersPayload `json:"payload"`
}

// AmazonOrdersPayload carries one page of orders and the next-page token
type AmazonOrdersPayload struct {
	Orders    []AmazonOrder `json:"Orders"`
	NextToken string        `json:"NextToken"`
}

// AmazonOrder is one SP-API order
type AmazonOrder struct {
	AmazonOrderID  string       `json:"AmazonOrderId"`
	OrderStatus    string       `json:"OrderStatus"`
	PurchaseDate   time.Time    `json:"PurchaseDate"`
	LastUpdateDate time.Time    `json:"LastUpdateDate"`
	OrderTotal     *AmazonMoney `json:"OrderTotal"`
}

// AmazonMoney is the SP-API money shape
type AmazonMoney struct {
	CurrencyCode string `json:"CurrencyCode"`
	Amount       string `json:"Amount"`
}

// AmazonParticipationsResponse is the envelope of the connectivity probe
type AmazonParticipationsResponse struct {
	Payload []AmazonParticipation `json:"payload"`
}

// AmazonParticipation is one marketplace participation entry
type AmazonParticipation struct {
	Marketplace struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"marketplace"`
}

// AmazonTokenResponse is the envelope of the LWA token endpoint
type AmazonTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// AmazonNotification is the envelope of an SP-API push notification
type AmazonNotification struct {
	NotificationType string `json:"notificationType"`
	EventTime        string `json:"eventTime"`
	Payload          struct {
		OrderChangeNotification *struct {
			AmazonOrderID string `json:"amazonOrderId"`
			Summary       struct {
				MarketplaceID string `json:"marketplaceId"`
			} `json:"summary"`
		} `json:"orderChangeNotification"`
	} `json:"payload"`
	NotificationMetadata struct {
		NotificationID string `json:"notificationId"`
		PublishTime    string `json:"publishTime"`
		ApplicationID  string `json:"applicationId"`
		SubscriptionID string `json:"subscriptionId"`
	} `json:"notificationMetadata"`
}
