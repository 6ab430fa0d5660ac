package domain

// Integration identifies a third-party system a store is connected to.
type Integration string

const (
	IntegrationShopify     Integration = "shopify"
	IntegrationUPS         Integration = "ups"
	IntegrationShipStation Integration = "shipstation"
	IntegrationStripe      Integration = "stripe"
)

// Integrations lists every supported integration.
var Integrations = []Integration{
	IntegrationShopify,
	IntegrationUPS,
	IntegrationShipStation,
	IntegrationStripe,
}

// Valid reports whether i is a known integration.
func (i Integration) Valid() bool {
	for _, known := range Integrations {
		if i == known {
			return true
		}
	}
	return false
}
