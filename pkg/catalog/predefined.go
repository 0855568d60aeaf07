package catalog

import "github.com/stackflow-io/stackflow/pkg/models"

// predefinedConnectors are built-in connector manifests used as a fallback
// when a tenant's rest_api integration carries no connector code of its
// own. Keyed by integration name.
var predefinedConnectors = map[string]*models.ConnectorConfig{
	"shopify": {
		Code: shopifyConnectorCode,
		Operations: []models.OperationConfig{
			{Name: "count_products", Title: "Count products", OperationType: models.OperationTypeRead},
			{Name: "get_products", Title: "List products", OperationType: models.OperationTypeRead,
				Parameters: []models.OperationParameter{
					{Name: "limit", Type: "number"},
				}},
			{Name: "create_product", Title: "Create product", OperationType: models.OperationTypeWrite,
				Parameters: []models.OperationParameter{
					{Name: "title", Type: "string", Required: true},
				}},
		},
		AllowedHosts: []string{"*.myshopify.com"},
		TimeoutMs:    30000,
	},
	"slack": {
		Code: slackConnectorCode,
		Operations: []models.OperationConfig{
			{Name: "list_channels", Title: "List channels", OperationType: models.OperationTypeRead},
			{Name: "post_message", Title: "Post message", OperationType: models.OperationTypeWrite,
				Parameters: []models.OperationParameter{
					{Name: "channel", Type: "string", Required: true},
					{Name: "text", Type: "string", Required: true},
				}},
		},
		AllowedHosts: []string{"slack.com"},
		TimeoutMs:    15000,
	},
}

// PredefinedConnector returns the built-in connector for an integration
// name, or nil when none exists.
func PredefinedConnector(name string) *models.ConnectorConfig {
	return predefinedConnectors[name]
}

const shopifyConnectorCode = `({
  operations: ["count_products", "get_products", "create_product"],
  async execute(ctx) {
    const base = "https://" + ctx.secrets.domain + "/admin/api/2024-01";
    const headers = { "X-Shopify-Access-Token": ctx.secrets.accessToken };
    switch (ctx.operation) {
      case "count_products":
        return (await ctx.http.get(base + "/products/count.json", { headers })).body;
      case "get_products":
        return (await ctx.http.get(base + "/products.json?limit=" + (ctx.params.limit || 50), { headers })).body;
      case "create_product":
        return (await ctx.http.post(base + "/products.json", { headers, body: { product: { title: ctx.params.title } } })).body;
    }
  },
  async testConnection(ctx) {
    const base = "https://" + ctx.secrets.domain + "/admin/api/2024-01";
    await ctx.http.get(base + "/shop.json", { headers: { "X-Shopify-Access-Token": ctx.secrets.accessToken } });
    return { ok: true };
  }
})`

const slackConnectorCode = `({
  operations: ["list_channels", "post_message"],
  async execute(ctx) {
    const headers = { Authorization: "Bearer " + ctx.secrets.accessToken };
    switch (ctx.operation) {
      case "list_channels":
        return (await ctx.http.get("https://slack.com/api/conversations.list", { headers })).body;
      case "post_message":
        return (await ctx.http.post("https://slack.com/api/chat.postMessage", {
          headers,
          body: { channel: ctx.params.channel, text: ctx.params.text }
        })).body;
    }
  },
  async testConnection(ctx) {
    await ctx.http.get("https://slack.com/api/auth.test", { headers: { Authorization: "Bearer " + ctx.secrets.accessToken } });
    return { ok: true };
  }
})`
