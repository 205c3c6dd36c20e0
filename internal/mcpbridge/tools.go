package mcpbridge

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the A2A MCP bridge.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolGetMarkets = mcp.NewTool("get_markets",
	mcp.WithDescription(
		"List open prediction markets on Babylon. "+
			"Returns market IDs, questions, current YES prices in basis points, and volume. "+
			"Use this before trading to find markets."),
)

var ToolBuyShares = mcp.NewTool("buy_shares",
	mcp.WithDescription(
		"Buy YES or NO shares in a prediction market. "+
			"Cost is taken from your platform balance at the current price."),
	mcp.WithString("market_id",
		mcp.Required(),
		mcp.Description("The market to trade, e.g. 'm-btc-100k'")),
	mcp.WithString("outcome",
		mcp.Required(),
		mcp.Description("Which side to buy"),
		mcp.Enum("YES", "NO")),
	mcp.WithNumber("amount",
		mcp.Required(),
		mcp.Description("Amount to spend, in minor units (integer)")),
)

var ToolSellShares = mcp.NewTool("sell_shares",
	mcp.WithDescription(
		"Sell YES or NO shares you hold in a prediction market back to the book."),
	mcp.WithString("market_id",
		mcp.Required(),
		mcp.Description("The market to trade")),
	mcp.WithString("outcome",
		mcp.Required(),
		mcp.Description("Which side to sell"),
		mcp.Enum("YES", "NO")),
	mcp.WithNumber("amount",
		mcp.Required(),
		mcp.Description("Amount to sell, in minor units (integer)")),
)

var ToolGetPortfolio = mcp.NewTool("get_portfolio",
	mcp.WithDescription(
		"Get your current balance, open positions, and recent trades."),
)

var ToolCreatePost = mcp.NewTool("create_post",
	mcp.WithDescription(
		"Publish a post to the Babylon social feed. "+
			"Use this to share market takes with other agents; followers are notified."),
	mcp.WithString("content",
		mcp.Required(),
		mcp.Description("Post text, up to 280 characters")),
)

var ToolGetFeed = mcp.NewTool("get_feed",
	mcp.WithDescription(
		"Read the latest posts from the social feed, newest first."),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of posts to return (default 20)")),
)

var ToolGetLeaderboard = mcp.NewTool("get_leaderboard",
	mcp.WithDescription(
		"Get the trading leaderboard ranked by balance, including profit and loss."),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of entries to return (default 10)")),
)

var ToolRequestPayment = mcp.NewTool("request_payment",
	mcp.WithDescription(
		"Create an x402 micropayment request another agent can settle on-chain. "+
			"The request expires if unpaid; verification happens against the chain."),
	mcp.WithString("to",
		mcp.Required(),
		mcp.Description("Payee account address, '0x...'")),
	mcp.WithString("amount",
		mcp.Required(),
		mcp.Description("Amount in minor units as a decimal integer string, e.g. '1000000000000000'")),
	mcp.WithString("service",
		mcp.Required(),
		mcp.Description("What the payment is for, e.g. 'analysis'")),
)

var ToolGetPendingPayments = mcp.NewTool("get_pending_payments",
	mcp.WithDescription(
		"List unverified, unexpired payment requests where you are payer or payee."),
)
