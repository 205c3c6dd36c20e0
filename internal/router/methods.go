package router

import (
	"fmt"
	"sort"
)

// MethodCount is the size of the protocol surface. The dispatch table is
// static and fully enumerable; newMethodTable fails fast if the catalog
// drifts from this count, if a registry-owned method lacks a handler, or
// if a handler exists for a method missing from the catalog.
const MethodCount = 74

// Namespace prefixes every method name on the wire.
const Namespace = "a2a."

// Feature flags that gate whole method categories.
const (
	featureX402       = "x402"
	featureCoalitions = "coalitions"
)

// methodInfo is one dispatch-table entry.
type methodInfo struct {
	name      string // without namespace
	category  string
	auth      bool   // requires an authenticated session
	feature   string // gating feature flag, empty if always on
	delegated bool   // dispatched to the backend service
}

// catalog is the complete protocol surface. Registry-owned categories
// (system, subscriptions, coalitions, analysis, x402) are handled
// in-process; everything else delegates to the backend service.
var catalog = []methodInfo{
	// system
	{name: "ping", category: "system"},
	{name: "authenticate", category: "system"},
	{name: "getCapabilities", category: "system"},
	{name: "listMethods", category: "system"},
	{name: "getServerInfo", category: "system"},
	{name: "getAgentInfo", category: "system", auth: true},

	// trading
	{name: "getMarkets", category: "trading", auth: true, delegated: true},
	{name: "getMarketData", category: "trading", auth: true, delegated: true},
	{name: "getMarketPrice", category: "trading", auth: true, delegated: true},
	{name: "getPredictions", category: "trading", auth: true, delegated: true},
	{name: "getPrediction", category: "trading", auth: true, delegated: true},
	{name: "buyShares", category: "trading", auth: true, delegated: true},
	{name: "sellShares", category: "trading", auth: true, delegated: true},
	{name: "getPositions", category: "trading", auth: true, delegated: true},
	{name: "getBalance", category: "trading", auth: true, delegated: true},
	{name: "getPortfolio", category: "trading", auth: true, delegated: true},
	{name: "getTradeHistory", category: "trading", auth: true, delegated: true},

	// social
	{name: "createPost", category: "social", auth: true, delegated: true},
	{name: "getFeed", category: "social", auth: true, delegated: true},
	{name: "getPost", category: "social", auth: true, delegated: true},
	{name: "likePost", category: "social", auth: true, delegated: true},
	{name: "unlikePost", category: "social", auth: true, delegated: true},
	{name: "createComment", category: "social", auth: true, delegated: true},
	{name: "getComments", category: "social", auth: true, delegated: true},
	{name: "followAgent", category: "social", auth: true, delegated: true},
	{name: "unfollowAgent", category: "social", auth: true, delegated: true},

	// user
	{name: "getProfile", category: "user", auth: true, delegated: true},
	{name: "updateProfile", category: "user", auth: true, delegated: true},
	{name: "getFollowers", category: "user", auth: true, delegated: true},
	{name: "getFollowing", category: "user", auth: true, delegated: true},
	{name: "searchAgents", category: "user", auth: true, delegated: true},

	// messaging
	{name: "sendMessage", category: "messaging", auth: true, delegated: true},
	{name: "getMessages", category: "messaging", auth: true, delegated: true},
	{name: "getConversation", category: "messaging", auth: true, delegated: true},
	{name: "getConversations", category: "messaging", auth: true, delegated: true},
	{name: "markRead", category: "messaging", auth: true, delegated: true},
	{name: "deleteMessage", category: "messaging", auth: true, delegated: true},

	// notifications
	{name: "getNotifications", category: "notifications", auth: true, delegated: true},
	{name: "markNotificationRead", category: "notifications", auth: true, delegated: true},
	{name: "markAllNotificationsRead", category: "notifications", auth: true, delegated: true},

	// pools
	{name: "getPools", category: "pools", auth: true, delegated: true},
	{name: "getPool", category: "pools", auth: true, delegated: true},
	{name: "joinPool", category: "pools", auth: true, delegated: true},
	{name: "leavePool", category: "pools", auth: true, delegated: true},
	{name: "getPoolMembers", category: "pools", auth: true, delegated: true},

	// leaderboard
	{name: "getLeaderboard", category: "leaderboard", auth: true, delegated: true},
	{name: "getRank", category: "leaderboard", auth: true, delegated: true},

	// referrals
	{name: "getReferralCode", category: "referrals", auth: true, delegated: true},
	{name: "applyReferralCode", category: "referrals", auth: true, delegated: true},
	{name: "getReferrals", category: "referrals", auth: true, delegated: true},

	// reputation
	{name: "getReputation", category: "reputation", auth: true, delegated: true},
	{name: "endorseAgent", category: "reputation", auth: true, delegated: true},
	{name: "getEndorsements", category: "reputation", auth: true, delegated: true},

	// trending
	{name: "getTrendingMarkets", category: "trending", auth: true, delegated: true},
	{name: "getTrendingPosts", category: "trending", auth: true, delegated: true},
	{name: "getTrendingAgents", category: "trending", auth: true, delegated: true},

	// subscriptions
	{name: "subscribeMarket", category: "subscriptions", auth: true},
	{name: "unsubscribeMarket", category: "subscriptions", auth: true},
	{name: "getMarketSubscribers", category: "subscriptions", auth: true},

	// coalitions
	{name: "proposeCoalition", category: "coalitions", auth: true, feature: featureCoalitions},
	{name: "joinCoalition", category: "coalitions", auth: true, feature: featureCoalitions},
	{name: "leaveCoalition", category: "coalitions", auth: true, feature: featureCoalitions},
	{name: "disbandCoalition", category: "coalitions", auth: true, feature: featureCoalitions},
	{name: "getCoalition", category: "coalitions", auth: true, feature: featureCoalitions},
	{name: "getAgentCoalitions", category: "coalitions", auth: true, feature: featureCoalitions},

	// analysis
	{name: "shareAnalysis", category: "analysis", auth: true},
	{name: "getSharedAnalyses", category: "analysis", auth: true},

	// x402
	{name: "createPaymentRequest", category: "x402", auth: true, feature: featureX402},
	{name: "getPaymentRequest", category: "x402", auth: true, feature: featureX402},
	{name: "cancelPaymentRequest", category: "x402", auth: true, feature: featureX402},
	{name: "submitPaymentProof", category: "x402", auth: true, feature: featureX402},
	{name: "getPaymentStatus", category: "x402", auth: true, feature: featureX402},
	{name: "getPendingPayments", category: "x402", auth: true, feature: featureX402},
	{name: "getPaymentStats", category: "x402", auth: true, feature: featureX402},
}

// newMethodTable indexes the catalog by full method name and checks it for
// completeness against the registry-owned handler set.
func newMethodTable(handlers map[string]handlerFunc) (map[string]methodInfo, error) {
	if len(catalog) != MethodCount {
		return nil, fmt.Errorf("method catalog has %d entries, want %d", len(catalog), MethodCount)
	}
	table := make(map[string]methodInfo, len(catalog))
	for _, m := range catalog {
		full := Namespace + m.name
		if _, dup := table[full]; dup {
			return nil, fmt.Errorf("duplicate method %s in catalog", full)
		}
		if !m.delegated {
			if _, ok := handlers[full]; !ok {
				return nil, fmt.Errorf("method %s has no handler", full)
			}
		}
		table[full] = m
	}
	for name := range handlers {
		if _, ok := table[name]; !ok {
			return nil, fmt.Errorf("handler %s is not in the method catalog", name)
		}
	}
	return table, nil
}

// MethodNames returns the full catalog, sorted.
func MethodNames() []string {
	out := make([]string, 0, len(catalog))
	for _, m := range catalog {
		out = append(out, Namespace+m.name)
	}
	sort.Strings(out)
	return out
}

// Categories returns the distinct method categories in catalog order.
func Categories() []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, m := range catalog {
		if _, ok := seen[m.category]; !ok {
			seen[m.category] = struct{}{}
			out = append(out, m.category)
		}
	}
	return out
}
