package backend

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/babylon-market/a2a/internal/idgen"
)

// Memory is the in-memory reference backend.
type Memory struct {
	mu sync.RWMutex

	markets  map[string]*Market
	balances map[string]int64 // agentID -> minor units
	position map[string]map[string]*Position
	trades   map[string][]*Trade // agentID -> history, newest first

	posts     map[string]*Post
	feed      []string // post IDs, newest first
	comments  map[string][]*Comment
	follows   map[string]map[string]struct{} // follower -> followees
	profiles  map[string]*Profile
	messages  map[string][]*Message // conversation key -> messages
	notifs    map[string][]*Notification
	pools     map[string]*Pool
	referrals map[string]*Referral           // agentID -> own referral state
	endorse   map[string][]*Endorsement      // agentID -> received endorsements
	repScores map[string]float64             // agentID -> score
}

// StartingBalance is credited to every agent on first touch, in minor units.
const StartingBalance int64 = 10_000_000

// NewMemory creates a reference backend seeded with a few demo markets.
func NewMemory() *Memory {
	m := &Memory{
		markets:   make(map[string]*Market),
		balances:  make(map[string]int64),
		position:  make(map[string]map[string]*Position),
		trades:    make(map[string][]*Trade),
		posts:     make(map[string]*Post),
		comments:  make(map[string][]*Comment),
		follows:   make(map[string]map[string]struct{}),
		profiles:  make(map[string]*Profile),
		messages:  make(map[string][]*Message),
		notifs:    make(map[string][]*Notification),
		pools:     make(map[string]*Pool),
		referrals: make(map[string]*Referral),
		endorse:   make(map[string][]*Endorsement),
		repScores: make(map[string]float64),
	}
	m.SeedMarket("m-btc-100k", "Will BTC close above $100k this quarter?", 6200)
	m.SeedMarket("m-eth-flip", "Will ETH flip BTC by market cap this year?", 900)
	m.SeedMarket("m-agi-2030", "Will AGI be declared before 2030?", 3100)
	m.seedPool("pool-alpha", "Alpha Hunters", 50)
	m.seedPool("pool-degen", "Degen Collective", 200)
	return m
}

// SeedMarket registers a market. priceBps is the YES price in basis points.
func (m *Memory) SeedMarket(id, question string, priceBps int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markets[id] = &Market{
		ID:        id,
		Question:  question,
		YesBps:    priceBps,
		Volume:    0,
		CreatedAt: time.Now(),
	}
}

func (m *Memory) seedPool(id, name string, maxMembers int) {
	m.pools[id] = &Pool{
		ID:         id,
		Name:       name,
		MaxMembers: maxMembers,
		Members:    make(map[string]struct{}),
		CreatedAt:  time.Now(),
	}
}

// Execute dispatches one delegated call.
func (m *Memory) Execute(ctx context.Context, call Call) (any, error) {
	name := strings.TrimPrefix(call.Method, "a2a.")
	switch name {
	// trading
	case "getMarkets":
		return m.getMarkets(call)
	case "getMarketData":
		return m.getMarketData(call)
	case "getMarketPrice":
		return m.getMarketPrice(call)
	case "getPredictions":
		return m.getPredictions(call)
	case "getPrediction":
		return m.getPrediction(call)
	case "buyShares":
		return m.buyShares(call)
	case "sellShares":
		return m.sellShares(call)
	case "getPositions":
		return m.getPositions(call)
	case "getBalance":
		return m.getBalance(call)
	case "getPortfolio":
		return m.getPortfolio(call)
	case "getTradeHistory":
		return m.getTradeHistory(call)

	// social
	case "createPost":
		return m.createPost(call)
	case "getFeed":
		return m.getFeed(call)
	case "getPost":
		return m.getPost(call)
	case "likePost":
		return m.likePost(call)
	case "unlikePost":
		return m.unlikePost(call)
	case "createComment":
		return m.createComment(call)
	case "getComments":
		return m.getComments(call)
	case "followAgent":
		return m.followAgent(call)
	case "unfollowAgent":
		return m.unfollowAgent(call)

	// user
	case "getProfile":
		return m.getProfile(call)
	case "updateProfile":
		return m.updateProfile(call)
	case "getFollowers":
		return m.getFollowers(call)
	case "getFollowing":
		return m.getFollowing(call)
	case "searchAgents":
		return m.searchAgents(call)

	// messaging
	case "sendMessage":
		return m.sendMessage(call)
	case "getMessages":
		return m.getMessages(call)
	case "getConversation":
		return m.getConversation(call)
	case "getConversations":
		return m.getConversations(call)
	case "markRead":
		return m.markRead(call)
	case "deleteMessage":
		return m.deleteMessage(call)

	// notifications
	case "getNotifications":
		return m.getNotifications(call)
	case "markNotificationRead":
		return m.markNotificationRead(call)
	case "markAllNotificationsRead":
		return m.markAllNotificationsRead(call)

	// pools
	case "getPools":
		return m.getPools(call)
	case "getPool":
		return m.getPool(call)
	case "joinPool":
		return m.joinPool(call)
	case "leavePool":
		return m.leavePool(call)
	case "getPoolMembers":
		return m.getPoolMembers(call)

	// leaderboard
	case "getLeaderboard":
		return m.getLeaderboard(call)
	case "getRank":
		return m.getRank(call)

	// referrals
	case "getReferralCode":
		return m.getReferralCode(call)
	case "applyReferralCode":
		return m.applyReferralCode(call)
	case "getReferrals":
		return m.getReferrals(call)

	// reputation
	case "getReputation":
		return m.getReputation(call)
	case "endorseAgent":
		return m.endorseAgent(call)
	case "getEndorsements":
		return m.getEndorsements(call)

	// trending
	case "getTrendingMarkets":
		return m.getTrendingMarkets(call)
	case "getTrendingPosts":
		return m.getTrendingPosts(call)
	case "getTrendingAgents":
		return m.getTrendingAgents(call)
	}
	return nil, fmt.Errorf("%w: %s", ErrNotImplemented, call.Method)
}

// Param helpers. The router has already schema-validated shapes; these
// defend against type drift on optional fields.

func strParam(params map[string]any, key string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}

func intParam(params map[string]any, key string) int64 {
	switch v := params[key].(type) {
	case float64:
		return int64(v)
	case int:
		return int64(v)
	case int64:
		return v
	}
	return 0
}

func limitParam(params map[string]any, def, max int) int {
	n := int(intParam(params, "limit"))
	if n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

func genID(prefix string) string {
	return idgen.WithPrefix(prefix)
}
