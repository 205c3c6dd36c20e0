package backend

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/babylon-market/a2a/internal/validation"
)

// maxPostLength matches the platform's feed limit.
const maxPostLength = 280

// Post is one feed entry.
type Post struct {
	ID        string    `json:"postId"`
	AuthorID  string    `json:"authorId"`
	Content   string    `json:"content"`
	Type      string    `json:"type"` // "post", "analysis", "repost"
	Likes     map[string]struct{} `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

type postView struct {
	ID        string    `json:"postId"`
	AuthorID  string    `json:"authorId"`
	Content   string    `json:"content"`
	Type      string    `json:"type"`
	LikeCount int       `json:"likeCount"`
	CreatedAt time.Time `json:"createdAt"`
}

func (p *Post) view() *postView {
	return &postView{
		ID:        p.ID,
		AuthorID:  p.AuthorID,
		Content:   p.Content,
		Type:      p.Type,
		LikeCount: len(p.Likes),
		CreatedAt: p.CreatedAt,
	}
}

// Comment is a reply on a post.
type Comment struct {
	ID        string    `json:"commentId"`
	PostID    string    `json:"postId"`
	AuthorID  string    `json:"authorId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Profile is an agent's public profile.
type Profile struct {
	AgentID     string    `json:"agentId"`
	DisplayName string    `json:"displayName,omitempty"`
	Bio         string    `json:"bio,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Message is one direct message between two agents.
type Message struct {
	ID        string    `json:"messageId"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Content   string    `json:"content"`
	Read      bool      `json:"read"`
	Deleted   bool      `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// Notification is a per-agent inbox entry.
type Notification struct {
	ID        string    `json:"notificationId"`
	Type      string    `json:"type"`
	Detail    string    `json:"detail"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// ---- social ----

func (m *Memory) createPost(call Call) (any, error) {
	content := validation.SanitizeString(strParam(call.Params, "content"), maxPostLength)
	if content == "" {
		return nil, fmt.Errorf("%w: content must not be empty", ErrBadParams)
	}
	postType := strParam(call.Params, "type")
	if postType == "" {
		postType = "post"
	}

	p := &Post{
		ID:        genID("post_"),
		AuthorID:  call.AgentID,
		Content:   content,
		Type:      postType,
		Likes:     make(map[string]struct{}),
		CreatedAt: time.Now(),
	}

	m.mu.Lock()
	m.posts[p.ID] = p
	m.feed = append([]string{p.ID}, m.feed...)
	m.notifyFollowersLocked(call.AgentID, "post", p.ID)
	m.mu.Unlock()

	return p.view(), nil
}

func (m *Memory) getFeed(call Call) (any, error) {
	limit := limitParam(call.Params, 20, 100)
	offset := int(intParam(call.Params, "offset"))

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*postView
	for i := offset; i < len(m.feed) && len(out) < limit; i++ {
		if p, ok := m.posts[m.feed[i]]; ok {
			out = append(out, p.view())
		}
	}
	if out == nil {
		out = []*postView{}
	}
	return map[string]any{"posts": out}, nil
}

func (m *Memory) getPost(call Call) (any, error) {
	id := strParam(call.Params, "postId")
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPostNotFound, id)
	}
	return p.view(), nil
}

func (m *Memory) likePost(call Call) (any, error) {
	return m.setLike(call, true)
}

func (m *Memory) unlikePost(call Call) (any, error) {
	return m.setLike(call, false)
}

func (m *Memory) setLike(call Call, liked bool) (any, error) {
	id := strParam(call.Params, "postId")
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPostNotFound, id)
	}
	if liked {
		p.Likes[call.AgentID] = struct{}{}
	} else {
		delete(p.Likes, call.AgentID)
	}
	return map[string]any{"postId": id, "liked": liked, "likeCount": len(p.Likes)}, nil
}

func (m *Memory) createComment(call Call) (any, error) {
	postID := strParam(call.Params, "postId")
	content := validation.SanitizeString(strParam(call.Params, "content"), maxPostLength)
	if content == "" {
		return nil, fmt.Errorf("%w: content must not be empty", ErrBadParams)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[postID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrPostNotFound, postID)
	}
	c := &Comment{
		ID:        genID("cmt_"),
		PostID:    postID,
		AuthorID:  call.AgentID,
		Content:   content,
		CreatedAt: time.Now(),
	}
	m.comments[postID] = append(m.comments[postID], c)
	return c, nil
}

func (m *Memory) getComments(call Call) (any, error) {
	postID := strParam(call.Params, "postId")
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.posts[postID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrPostNotFound, postID)
	}
	list := m.comments[postID]
	out := make([]*Comment, len(list))
	for i, c := range list {
		cp := *c
		out[i] = &cp
	}
	return map[string]any{"comments": out}, nil
}

func (m *Memory) followAgent(call Call) (any, error) {
	target := strParam(call.Params, "agentId")
	if target == "" || target == call.AgentID {
		return nil, fmt.Errorf("%w: cannot follow yourself", ErrBadParams)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.follows[call.AgentID]
	if !ok {
		set = make(map[string]struct{})
		m.follows[call.AgentID] = set
	}
	set[target] = struct{}{}
	return map[string]any{"following": true, "agentId": target}, nil
}

func (m *Memory) unfollowAgent(call Call) (any, error) {
	target := strParam(call.Params, "agentId")
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.follows[call.AgentID], target)
	return map[string]any{"following": false, "agentId": target}, nil
}

// notifyFollowersLocked pushes a notification to everyone following the
// author. Caller holds m.mu.
func (m *Memory) notifyFollowersLocked(authorID, kind, ref string) {
	for follower, followees := range m.follows {
		if _, ok := followees[authorID]; !ok {
			continue
		}
		m.notifs[follower] = append([]*Notification{{
			ID:        genID("ntf_"),
			Type:      kind,
			Detail:    fmt.Sprintf("%s from %s: %s", kind, authorID, ref),
			CreatedAt: time.Now(),
		}}, m.notifs[follower]...)
	}
}

// ---- user ----

func (m *Memory) getProfile(call Call) (any, error) {
	agentID := strParam(call.Params, "agentId")
	if agentID == "" {
		agentID = call.AgentID
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.profiles[agentID]; ok {
		cp := *p
		return &cp, nil
	}
	return &Profile{AgentID: agentID}, nil
}

func (m *Memory) updateProfile(call Call) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[call.AgentID]
	if !ok {
		p = &Profile{AgentID: call.AgentID}
		m.profiles[call.AgentID] = p
	}
	if v := strParam(call.Params, "displayName"); v != "" {
		p.DisplayName = v
	}
	if v := strParam(call.Params, "bio"); v != "" {
		p.Bio = v
	}
	p.UpdatedAt = time.Now()
	cp := *p
	return &cp, nil
}

func (m *Memory) getFollowers(call Call) (any, error) {
	agentID := strParam(call.Params, "agentId")
	if agentID == "" {
		agentID = call.AgentID
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	followers := []string{}
	for follower, followees := range m.follows {
		if _, ok := followees[agentID]; ok {
			followers = append(followers, follower)
		}
	}
	sort.Strings(followers)
	return map[string]any{"agentId": agentID, "followers": followers}, nil
}

func (m *Memory) getFollowing(call Call) (any, error) {
	agentID := strParam(call.Params, "agentId")
	if agentID == "" {
		agentID = call.AgentID
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	following := []string{}
	for followee := range m.follows[agentID] {
		following = append(following, followee)
	}
	sort.Strings(following)
	return map[string]any{"agentId": agentID, "following": following}, nil
}

func (m *Memory) searchAgents(call Call) (any, error) {
	query := strings.ToLower(strParam(call.Params, "query"))
	m.mu.RLock()
	defer m.mu.RUnlock()
	matches := []*Profile{}
	for _, p := range m.profiles {
		if query == "" ||
			strings.Contains(strings.ToLower(p.AgentID), query) ||
			strings.Contains(strings.ToLower(p.DisplayName), query) {
			cp := *p
			matches = append(matches, &cp)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].AgentID < matches[j].AgentID })
	return map[string]any{"agents": matches}, nil
}

// ---- messaging ----

// convKey builds a direction-independent conversation key.
func convKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

func (m *Memory) sendMessage(call Call) (any, error) {
	to := strParam(call.Params, "to")
	content := strParam(call.Params, "content")
	if to == "" || content == "" {
		return nil, fmt.Errorf("%w: to and content are required", ErrBadParams)
	}

	msg := &Message{
		ID:        genID("msg_"),
		From:      call.AgentID,
		To:        to,
		Content:   content,
		CreatedAt: time.Now(),
	}

	m.mu.Lock()
	key := convKey(call.AgentID, to)
	m.messages[key] = append(m.messages[key], msg)
	m.notifs[to] = append([]*Notification{{
		ID:        genID("ntf_"),
		Type:      "message",
		Detail:    fmt.Sprintf("message from %s", call.AgentID),
		CreatedAt: time.Now(),
	}}, m.notifs[to]...)
	m.mu.Unlock()

	cp := *msg
	return &cp, nil
}

func (m *Memory) getMessages(call Call) (any, error) {
	limit := limitParam(call.Params, 50, 200)
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []*Message{}
	for _, msgs := range m.messages {
		for _, msg := range msgs {
			if msg.Deleted {
				continue
			}
			if msg.From == call.AgentID || msg.To == call.AgentID {
				cp := *msg
				out = append(out, &cp)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return map[string]any{"messages": out}, nil
}

func (m *Memory) getConversation(call Call) (any, error) {
	peer := strParam(call.Params, "agentId")
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []*Message{}
	for _, msg := range m.messages[convKey(call.AgentID, peer)] {
		if !msg.Deleted {
			cp := *msg
			out = append(out, &cp)
		}
	}
	return map[string]any{"agentId": peer, "messages": out}, nil
}

func (m *Memory) getConversations(call Call) (any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	peers := []string{}
	for key, msgs := range m.messages {
		if len(msgs) == 0 {
			continue
		}
		a, b, ok := strings.Cut(key, "|")
		if !ok {
			continue
		}
		switch call.AgentID {
		case a:
			peers = append(peers, b)
		case b:
			peers = append(peers, a)
		}
	}
	sort.Strings(peers)
	return map[string]any{"conversations": peers}, nil
}

func (m *Memory) markRead(call Call) (any, error) {
	peer := strParam(call.Params, "agentId")
	m.mu.Lock()
	defer m.mu.Unlock()

	marked := 0
	for _, msg := range m.messages[convKey(call.AgentID, peer)] {
		if msg.To == call.AgentID && !msg.Read {
			msg.Read = true
			marked++
		}
	}
	return map[string]any{"marked": marked}, nil
}

func (m *Memory) deleteMessage(call Call) (any, error) {
	id := strParam(call.Params, "messageId")
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, msgs := range m.messages {
		for _, msg := range msgs {
			if msg.ID == id && msg.From == call.AgentID {
				msg.Deleted = true
				return map[string]any{"deleted": true}, nil
			}
		}
	}
	// Deleting an unknown or foreign message is a quiet no-op.
	return map[string]any{"deleted": false}, nil
}

// ---- notifications ----

func (m *Memory) getNotifications(call Call) (any, error) {
	limit := limitParam(call.Params, 20, 100)
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := m.notifs[call.AgentID]
	if len(list) > limit {
		list = list[:limit]
	}
	out := make([]*Notification, len(list))
	for i, n := range list {
		cp := *n
		out[i] = &cp
	}
	return map[string]any{"notifications": out}, nil
}

func (m *Memory) markNotificationRead(call Call) (any, error) {
	id := strParam(call.Params, "notificationId")
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, n := range m.notifs[call.AgentID] {
		if n.ID == id {
			n.Read = true
			return map[string]any{"read": true}, nil
		}
	}
	return map[string]any{"read": false}, nil
}

func (m *Memory) markAllNotificationsRead(call Call) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	marked := 0
	for _, n := range m.notifs[call.AgentID] {
		if !n.Read {
			n.Read = true
			marked++
		}
	}
	return map[string]any{"marked": marked}, nil
}
