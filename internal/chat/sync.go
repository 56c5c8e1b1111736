package chat

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mdps/dashboard-client/internal/api"
)

// Identity supplies the live session user. It is consulted on every call so
// ownership checks always reflect the current session, never a cached one.
type Identity interface {
	CurrentUserID() (int64, bool)
}

// Message is one chat message in the local buffer. Pending entries are
// optimistic sends not yet confirmed by the backend; they carry a ClientRef
// for correlation with the server echo.
type Message struct {
	ID         int64
	ChatID     int64
	Content    string
	SenderID   int64
	SenderName string
	CreatedAt  time.Time
	ReadAt     *time.Time
	ClientRef  string
	Pending    bool
}

// Chat is one conversation thread
type Chat struct {
	ID          int64
	Name        string
	UserID      int64
	SupportChat bool
	CreatedAt   time.Time
}

// Presence is the per-user online state, last-write-wins per user id
type Presence struct {
	UserID   int64
	IsOnline bool
	LastSeen time.Time
}

// Options tunes the polling cadence
type Options struct {
	PresenceInterval time.Duration
	MessageInterval  time.Duration
}

const (
	defaultPresenceInterval = 30 * time.Second
	defaultMessageInterval  = 3 * time.Second
)

var (
	// ErrNoActiveChat is returned by SendMessage when no chat is open
	ErrNoActiveChat = errors.New("no active chat")
	// ErrViewNotActive is returned when polling is requested outside the chat view
	ErrViewNotActive = errors.New("chat view is not active")
	// ErrNoIdentity is returned when the session has no resolved user
	ErrNoIdentity = errors.New("no authenticated user")
)

// Synchronizer keeps a local view of one active chat plus a presence map
// approximately consistent with the backend while the chat view is mounted.
// Exactly one timer per concern ever runs: starting a poller cancels and
// supersedes the previous one, and a generation counter fences ticks from
// stopped pollers out of the state.
type Synchronizer struct {
	gw   *api.Gateway
	id   Identity
	log  zerolog.Logger
	opts Options

	mu         sync.Mutex
	viewActive bool
	viewCtx    context.Context
	cancelView context.CancelFunc
	cancelMsgs context.CancelFunc

	presenceGen uint64
	messageGen  uint64

	active    *Chat
	chats     []Chat
	messages  []Message
	presences map[int64]Presence

	// last-completed-wins bookkeeping for message polls
	msgSeq     uint64
	msgApplied uint64
	msgBusy    bool
	presBusy   bool
}

// NewSynchronizer creates a synchronizer bound to a gateway and an identity
// source. Zero-valued options get the default cadence.
func NewSynchronizer(gw *api.Gateway, id Identity, log zerolog.Logger, opts Options) *Synchronizer {
	if opts.PresenceInterval <= 0 {
		opts.PresenceInterval = defaultPresenceInterval
	}
	if opts.MessageInterval <= 0 {
		opts.MessageInterval = defaultMessageInterval
	}
	return &Synchronizer{
		gw:        gw,
		id:        id,
		log:       log,
		opts:      opts,
		presences: make(map[int64]Presence),
	}
}

// EnterChatView starts presence polling and publishes this client's own
// presence as online. Calling it while the view is already active is a no-op.
func (s *Synchronizer) EnterChatView(ctx context.Context) error {
	uid, ok := s.id.CurrentUserID()
	if !ok {
		return ErrNoIdentity
	}

	s.mu.Lock()
	if s.viewActive {
		s.mu.Unlock()
		return nil
	}
	s.viewActive = true
	viewCtx, cancel := context.WithCancel(ctx)
	s.viewCtx = viewCtx
	s.cancelView = cancel
	s.presenceGen++
	gen := s.presenceGen
	s.mu.Unlock()

	if p, err := s.gw.UpdatePresence(ctx, uid, true); err != nil {
		s.log.Warn().Err(err).Msg("failed to publish presence")
	} else {
		s.recordPresence(gen, p)
	}

	go s.presenceLoop(viewCtx, gen, uid)
	return nil
}

// LeaveChatView stops both polling loops, clears the active chat and its
// message buffer, and publishes this client as offline. Safe to call even if
// polling was never started. Once it returns, no already-scheduled tick can
// mutate state.
func (s *Synchronizer) LeaveChatView(ctx context.Context) {
	s.mu.Lock()
	wasActive := s.viewActive
	s.viewActive = false
	// Bumping the generations before returning fences out every tick that
	// was scheduled but has not applied yet.
	s.presenceGen++
	s.messageGen++
	if s.cancelMsgs != nil {
		s.cancelMsgs()
		s.cancelMsgs = nil
	}
	if s.cancelView != nil {
		s.cancelView()
		s.cancelView = nil
	}
	s.viewCtx = nil
	s.active = nil
	s.messages = nil
	s.mu.Unlock()

	if !wasActive {
		return
	}
	if uid, ok := s.id.CurrentUserID(); ok {
		if _, err := s.gw.UpdatePresence(ctx, uid, false); err != nil {
			s.log.Warn().Err(err).Msg("failed to publish offline presence")
		}
	}
}

// Chats fetches and caches the chat list for the current user
func (s *Synchronizer) Chats(ctx context.Context) ([]Chat, error) {
	payloads, err := s.gw.ListChats(ctx, api.ChatQuery{})
	if err != nil {
		return nil, err
	}
	chats := make([]Chat, len(payloads))
	for i, p := range payloads {
		chats[i] = chatFromPayload(&p)
	}
	s.mu.Lock()
	s.chats = chats
	s.mu.Unlock()
	return chats, nil
}

// OpenChatWith resolves the conversation with a participant, reusing an
// existing chat when one matches and creating it otherwise, then makes it
// the active chat.
func (s *Synchronizer) OpenChatWith(ctx context.Context, userID int64, supportChat bool) (*Chat, error) {
	existing, err := s.gw.ListChats(ctx, api.ChatQuery{UserID: userID, SupportChat: supportChat, Filtered: true})
	if err != nil {
		return nil, err
	}

	var payload *api.ChatPayload
	if len(existing) > 0 {
		payload = &existing[0]
	} else {
		payload, err = s.gw.CreateChat(ctx, userID, supportChat)
		if err != nil {
			return nil, err
		}
	}

	chat := chatFromPayload(payload)
	s.mu.Lock()
	found := false
	for _, c := range s.chats {
		if c.ID == chat.ID {
			found = true
			break
		}
	}
	if !found {
		s.chats = append(s.chats, chat)
	}
	s.mu.Unlock()

	if err := s.SetActiveChat(ctx, chat.ID); err != nil {
		return nil, err
	}
	return &chat, nil
}

// SetActiveChat resolves full message history for a chat, replacing (not
// appending to) the local buffer, and restarts message polling scoped to
// this chat's id. The chat view must be active.
func (s *Synchronizer) SetActiveChat(ctx context.Context, chatID int64) error {
	s.mu.Lock()
	if !s.viewActive {
		s.mu.Unlock()
		return ErrViewNotActive
	}
	s.mu.Unlock()

	payloads, err := s.gw.ChatMessages(ctx, chatID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.viewActive {
		// The view unmounted while the history fetch was in flight.
		return ErrViewNotActive
	}

	chat := Chat{ID: chatID}
	for _, c := range s.chats {
		if c.ID == chatID {
			chat = c
			break
		}
	}
	s.active = &chat
	s.messages = sortedMessages(messagesFromPayloads(chatID, payloads), nil)
	s.msgSeq = 0
	s.msgApplied = 0

	// Supersede any poller for a previously active chat.
	if s.cancelMsgs != nil {
		s.cancelMsgs()
	}
	s.messageGen++
	gen := s.messageGen
	msgCtx, cancel := context.WithCancel(s.viewCtx)
	s.cancelMsgs = cancel
	go s.messageLoop(msgCtx, gen, chatID)

	return nil
}

// SendMessage appends an optimistic local entry, posts to the backend, and
// reconciles on the response. A failed post removes the optimistic entry so
// the buffer never shows an unpersisted message as sent.
func (s *Synchronizer) SendMessage(ctx context.Context, content string) (*Message, error) {
	uid, ok := s.id.CurrentUserID()
	if !ok {
		return nil, ErrNoIdentity
	}

	s.mu.Lock()
	if s.active == nil {
		s.mu.Unlock()
		return nil, ErrNoActiveChat
	}
	chatID := s.active.ID
	gen := s.messageGen
	ref := uuid.NewString()
	optimistic := Message{
		ChatID:    chatID,
		Content:   content,
		SenderID:  uid,
		CreatedAt: time.Now(),
		ClientRef: ref,
		Pending:   true,
	}
	s.messages = append(s.messages, optimistic)
	s.mu.Unlock()

	payload, err := s.gw.PostMessage(ctx, api.CreateMessageRequest{
		Content:   content,
		Chat:      chatID,
		Sender:    uid,
		ClientRef: ref,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.messageGen {
		// The chat was switched or the view unmounted mid-send; the buffer
		// this entry lived in is already gone.
		if err != nil {
			return nil, err
		}
		confirmed := messageFromPayload(chatID, payload)
		return &confirmed, nil
	}

	if err != nil {
		s.removeByRef(ref)
		return nil, err
	}

	confirmed := messageFromPayload(chatID, payload)
	confirmed.ClientRef = ref
	s.removeByRef(ref)
	s.messages = sortedMessages(append(s.messages, confirmed), nil)
	return &confirmed, nil
}

// Messages returns a copy of the current buffer, ordered by created_at
func (s *Synchronizer) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// ActiveChat returns the open chat, or nil
func (s *Synchronizer) ActiveChat() *Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil
	}
	chat := *s.active
	return &chat
}

// Presences returns a snapshot of the presence map
func (s *Synchronizer) Presences() map[int64]Presence {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]Presence, len(s.presences))
	for k, v := range s.presences {
		out[k] = v
	}
	return out
}

// IsOwn reports whether a message was sent by the current session's user.
// Derived live from the session, never cached on the message.
func (s *Synchronizer) IsOwn(m Message) bool {
	uid, ok := s.id.CurrentUserID()
	return ok && m.SenderID == uid
}

func (s *Synchronizer) presenceLoop(ctx context.Context, gen uint64, uid int64) {
	ticker := time.NewTicker(s.opts.PresenceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		s.pollPresence(ctx, gen, uid)
	}
}

// pollPresence re-publishes this client as online (the backend treats it as
// a heartbeat) and records whatever presence the server answers with.
func (s *Synchronizer) pollPresence(ctx context.Context, gen uint64, uid int64) {
	s.mu.Lock()
	if gen != s.presenceGen || s.presBusy {
		s.mu.Unlock()
		return
	}
	s.presBusy = true
	s.mu.Unlock()

	p, err := s.gw.UpdatePresence(ctx, uid, true)

	s.mu.Lock()
	s.presBusy = false
	s.mu.Unlock()

	if err != nil {
		// Log and keep polling; a failed tick is not a session event.
		s.log.Warn().Err(err).Msg("presence poll failed")
		return
	}
	s.recordPresence(gen, p)
}

func (s *Synchronizer) recordPresence(gen uint64, p *api.PresencePayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.presenceGen {
		return
	}
	s.presences[p.ID] = Presence{UserID: p.ID, IsOnline: p.IsOnline, LastSeen: p.LastSeen}
}

func (s *Synchronizer) messageLoop(ctx context.Context, gen uint64, chatID int64) {
	ticker := time.NewTicker(s.opts.MessageInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		s.pollMessages(ctx, gen, chatID)
	}
}

// pollMessages fetches the authoritative message set and reconciles it into
// the buffer. Overlapping ticks are skipped; a tick that completes after a
// newer one has applied is dropped by sequence comparison.
func (s *Synchronizer) pollMessages(ctx context.Context, gen uint64, chatID int64) {
	s.mu.Lock()
	if gen != s.messageGen || s.msgBusy {
		s.mu.Unlock()
		return
	}
	s.msgBusy = true
	s.msgSeq++
	seq := s.msgSeq
	s.mu.Unlock()

	payloads, err := s.gw.ChatMessages(ctx, chatID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgBusy = false
	if gen != s.messageGen {
		return
	}
	if err != nil {
		s.log.Warn().Err(err).Int64("chat_id", chatID).Msg("message poll failed")
		return
	}
	if seq <= s.msgApplied {
		return
	}
	s.msgApplied = seq

	// The backend is the source of truth: replace wholesale, retaining only
	// pending optimistic entries the server has not echoed back yet.
	var pending []Message
	for _, m := range s.messages {
		if m.Pending {
			pending = append(pending, m)
		}
	}
	s.messages = sortedMessages(messagesFromPayloads(chatID, payloads), pending)
}

// removeByRef drops the message carrying a correlation ref. Caller holds mu.
func (s *Synchronizer) removeByRef(ref string) {
	kept := s.messages[:0]
	for _, m := range s.messages {
		if m.ClientRef != ref || !m.Pending {
			kept = append(kept, m)
		}
	}
	s.messages = kept
}

// sortedMessages merges the authoritative server set with unconfirmed
// pending entries, dropping pending entries the server already echoed.
// Echoes are matched by client ref; sender+content is the fallback for
// backends that don't round-trip refs. Deduplicates by id and returns the
// result in ascending created_at order.
func sortedMessages(server []Message, pending []Message) []Message {
	seen := make(map[int64]bool, len(server))
	out := make([]Message, 0, len(server)+len(pending))
	for _, m := range server {
		if m.ID != 0 && seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		out = append(out, m)
	}

	for _, p := range pending {
		echoed := false
		for _, m := range out {
			if p.ClientRef != "" && m.ClientRef != "" {
				// Both sides carry refs: only an exact match is an echo. A
				// server message with a different ref is someone else's send,
				// even when the text is identical.
				if m.ClientRef == p.ClientRef {
					echoed = true
					break
				}
				continue
			}
			if m.SenderID == p.SenderID && m.Content == p.Content {
				echoed = true
				break
			}
		}
		if !echoed {
			out = append(out, p)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func messagesFromPayloads(chatID int64, payloads []api.MessagePayload) []Message {
	out := make([]Message, len(payloads))
	for i, p := range payloads {
		out[i] = messageFromPayload(chatID, &p)
	}
	return out
}

func messageFromPayload(chatID int64, p *api.MessagePayload) Message {
	id := p.ChatID
	if id == 0 {
		id = chatID
	}
	name := p.Sender.Username
	if full := trimJoin(p.Sender.FirstName, p.Sender.LastName); full != "" {
		name = full
	}
	return Message{
		ID:         p.ID,
		ChatID:     id,
		Content:    p.Content,
		SenderID:   p.Sender.ID,
		SenderName: name,
		CreatedAt:  p.CreatedAt,
		ReadAt:     p.ReadAt,
		ClientRef:  p.ClientRef,
	}
}

func trimJoin(first, last string) string {
	full := first + " " + last
	return strings.TrimSpace(full)
}

func chatFromPayload(p *api.ChatPayload) Chat {
	return Chat{
		ID:          p.ID,
		Name:        p.Name,
		UserID:      p.User.ID,
		SupportChat: p.SupportChat,
		CreatedAt:   p.CreatedAt,
	}
}
