package hub

import (
	"context"
	"sync"
	"time"

	"github.com/Unknownlegend09/Chathub/internal/event"
	"github.com/Unknownlegend09/Chathub/internal/model"
	"github.com/Unknownlegend09/Chathub/internal/repo"
)

type broadcastCall struct {
	ev      event.ServerEvent
	targets []int64
}

// recordingRouter captures broadcasts instead of delivering them.
type recordingRouter struct {
	mu    sync.Mutex
	calls []broadcastCall
}

func (r *recordingRouter) Broadcast(ev event.ServerEvent, targets ...int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, broadcastCall{ev: ev, targets: targets})
}

func (r *recordingRouter) snapshot() []broadcastCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]broadcastCall, len(r.calls))
	copy(out, r.calls)
	return out
}

// fakeMessageStore is an in-memory repo.MessageRepository.
type fakeMessageStore struct {
	mu        sync.Mutex
	nextID    int64
	messages  map[int64]*model.Message
	createErr error
	markErr   error
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{messages: make(map[int64]*model.Message)}
}

func (f *fakeMessageStore) Create(_ context.Context, msg *model.Message) (*model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return nil, f.createErr
	}

	f.nextID++
	stored := *msg
	stored.ID = f.nextID
	stored.CreatedAt = time.Now().UTC()
	f.messages[stored.ID] = &stored

	out := stored
	return &out, nil
}

func (f *fakeMessageStore) ListBetween(context.Context, int64, int64) ([]model.Message, error) {
	return nil, nil
}

func (f *fakeMessageStore) ListForUser(context.Context, int64) ([]model.Message, error) {
	return nil, nil
}

func (f *fakeMessageStore) ListGroup(context.Context, int64) ([]model.Message, error) {
	return nil, nil
}

func (f *fakeMessageStore) MarkDelivered(_ context.Context, messageID int64) (*model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	msg, ok := f.messages[messageID]
	if !ok {
		return nil, repo.ErrMessageNotFound
	}
	now := time.Now().UTC()
	msg.Delivered = true
	msg.DeliveredAt = &now

	out := *msg
	return &out, nil
}

func (f *fakeMessageStore) MarkRead(_ context.Context, messageID int64) (*model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	msg, ok := f.messages[messageID]
	if !ok {
		return nil, repo.ErrMessageNotFound
	}
	now := time.Now().UTC()
	msg.Read = true
	msg.ReadAt = &now
	msg.Delivered = true
	msg.DeliveredAt = &now

	out := *msg
	return &out, nil
}

// MarkAllRead mirrors the store's filter: only unread direct messages from
// sender to recipient are touched, so a second call finds nothing.
func (f *fakeMessageStore) MarkAllRead(_ context.Context, recipientID, senderID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.markErr != nil {
		return 0, f.markErr
	}

	now := time.Now().UTC()
	var count int64
	for _, msg := range f.messages {
		if msg.ReceiverID == nil || *msg.ReceiverID != recipientID || msg.SenderID != senderID || msg.Read {
			continue
		}
		msg.Read = true
		msg.ReadAt = &now
		msg.Delivered = true
		msg.DeliveredAt = &now
		count++
	}
	return count, nil
}

type onlineCall struct {
	userID int64
	online bool
}

type typingCall struct {
	userID int64
	typing bool
	target *int64
}

// fakeUserStore records presence writes.
type fakeUserStore struct {
	mu          sync.Mutex
	onlineCalls []onlineCall
	typingCalls []typingCall
	onlineErr   error
	typingErr   error
	users       []model.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{}
}

func (f *fakeUserStore) Get(_ context.Context, userID int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.users {
		if f.users[i].ID == userID {
			u := f.users[i]
			return &u, nil
		}
	}
	return nil, repo.ErrUserNotFound
}

func (f *fakeUserStore) List(context.Context) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.User, len(f.users))
	copy(out, f.users)
	return out, nil
}

func (f *fakeUserStore) SetOnline(_ context.Context, userID int64, online bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.onlineErr != nil {
		return f.onlineErr
	}
	f.onlineCalls = append(f.onlineCalls, onlineCall{userID: userID, online: online})
	return nil
}

func (f *fakeUserStore) SetTyping(_ context.Context, userID int64, typing bool, target *int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.typingErr != nil {
		return f.typingErr
	}
	f.typingCalls = append(f.typingCalls, typingCall{userID: userID, typing: typing, target: target})
	return nil
}

func (f *fakeUserStore) Delete(context.Context, int64) (bool, error) {
	return true, nil
}

func (f *fakeUserStore) typingSnapshot() []typingCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]typingCall, len(f.typingCalls))
	copy(out, f.typingCalls)
	return out
}

func (f *fakeUserStore) onlineSnapshot() []onlineCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]onlineCall, len(f.onlineCalls))
	copy(out, f.onlineCalls)
	return out
}
