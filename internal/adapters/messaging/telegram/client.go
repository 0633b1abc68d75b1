// Package telegram implements the messaging port on top of the gotd MTProto client.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/bnema/telegram-query-cli/internal/domain"
	"github.com/bnema/telegram-query-cli/internal/ports"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
)

var rejectedCodeErrors = []string{
	"PHONE_CODE_INVALID",
	"PHONE_CODE_EXPIRED",
	"PHONE_CODE_EMPTY",
}

var rejectedSessionErrors = []string{
	"AUTH_KEY_UNREGISTERED",
	"AUTH_KEY_INVALID",
	"SESSION_REVOKED",
	"SESSION_EXPIRED",
	"USER_DEACTIVATED",
}

type Config struct {
	// ConnectionRetries bounds how often a request is resent before failing.
	ConnectionRetries int
}

type Client struct {
	cfg Config
}

var _ ports.MessagingClient = (*Client)(nil)

func NewClient(cfg Config) *Client {
	return &Client{cfg: cfg}
}

// Resume connects with a stored session token. It fails with
// domain.ErrSessionRejected when the server no longer accepts it.
func (c *Client) Resume(ctx context.Context, identity domain.APIIdentity, token string) (ports.Session, error) {
	data, err := decodeToken(token)
	if err != nil {
		return nil, errors.Join(domain.ErrSessionRejected, err)
	}

	conn, err := c.connect(ctx, identity, newMemoryStorage(data))
	if err != nil {
		return nil, classifySessionError(err)
	}

	status, err := conn.client.Auth().Status(ctx)
	if err != nil {
		_ = conn.Close()
		return nil, classifySessionError(fmt.Errorf("auth status: %w", err))
	}
	if !status.Authorized {
		_ = conn.Close()
		return nil, fmt.Errorf("resume session: %w", domain.ErrSessionRejected)
	}

	return conn, nil
}

// Login runs the code flow for phone. Wrong codes surface as
// domain.ErrChallengeRejected so the caller can ask again.
func (c *Client) Login(ctx context.Context, identity domain.APIIdentity, phone domain.PhoneID, challenge ports.ChallengeFunc) (ports.Session, error) {
	conn, err := c.connect(ctx, identity, newMemoryStorage(nil))
	if err != nil {
		return nil, err
	}

	codePrompt := auth.CodeAuthenticatorFunc(func(ctx context.Context, _ *tg.AuthSentCode) (string, error) {
		return challenge(ctx)
	})
	flow := auth.NewFlow(auth.CodeOnly(string(phone), codePrompt), auth.SendCodeOptions{})

	if err := conn.client.Auth().IfNecessary(ctx, flow); err != nil {
		_ = conn.Close()
		return nil, classifyLoginError(err)
	}

	return conn, nil
}

func (c *Client) connect(ctx context.Context, identity domain.APIIdentity, storage *memoryStorage) (*Session, error) {
	if err := identity.Validate(); err != nil {
		return nil, fmt.Errorf("connect: %w", errors.Join(domain.ErrIdentityMissing, err))
	}

	client := telegram.NewClient(identity.ID, identity.Hash, telegram.Options{
		SessionStorage: storage,
		MaxRetries:     c.cfg.ConnectionRetries,
	})

	runCtx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- client.Run(runCtx, func(ctx context.Context) error {
			close(ready)
			<-ctx.Done()
			return ctx.Err()
		})
	}()

	select {
	case <-ready:
	case err := <-done:
		cancel()
		return nil, fmt.Errorf("connect: %w", err)
	case <-ctx.Done():
		cancel()
		<-done
		return nil, ctx.Err()
	}

	api := client.API()
	return &Session{
		client:  client,
		api:     api,
		sender:  message.NewSender(api),
		storage: storage,
		peers:   map[string]tg.InputPeerClass{},
		cancel:  cancel,
		done:    done,
	}, nil
}

// Session is a connected, authorized client.
type Session struct {
	client  *telegram.Client
	api     *tg.Client
	sender  *message.Sender
	storage *memoryStorage

	mu    sync.Mutex
	peers map[string]tg.InputPeerClass

	closeOnce sync.Once
	cancel    context.CancelFunc
	done      chan error
	closeErr  error
}

var _ ports.Session = (*Session)(nil)

func (s *Session) ResolveEntity(ctx context.Context, handle domain.BotHandle) (domain.Entity, error) {
	if !handle.Valid() {
		return domain.Entity{}, fmt.Errorf("resolve %q: invalid handle", handle)
	}

	peer, err := s.sender.Resolve(string(handle)).AsInputPeer(ctx)
	if err != nil {
		if tgerr.Is(err, "USERNAME_NOT_OCCUPIED", "USERNAME_INVALID") {
			return domain.Entity{}, fmt.Errorf("resolve %s: %w", handle, domain.ErrEntityNotFound)
		}
		return domain.Entity{}, fmt.Errorf("resolve %s: %w", handle, err)
	}

	id, ok := inputPeerID(peer)
	if !ok {
		return domain.Entity{}, fmt.Errorf("resolve %s: unsupported peer %T: %w", handle, peer, domain.ErrEntityNotFound)
	}

	s.mu.Lock()
	s.peers[id] = peer
	s.mu.Unlock()

	return domain.Entity{ID: id, Handle: handle}, nil
}

func (s *Session) SendMessage(ctx context.Context, entity domain.Entity, text string) error {
	peer, err := s.peer(ctx, entity)
	if err != nil {
		return err
	}

	if _, err := s.sender.To(peer).Text(ctx, text); err != nil {
		return fmt.Errorf("send message to %s: %w", entity.Handle, err)
	}
	return nil
}

// FetchRecentMessages returns up to limit messages, newest first.
func (s *Session) FetchRecentMessages(ctx context.Context, entity domain.Entity, limit int) ([]domain.Message, error) {
	peer, err := s.peer(ctx, entity)
	if err != nil {
		return nil, err
	}

	history, err := s.api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
		Peer:  peer,
		Limit: limit,
	})
	if err != nil {
		return nil, fmt.Errorf("get history of %s: %w", entity.Handle, err)
	}

	modified, ok := history.AsModified()
	if !ok {
		return nil, fmt.Errorf("get history of %s: unexpected response %T", entity.Handle, history)
	}

	return convertMessages(modified.GetMessages()), nil
}

// Serialize exports the current MTProto session as an opaque token.
func (s *Session) Serialize(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data := s.storage.snapshot()
	if len(data) == 0 {
		return "", errors.New("serialize session: no session data")
	}
	return encodeToken(data), nil
}

func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		if err := <-s.done; err != nil && !errors.Is(err, context.Canceled) {
			s.closeErr = err
		}
	})
	return s.closeErr
}

func (s *Session) peer(ctx context.Context, entity domain.Entity) (tg.InputPeerClass, error) {
	s.mu.Lock()
	peer, ok := s.peers[entity.ID]
	s.mu.Unlock()
	if ok {
		return peer, nil
	}

	resolved, err := s.ResolveEntity(ctx, entity.Handle)
	if err != nil {
		return nil, err
	}
	if resolved.ID != entity.ID {
		return nil, fmt.Errorf("resolve %s: id changed from %s to %s", entity.Handle, entity.ID, resolved.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peers[entity.ID], nil
}

func convertMessages(classes []tg.MessageClass) []domain.Message {
	messages := make([]domain.Message, 0, len(classes))
	for _, class := range classes {
		msg, ok := class.(*tg.Message)
		if !ok {
			continue
		}
		messages = append(messages, domain.Message{
			SenderID: senderID(msg),
			Body:     msg.Message,
		})
	}
	return messages
}

// senderID is the author of msg. Outgoing messages carry no author, and
// incoming private messages only name the chat peer.
func senderID(msg *tg.Message) string {
	if msg.Out {
		return ""
	}
	if from, ok := msg.GetFromID(); ok {
		if id, ok := peerID(from); ok {
			return id
		}
	}
	if id, ok := peerID(msg.PeerID); ok {
		return id
	}
	return ""
}

func peerID(peer tg.PeerClass) (string, bool) {
	switch p := peer.(type) {
	case *tg.PeerUser:
		return strconv.FormatInt(p.UserID, 10), true
	case *tg.PeerChat:
		return strconv.FormatInt(p.ChatID, 10), true
	case *tg.PeerChannel:
		return strconv.FormatInt(p.ChannelID, 10), true
	default:
		return "", false
	}
}

func inputPeerID(peer tg.InputPeerClass) (string, bool) {
	switch p := peer.(type) {
	case *tg.InputPeerUser:
		return strconv.FormatInt(p.UserID, 10), true
	case *tg.InputPeerChat:
		return strconv.FormatInt(p.ChatID, 10), true
	case *tg.InputPeerChannel:
		return strconv.FormatInt(p.ChannelID, 10), true
	default:
		return "", false
	}
}

func classifyLoginError(err error) error {
	if tgerr.Is(err, rejectedCodeErrors...) {
		return fmt.Errorf("sign in: %w", errors.Join(domain.ErrChallengeRejected, err))
	}
	return fmt.Errorf("sign in: %w", err)
}

func classifySessionError(err error) error {
	if tgerr.Is(err, rejectedSessionErrors...) {
		return fmt.Errorf("resume session: %w", errors.Join(domain.ErrSessionRejected, err))
	}
	return fmt.Errorf("resume session: %w", err)
}
