package auth

import (
	"context"
	"sync"

	"github.com/hitoshi/heredeirxs/internal/model"
)

// EventType は認証状態の遷移イベントの種別。
type EventType string

const (
	// EventInitialSession は購読開始時点のセッション状態。
	EventInitialSession EventType = "INITIAL_SESSION"
	// EventSignedIn はサインイン（サインアップ直後を含む）。
	EventSignedIn EventType = "SIGNED_IN"
	// EventTokenRefreshed はアクセストークンのリフレッシュ。
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"
	// EventSignedOut はサインアウト。
	EventSignedOut EventType = "SIGNED_OUT"
)

// Event は認証状態の遷移を表す。
// Locationはイベント発生時にブラウザが表示していたパス。
type Event struct {
	Type      EventType
	SessionID string
	Identity  *model.Identity // SIGNED_OUTではnil
	Location  string
}

// Listener はイベントを受け取るコールバック。
type Listener func(ctx context.Context, ev Event)

type subscription struct {
	id int
	fn Listener
}

// Broker はセッション状態の購読側を提供する。
// Publishは購読順に同期的に配信し、全リスナーの完了後に返る。
type Broker struct {
	mu     sync.RWMutex
	nextID int
	subs   []subscription
}

// NewBroker はBrokerを生成する。
func NewBroker() *Broker {
	return &Broker{}
}

// Subscribe はリスナーを登録し、登録解除関数を返す。
// 登録解除関数は複数回呼んでも安全。
func (b *Broker) Subscribe(fn Listener) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs = append(b.subs, subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish はイベントを全リスナーに配信する。
// リスナー内からのSubscribe/Publishでデッドロックしないよう、ロック外で呼び出す。
func (b *Broker) Publish(ctx context.Context, ev Event) {
	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		s.fn(ctx, ev)
	}
}
