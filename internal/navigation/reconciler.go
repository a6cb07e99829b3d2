package navigation

import (
	"context"
	"log/slog"

	"github.com/hitoshi/heredeirxs/internal/auth"
	"github.com/hitoshi/heredeirxs/internal/model"
)

// ProfileSyncer はプロフィールの同期インターフェース。
type ProfileSyncer interface {
	Sync(ctx context.Context, identity *model.Identity) model.SyncResult
}

// SessionToucher は可視状態復帰時のセッション維持インターフェース。
type SessionToucher interface {
	Touch(ctx context.Context, sessionID, location string) error
}

// RedirectRecorder はリダイレクトを記録するインターフェース。
type RedirectRecorder interface {
	RecordRedirect(trigger, target string)
}

// Decision は整合判定の結果。
type Decision struct {
	Trigger   Trigger
	State     State
	Partition Partition
	Action    Action
	Navigated bool   // 遷移を発行したか
	Target    string // 遷移先（発行した場合）
}

// Reconciler はセッション状態とロケーションを整合させる。
// 判定はTransitionsの遷移表だけに従う。重複の抑止は1リクエストの中に限る。
// 別のリクエストで同じ不整合が届いた場合は、前回の遷移が届かなかったものとして再度遷移する。
type Reconciler struct {
	profiles ProfileSyncer
	sessions SessionToucher
	recorder RedirectRecorder
}

// NewReconciler はReconcilerを生成する。sessionsとrecorderはnilでもよい。
func NewReconciler(profiles ProfileSyncer, sessions SessionToucher, recorder RedirectRecorder) *Reconciler {
	return &Reconciler{
		profiles: profiles,
		sessions: sessions,
		recorder: recorder,
	}
}

// Mount は初回表示時の整合判定を行う。
func (r *Reconciler) Mount(ctx context.Context, identity *model.Identity) Decision {
	return r.evaluate(ctx, TriggerMount, "", identity, LocationFromContext(ctx))
}

// OnAuthEvent は認証イベントを受けて整合判定を行う。Brokerに購読させる。
// INITIAL_SESSIONはMountで扱うため何もしない。
func (r *Reconciler) OnAuthEvent(ctx context.Context, ev auth.Event) {
	if ev.Type == auth.EventInitialSession {
		return
	}
	r.evaluate(ctx, TriggerFromEvent(ev.Type), ev.SessionID, ev.Identity, ev.Location)
}

// VisibilityRegained は可視状態に戻ったときの処理を行う。
// セッションの維持だけを行い、遷移はしない。
func (r *Reconciler) VisibilityRegained(ctx context.Context, sessionID string, identity *model.Identity) Decision {
	return r.evaluate(ctx, TriggerVisibility, sessionID, identity, LocationFromContext(ctx))
}

func (r *Reconciler) evaluate(ctx context.Context, trigger Trigger, sessionID string, identity *model.Identity, location string) Decision {
	state := Anonymous
	if identity != nil {
		state = Authenticated
	}
	partition := Classify(location)
	action := Decide(trigger, state, partition)

	d := Decision{Trigger: trigger, State: state, Partition: partition, Action: action}
	result := ResultFromContext(ctx)

	// 同じリクエストで認証イベントが同期済みなら初回表示では書き込まない
	if action.Upsert && identity != nil && !result.Synced() {
		// 失敗はSyncResultとしてログに残るだけで、遷移は継続する
		r.profiles.Sync(ctx, identity)
		result.markSynced()
	}

	if action.Touch && sessionID != "" && r.sessions != nil {
		if err := r.sessions.Touch(ctx, sessionID, location); err != nil {
			slog.Warn("session touch failed", slog.String("error", err.Error()))
		}
	}

	// ロケーション不明の場合は遷移を判定できない
	if location == "" {
		return d
	}

	current := Normalize(location)
	if action.Redirect == "" || action.Redirect == current {
		return d
	}

	if result.Target() == action.Redirect {
		slog.Debug("navigation already issued in this request",
			slog.String("from", current),
			slog.String("target", action.Redirect),
		)
		return d
	}

	nav := NavigatorFromContext(ctx)
	if nav == nil {
		slog.Warn("no navigator in context",
			slog.String("trigger", string(trigger)),
			slog.String("target", action.Redirect),
		)
		return d
	}
	if err := nav.Navigate(action.Redirect); err != nil {
		slog.Warn("navigation failed",
			slog.String("trigger", string(trigger)),
			slog.String("target", action.Redirect),
			slog.String("error", err.Error()),
		)
		return d
	}

	if r.recorder != nil {
		r.recorder.RecordRedirect(string(trigger), action.Redirect)
	}
	slog.Info("navigation issued",
		slog.String("trigger", string(trigger)),
		slog.String("state", string(state)),
		slog.String("from", current),
		slog.String("target", action.Redirect),
		slog.String("client_key", ClientKeyFromContext(ctx)),
	)

	d.Navigated = true
	d.Target = action.Redirect
	return d
}
