package navigation

import "github.com/hitoshi/heredeirxs/internal/auth"

// State はセッション状態。
type State string

const (
	Anonymous     State = "anonymous"
	Authenticated State = "authenticated"
	anyState      State = ""
)

const anyPartition Partition = ""

// Trigger は整合判定のきっかけ。
type Trigger string

const (
	TriggerMount          Trigger = "mount"
	TriggerInitialSession Trigger = Trigger(auth.EventInitialSession)
	TriggerSignedIn       Trigger = Trigger(auth.EventSignedIn)
	TriggerTokenRefreshed Trigger = Trigger(auth.EventTokenRefreshed)
	TriggerSignedOut      Trigger = Trigger(auth.EventSignedOut)
	TriggerVisibility     Trigger = "visibility"
)

// TriggerFromEvent は認証イベントをトリガーに変換する。
func TriggerFromEvent(t auth.EventType) Trigger {
	return Trigger(t)
}

// Action は遷移で実行する処理。
type Action struct {
	Upsert   bool   // プロフィールを同期する
	Redirect string // 空でなければ遷移する
	Touch    bool   // セッションを維持する（トークンのリフレッシュのみ）
}

// Transition は遷移表の1行。anyState/anyPartitionはワイルドカード。
type Transition struct {
	On        Trigger
	State     State
	Partition Partition
	Action    Action
}

// Transitions は整合判定の遷移表。上から順に最初に一致した行を使う。
// 一致する行がなければ何もしない。
var Transitions = []Transition{
	{On: TriggerMount, State: Anonymous, Partition: Private, Action: Action{Redirect: PathLogin}},
	{On: TriggerMount, State: Authenticated, Partition: Public, Action: Action{Upsert: true, Redirect: PathDashboard}},
	{On: TriggerMount, State: Anonymous, Partition: Public},
	{On: TriggerMount, State: Authenticated, Partition: Private},

	{On: TriggerSignedOut, State: anyState, Partition: anyPartition, Action: Action{Redirect: PathLogin}},

	{On: TriggerSignedIn, State: anyState, Partition: Public, Action: Action{Upsert: true, Redirect: PathDashboard}},
	{On: TriggerSignedIn, State: anyState, Partition: Private, Action: Action{Upsert: true}},
	{On: TriggerTokenRefreshed, State: anyState, Partition: Public, Action: Action{Upsert: true, Redirect: PathDashboard}},
	{On: TriggerTokenRefreshed, State: anyState, Partition: Private, Action: Action{Upsert: true}},

	{On: TriggerVisibility, State: anyState, Partition: anyPartition, Action: Action{Touch: true}},
}

// Decide は遷移表から処理を決定する。
func Decide(trigger Trigger, state State, partition Partition) Action {
	for _, t := range Transitions {
		if t.On != trigger {
			continue
		}
		if t.State != anyState && t.State != state {
			continue
		}
		if t.Partition != anyPartition && t.Partition != partition {
			continue
		}
		return t.Action
	}
	return Action{}
}
