package swipe

import (
	"context"

	"github.com/hitoshi/newsswiper/internal/model"
)

// Outcome はActionSinkの処理結果。
// 成功・警告付き成功・失敗の3状態を区別する。
type Outcome struct {
	Success bool
	Message string
	Warning string
}

// Degraded は副作用が縮退して完了した（警告付き成功）かどうかを返す。
func (o Outcome) Degraded() bool {
	return o.Success && o.Warning != ""
}

// ActionSink はスワイプ結果を受け取る外部コラボレータ。
// 呼び出しは応答を待たずに行われ、結果はデッキの状態に影響しない。
type ActionSink interface {
	Record(ctx context.Context, item model.NewsItem, action model.SwipeAction) (Outcome, error)
}

// Loader はデッキに読み込む記事を一括取得する。
type Loader interface {
	LoadItems(ctx context.Context, perPage int) ([]model.NewsItem, error)
}

// Action はスワイプ方向に対応するアクションを返す。
func (d Direction) Action() model.SwipeAction {
	if d == DirectionRight {
		return model.ActionSave
	}
	return model.ActionSkip
}

// notificationFor はActionSinkの結果をユーザー向け通知に変換する。
func notificationFor(e RecordFinished) Notify {
	switch {
	case e.Err != nil:
		return Notify{Level: NotifyError, Message: "Receipt printing error"}
	case !e.Outcome.Success:
		return Notify{Level: NotifyError, Message: "Receipt printing failed"}
	case e.Outcome.Warning != "":
		return Notify{Level: NotifyInfo, Message: e.Outcome.Message + " - " + e.Outcome.Warning}
	default:
		return Notify{Level: NotifySuccess, Message: "Receipt printed successfully!"}
	}
}
