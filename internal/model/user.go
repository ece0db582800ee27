// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// LINEアカウント1つにつきUserは1件のみ存在する（line_user_idで一意）。
type User struct {
	ID          int64
	LineUserID  string
	DisplayName string
	PictureURL  *string
	Email       *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// LoginAudit はログインイベントの監査記録を表す。
// 保持期間を超えた記録はワーカーの日次ジョブで削除される。
type LoginAudit struct {
	ID         string
	UserID     int64
	LineUserID string
	NewUser    bool
	LoggedInAt time.Time
}
