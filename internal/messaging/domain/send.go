package domain

import "fmt"

// SendState 單次發送的狀態
type SendState string

const (
	// SendIdle 沒有發送進行中
	SendIdle SendState = "idle"
	// SendSending 暫存訊息已附加，等待網路結果
	SendSending SendState = "sending"
	// SendReconciling 網路成功，正在用伺服器真相取代本地狀態
	SendReconciling SendState = "reconciling"
	// SendRolledBack 網路失敗，暫存訊息已依 temp id 移除
	SendRolledBack SendState = "rolled_back"
)

// SendEvent 驅動發送狀態機的事件
type SendEvent string

const (
	// EventSendRequested 使用者要求發送
	EventSendRequested SendEvent = "send_requested"
	// EventNetworkSucceeded 上游回覆成功
	EventNetworkSucceeded SendEvent = "network_succeeded"
	// EventNetworkFailed 上游回覆失敗
	EventNetworkFailed SendEvent = "network_failed"
	// EventAttemptSettled reconcile 或 rollback 完成
	EventAttemptSettled SendEvent = "attempt_settled"
)

// sendTransitions 合法轉移表，網路呼叫是進入狀態的副作用
var sendTransitions = map[SendState]map[SendEvent]SendState{
	SendIdle: {
		EventSendRequested: SendSending,
	},
	SendSending: {
		EventNetworkSucceeded: SendReconciling,
		EventNetworkFailed:    SendRolledBack,
	},
	SendReconciling: {
		EventAttemptSettled: SendIdle,
	},
	SendRolledBack: {
		EventAttemptSettled: SendIdle,
	},
}

// NextSendState pure reducer：目前狀態 + 事件 -> 下一個狀態
func NextSendState(cur SendState, ev SendEvent) (SendState, error) {
	next, ok := sendTransitions[cur][ev]
	if !ok {
		return cur, fmt.Errorf("invalid send transition: %s on %s", ev, cur)
	}
	return next, nil
}
