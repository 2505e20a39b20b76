// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// endorsement.MetricsRecorderとワーカーのクリーンアップ記録を実装する。
type Collector struct {
	submissions   prometheus.Counter
	verifications prometheus.Counter
	transitions   *prometheus.CounterVec
	notifSent     *prometheus.CounterVec
	notifFailed   *prometheus.CounterVec
	tokensPurged  prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		submissions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "endorse_submissions_total",
			Help: "受け付けたエンドースメント申込の合計数",
		}),
		verifications: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "endorse_email_verifications_total",
			Help: "完了したメールアドレス確認の合計数",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "endorse_transitions_total",
			Help: "管理アクション別の状態遷移数",
		}, []string{"action"}),
		notifSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "endorse_notifications_sent_total",
			Help: "種別ごとの通知送信成功数",
		}, []string{"kind"}),
		notifFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "endorse_notifications_failed_total",
			Help: "種別ごとの通知送信失敗数",
		}, []string{"kind"}),
		tokensPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "endorse_tokens_purged_total",
			Help: "クリーンアップで削除された期限切れトークンの合計数",
		}),
	}

	reg.MustRegister(
		c.submissions,
		c.verifications,
		c.transitions,
		c.notifSent,
		c.notifFailed,
		c.tokensPurged,
	)

	return c
}

// RecordSubmission は申込の受け付けを記録する。
func (c *Collector) RecordSubmission() {
	c.submissions.Inc()
}

// RecordVerification はメールアドレス確認の完了を記録する。
func (c *Collector) RecordVerification() {
	c.verifications.Inc()
}

// RecordTransition は管理アクションによる状態遷移を記録する。
func (c *Collector) RecordTransition(action string) {
	c.transitions.WithLabelValues(action).Inc()
}

// RecordNotificationSent は通知送信成功を記録する。
func (c *Collector) RecordNotificationSent(kind string) {
	c.notifSent.WithLabelValues(kind).Inc()
}

// RecordNotificationFailure は通知送信失敗を記録する。
func (c *Collector) RecordNotificationFailure(kind string) {
	c.notifFailed.WithLabelValues(kind).Inc()
}

// RecordTokensPurged はクリーンアップで削除されたトークン数を記録する。
func (c *Collector) RecordTokensPurged(count int64) {
	c.tokensPurged.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
