// Package push 移动端推送通道
package push

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/wyfcoding/retailops/internal/notification/domain"
	"github.com/wyfcoding/retailops/pkg/logger"
)

// FCMConfig FCM HTTP 接口配置
type FCMConfig struct {
	Endpoint  string
	ServerKey string
	Timeout   time.Duration
	Retries   int
}

type fcmRequest struct {
	To           string            `json:"to"`
	Notification fcmNotification   `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type fcmResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
	Results []struct {
		MessageID string `json:"message_id"`
		Error     string `json:"error"`
	} `json:"results"`
}

// FCMSender 通过 FCM HTTP 接口推送
type FCMSender struct {
	client   *resty.Client
	endpoint string
	logger   *slog.Logger
}

func NewFCMSender(cfg FCMConfig) *FCMSender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Authorization", "key="+cfg.ServerKey).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(200 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r == nil || r.StatusCode() >= 500
		})
	return &FCMSender{client: client, endpoint: cfg.Endpoint, logger: logger.Module("push")}
}

func (s *FCMSender) Send(ctx context.Context, msg domain.PushMessage) error {
	var out fcmResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(fcmRequest{
			To:           msg.Token,
			Notification: fcmNotification{Title: msg.Title, Body: msg.Body},
			Data:         msg.Data,
		}).
		SetResult(&out).
		Post(s.endpoint)
	if err != nil {
		return fmt.Errorf("fcm request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("fcm returned status %d", resp.StatusCode())
	}
	if out.Failure > 0 {
		reason := "unknown"
		if len(out.Results) > 0 && out.Results[0].Error != "" {
			reason = out.Results[0].Error
		}
		return fmt.Errorf("fcm rejected message: %s", reason)
	}
	s.logger.DebugContext(ctx, "push sent", "success", out.Success)
	return nil
}

// NoopSender 推送未启用时使用
type NoopSender struct{}

func (NoopSender) Send(context.Context, domain.PushMessage) error { return nil }
