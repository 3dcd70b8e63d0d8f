package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"paybridge/internal/metrics"
	"paybridge/internal/service"
	"paybridge/pkg/response"
	"paybridge/pkg/signature"

	"github.com/gin-gonic/gin"
)

const (
	EventPaymentSucceeded = "payment.succeeded"

	authFailWindow = 10 * time.Minute
)

// WebhookEvent 支付网关回调体，只解析入账需要的字段
type WebhookEvent struct {
	Event  string `json:"event"`
	Object struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"object"`
}

// Webhook 支付网关异步回调
// POST /webhook
//
// 验签失败返回 403，不做任何处理；验签通过且报文可解析后一律返回 200，
// 入账失败只记录日志，由对账任务兜底，不让网关的重推策略受业务错误影响。
func (h *Handler) Webhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		response.Status(c, http.StatusBadRequest, "error")
		return
	}

	provided := c.GetHeader(h.cfg.Webhook.SignatureHeader)
	if !signature.Verify(body, provided, []byte(h.cfg.Webhook.SecretKey)) {
		h.rejectSignature(c, provided == "")
		return
	}

	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil || event.Object.ID == "" {
		metrics.WebhookEvents.WithLabelValues("malformed").Inc()
		log.Printf("[Webhook] 回调报文无法解析: ip=%s, err=%v", c.ClientIP(), err)
		response.Status(c, http.StatusBadRequest, "error")
		return
	}

	if event.Event != EventPaymentSucceeded {
		metrics.WebhookEvents.WithLabelValues("ignored").Inc()
		log.Printf("[Webhook] 忽略事件: event=%s, paymentID=%s", event.Event, event.Object.ID)
		response.Status(c, http.StatusOK, "ok")
		return
	}

	metrics.WebhookEvents.WithLabelValues("accepted").Inc()
	result, err := h.fulfillService.Fulfill(c.Request.Context(), event.Object.ID)
	if err != nil {
		metrics.FulfillResults.WithLabelValues("webhook", service.ErrorKind(err)).Inc()
		log.Printf("[Webhook] 入账失败，等待对账任务重试: paymentID=%s, kind=%s, err=%v",
			event.Object.ID, service.ErrorKind(err), err)
	} else {
		metrics.FulfillResults.WithLabelValues("webhook", result.Status).Inc()
	}

	response.Status(c, http.StatusOK, "ok")
}

func (h *Handler) rejectSignature(c *gin.Context, missing bool) {
	ip := c.ClientIP()
	metrics.WebhookEvents.WithLabelValues("invalid_signature").Inc()
	log.Printf("[Security] %v: ip=%s, missing_header=%v, secret_configured=%v",
		service.ErrAuthenticationFailure, ip, missing, h.cfg.Webhook.SecretKey != "")

	// 统计失败次数不能拖慢响应
	ctx, cancel := context.WithTimeout(c.Request.Context(), 500*time.Millisecond)
	defer cancel()
	count, exceeded, err := h.authFailures.Record(ctx, ip)
	switch {
	case err != nil:
		log.Printf("[Security] 记录验签失败次数出错: ip=%s, err=%v", ip, err)
	case exceeded:
		log.Printf("[Security] 来源 %s 在 %s 内验签失败 %d 次，疑似伪造回调", ip, authFailWindow, count)
	}

	response.Status(c, http.StatusForbidden, "invalid signature")
}

// Health 存活探针，无副作用
// GET /health
func Health(c *gin.Context) {
	response.Status(c, http.StatusOK, "ok")
}
